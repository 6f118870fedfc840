/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package inmem

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/numaproj/spotfleet/pkg/fleet"
)

type group struct {
	name      string
	desired   int32
	minSize   int32
	maxSize   int32
	template  string
	version   string
	instances []fleet.Instance
}

type launchTemplate struct {
	id     string
	latest int
}

// Cloud is an in process compute, identity and monitoring service.
type Cloud struct {
	*faults

	lock      sync.Mutex
	nextID    int
	groups    map[string]*group
	templates map[string]*launchTemplate
	queues    map[string]*Queue
	roles     map[string]string
	profiles  map[string]string
	policies  map[string][2]string
	alarms    map[string]string
	buckets   map[string]bool
	calls     []string
}

func NewCloud() *Cloud {
	return &Cloud{
		faults:    newFaults(),
		groups:    map[string]*group{},
		templates: map[string]*launchTemplate{},
		queues:    map[string]*Queue{},
		roles:     map[string]string{},
		profiles:  map[string]string{},
		policies:  map[string][2]string{},
		alarms:    map[string]string{},
		buckets:   map[string]bool{},
	}
}

// AddGroup creates a group without going through the bootstrap.
func (c *Cloud) AddGroup(name string, desired, minSize, maxSize int32) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.groups[name] = &group{name: name, desired: desired, minSize: minSize, maxSize: maxSize, version: "1"}
}

// DescribeGroup launches or terminates instances to converge to the desired
// capacity, then reports the group. Launched instances are Pending the
// first time they are reported, and InService afterwards.
func (c *Cloud) DescribeGroup(ctx context.Context, name string) (fleet.GroupStatus, error) {
	if err := c.check(ctx, OpDescribeGroup); err != nil {
		return fleet.GroupStatus{}, err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	g, ok := c.groups[name]
	if !ok {
		return fleet.GroupStatus{}, fmt.Errorf("group %q not found", name)
	}
	c.converge(g)
	status := fleet.GroupStatus{
		Name:            g.name,
		DesiredCapacity: g.desired,
		MinSize:         g.minSize,
		MaxSize:         g.maxSize,
		TemplateVersion: g.version,
		Instances:       append([]fleet.Instance(nil), g.instances...),
	}
	kept := g.instances[:0]
	for _, i := range g.instances {
		switch i.LifecycleState {
		case fleet.LifecyclePending:
			i.LifecycleState = fleet.LifecycleInService
		case fleet.LifecycleTerminating:
			i.LifecycleState = fleet.LifecycleTerminated
		case fleet.LifecycleTerminated:
			continue
		}
		kept = append(kept, i)
	}
	g.instances = kept
	return status, nil
}

func (c *Cloud) converge(g *group) {
	live := 0
	for _, i := range g.instances {
		if i.Live() {
			live++
		}
	}
	for ; live < int(g.desired); live++ {
		c.nextID++
		g.instances = append(g.instances, fleet.Instance{
			ID:              fmt.Sprintf("i-%08d", c.nextID),
			LifecycleState:  fleet.LifecyclePending,
			TemplateVersion: g.version,
		})
	}
	// Scale in terminates the newest instances first.
	for i := len(g.instances) - 1; i >= 0 && live > int(g.desired); i-- {
		if g.instances[i].Live() {
			g.instances[i].LifecycleState = fleet.LifecycleTerminating
			live--
		}
	}
}

// SetDesiredCapacity rejects values out of the group bounds, like the real service does.
func (c *Cloud) SetDesiredCapacity(ctx context.Context, name string, n int32) error {
	if err := c.check(ctx, OpSetDesiredCapacity); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	g, ok := c.groups[name]
	if !ok {
		return fmt.Errorf("group %q not found", name)
	}
	if n < g.minSize || n > g.maxSize {
		return fmt.Errorf("desired capacity %d of group %q is out of [%d, %d]", n, name, g.minSize, g.maxSize)
	}
	g.desired = n
	return nil
}

func (c *Cloud) SetLaunchTemplateVersion(ctx context.Context, name string, version string) error {
	if err := c.check(ctx, OpSetLaunchTemplate); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	g, ok := c.groups[name]
	if !ok {
		return fmt.Errorf("group %q not found", name)
	}
	if t, ok := c.templates[g.template]; ok {
		if v, err := strconv.Atoi(version); err != nil || v < 1 || v > t.latest {
			return fmt.Errorf("launch template %q has no version %q", g.template, version)
		}
	}
	g.version = version
	return nil
}

// TerminateInstances terminates without decrementing the desired capacity,
// the next DescribeGroup launches the replacements.
func (c *Cloud) TerminateInstances(ctx context.Context, name string, ids []string) error {
	if err := c.check(ctx, OpTerminateInstances); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	g, ok := c.groups[name]
	if !ok {
		return fmt.Errorf("group %q not found", name)
	}
	for _, id := range ids {
		found := false
		for i := range g.instances {
			if g.instances[i].ID == id && g.instances[i].Live() {
				g.instances[i].LifecycleState = fleet.LifecycleTerminating
				found = true
			}
		}
		if !found {
			return fmt.Errorf("instance %q not found in group %q", id, name)
		}
	}
	return nil
}

// LatestTemplateVersion returns the newest version of the group's launch template.
func (c *Cloud) LatestTemplateVersion(ctx context.Context, name string) (string, error) {
	if err := c.check(ctx, OpLatestTemplateVersion); err != nil {
		return "", err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	g, ok := c.groups[name]
	if !ok {
		return "", fmt.Errorf("group %q not found", name)
	}
	t, ok := c.templates[g.template]
	if !ok {
		return g.version, nil
	}
	return strconv.Itoa(t.latest), nil
}

// PublishTemplateVersion creates a new version of a launch template and returns it.
func (c *Cloud) PublishTemplateVersion(template string) (string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	t, ok := c.templates[template]
	if !ok {
		return "", fmt.Errorf("launch template %q not found", template)
	}
	t.latest++
	return strconv.Itoa(t.latest), nil
}

// Calls returns the provisioning calls made so far, in order.
func (c *Cloud) Calls() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.calls...)
}
