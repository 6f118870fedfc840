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

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
)

func (c *Cloud) record(ctx context.Context, op string) error {
	if err := c.check(ctx, op); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.calls = append(c.calls, op)
	return nil
}

func (c *Cloud) EnsureQueue(ctx context.Context, spec v1alpha1.QueueSpec) (string, string, error) {
	if err := c.record(ctx, OpEnsureQueue); err != nil {
		return "", "", err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.queues[spec.Name]; !ok {
		c.queues[spec.Name] = NewQueue(WithVisibilityTimeout(spec.GetVisibilityTimeout()), WithDelay(spec.GetDelay()))
	}
	return QueueURL(spec.Name), QueueARN(spec.Name), nil
}

// QueueURL returns the URL of an in memory queue.
func QueueURL(name string) string {
	return "inmem://queues/" + name
}

// QueueARN returns the ARN of an in memory queue.
func QueueARN(name string) string {
	return "arn:inmem:queue:" + name
}

// Queue returns the queue created by EnsureQueue.
func (c *Cloud) Queue(name string) (*Queue, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	q, ok := c.queues[name]
	return q, ok
}

func (c *Cloud) LookupQueue(_ context.Context, name string) (string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.queues[name]; !ok {
		return "", nil
	}
	return QueueURL(name), nil
}

func (c *Cloud) DeleteQueue(ctx context.Context, url string) error {
	if err := c.record(ctx, OpDeleteQueue); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for name := range c.queues {
		if QueueURL(name) == url {
			delete(c.queues, name)
		}
	}
	return nil
}

// AddBucket makes a bucket exist.
func (c *Cloud) AddBucket(name string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.buckets[name] = true
}

func (c *Cloud) CheckBuckets(ctx context.Context, buckets ...string) error {
	if err := c.record(ctx, OpCheckBuckets); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, b := range buckets {
		if !c.buckets[b] {
			return fmt.Errorf("bucket %q not found", b)
		}
	}
	return nil
}

func (c *Cloud) EnsureRole(ctx context.Context, name string, queueARN string, _ v1alpha1.Permissions) error {
	if err := c.record(ctx, OpEnsureRole); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.roles[name] = queueARN
	return nil
}

func (c *Cloud) DeleteRole(ctx context.Context, name string) error {
	if err := c.record(ctx, OpDeleteRole); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.profiles[name]; ok {
		return fmt.Errorf("role %q is still attached to an instance profile", name)
	}
	delete(c.roles, name)
	return nil
}

func (c *Cloud) EnsureInstanceProfile(ctx context.Context, name string, role string) error {
	if err := c.record(ctx, OpEnsureInstanceProfile); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.roles[role]; !ok {
		return fmt.Errorf("role %q not found", role)
	}
	c.profiles[name] = role
	return nil
}

func (c *Cloud) DeleteInstanceProfile(ctx context.Context, name string, _ string) error {
	if err := c.record(ctx, OpDeleteInstanceProfile); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.profiles, name)
	return nil
}

func (c *Cloud) EnsureLaunchTemplate(ctx context.Context, name string, spec v1alpha1.LaunchTemplateSpec, profile string, userData string) (string, error) {
	if err := c.record(ctx, OpEnsureLaunchTemplate); err != nil {
		return "", err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.profiles[profile]; !ok {
		return "", fmt.Errorf("instance profile %q not found", profile)
	}
	if !v1alpha1.IsAllowedInstanceType(spec.GetInstanceType()) {
		return "", fmt.Errorf("instance type %q is not allowed", spec.GetInstanceType())
	}
	if userData == "" {
		return "", fmt.Errorf("user data is required")
	}
	if t, ok := c.templates[name]; ok {
		return t.id, nil
	}
	c.nextID++
	t := &launchTemplate{id: fmt.Sprintf("lt-%08d", c.nextID), latest: 1}
	c.templates[name] = t
	return t.id, nil
}

func (c *Cloud) DeleteLaunchTemplate(ctx context.Context, name string) error {
	if err := c.record(ctx, OpDeleteLaunchTemplate); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, g := range c.groups {
		if g.template == name {
			return fmt.Errorf("launch template %q is in use by group %q", name, g.name)
		}
	}
	delete(c.templates, name)
	return nil
}

func (c *Cloud) EnsureGroup(ctx context.Context, name string, launchTemplateID string, spec v1alpha1.FleetSpec) error {
	if err := c.record(ctx, OpEnsureGroup); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	template := ""
	for n, t := range c.templates {
		if t.id == launchTemplateID {
			template = n
		}
	}
	if template == "" {
		return fmt.Errorf("launch template %q not found", launchTemplateID)
	}
	if _, ok := c.groups[name]; ok {
		return nil
	}
	minSize, maxSize := spec.Scale.GetMinReplicas(), spec.Scale.GetMaxReplicas()
	c.groups[name] = &group{name: name, desired: minSize, minSize: minSize, maxSize: maxSize, template: template, version: "1"}
	return nil
}

func (c *Cloud) DeleteGroup(ctx context.Context, name string) error {
	if err := c.record(ctx, OpDeleteGroup); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.groups, name)
	return nil
}

func (c *Cloud) EnsureScalingPolicies(ctx context.Context, group string, _ v1alpha1.Scale) (string, string, error) {
	if err := c.record(ctx, OpEnsureScalingPolicies); err != nil {
		return "", "", err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.groups[group]; !ok {
		return "", "", fmt.Errorf("group %q not found", group)
	}
	p := [2]string{"arn:inmem:policy:" + group + "/scale-up", "arn:inmem:policy:" + group + "/scale-down"}
	c.policies[group] = p
	return p[0], p[1], nil
}

func (c *Cloud) DeleteScalingPolicies(ctx context.Context, group string) error {
	if err := c.record(ctx, OpDeleteScalingPolicies); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.policies, group)
	return nil
}

func (c *Cloud) EnsureAlarms(ctx context.Context, group string, queueName string, _ v1alpha1.Scale, upPolicyARN string, downPolicyARN string) (string, string, error) {
	if err := c.record(ctx, OpEnsureAlarms); err != nil {
		return "", "", err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.queues[queueName]; !ok {
		return "", "", fmt.Errorf("queue %q not found", queueName)
	}
	up, down := group+"-scale-up", group+"-scale-down"
	c.alarms[up] = upPolicyARN
	c.alarms[down] = downPolicyARN
	return up, down, nil
}

func (c *Cloud) DeleteAlarms(ctx context.Context, names ...string) error {
	if err := c.record(ctx, OpDeleteAlarms); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, n := range names {
		delete(c.alarms, n)
	}
	return nil
}

// Alarms returns the alarm names and the policies they trigger.
func (c *Cloud) Alarms() map[string]string {
	c.lock.Lock()
	defer c.lock.Unlock()
	alarms := make(map[string]string, len(c.alarms))
	for k, v := range c.alarms {
		alarms[k] = v
	}
	return alarms
}
