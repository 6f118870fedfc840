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

// Package userdata renders the boot script of the worker instances.
package userdata

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
)

const script = `#!/bin/bash
set -euo pipefail
# {{ .Fleet }} worker bootstrap
mkdir -p {{ .QueuePath | dir | squote }}
echo {{ .QueueURL | squote }} > {{ .QueuePath | squote }}
{{- if .Region }}
echo {{ printf "AWS_DEFAULT_REGION=%s" .Region | squote }} > /etc/default/{{ .ServiceName }}
{{- end }}
echo {{ printf "SPOTFLEET_QUEUE_URL=%s" .QueueURL | squote }} >> /etc/default/{{ .ServiceName }}
systemctl enable {{ .ServiceName | squote }}
systemctl start {{ .ServiceName | squote }}
`

var tmpl = template.Must(template.New("userdata").Funcs(sprig.TxtFuncMap()).Parse(script))

// Data is what the boot script needs to know about the fleet.
type Data struct {
	Fleet       string
	Region      string
	QueueURL    string
	QueuePath   string
	ServiceName string
}

// NewData returns the boot script data of a fleet whose queue lives at queueURL.
func NewData(spec v1alpha1.FleetSpec, queueURL string) Data {
	return Data{
		Fleet:       spec.Name,
		Region:      spec.Region,
		QueueURL:    queueURL,
		QueuePath:   spec.LaunchTemplate.Bootstrap.GetQueuePath(),
		ServiceName: spec.LaunchTemplate.Bootstrap.GetServiceName(),
	}
}

// Script renders the plain boot script.
func Script(d Data) (string, error) {
	for name, v := range map[string]string{"queue url": d.QueueURL, "queue path": d.QueuePath, "service name": d.ServiceName, "region": d.Region} {
		if strings.ContainsAny(v, "'\n") {
			return "", fmt.Errorf("invalid %s %q, quotes and new lines are not allowed", name, v)
		}
	}
	if d.QueueURL == "" || d.QueuePath == "" || d.ServiceName == "" {
		return "", fmt.Errorf("queue url, queue path and service name are required")
	}
	if strings.ContainsAny(d.ServiceName, " /") {
		return "", fmt.Errorf("invalid service name %q", d.ServiceName)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render user data, %w", err)
	}
	return buf.String(), nil
}

// Render returns the boot script encoded in base64, as launch templates expect it.
func Render(d Data) (string, error) {
	s, err := Script(d)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}
