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

package aws

import (
	"encoding/json"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
)

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

const policyVersion = "2012-10-17"

// assumeRolePolicy lets EC2 instances assume the worker role.
func assumeRolePolicy() (string, error) {
	return marshalPolicy(policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": "ec2.amazonaws.com"},
			Action:    []string{"sts:AssumeRole"},
		}},
	})
}

// workerPolicy allows consuming the queue, reading the artifact bucket and
// writing the results bucket.
func workerPolicy(queueARN string, perms v1alpha1.Permissions) (string, error) {
	doc := policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{{
			Effect: "Allow",
			Action: []string{
				"sqs:ReceiveMessage",
				"sqs:DeleteMessage",
				"sqs:ChangeMessageVisibility",
				"sqs:GetQueueAttributes",
				"sqs:GetQueueUrl",
			},
			Resource: []string{queueARN},
		}},
	}
	if b := perms.ArtifactBucket; b != "" {
		doc.Statement = append(doc.Statement, policyStatement{
			Effect:   "Allow",
			Action:   []string{"s3:GetObject", "s3:ListBucket"},
			Resource: []string{bucketARN(b), bucketARN(b) + "/*"},
		})
	}
	if b := perms.ResultsBucket; b != "" {
		doc.Statement = append(doc.Statement, policyStatement{
			Effect:   "Allow",
			Action:   []string{"s3:*"},
			Resource: []string{bucketARN(b), bucketARN(b) + "/*"},
		})
	}
	return marshalPolicy(doc)
}

func bucketARN(name string) string {
	return "arn:aws:s3:::" + name
}

func marshalPolicy(doc policyDocument) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
