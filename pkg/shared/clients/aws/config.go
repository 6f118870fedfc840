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

// Package aws loads the AWS SDK configuration shared by the service clients.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/numaproj/spotfleet/pkg/shared/util"
)

const (
	EnvAccessKeyID     = "SPOTFLEET_AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "SPOTFLEET_AWS_SECRET_ACCESS_KEY"
	EnvProfile         = "SPOTFLEET_AWS_PROFILE"
	EnvEndpointURL     = "SPOTFLEET_AWS_ENDPOINT_URL"
)

type options struct {
	region   string
	profile  string
	endpoint string
	// Static credentials, the default chain is used when empty
	accessKeyID     string
	secretAccessKey string
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		profile:         util.LookupEnvStringOr(EnvProfile, ""),
		endpoint:        util.LookupEnvStringOr(EnvEndpointURL, ""),
		accessKeyID:     util.LookupEnvStringOr(EnvAccessKeyID, ""),
		secretAccessKey: util.LookupEnvStringOr(EnvSecretAccessKey, ""),
	}
}

// WithRegion sets the region of the clients.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithProfile selects a profile of the shared config files.
func WithProfile(profile string) Option {
	return func(o *options) {
		o.profile = profile
	}
}

// WithEndpoint points every client at the given endpoint, e.g. a localstack.
func WithEndpoint(url string) Option {
	return func(o *options) {
		o.endpoint = url
	}
}

// WithStaticCredentials uses the given access key instead of the default credential chain.
func WithStaticCredentials(accessKeyID, secretAccessKey string) Option {
	return func(o *options) {
		o.accessKeyID = accessKeyID
		o.secretAccessKey = secretAccessKey
	}
}

// LoadConfig loads the SDK configuration from the environment and the shared
// config files, applying the options on top.
func LoadConfig(ctx context.Context, opts ...Option) (aws.Config, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	if o.accessKeyID != "" {
		if o.secretAccessKey == "" {
			return aws.Config{}, fmt.Errorf("%s is set without %s", EnvAccessKeyID, EnvSecretAccessKey)
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.accessKeyID, o.secretAccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config, %w", err)
	}
	if o.endpoint != "" {
		cfg.BaseEndpoint = aws.String(o.endpoint)
	}
	return cfg, nil
}
