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

package redis

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/numaproj/spotfleet/pkg/apis/fleet/v1alpha1"
	"github.com/numaproj/spotfleet/pkg/shared/util"
)

const (
	EnvRedisURL              = "SPOTFLEET_REDIS_URL"
	EnvRedisUser             = "SPOTFLEET_REDIS_USER"
	EnvRedisPassword         = "SPOTFLEET_REDIS_PASSWORD"
	EnvRedisSentinelMaster   = "SPOTFLEET_REDIS_SENTINEL_MASTER"
	EnvRedisSentinelPassword = "SPOTFLEET_REDIS_SENTINEL_PASSWORD"
)

// RedisClient datatype to hold redis client attributes.
type RedisClient struct {
	Client redis.UniversalClient
}

// NewRedisClient returns a new Redis Client.
func NewRedisClient(options *redis.UniversalOptions) *RedisClient {
	client := new(RedisClient)
	client.Client = redis.NewUniversalClient(options)
	return client
}

// NewRedisClientFromConfig returns a Redis Client for the queue configuration,
// the environment variables fill in what the configuration leaves empty.
func NewRedisClientFromConfig(cfg *v1alpha1.RedisConfig) *RedisClient {
	opts := &redis.UniversalOptions{
		Username:   util.LookupEnvStringOr(EnvRedisUser, ""),
		Password:   util.LookupEnvStringOr(EnvRedisPassword, ""),
		MasterName: util.LookupEnvStringOr(EnvRedisSentinelMaster, ""),
	}
	if urls := util.LookupEnvStringOr(EnvRedisURL, ""); urls != "" {
		opts.Addrs = strings.Split(urls, ",")
	}
	if opts.MasterName != "" {
		opts.SentinelPassword = util.LookupEnvStringOr(EnvRedisSentinelPassword, "")
	}
	if cfg != nil {
		if len(cfg.Addrs) > 0 {
			opts.Addrs = cfg.Addrs
		}
		if cfg.Username != "" {
			opts.Username = cfg.Username
		}
		if cfg.Password != "" {
			opts.Password = cfg.Password
		}
		if cfg.MasterName != "" {
			opts.MasterName = cfg.MasterName
		}
	}
	return NewRedisClient(opts)
}

// Ping checks the connection.
func (cl *RedisClient) Ping(ctx context.Context) error {
	return cl.Client.Ping(ctx).Err()
}

// DeleteKeys deletes redis keys
func (cl *RedisClient) DeleteKeys(ctx context.Context, keys ...string) error {
	return cl.Client.Del(ctx, keys...).Err()
}

func (cl *RedisClient) Close() error {
	return cl.Client.Close()
}

// IsNil returns whether err means the key or the element does not exist.
func IsNil(err error) bool {
	return err == redis.Nil
}
