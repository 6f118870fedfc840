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

// Package sampler reads the queue depth signals the autoscaler decides on.
//
// Every period the Sampler reads two metrics of the work queue from the
// monitoring service: the approximate number of visible messages, and the
// number of receive calls that returned nothing. The samples are collected
// into fixed length Windows which the scaling decider evaluates.
//
// A failed read never stops the control loop: the Sampler then repeats the
// previous values with the current timestamp and marks the sample as stale.
package sampler
