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

// Package bootstrap creates, and tears down, the cloud resources of a fleet.
//
// Resources are created by an explicit ordered list of steps, each one only
// depending on the outputs of the steps before it:
//
//	queue -> buckets -> role -> instance profile -> launch template -> group -> scaling policies -> alarms
//
// Destroy walks the same list backwards.
package bootstrap
