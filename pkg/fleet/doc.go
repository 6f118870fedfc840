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

// Package fleet manages the desired capacity of the worker group.
//
// The Controller is the only writer of the WorkerGroup state. It applies one
// scaling action at a time, one step per action, honouring the per direction
// cooldowns and the min/max bounds. Desired capacity is always sent to the
// compute service as an absolute value, so retrying an apply whose outcome is
// unknown is safe.
//
// The RollingUpdater replaces out of date worker instances in fixed size
// batches after the launch template changes.
package fleet
