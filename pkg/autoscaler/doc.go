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

// Package autoscaler runs the periodic control loop of the fleet.
//
// Every period the AlarmLoop samples the queue metrics, appends the sample to
// the sliding windows, asks the decider for an action and hands it to the
// fleet controller. A period runs to completion even when the loop is asked
// to stop, and a period which is still running when the next one is due
// causes the next one to be skipped rather than queued.
package autoscaler
