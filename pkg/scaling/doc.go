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

// Package scaling decides whether the worker fleet should grow or shrink.
//
// The Decider mirrors two independent alarms on the work queue and folds
// them into one deterministic function evaluated every period:
//
//	scale up:   sum(visible messages over the window) > visible threshold (0)
//	scale down: sum(empty receives over the window)   > empty threshold (10)
//
// A condition only counts once the window has EvaluationPeriods samples,
// and a backlog always wins over idleness.
package scaling
