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

package bootstrap

import "errors"

var (
	// ErrMissingResource means a step ran before the step producing its input.
	ErrMissingResource = errors.New("missing resource")
	// ErrInvalidInput is returned for a step input no retry can fix.
	ErrInvalidInput = errors.New("invalid input")
)
