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

package util

import "encoding/json"

// MustJSON marshals the value to a JSON string, and panics on values JSON
// cannot represent such as channels.
func MustJSON(in any) string {
	data, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}
	return string(data)
}
