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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMustJSON(t *testing.T) {
	assert.Equal(t, "1", MustJSON(1))
	record := struct {
		ID        string    `json:"id"`
		StartedAt time.Time `json:"startedAt"`
		Error     string    `json:"error,omitempty"`
	}{ID: "r-1", StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	assert.Equal(t, `{"id":"r-1","startedAt":"2024-05-01T10:00:00Z"}`, MustJSON(record))

	t.Run("unsupported value", func(t *testing.T) {
		assert.Panics(t, func() {
			MustJSON(make(chan int))
		})
	})
}
