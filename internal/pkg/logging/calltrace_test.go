/*
 * Copyright (c) 2025, the fake-gpu authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallTracer(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    func(t *testing.T, out string)
	}{
		{
			name:    "When enabled, a call produces a trace line",
			enabled: true,
			want: func(t *testing.T, out string) {
				assert.Contains(t, out, "nvmlDeviceGetName")
				assert.Contains(t, out, "Success")
				assert.Contains(t, out, "pid=")
			},
		},
		{
			name:    "When disabled, nothing is written",
			enabled: false,
			want: func(t *testing.T, out string) {
				assert.Empty(t, out)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracer := newCallTracer(tt.enabled, &buf)
			tracer.Trace("nvmlDeviceGetName", "Success")
			tt.want(t, buf.String())
		})
	}
}

func TestCallTracerNilSafe(t *testing.T) {
	var tracer *CallTracer
	assert.False(t, tracer.Enabled())
	assert.NotPanics(t, func() { tracer.Trace("nvmlInit_v2", "Success") })
}
