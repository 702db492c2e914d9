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
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// TraceEnvVar is the environment toggle for call tracing. When it is
// set, every management-API call is logged.
const TraceEnvVar = "FAKE_NVML_LOG"

// CallTracer emits one timestamped line per management-API call to the
// diagnostic stream. Disabled tracers are valid and silent.
type CallTracer struct {
	enabled bool
	logger  *logrus.Logger
}

// NewCallTracer returns a tracer writing to stderr. The tracer is active
// when enabled is true or the legacy TraceEnvVar is set.
func NewCallTracer(enabled bool) *CallTracer {
	return newCallTracer(enabled || os.Getenv(TraceEnvVar) != "", os.Stderr)
}

func newCallTracer(enabled bool, w io.Writer) *CallTracer {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &CallTracer{
		enabled: enabled,
		logger:  logger,
	}
}

// Enabled reports whether the tracer emits anything.
func (t *CallTracer) Enabled() bool {
	return t != nil && t.enabled
}

// Trace logs a single call with its result string.
func (t *CallTracer) Trace(call, result string) {
	if !t.Enabled() {
		return
	}
	t.logger.WithFields(logrus.Fields{
		"pid":    os.Getpid(),
		"call":   call,
		"result": result,
	}).Info("fake-gpu call")
}
