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

// Package metrics counts management-API calls so the inventory server can
// show which entry points the tooling under test actually exercised.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var callsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fake_nvml_calls_total",
		Help: "Total number of fake NVML entry-point calls, by call name and result.",
	},
	[]string{"call", "result"},
)

// ObserveCall records one call of the named entry point with its result
// string.
func ObserveCall(call, result string) {
	callsTotal.WithLabelValues(call, result).Inc()
}
