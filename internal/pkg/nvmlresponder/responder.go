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

// Package nvmlresponder answers the NVML management-API surface with
// synthetic device data. It implements no management logic: every call is
// a state check followed by a lookup into the device table built at Init.
package nvmlresponder

import (
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/fakegpu/fakegpu/internal/pkg/appconfig"
	"github.com/fakegpu/fakegpu/internal/pkg/devicetable"
	"github.com/fakegpu/fakegpu/internal/pkg/logging"
	"github.com/fakegpu/fakegpu/internal/pkg/metrics"
)

const (
	DefaultDriverVersion     = "535.104.05"
	DefaultCudaDriverVersion = 12020
)

var client *Responder

// Initialize sets up the singleton Responder used by the binary.
func Initialize(cfg *appconfig.Config) *Responder {
	client = New(cfg)
	return client
}

// reset clears the current Responder instance.
func reset() {
	client = nil
}

// Client retrieves the current Responder instance.
func Client() *Responder {
	return client
}

// SetClient sets the current Responder instance to the provided one.
func SetClient(r *Responder) {
	client = r
}

// Cleanup shuts the singleton down and forgets it.
func Cleanup() {
	if client != nil {
		client.Shutdown()
		reset()
	}
}

// Responder holds the {uninitialized, initialized} state machine and the
// device table. The mutex guards the Init/Shutdown transition only; the
// table is immutable once populated.
type Responder struct {
	mu          sync.Mutex
	initialized bool
	table       *devicetable.Table

	cfg    appconfig.Config
	tracer *logging.CallTracer
}

// New returns an uninitialized Responder for the given configuration.
// Zero config values fall back to the defaults: 4 Tesla T4 devices,
// driver 535.104.05, CUDA 12020.
func New(cfg *appconfig.Config) *Responder {
	c := appconfig.Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.GPUCount == 0 {
		c.GPUCount = devicetable.DefaultGPUCount
	}
	if c.GPUName == "" {
		c.GPUName = devicetable.DefaultGPUName
	}
	if c.DriverVersion == "" {
		c.DriverVersion = DefaultDriverVersion
	}
	if c.CudaDriverVersion == 0 {
		c.CudaDriverVersion = DefaultCudaDriverVersion
	}

	return &Responder{
		cfg:    c,
		tracer: logging.NewCallTracer(c.Trace),
	}
}

// observe records the call for tracing and metrics and passes the result
// through, so call sites stay single-line.
func (r *Responder) observe(call string, ret nvml.Return) nvml.Return {
	result := ErrorString(ret)
	metrics.ObserveCall(call, result)
	r.tracer.Trace(call, result)
	return ret
}

// snapshot returns the live table, or false when uninitialized.
func (r *Responder) snapshot() (*devicetable.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table, r.initialized
}

// Init populates the device table and moves to the initialized state.
// Mirrors nvmlInit_v2.
func (r *Responder) Init() nvml.Return {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return r.observe("nvmlInit_v2", nvml.ERROR_ALREADY_INITIALIZED)
	}

	mask, err := devicetable.ParseMask(r.cfg.DeviceMask, r.cfg.GPUCount)
	if err != nil {
		return r.observe("nvmlInit_v2", nvml.ERROR_INVALID_ARGUMENT)
	}
	table, err := devicetable.New(devicetable.Spec{
		Count: r.cfg.GPUCount,
		Name:  r.cfg.GPUName,
		Mask:  mask,
	})
	if err != nil {
		return r.observe("nvmlInit_v2", nvml.ERROR_UNKNOWN)
	}

	r.table = table
	r.initialized = true

	return r.observe("nvmlInit_v2", nvml.SUCCESS)
}

// InitLegacy is the pre-v2 alias for Init.
func (r *Responder) InitLegacy() nvml.Return {
	return r.Init()
}

// Shutdown invalidates the table and moves back to uninitialized.
// Mirrors nvmlShutdown.
func (r *Responder) Shutdown() nvml.Return {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return r.observe("nvmlShutdown", nvml.ERROR_UNINITIALIZED)
	}

	r.table = nil
	r.initialized = false

	return r.observe("nvmlShutdown", nvml.SUCCESS)
}

// DeviceGetCount reports the number of visible devices.
// Mirrors nvmlDeviceGetCount_v2.
func (r *Responder) DeviceGetCount() (int, nvml.Return) {
	table, ok := r.snapshot()
	if !ok {
		return 0, r.observe("nvmlDeviceGetCount_v2", nvml.ERROR_UNINITIALIZED)
	}
	return table.Count(), r.observe("nvmlDeviceGetCount_v2", nvml.SUCCESS)
}

// DeviceGetCountLegacy is the pre-v2 alias for DeviceGetCount.
func (r *Responder) DeviceGetCountLegacy() (int, nvml.Return) {
	return r.DeviceGetCount()
}

// DeviceGetHandleByIndex returns an index-based handle to a visible
// device. Mirrors nvmlDeviceGetHandleByIndex_v2.
func (r *Responder) DeviceGetHandleByIndex(index int) (Device, nvml.Return) {
	table, ok := r.snapshot()
	if !ok {
		return Device{}, r.observe("nvmlDeviceGetHandleByIndex_v2", nvml.ERROR_UNINITIALIZED)
	}
	if _, ok := table.Record(index); !ok {
		return Device{}, r.observe("nvmlDeviceGetHandleByIndex_v2", nvml.ERROR_INVALID_ARGUMENT)
	}
	return Device{r: r, pos: index}, r.observe("nvmlDeviceGetHandleByIndex_v2", nvml.SUCCESS)
}

// DeviceGetHandleByIndexLegacy is the pre-v2 alias for DeviceGetHandleByIndex.
func (r *Responder) DeviceGetHandleByIndexLegacy(index int) (Device, nvml.Return) {
	return r.DeviceGetHandleByIndex(index)
}

// SystemGetDriverVersion reports the configured driver version.
func (r *Responder) SystemGetDriverVersion() (string, nvml.Return) {
	if _, ok := r.snapshot(); !ok {
		return "", r.observe("nvmlSystemGetDriverVersion", nvml.ERROR_UNINITIALIZED)
	}
	return r.cfg.DriverVersion, r.observe("nvmlSystemGetDriverVersion", nvml.SUCCESS)
}

// SystemGetCudaDriverVersion reports the configured CUDA driver version
// in NVML's integer encoding (12020 = 12.2).
func (r *Responder) SystemGetCudaDriverVersion() (int, nvml.Return) {
	if _, ok := r.snapshot(); !ok {
		return 0, r.observe("nvmlSystemGetCudaDriverVersion", nvml.ERROR_UNINITIALIZED)
	}
	return r.cfg.CudaDriverVersion, r.observe("nvmlSystemGetCudaDriverVersion", nvml.SUCCESS)
}

// Inventory returns a copy of the visible records. Not part of the NVML
// surface; used by the inventory server.
func (r *Responder) Inventory() ([]devicetable.Record, nvml.Return) {
	table, ok := r.snapshot()
	if !ok {
		return nil, nvml.ERROR_UNINITIALIZED
	}
	return table.Records(), nvml.SUCCESS
}

// DriverVersion exposes the configured driver version regardless of
// state, for surfaces that mirror the proc tree rather than the API.
func (r *Responder) DriverVersion() string {
	return r.cfg.DriverVersion
}
