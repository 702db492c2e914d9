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

package nvmlresponder

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/fakegpu/fakegpu/internal/pkg/devicetable"
)

// Device is an index-based handle into the responder's table. It carries
// no device data itself; every getter revalidates the position against
// the live table, so a handle held across Shutdown turns stale instead of
// dangling.
type Device struct {
	r   *Responder
	pos int
}

// resolve revalidates the handle and fetches its record.
func (d Device) resolve() (devicetable.Record, nvml.Return) {
	if d.r == nil {
		return devicetable.Record{}, nvml.ERROR_INVALID_ARGUMENT
	}
	table, ok := d.r.snapshot()
	if !ok {
		return devicetable.Record{}, nvml.ERROR_UNINITIALIZED
	}
	rec, ok := table.Record(d.pos)
	if !ok {
		return devicetable.Record{}, nvml.ERROR_INVALID_ARGUMENT
	}
	return rec, nvml.SUCCESS
}

func (d Device) observe(call string, ret nvml.Return) nvml.Return {
	if d.r == nil {
		return ret
	}
	return d.r.observe(call, ret)
}

// GetName mirrors nvmlDeviceGetName.
func (d Device) GetName() (string, nvml.Return) {
	rec, ret := d.resolve()
	if ret != nvml.SUCCESS {
		return "", d.observe("nvmlDeviceGetName", ret)
	}
	return rec.Name, d.observe("nvmlDeviceGetName", nvml.SUCCESS)
}

// GetUUID mirrors nvmlDeviceGetUUID.
func (d Device) GetUUID() (string, nvml.Return) {
	rec, ret := d.resolve()
	if ret != nvml.SUCCESS {
		return "", d.observe("nvmlDeviceGetUUID", ret)
	}
	return rec.UUID, d.observe("nvmlDeviceGetUUID", nvml.SUCCESS)
}

// GetSerial mirrors nvmlDeviceGetSerial.
func (d Device) GetSerial() (string, nvml.Return) {
	rec, ret := d.resolve()
	if ret != nvml.SUCCESS {
		return "", d.observe("nvmlDeviceGetSerial", ret)
	}
	return rec.Serial, d.observe("nvmlDeviceGetSerial", nvml.SUCCESS)
}

// GetIndex mirrors nvmlDeviceGetIndex. It reports the physical index,
// which differs from the enumeration position under a device mask.
func (d Device) GetIndex() (int, nvml.Return) {
	rec, ret := d.resolve()
	if ret != nvml.SUCCESS {
		return 0, d.observe("nvmlDeviceGetIndex", ret)
	}
	return rec.Index, d.observe("nvmlDeviceGetIndex", nvml.SUCCESS)
}

// GetPciInfo mirrors nvmlDeviceGetPciInfo.
func (d Device) GetPciInfo() (nvml.PciInfo, nvml.Return) {
	rec, ret := d.resolve()
	if ret != nvml.SUCCESS {
		return nvml.PciInfo{}, d.observe("nvmlDeviceGetPciInfo", ret)
	}
	return rec.PCI, d.observe("nvmlDeviceGetPciInfo", nvml.SUCCESS)
}

// GetCudaComputeCapability mirrors nvmlDeviceGetCudaComputeCapability.
func (d Device) GetCudaComputeCapability() (int, int, nvml.Return) {
	rec, ret := d.resolve()
	if ret != nvml.SUCCESS {
		return 0, 0, d.observe("nvmlDeviceGetCudaComputeCapability", ret)
	}
	return rec.ComputeMajor, rec.ComputeMinor, d.observe("nvmlDeviceGetCudaComputeCapability", nvml.SUCCESS)
}

// GetBrand mirrors nvmlDeviceGetBrand.
func (d Device) GetBrand() (nvml.BrandType, nvml.Return) {
	rec, ret := d.resolve()
	if ret != nvml.SUCCESS {
		return nvml.BRAND_UNKNOWN, d.observe("nvmlDeviceGetBrand", ret)
	}
	return rec.Brand, d.observe("nvmlDeviceGetBrand", nvml.SUCCESS)
}

// GetMinorNumber mirrors nvmlDeviceGetMinorNumber.
func (d Device) GetMinorNumber() (int, nvml.Return) {
	rec, ret := d.resolve()
	if ret != nvml.SUCCESS {
		return 0, d.observe("nvmlDeviceGetMinorNumber", ret)
	}
	return rec.MinorNumber, d.observe("nvmlDeviceGetMinorNumber", nvml.SUCCESS)
}

// GetMigCapability mirrors the responder's nvmlDeviceGetMigCapability:
// the fake devices are never MIG capable and never MIG devices.
func (d Device) GetMigCapability() (bool, bool, nvml.Return) {
	if _, ret := d.resolve(); ret != nvml.SUCCESS {
		return false, false, d.observe("nvmlDeviceGetMigCapability", ret)
	}
	return false, false, d.observe("nvmlDeviceGetMigCapability", nvml.SUCCESS)
}

// GetMigMode mirrors nvmlDeviceGetMigMode. MIG is never enabled.
func (d Device) GetMigMode() (nvml.EnableState, nvml.EnableState, nvml.Return) {
	if _, ret := d.resolve(); ret != nvml.SUCCESS {
		return nvml.FEATURE_DISABLED, nvml.FEATURE_DISABLED, d.observe("nvmlDeviceGetMigMode", ret)
	}
	return nvml.FEATURE_DISABLED, nvml.FEATURE_DISABLED, d.observe("nvmlDeviceGetMigMode", nvml.SUCCESS)
}
