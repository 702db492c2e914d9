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

// Package devicetable holds the synthetic GPU inventory the responder and
// the proc-tree publisher advertise. Records are built in bulk, derived
// from their index, and never mutated afterwards.
package devicetable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
)

const (
	DefaultGPUCount = 4
	DefaultGPUName  = "NVIDIA Tesla T4"

	// PCI identity of a Tesla T4 (TU104GL).
	pciDeviceID    = 0x1EB8
	pciSubSystemID = 0x12A210DE

	computeCapabilityMajor = 7
	computeCapabilityMinor = 5
)

// Record is a single fake GPU. All fields are derived from Index so the
// record stays internally consistent no matter which getter reads it.
type Record struct {
	Index        int            `json:"index"`
	Name         string         `json:"name"`
	UUID         string         `json:"uuid"`
	Serial       string         `json:"serial"`
	BusID        string         `json:"busId"`
	ProcBusID    string         `json:"procBusId"`
	MinorNumber  int            `json:"minorNumber"`
	Brand        nvml.BrandType `json:"brand"`
	ComputeMajor int            `json:"computeMajor"`
	ComputeMinor int            `json:"computeMinor"`
	PCI          nvml.PciInfo   `json:"-"`
}

// Spec describes the table to build.
type Spec struct {
	Count int
	Name  string
	// Mask selects which indices are visible; nil exposes all of them.
	Mask *bitset.BitSet
}

// Table is the read-only set of visible records.
type Table struct {
	records []Record
}

// New builds the table in one shot. Record i carries UUID
// "GPU-<i>-FAKE-UUID" and PCI bus <i>+1, matching what the proc tree
// publishes for the same index.
func New(spec Spec) (*Table, error) {
	if spec.Count <= 0 {
		return nil, fmt.Errorf("invalid GPU count %d", spec.Count)
	}
	name := spec.Name
	if name == "" {
		name = DefaultGPUName
	}

	records := make([]Record, 0, spec.Count)
	for i := 0; i < spec.Count; i++ {
		if spec.Mask != nil && !spec.Mask.Test(uint(i)) {
			continue
		}
		records = append(records, newRecord(i, name))
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("device mask selects no devices out of %d", spec.Count)
	}

	return &Table{records: records}, nil
}

func newRecord(index int, name string) Record {
	gpuUUID := fmt.Sprintf("GPU-%d-FAKE-UUID", index)
	bus := index + 1

	r := Record{
		Index:        index,
		Name:         name,
		UUID:         gpuUUID,
		Serial:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(gpuUUID)).String(),
		BusID:        fmt.Sprintf("%08X:%02X:00.0", 0, bus),
		ProcBusID:    fmt.Sprintf("%04X:%02X:00.0", 0, bus),
		MinorNumber:  index,
		Brand:        nvml.BRAND_TESLA,
		ComputeMajor: computeCapabilityMajor,
		ComputeMinor: computeCapabilityMinor,
	}
	r.PCI = nvml.PciInfo{
		Domain:         0,
		Bus:            uint32(bus),
		Device:         0,
		PciDeviceId:    pciDeviceID,
		PciSubSystemId: pciSubSystemID,
	}
	setBusID(&r.PCI, r.BusID)

	return r
}

// setBusID copies the textual bus id into the fixed-size NVML buffers.
func setBusID(pci *nvml.PciInfo, busID string) {
	for i := 0; i < len(pci.BusId); i++ {
		pci.BusId[i] = 0
	}
	for i := 0; i < len(pci.BusIdLegacy); i++ {
		pci.BusIdLegacy[i] = 0
	}
	for i := 0; i < len(busID) && i < len(pci.BusId)-1; i++ {
		pci.BusId[i] = int8(busID[i])
	}
	// The legacy field carries the short form without the domain prefix.
	legacy := busID
	if idx := strings.Index(busID, ":"); idx >= 4 {
		legacy = busID[idx-4:]
	}
	for i := 0; i < len(legacy) && i < len(pci.BusIdLegacy)-1; i++ {
		pci.BusIdLegacy[i] = int8(legacy[i])
	}
}

// Count returns the number of visible records.
func (t *Table) Count() int {
	return len(t.records)
}

// Record returns the record at enumeration position i within the visible
// set. The enumeration position and Record.Index differ when a mask hides
// some indices.
func (t *Table) Record(i int) (Record, bool) {
	if i < 0 || i >= len(t.records) {
		return Record{}, false
	}
	return t.records[i], true
}

// Records returns a copy of the visible records.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// ProcBusIDs lists the bus-address directory names the proc tree publishes.
func (t *Table) ProcBusIDs() []string {
	ids := make([]string, 0, len(t.records))
	for _, r := range t.records {
		ids = append(ids, r.ProcBusID)
	}
	return ids
}

// ParseMask parses a visible-device mask such as "0,2-3" into a bitset.
// An empty mask returns nil, meaning all devices are visible.
func ParseMask(mask string, count int) (*bitset.BitSet, error) {
	if mask == "" {
		return nil, nil
	}

	b := bitset.New(uint(count))
	for _, token := range strings.Split(mask, ",") {
		rangeTokens := strings.Split(strings.TrimSpace(token), "-")
		if len(rangeTokens) > 2 {
			return nil, fmt.Errorf("a range can only be '<number>-<number>', but found '%s'", token)
		}

		start, err := strconv.Atoi(rangeTokens[0])
		if err != nil {
			return nil, fmt.Errorf("invalid device index '%s': %w", rangeTokens[0], err)
		}
		end := start
		if len(rangeTokens) == 2 {
			end, err = strconv.Atoi(rangeTokens[1])
			if err != nil {
				return nil, fmt.Errorf("invalid device index '%s': %w", rangeTokens[1], err)
			}
		}
		if start > end {
			return nil, fmt.Errorf("invalid device range '%s'", token)
		}
		for i := start; i <= end; i++ {
			if i < 0 || i >= count {
				return nil, fmt.Errorf("device index %d out of range 0..%d", i, count-1)
			}
			b.Set(uint(i))
		}
	}

	return b, nil
}
