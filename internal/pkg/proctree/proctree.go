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

// Package proctree materializes the driver/nvidia subtree the real kernel
// driver publishes under /proc. The tree is written below a configurable
// root so a container runtime can bind-mount it over /proc/driver/nvidia.
package proctree

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	osinterface "github.com/fakegpu/fakegpu/internal/pkg/os"
)

var os osinterface.OS = osinterface.RealOS{}

// Publisher owns one published subtree for its whole activation period.
type Publisher struct {
	root          string
	driverVersion string
	busIDs        []string
}

// New returns a Publisher for the given root. busIDs become the
// presence-only directories under gpus/.
func New(root, driverVersion string, busIDs []string) *Publisher {
	return &Publisher{
		root:          root,
		driverVersion: driverVersion,
		busIDs:        busIDs,
	}
}

// VersionLine renders the content of the version file, matching the line
// the kernel driver exposes.
func VersionLine(driverVersion string) string {
	return fmt.Sprintf("Driver Version: %s\n", driverVersion)
}

// Dir is the root of the published subtree: <root>/driver/nvidia.
func (p *Publisher) Dir() string {
	return filepath.Join(p.root, "driver", "nvidia")
}

// VersionPath is the location of the readable version file.
func (p *Publisher) VersionPath() string {
	return filepath.Join(p.Dir(), "version")
}

// Publish creates the whole subtree. Any failure removes partial state
// and aborts; there is no created-but-incomplete state to recover from.
func (p *Publisher) Publish() error {
	dir := p.Dir()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	if err := os.WriteFile(p.VersionPath(), []byte(VersionLine(p.driverVersion)), 0o444); err != nil {
		p.removeQuietly()
		return errors.Wrapf(err, "failed to write %s", p.VersionPath())
	}
	for _, busID := range p.busIDs {
		gpuDir := filepath.Join(dir, "gpus", busID)
		if err := os.MkdirAll(gpuDir, 0o755); err != nil {
			p.removeQuietly()
			return errors.Wrapf(err, "failed to create %s", gpuDir)
		}
	}

	return nil
}

// Remove recursively deletes the published subtree. Removing an absent
// tree is not an error.
func (p *Publisher) Remove() error {
	if err := os.RemoveAll(p.Dir()); err != nil {
		return errors.Wrapf(err, "failed to remove %s", p.Dir())
	}
	// The parent driver/ directory may carry entries published by others.
	_ = os.Remove(filepath.Join(p.root, "driver"))
	return nil
}

// Published reports whether the version file currently exists.
func (p *Publisher) Published() bool {
	_, err := os.Stat(p.VersionPath())
	return err == nil
}

func (p *Publisher) removeQuietly() {
	_ = os.RemoveAll(p.Dir())
}
