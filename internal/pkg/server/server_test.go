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

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakegpu/fakegpu/internal/pkg/appconfig"
	"github.com/fakegpu/fakegpu/internal/pkg/nvmlresponder"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		GPUCount:      4,
		DriverVersion: "535.104.05",
		Address:       ":0",
	}
}

func newTestServer(t *testing.T, init bool) *InventoryServer {
	t.Helper()

	cfg := testConfig()
	responder := nvmlresponder.New(cfg)
	if init {
		require.Equal(t, nvml.SUCCESS, responder.Init())
	}

	s, cleanup, err := NewInventoryServer(cfg, responder)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	return s
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, true)

	rec := httptest.NewRecorder()
	s.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHealthBeforeInit(t *testing.T) {
	s := newTestServer(t, false)

	rec := httptest.NewRecorder()
	s.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Uninitialized")
}

func TestInventory(t *testing.T) {
	s := newTestServer(t, true)

	rec := httptest.NewRecorder()
	s.Inventory(rec, httptest.NewRequest(http.MethodGet, "/inventory", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp InventoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "535.104.05", resp.DriverVersion)
	assert.Equal(t, 4, resp.Count)
	require.Len(t, resp.Devices, 4)
	assert.Equal(t, "GPU-0-FAKE-UUID", resp.Devices[0].UUID)
	assert.Equal(t, "GPU-3-FAKE-UUID", resp.Devices[3].UUID)
	assert.NotEmpty(t, resp.Hostname)
}

func TestInventoryBeforeInit(t *testing.T) {
	s := newTestServer(t, false)

	rec := httptest.NewRecorder()
	s.Inventory(rec, httptest.NewRequest(http.MethodGet, "/inventory", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVersion(t *testing.T) {
	s := newTestServer(t, true)

	rec := httptest.NewRecorder()
	s.Version(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Driver Version: 535.104.05\n", rec.Body.String())
}
