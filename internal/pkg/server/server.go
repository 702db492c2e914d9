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

// Package server exposes what the fake is currently publishing: the
// device inventory, the advertised driver version, and counters of the
// management-API calls the tooling under test has made.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/exporter-toolkit/web"

	"github.com/fakegpu/fakegpu/internal/pkg/appconfig"
	"github.com/fakegpu/fakegpu/internal/pkg/devicetable"
	"github.com/fakegpu/fakegpu/internal/pkg/hostname"
	"github.com/fakegpu/fakegpu/internal/pkg/logging"
	"github.com/fakegpu/fakegpu/internal/pkg/nvmlresponder"
	"github.com/fakegpu/fakegpu/internal/pkg/proctree"
	"github.com/fakegpu/fakegpu/internal/pkg/utils"
)

const internalServerError = "internal server error"

// InventoryServer serves the fake GPU inventory over HTTP.
type InventoryServer struct {
	server    *http.Server
	webConfig *web.FlagConfig
	config    *appconfig.Config
	responder *nvmlresponder.Responder
	hostname  string
}

// InventoryResponse is the /inventory payload.
type InventoryResponse struct {
	Hostname      string               `json:"hostname"`
	DriverVersion string               `json:"driverVersion"`
	Count         int                  `json:"count"`
	Devices       []devicetable.Record `json:"devices"`
}

func NewInventoryServer(
	c *appconfig.Config,
	responder *nvmlresponder.Responder,
) (*InventoryServer, func(), error) {
	router := mux.NewRouter()

	host, err := hostname.GetHostname()
	if err != nil {
		return nil, func() {}, err
	}

	serverv1 := &InventoryServer{
		server: &http.Server{
			Addr:         c.Address,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		webConfig: &web.FlagConfig{
			WebListenAddresses: &[]string{c.Address},
			WebSystemdSocket:   &c.WebSystemdSocket,
			WebConfigFile:      &c.WebConfigFile,
		},
		config:    c,
		responder: responder,
		hostname:  host,
	}

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`<html>
			<head><title>Fake GPU</title></head>
			<body>
			<h1>Fake GPU</h1>
			<p><a href="./inventory">Inventory</a></p>
			<p><a href="./version">Version</a></p>
			<p><a href="./metrics">Metrics</a></p>
			</body>
			</html>`))
		if err != nil {
			slog.Error("Failed to write response.", slog.String(logging.ErrorKey, err.Error()))
			http.Error(w, internalServerError, http.StatusInternalServerError)
			return
		}
	})

	router.HandleFunc("/health", serverv1.Health)
	router.HandleFunc("/inventory", serverv1.Inventory)
	router.HandleFunc("/version", serverv1.Version)
	router.Handle("/metrics", promhttp.Handler())

	return serverv1, func() {}, nil
}

func (s *InventoryServer) Run(ctx context.Context, stop chan interface{}, wg *sync.WaitGroup) {
	defer wg.Done()

	var httpwg sync.WaitGroup
	httpwg.Add(1)
	go func() {
		defer httpwg.Done()
		slog.Info("Starting webserver")
		if err := web.ListenAndServe(s.server, s.webConfig, slog.Default()); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to Listen and Serve HTTP server.", slog.String(logging.ErrorKey, err.Error()))
			s.fatal()
		}
	}()

	<-stop
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("Failed to shutdown HTTP server.", slog.String(logging.ErrorKey, err.Error()))
		s.fatal()
	}

	if err := utils.WaitWithTimeout(&httpwg, 3*time.Second); err != nil {
		slog.Error("Failed waiting for HTTP server to shutdown.", slog.String(logging.ErrorKey, err.Error()))
		s.fatal()
	}
}

func (s *InventoryServer) fatal() {
	os.Exit(1)
}

func (s *InventoryServer) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, ret := s.responder.Inventory(); ret != nvml.SUCCESS {
		http.Error(w, nvmlresponder.ErrorString(ret), http.StatusServiceUnavailable)
		return
	}
	_, err := w.Write([]byte("OK"))
	if err != nil {
		slog.Error("Failed to write response.", slog.String(logging.ErrorKey, err.Error()))
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

func (s *InventoryServer) Inventory(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")

	records, ret := s.responder.Inventory()
	if ret != nvml.SUCCESS {
		http.Error(w, nvmlresponder.ErrorString(ret), http.StatusServiceUnavailable)
		return
	}

	resp := InventoryResponse{
		Hostname:      s.hostname,
		DriverVersion: s.responder.DriverVersion(),
		Count:         len(records),
		Devices:       records,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write response.", slog.String(logging.ErrorKey, err.Error()))
		http.Error(w, internalServerError, http.StatusInternalServerError)
	}
}

func (s *InventoryServer) Version(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, err := w.Write([]byte(proctree.VersionLine(s.responder.DriverVersion())))
	if err != nil {
		slog.Error("Failed to write response.", slog.String(logging.ErrorKey, err.Error()))
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}
