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

package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/fakegpu/fakegpu/internal/pkg/appconfig"
)

func TestContextToConfigDefaults(t *testing.T) {
	app := NewApp("test")
	app.Action = func(c *cli.Context) error {
		config, err := contextToConfig(c)
		require.NoError(t, err)

		assert.Equal(t, 4, config.GPUCount)
		assert.Equal(t, "NVIDIA Tesla T4", config.GPUName)
		assert.Equal(t, "535.104.05", config.DriverVersion)
		assert.Equal(t, 12020, config.CudaDriverVersion)
		assert.Empty(t, config.DeviceMask)
		assert.Equal(t, ":9400", config.Address)
		assert.False(t, config.Trace)

		return nil
	}

	require.NoError(t, app.Run([]string{"fake-gpu"}))
}

func TestContextToConfigOverrides(t *testing.T) {
	app := NewApp("test")
	app.Action = func(c *cli.Context) error {
		config, err := contextToConfig(c)
		require.NoError(t, err)

		assert.Equal(t, 2, config.GPUCount)
		assert.Equal(t, "NVIDIA A100", config.GPUName)
		assert.Equal(t, "999.88.77", config.DriverVersion)
		assert.Equal(t, "0", config.DeviceMask)
		assert.True(t, config.Trace)

		return nil
	}

	require.NoError(t, app.Run([]string{
		"fake-gpu",
		"--gpus", "2",
		"--gpu-name", "NVIDIA A100",
		"--driver-version", "999.88.77",
		"--device-mask", "0",
		"--trace",
	}))
}

func TestContextToConfigRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "zero gpus",
			args: []string{"fake-gpu", "--gpus", "0"},
		},
		{
			name: "mask out of range",
			args: []string{"fake-gpu", "--gpus", "2", "--device-mask", "5"},
		},
		{
			name: "malformed mask",
			args: []string{"fake-gpu", "--gpus", "4", "--device-mask", "a-b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp("test")
			var config *appconfig.Config
			app.Action = func(c *cli.Context) error {
				var err error
				config, err = contextToConfig(c)
				return err
			}

			require.Error(t, app.Run(tt.args))
			assert.Nil(t, config)
		})
	}
}

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9400/health", healthURL(":9400"))
	assert.Equal(t, "http://127.0.0.1:8080/health", healthURL("127.0.0.1:8080"))
}

func TestInfoCommand(t *testing.T) {
	app := NewApp("test")
	out := &bytes.Buffer{}
	app.Writer = out

	require.NoError(t, app.Run([]string{"fake-gpu", "info"}))

	assert.Contains(t, out.String(), "Driver Version: 535.104.05")
	assert.Contains(t, out.String(), "CUDA Version:   12.2")
	assert.Contains(t, out.String(), "GPU-0-FAKE-UUID")
	assert.Contains(t, out.String(), "GPU-3-FAKE-UUID")
	assert.Contains(t, out.String(), "NVIDIA Tesla T4")
}
