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
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/avast/retry-go/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/fakegpu/fakegpu/internal/pkg/appconfig"
	"github.com/fakegpu/fakegpu/internal/pkg/devicetable"
	"github.com/fakegpu/fakegpu/internal/pkg/logging"
	"github.com/fakegpu/fakegpu/internal/pkg/nvmlresponder"
	"github.com/fakegpu/fakegpu/internal/pkg/proctree"
	"github.com/fakegpu/fakegpu/internal/pkg/server"
	"github.com/fakegpu/fakegpu/internal/pkg/utils"
)

const (
	CLIGPUCount          = "gpus"
	CLIGPUName           = "gpu-name"
	CLIDriverVersion     = "driver-version"
	CLICudaDriverVersion = "cuda-version"
	CLIDeviceMask        = "device-mask"
	CLIProcRoot          = "proc-root"
	CLIAddress           = "address"
	CLIWebSystemdSocket  = "web-systemd-socket"
	CLIWebConfigFile     = "web-config-file"
	CLITrace             = "trace"
)

func NewApp(buildVersion ...string) *cli.App {
	c := cli.NewApp()
	c.Name = "fake-gpu"
	c.Usage = "Fakes the presence of NVIDIA GPUs for GPU-aware container tooling"
	if len(buildVersion) == 0 {
		buildVersion = append(buildVersion, "")
	}
	c.Version = buildVersion[0]

	c.Flags = []cli.Flag{
		&cli.IntFlag{
			Name:    CLIGPUCount,
			Aliases: []string{"g"},
			Value:   devicetable.DefaultGPUCount,
			Usage:   "Number of fake GPUs to expose",
			EnvVars: []string{"FAKE_GPU_COUNT"},
		},
		&cli.StringFlag{
			Name:    CLIGPUName,
			Value:   devicetable.DefaultGPUName,
			Usage:   "Device name reported for every fake GPU",
			EnvVars: []string{"FAKE_GPU_NAME"},
		},
		&cli.StringFlag{
			Name:    CLIDriverVersion,
			Value:   nvmlresponder.DefaultDriverVersion,
			Usage:   "Driver version advertised by the responder and the proc tree",
			EnvVars: []string{"FAKE_GPU_DRIVER_VERSION"},
		},
		&cli.IntFlag{
			Name:    CLICudaDriverVersion,
			Value:   nvmlresponder.DefaultCudaDriverVersion,
			Usage:   "CUDA driver version in NVML integer encoding (12020 = 12.2)",
			EnvVars: []string{"FAKE_GPU_CUDA_VERSION"},
		},
		&cli.StringFlag{
			Name:    CLIDeviceMask,
			Value:   "",
			Usage:   "Expose only these device indices, e.g. '0,2-3'. Empty exposes all.",
			EnvVars: []string{"FAKE_GPU_DEVICE_MASK"},
		},
		&cli.StringFlag{
			Name:    CLIProcRoot,
			Value:   "/run/fake-gpu/proc",
			Usage:   "Directory to publish the driver/nvidia subtree under. Empty disables publication.",
			EnvVars: []string{"FAKE_GPU_PROC_ROOT"},
		},
		&cli.StringFlag{
			Name:    CLIAddress,
			Aliases: []string{"a"},
			Value:   ":9400",
			Usage:   "Address",
			EnvVars: []string{"FAKE_GPU_LISTEN"},
		},
		&cli.BoolFlag{
			Name:    CLIWebSystemdSocket,
			Value:   false,
			Usage:   "Use systemd socket activation listeners instead of port listeners (Linux only).",
			EnvVars: []string{"FAKE_GPU_SYSTEMD_SOCKET"},
		},
		&cli.StringFlag{
			Name:    CLIWebConfigFile,
			Value:   "",
			Usage:   "TLS config file following webConfig spec.",
			EnvVars: []string{"FAKE_GPU_WEB_CONFIG_FILE"},
		},
		&cli.BoolFlag{
			Name:    CLITrace,
			Value:   false,
			Usage:   "Log every management-API call to stderr",
			EnvVars: []string{logging.TraceEnvVar},
		},
	}

	c.Action = func(c *cli.Context) error {
		return action(c)
	}

	c.Commands = []*cli.Command{
		{
			Name:   "info",
			Usage:  "Print the fake device table the way GPU tooling would see it",
			Action: infoAction,
		},
	}

	return c
}

func newOSWatcher(sigs ...os.Signal) chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, sigs...)

	return sigChan
}

func action(c *cli.Context) error {
restart:

	logrus.Info("Starting fake-gpu")
	config, err := contextToConfig(c)
	if err != nil {
		return err
	}

	logging.SetupGlobalLogger(os.Stderr, &slog.HandlerOptions{})

	var cleanups []func()
	defer func() {
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()

	if config.ProcRoot != "" {
		mask, err := devicetable.ParseMask(config.DeviceMask, config.GPUCount)
		if err != nil {
			return err
		}
		table, err := devicetable.New(devicetable.Spec{
			Count: config.GPUCount,
			Name:  config.GPUName,
			Mask:  mask,
		})
		if err != nil {
			return err
		}

		publisher := proctree.New(config.ProcRoot, config.DriverVersion, table.ProcBusIDs())
		if err := publisher.Publish(); err != nil {
			return err
		}
		logrus.Info("Published proc tree at ", publisher.Dir())
		cleanups = append(cleanups, func() {
			if err := publisher.Remove(); err != nil {
				logrus.Error("Failed to remove proc tree: ", err)
			}
		})
	}

	responder := nvmlresponder.Initialize(config)
	if ret := responder.Init(); ret != nvml.SUCCESS {
		cleanups = utils.CleanupOnError(cleanups)
		return fmt.Errorf("failed to initialize responder: %s", nvmlresponder.ErrorString(ret))
	}
	logrus.Info("NVML responder successfully initialized!")
	cleanups = append(cleanups, nvmlresponder.Cleanup)

	inventoryServer, serverCleanup, err := server.NewInventoryServer(config, responder)
	if err != nil {
		cleanups = utils.CleanupOnError(cleanups)
		return err
	}
	cleanups = append(cleanups, serverCleanup)

	var wg sync.WaitGroup
	stop := make(chan interface{})

	wg.Add(1)
	go inventoryServer.Run(context.Background(), stop, &wg)

	if !config.WebSystemdSocket && config.WebConfigFile == "" {
		if err := waitForHealthy(config.Address); err != nil {
			logrus.Warn("Inventory server did not report healthy: ", err)
		}
	}

	sigs := newOSWatcher(syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	for {
		sig := <-sigs
		close(stop)
		if err := utils.WaitWithTimeout(&wg, time.Second*2); err != nil {
			logrus.Fatal(err)
		}

		for _, cleanup := range cleanups {
			cleanup()
		}
		cleanups = nil

		if sig == syscall.SIGHUP {
			goto restart
		}

		return nil
	}
}

// waitForHealthy polls the health endpoint until the server comes up.
func waitForHealthy(address string) error {
	return retry.Do(
		func() error {
			resp, err := http.Get(healthURL(address))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(10),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(time.Second),
	)
}

func healthURL(address string) string {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "http://localhost" + address + "/health"
	}
	if host == "" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/health"
}

func infoAction(c *cli.Context) error {
	config, err := contextToConfig(c)
	if err != nil {
		return err
	}

	r := nvmlresponder.New(config)
	if ret := r.Init(); ret != nvml.SUCCESS {
		return fmt.Errorf("failed to initialize responder: %s", nvmlresponder.ErrorString(ret))
	}
	defer r.Shutdown()

	version, _ := r.SystemGetDriverVersion()
	cuda, _ := r.SystemGetCudaDriverVersion()
	count, _ := r.DeviceGetCount()

	fmt.Fprintf(c.App.Writer, "Driver Version: %s\n", version)
	fmt.Fprintf(c.App.Writer, "CUDA Version:   %d.%d\n", cuda/1000, (cuda%1000)/10)
	fmt.Fprintf(c.App.Writer, "Device count:   %d\n\n", count)

	table := tablewriter.NewWriter(c.App.Writer)
	table.SetHeader([]string{"Index", "Name", "UUID", "Bus ID", "CC", "Minor"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

	for i := 0; i < count; i++ {
		dev, ret := r.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return fmt.Errorf("failed to get device %d: %s", i, nvmlresponder.ErrorString(ret))
		}

		index, _ := dev.GetIndex()
		name, _ := dev.GetName()
		uuid, _ := dev.GetUUID()
		pci, _ := dev.GetPciInfo()
		major, minor, _ := dev.GetCudaComputeCapability()
		minorNumber, _ := dev.GetMinorNumber()

		table.Append([]string{
			strconv.Itoa(index),
			name,
			uuid,
			busIDString(pci),
			fmt.Sprintf("%d.%d", major, minor),
			strconv.Itoa(minorNumber),
		})
	}
	table.Render()

	return nil
}

func busIDString(pci nvml.PciInfo) string {
	var out []byte
	for _, c := range pci.BusId {
		if c == 0 {
			break
		}
		out = append(out, byte(c))
	}
	return string(out)
}

func contextToConfig(c *cli.Context) (*appconfig.Config, error) {
	config := &appconfig.Config{
		GPUCount:          c.Int(CLIGPUCount),
		GPUName:           c.String(CLIGPUName),
		DriverVersion:     c.String(CLIDriverVersion),
		CudaDriverVersion: c.Int(CLICudaDriverVersion),
		DeviceMask:        c.String(CLIDeviceMask),
		ProcRoot:          c.String(CLIProcRoot),
		Address:           c.String(CLIAddress),
		WebSystemdSocket:  c.Bool(CLIWebSystemdSocket),
		WebConfigFile:     c.String(CLIWebConfigFile),
		Trace:             c.Bool(CLITrace),
	}

	if config.GPUCount <= 0 {
		return nil, fmt.Errorf("invalid GPU count %d", config.GPUCount)
	}
	if _, err := devicetable.ParseMask(config.DeviceMask, config.GPUCount); err != nil {
		return nil, err
	}

	return config, nil
}
