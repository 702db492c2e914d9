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

package nvmlresponder_test

import (
	"testing"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fakegpu/fakegpu/internal/pkg/appconfig"
	"github.com/fakegpu/fakegpu/internal/pkg/nvmlresponder"
)

func TestResponderSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "NVML Responder Suite")
}

var _ = Describe("Responder state machine", func() {
	var responder *nvmlresponder.Responder

	BeforeEach(func() {
		responder = nvmlresponder.New(&appconfig.Config{GPUCount: 2})
	})

	Context("when uninitialized", func() {
		It("rejects every getter", func() {
			_, ret := responder.DeviceGetCount()
			Expect(ret).To(Equal(nvml.ERROR_UNINITIALIZED))

			_, ret = responder.SystemGetDriverVersion()
			Expect(ret).To(Equal(nvml.ERROR_UNINITIALIZED))
		})

		It("rejects Shutdown", func() {
			Expect(responder.Shutdown()).To(Equal(nvml.ERROR_UNINITIALIZED))
		})

		It("accepts Init exactly once", func() {
			Expect(responder.Init()).To(Equal(nvml.SUCCESS))
			Expect(responder.Init()).To(Equal(nvml.ERROR_ALREADY_INITIALIZED))
		})
	})

	Context("when initialized", func() {
		BeforeEach(func() {
			Expect(responder.Init()).To(Equal(nvml.SUCCESS))
		})

		It("serves the configured device count", func() {
			count, ret := responder.DeviceGetCount()
			Expect(ret).To(Equal(nvml.SUCCESS))
			Expect(count).To(Equal(2))
		})

		It("round-trips through Shutdown back to uninitialized", func() {
			Expect(responder.Shutdown()).To(Equal(nvml.SUCCESS))

			_, ret := responder.DeviceGetCount()
			Expect(ret).To(Equal(nvml.ERROR_UNINITIALIZED))

			Expect(responder.Init()).To(Equal(nvml.SUCCESS))
		})
	})
})
