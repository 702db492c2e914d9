/*
 * Copyright (c) 2025, the fake-gpu authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package appconfig

type Config struct {
	GPUCount          int
	GPUName           string
	DriverVersion     string
	CudaDriverVersion int
	DeviceMask        string // subset of indices to expose, e.g. "0,2-3"; empty means all
	ProcRoot          string
	Address           string
	WebSystemdSocket  bool
	WebConfigFile     string
	Trace             bool
}
