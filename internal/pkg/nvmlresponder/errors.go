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

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// ErrorString mirrors nvmlErrorString. It works in any state, matching
// the reference responder, and keeps its exact wording.
func ErrorString(ret nvml.Return) string {
	switch ret {
	case nvml.SUCCESS:
		return "Success"
	case nvml.ERROR_UNINITIALIZED:
		return "Uninitialized"
	case nvml.ERROR_INVALID_ARGUMENT:
		return "Invalid Argument"
	case nvml.ERROR_NOT_SUPPORTED:
		return "Not Supported"
	case nvml.ERROR_NO_PERMISSION:
		return "No Permission"
	case nvml.ERROR_ALREADY_INITIALIZED:
		return "Already Initialized"
	case nvml.ERROR_NOT_FOUND:
		return "Not Found"
	case nvml.ERROR_INSUFFICIENT_SIZE:
		return "Insufficient Size"
	case nvml.ERROR_DRIVER_NOT_LOADED:
		return "Driver Not Loaded"
	case nvml.ERROR_FUNCTION_NOT_FOUND:
		return "Function Not Found"
	default:
		return "Unknown Error"
	}
}
