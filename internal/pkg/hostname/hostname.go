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

package hostname

import (
	osinterface "github.com/fakegpu/fakegpu/internal/pkg/os"
)

var os osinterface.OS = osinterface.RealOS{}

// GetHostname returns the hostname reported alongside the fake inventory.
func GetHostname() (string, error) {
	/* in kubernetes, the node name beats the generic pod hostname */
	if nodeName := os.Getenv("NODE_NAME"); nodeName != "" {
		return nodeName, nil
	}
	return os.Hostname()
}
