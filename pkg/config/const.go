/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package config

import "time"

const (
	ConfigDir  = ".go-hostif"
	ConfigFile = "config"
	MapFile    = "terminals.yaml"
	DBFile     = "state.db"

	DefaultLogLevel = "info"
	DefaultBurst    = 128

	DefaultFastTimeout  = 250 * time.Millisecond
	DefaultSlowTimeout  = 2 * time.Second
	DefaultResetTimeout = 250 * time.Millisecond

	BackendSim = "sim"
	BackendUDP = "udp"

	DefaultBackend       = BackendSim
	DefaultDeviceAddress = "192.168.1.100"
	DefaultDevicePort    = 33300
	DefaultSlowLatency   = 5 * time.Millisecond

	DefaultApiIP   = "127.0.0.1"
	DefaultApiPort = 8000
)
