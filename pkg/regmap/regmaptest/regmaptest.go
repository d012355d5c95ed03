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

// Package regmaptest provides the reference register map used by tests
// across the module.
package regmaptest

import (
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
)

const (
	BufLength = 160
	// StallTerminal never signals read ready on the simulated device
	StallTerminal = "NeverReadReady"
)

// MapYAML is the reference device: a fast and a slow terminal with buffers,
// scalar and wide registers, two register-less RAM terminals, a terminal
// that never becomes read ready and a terminal with FIFO registers.
const MapYAML = `
name: Devices
comment: My Test Device List
terminals:
- name: Fast
  comment: Fast test endpoint
  class: fast
  addr_width: 16
  data_width: 16
  registers:
  - name: fast_buf
    comment: test buffer
    mode: write
    width: 16
    array: 160
    init: "0x78AB"
  - name: fast_reg
    mode: write
    width: 16
    init: "10"
  - name: wide_reg
    mode: write
    width: 73
    init: "0x123fedcba9876543211"
- name: Slow
  comment: Slow test endpoint
  class: slow
  addr_width: 16
  data_width: 16
  registers:
  - name: slow_buf
    mode: write
    width: 16
    array: 160
    init: "0x6543"
  - name: slow_reg
    mode: write
    width: 16
    init: "11"
- name: FastRAM
  comment: Fast RAM Terminal
  class: fast
  addr_width: 16
  data_width: 16
- name: SlowRAM
  comment: Slow RAM Terminal
  class: slow
  addr_width: 16
  data_width: 16
- name: NeverReadReady
  comment: Never read ready test endpoint
  class: fast
  addr_width: 16
  data_width: 16
  registers:
  - name: reg2
    mode: write
    width: 16
    init: "0x78AB"
  - name: reg3
    mode: write
    width: 16
    init: "10"
- name: Fifo
  comment: Streaming endpoint
  class: fast
  addr_width: 16
  data_width: 16
  registers:
  - name: counter
    comment: running counter, advances on every read
    mode: read
    width: 16
    fifo: true
  - name: queue
    comment: data queue, written by the host and drained by reads
    mode: write
    width: 16
    fifo: true
  - name: status
    mode: read
    width: 8
    init: "0x5A"
`

// NewMap returns a fresh frozen copy of the reference map
func NewMap() *regmap.Map {
	m, err := regmap.Parse([]byte(MapYAML))
	if err != nil {
		panic(err)
	}
	return m
}
