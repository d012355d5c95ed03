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

package ifc

import (
	"net/http"

	deviceifc "jinr.ru/greenlab/go-hostif/pkg/device/ifc"
)

type ControlServer interface {
	Run() error
	Close() error

	Device() deviceifc.Device
	State() State
}

type ApiServer interface {
	Run() error
	// Handler is the router wrapped with logging and panic recovery
	Handler() http.Handler
}

// RegRecord is the last value the control server has seen for a register
// element. Value is hexadecimal.
type RegRecord struct {
	Register string `json:"register"`
	Index    *int   `json:"index,omitempty"`
	Value    string `json:"value"`
	// Op is either get or set
	Op      string `json:"op"`
	Updated string `json:"updated"`
}

type State interface {
	SetReg(terminal string, rec *RegRecord) error
	GetReg(terminal, register string, index *int) (*RegRecord, error)
	GetRegAll(terminal string) ([]*RegRecord, error)
	Close() error
}
