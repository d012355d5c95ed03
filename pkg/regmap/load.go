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

package regmap

import (
	"fmt"
	"io/ioutil"
	"math/big"

	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-hostif/pkg/log"
)

type RegisterSpec struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
	Mode    string `json:"mode"`
	Width   int    `json:"width"`
	// Array defaults to 1 when omitted
	Array *int `json:"array,omitempty"`
	// Init accepts any base understood by big.Int, e.g. 0x78AB
	Init string `json:"init,omitempty"`
	Fifo bool   `json:"fifo,omitempty"`
}

type TerminalSpec struct {
	Name      string         `json:"name"`
	Comment   string         `json:"comment,omitempty"`
	Class     string         `json:"class,omitempty"`
	AddrWidth int            `json:"addr_width"`
	DataWidth int            `json:"data_width"`
	Registers []RegisterSpec `json:"registers,omitempty"`
}

// MapSpec is the file representation of a register map
type MapSpec struct {
	Name      string         `json:"name"`
	Comment   string         `json:"comment,omitempty"`
	Terminals []TerminalSpec `json:"terminals"`
}

func (rs RegisterSpec) register() (Register, error) {
	mode, err := ParseMode(rs.Mode)
	if err != nil {
		return Register{}, fmt.Errorf("register %s: %w", rs.Name, err)
	}
	r := Register{
		Name:    rs.Name,
		Comment: rs.Comment,
		Width:   rs.Width,
		Mode:    mode,
		Array:   1,
		Fifo:    rs.Fifo,
	}
	if rs.Array != nil {
		r.Array = *rs.Array
	}
	if rs.Init != "" {
		init, ok := new(big.Int).SetString(rs.Init, 0)
		if !ok {
			return Register{}, ErrInvalidInit{Name: rs.Name, What: fmt.Sprintf("can not parse %q", rs.Init)}
		}
		r.Init = init
	}
	return r, nil
}

// Build declares every terminal and register of the map file into a new map and
// freezes it.
func (s *MapSpec) Build() (*Map, error) {
	m := New(s.Name)
	for _, ts := range s.Terminals {
		class, err := ParseClass(ts.Class)
		if err != nil {
			return nil, fmt.Errorf("terminal %s: %w", ts.Name, err)
		}
		if _, err := m.Declare(Terminal{
			Name:      ts.Name,
			Comment:   ts.Comment,
			AddrWidth: ts.AddrWidth,
			DataWidth: ts.DataWidth,
			Class:     class,
		}); err != nil {
			return nil, err
		}
		for _, rs := range ts.Registers {
			r, err := rs.register()
			if err != nil {
				return nil, err
			}
			if err := m.DeclareRegister(ts.Name, r); err != nil {
				return nil, err
			}
		}
	}
	m.Freeze()
	return m, nil
}

// Parse builds a frozen map from its YAML (or JSON) description
func Parse(data []byte) (*Map, error) {
	spec := &MapSpec{}
	if err := yaml.UnmarshalStrict(data, spec); err != nil {
		return nil, err
	}
	return spec.Build()
}

func LoadFile(path string) (*Map, error) {
	log.Debug("Loading register map: %s", path)
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info("Register map %s loaded: %d terminals", m.Name, len(m.terminals))
	return m, nil
}
