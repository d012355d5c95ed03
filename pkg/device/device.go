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

// Package device is the handle callers use to talk to a device: it owns the
// register map, the backend connection, the transaction engine and the
// streaming reader for the lifetime between Open and Close.
package device

import (
	"context"
	"math/big"
	"sync"

	"jinr.ru/greenlab/go-hostif/pkg/backend"
	"jinr.ru/greenlab/go-hostif/pkg/backend/sim"
	"jinr.ru/greenlab/go-hostif/pkg/backend/udp"
	"jinr.ru/greenlab/go-hostif/pkg/config"
	deviceifc "jinr.ru/greenlab/go-hostif/pkg/device/ifc"
	"jinr.ru/greenlab/go-hostif/pkg/engine"
	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
	"jinr.ru/greenlab/go-hostif/pkg/stream"
)

type Device struct {
	engine *engine.Engine
	reader *stream.Reader

	closeOnce sync.Once
	closeErr  error
}

var _ deviceifc.Device = &Device{}

// New returns a device handle on top of an open backend. The handle owns the
// backend from now on.
func New(m *regmap.Map, b backend.Backend, t engine.Timeouts, burst int) (*Device, error) {
	e, err := engine.New(m, b, t)
	if err != nil {
		return nil, err
	}
	return &Device{
		engine: e,
		reader: stream.New(e, burst),
	}, nil
}

// NewBackend connects to the backend the config selects
func NewBackend(cfg *config.Config, m *regmap.Map) (backend.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendUDP:
		return udp.Dial(cfg.Backend.Address, cfg.Backend.Port)
	case config.BackendSim:
		return sim.New(m, sim.Options{
			FastLatency: cfg.Backend.FastLatency,
			SlowLatency: cfg.Backend.SlowLatency,
			Stall:       cfg.Backend.StallTerminals,
		})
	}
	return nil, config.ErrInvalidConfig{What: "unknown backend kind " + cfg.Backend.Kind}
}

func Timeouts(cfg *config.Config) engine.Timeouts {
	return engine.Timeouts{
		Fast:  cfg.Timeouts.Fast,
		Slow:  cfg.Timeouts.Slow,
		Reset: cfg.Timeouts.Reset,
	}
}

// Open loads the register map and connects to the device described by the config
func Open(cfg *config.Config) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := regmap.LoadFile(cfg.MapPath)
	if err != nil {
		return nil, err
	}
	b, err := NewBackend(cfg, m)
	if err != nil {
		return nil, err
	}
	d, err := New(m, b, Timeouts(cfg), cfg.Burst)
	if err != nil {
		b.Close()
		return nil, err
	}
	log.Info("Device %s opened via %s backend", m.Name, cfg.Backend.Kind)
	return d, nil
}

func (d *Device) Map() *regmap.Map {
	return d.engine.Map()
}

func (d *Device) Set(ctx context.Context, ref regmap.Ref, value uint64) error {
	return d.engine.Set(ctx, ref, value)
}

func (d *Device) Get(ctx context.Context, ref regmap.Ref) (uint64, error) {
	return d.engine.Get(ctx, ref)
}

func (d *Device) SetBig(ctx context.Context, ref regmap.Ref, value *big.Int) error {
	return d.engine.SetBig(ctx, ref, value)
}

func (d *Device) GetBig(ctx context.Context, ref regmap.Ref) (*big.Int, error) {
	return d.engine.GetBig(ctx, ref)
}

func (d *Device) Read(ctx context.Context, ref regmap.Ref, length int) ([]uint64, error) {
	return d.reader.Read(ctx, ref, length)
}

func (d *Device) ReadInto(ctx context.Context, ref regmap.Ref, buf []uint64) error {
	return d.reader.ReadInto(ctx, ref, buf)
}

func (d *Device) Write(ctx context.Context, ref regmap.Ref, values []uint64) error {
	return d.reader.Write(ctx, ref, values)
}

func (d *Device) ReadBig(ctx context.Context, ref regmap.Ref, length int) ([]*big.Int, error) {
	return d.reader.ReadBig(ctx, ref, length)
}

func (d *Device) WriteBig(ctx context.Context, ref regmap.Ref, values []*big.Int) error {
	return d.reader.WriteBig(ctx, ref, values)
}

func (d *Device) ReadAddr(ctx context.Context, terminal string, addr uint32, n int) ([]uint64, error) {
	return d.reader.ReadAddr(ctx, terminal, addr, n)
}

func (d *Device) WriteAddr(ctx context.Context, terminal string, addr uint32, data []uint64) error {
	return d.reader.WriteAddr(ctx, terminal, addr, data)
}

// Init writes the declared initial value into every element of every
// writable register that has one. FIFO registers are skipped.
func (d *Device) Init(ctx context.Context) error {
	for _, t := range d.Map().Terminals() {
		for _, r := range t.Registers {
			if r.Init == nil || r.Fifo || !r.Mode.Writable() {
				continue
			}
			ref := regmap.NewRef(t.Name, r.Name)
			log.Debug("Init %s = 0x%s", ref, r.Init.Text(16))
			if err := d.initRegister(ctx, ref, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Device) initRegister(ctx context.Context, ref regmap.Ref, r *regmap.Register) error {
	values := make([]*big.Int, r.Array)
	for i := range values {
		values[i] = r.Init
	}
	return d.reader.WriteBig(ctx, ref, values)
}
