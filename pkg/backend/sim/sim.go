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

// Package sim is an in-process device that executes terminal transactions
// against beat memory laid out by a register map.
package sim

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"jinr.ru/greenlab/go-hostif/pkg/backend"
	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
)

type Options struct {
	// FastLatency and SlowLatency delay every response of a terminal of that class
	FastLatency time.Duration
	SlowLatency time.Duration
	// Stall names terminals that never signal read ready. Writes to them complete.
	Stall []string
}

type beatKey struct {
	terminal regmap.TerminalID
	addr     uint32
}

// fifo is either a running counter or a queue of written beats
type fifo struct {
	queue   bool
	counter uint64
	items   []uint64
}

type Sim struct {
	transactions uint64

	m    *regmap.Map
	opts Options

	mu      sync.Mutex
	mem     map[beatKey]uint64
	fifos   map[beatKey]*fifo
	stalled map[regmap.TerminalID]bool
	// stall is closed and replaced by Reset to release stalled transactions
	stall  chan struct{}
	closed bool
}

var _ backend.Backend = &Sim{}

// New powers up a simulated device for the map. Registers start with their
// init values.
func New(m *regmap.Map, opts Options) (*Sim, error) {
	s := &Sim{
		m:       m,
		opts:    opts,
		mem:     map[beatKey]uint64{},
		fifos:   map[beatKey]*fifo{},
		stalled: map[regmap.TerminalID]bool{},
		stall:   make(chan struct{}),
	}
	for _, name := range opts.Stall {
		t, err := m.Terminal(name)
		if err != nil {
			return nil, err
		}
		s.stalled[t.ID] = true
	}
	for _, t := range m.Terminals() {
		for _, r := range t.Registers {
			s.powerUp(t, r)
		}
	}
	log.Debug("Simulated device %s is up, stalled terminals: %v", m.Name, opts.Stall)
	return s, nil
}

func mask(dataWidth int) uint64 {
	if dataWidth >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(dataWidth) - 1
}

func (s *Sim) powerUp(t *regmap.Terminal, r *regmap.Register) {
	key := beatKey{terminal: t.ID, addr: r.Addr}
	if r.Fifo {
		f := &fifo{queue: r.Mode.Writable()}
		if r.Init != nil && !f.queue {
			f.counter = r.Init.Uint64() & mask(t.DataWidth)
		}
		s.fifos[key] = f
		return
	}
	if r.Init == nil || r.Init.Sign() == 0 {
		return
	}
	beatMask := new(big.Int).SetUint64(mask(t.DataWidth))
	for i := 0; i < r.Array; i++ {
		v := new(big.Int).Set(r.Init)
		for b := 0; b < r.Stride; b++ {
			addr := r.Addr + uint32(i*r.Stride+b)
			s.mem[beatKey{terminal: t.ID, addr: addr}] = new(big.Int).And(v, beatMask).Uint64()
			v.Rsh(v, uint(t.DataWidth))
		}
	}
}

// Transactions is the number of transactions the device has accepted
func (s *Sim) Transactions() uint64 {
	return atomic.LoadUint64(&s.transactions)
}

func (s *Sim) latency(c regmap.Class) time.Duration {
	if c == regmap.ClassSlow {
		return s.opts.SlowLatency
	}
	return s.opts.FastLatency
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitReady blocks a transaction that will never become ready until it is
// cancelled or the device is reset
func (s *Sim) waitReady(ctx context.Context, stall chan struct{}, req *backend.Request) error {
	log.Debug("Sim: transaction %s is not ready", req)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stall:
		return ErrReset{Seq: req.Seq}
	}
}

func (s *Sim) Transact(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed{}
	}
	stall := s.stall
	s.mu.Unlock()
	atomic.AddUint64(&s.transactions, 1)

	t, ok := s.m.TerminalByID(regmap.TerminalID(req.Terminal))
	if !ok {
		return nil, ErrUnknownTerminalID{ID: req.Terminal}
	}
	if req.Count < 1 || uint64(req.Addr)+uint64(req.Count) > t.AddrSpace() {
		return nil, regmap.ErrAddressOutOfRange{Terminal: t.Name, Addr: req.Addr, Beats: req.Count}
	}
	if req.Op == backend.OpWrite && len(req.Data) != req.Count {
		return nil, ErrBadRequest{Seq: req.Seq, What: "write data does not match count"}
	}
	if err := wait(ctx, s.latency(t.Class)); err != nil {
		return nil, err
	}

	if req.Op == backend.OpWrite {
		s.write(t, req)
		return &backend.Response{Seq: req.Seq}, nil
	}

	if s.stalled[t.ID] {
		return nil, s.waitReady(ctx, stall, req)
	}
	data, ready := s.read(t, req)
	if !ready {
		return nil, s.waitReady(ctx, stall, req)
	}
	return &backend.Response{Seq: req.Seq, Data: data}, nil
}

func (s *Sim) write(t *regmap.Terminal, req *backend.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := mask(t.DataWidth)
	for i, beat := range req.Data {
		key := beatKey{terminal: t.ID, addr: req.Addr + uint32(i)}
		if f, ok := s.fifos[key]; ok {
			if f.queue {
				f.items = append(f.items, beat&m)
			} else {
				f.counter = beat & m
			}
			continue
		}
		s.mem[key] = beat & m
	}
}

// read returns false when a queue does not hold enough items. Nothing is
// consumed in that case.
func (s *Sim) read(t *regmap.Terminal, req *backend.Request) ([]uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := mask(t.DataWidth)

	need := map[*fifo]int{}
	for i := 0; i < req.Count; i++ {
		if f, ok := s.fifos[beatKey{terminal: t.ID, addr: req.Addr + uint32(i)}]; ok && f.queue {
			need[f]++
		}
	}
	for f, n := range need {
		if len(f.items) < n {
			return nil, false
		}
	}

	data := make([]uint64, req.Count)
	for i := range data {
		key := beatKey{terminal: t.ID, addr: req.Addr + uint32(i)}
		f, ok := s.fifos[key]
		switch {
		case !ok:
			data[i] = s.mem[key]
		case f.queue:
			data[i] = f.items[0]
			f.items = f.items[1:]
		default:
			data[i] = f.counter
			f.counter = (f.counter + 1) & m
		}
	}
	return data, true
}

// Reset releases every stalled transaction
func (s *Sim) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed{}
	}
	close(s.stall)
	s.stall = make(chan struct{})
	log.Debug("Sim: device %s reset", s.m.Name)
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stall)
	return nil
}
