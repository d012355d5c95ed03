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

// Package engine issues terminal transactions against a backend.
//
// Only one transaction is in flight at a time. Every transaction gets a
// deadline that depends on the timing class of its terminal. When a
// transaction fails for any reason the engine resets the backend and drops
// whatever the abandoned transaction returns later, so the next call starts
// from an idle transport.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"jinr.ru/greenlab/go-hostif/pkg/backend"
	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
)

type Timeouts struct {
	Fast  time.Duration
	Slow  time.Duration
	Reset time.Duration
}

func (t Timeouts) Validate() error {
	if t.Fast <= 0 || t.Slow < t.Fast || t.Reset <= 0 {
		return ErrInvalidTimeouts{Timeouts: t}
	}
	return nil
}

// For returns the transaction deadline of a terminal class
func (t Timeouts) For(c regmap.Class) time.Duration {
	if c == regmap.ClassSlow {
		return t.Slow
	}
	return t.Fast
}

type result struct {
	resp *backend.Response
	err  error
}

type Engine struct {
	m        *regmap.Map
	b        backend.Backend
	timeouts Timeouts

	mu     sync.Mutex
	seq    uint16
	closed bool
}

// New freezes the map and returns an engine owning the backend
func New(m *regmap.Map, b backend.Backend, t Timeouts) (*Engine, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	m.Freeze()
	return &Engine{
		m:        m,
		b:        b,
		timeouts: t,
	}, nil
}

func (e *Engine) Map() *regmap.Map {
	return e.m
}

func (e *Engine) Timeouts() Timeouts {
	return e.timeouts
}

func (e *Engine) nextSeq() uint16 {
	e.seq++
	return e.seq
}

// transact runs one transaction. It is the only place the backend is
// called from apart from Close.
func (e *Engine) transact(ctx context.Context, t *regmap.Terminal, op backend.Op, addr uint32, count int, data []uint64) ([]uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := &backend.Request{
		Seq:      e.nextSeq(),
		Op:       op,
		Terminal: uint16(t.ID),
		Addr:     addr,
		Count:    count,
		Data:     data,
	}
	timeout := e.timeouts.For(t.Class)
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Debug("Transaction %s (%s)", req, t.Name)
	done := make(chan result, 1)
	go func() {
		resp, err := e.b.Transact(tctx, req)
		done <- result{resp: resp, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-tctx.Done():
		log.Warning("Transaction %s on %s abandoned: %s", req, t.Name, tctx.Err())
		e.recover(req, done)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout{Terminal: t.Name, Op: op, After: timeout}
	}

	err := res.err
	switch {
	case err != nil:
	case res.resp == nil:
		err = errors.New("backend returned no response")
	case res.resp.Seq != req.Seq:
		err = ErrStaleResponse{Want: req.Seq, Got: res.resp.Seq}
	case op == backend.OpRead && len(res.resp.Data) != count:
		err = ErrResponseLength{Want: count, Got: len(res.resp.Data)}
	}
	if err != nil {
		log.Warning("Transaction %s on %s failed: %s", req, t.Name, err)
		e.recover(req, nil)
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout{Terminal: t.Name, Op: op, After: timeout}
		}
		return nil, err
	}
	return res.resp.Data, nil
}

// recover returns the transport to idle. The reset and the wait for the
// abandoned transaction share one bounded window, the engine never blocks
// on the backend longer than that.
func (e *Engine) recover(req *backend.Request, done <-chan result) {
	rctx, cancel := context.WithTimeout(context.Background(), e.timeouts.Reset)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- e.b.Reset(rctx)
	}()
	select {
	case err := <-errc:
		if err != nil {
			log.Warning("Transport reset failed: %s", err)
		} else {
			log.Debug("Transport reset after transaction #%d", req.Seq)
		}
	case <-rctx.Done():
		log.Warning("Transport reset not completed within %s", e.timeouts.Reset)
	}

	if done == nil {
		return
	}
	select {
	case res := <-done:
		if res.err == nil && res.resp != nil {
			log.Debug("Discarded stale response #%d to transaction #%d", res.resp.Seq, req.Seq)
		} else {
			log.Debug("Abandoned transaction #%d finished: %v", req.Seq, res.err)
		}
	case <-rctx.Done():
		// The buffered channel lets the goroutine finish later; its
		// result is never seen by anyone.
		log.Warning("Abandoned transaction #%d is still pending on the backend", req.Seq)
	}
}

func (e *Engine) terminal(id regmap.TerminalID) (*regmap.Terminal, error) {
	t, ok := e.m.TerminalByID(id)
	if !ok {
		return nil, regmap.ErrUnknownTerminal{Terminal: fmt.Sprintf("#%d", id)}
	}
	return t, nil
}

// ReadBeats reads the beats of a resolved address in one transaction
func (e *Engine) ReadBeats(ctx context.Context, w regmap.WireAddr) ([]uint64, error) {
	t, err := e.terminal(w.Terminal)
	if err != nil {
		return nil, err
	}
	return e.transact(ctx, t, backend.OpRead, w.Addr, w.Beats, nil)
}

// WriteBeats writes data to a resolved address in one transaction. Every beat
// must fit the terminal data width.
func (e *Engine) WriteBeats(ctx context.Context, w regmap.WireAddr, data []uint64) error {
	t, err := e.terminal(w.Terminal)
	if err != nil {
		return err
	}
	if len(data) != w.Beats {
		return ErrPayloadLength{Want: w.Beats, Got: len(data)}
	}
	for _, beat := range data {
		if !FitsWidth(beat, t.DataWidth) {
			return ErrValueOutOfRange{Terminal: t.Name, Width: t.DataWidth, Value: strconv.FormatUint(beat, 16)}
		}
	}
	_, err = e.transact(ctx, t, backend.OpWrite, w.Addr, w.Beats, data)
	return err
}

func (e *Engine) element(ref regmap.Ref) (*regmap.Terminal, *regmap.Register, regmap.WireAddr, error) {
	w, err := e.m.ResolveElement(ref)
	if err != nil {
		return nil, nil, w, err
	}
	t, r, err := e.m.Lookup(ref)
	return t, r, w, err
}

// Set writes a value to a single register element
func (e *Engine) Set(ctx context.Context, ref regmap.Ref, v uint64) error {
	return e.SetBig(ctx, ref, new(big.Int).SetUint64(v))
}

// SetBig writes a value to a single register element of any width
func (e *Engine) SetBig(ctx context.Context, ref regmap.Ref, v *big.Int) error {
	t, r, w, err := e.element(ref)
	if err != nil {
		return err
	}
	if !r.Mode.Writable() {
		return ErrWriteToReadOnly{Terminal: t.Name, Register: r.Name}
	}
	if v.Sign() < 0 || v.BitLen() > r.Width {
		return ErrValueOutOfRange{Terminal: t.Name, Register: r.Name, Width: r.Width, Value: v.Text(16)}
	}
	_, err = e.transact(ctx, t, backend.OpWrite, w.Addr, w.Beats, SplitBig(v, w.Beats, w.DataWidth))
	return err
}

// Get reads a single register element. Registers wider than 64 bits can be
// read as long as the value fits, GetBig reads them unconditionally.
func (e *Engine) Get(ctx context.Context, ref regmap.Ref) (uint64, error) {
	v, err := e.GetBig(ctx, ref)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		t, r, _ := e.m.Lookup(ref)
		return 0, ErrValueOutOfRange{Terminal: t.Name, Register: r.Name, Width: 64, Value: v.Text(16)}
	}
	return v.Uint64(), nil
}

func (e *Engine) GetBig(ctx context.Context, ref regmap.Ref) (*big.Int, error) {
	t, _, w, err := e.element(ref)
	if err != nil {
		return nil, err
	}
	data, err := e.transact(ctx, t, backend.OpRead, w.Addr, w.Beats, nil)
	if err != nil {
		return nil, err
	}
	return JoinBig(data, w.DataWidth), nil
}

// Close waits for the transaction in flight, if any, and closes the backend.
// Closing twice is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	log.Debug("Closing transaction engine for %s", e.m.Name)
	return e.b.Close()
}
