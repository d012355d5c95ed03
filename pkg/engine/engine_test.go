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

package engine_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jinr.ru/greenlab/go-hostif/pkg/backend"
	"jinr.ru/greenlab/go-hostif/pkg/backend/sim"
	"jinr.ru/greenlab/go-hostif/pkg/engine"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
	"jinr.ru/greenlab/go-hostif/pkg/regmap/regmaptest"
)

var testTimeouts = engine.Timeouts{
	Fast:  50 * time.Millisecond,
	Slow:  200 * time.Millisecond,
	Reset: 50 * time.Millisecond,
}

func newEngine(t *testing.T, opts sim.Options) *engine.Engine {
	t.Helper()
	m := regmaptest.NewMap()
	s, err := sim.New(m, opts)
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	e, err := engine.New(m, s, testTimeouts)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// fakeBackend keeps beats in a flat memory and lets tests intercept
// transactions
type fakeBackend struct {
	mu  sync.Mutex
	mem map[uint32]uint64
	// hook runs before a transaction is executed; a non-nil response or
	// error replaces the normal result
	hook func(ctx context.Context, req *backend.Request) (*backend.Response, error)

	resets      int32
	inflight    int32
	maxInflight int32
}

func newFake() *fakeBackend {
	return &fakeBackend{mem: map[uint32]uint64{}}
}

func (f *fakeBackend) Transact(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		prev := atomic.LoadInt32(&f.maxInflight)
		if n <= prev || atomic.CompareAndSwapInt32(&f.maxInflight, prev, n) {
			break
		}
	}
	if f.hook != nil {
		resp, err := f.hook(ctx, req)
		if resp != nil || err != nil {
			return resp, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &backend.Response{Seq: req.Seq}
	for i := 0; i < req.Count; i++ {
		addr := uint32(req.Terminal)<<16 | (req.Addr + uint32(i))
		if req.Op == backend.OpWrite {
			f.mem[addr] = req.Data[i]
		} else {
			resp.Data = append(resp.Data, f.mem[addr])
		}
	}
	return resp, nil
}

func (f *fakeBackend) Reset(ctx context.Context) error {
	atomic.AddInt32(&f.resets, 1)
	return nil
}

func (f *fakeBackend) Close() error {
	return nil
}

func newFakeEngine(t *testing.T, f *fakeBackend, timeouts engine.Timeouts) *engine.Engine {
	t.Helper()
	e, err := engine.New(regmaptest.NewMap(), f, timeouts)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestScalarSetGet(t *testing.T) {
	e := newEngine(t, sim.Options{SlowLatency: 2 * time.Millisecond})
	ctx := context.Background()
	for _, ref := range []regmap.Ref{regmap.NewRef("Fast", "fast_reg"), regmap.NewRef("Slow", "slow_reg")} {
		for _, v := range []uint64{0xAAAA, 0xFFFF, 0x0000, 0x5555} {
			if err := e.Set(ctx, ref, v); err != nil {
				t.Fatalf("Set(%s, %x): %v", ref, v, err)
			}
			got, err := e.Get(ctx, ref)
			if err != nil {
				t.Fatalf("Get(%s): %v", ref, err)
			}
			if got != v {
				t.Errorf("%s: got %x, want %x", ref, got, v)
			}
		}
	}
}

func TestInitValues(t *testing.T) {
	e := newEngine(t, sim.Options{})
	ctx := context.Background()
	cases := []struct {
		ref  regmap.Ref
		want uint64
	}{
		{regmap.NewRef("Fast", "fast_reg"), 10},
		{regmap.NewRef("Fast", "fast_buf").At(159), 0x78AB},
		{regmap.NewRef("Slow", "slow_reg"), 11},
		{regmap.NewRef("Slow", "slow_buf").At(0), 0x6543},
		{regmap.NewRef("Fifo", "status"), 0x5A},
	}
	for _, c := range cases {
		got, err := e.Get(ctx, c.ref)
		if err != nil {
			t.Fatalf("Get(%s): %v", c.ref, err)
		}
		if got != c.want {
			t.Errorf("%s: got %x, want %x", c.ref, got, c.want)
		}
	}
}

func TestBackToBack(t *testing.T) {
	e := newEngine(t, sim.Options{SlowLatency: time.Millisecond})
	ctx := context.Background()
	for _, ref := range []regmap.Ref{regmap.NewRef("Fast", "fast_reg"), regmap.NewRef("Slow", "slow_reg")} {
		first, err := e.Get(ctx, ref)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 10; i++ {
			got, err := e.Get(ctx, ref)
			if err != nil {
				t.Fatal(err)
			}
			if got != first {
				t.Errorf("%s read %d: got %x, want %x", ref, i, got, first)
			}
		}
		for v := uint64(0); v < 20; v++ {
			if err := e.Set(ctx, ref, v*0x0101); err != nil {
				t.Fatal(err)
			}
			got, err := e.Get(ctx, ref)
			if err != nil {
				t.Fatal(err)
			}
			if got != v*0x0101 {
				t.Errorf("%s: write %d not visible: got %x", ref, v, got)
			}
		}
	}
}

func TestStallIsolation(t *testing.T) {
	e := newEngine(t, sim.Options{Stall: []string{regmaptest.StallTerminal}})
	ctx := context.Background()

	start := time.Now()
	_, err := e.Get(ctx, regmap.NewRef(regmaptest.StallTerminal, "reg2"))
	var timeout engine.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if timeout.After != testTimeouts.Fast {
		t.Errorf("timed out after %s, want fast class timeout %s", timeout.After, testTimeouts.Fast)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %s", elapsed)
	}

	ref := regmap.NewRef("Fast", "fast_reg")
	if err := e.Set(ctx, ref, 0xBA98); err != nil {
		t.Fatalf("Set after timeout: %v", err)
	}
	got, err := e.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get after timeout: %v", err)
	}
	if got != 0xBA98 {
		t.Errorf("got %x, want ba98", got)
	}

	// the stalled terminal itself accepts writes and times out again on reads
	if err := e.Set(ctx, regmap.NewRef(regmaptest.StallTerminal, "reg3"), 1); err != nil {
		t.Errorf("write to stalled terminal: %v", err)
	}
	if _, err := e.Get(ctx, regmap.NewRef(regmaptest.StallTerminal, "reg3")); !errors.As(err, &timeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestLateResponseDiscarded(t *testing.T) {
	m := regmaptest.NewMap()
	stalled, _ := m.Terminal(regmaptest.StallTerminal)
	late := make(chan struct{})

	f := newFake()
	// the stalled terminal ignores cancellation and answers long after the deadline
	f.hook = func(ctx context.Context, req *backend.Request) (*backend.Response, error) {
		if req.Terminal != uint16(stalled.ID) {
			return nil, nil
		}
		time.Sleep(100 * time.Millisecond)
		defer close(late)
		return &backend.Response{Seq: req.Seq, Data: []uint64{0xDEAD}}, nil
	}
	e := newFakeEngine(t, f, engine.Timeouts{Fast: 20 * time.Millisecond, Slow: 20 * time.Millisecond, Reset: 10 * time.Millisecond})
	ctx := context.Background()

	var timeout engine.ErrTimeout
	if _, err := e.Get(ctx, regmap.NewRef(regmaptest.StallTerminal, "reg2")); !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if resets := atomic.LoadInt32(&f.resets); resets != 1 {
		t.Errorf("got %d resets, want 1", resets)
	}

	ref := regmap.NewRef("Fast", "fast_reg")
	if err := e.Set(ctx, ref, 0xBA98); err != nil {
		t.Fatal(err)
	}
	<-late
	for i := 0; i < 3; i++ {
		got, err := e.Get(ctx, ref)
		if err != nil {
			t.Fatal(err)
		}
		if got != 0xBA98 {
			t.Errorf("got %x, want ba98", got)
		}
	}
}

func TestStaleResponseRejected(t *testing.T) {
	f := newFake()
	var once int32
	f.hook = func(ctx context.Context, req *backend.Request) (*backend.Response, error) {
		if atomic.CompareAndSwapInt32(&once, 0, 1) {
			return &backend.Response{Seq: req.Seq - 1, Data: []uint64{0xDEAD}}, nil
		}
		return nil, nil
	}
	e := newFakeEngine(t, f, testTimeouts)
	ctx := context.Background()
	ref := regmap.NewRef("Fast", "fast_reg")

	var stale engine.ErrStaleResponse
	if _, err := e.Get(ctx, ref); !errors.As(err, &stale) {
		t.Fatalf("err = %v, want ErrStaleResponse", err)
	}
	if got, err := e.Get(ctx, ref); err != nil || got != 0 {
		t.Errorf("Get after stale response = %x, %v", got, err)
	}
	if resets := atomic.LoadInt32(&f.resets); resets != 1 {
		t.Errorf("got %d resets, want 1", resets)
	}
}

func TestBackendErrorResets(t *testing.T) {
	f := newFake()
	var once int32
	failure := errors.New("link down")
	f.hook = func(ctx context.Context, req *backend.Request) (*backend.Response, error) {
		if atomic.CompareAndSwapInt32(&once, 0, 1) {
			return nil, failure
		}
		return nil, nil
	}
	e := newFakeEngine(t, f, testTimeouts)
	ctx := context.Background()
	ref := regmap.NewRef("Slow", "slow_reg")

	if err := e.Set(ctx, ref, 1); !errors.Is(err, failure) {
		t.Fatalf("err = %v, want %v", err, failure)
	}
	if err := e.Set(ctx, ref, 2); err != nil {
		t.Fatal(err)
	}
	if got, _ := e.Get(ctx, ref); got != 2 {
		t.Errorf("got %x, want 2", got)
	}
	if resets := atomic.LoadInt32(&f.resets); resets != 1 {
		t.Errorf("got %d resets, want 1", resets)
	}
}

func TestConcurrentCallersSerialize(t *testing.T) {
	f := newFake()
	f.hook = func(ctx context.Context, req *backend.Request) (*backend.Response, error) {
		time.Sleep(100 * time.Microsecond)
		return nil, nil
	}
	e := newFakeEngine(t, f, testTimeouts)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			ref := regmap.NewRef("Fast", "fast_buf").At(g)
			for i := 0; i < 10; i++ {
				if err := e.Set(context.Background(), ref, uint64(g*100+i)); err != nil {
					t.Error(err)
					return
				}
				got, err := e.Get(context.Background(), ref)
				if err != nil {
					t.Error(err)
					return
				}
				if got != uint64(g*100+i) {
					t.Errorf("caller %d: got %d, want %d", g, got, g*100+i)
				}
			}
		}(g)
	}
	wg.Wait()
	if n := atomic.LoadInt32(&f.maxInflight); n != 1 {
		t.Errorf("max in flight = %d, want 1", n)
	}
}

func TestCallerContext(t *testing.T) {
	e := newEngine(t, sim.Options{Stall: []string{regmaptest.StallTerminal}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := e.Get(ctx, regmap.NewRef(regmaptest.StallTerminal, "reg2")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want caller deadline", err)
	}
	if _, err := e.Get(ctx, regmap.NewRef("Fast", "fast_reg")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("done context: err = %v, want deadline exceeded", err)
	}
}

func TestAccessErrors(t *testing.T) {
	e := newEngine(t, sim.Options{})
	ctx := context.Background()

	var ro engine.ErrWriteToReadOnly
	if err := e.Set(ctx, regmap.NewRef("Fifo", "status"), 1); !errors.As(err, &ro) {
		t.Errorf("err = %v, want ErrWriteToReadOnly", err)
	}
	var value engine.ErrValueOutOfRange
	if err := e.Set(ctx, regmap.NewRef("Fast", "fast_reg"), 0x10000); !errors.As(err, &value) {
		t.Errorf("err = %v, want ErrValueOutOfRange", err)
	}
	var index regmap.ErrIndexOutOfRange
	buf := regmap.NewRef("Fast", "fast_buf")
	if err := e.Set(ctx, buf, 1); !errors.As(err, &index) || index.Index != -1 {
		t.Errorf("unindexed array: err = %v, want ErrIndexOutOfRange", err)
	}
	if err := e.Set(ctx, buf.At(200), 1); !errors.As(err, &index) || index.Index != 200 {
		t.Errorf("index 200: err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := e.Get(ctx, buf.At(200)); !errors.As(err, &index) {
		t.Errorf("index 200: err = %v, want ErrIndexOutOfRange", err)
	}
	var unknown regmap.ErrUnknownRegister
	if _, err := e.Get(ctx, regmap.NewRef("Fast", "nope")); !errors.As(err, &unknown) {
		t.Errorf("err = %v, want ErrUnknownRegister", err)
	}
	ram, _ := e.Map().Terminal("FastRAM")
	if err := e.WriteBeats(ctx, regmap.WireAddr{Terminal: ram.ID, Addr: 0, Beats: 1}, []uint64{0x10000}); !errors.As(err, &value) {
		t.Errorf("raw beat: err = %v, want ErrValueOutOfRange", err)
	}
	var payload engine.ErrPayloadLength
	err := e.WriteBeats(ctx, regmap.WireAddr{Terminal: ram.ID, Addr: 0, Beats: 2}, []uint64{1})
	if !errors.As(err, &payload) || payload.Want != 2 || payload.Got != 1 {
		t.Errorf("short payload: err = %v, want ErrPayloadLength", err)
	}
	var response engine.ErrResponseLength
	if errors.As(err, &response) {
		t.Errorf("short payload reported as a response error: %v", err)
	}
}

func TestWideRegister(t *testing.T) {
	e := newEngine(t, sim.Options{})
	ctx := context.Background()
	ref := regmap.NewRef("Fast", "wide_reg")

	init, _ := new(big.Int).SetString("123fedcba9876543211", 16)
	got, err := e.GetBig(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(init) != 0 {
		t.Errorf("got %x, want %x", got, init)
	}
	var value engine.ErrValueOutOfRange
	if _, err := e.Get(ctx, ref); !errors.As(err, &value) {
		t.Errorf("Get of 73 bit value: err = %v, want ErrValueOutOfRange", err)
	}

	v := new(big.Int).Lsh(big.NewInt(1), 72)
	v.Add(v, big.NewInt(5))
	if err := e.SetBig(ctx, ref, v); err != nil {
		t.Fatal(err)
	}
	if got, _ := e.GetBig(ctx, ref); got.Cmp(v) != 0 {
		t.Errorf("got %x, want %x", got, v)
	}
	if err := e.SetBig(ctx, ref, new(big.Int).Lsh(big.NewInt(1), 73)); !errors.As(err, &value) {
		t.Errorf("74 bit value: err = %v, want ErrValueOutOfRange", err)
	}

	if err := e.Set(ctx, ref, 0x1234); err != nil {
		t.Fatal(err)
	}
	if got, err := e.Get(ctx, ref); err != nil || got != 0x1234 {
		t.Errorf("Get = %x, %v, want 1234", got, err)
	}
}

func TestClose(t *testing.T) {
	e := newEngine(t, sim.Options{Stall: []string{regmaptest.StallTerminal}})
	ctx := context.Background()
	if _, err := e.Get(ctx, regmap.NewRef(regmaptest.StallTerminal, "reg2")); err == nil {
		t.Fatal("expected timeout")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close after timeout: %v", err)
	}
	var closed engine.ErrClosed
	if _, err := e.Get(ctx, regmap.NewRef("Fast", "fast_reg")); !errors.As(err, &closed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestTimeoutsValidate(t *testing.T) {
	cases := []struct {
		timeouts engine.Timeouts
		valid    bool
	}{
		{engine.Timeouts{Fast: time.Millisecond, Slow: time.Second, Reset: time.Millisecond}, true},
		{engine.Timeouts{Fast: time.Second, Slow: time.Second, Reset: time.Millisecond}, true},
		{engine.Timeouts{Fast: 0, Slow: time.Second, Reset: time.Millisecond}, false},
		{engine.Timeouts{Fast: time.Second, Slow: time.Millisecond, Reset: time.Millisecond}, false},
		{engine.Timeouts{Fast: time.Millisecond, Slow: time.Second}, false},
	}
	for _, c := range cases {
		err := c.timeouts.Validate()
		if (err == nil) != c.valid {
			t.Errorf("%+v: err = %v, valid %v", c.timeouts, err, c.valid)
		}
	}
	if _, err := engine.New(regmaptest.NewMap(), newFake(), engine.Timeouts{}); err == nil {
		t.Error("engine.New accepted zero timeouts")
	}
}

func TestBeats(t *testing.T) {
	beats := engine.SplitUint64(0x12345678, 2, 16)
	if beats[0] != 0x5678 || beats[1] != 0x1234 {
		t.Errorf("SplitUint64 = %x", beats)
	}
	if v := engine.JoinUint64(beats, 16); v != 0x12345678 {
		t.Errorf("JoinUint64 = %x", v)
	}
	if v := engine.JoinUint64([]uint64{0xdeadbeef}, 64); v != 0xdeadbeef {
		t.Errorf("JoinUint64 64 bit = %x", v)
	}
	v, _ := new(big.Int).SetString("1fffffffffffffffff0", 16)
	if got := engine.JoinBig(engine.SplitBig(v, 6, 13), 13); got.Cmp(v) != 0 {
		t.Errorf("big roundtrip: got %x, want %x", got, v)
	}
	if engine.FitsWidth(0x100, 8) || !engine.FitsWidth(0xff, 8) || !engine.FitsWidth(^uint64(0), 64) {
		t.Error("FitsWidth")
	}
}
