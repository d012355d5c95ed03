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

package stream_test

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"jinr.ru/greenlab/go-hostif/pkg/backend/sim"
	"jinr.ru/greenlab/go-hostif/pkg/engine"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
	"jinr.ru/greenlab/go-hostif/pkg/regmap/regmaptest"
	"jinr.ru/greenlab/go-hostif/pkg/stream"
)

var testTimeouts = engine.Timeouts{
	Fast:  100 * time.Millisecond,
	Slow:  500 * time.Millisecond,
	Reset: 50 * time.Millisecond,
}

func newReader(t *testing.T, m *regmap.Map, burst int) (*stream.Reader, *engine.Engine, *sim.Sim) {
	t.Helper()
	s, err := sim.New(m, sim.Options{SlowLatency: 100 * time.Microsecond})
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	e, err := engine.New(m, s, testTimeouts)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return stream.New(e, burst), e, s
}

func equal(t *testing.T, got, want []uint64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("value %d: got %x, want %x", i, got[i], want[i])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	r, _, _ := newReader(t, regmaptest.NewMap(), stream.DefaultBurst)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(1))

	for _, ref := range []regmap.Ref{regmap.NewRef("Fast", "fast_buf"), regmap.NewRef("Slow", "slow_buf")} {
		xs := make([]uint64, regmaptest.BufLength)
		for i := range xs {
			xs[i] = uint64(rnd.Intn(1 << 16))
		}
		if err := r.Write(ctx, ref, xs); err != nil {
			t.Fatalf("Write(%s): %v", ref, err)
		}
		got, err := r.Read(ctx, ref, len(xs))
		if err != nil {
			t.Fatalf("Read(%s): %v", ref, err)
		}
		equal(t, got, xs)
	}
}

func TestReadMatchesElementGets(t *testing.T) {
	r, e, _ := newReader(t, regmaptest.NewMap(), 7)
	ctx := context.Background()
	ref := regmap.NewRef("Fast", "fast_buf")
	for i := 0; i < regmaptest.BufLength; i += 3 {
		if err := e.Set(ctx, ref.At(i), uint64(i*11)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.Read(ctx, ref.At(10), 100)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		want, err := e.Get(ctx, ref.At(10+i))
		if err != nil {
			t.Fatal(err)
		}
		if v != want {
			t.Errorf("element %d: Read %x, Get %x", 10+i, v, want)
		}
	}
}

func TestReadInto(t *testing.T) {
	r, _, _ := newReader(t, regmaptest.NewMap(), stream.DefaultBurst)
	buf := make([]uint64, 20)
	if err := r.ReadInto(context.Background(), regmap.NewRef("Slow", "slow_buf").At(140), buf); err != nil {
		t.Fatal(err)
	}
	for i, v := range buf {
		if v != 0x6543 {
			t.Errorf("slow_buf[%d] = %x, want 6543", 140+i, v)
		}
	}
}

func TestCounterFifoGapless(t *testing.T) {
	r, e, s := newReader(t, regmaptest.NewMap(), stream.DefaultBurst)
	ctx := context.Background()
	ref := regmap.NewRef("Fifo", "counter")

	c, err := e.Get(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	before := s.Transactions()
	got, err := r.Read(ctx, ref, 513)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != c+1+uint64(i) {
			t.Fatalf("value %d: got %d, want %d", i, v, c+1+uint64(i))
		}
	}
	if got[len(got)-1] != c+513 {
		t.Errorf("last value %d, want %d", got[len(got)-1], c+513)
	}
	if n := s.Transactions() - before; n != 513 {
		t.Errorf("%d transactions, want one per value", n)
	}
}

func TestQueueFifo(t *testing.T) {
	r, _, _ := newReader(t, regmaptest.NewMap(), stream.DefaultBurst)
	ctx := context.Background()
	ref := regmap.NewRef("Fifo", "queue")

	xs := make([]uint64, 300)
	for i := range xs {
		xs[i] = uint64(0xffff - i)
	}
	if err := r.Write(ctx, ref, xs[:100]); err != nil {
		t.Fatal(err)
	}
	if err := r.Write(ctx, ref, xs[100:]); err != nil {
		t.Fatal(err)
	}
	got, err := r.Read(ctx, ref, 250)
	if err != nil {
		t.Fatal(err)
	}
	equal(t, got, xs[:250])
	got, err = r.Read(ctx, ref, 50)
	if err != nil {
		t.Fatal(err)
	}
	equal(t, got, xs[250:])

	var timeout engine.ErrTimeout
	if _, err := r.Read(ctx, ref, 1); !errors.As(err, &timeout) {
		t.Errorf("empty queue: err = %v, want ErrTimeout", err)
	}
}

func TestOutOfRange(t *testing.T) {
	r, _, _ := newReader(t, regmaptest.NewMap(), stream.DefaultBurst)
	ctx := context.Background()
	ref := regmap.NewRef("Fast", "fast_buf")

	var index regmap.ErrIndexOutOfRange
	if err := r.Write(ctx, ref.At(200), []uint64{1}); !errors.As(err, &index) {
		t.Errorf("Write at 200: err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := r.Read(ctx, ref.At(200), 1); !errors.As(err, &index) {
		t.Errorf("Read at 200: err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := r.Read(ctx, ref.At(100), 100); !errors.As(err, &index) {
		t.Errorf("Read past the end: err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := r.Read(ctx, ref, regmaptest.BufLength+1); !errors.As(err, &index) {
		t.Errorf("Read longer than the array: err = %v, want ErrIndexOutOfRange", err)
	}

	var ro engine.ErrWriteToReadOnly
	if err := r.Write(ctx, regmap.NewRef("Fifo", "status"), []uint64{1}); !errors.As(err, &ro) {
		t.Errorf("err = %v, want ErrWriteToReadOnly", err)
	}
	var value engine.ErrValueOutOfRange
	if err := r.Write(ctx, ref, []uint64{1, 0x10000}); !errors.As(err, &value) {
		t.Errorf("err = %v, want ErrValueOutOfRange", err)
	}
	tooWide := new(big.Int).Lsh(big.NewInt(1), 73)
	if err := r.WriteBig(ctx, regmap.NewRef("Fast", "wide_reg"), []*big.Int{tooWide}); !errors.As(err, &value) {
		t.Errorf("74 bit value: err = %v, want ErrValueOutOfRange", err)
	}
}

func TestEmptyTransfers(t *testing.T) {
	r, _, s := newReader(t, regmaptest.NewMap(), stream.DefaultBurst)
	ctx := context.Background()
	before := s.Transactions()
	for _, ref := range []regmap.Ref{regmap.NewRef("Fifo", "counter"), regmap.NewRef("Fast", "fast_reg")} {
		if err := r.ReadInto(ctx, ref, nil); err == nil {
			t.Errorf("ReadInto(%s, nil) succeeded", ref)
		}
		if _, err := r.ReadBig(ctx, ref, 0); err == nil {
			t.Errorf("ReadBig(%s, 0) succeeded", ref)
		}
	}
	if err := r.Write(ctx, regmap.NewRef("Fifo", "queue"), nil); err == nil {
		t.Error("empty Write succeeded")
	}
	if n := s.Transactions() - before; n != 0 {
		t.Errorf("%d transactions for empty transfers", n)
	}
}

func TestWideRegisterRoundTrip(t *testing.T) {
	r, e, _ := newReader(t, regmaptest.NewMap(), stream.DefaultBurst)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(3))
	ref := regmap.NewRef("Fast", "wide_reg")
	limit := new(big.Int).Lsh(big.NewInt(1), 73)

	for i := 0; i < 20; i++ {
		v := new(big.Int).Rand(rnd, limit)
		if err := r.WriteBig(ctx, ref, []*big.Int{v}); err != nil {
			t.Fatal(err)
		}
		got, err := r.ReadBig(ctx, ref, 1)
		if err != nil {
			t.Fatal(err)
		}
		if got[0].Cmp(v) != 0 {
			t.Fatalf("ReadBig = %x, want %x", got[0], v)
		}
		if single, err := e.GetBig(ctx, ref); err != nil || single.Cmp(v) != 0 {
			t.Fatalf("GetBig = %x, %v, want %x", single, err, v)
		}
	}

	// the uint64 view works as long as the value fits
	if err := r.Write(ctx, ref, []uint64{0x1234}); err != nil {
		t.Fatal(err)
	}
	if got, err := r.Read(ctx, ref, 1); err != nil || got[0] != 0x1234 {
		t.Errorf("Read = %v, %v, want [1234]", got, err)
	}
	if got, err := e.Get(ctx, ref); err != nil || got != 0x1234 {
		t.Errorf("Get = %x, %v, want 1234", got, err)
	}

	if err := e.SetBig(ctx, ref, new(big.Int).Lsh(big.NewInt(1), 70)); err != nil {
		t.Fatal(err)
	}
	var wide stream.ErrWideRegister
	if _, err := r.Read(ctx, ref, 1); !errors.As(err, &wide) || wide.Index != 0 {
		t.Errorf("err = %v, want ErrWideRegister", err)
	}
}

func TestWideArrayChunking(t *testing.T) {
	m := regmap.New("wide")
	if _, err := m.Declare(regmap.Terminal{Name: "t", AddrWidth: 12, DataWidth: 16}); err != nil {
		t.Fatal(err)
	}
	if err := m.DeclareRegister("t", regmap.Register{Name: "keys", Width: 100, Array: 9, Mode: regmap.ModeReadWrite}); err != nil {
		t.Fatal(err)
	}
	// seven beats per element, burst 15 fits two
	r, e, s := newReader(t, m, 15)
	ctx := context.Background()
	ref := regmap.NewRef("t", "keys")
	rnd := rand.New(rand.NewSource(4))
	limit := new(big.Int).Lsh(big.NewInt(1), 100)

	xs := make([]*big.Int, 9)
	for i := range xs {
		xs[i] = new(big.Int).Rand(rnd, limit)
	}
	before := s.Transactions()
	if err := r.WriteBig(ctx, ref, xs); err != nil {
		t.Fatal(err)
	}
	got, err := r.ReadBig(ctx, ref, len(xs))
	if err != nil {
		t.Fatal(err)
	}
	if n := s.Transactions() - before; n != 10 {
		t.Errorf("%d transactions, want 5 writes and 5 reads", n)
	}
	for i := range xs {
		if got[i].Cmp(xs[i]) != 0 {
			t.Errorf("keys[%d]: ReadBig %x, want %x", i, got[i], xs[i])
		}
		if v, err := e.GetBig(ctx, ref.At(i)); err != nil || v.Cmp(xs[i]) != 0 {
			t.Errorf("keys[%d]: GetBig %x, %v, want %x", i, v, err, xs[i])
		}
	}

	tail, err := r.ReadBig(ctx, ref.At(7), 2)
	if err != nil {
		t.Fatal(err)
	}
	if tail[0].Cmp(xs[7]) != 0 || tail[1].Cmp(xs[8]) != 0 {
		t.Errorf("ReadBig from 7 = %x, want %x %x", tail, xs[7], xs[8])
	}
}

func TestBurstChunking(t *testing.T) {
	r, _, s := newReader(t, regmaptest.NewMap(), 16)
	ctx := context.Background()
	before := s.Transactions()
	if _, err := r.Read(ctx, regmap.NewRef("Fast", "fast_buf"), regmaptest.BufLength); err != nil {
		t.Fatal(err)
	}
	if n := s.Transactions() - before; n != 10 {
		t.Errorf("%d transactions, want 10", n)
	}
}

func TestMultiBeatElements(t *testing.T) {
	m := regmap.New("multi")
	if _, err := m.Declare(regmap.Terminal{Name: "t", AddrWidth: 8, DataWidth: 16}); err != nil {
		t.Fatal(err)
	}
	if err := m.DeclareRegister("t", regmap.Register{Name: "pad", Width: 8, Array: 1, Mode: regmap.ModeWrite}); err != nil {
		t.Fatal(err)
	}
	if err := m.DeclareRegister("t", regmap.Register{Name: "words", Width: 40, Array: 10, Mode: regmap.ModeReadWrite}); err != nil {
		t.Fatal(err)
	}
	// burst 7 fits two elements of three beats
	r, e, s := newReader(t, m, 7)
	ctx := context.Background()
	ref := regmap.NewRef("t", "words")

	xs := make([]uint64, 10)
	for i := range xs {
		xs[i] = uint64(i+1)<<32 | 0xcafe0000 | uint64(i)
	}
	before := s.Transactions()
	if err := r.Write(ctx, ref, xs); err != nil {
		t.Fatal(err)
	}
	got, err := r.Read(ctx, ref, len(xs))
	if err != nil {
		t.Fatal(err)
	}
	equal(t, got, xs)
	if n := s.Transactions() - before; n != 10 {
		t.Errorf("%d transactions, want 5 writes and 5 reads", n)
	}
	for i, want := range xs {
		v, err := e.Get(ctx, ref.At(i))
		if err != nil {
			t.Fatal(err)
		}
		if v != want {
			t.Errorf("words[%d] = %x, want %x", i, v, want)
		}
	}
}

func TestRawAccess(t *testing.T) {
	r, _, s := newReader(t, regmaptest.NewMap(), stream.DefaultBurst)
	ctx := context.Background()
	data := make([]uint64, 300)
	for i := range data {
		data[i] = uint64(i * 7)
	}
	for _, terminal := range []string{"FastRAM", "SlowRAM"} {
		before := s.Transactions()
		if err := r.WriteAddr(ctx, terminal, 0x100, data); err != nil {
			t.Fatal(err)
		}
		got, err := r.ReadAddr(ctx, terminal, 0x100, len(data))
		if err != nil {
			t.Fatal(err)
		}
		equal(t, got, data)
		if n := s.Transactions() - before; n != 6 {
			t.Errorf("%s: %d transactions, want 6", terminal, n)
		}
	}

	var addr regmap.ErrAddressOutOfRange
	if _, err := r.ReadAddr(ctx, "FastRAM", 0xfff0, 32); !errors.As(err, &addr) {
		t.Errorf("err = %v, want ErrAddressOutOfRange", err)
	}
	var value engine.ErrValueOutOfRange
	if err := r.WriteAddr(ctx, "FastRAM", 0, []uint64{0x10000}); !errors.As(err, &value) {
		t.Errorf("err = %v, want ErrValueOutOfRange", err)
	}
}
