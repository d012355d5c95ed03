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

// Package stream moves sequences of register elements through the engine.
// Transfers are split into chunks of whole elements no larger than the burst
// size. FIFO registers are transferred one beat per transaction, in order.
package stream

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"jinr.ru/greenlab/go-hostif/pkg/engine"
	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
)

const DefaultBurst = 128

// ErrWideRegister returned when an element of a register wider than 64 bits
// does not fit the uint64 view of a sequence
type ErrWideRegister struct {
	Terminal string
	Register string
	Width    int
	Index    int
}

func (e ErrWideRegister) Error() string {
	return fmt.Sprintf("Element %d of %d bit register %s.%s does not fit 64 bits, use ReadBig",
		e.Index, e.Width, e.Terminal, e.Register)
}

type Reader struct {
	e     *engine.Engine
	burst int
}

// New returns a reader issuing transactions of at most burst beats
func New(e *engine.Engine, burst int) *Reader {
	if burst < 1 {
		burst = DefaultBurst
	}
	return &Reader{e: e, burst: burst}
}

func (r *Reader) Burst() int {
	return r.burst
}

// chunk returns how many elements of stride beats fit into a burst
func (r *Reader) chunk(stride int) int {
	if n := r.burst / stride; n > 0 {
		return n
	}
	return 1
}

// Read returns length consecutive elements starting at the reference index,
// or at element 0 for a reference without index. A FIFO register yields the
// next length values it produces.
func (r *Reader) Read(ctx context.Context, ref regmap.Ref, length int) ([]uint64, error) {
	if length < 1 {
		return nil, fmt.Errorf("invalid length %d for %s", length, ref)
	}
	buf := make([]uint64, length)
	if err := r.ReadInto(ctx, ref, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInto is Read into a destination buffer, len(buf) elements are read
func (r *Reader) ReadInto(ctx context.Context, ref regmap.Ref, buf []uint64) error {
	if len(buf) < 1 {
		return fmt.Errorf("invalid length %d for %s", len(buf), ref)
	}
	t, reg, err := r.e.Map().Lookup(ref)
	if err != nil {
		return err
	}
	return r.readElements(ctx, ref, reg, len(buf), func(i int, beats []uint64, dataWidth int) error {
		if reg.Width <= 64 {
			buf[i] = engine.JoinUint64(beats, dataWidth)
			return nil
		}
		v := engine.JoinBig(beats, dataWidth)
		if !v.IsUint64() {
			return ErrWideRegister{Terminal: t.Name, Register: reg.Name, Width: reg.Width, Index: i}
		}
		buf[i] = v.Uint64()
		return nil
	})
}

// ReadBig is Read for registers of any width
func (r *Reader) ReadBig(ctx context.Context, ref regmap.Ref, length int) ([]*big.Int, error) {
	if length < 1 {
		return nil, fmt.Errorf("invalid length %d for %s", length, ref)
	}
	_, reg, err := r.e.Map().Lookup(ref)
	if err != nil {
		return nil, err
	}
	values := make([]*big.Int, length)
	err = r.readElements(ctx, ref, reg, length, func(i int, beats []uint64, dataWidth int) error {
		values[i] = engine.JoinBig(beats, dataWidth)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// readElements reads n elements at ref and hands the beats of each one to put
func (r *Reader) readElements(ctx context.Context, ref regmap.Ref, reg *regmap.Register, n int,
	put func(i int, beats []uint64, dataWidth int) error) error {
	if reg.Fifo {
		w, err := r.e.Map().Resolve(ref)
		if err != nil {
			return err
		}
		log.Debug("Streaming %d values from FIFO %s", n, ref)
		for i := 0; i < n; i++ {
			beats, err := r.e.ReadBeats(ctx, w)
			if err != nil {
				return fmt.Errorf("%s: value %d of %d: %w", ref, i, n, err)
			}
			if err := put(i, beats, w.DataWidth); err != nil {
				return err
			}
		}
		return nil
	}
	w, err := r.e.Map().ResolveRange(ref, n)
	if err != nil {
		return err
	}
	return r.readBeats(ctx, w, n, put)
}

// readBeats reads n elements at w burst by burst
func (r *Reader) readBeats(ctx context.Context, w regmap.WireAddr, n int,
	put func(i int, beats []uint64, dataWidth int) error) error {
	per := r.chunk(w.Stride)
	for start := 0; start < n; start += per {
		count := n - start
		if count > per {
			count = per
		}
		cw := w
		cw.Addr = w.Addr + uint32(start*w.Stride)
		cw.Beats = count * w.Stride
		beats, err := r.e.ReadBeats(ctx, cw)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if err := put(start+i, beats[i*w.Stride:(i+1)*w.Stride], w.DataWidth); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write stores values into consecutive elements starting at the reference
// index, or at element 0. Values written to a FIFO register are pushed in
// order.
func (r *Reader) Write(ctx context.Context, ref regmap.Ref, values []uint64) error {
	t, reg, err := r.writable(ref, len(values))
	if err != nil {
		return err
	}
	for _, v := range values {
		if !engine.FitsWidth(v, reg.Width) {
			return engine.ErrValueOutOfRange{Terminal: t.Name, Register: reg.Name, Width: reg.Width, Value: strconv.FormatUint(v, 16)}
		}
	}
	return r.writeElements(ctx, ref, reg, len(values), func(i, stride, dataWidth int) []uint64 {
		return engine.SplitUint64(values[i], stride, dataWidth)
	})
}

// WriteBig is Write for registers of any width
func (r *Reader) WriteBig(ctx context.Context, ref regmap.Ref, values []*big.Int) error {
	t, reg, err := r.writable(ref, len(values))
	if err != nil {
		return err
	}
	for _, v := range values {
		if v.Sign() < 0 || v.BitLen() > reg.Width {
			return engine.ErrValueOutOfRange{Terminal: t.Name, Register: reg.Name, Width: reg.Width, Value: v.Text(16)}
		}
	}
	return r.writeElements(ctx, ref, reg, len(values), func(i, stride, dataWidth int) []uint64 {
		return engine.SplitBig(values[i], stride, dataWidth)
	})
}

func (r *Reader) writable(ref regmap.Ref, n int) (*regmap.Terminal, *regmap.Register, error) {
	t, reg, err := r.e.Map().Lookup(ref)
	if err != nil {
		return nil, nil, err
	}
	if !reg.Mode.Writable() {
		return nil, nil, engine.ErrWriteToReadOnly{Terminal: t.Name, Register: reg.Name}
	}
	if n < 1 {
		return nil, nil, fmt.Errorf("nothing to write to %s", ref)
	}
	return t, reg, nil
}

// writeElements writes n elements at ref, split returns the beats of element i
func (r *Reader) writeElements(ctx context.Context, ref regmap.Ref, reg *regmap.Register, n int,
	split func(i, stride, dataWidth int) []uint64) error {
	if reg.Fifo {
		w, err := r.e.Map().Resolve(ref)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := r.e.WriteBeats(ctx, w, split(i, w.Stride, w.DataWidth)); err != nil {
				return fmt.Errorf("%s: value %d of %d: %w", ref, i, n, err)
			}
		}
		return nil
	}
	w, err := r.e.Map().ResolveRange(ref, n)
	if err != nil {
		return err
	}
	return r.writeBeats(ctx, w, n, split)
}

func (r *Reader) writeBeats(ctx context.Context, w regmap.WireAddr, n int,
	split func(i, stride, dataWidth int) []uint64) error {
	per := r.chunk(w.Stride)
	for start := 0; start < n; start += per {
		count := n - start
		if count > per {
			count = per
		}
		beats := make([]uint64, 0, count*w.Stride)
		for i := start; i < start+count; i++ {
			beats = append(beats, split(i, w.Stride, w.DataWidth)...)
		}
		cw := w
		cw.Addr = w.Addr + uint32(start*w.Stride)
		cw.Beats = count * w.Stride
		if err := r.e.WriteBeats(ctx, cw, beats); err != nil {
			return err
		}
	}
	return nil
}

// ReadAddr reads n raw beats of a terminal starting at addr
func (r *Reader) ReadAddr(ctx context.Context, terminal string, addr uint32, n int) ([]uint64, error) {
	w, err := r.e.Map().ResolveRaw(terminal, addr, n)
	if err != nil {
		return nil, err
	}
	buf := make([]uint64, n)
	err = r.readBeats(ctx, w, n, func(i int, beats []uint64, dataWidth int) error {
		buf[i] = beats[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteAddr writes raw beats to a terminal starting at addr
func (r *Reader) WriteAddr(ctx context.Context, terminal string, addr uint32, data []uint64) error {
	w, err := r.e.Map().ResolveRaw(terminal, addr, len(data))
	if err != nil {
		return err
	}
	for _, beat := range data {
		if !engine.FitsWidth(beat, w.DataWidth) {
			return engine.ErrValueOutOfRange{Terminal: terminal, Width: w.DataWidth, Value: strconv.FormatUint(beat, 16)}
		}
	}
	return r.writeBeats(ctx, w, len(data), func(i, stride, dataWidth int) []uint64 {
		return data[i : i+1]
	})
}
