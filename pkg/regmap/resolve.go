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
)

// Ref is a symbolic register reference: terminal, register and an optional
// element index.
type Ref struct {
	Terminal string
	Register string
	Index    int
	Indexed  bool
}

func NewRef(terminal, register string) Ref {
	return Ref{Terminal: terminal, Register: register}
}

// At returns a copy of the reference pointing to a single array element
func (r Ref) At(index int) Ref {
	r.Index = index
	r.Indexed = true
	return r
}

func (r Ref) String() string {
	if r.Indexed {
		return fmt.Sprintf("%s.%s[%d]", r.Terminal, r.Register, r.Index)
	}
	return fmt.Sprintf("%s.%s", r.Terminal, r.Register)
}

// WireAddr is what a transaction is issued against
type WireAddr struct {
	Terminal TerminalID
	Addr     uint32
	Beats    int
	// DataWidth is the number of bits carried by one beat
	DataWidth int
	// Stride is the number of beats per register element
	Stride int
}

// Elements is the number of whole register elements covered by the address
func (w WireAddr) Elements() int {
	if w.Stride == 0 {
		return 0
	}
	return w.Beats / w.Stride
}

func indexError(t *Terminal, r *Register, index int) error {
	return ErrIndexOutOfRange{Terminal: t.Name, Register: r.Name, Index: index, Length: r.Array}
}

func wireAddr(t *Terminal, r *Register, start, count int) WireAddr {
	return WireAddr{
		Terminal:  t.ID,
		Addr:      r.Addr + uint32(start*r.Stride),
		Beats:     count * r.Stride,
		DataWidth: t.DataWidth,
		Stride:    r.Stride,
	}
}

// Resolve converts a reference into a wire address. An indexed reference
// yields a single element; a reference without index yields the whole
// register, all array elements included.
func (m *Map) Resolve(ref Ref) (WireAddr, error) {
	t, r, err := m.Lookup(ref)
	if err != nil {
		return WireAddr{}, err
	}
	if !ref.Indexed {
		return wireAddr(t, r, 0, r.Array), nil
	}
	if !r.IsArray() || ref.Index < 0 || ref.Index >= r.Array {
		return WireAddr{}, indexError(t, r, ref.Index)
	}
	return wireAddr(t, r, ref.Index, 1), nil
}

// ResolveElement is Resolve for callers that need exactly one element:
// array registers must be indexed.
func (m *Map) ResolveElement(ref Ref) (WireAddr, error) {
	t, r, err := m.Lookup(ref)
	if err != nil {
		return WireAddr{}, err
	}
	if r.IsArray() && !ref.Indexed {
		return WireAddr{}, indexError(t, r, -1)
	}
	return m.Resolve(ref)
}

// ResolveRange resolves length consecutive elements starting at the
// reference's index, or at element 0 when the reference has no index.
func (m *Map) ResolveRange(ref Ref, length int) (WireAddr, error) {
	t, r, err := m.Lookup(ref)
	if err != nil {
		return WireAddr{}, err
	}
	start := 0
	if ref.Indexed {
		if !r.IsArray() || ref.Index < 0 || ref.Index >= r.Array {
			return WireAddr{}, indexError(t, r, ref.Index)
		}
		start = ref.Index
	}
	if length < 1 {
		return WireAddr{}, fmt.Errorf("invalid length %d for %s", length, ref)
	}
	if start+length > r.Array {
		return WireAddr{}, indexError(t, r, start+length-1)
	}
	return wireAddr(t, r, start, length), nil
}

// ResolveRaw checks a raw beat range against the terminal address space
func (m *Map) ResolveRaw(terminal string, addr uint32, beats int) (WireAddr, error) {
	t, err := m.Terminal(terminal)
	if err != nil {
		return WireAddr{}, err
	}
	if beats < 1 || uint64(addr)+uint64(beats) > t.AddrSpace() {
		return WireAddr{}, ErrAddressOutOfRange{Terminal: t.Name, Addr: addr, Beats: beats}
	}
	return WireAddr{
		Terminal:  t.ID,
		Addr:      addr,
		Beats:     beats,
		DataWidth: t.DataWidth,
		Stride:    1,
	}, nil
}
