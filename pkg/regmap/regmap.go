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

// Package regmap describes the terminals of a device and the registers they
// expose, and turns symbolic register references into wire addresses.
//
// A Map is built once during the declaration phase and frozen before it is
// handed to the transaction engine. Registers are packed into their
// terminal's address space in declaration order without gaps, each register
// taking ceil(width/data width) beats per array element.
package regmap

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	MaxDataWidth = 64
	MaxAddrWidth = 32
)

type TerminalID uint16

type Mode int

const (
	// ModeRead registers are driven by the device; the host may only read them
	ModeRead Mode = iota
	// ModeWrite registers are driven by the host and can be read back
	ModeWrite
	ModeReadWrite
)

var modeNames = map[Mode]string{
	ModeRead:      "read",
	ModeWrite:     "write",
	ModeReadWrite: "read-write",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) Writable() bool {
	return m == ModeWrite || m == ModeReadWrite
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "read", "r", "ro":
		return ModeRead, nil
	case "write", "w":
		return ModeWrite, nil
	case "read-write", "readwrite", "rw":
		return ModeReadWrite, nil
	}
	return ModeRead, fmt.Errorf("unknown register mode %q", s)
}

// Class is the timing class of a terminal. It only affects how long the
// engine waits for a response.
type Class int

const (
	ClassFast Class = iota
	ClassSlow
)

func (c Class) String() string {
	if c == ClassSlow {
		return "slow"
	}
	return "fast"
}

func ParseClass(s string) (Class, error) {
	switch strings.ToLower(s) {
	case "", "fast":
		return ClassFast, nil
	case "slow":
		return ClassSlow, nil
	}
	return ClassFast, fmt.Errorf("unknown terminal class %q", s)
}

type Register struct {
	Name    string
	Comment string
	Width   int
	Mode    Mode
	// Array is the number of elements, 1 for scalar registers
	Array int
	Init  *big.Int
	// Fifo registers advance an internal sequence on every read
	Fifo bool

	// Assigned by DeclareRegister
	Addr   uint32
	Stride int
}

// Span is the number of addresses the register occupies
func (r *Register) Span() int {
	return r.Stride * r.Array
}

func (r *Register) IsArray() bool {
	return r.Array > 1
}

type Terminal struct {
	Name      string
	Comment   string
	ID        TerminalID
	AddrWidth int
	DataWidth int
	Class     Class
	// Registers in declaration (and address) order
	Registers []*Register

	regs map[string]*Register
	next uint64
}

// Register looks up a register of the terminal by name
func (t *Terminal) Register(name string) (*Register, error) {
	r, ok := t.regs[name]
	if !ok {
		return nil, ErrUnknownRegister{Terminal: t.Name, Register: name}
	}
	return r, nil
}

// AddrSpace is the number of beat addresses the terminal can address
func (t *Terminal) AddrSpace() uint64 {
	return uint64(1) << uint(t.AddrWidth)
}

// Used is the number of addresses taken by declared registers
func (t *Terminal) Used() uint64 {
	return t.next
}

// Map is the register map of a device. Declarations are not safe for
// concurrent use; once frozen the map is read only and may be shared freely.
type Map struct {
	Name      string
	terminals []*Terminal
	byName    map[string]*Terminal
	frozen    bool
}

func New(name string) *Map {
	return &Map{
		Name:   name,
		byName: map[string]*Terminal{},
	}
}

// Declare adds a terminal and, if given, its registers. Terminal ids are
// assigned in declaration order.
func (m *Map) Declare(t Terminal) (TerminalID, error) {
	if m.frozen {
		return 0, ErrMapFrozen{}
	}
	if _, ok := m.byName[t.Name]; ok {
		return 0, ErrDuplicateName{Scope: "map " + m.Name, Name: t.Name}
	}
	if t.DataWidth < 1 || t.DataWidth > MaxDataWidth {
		return 0, ErrInvalidWidth{Name: t.Name, Width: t.DataWidth}
	}
	if t.AddrWidth < 1 || t.AddrWidth > MaxAddrWidth {
		return 0, ErrInvalidWidth{Name: t.Name, Width: t.AddrWidth}
	}
	regs := t.Registers
	term := &Terminal{
		Name:      t.Name,
		Comment:   t.Comment,
		ID:        TerminalID(len(m.terminals)),
		AddrWidth: t.AddrWidth,
		DataWidth: t.DataWidth,
		Class:     t.Class,
		regs:      map[string]*Register{},
	}
	m.terminals = append(m.terminals, term)
	m.byName[term.Name] = term
	for _, r := range regs {
		if err := m.DeclareRegister(term.Name, *r); err != nil {
			return term.ID, err
		}
	}
	return term.ID, nil
}

// DeclareRegister appends a register to a terminal, placing it right after
// the previously declared one.
func (m *Map) DeclareRegister(terminal string, r Register) error {
	if m.frozen {
		return ErrMapFrozen{}
	}
	t, ok := m.byName[terminal]
	if !ok {
		return ErrUnknownTerminal{Terminal: terminal}
	}
	if _, ok := t.regs[r.Name]; ok {
		return ErrDuplicateName{Scope: "terminal " + t.Name, Name: r.Name}
	}
	if r.Width <= 0 {
		return ErrInvalidWidth{Name: r.Name, Width: r.Width}
	}
	if r.Array < 1 {
		return ErrInvalidArray{Name: r.Name, Array: r.Array}
	}
	if r.Fifo && r.Array != 1 {
		return ErrInvalidArray{Name: r.Name, Array: r.Array}
	}
	// a FIFO port is a single beat
	if r.Fifo && r.Width > t.DataWidth {
		return ErrInvalidWidth{Name: r.Name, Width: r.Width}
	}
	if r.Init != nil {
		if r.Init.Sign() < 0 {
			return ErrInvalidInit{Name: r.Name, What: "negative"}
		}
		if r.Init.BitLen() > r.Width {
			return ErrInvalidInit{Name: r.Name, What: fmt.Sprintf("0x%s wider than %d bits", r.Init.Text(16), r.Width)}
		}
	}

	reg := r
	reg.Stride = (r.Width + t.DataWidth - 1) / t.DataWidth
	span := uint64(reg.Stride) * uint64(reg.Array)
	if t.next+span > t.AddrSpace() {
		return ErrAddressSpace{Terminal: t.Name, Register: r.Name}
	}
	reg.Addr = uint32(t.next)
	if r.Init != nil {
		reg.Init = new(big.Int).Set(r.Init)
	}
	t.next += span
	t.Registers = append(t.Registers, &reg)
	t.regs[reg.Name] = &reg
	return nil
}

// Freeze ends the declaration phase
func (m *Map) Freeze() {
	m.frozen = true
}

func (m *Map) Frozen() bool {
	return m.frozen
}

func (m *Map) Terminal(name string) (*Terminal, error) {
	t, ok := m.byName[name]
	if !ok {
		return nil, ErrUnknownTerminal{Terminal: name}
	}
	return t, nil
}

func (m *Map) TerminalByID(id TerminalID) (*Terminal, bool) {
	if int(id) >= len(m.terminals) {
		return nil, false
	}
	return m.terminals[id], true
}

// Terminals returns terminals in declaration order
func (m *Map) Terminals() []*Terminal {
	result := make([]*Terminal, len(m.terminals))
	copy(result, m.terminals)
	return result
}

// Lookup finds the terminal and register a reference points to
func (m *Map) Lookup(ref Ref) (*Terminal, *Register, error) {
	t, err := m.Terminal(ref.Terminal)
	if err != nil {
		return nil, nil, err
	}
	r, err := t.Register(ref.Register)
	if err != nil {
		return nil, nil, err
	}
	return t, r, nil
}
