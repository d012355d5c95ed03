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

// ErrDuplicateName returned when a terminal or register name is declared twice in the same scope
type ErrDuplicateName struct {
	Scope string
	Name  string
}

func (e ErrDuplicateName) Error() string {
	return fmt.Sprintf("Duplicate name in %s: %s", e.Scope, e.Name)
}

// ErrInvalidWidth returned for non-positive register widths and unsupported terminal widths
type ErrInvalidWidth struct {
	Name  string
	Width int
}

func (e ErrInvalidWidth) Error() string {
	return fmt.Sprintf("Invalid width for %s: %d", e.Name, e.Width)
}

// ErrInvalidArray returned when a register array length is less than 1
type ErrInvalidArray struct {
	Name  string
	Array int
}

func (e ErrInvalidArray) Error() string {
	return fmt.Sprintf("Invalid array length for %s: %d", e.Name, e.Array)
}

// ErrInvalidInit returned when an initial value does not fit the register width
type ErrInvalidInit struct {
	Name string
	What string
}

func (e ErrInvalidInit) Error() string {
	return fmt.Sprintf("Invalid initial value for %s: %s", e.Name, e.What)
}

// ErrAddressSpace returned when a register does not fit into the terminal address space
type ErrAddressSpace struct {
	Terminal string
	Register string
}

func (e ErrAddressSpace) Error() string {
	return fmt.Sprintf("Register %s does not fit into address space of terminal %s", e.Register, e.Terminal)
}

// ErrMapFrozen returned when declaring into a map that is already in use
type ErrMapFrozen struct{}

func (e ErrMapFrozen) Error() string {
	return "Register map is frozen"
}

type ErrUnknownTerminal struct {
	Terminal string
}

func (e ErrUnknownTerminal) Error() string {
	return fmt.Sprintf("Unknown terminal: %s", e.Terminal)
}

type ErrUnknownRegister struct {
	Terminal string
	Register string
}

func (e ErrUnknownRegister) Error() string {
	return fmt.Sprintf("Unknown register: %s.%s", e.Terminal, e.Register)
}

// ErrIndexOutOfRange returned for element indexes outside of a register array.
// Index is -1 when an index was required but not given.
type ErrIndexOutOfRange struct {
	Terminal string
	Register string
	Index    int
	Length   int
}

func (e ErrIndexOutOfRange) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("Index required for %s.%s (array length %d)", e.Terminal, e.Register, e.Length)
	}
	if e.Length == 1 {
		return fmt.Sprintf("Index %d given for scalar register %s.%s", e.Index, e.Terminal, e.Register)
	}
	return fmt.Sprintf("Index %d out of range for %s.%s (array length %d)", e.Index, e.Terminal, e.Register, e.Length)
}

// ErrAddressOutOfRange returned for raw accesses past the terminal address space
type ErrAddressOutOfRange struct {
	Terminal string
	Addr     uint32
	Beats    int
}

func (e ErrAddressOutOfRange) Error() string {
	return fmt.Sprintf("Address range 0x%x+%d out of range for terminal %s", e.Addr, e.Beats, e.Terminal)
}
