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

package engine

import (
	"fmt"
	"time"

	"jinr.ru/greenlab/go-hostif/pkg/backend"
)

type ErrWriteToReadOnly struct {
	Terminal string
	Register string
}

func (e ErrWriteToReadOnly) Error() string {
	return fmt.Sprintf("Register %s.%s is read only", e.Terminal, e.Register)
}

// ErrValueOutOfRange returned when a value does not fit the register (or,
// for raw accesses, the beat) width. Value is hex.
type ErrValueOutOfRange struct {
	Terminal string
	Register string
	Width    int
	Value    string
}

func (e ErrValueOutOfRange) Error() string {
	if e.Register == "" {
		return fmt.Sprintf("Value 0x%s does not fit %d bit beat of terminal %s", e.Value, e.Width, e.Terminal)
	}
	return fmt.Sprintf("Value 0x%s does not fit %d bit register %s.%s", e.Value, e.Width, e.Terminal, e.Register)
}

// ErrTimeout returned when the device did not complete a transaction within
// the deadline of the terminal class
type ErrTimeout struct {
	Terminal string
	Op       backend.Op
	After    time.Duration
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("Timeout: %s on terminal %s not completed after %s", e.Op, e.Terminal, e.After)
}

// ErrStaleResponse returned when the backend answers with a response that
// belongs to another transaction
type ErrStaleResponse struct {
	Want uint16
	Got  uint16
}

func (e ErrStaleResponse) Error() string {
	return fmt.Sprintf("Stale response: want #%d, got #%d", e.Want, e.Got)
}

type ErrResponseLength struct {
	Want int
	Got  int
}

func (e ErrResponseLength) Error() string {
	return fmt.Sprintf("Response carries %d beats, want %d", e.Got, e.Want)
}

// ErrPayloadLength returned when write data does not match the beat count of
// the address it is written to
type ErrPayloadLength struct {
	Want int
	Got  int
}

func (e ErrPayloadLength) Error() string {
	return fmt.Sprintf("Write payload carries %d beats, want %d", e.Got, e.Want)
}

type ErrInvalidTimeouts struct {
	Timeouts Timeouts
}

func (e ErrInvalidTimeouts) Error() string {
	return fmt.Sprintf("Invalid timeouts: fast %s, slow %s, reset %s (want 0 < fast <= slow, reset > 0)",
		e.Timeouts.Fast, e.Timeouts.Slow, e.Timeouts.Reset)
}

type ErrClosed struct{}

func (e ErrClosed) Error() string {
	return "Engine is closed"
}
