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

package sim

import (
	"fmt"
)

type ErrClosed struct{}

func (e ErrClosed) Error() string {
	return "Simulated device is closed"
}

// ErrReset returned to a transaction that was pending when the device was reset
type ErrReset struct {
	Seq uint16
}

func (e ErrReset) Error() string {
	return fmt.Sprintf("Transaction #%d dropped by device reset", e.Seq)
}

type ErrUnknownTerminalID struct {
	ID uint16
}

func (e ErrUnknownTerminalID) Error() string {
	return fmt.Sprintf("Unknown terminal id: %d", e.ID)
}

type ErrBadRequest struct {
	Seq  uint16
	What string
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("Bad request #%d: %s", e.Seq, e.What)
}
