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

package udp

import (
	"fmt"

	"jinr.ru/greenlab/go-hostif/pkg/layers"
)

// ErrStatus returned when the device answers with a non-zero status word
type ErrStatus struct {
	Seq    uint16
	Status uint16
}

func (e ErrStatus) Error() string {
	return fmt.Sprintf("Device status 0x%04x for request #%d", e.Status, e.Seq)
}

type ErrFrameTooLarge struct {
	Beats int
}

func (e ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("Transaction of %d beats does not fit a frame (max %d)", e.Beats, layers.TermMaxBeats)
}

// ErrUnexpectedResponse returned when a response does not echo its request
type ErrUnexpectedResponse struct {
	Seq uint16
}

func (e ErrUnexpectedResponse) Error() string {
	return fmt.Sprintf("Response #%d does not match its request", e.Seq)
}

type ErrClosed struct{}

func (e ErrClosed) Error() string {
	return "Connection is closed"
}
