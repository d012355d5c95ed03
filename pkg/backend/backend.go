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

// Package backend defines the narrow request/response contract between the
// transaction engine and whatever executes bus cycles: the simulator or a
// real device behind a UDP link.
package backend

import (
	"context"
	"fmt"
)

type Op int

const (
	OpRead Op = iota
	OpWrite
)

func (op Op) String() string {
	if op == OpWrite {
		return "write"
	}
	return "read"
}

// Request is a single bus transaction: Count beats starting at Addr on
// a terminal. Data holds Count beats for writes and is nil for reads.
type Request struct {
	Seq      uint16
	Op       Op
	Terminal uint16
	Addr     uint32
	Count    int
	Data     []uint64
}

func (r *Request) String() string {
	return fmt.Sprintf("#%d %s terminal=%d addr=%d count=%d", r.Seq, r.Op, r.Terminal, r.Addr, r.Count)
}

// Response completes the request with the same Seq. Data holds Count beats
// for reads and is empty for writes.
type Response struct {
	Seq  uint16
	Data []uint64
}

// Backend executes transactions. Transact blocks until the device signals
// ready or ctx is done, in which case it returns ctx.Err(). Implementations
// are not required to honour ctx promptly: the engine never relies on it.
// Reset drops any transaction still pending on the device side and returns
// the transport to idle.
type Backend interface {
	Transact(ctx context.Context, req *Request) (*Response, error)
	Reset(ctx context.Context) error
	Close() error
}
