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

// Package udp talks to a device with MLink framed terminal transactions over
// UDP. Responses are matched to requests by sequence number; frames nobody
// waits for are dropped.
package udp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"jinr.ru/greenlab/go-hostif/pkg/backend"
	"jinr.ru/greenlab/go-hostif/pkg/layers"
	"jinr.ru/greenlab/go-hostif/pkg/log"
)

type UDP struct {
	conn *net.UDPConn

	mu      sync.Mutex
	pending map[uint16]chan *layers.TermOp
	closed  bool
	done    chan struct{}
}

var _ backend.Backend = &UDP{}

// Dial connects to the device and starts receiving responses
func Dial(address string, port int) (*UDP, error) {
	log.Debug("Connecting to device: address: %s port: %d", address, port)
	uaddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, uaddr)
	if err != nil {
		return nil, err
	}
	u := &UDP{
		conn:    conn,
		pending: map[uint16]chan *layers.TermOp{},
		done:    make(chan struct{}),
	}
	go u.receive()
	return u, nil
}

func (u *UDP) receive() {
	buffer := make([]byte, 65536)
	for {
		length, err := u.conn.Read(buffer)
		if err != nil {
			u.mu.Lock()
			closed := u.closed
			u.mu.Unlock()
			if !closed {
				log.Error("Error while reading from %s: %s", u.conn.RemoteAddr(), err)
			}
			return
		}
		data := make([]byte, length)
		copy(data, buffer[:length])

		ml, op, err := layers.DecodeTermFrame(data)
		if err != nil {
			log.Debug("Drop frame from %s: %s", u.conn.RemoteAddr(), err)
			continue
		}
		if ml.Type != layers.MLinkTypeTermResponse {
			log.Debug("Drop frame #%d: unexpected type %s", ml.Seq, ml.Type)
			continue
		}

		u.mu.Lock()
		ch, ok := u.pending[ml.Seq]
		delete(u.pending, ml.Seq)
		u.mu.Unlock()
		if !ok {
			log.Debug("Drop stale response #%d", ml.Seq)
			continue
		}
		ch <- op
	}
}

func (u *UDP) Transact(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if req.Count > layers.TermMaxBeats {
		return nil, ErrFrameTooLarge{Beats: req.Count}
	}
	op := &layers.TermOp{
		Read:     req.Op == backend.OpRead,
		Terminal: req.Terminal,
		Addr:     req.Addr,
		Count:    uint16(req.Count),
	}
	if req.Op == backend.OpWrite {
		op.Data = req.Data
	}
	data, err := layers.TermOpToBytes(op, layers.MLinkTypeTermRequest, req.Seq)
	if err != nil {
		return nil, err
	}

	ch := make(chan *layers.TermOp, 1)
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil, ErrClosed{}
	}
	u.pending[req.Seq] = ch
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		if u.pending[req.Seq] == ch {
			delete(u.pending, req.Seq)
		}
		u.mu.Unlock()
	}()

	if _, err := u.conn.Write(data); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Status != layers.TermStatusOK {
			return nil, ErrStatus{Seq: req.Seq, Status: resp.Status}
		}
		if resp.Terminal != req.Terminal || resp.Addr != req.Addr || resp.Read != op.Read {
			return nil, ErrUnexpectedResponse{Seq: req.Seq}
		}
		return &backend.Response{Seq: req.Seq, Data: resp.Data}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-u.done:
		return nil, ErrClosed{}
	}
}

// Reset forgets every pending request and asks the device to drop them
func (u *UDP) Reset(ctx context.Context) error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed{}
	}
	for seq := range u.pending {
		log.Debug("Forget pending request #%d", seq)
		delete(u.pending, seq)
	}
	u.mu.Unlock()

	data, err := layers.ResetToBytes(0)
	if err != nil {
		return err
	}
	_, err = u.conn.Write(data)
	return err
}

func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	close(u.done)
	return u.conn.Close()
}
