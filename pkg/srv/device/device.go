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

// Package device serves terminal transactions over UDP in front of a backend,
// which makes a simulated device reachable by the UDP transport.
package device

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-hostif/pkg/backend"
	"jinr.ru/greenlab/go-hostif/pkg/layers"
	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/srv"
)

const resetTimeout = time.Second

type DeviceServer struct {
	srv.Server
	backend backend.Backend

	mu sync.Mutex
	// pending is the context of transactions in progress, cancelled by a reset frame
	pending       context.Context
	cancelPending context.CancelFunc
}

func NewDeviceServer(ctx context.Context, address string, port int, b backend.Backend) (*DeviceServer, error) {
	log.Debug("Initializing device server with address: %s port: %d", address, port)
	uaddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return nil, err
	}
	s := &DeviceServer{
		Server:  srv.NewServer(ctx, uaddr),
		backend: b,
	}
	s.pending, s.cancelPending = context.WithCancel(ctx)
	return s, nil
}

func (s *DeviceServer) Run() error {
	conn, err := net.ListenUDP("udp", s.UDPAddr)
	if err != nil {
		return err
	}
	return s.RunConn(conn)
}

// RunConn serves on an already bound connection and closes it on return
func (s *DeviceServer) RunConn(conn *net.UDPConn) error {
	defer conn.Close()
	log.Info("Device server listening on %s", conn.LocalAddr())

	// Read captured packets from input queue, parse them and execute requests
	go func() {
		source := gopacket.NewPacketSource(s, layers.MLinkLayerType)
		for packet := range source.Packets() {
			s.handle(packet)
		}
	}()
	return s.Serve(conn)
}

func (s *DeviceServer) handle(packet gopacket.Packet) {
	addr, err := srv.GetAddrPort(packet)
	if err != nil {
		log.Error(err.Error())
		return
	}
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		log.Debug("Drop packet from %s: %s", addr, errLayer.Error())
		return
	}
	mlLayer := packet.Layer(layers.MLinkLayerType)
	if mlLayer == nil {
		return
	}
	ml := mlLayer.(*layers.MLinkLayer)

	switch ml.Type {
	case layers.MLinkTypeTermReset:
		s.reset()
	case layers.MLinkTypeTermRequest:
		termLayer := packet.Layer(layers.TermLayerType)
		if termLayer == nil {
			log.Debug("Drop request #%d from %s: no terminal op", ml.Seq, addr)
			return
		}
		s.mu.Lock()
		ctx := s.pending
		s.mu.Unlock()
		// requests run concurrently so a stalled one does not hold the link
		go s.execute(ctx, ml.Seq, termLayer.(*layers.TermLayer).TermOp, addr)
	default:
		log.Debug("Drop packet from %s: unexpected type %s", addr, ml.Type)
	}
}

func (s *DeviceServer) reset() {
	s.mu.Lock()
	s.cancelPending()
	s.pending, s.cancelPending = context.WithCancel(s.Context)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.Context, resetTimeout)
	defer cancel()
	if err := s.backend.Reset(ctx); err != nil {
		log.Warning("Device reset failed: %s", err)
		return
	}
	log.Debug("Device reset")
}

func (s *DeviceServer) execute(ctx context.Context, seq uint16, op *layers.TermOp, addr *net.UDPAddr) {
	req := &backend.Request{
		Seq:      seq,
		Op:       backend.OpRead,
		Terminal: op.Terminal,
		Addr:     op.Addr,
		Count:    int(op.Count),
	}
	if !op.Read {
		req.Op = backend.OpWrite
		req.Data = op.Data
	}

	out := &layers.TermOp{Read: op.Read, Terminal: op.Terminal, Addr: op.Addr, Count: op.Count}
	resp, err := s.backend.Transact(ctx, req)
	switch {
	case err != nil && ctx.Err() != nil:
		log.Debug("Transaction %s dropped: %s", req, err)
		out.Status = layers.TermStatusDropped
	case err != nil:
		log.Debug("Transaction %s failed: %s", req, err)
		out.Status = layers.TermStatusFailed
	case op.Read:
		out.Data = resp.Data
	}

	data, err := layers.TermOpToBytes(out, layers.MLinkTypeTermResponse, seq)
	if err != nil {
		log.Error("Error while serializing response #%d to %s: %s", seq, addr, err)
		return
	}
	s.Send(data, addr)
}
