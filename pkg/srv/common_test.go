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

package srv_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-hostif/pkg/srv"
)

// TestServeEcho runs an echo server on top of the channel pumps
func TestServeEcho(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	ctx, cancel := context.WithCancel(context.Background())
	s := srv.NewServer(ctx, conn.LocalAddr().(*net.UDPAddr))

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(conn) }()
	go func() {
		source := gopacket.NewPacketSource(&s, gopacket.LayerTypePayload)
		for packet := range source.Packets() {
			addr, err := srv.GetAddrPort(packet)
			if err != nil {
				t.Error(err)
				return
			}
			s.Send(packet.Data(), addr)
		}
	}()

	client, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 16)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("got %q, want ping", buf[:n])
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestGetAddrPortWithoutAddress(t *testing.T) {
	packet := gopacket.NewPacket([]byte("x"), gopacket.LayerTypePayload, gopacket.Default)
	var addrErr srv.ErrGetAddr
	if _, err := srv.GetAddrPort(packet); !errors.As(err, &addrErr) {
		t.Errorf("err = %v, want ErrGetAddr", err)
	}
}
