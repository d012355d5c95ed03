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

package command_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"jinr.ru/greenlab/go-hostif/pkg/backend/sim"
	"jinr.ru/greenlab/go-hostif/pkg/command"
	"jinr.ru/greenlab/go-hostif/pkg/config"
	"jinr.ru/greenlab/go-hostif/pkg/device"
	"jinr.ru/greenlab/go-hostif/pkg/engine"
	"jinr.ru/greenlab/go-hostif/pkg/regmap/regmaptest"
	"jinr.ru/greenlab/go-hostif/pkg/srv/control"
)

func newClient(t *testing.T) *command.ApiClient {
	t.Helper()
	m := regmaptest.NewMap()
	b, err := sim.New(m, sim.Options{Stall: []string{regmaptest.StallTerminal}})
	if err != nil {
		t.Fatal(err)
	}
	d, err := device.New(m, b, engine.Timeouts{
		Fast:  50 * time.Millisecond,
		Slow:  100 * time.Millisecond,
		Reset: 50 * time.Millisecond,
	}, 64)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	cfg := config.NewConfig(filepath.Join(dir, config.ConfigFile))
	cfg.DBPath = filepath.Join(dir, config.DBFile)
	s, err := control.NewControlServerWithDevice(context.Background(), cfg, d)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Api.IP = host
	if cfg.Api.Port, err = strconv.Atoi(port); err != nil {
		t.Fatal(err)
	}
	return command.NewApiClient(cfg)
}

func TestRegGetSet(t *testing.T) {
	c := newClient(t)

	if err := c.RegSet("Slow", "slow_reg", nil, "0x5555"); err != nil {
		t.Fatal(err)
	}
	if value, err := c.RegGet("Slow", "slow_reg", nil); err != nil || value != "0x5555" {
		t.Errorf("slow_reg = %s, %v", value, err)
	}
	index := 7
	if err := c.RegSet("Fast", "fast_buf", &index, "0xbeef"); err != nil {
		t.Fatal(err)
	}
	if value, err := c.RegGet("Fast", "fast_buf", &index); err != nil || value != "0xbeef" {
		t.Errorf("fast_buf[7] = %s, %v", value, err)
	}

	recs, err := c.State("Fast")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Register != "fast_buf" || *recs[0].Index != 7 {
		t.Errorf("state = %+v", recs)
	}
}

func TestReadWrite(t *testing.T) {
	c := newClient(t)

	index := 100
	values := []string{"0x1", "0x22", "0x333"}
	if err := c.Write("Slow", "slow_buf", &index, values); err != nil {
		t.Fatal(err)
	}
	got, err := c.Read("Slow", "slow_buf", &index, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"0x1", "0x22", "0x333", "0x6543"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slow_buf[%d] = %s, want %s", index+i, got[i], want[i])
		}
	}

	if err := c.RawWrite("FastRAM", "0x10", []string{"0xa", "0xb"}); err != nil {
		t.Fatal(err)
	}
	if got, err := c.RawRead("FastRAM", "0x10", 2); err != nil || len(got) != 2 || got[1] != "0xb" {
		t.Errorf("raw = %v, %v", got, err)
	}
}

func TestMapAndInit(t *testing.T) {
	c := newClient(t)

	view, err := c.Map()
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Terminals) != 6 || view.Terminals[1].Name != "Slow" {
		t.Errorf("map = %+v", view)
	}
	if err := c.RegSet("Fast", "fast_reg", nil, "0x1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}
	if value, err := c.RegGet("Fast", "fast_reg", nil); err != nil || value != "0xa" {
		t.Errorf("fast_reg = %s, %v", value, err)
	}
}

func TestApiErrors(t *testing.T) {
	c := newClient(t)

	var apiErr command.ErrApi
	if _, err := c.RegGet("Nope", "reg", nil); !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		t.Errorf("err = %v, want 404", err)
	}
	if err := c.RegSet("Fifo", "status", nil, "0x1"); !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
		t.Errorf("err = %v, want 400", err)
	}
	if _, err := c.RegGet(regmaptest.StallTerminal, "reg3", nil); !errors.As(err, &apiErr) || apiErr.Code != http.StatusGatewayTimeout {
		t.Errorf("err = %v, want 504", err)
	}
	if apiErr.Message == "" {
		t.Error("error message is empty")
	}
}
