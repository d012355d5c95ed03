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

package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"jinr.ru/greenlab/go-hostif/pkg/backend/sim"
	"jinr.ru/greenlab/go-hostif/pkg/config"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
	"jinr.ru/greenlab/go-hostif/pkg/srv/control"
	"jinr.ru/greenlab/go-hostif/pkg/srv/device"
)

// StartControlServer serves the device described by the config until interrupted
func StartControlServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := control.NewControlServer(ctx, cfg)
	if err != nil {
		return err
	}
	return s.Run()
}

// StartDeviceServer exposes a simulated device over UDP until interrupted
func StartDeviceServer(cfg *config.Config, address string, port int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := regmap.LoadFile(cfg.MapPath)
	if err != nil {
		return err
	}
	s, err := sim.New(m, sim.Options{
		FastLatency: cfg.Backend.FastLatency,
		SlowLatency: cfg.Backend.SlowLatency,
		Stall:       cfg.Backend.StallTerminals,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	ds, err := device.NewDeviceServer(ctx, address, port, s)
	if err != nil {
		return err
	}
	return ds.Run()
}
