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

package control

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"jinr.ru/greenlab/go-hostif/pkg/config"
	devicepkg "jinr.ru/greenlab/go-hostif/pkg/device"
	deviceifc "jinr.ru/greenlab/go-hostif/pkg/device/ifc"
	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/srv/control/ifc"
)

// ControlServer owns the device connection and exposes it through the API
// server. Every register accessed through the API is recorded in the state
// database.
type ControlServer struct {
	context.Context
	*config.Config
	device deviceifc.Device
	state  *RegState
	api    ifc.ApiServer

	closeOnce sync.Once
	closeErr  error
}

var _ ifc.ControlServer = &ControlServer{}

// NewControlServer opens the device described by the config
func NewControlServer(ctx context.Context, cfg *config.Config) (*ControlServer, error) {
	d, err := devicepkg.Open(cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewControlServerWithDevice(ctx, cfg, d)
	if err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

// NewControlServerWithDevice serves an already opened device. The server
// takes ownership of the device and closes it on Close.
func NewControlServerWithDevice(ctx context.Context, cfg *config.Config, d deviceifc.Device) (*ControlServer, error) {
	log.Debug("Initializing control server: map: %s state: %s", d.Map().Name, cfg.DBPath)

	regState, err := NewRegState(ctx, cfg.DBPath, d.Map())
	if err != nil {
		return nil, err
	}

	s := &ControlServer{
		Context: ctx,
		Config:  cfg,
		device:  d,
		state:   regState,
	}

	apiServer, err := NewApiServer(ctx, cfg, s)
	if err != nil {
		regState.Close()
		return nil, err
	}
	s.api = apiServer

	return s, nil
}

func (s *ControlServer) Device() deviceifc.Device {
	return s.device
}

func (s *ControlServer) State() ifc.State {
	return s.state
}

// Handler is the API handler, usable without a listening socket
func (s *ControlServer) Handler() http.Handler {
	return s.api.Handler()
}

// Run serves the API until the context is done, then closes the device
func (s *ControlServer) Run() error {
	defer s.Close()

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.api.Run()
	}()

	select {
	case <-s.Context.Done():
		// wait for the API server to shut down gracefully
		if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warning("API server shutdown: %s", err)
		}
		return s.Context.Err()
	case err := <-errChan:
		if s.Context.Err() != nil {
			return s.Context.Err()
		}
		return err
	}
}

func (s *ControlServer) Close() error {
	s.closeOnce.Do(func() {
		if err := s.state.Close(); err != nil {
			log.Warning("Error while closing state database: %s", err)
		}
		s.closeErr = s.device.Close()
	})
	return s.closeErr
}
