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

package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestPersistAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ConfigFile)
	cfg := NewConfig(path)
	cfg.Burst = 64
	cfg.Timeouts.Fast = 30 * time.Millisecond
	cfg.Backend.StallTerminals = []string{"NeverReadReady"}

	if err := cfg.Persist(false); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	err := cfg.Persist(false)
	var exists ErrConfigFileExists
	if !errors.As(err, &exists) {
		t.Fatalf("second Persist = %v, want ErrConfigFileExists", err)
	}
	if err := cfg.Persist(true); err != nil {
		t.Fatalf("Persist(overwrite): %v", err)
	}

	loaded := NewConfig(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Burst != 64 {
		t.Errorf("Burst = %d, want 64", loaded.Burst)
	}
	if loaded.Timeouts.Fast != 30*time.Millisecond {
		t.Errorf("Timeouts.Fast = %s, want 30ms", loaded.Timeouts.Fast)
	}
	if len(loaded.Backend.StallTerminals) != 1 || loaded.Backend.StallTerminals[0] != "NeverReadReady" {
		t.Errorf("StallTerminals = %v", loaded.Backend.StallTerminals)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg := NewConfig(filepath.Join(t.TempDir(), "missing"))
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Burst != DefaultBurst {
		t.Errorf("Burst = %d, want %d", cfg.Burst, DefaultBurst)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero burst", func(c *Config) { c.Burst = 0 }},
		{"slow below fast", func(c *Config) { c.Timeouts.Slow = c.Timeouts.Fast / 2 }},
		{"zero fast", func(c *Config) { c.Timeouts.Fast = 0 }},
		{"unknown backend", func(c *Config) { c.Backend.Kind = "pcie" }},
		{"udp without address", func(c *Config) { c.Backend.Kind = BackendUDP; c.Backend.Address = "" }},
		{"udp burst larger than a frame", func(c *Config) { c.Backend.Kind = BackendUDP; c.Burst = 1000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("unused")
			tt.mutate(cfg)
			var invalid ErrInvalidConfig
			if err := cfg.Validate(); !errors.As(err, &invalid) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
