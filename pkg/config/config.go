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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"jinr.ru/greenlab/go-hostif/pkg/layers"
)

// BackendConfig selects and tunes the transport used to reach the device
type BackendConfig struct {
	// Kind is one of sim, udp
	Kind    string `yaml:"kind"`
	Address string `yaml:"address,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	// Simulator only
	StallTerminals []string      `yaml:"stall_terminals,omitempty"`
	FastLatency    time.Duration `yaml:"fast_latency,omitempty"`
	SlowLatency    time.Duration `yaml:"slow_latency,omitempty"`
}

// TimeoutConfig holds the per terminal class response deadlines
type TimeoutConfig struct {
	Fast  time.Duration `yaml:"fast"`
	Slow  time.Duration `yaml:"slow"`
	Reset time.Duration `yaml:"reset"`
}

type ApiConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type Config struct {
	LogLevel string         `yaml:"log_level"`
	MapPath  string         `yaml:"map_path"`
	DBPath   string         `yaml:"db_path"`
	Burst    int            `yaml:"burst"`
	Backend  *BackendConfig `yaml:"backend"`
	Timeouts *TimeoutConfig `yaml:"timeouts"`
	Api      *ApiConfig     `yaml:"api"`
	filepath string
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(c.filepath, data, 0644)
}

func (c *Config) LoadConfig() error {
	data, err := ioutil.ReadFile(c.filepath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", c.filepath, err)
	}
	return nil
}

// Load reads the config file if there is one. A missing file leaves the defaults in place.
func (c *Config) Load() error {
	err := c.LoadConfig()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Validate checks the values that can not be fixed up silently
func (c *Config) Validate() error {
	if c.Burst < 1 {
		return ErrInvalidConfig{What: fmt.Sprintf("burst must be >= 1, got %d", c.Burst)}
	}
	if c.Timeouts == nil || c.Timeouts.Fast <= 0 {
		return ErrInvalidConfig{What: "fast timeout must be positive"}
	}
	if c.Timeouts.Slow < c.Timeouts.Fast {
		return ErrInvalidConfig{What: fmt.Sprintf("slow timeout %s is shorter than fast timeout %s",
			c.Timeouts.Slow, c.Timeouts.Fast)}
	}
	if c.Timeouts.Reset <= 0 {
		return ErrInvalidConfig{What: "reset timeout must be positive"}
	}
	if c.Backend == nil {
		return ErrInvalidConfig{What: "backend section is missing"}
	}
	switch c.Backend.Kind {
	case BackendSim:
	case BackendUDP:
		if c.Backend.Address == "" {
			return ErrInvalidConfig{What: "udp backend needs an address"}
		}
		if c.Burst > layers.TermMaxBeats {
			return ErrInvalidConfig{What: fmt.Sprintf("burst %d does not fit a frame (max %d)", c.Burst, layers.TermMaxBeats)}
		}
	default:
		return ErrInvalidConfig{What: fmt.Sprintf("unknown backend kind %q", c.Backend.Kind)}
	}
	if c.MapPath == "" {
		return ErrInvalidConfig{What: "map_path is empty"}
	}
	return nil
}

func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir)
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), ConfigFile)
}

// NewConfig returns the default config bound to the given file path
func NewConfig(path string) *Config {
	dir := DefaultConfigDir()
	return &Config{
		LogLevel: DefaultLogLevel,
		MapPath:  filepath.Join(dir, MapFile),
		DBPath:   filepath.Join(dir, DBFile),
		Burst:    DefaultBurst,
		Backend: &BackendConfig{
			Kind:        DefaultBackend,
			Address:     DefaultDeviceAddress,
			Port:        DefaultDevicePort,
			SlowLatency: DefaultSlowLatency,
		},
		Timeouts: &TimeoutConfig{
			Fast:  DefaultFastTimeout,
			Slow:  DefaultSlowTimeout,
			Reset: DefaultResetTimeout,
		},
		Api: &ApiConfig{
			IP:   DefaultApiIP,
			Port: DefaultApiPort,
		},
		filepath: path,
	}
}

func NewDefaultConfig() *Config {
	return NewConfig(DefaultConfigPath())
}
