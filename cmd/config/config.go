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
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"jinr.ru/greenlab/go-hostif/pkg/config"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
)

const (
	ForceOptionName = "force"
	PathOptionName  = "path"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewShowCommand())
	cmd.AddCommand(NewCheckMapCommand())
	return cmd
}

func NewInitCommand() *cobra.Command {
	var force bool
	var path string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewDefaultConfig()
			if path != "" {
				cfg = config.NewConfig(path)
			}
			if err := cfg.Persist(force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", cfg.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, ForceOptionName, false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&path, PathOptionName, "", fmt.Sprintf("Configuration file path. Default %s", config.DefaultConfigPath()))
	return cmd
}

func NewShowCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	return cmd
}

func NewCheckMapCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "check-map [path]",
		Short: "Load the register map and print the assigned addresses",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.MapPath
			if len(args) == 1 {
				path = args[0]
			}
			m, err := regmap.LoadFile(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range m.Terminals() {
				fmt.Fprintf(out, "%s id=%d class=%s addr_width=%d data_width=%d used=%d/%d\n",
					t.Name, t.ID, t.Class, t.AddrWidth, t.DataWidth, t.Used(), t.AddrSpace())
				for _, r := range t.Registers {
					fmt.Fprintf(out, "  0x%04x %-16s width=%d mode=%s array=%d stride=%d\n",
						r.Addr, r.Name, r.Width, r.Mode, r.Array, r.Stride)
				}
			}
			return nil
		},
	}
	return cmd
}
