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

package sim

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-hostif/pkg/command"
	"jinr.ru/greenlab/go-hostif/pkg/config"
)

const (
	AddressOptionName = "address"
	PortOptionName    = "port"
	StallOptionName   = "stall"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Simulated device",
	}
	cmd.AddCommand(NewServeCommand())
	return cmd
}

func NewServeCommand() *cobra.Command {
	var address string
	var port int
	var stall []string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a simulated device built from the register map over UDP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(stall) > 0 {
				cfg.Backend.StallTerminals = stall
			}
			return command.StartDeviceServer(cfg, address, port)
		},
	}
	cmd.Flags().StringVar(&address, AddressOptionName, "127.0.0.1", "Address to bind")
	cmd.Flags().IntVar(&port, PortOptionName, config.DefaultDevicePort, fmt.Sprintf("Port to bind. E.g. %d", config.DefaultDevicePort))
	cmd.Flags().StringSliceVar(&stall, StallOptionName, nil, "Terminals that never become read ready")

	return cmd
}
