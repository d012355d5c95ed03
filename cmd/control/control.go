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
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-hostif/cmd/control/reg"
	"jinr.ru/greenlab/go-hostif/pkg/command"
	"jinr.ru/greenlab/go-hostif/pkg/config"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control",
		Short: "Run the control server and talk to it",
	}
	cmd.AddCommand(NewStartCommand())
	cmd.AddCommand(NewMapCommand())
	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(reg.NewCommand())
	return cmd
}

func NewMapCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Print the register map the control server works with",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := command.NewApiClient(cfg).Map()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Map: %s\n", view.Name)
			for _, t := range view.Terminals {
				fmt.Fprintf(out, "%s id=%d class=%s data_width=%d\n", t.Name, t.ID, t.Class, t.DataWidth)
				for _, r := range t.Registers {
					fmt.Fprintf(out, "  %s %-16s width=%d mode=%s array=%d\n", r.Addr, r.Name, r.Width, r.Mode, r.Array)
				}
			}
			return nil
		},
	}
	return cmd
}

func NewInitCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write init values to every writable register",
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).Init()
		},
	}
	return cmd
}
