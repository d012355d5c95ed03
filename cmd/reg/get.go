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

package reg

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	hostifcmd "jinr.ru/greenlab/go-hostif/pkg/cmd"
	"jinr.ru/greenlab/go-hostif/pkg/config"
	deviceifc "jinr.ru/greenlab/go-hostif/pkg/device/ifc"
	"jinr.ru/greenlab/go-hostif/pkg/srv/control"
)

func NewGetCommand() *cobra.Command {
	var timeout time.Duration
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "get terminal.register[index]",
		Short: "Get register value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := hostifcmd.ParseRef(args[0])
			if err != nil {
				return err
			}
			return hostifcmd.Direct(cfg, timeout, func(ctx context.Context, d deviceifc.Device) error {
				value, err := d.GetBig(ctx, ref)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", ref, control.BigToHex(value))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, TimeoutOptionName, hostifcmd.DefaultTimeout, "Give up after")

	return cmd
}

func NewReadCommand() *cobra.Command {
	var timeout time.Duration
	var length int
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "read terminal.register[index]",
		Short: "Read consecutive register elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := hostifcmd.ParseRef(args[0])
			if err != nil {
				return err
			}
			return hostifcmd.Direct(cfg, timeout, func(ctx context.Context, d deviceifc.Device) error {
				values, err := d.ReadBig(ctx, ref, length)
				if err != nil {
					return err
				}
				hostifcmd.PrintValues(cmd.OutOrStdout(), ref.Index, control.BigToHexValues(values))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, TimeoutOptionName, hostifcmd.DefaultTimeout, "Give up after")
	cmd.Flags().IntVar(&length, LengthOptionName, 1, "Number of elements to read")

	return cmd
}
