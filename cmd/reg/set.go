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
	"time"

	"github.com/spf13/cobra"

	hostifcmd "jinr.ru/greenlab/go-hostif/pkg/cmd"
	"jinr.ru/greenlab/go-hostif/pkg/config"
	deviceifc "jinr.ru/greenlab/go-hostif/pkg/device/ifc"
	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/srv/control"
)

func NewSetCommand() *cobra.Command {
	var timeout time.Duration
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "set terminal.register[index] value",
		Short: "Set register value, value is hexadecimal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := hostifcmd.ParseRef(args[0])
			if err != nil {
				return err
			}
			value, err := control.ParseBigHex(args[1])
			if err != nil {
				return err
			}
			return hostifcmd.Direct(cfg, timeout, func(ctx context.Context, d deviceifc.Device) error {
				if err := d.SetBig(ctx, ref, value); err != nil {
					return err
				}
				log.Info("%s set to %s", ref, control.BigToHex(value))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, TimeoutOptionName, hostifcmd.DefaultTimeout, "Give up after")

	return cmd
}

func NewWriteCommand() *cobra.Command {
	var timeout time.Duration
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "write terminal.register[index] value...",
		Short: "Write consecutive register elements, values are hexadecimal",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := hostifcmd.ParseRef(args[0])
			if err != nil {
				return err
			}
			values, err := control.ParseBigHexValues(args[1:])
			if err != nil {
				return err
			}
			return hostifcmd.Direct(cfg, timeout, func(ctx context.Context, d deviceifc.Device) error {
				return d.WriteBig(ctx, ref, values)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, TimeoutOptionName, hostifcmd.DefaultTimeout, "Give up after")

	return cmd
}

func NewInitCommand() *cobra.Command {
	var timeout time.Duration
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write init values to every writable register",
		RunE: func(cmd *cobra.Command, args []string) error {
			return hostifcmd.Direct(cfg, timeout, func(ctx context.Context, d deviceifc.Device) error {
				return d.Init(ctx)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, TimeoutOptionName, hostifcmd.DefaultTimeout, "Give up after")

	return cmd
}
