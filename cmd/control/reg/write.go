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
	"github.com/spf13/cobra"

	hostifcmd "jinr.ru/greenlab/go-hostif/pkg/cmd"
	"jinr.ru/greenlab/go-hostif/pkg/command"
	"jinr.ru/greenlab/go-hostif/pkg/config"
)

func NewSetCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "set terminal.register[index] value",
		Short: "Write a register element, value is hexadecimal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := hostifcmd.ParseRef(args[0])
			if err != nil {
				return err
			}
			return command.NewApiClient(cfg).RegSet(ref.Terminal, ref.Register, hostifcmd.IndexOf(ref), args[1])
		},
	}
	return cmd
}

func NewWriteCommand() *cobra.Command {
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
			return command.NewApiClient(cfg).Write(ref.Terminal, ref.Register, hostifcmd.IndexOf(ref), args[1:])
		},
	}
	return cmd
}

func NewRawWriteCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "raw-write terminal addr value...",
		Short: "Write beats at a terminal address, values are hexadecimal",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).RawWrite(args[0], args[1], args[2:])
		},
	}
	return cmd
}
