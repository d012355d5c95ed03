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
	"fmt"

	"github.com/spf13/cobra"

	hostifcmd "jinr.ru/greenlab/go-hostif/pkg/cmd"
	"jinr.ru/greenlab/go-hostif/pkg/command"
	"jinr.ru/greenlab/go-hostif/pkg/config"
)

func NewGetCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "get terminal.register[index]",
		Short: "Read a register element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := hostifcmd.ParseRef(args[0])
			if err != nil {
				return err
			}
			value, err := command.NewApiClient(cfg).RegGet(ref.Terminal, ref.Register, hostifcmd.IndexOf(ref))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Register state: %s = %s\n", ref, value)
			return nil
		},
	}
	return cmd
}

func NewReadCommand() *cobra.Command {
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
			values, err := command.NewApiClient(cfg).Read(ref.Terminal, ref.Register, hostifcmd.IndexOf(ref), length)
			if err != nil {
				return err
			}
			hostifcmd.PrintValues(cmd.OutOrStdout(), ref.Index, values)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, LengthOptionName, 1, "Number of elements to read")

	return cmd
}

func NewRawReadCommand() *cobra.Command {
	var length int
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "raw-read terminal addr",
		Short: "Read beats at a terminal address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := command.NewApiClient(cfg).RawRead(args[0], args[1], length)
			if err != nil {
				return err
			}
			hostifcmd.PrintValues(cmd.OutOrStdout(), 0, values)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, LengthOptionName, 1, "Number of beats to read")

	return cmd
}

func NewStateCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "state terminal",
		Short: "Print the last known register values of a terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := command.NewApiClient(cfg).State(args[0])
			if err != nil {
				return err
			}
			for _, rec := range recs {
				key := rec.Register
				if rec.Index != nil {
					key = fmt.Sprintf("%s[%d]", rec.Register, *rec.Index)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Register state: %s.%s = %s (%s at %s)\n",
					args[0], key, rec.Value, rec.Op, rec.Updated)
			}
			return nil
		},
	}
	return cmd
}
