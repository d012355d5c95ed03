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

// Package cmd holds helpers shared by the command line tools that access the
// device directly, without a control server.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"jinr.ru/greenlab/go-hostif/pkg/config"
	"jinr.ru/greenlab/go-hostif/pkg/device"
	deviceifc "jinr.ru/greenlab/go-hostif/pkg/device/ifc"
	"jinr.ru/greenlab/go-hostif/pkg/log"
	"jinr.ru/greenlab/go-hostif/pkg/regmap"
)

const (
	DefaultTimeout = 30 * time.Second
	defaultColumns = 80
)

type ErrBadRef struct {
	Ref string
}

func (e ErrBadRef) Error() string {
	return fmt.Sprintf("Bad register reference %q, must be terminal.register or terminal.register[index]", e.Ref)
}

// Direct opens the device described by the config, runs fn and closes the
// device. The whole run is bound by timeout.
func Direct(cfg *config.Config, timeout time.Duration, fn func(ctx context.Context, d deviceifc.Device) error) error {
	d, err := device.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Warning("Error while closing device: %s", err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, d)
}

// ParseRef parses terminal.register and terminal.register[index]
func ParseRef(s string) (regmap.Ref, error) {
	dot := strings.Index(s, ".")
	if dot <= 0 || dot == len(s)-1 {
		return regmap.Ref{}, ErrBadRef{Ref: s}
	}
	terminal, register := s[:dot], s[dot+1:]
	open := strings.Index(register, "[")
	if open < 0 {
		return regmap.NewRef(terminal, register), nil
	}
	if open == 0 || !strings.HasSuffix(register, "]") {
		return regmap.Ref{}, ErrBadRef{Ref: s}
	}
	index, err := strconv.Atoi(register[open+1 : len(register)-1])
	if err != nil || index < 0 {
		return regmap.Ref{}, ErrBadRef{Ref: s}
	}
	return regmap.NewRef(terminal, register[:open]).At(index), nil
}

// IndexOf returns the index of a reference as the API expects it
func IndexOf(ref regmap.Ref) *int {
	if !ref.Indexed {
		return nil
	}
	index := ref.Index
	return &index
}

// PrintValues writes values labelled with their element index starting at
// start. On a terminal as many values as fit are put on one line; otherwise
// every value gets its own line.
func PrintValues(w io.Writer, start int, values []string) {
	cell := 0
	for _, v := range values {
		if len(v) > cell {
			cell = len(v)
		}
	}
	label := len(strconv.Itoa(start + len(values)))
	cell += label + 4

	perLine := 1
	if columns, ok := terminalWidth(w); ok && columns >= cell {
		perLine = columns / cell
	}
	for i, v := range values {
		if (i+1)%perLine == 0 || i == len(values)-1 {
			fmt.Fprintf(w, "[%*d] %s\n", label, start+i, v)
			continue
		}
		fmt.Fprintf(w, "[%*d] %-*s", label, start+i, cell-label-3, v)
	}
}

func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	columns, _, err := term.GetSize(int(f.Fd()))
	if err != nil || columns <= 0 {
		return defaultColumns, true
	}
	return columns, true
}
