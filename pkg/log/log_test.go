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

package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "warning")
	defer Init(os.Stderr, "info")

	Debug("debug %d", 1)
	Info("info %d", 2)
	Warning("warn %d", 3)
	Error("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below warning level were logged: %q", out)
	}
	if !strings.Contains(out, WarningPrefix+"warn 3") {
		t.Errorf("warning message missing: %q", out)
	}
	if !strings.Contains(out, ErrorPrefix+"error 4") {
		t.Errorf("error message missing: %q", out)
	}
}

func TestSetLevelRejectsUnknown(t *testing.T) {
	if err := SetLevel("verbose"); err == nil {
		t.Error("SetLevel(verbose) succeeded, want error")
	}
	if err := SetLevel("DEBUG"); err != nil {
		t.Errorf("SetLevel(DEBUG) = %v, want nil", err)
	}
	if Level() != DebugLevel {
		t.Errorf("Level() = %d, want %d", Level(), DebugLevel)
	}
	SetLevel("info")
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "info")
	defer Init(os.Stderr, "info")

	Writer().Write([]byte("GET /api/map 200\n"))
	if !strings.Contains(buf.String(), InfoPrefix+"GET /api/map 200") {
		t.Errorf("writer output = %q", buf.String())
	}

	buf.Reset()
	SetLevel("error")
	Writer().Write([]byte("dropped\n"))
	if buf.Len() != 0 {
		t.Errorf("writer logged below level: %q", buf.String())
	}
}
