// Copyright 2023 The Okteto Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	sp "github.com/briandowns/spinner"
	"golang.org/x/term"
)

// DisableSpinnerEnvVar disables the spinner when set to a non-empty value,
// useful for CI logs.
const DisableSpinnerEnvVar = "TELEPRESENCE_DISABLE_SPINNER"

var spinnerLog = struct {
	sp      *sp.Spinner
	support bool
}{
	sp:      sp.New(sp.CharSets[14], 100*time.Millisecond, sp.WithHiddenCursor(true)),
	support: os.Getenv(DisableSpinnerEnvVar) == "" && term.IsTerminal(int(os.Stdout.Fd())),
}

// Spinner sets the text shown next to the spinner glyph.
func Spinner(text string) {
	spinnerLog.sp.Lock()
	spinnerLog.sp.Suffix = fmt.Sprintf(" %s", text)
	spinnerLog.sp.Unlock()
}

// StartSpinner animates the spinner on a TTY; otherwise it prints the
// text once so non-interactive sinks still record progress.
func StartSpinner() {
	if spinnerLog.support {
		spinnerLog.sp.Start()
		return
	}
	Infof("%s", strings.TrimSpace(spinnerLog.sp.Suffix))
}

// StopSpinner stops the animation and clears the line.
func StopSpinner() {
	if spinnerLog.support {
		spinnerLog.sp.Stop()
	}
}
