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

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name          string
		deployment    string
		newDeployment string
		runShell      bool
		expectErr     bool
	}{
		{
			name:       "adopt existing workload",
			deployment: "web",
			runShell:   true,
		},
		{
			name:          "create new workload",
			newDeployment: "dev",
			runShell:      true,
		},
		{
			name:      "neither deployment flag",
			runShell:  true,
			expectErr: true,
		},
		{
			name:          "both deployment flags",
			deployment:    "web",
			newDeployment: "dev",
			runShell:      true,
			expectErr:     true,
		},
		{
			name:       "missing run-shell",
			deployment: "web",
			expectErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deployment = tt.deployment
			newDeployment = tt.newDeployment
			runShell = tt.runShell

			err := validateFlags()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLogTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telepresence.log")

	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, "line")
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	tail := logTail(path, 20)
	assert.Len(t, strings.Split(tail, "\n"), 20)
}

func TestLogTailStdoutSink(t *testing.T) {
	assert.Empty(t, logTail("-", 20))
	assert.Empty(t, logTail("", 20))
}

func TestLogTailShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telepresence.log")
	require.NoError(t, os.WriteFile(path, []byte("only\ntwo\n"), 0o644))
	assert.Equal(t, "only\ntwo", logTail(path, 20))
}
