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

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: ExitOK,
		},
		{
			name:     "proxy lost",
			err:      ProxyLost{Helper: "ssh -N -L 1080"},
			expected: ExitProxyLost,
		},
		{
			name:     "wrapped proxy lost",
			err:      fmt.Errorf("session ended: %w", ProxyLost{Helper: "kubectl port-forward"}),
			expected: ExitProxyLost,
		},
		{
			name:     "preflight",
			err:      Preflight{Tool: "kubectl"},
			expected: ExitInternal,
		},
		{
			name:     "version mismatch",
			err:      VersionMismatch{Pod: "web-1", PodTag: "0.25", ToolTag: "0.26"},
			expected: ExitInternal,
		},
		{
			name:     "tunnel not ready",
			err:      TunnelNotReady{Detail: "no listener"},
			expected: ExitInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCode(tt.err))
		})
	}
}

func TestVersionMismatchNamesBothVersions(t *testing.T) {
	err := VersionMismatch{Pod: "web-1", PodTag: "0.25", ToolTag: "0.26"}
	assert.Contains(t, err.Error(), "0.25")
	assert.Contains(t, err.Error(), "0.26")
}

func TestExternalCommandFailedMessage(t *testing.T) {
	err := ExternalCommandFailed{
		Argv:     []string{"kubectl", "get", "pods"},
		Status:   1,
		Captured: "error from server",
	}
	assert.Contains(t, err.Error(), "kubectl get pods")
	assert.Contains(t, err.Error(), "error from server")

	silent := ExternalCommandFailed{Argv: []string{"ssh", "true"}, Status: 255}
	assert.Contains(t, silent.Error(), "status 255")
}
