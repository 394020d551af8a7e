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

package tunnel

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSHArgs(t *testing.T) {
	args := sshArgs(40022, "-N", "-L", "127.0.0.1:1080:127.0.0.1:1080")

	joined := fmt.Sprint(args)
	assert.Contains(t, joined, "StrictHostKeyChecking=no")
	assert.Contains(t, joined, "UserKnownHostsFile=/dev/null")
	assert.Contains(t, joined, "ServerAliveInterval=1")
	assert.Contains(t, joined, "ServerAliveCountMax=3")
	assert.Contains(t, joined, "BatchMode=yes")

	assert.Equal(t, "-q", args[0])
	assert.Equal(t, "root@localhost", args[len(args)-1])

	for i, a := range args {
		if a == "-p" {
			assert.Equal(t, "40022", args[i+1])
			return
		}
	}
	t.Fatal("no -p flag in ssh args")
}

func TestFreePort(t *testing.T) {
	port, err := freePort()
	require.NoError(t, err)
	assert.Greater(t, port, 0)
	assert.LessOrEqual(t, port, 65535)

	// The port must be immediately bindable by the next child.
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	l.Close()
}

func TestWaitTCPReady(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	assert.NoError(t, waitTCPReady(port, 3, time.Millisecond))
}

func TestWaitTCPReadyTimeout(t *testing.T) {
	port, err := freePort()
	require.NoError(t, err)
	assert.Error(t, waitTCPReady(port, 2, time.Millisecond))
}

func TestSetWellKnownPorts(t *testing.T) {
	origSSH, origSocks := sshPort, socksPort
	defer SetWellKnownPorts(origSSH, origSocks)

	SetWellKnownPorts(2222, 9050)
	assert.Equal(t, 2222, sshPort)
	assert.Equal(t, 9050, socksPort)
}
