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

package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okteto/telepresence/internal/errors"
)

func TestRunAndCaptureStdout(t *testing.T) {
	out, err := RunAndCaptureStdout("echo", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestRunAndCaptureStdoutTrims(t *testing.T) {
	out, err := RunAndCaptureStdout("printf", `  padded  \n`)
	require.NoError(t, err)
	assert.Equal(t, "padded", out)
}

func TestRunAndWaitSuccess(t *testing.T) {
	assert.NoError(t, RunAndWaitSuccess("true"))
}

func TestRunAndWaitSuccessFailure(t *testing.T) {
	err := RunAndWaitSuccess("false")
	var cmdErr errors.ExternalCommandFailed
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, []string{"false"}, cmdErr.Argv)
	assert.Equal(t, 1, cmdErr.Status)
}

func TestRunAndCaptureStdoutFailure(t *testing.T) {
	_, err := RunAndCaptureStdout("sh", "-c", "echo oops >&2; exit 3")
	var cmdErr errors.ExternalCommandFailed
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.Status)
	assert.Contains(t, cmdErr.Captured, "oops")
}

func TestSpawnBackgroundAliveAndTerminate(t *testing.T) {
	p := SpawnBackground("sleep", "30")

	// give the child a moment to start
	time.Sleep(100 * time.Millisecond)
	assert.True(t, p.Alive())

	require.NoError(t, p.Terminate())
	assert.False(t, p.Alive())
}

func TestSpawnBackgroundWait(t *testing.T) {
	p := SpawnBackground("sleep", "0.1")
	assert.NoError(t, p.Wait(5*time.Second))
	assert.False(t, p.Alive())
}

func TestSpawnBackgroundWaitTimeout(t *testing.T) {
	p := SpawnBackground("sleep", "30")
	defer p.Kill()
	assert.Error(t, p.Wait(50*time.Millisecond))
}

func TestKillOnExitedProcessIsNoop(t *testing.T) {
	p := SpawnBackground("true")
	require.NoError(t, p.Wait(5*time.Second))
	assert.NoError(t, p.Kill())
	assert.NoError(t, p.Terminate())
}

func TestString(t *testing.T) {
	p := SpawnBackground("sleep", "0.1")
	defer p.Wait(5 * time.Second)
	assert.Equal(t, "sleep 0.1", p.String())
}
