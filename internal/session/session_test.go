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

package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/okteto/telepresence/internal/errors"
	"github.com/okteto/telepresence/internal/process"
)

// fakeChild stands in for a supervised helper or the shell in watch-loop
// tests.
type fakeChild struct {
	name       string
	alive      bool
	exitCode   int
	terminated bool
	killed     bool
}

func (f *fakeChild) Alive() bool { return f.alive }

func (f *fakeChild) Terminate() error {
	f.alive = false
	f.terminated = true
	return nil
}

func (f *fakeChild) Kill() error {
	f.alive = false
	f.killed = true
	return nil
}

func (f *fakeChild) Wait(time.Duration) error { return nil }

func (f *fakeChild) String() string { return f.name }

func (f *fakeChild) ExitCode() int { return f.exitCode }

func TestRunTeardownReverseOrder(t *testing.T) {
	c := New(Options{})

	var order []string
	c.registerTeardown(func() { order = append(order, "first") })
	c.registerTeardown(func() { order = append(order, "second") })
	c.registerTeardown(func() { order = append(order, "third") })

	c.runTeardown()
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestRunTeardownExactlyOnce(t *testing.T) {
	c := New(Options{})

	calls := 0
	c.registerTeardown(func() { calls++ })

	c.runTeardown()
	c.runTeardown()
	assert.Equal(t, 1, calls)
}

func TestFailDrainsAndExits(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, Starting, c.State())

	drained := false
	c.registerTeardown(func() { drained = true })

	code := c.fail(fmt.Errorf("pod vanished"))
	assert.Equal(t, 1, code)
	assert.Equal(t, Exited, c.State())
	assert.True(t, drained)
}

func TestWatchHelperDiesProxyLost(t *testing.T) {
	c := New(Options{})
	c.state = Running

	shell := &fakeChild{name: "tsocks /bin/bash", alive: true}
	dead := &fakeChild{name: "kubectl port-forward"}
	live := &fakeChild{name: "ssh -N -L", alive: true}
	helpers := []process.ChildProcess{dead, live}

	c.registerTeardown(func() {
		for _, h := range helpers {
			_ = h.Terminate()
		}
		_ = shell.Terminate()
	})

	code := c.watch(shell, helpers)
	assert.Equal(t, errors.ExitProxyLost, code)
	assert.Equal(t, Exited, c.State())
	assert.True(t, live.terminated)
	assert.True(t, shell.terminated)
}

func TestWatchShellExitPropagatesStatus(t *testing.T) {
	c := New(Options{})
	c.state = Running

	shell := &fakeChild{name: "tsocks /bin/bash", exitCode: 42}
	helper := &fakeChild{name: "ssh -N -L", alive: true}

	drained := false
	c.registerTeardown(func() {
		_ = helper.Terminate()
		drained = true
	})

	code := c.watch(shell, []process.ChildProcess{helper})
	assert.Equal(t, 42, code)
	assert.Equal(t, Exited, c.State())
	assert.True(t, drained)
	assert.True(t, helper.terminated)
}

func TestWatchDetectsDeathQuickly(t *testing.T) {
	c := New(Options{})
	c.state = Running

	shell := &fakeChild{name: "tsocks /bin/bash", alive: true}
	dead := &fakeChild{name: "kubectl port-forward"}

	start := time.Now()
	code := c.watch(shell, []process.ChildProcess{dead})
	assert.Equal(t, errors.ExitProxyLost, code)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Starting", Starting.String())
	assert.Equal(t, "Running", Running.String())
	assert.Equal(t, "Draining", Draining.String())
	assert.Equal(t, "Exited", Exited.String())
}
