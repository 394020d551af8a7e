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

// Package process launches and collects child processes: run to
// completion, capture stdout, or spawn in the background. All children
// share the session's line-buffered log sink and get an empty stdin so
// they can never block on a read.
package process

import (
	"fmt"
	"strings"
	"sync"
	"time"

	gocmd "github.com/go-cmd/cmd"
	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/okteto/telepresence/internal/errors"
	"github.com/okteto/telepresence/internal/log"
)

// ChildProcess is the supervised-process contract used throughout the
// controller.
type ChildProcess interface {
	Alive() bool
	Terminate() error
	Kill() error
	Wait(timeout time.Duration) error
	String() string
}

// Process is the concrete ChildProcess backing every spawned helper.
type Process struct {
	argv string
	cmd  *gocmd.Cmd

	mu   sync.Mutex
	done <-chan gocmd.Status
}

func newArgvLabel(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

func logArgv(name string, args []string) {
	log.Infof("Running: %s", newArgvLabel(name, args))
}

// RunAndWaitSuccess runs name(args...) to completion, failing with
// ExternalCommandFailed if its exit status is non-zero.
func RunAndWaitSuccess(name string, args ...string) error {
	logArgv(name, args)
	c := gocmd.NewCmdOptions(gocmd.Options{Buffered: true, Streaming: true}, name, args...)
	go relayOutput(c)
	status := <-c.Start()
	if status.Error != nil || status.Exit != 0 {
		return errors.ExternalCommandFailed{
			Argv:     append([]string{name}, args...),
			Status:   status.Exit,
			Captured: strings.Join(append(status.Stdout, status.Stderr...), "\n"),
		}
	}
	return nil
}

// RunAndCaptureStdout runs name(args...) to completion and returns its
// trimmed stdout, failing with ExternalCommandFailed on non-zero exit.
func RunAndCaptureStdout(name string, args ...string) (string, error) {
	logArgv(name, args)
	c := gocmd.NewCmdOptions(gocmd.Options{Buffered: true}, name, args...)
	status := <-c.Start()
	if status.Error != nil || status.Exit != 0 {
		return "", errors.ExternalCommandFailed{
			Argv:     append([]string{name}, args...),
			Status:   status.Exit,
			Captured: strings.Join(status.Stderr, "\n"),
		}
	}
	return strings.TrimSpace(strings.Join(status.Stdout, "\n")), nil
}

// SpawnBackground starts name(args...) without waiting for it to finish and
// returns a handle for the Tunnel/Session supervisors to watch.
func SpawnBackground(name string, args ...string) *Process {
	logArgv(name, args)
	c := gocmd.NewCmdOptions(gocmd.Options{Streaming: true}, name, args...)
	p := &Process{argv: newArgvLabel(name, args), cmd: c, done: c.Start()}
	go relayOutput(c)
	return p
}

func relayOutput(c *gocmd.Cmd) {
	for c.Stdout != nil || c.Stderr != nil {
		select {
		case line, ok := <-c.Stdout:
			if !ok {
				c.Stdout = nil
				continue
			}
			fmt.Fprintln(log.Writer(), line)
		case line, ok := <-c.Stderr:
			if !ok {
				c.Stderr = nil
				continue
			}
			fmt.Fprintln(log.Writer(), line)
		}
	}
}

// Alive reports whether the process is still running.
func (p *Process) Alive() bool {
	status := p.cmd.Status()
	return !status.Complete
}

// String returns the argv this process was started with, for logging.
func (p *Process) String() string { return p.argv }

// Wait blocks until the process exits or the timeout elapses, whichever
// comes first. A nil return means the process exited (successfully or
// not); a non-nil return means the timeout was hit while it was still
// running.
func (p *Process) Wait(timeout time.Duration) error {
	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("process %s did not exit within %s", p.argv, timeout)
	}
}

// Terminate asks the process to exit gracefully (SIGTERM) and waits up to
// 3s before escalating to Kill.
func (p *Process) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.Alive() {
		return nil
	}

	pid := p.cmd.Status().PID
	if pid <= 0 {
		return nil
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		log.Debugf("error sending SIGTERM to %s (pid %d): %s", p.argv, pid, err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(3 * time.Second):
		log.Debugf("graceful termination of %s timed out, killing", p.argv)
		return p.kill(pid)
	}
}

// Kill sends SIGKILL immediately.
func (p *Process) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.Alive() {
		return nil
	}
	pid := p.cmd.Status().PID
	if pid <= 0 {
		return nil
	}
	return p.kill(pid)
}

func (p *Process) kill(pid int) error {
	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		return err
	}
	return waitUntilGone(pid, 3*time.Second)
}

// waitUntilGone polls for the pid's existence so a kill isn't declared
// complete while the process entry is still present.
func waitUntilGone(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		running, err := gopsprocess.PidExists(int32(pid))
		if err != nil || !running {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("pid %d still present after kill", pid)
}
