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

// Package shell materializes the local shell process: its network stack is
// routed through the SOCKS tunnel by the wrapper binary, its environment
// is the projection handed to it, and its prompt advertises the active
// cluster context. The spawned child inherits the terminal.
package shell

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"
	"github.com/spf13/afero"

	"github.com/okteto/telepresence/internal/config"
	"github.com/okteto/telepresence/internal/log"
)

const (
	promptMarker        = "(telepresence) "
	wrapperConfigEnvVar = "TELEPRESENCE_SOCKS_CONFIG"
	wrapperLogEnvVar    = "TELEPRESENCE_SOCKS_LOG"
)

// Launcher spawns the SOCKS-wrapper binary with the user's shell as its
// argument.
type Launcher struct {
	WrapperBinary string
	fs            afero.Fs
}

// New returns a Launcher for wrapperBinary, or "tsocks" if empty.
func New(wrapperBinary string) *Launcher {
	if wrapperBinary == "" {
		wrapperBinary = "tsocks"
	}
	return &Launcher{WrapperBinary: wrapperBinary, fs: afero.NewOsFs()}
}

// Preflight verifies the SOCKS-wrapper binary is on the search path.
func (l *Launcher) Preflight() error {
	_, err := exec.LookPath(l.WrapperBinary)
	return err
}

// Launch composes the child environment, generates the wrapper's config
// file, shims the search path on platforms that need it, and spawns the
// wrapper around the user's shell.
func (l *Launcher) Launch(projected map[string]string, socksLocalPort int, contextName, logPath string) (*Handle, error) {
	configPath, err := writeWrapperConfig(l.fs, socksLocalPort)
	if err != nil {
		return nil, fmt.Errorf("failed to write SOCKS-wrapper config: %w", err)
	}

	shadowDir, prependPath, err := shimProtectedPath(l.fs)
	if err != nil {
		log.Debugf("search-path shim skipped: %s", err)
	}

	env := composeEnv(projected, contextName, configPath, logPath, prependPath)
	userShellPath := userShell()

	h, err := spawn(l.WrapperBinary, []string{userShellPath}, env)
	if err != nil {
		_ = l.fs.Remove(configPath)
		if shadowDir != "" {
			_ = os.RemoveAll(shadowDir)
		}
		return nil, err
	}
	h.configPath = configPath
	h.shadowDir = shadowDir
	h.fs = l.fs
	return h, nil
}

// writeWrapperConfig generates the SOCKS-wrapper configuration under the
// tool's home directory. Each session gets a uuid-named file so concurrent
// sessions never trample each other's config.
func writeWrapperConfig(fs afero.Fs, socksLocalPort int) (string, error) {
	home, err := config.Home()
	if err != nil {
		return "", err
	}

	path := filepath.Join(home, fmt.Sprintf("socks-%s.conf", uuid.New().String()))
	contents := fmt.Sprintf(
		"allow_inbound_listeners = true\nallow_outbound_loopback = true\nsocks_port = %d\n",
		socksLocalPort,
	)
	if err := afero.WriteFile(fs, path, []byte(contents), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func composeEnv(projected map[string]string, contextName, configPath, logPath, prependPath string) []string {
	merged := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range projected {
		merged[k] = v
	}

	merged["PS1"] = promptMarker + merged["PS1"]
	merged["PROMPT_COMMAND"] = fmt.Sprintf(`PS1="[%s] $PS1"`, contextName)
	merged[wrapperConfigEnvVar] = configPath
	if logPath != "" && logPath != "-" {
		merged[wrapperLogEnvVar] = logPath
	}
	if prependPath != "" {
		merged["PATH"] = prependPath + string(os.PathListSeparator) + merged["PATH"]
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}

func userShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/bash"
}

// Handle is the ChildProcess wrapping the spawned shell, plus the extra
// teardown bookkeeping (config file, shadow directory) the Local Shell
// Launcher owns.
type Handle struct {
	cmd  *exec.Cmd
	argv string

	mu   sync.Mutex
	done chan struct{}

	configPath string
	shadowDir  string
	fs         afero.Fs
}

func spawn(binary string, args []string, env []string) (*Handle, error) {
	c := exec.Command(binary, args...)
	c.Env = env
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:    true,
		Foreground: true,
	}

	argv := strings.TrimSpace(binary + " " + strings.Join(args, " "))
	log.Infof("Running: %s", argv)

	if err := c.Start(); err != nil {
		return nil, err
	}

	h := &Handle{cmd: c, argv: argv, done: make(chan struct{})}
	go func() {
		_ = c.Wait()
		close(h.done)
	}()
	return h, nil
}

// Alive reports whether the shell process is still running.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// String returns the argv the shell was launched with.
func (h *Handle) String() string { return h.argv }

// ExitCode returns the shell's exit status, or -1 if it hasn't exited.
func (h *Handle) ExitCode() int {
	if h.cmd.ProcessState != nil {
		return h.cmd.ProcessState.ExitCode()
	}
	return -1
}

// Wait blocks until the shell exits or timeout elapses.
func (h *Handle) Wait(timeout time.Duration) error {
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shell %s did not exit within %s", h.argv, timeout)
	}
}

// Terminate sends SIGTERM and escalates to Kill after 3s.
func (h *Handle) Terminate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.Alive() {
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Debugf("error sending SIGTERM to shell: %s", err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(3 * time.Second):
		return h.killLocked()
	}
}

// Kill sends SIGKILL immediately.
func (h *Handle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.Alive() {
		return nil
	}
	return h.killLocked()
}

func (h *Handle) killLocked() error {
	if err := h.cmd.Process.Kill(); err != nil {
		return err
	}
	<-h.done
	return nil
}

// Teardown walks the shell's process tree terminating every descendant,
// then removes the generated config file and shadow directory. It is safe
// to call once the shell has already exited.
func (h *Handle) Teardown() {
	if h.Alive() {
		if pList, err := ps.Processes(); err != nil {
			log.Debugf("error listing processes for shell teardown: %s", err)
		} else {
			terminateChildren(h.cmd.Process.Pid, pList)
		}
		if err := h.Terminate(); err != nil {
			log.Debugf("error terminating shell: %s", err)
		}
	}

	if h.configPath != "" && h.fs != nil {
		if err := h.fs.Remove(h.configPath); err != nil {
			log.Debugf("error removing SOCKS-wrapper config: %s", err)
		}
	}
	if h.shadowDir != "" {
		if err := os.RemoveAll(h.shadowDir); err != nil {
			log.Debugf("error removing shadow directory: %s", err)
		}
	}
}

func terminateChildren(parent int, pList []ps.Process) {
	for _, p := range pList {
		if p.PPid() != parent {
			continue
		}
		terminateChildren(p.Pid(), pList)
		proc, err := os.FindProcess(p.Pid())
		if err != nil {
			continue
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			log.Debugf("error terminating child process %d: %s", p.Pid(), err)
		}
	}
}
