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

// Package errors defines the controller's error kinds and the exit code
// each maps to: small wrapper types that carry a user-facing message, and
// optionally a remediation hint, alongside the cause.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Process exit codes: 0 normal shell exit, 1 preflight or internal
// failure, 3 a helper died while the shell was still running.
const (
	ExitOK        = 0
	ExitInternal  = 1
	ExitProxyLost = 3
)

// Preflight is raised when a required external tool is missing.
type Preflight struct {
	Tool string
	Hint string
}

func (e Preflight) Error() string {
	return fmt.Sprintf("%s not found in PATH", e.Tool)
}

// ExternalCommandFailed wraps a non-zero exit from a child process along
// with its captured combined output.
type ExternalCommandFailed struct {
	Argv     []string
	Status   int
	Captured string
}

func (e ExternalCommandFailed) Error() string {
	out := strings.TrimSpace(e.Captured)
	if out == "" {
		return fmt.Sprintf("command %q exited with status %d", strings.Join(e.Argv, " "), e.Status)
	}
	return fmt.Sprintf("command %q exited with status %d: %s", strings.Join(e.Argv, " "), e.Status, out)
}

// PodNotFound is raised when the Pod Resolver finds no matching pod.
type PodNotFound struct {
	Workload  string
	Namespace string
}

func (e PodNotFound) Error() string {
	return fmt.Sprintf("no running pod found for workload %q in namespace %q", e.Workload, e.Namespace)
}

// PodNotReady is raised when the resolver's wait-until-ready loop times out.
type PodNotReady struct {
	Pod     string
	Seconds int
}

func (e PodNotReady) Error() string {
	return fmt.Sprintf("pod %q was not ready after %d seconds", e.Pod, e.Seconds)
}

// VersionMismatch is raised when the companion image's tag doesn't match
// the tool's own version string.
type VersionMismatch struct {
	Pod     string
	PodTag  string
	ToolTag string
}

func (e VersionMismatch) Error() string {
	return fmt.Sprintf("pod %q runs companion image tag %q, but this tool is version %q", e.Pod, e.PodTag, e.ToolTag)
}

// TunnelNotReady is raised when a tunnel's readiness probe times out.
type TunnelNotReady struct {
	Detail string
}

func (e TunnelNotReady) Error() string {
	return fmt.Sprintf("tunnel not ready: %s", e.Detail)
}

// ProxyLost is raised when a supervised helper dies while the shell is
// still alive.
type ProxyLost struct {
	Helper string
	Cause  error
}

func (e ProxyLost) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy lost: %s exited: %s", e.Helper, e.Cause)
	}
	return fmt.Sprintf("proxy lost: %s exited", e.Helper)
}

func (e ProxyLost) Unwrap() error { return e.Cause }

// UserError is a catch-all for fatal, human-readable errors with an
// optional remediation hint.
type UserError struct {
	E    error
	Hint string
}

func (e UserError) Error() string { return e.E.Error() }
func (e UserError) Unwrap() error { return e.E }

// ExitCode maps an error produced by the session to the process exit code
// it should cause.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var proxyLost ProxyLost
	if stderrors.As(err, &proxyLost) {
		return ExitProxyLost
	}
	return ExitInternal
}
