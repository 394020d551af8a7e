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

// Package tunnel builds the session's tunnel ensemble: a kubectl
// port-forward carrying the secure-shell control channel into the pod, a
// reverse-forward per exposed local port, and a forward-tunnel to the
// in-pod SOCKS proxy. Every tunnel is an external ssh subprocess; the
// ServerAlive settings make a dead network surface as a child exit within
// a few seconds, which is the signal the session watcher reacts to.
package tunnel

import (
	"fmt"
	"net"
	"time"

	"github.com/okteto/telepresence/internal/errors"
	"github.com/okteto/telepresence/internal/log"
	"github.com/okteto/telepresence/internal/process"
	"github.com/okteto/telepresence/internal/resolver"
)

const (
	readinessProbes  = 30
	readinessDelay   = time.Second
	sshServerAlive   = 1
	sshAliveCountMax = 3
)

// Gateway is the subset of the Orchestrator Gateway the tunnel
// supervisor drives.
type Gateway interface {
	PortForward(namespace, pod string, localPort, remotePort int) process.ChildProcess
	Exec(namespace, pod, container string, argv []string) (string, error)
}

// Set is the live tunnel ensemble: the control port, the local SOCKS
// port, and every child carrying them. If any child dies the Set is dead.
type Set struct {
	ControlPort    int
	SocksLocalPort int
	Supervised     []process.ChildProcess
}

// sshArgs returns the flags shared by every secure-shell session: quiet,
// host-key checking off, known-hosts redirected to /dev/null, server-alive
// probing every second (disconnect after three missed), non-interactive.
func sshArgs(controlPort int, extra ...string) []string {
	args := []string{
		"-q",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "BatchMode=yes",
		"-o", fmt.Sprintf("ServerAliveInterval=%d", sshServerAlive),
		"-o", fmt.Sprintf("ServerAliveCountMax=%d", sshAliveCountMax),
		"-p", fmt.Sprintf("%d", controlPort),
	}
	args = append(args, extra...)
	args = append(args, "root@localhost")
	return args
}

// Build brings up the whole ensemble in order — port-forward, control
// channel probe, in-pod SOCKS probe, reverse-forwards, forward-tunnel —
// and returns the resulting Set, or TunnelNotReady if the control channel
// never comes up.
func Build(gw Gateway, ref resolver.PodRef, exposedPorts []int) (*Set, error) {
	controlPort, err := freePort()
	if err != nil {
		return nil, err
	}

	set := &Set{ControlPort: controlPort}

	pf := gw.PortForward(ref.Namespace, ref.PodName, controlPort, sshPort)
	set.Supervised = append(set.Supervised, pf)

	if err := waitTCPReady(controlPort, 30, time.Second); err != nil {
		teardown(set)
		return nil, errors.TunnelNotReady{Detail: "port-forward to the control channel never came up"}
	}

	if err := probeSSHReady(controlPort); err != nil {
		teardown(set)
		return nil, err
	}

	if err := probeSocksInsidePod(gw, ref); err != nil {
		teardown(set)
		return nil, err
	}

	for _, p := range exposedPorts {
		bind := fmt.Sprintf("*:%d:127.0.0.1:%d", p, p)
		rp := process.SpawnBackground("ssh", sshArgs(controlPort, "-N", "-R", bind)...)
		set.Supervised = append(set.Supervised, rp)
	}

	socksLocalPort, err := freePort()
	if err != nil {
		teardown(set)
		return nil, err
	}
	set.SocksLocalPort = socksLocalPort

	forwardBind := fmt.Sprintf("127.0.0.1:%d:127.0.0.1:%d", socksLocalPort, socksPort)
	fp := process.SpawnBackground("ssh", sshArgs(controlPort, "-N", "-L", forwardBind)...)
	set.Supervised = append(set.Supervised, fp)

	return set, nil
}

var (
	sshPort   = 22
	socksPort = 1080
)

// SetWellKnownPorts lets the session controller inject the configured
// SSH/SOCKS ports (internal/config) without this package importing config
// and creating a cycle.
func SetWellKnownPorts(ssh, socks int) {
	sshPort = ssh
	socksPort = socks
}

func waitTCPReady(port int, attempts int, delay time.Duration) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	for i := 0; i < attempts; i++ {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(delay)
	}
	return fmt.Errorf("nothing listening on %s after %d attempts", addr, attempts)
}

// probeSSHReady attempts a no-op secure-shell command against the control
// channel up to 30 times at 1s intervals.
func probeSSHReady(controlPort int) error {
	for i := 0; i < readinessProbes; i++ {
		err := process.RunAndWaitSuccess("ssh", sshArgs(controlPort, "true")...)
		if err == nil {
			return nil
		}
		log.Debugf("ssh control channel not ready yet (%d/%d): %s", i+1, readinessProbes, err)
		time.Sleep(readinessDelay)
	}
	return errors.TunnelNotReady{Detail: "secure-shell control channel never accepted a connection"}
}

// probeSocksInsidePod guards against the window where authentication over
// the control channel succeeds before the in-pod forwarder has started its
// SOCKS listener, which would let the forward-tunnel accept connections
// with nothing behind it. It execs a connect check inside the companion
// container before the forward-tunnel is spawned.
func probeSocksInsidePod(gw Gateway, ref resolver.PodRef) error {
	check := fmt.Sprintf("exec 3<>/dev/tcp/127.0.0.1/%d && exec 3>&-", socksPort)
	for i := 0; i < readinessProbes; i++ {
		_, err := gw.Exec(ref.Namespace, ref.PodName, ref.ContainerName, []string{"sh", "-c", check})
		if err == nil {
			return nil
		}
		log.Debugf("in-pod SOCKS listener not ready yet (%d/%d): %s", i+1, readinessProbes, err)
		time.Sleep(readinessDelay)
	}
	return errors.TunnelNotReady{Detail: "in-pod SOCKS proxy never started listening"}
}

func teardown(set *Set) {
	for i := len(set.Supervised) - 1; i >= 0; i-- {
		if err := set.Supervised[i].Terminate(); err != nil {
			log.Debugf("error tearing down tunnel child: %s", err)
		}
	}
}
