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

// Package session composes the preflight checks, workload creation, pod
// resolution, tunnel build, environment projection, and shell launch into
// one strictly staged sequence, then watches the running session until the
// shell exits (normal) or any helper dies (proxy lost). No stage starts
// before the previous one has reported success.
package session

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/okteto/telepresence/internal/config"
	"github.com/okteto/telepresence/internal/errors"
	"github.com/okteto/telepresence/internal/kubectl"
	"github.com/okteto/telepresence/internal/log"
	"github.com/okteto/telepresence/internal/process"
	"github.com/okteto/telepresence/internal/projector"
	"github.com/okteto/telepresence/internal/resolver"
	"github.com/okteto/telepresence/internal/shell"
	"github.com/okteto/telepresence/internal/tunnel"
)

// State is one of the session's four irreversible phases.
type State int

const (
	Starting State = iota
	Running
	Draining
	Exited
)

func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Draining:
		return "Draining"
	default:
		return "Exited"
	}
}

const (
	watchInterval     = 100 * time.Millisecond // 10 Hz
	settleWindow      = 5 * time.Second
	doubleSignalGrace = 2 * time.Second
)

// Options are the inputs a single session run needs, assembled from CLI
// flags (cmd/telepresence) before Run is called.
type Options struct {
	Namespace      string
	Workload       string
	CreateWorkload bool
	ExposedPorts   []int
	SOCKSWrapper   string
	KubectlBinary  string
	LogPath        string
}

// Controller drives one session from Starting to Exited.
type Controller struct {
	opts Options
	gw   *kubectl.Gateway

	state State

	teardown     []func()
	teardownOnce sync.Once
	children     []process.ChildProcess
}

// New builds a Controller for opts.
func New(opts Options) *Controller {
	return &Controller{
		opts:  opts,
		gw:    kubectl.New(opts.KubectlBinary),
		state: Starting,
	}
}

// State reports the controller's current phase.
func (c *Controller) State() State { return c.state }

func (c *Controller) registerTeardown(f func()) {
	c.teardown = append(c.teardown, f)
}

// runTeardown executes every registered teardown function in reverse
// order of registration, exactly once.
func (c *Controller) runTeardown() {
	c.teardownOnce.Do(func() {
		for i := len(c.teardown) - 1; i >= 0; i-- {
			c.teardown[i]()
		}
	})
}

// Run executes the full staged sequence and blocks until the session ends,
// returning the process exit code.
func (c *Controller) Run() int {
	if err := c.preflight(); err != nil {
		log.Fail(err.Error())
		return errors.ExitCode(err)
	}

	tunnel.SetWellKnownPorts(config.SSHPort(), config.SOCKSPort())

	if c.opts.CreateWorkload {
		if err := c.gw.CreateWorkload(c.opts.Namespace, c.opts.Workload, config.CompanionImage(), c.opts.ExposedPorts); err != nil {
			return c.fail(err)
		}
		workload, namespace := c.opts.Workload, c.opts.Namespace
		c.registerTeardown(func() {
			if err := c.gw.DeleteWorkload(namespace, workload); err != nil {
				log.Debugf("error deleting workload %s/%s: %s", namespace, workload, err)
			}
		})
	}

	log.Spinner("Waiting for the pod to be ready...")
	log.StartSpinner()
	ref, err := resolver.Resolve(c.gw, c.opts.Namespace, c.opts.Workload, config.Version())
	log.StopSpinner()
	if err != nil {
		return c.fail(err)
	}

	log.Spinner("Connecting to your cluster...")
	log.StartSpinner()
	set, err := tunnel.Build(c.gw, *ref, c.opts.ExposedPorts)
	if err != nil {
		log.StopSpinner()
		return c.fail(err)
	}
	c.children = append(c.children, set.Supervised...)
	c.registerTeardown(func() {
		for i := len(set.Supervised) - 1; i >= 0; i-- {
			if err := set.Supervised[i].Terminate(); err != nil {
				log.Debugf("error tearing down tunnel helper: %s", err)
			}
		}
	})

	time.Sleep(settleWindow)
	if err := reprobeReverseForwards(c.gw, *ref, c.opts.ExposedPorts); err != nil {
		log.StopSpinner()
		return c.fail(err)
	}
	log.StopSpinner()

	podEnv, err := capturePodEnv(c.gw, *ref)
	if err != nil {
		return c.fail(err)
	}
	declared := declaredEnvNames(c.gw, c.opts.Namespace, c.opts.Workload, ref.ContainerName)
	projected := projector.Project(podEnv, declared, ref.PodName, ref.ContainerName)

	contextName, err := c.gw.CurrentContextName()
	if err != nil {
		contextName = c.opts.Namespace
	}

	launcher := shell.New(c.opts.SOCKSWrapper)
	handle, err := launcher.Launch(projected, set.SocksLocalPort, contextName, c.opts.LogPath)
	if err != nil {
		return c.fail(err)
	}
	c.children = append(c.children, handle)
	c.registerTeardown(handle.Teardown)

	c.state = Running
	log.Green("Your shell now behaves like pod %s. Exit it to end the session.", ref.PodName)
	return c.watch(handle, set.Supervised)
}

// shellChild is the shell's process handle as the watch loop sees it: a
// supervised child that also reports the exit status the session should
// propagate.
type shellChild interface {
	process.ChildProcess
	ExitCode() int
}

// watch polls at 10 Hz for the shell exiting or any supervised helper
// dying first, while handling terminal signals.
func (c *Controller) watch(shellHandle shellChild, helpers []process.ChildProcess) int {
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-stop:
			c.shutdownOnSignal(sig, stop)
		case <-ticker.C:
			if !shellHandle.Alive() {
				c.state = Draining
				c.runTeardown()
				c.state = Exited
				return shellHandle.ExitCode()
			}
			for _, h := range helpers {
				if !h.Alive() {
					c.state = Draining
					c.runTeardown()
					c.state = Exited
					err := errors.ProxyLost{Helper: h.String()}
					log.Fail(err.Error())
					return errors.ExitCode(err)
				}
			}
		}
	}
}

// shutdownOnSignal runs the clean-exit path. The teardown stack must run
// in full even on SIGTERM, so the handler drains it synchronously; a
// watcher goroutine escalates remaining children from Terminate to Kill
// if the same signal arrives again within the grace window.
func (c *Controller) shutdownOnSignal(sig os.Signal, stop <-chan os.Signal) {
	log.Debugf("received %s, starting shutdown sequence", sig)
	c.state = Draining

	received := time.Now()
	go func() {
		again := <-stop
		if again != sig || time.Since(received) >= doubleSignalGrace {
			return
		}
		log.Debugf("second %s within grace window, escalating to kill", again)
		for _, child := range c.children {
			if child.Alive() {
				_ = child.Kill()
			}
		}
	}()

	c.runTeardown()
	c.state = Exited
	os.Exit(errors.ExitOK)
}

func (c *Controller) fail(err error) int {
	log.Fail(err.Error())
	c.state = Draining
	c.runTeardown()
	c.state = Exited
	return errors.ExitCode(err)
}
