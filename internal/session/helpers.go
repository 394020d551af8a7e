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
	"strings"
	"time"

	"github.com/okteto/telepresence/internal/errors"
	"github.com/okteto/telepresence/internal/kubectl"
	"github.com/okteto/telepresence/internal/log"
	"github.com/okteto/telepresence/internal/resolver"
)

var (
	reprobeAttempts = 10
	reprobeDelay    = 500 * time.Millisecond
)

// podGateway is the slice of the Orchestrator Gateway the session's
// capture/probe helpers need, narrowed so tests can fake it.
type podGateway interface {
	Exec(namespace, pod, container string, argv []string) (string, error)
	GetWorkloadSpec(namespace, name string) (*kubectl.WorkloadSpec, error)
}

// reprobeReverseForwards closes the gap around the settle window: rather
// than trusting a fixed sleep alone, it execs into the companion container
// and attempts a connect to each exposed port's reverse-bound address,
// retrying briefly before giving up.
func reprobeReverseForwards(gw podGateway, ref resolver.PodRef, exposedPorts []int) error {
	for _, port := range exposedPorts {
		check := fmt.Sprintf("exec 3<>/dev/tcp/127.0.0.1/%d && exec 3>&-", port)
		var lastErr error
		ready := false
		for i := 0; i < reprobeAttempts; i++ {
			_, err := gw.Exec(ref.Namespace, ref.PodName, ref.ContainerName, []string{"sh", "-c", check})
			if err == nil {
				ready = true
				break
			}
			lastErr = err
			time.Sleep(reprobeDelay)
		}
		if !ready {
			return errors.TunnelNotReady{Detail: fmt.Sprintf("reverse-forward for port %d never became reachable from inside the pod: %s", port, lastErr)}
		}
	}
	return nil
}

// capturePodEnv execs "env" inside the companion container and parses the
// result into a map.
func capturePodEnv(gw podGateway, ref resolver.PodRef) (map[string]string, error) {
	out, err := gw.Exec(ref.Namespace, ref.PodName, ref.ContainerName, []string{"env"})
	if err != nil {
		return nil, fmt.Errorf("failed to capture pod environment: %w", err)
	}

	env := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			env[line[:i]] = line[i+1:]
		}
	}
	return env, nil
}

// declaredEnvNames returns the set of variable names declared on the
// companion container in the workload spec, as the Environment Projector
// expects.
func declaredEnvNames(gw podGateway, namespace, workload, containerName string) map[string]struct{} {
	out := map[string]struct{}{}
	spec, err := gw.GetWorkloadSpec(namespace, workload)
	if err != nil {
		log.Debugf("could not re-fetch workload spec for env projection: %s", err)
		return out
	}
	for _, c := range spec.Containers {
		if c.Name != containerName {
			continue
		}
		for _, name := range c.EnvVars {
			out[name] = struct{}{}
		}
	}
	return out
}
