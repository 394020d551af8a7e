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

// Package resolver locates the single running or pending pod behind a
// workload, identifies the companion container inside it, and verifies
// that the companion image version matches this tool. Plain polling is
// used for readiness since the gateway only exposes point-in-time reads
// over the kubectl CLI, not a watch API.
package resolver

import (
	"strings"
	"time"

	"github.com/okteto/telepresence/internal/errors"
	"github.com/okteto/telepresence/internal/kubectl"
	"github.com/okteto/telepresence/internal/log"
)

const companionImageToken = "telepresence-k8s"

// Poll cadence for the wait-until-ready loop: 120 polls at 1s intervals.
// Vars so tests can shrink the timeout.
var (
	pollInterval = time.Second
	maxPolls     = 120
)

// Gateway is the subset of the Orchestrator Gateway the resolver needs.
type Gateway interface {
	GetWorkloadSpec(namespace, name string) (*kubectl.WorkloadSpec, error)
	ListPods(namespace string) ([]kubectl.Pod, error)
	GetPod(namespace, name string) (*kubectl.Pod, error)
}

// PodRef identifies the resolved pod and its companion container. It is
// only valid while the pod stays in a non-terminal phase.
type PodRef struct {
	Namespace         string
	PodName           string
	ContainerName     string
	CompanionImageTag string
}

// Resolve finds the workload's pod, picks its companion container,
// verifies the image tag against toolVersion, and waits for readiness.
func Resolve(gw Gateway, namespace, workload, toolVersion string) (*PodRef, error) {
	spec, err := gw.GetWorkloadSpec(namespace, workload)
	if err != nil {
		return nil, err
	}

	effectiveNamespace := namespace
	if spec.Namespace != "" {
		effectiveNamespace = spec.Namespace
	}
	if effectiveNamespace == "" {
		effectiveNamespace = "default"
	}

	pods, err := gw.ListPods(effectiveNamespace)
	if err != nil {
		return nil, err
	}

	var candidate *kubectl.Pod
	for i := range pods {
		p := &pods[i]
		if !labelsSuperset(p.Labels, spec.Labels) {
			continue
		}
		if !strings.HasPrefix(p.Name, workload+"-") {
			continue
		}
		if p.Namespace != effectiveNamespace {
			continue
		}
		if p.Phase != "Pending" && p.Phase != "Running" {
			continue
		}
		candidate = p
		break
	}

	if candidate == nil {
		return nil, errors.PodNotFound{Workload: workload, Namespace: effectiveNamespace}
	}

	containerName, tag, found := companionContainer(spec.Containers)
	if !found {
		return nil, errors.PodNotFound{Workload: workload, Namespace: effectiveNamespace}
	}

	if tag != toolVersion {
		return nil, errors.VersionMismatch{Pod: candidate.Name, PodTag: tag, ToolTag: toolVersion}
	}

	ref := &PodRef{
		Namespace:         effectiveNamespace,
		PodName:           candidate.Name,
		ContainerName:     containerName,
		CompanionImageTag: tag,
	}

	if err := waitUntilReady(gw, ref); err != nil {
		return nil, err
	}

	return ref, nil
}

func labelsSuperset(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func companionContainer(containers []kubectl.ContainerSpec) (name, tag string, found bool) {
	for _, c := range containers {
		if !strings.Contains(c.Image, companionImageToken) {
			continue
		}
		idx := strings.LastIndex(c.Image, ":")
		if idx < 0 {
			continue
		}
		return c.Name, c.Image[idx+1:], true
	}
	return "", "", false
}

// waitUntilReady polls the pod up to 120 times at 1s intervals, succeeding
// when the phase is Running and the companion container reports ready.
func waitUntilReady(gw Gateway, ref *PodRef) error {
	for i := 0; i < maxPolls; i++ {
		pod, err := gw.GetPod(ref.Namespace, ref.PodName)
		if err == nil && pod.Phase == "Running" {
			for _, cs := range pod.Containers {
				if cs.Name == ref.ContainerName && cs.Ready {
					return nil
				}
			}
		}
		if i < maxPolls-1 {
			log.Debugf("waiting for pod %s to be ready (%d/%d)", ref.PodName, i+1, maxPolls)
			time.Sleep(pollInterval)
		}
	}
	return errors.PodNotReady{Pod: ref.PodName, Seconds: maxPolls}
}
