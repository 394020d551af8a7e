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

// Package kubectl is a thin typed façade over the kubectl binary. The
// cluster control-plane client is an opaque CLI collaborator: this package
// shells out and parses -o json output, it never imports k8s.io/client-go.
package kubectl

import (
	"encoding/json"
	"fmt"

	"github.com/okteto/telepresence/internal/process"
)

// Gateway wraps kubectl invocations scoped to a single binary path.
type Gateway struct {
	Binary string
}

// New returns a Gateway using "kubectl" unless overridden.
func New(binary string) *Gateway {
	if binary == "" {
		binary = "kubectl"
	}
	return &Gateway{Binary: binary}
}

// nsArgs scopes a kubectl invocation to namespace, or to the current
// context's namespace when none was given.
func nsArgs(namespace string) []string {
	if namespace == "" {
		return nil
	}
	return []string{"-n", namespace}
}

// CurrentContextName returns the short name of the active cluster context.
func (g *Gateway) CurrentContextName() (string, error) {
	return process.RunAndCaptureStdout(g.Binary, "config", "current-context")
}

// ClientVersion returns the control-plane client's own version string,
// for crash reports.
func (g *Gateway) ClientVersion() (string, error) {
	return process.RunAndCaptureStdout(g.Binary, "version", "--client=true")
}

// Reachable performs a cheap read-only call used as a preflight check.
func (g *Gateway) Reachable() error {
	return process.RunAndWaitSuccess(g.Binary, "version", "--client=true")
}

// CreateWorkload idempotently (re)creates a Deployment named name running
// image, optionally exposing ports via a matching Service. Any previous
// service or deployment of the same name is deleted first.
func (g *Gateway) CreateWorkload(namespace, name, image string, exposedPorts []int) error {
	if err := g.DeleteWorkload(namespace, name); err != nil {
		return err
	}

	args := append([]string{"run", name}, nsArgs(namespace)...)
	args = append(args, "--image", image)
	if err := process.RunAndWaitSuccess(g.Binary, args...); err != nil {
		return err
	}

	if len(exposedPorts) == 0 {
		return nil
	}

	exposeArgs := append([]string{"expose", "deployment", name}, nsArgs(namespace)...)
	for _, p := range exposedPorts {
		exposeArgs = append(exposeArgs, "--port", fmt.Sprintf("%d", p))
	}
	return process.RunAndWaitSuccess(g.Binary, exposeArgs...)
}

// DeleteWorkload deletes both the Service and the Deployment named name,
// ignoring not-found errors.
func (g *Gateway) DeleteWorkload(namespace, name string) error {
	args := append([]string{"delete", "service,deployment", name}, nsArgs(namespace)...)
	args = append(args, "--ignore-not-found=true")
	return process.RunAndWaitSuccess(g.Binary, args...)
}

// WorkloadSpec is the subset of a Deployment's pod template this
// controller needs.
type WorkloadSpec struct {
	Namespace  string
	Labels     map[string]string
	Containers []ContainerSpec
}

// ContainerSpec names a container, its image reference, and the
// environment variable names declared on it.
type ContainerSpec struct {
	Name    string
	Image   string
	EnvVars []string
}

type deploymentDoc struct {
	Metadata struct {
		Namespace string `json:"namespace"`
	} `json:"metadata"`
	Spec struct {
		Template struct {
			Metadata struct {
				Labels map[string]string `json:"labels"`
			} `json:"metadata"`
			Spec struct {
				Containers []struct {
					Name  string `json:"name"`
					Image string `json:"image"`
					Env   []struct {
						Name string `json:"name"`
					} `json:"env"`
				} `json:"containers"`
			} `json:"spec"`
		} `json:"template"`
	} `json:"spec"`
}

// GetWorkloadSpec fetches the structured workload description used by the
// pod resolver.
func (g *Gateway) GetWorkloadSpec(namespace, name string) (*WorkloadSpec, error) {
	args := append([]string{"get", "deployment", name}, nsArgs(namespace)...)
	args = append(args, "-o", "json")
	out, err := process.RunAndCaptureStdout(g.Binary, args...)
	if err != nil {
		return nil, err
	}
	return parseWorkloadSpec(name, []byte(out))
}

func parseWorkloadSpec(name string, data []byte) (*WorkloadSpec, error) {
	var doc deploymentDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workload spec for %q: %w", name, err)
	}

	spec := &WorkloadSpec{
		Namespace: doc.Metadata.Namespace,
		Labels:    doc.Spec.Template.Metadata.Labels,
	}
	for _, c := range doc.Spec.Template.Spec.Containers {
		cs := ContainerSpec{Name: c.Name, Image: c.Image}
		for _, e := range c.Env {
			cs.EnvVars = append(cs.EnvVars, e.Name)
		}
		spec.Containers = append(spec.Containers, cs)
	}
	return spec, nil
}

// Pod is the subset of pod status the Pod Resolver needs.
type Pod struct {
	Name       string
	Namespace  string
	Phase      string
	Labels     map[string]string
	Containers []ContainerStatus
}

// ContainerStatus reports a single container's name and readiness.
type ContainerStatus struct {
	Name  string
	Ready bool
}

type podListDoc struct {
	Items []podDoc `json:"items"`
}

type podDoc struct {
	Metadata struct {
		Name      string            `json:"name"`
		Namespace string            `json:"namespace"`
		Labels    map[string]string `json:"labels"`
	} `json:"metadata"`
	Status struct {
		Phase             string `json:"phase"`
		ContainerStatuses []struct {
			Name  string `json:"name"`
			Ready bool   `json:"ready"`
		} `json:"containerStatuses"`
	} `json:"status"`
}

// ListPods lists all pods in namespace.
func (g *Gateway) ListPods(namespace string) ([]Pod, error) {
	args := append([]string{"get", "pods"}, nsArgs(namespace)...)
	args = append(args, "-o", "json")
	out, err := process.RunAndCaptureStdout(g.Binary, args...)
	if err != nil {
		return nil, err
	}
	return parsePodList([]byte(out))
}

func parsePodList(data []byte) ([]Pod, error) {
	var doc podListDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pod list: %w", err)
	}

	pods := make([]Pod, 0, len(doc.Items))
	for _, item := range doc.Items {
		pod := Pod{
			Name:      item.Metadata.Name,
			Namespace: item.Metadata.Namespace,
			Phase:     item.Status.Phase,
			Labels:    item.Metadata.Labels,
		}
		for _, cs := range item.Status.ContainerStatuses {
			pod.Containers = append(pod.Containers, ContainerStatus{Name: cs.Name, Ready: cs.Ready})
		}
		pods = append(pods, pod)
	}
	return pods, nil
}

// GetPod fetches a single pod's current status, used by the resolver's
// wait-until-ready poll.
func (g *Gateway) GetPod(namespace, name string) (*Pod, error) {
	pods, err := g.ListPods(namespace)
	if err != nil {
		return nil, err
	}
	for i := range pods {
		if pods[i].Name == name {
			return &pods[i], nil
		}
	}
	return nil, fmt.Errorf("pod %q not found", name)
}

// Exec runs argv inside container of pod and returns its captured stdout.
func (g *Gateway) Exec(namespace, pod, container string, argv []string) (string, error) {
	args := append([]string{"exec", pod}, nsArgs(namespace)...)
	args = append(args, "-c", container, "--")
	args = append(args, argv...)
	return process.RunAndCaptureStdout(g.Binary, args...)
}

// PortForward starts "kubectl port-forward" for local:remote against pod
// and returns the background ChildProcess. Readiness is the caller's
// responsibility: the forward is usable once a TCP connect to the local
// port succeeds.
func (g *Gateway) PortForward(namespace, pod string, localPort, remotePort int) process.ChildProcess {
	args := append([]string{"port-forward"}, nsArgs(namespace)...)
	args = append(args, pod, fmt.Sprintf("%d:%d", localPort, remotePort))
	return process.SpawnBackground(g.Binary, args...)
}
