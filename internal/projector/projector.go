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

// Package projector reduces a pod's full environment down to the subset
// that is safe and useful to inject into the local shell: workload-declared
// variables and the service-discovery families. Pure functions over
// map[string]string; the projection never rewrites addresses, since the
// shell dials through the SOCKS tunnel and cluster addresses stay valid.
package projector

import (
	"sort"
	"strings"
)

const (
	namespacePrefix = "TELEPRESENCE_"
	podVar          = namespacePrefix + "POD"
	containerVar    = namespacePrefix + "CONTAINER"
)

var serviceSuffixes = []string{"_ADDR", "_PORT", "_PROTO", "_HOST", "_TCP"}

// ServiceKeys returns the sorted set of service keys present in env: for
// every "<NAME>_SERVICE_HOST" variable, <NAME> is a service key. Sorting
// is the canonical projection order and must match the order the in-pod
// forwarder uses to assign tunnel slots.
func ServiceKeys(env map[string]string) []string {
	seen := map[string]struct{}{}
	for name := range env {
		const suffix = "_SERVICE_HOST"
		if strings.HasSuffix(name, suffix) {
			seen[strings.TrimSuffix(name, suffix)] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Project derives the projected environment from podEnv: synthetic
// pod/container identifiers, variables declared in the workload's
// companion-container env, and service-family variables for every service
// key. declaredEnv is the set of variable names declared for the companion
// container in the workload spec. Everything else is dropped.
func Project(podEnv map[string]string, declaredEnv map[string]struct{}, podName, containerName string) map[string]string {
	out := map[string]string{
		podVar:       podName,
		containerVar: containerName,
	}

	for name, value := range podEnv {
		if _, declared := declaredEnv[name]; declared {
			out[name] = value
		}
	}

	keys := ServiceKeys(podEnv)
	for name, value := range podEnv {
		if isServiceVariable(name, keys) {
			out[name] = value
		}
	}

	return out
}

// isServiceVariable reports whether name belongs to a service-discovery
// family: it starts with "<key>_" for one of the service keys and ends in
// one of the recognized suffixes. This covers both the flat form
// (API_SERVICE_HOST) and the per-port form (API_PORT_80_TCP_ADDR).
func isServiceVariable(name string, keys []string) bool {
	for _, key := range keys {
		if !strings.HasPrefix(name, key+"_") {
			continue
		}
		for _, suffix := range serviceSuffixes {
			if strings.HasSuffix(name, suffix) {
				return true
			}
		}
	}
	return false
}
