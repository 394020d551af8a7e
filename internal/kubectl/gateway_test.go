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

package kubectl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deploymentJSON = `{
  "metadata": {"name": "web", "namespace": "staging"},
  "spec": {
    "template": {
      "metadata": {"labels": {"app": "web", "tier": "frontend"}},
      "spec": {
        "containers": [
          {
            "name": "telepresence",
            "image": "docker.io/okteto/telepresence-k8s:0.26",
            "env": [{"name": "BAR", "value": "2"}, {"name": "TOKEN"}]
          },
          {"name": "sidecar", "image": "myorg/sidecar:v1"}
        ]
      }
    }
  }
}`

func TestParseWorkloadSpec(t *testing.T) {
	spec, err := parseWorkloadSpec("web", []byte(deploymentJSON))
	require.NoError(t, err)

	assert.Equal(t, "staging", spec.Namespace)
	assert.Equal(t, map[string]string{"app": "web", "tier": "frontend"}, spec.Labels)
	require.Len(t, spec.Containers, 2)
	assert.Equal(t, "telepresence", spec.Containers[0].Name)
	assert.Equal(t, "docker.io/okteto/telepresence-k8s:0.26", spec.Containers[0].Image)
	assert.Equal(t, []string{"BAR", "TOKEN"}, spec.Containers[0].EnvVars)
	assert.Empty(t, spec.Containers[1].EnvVars)
}

func TestParseWorkloadSpecInvalidJSON(t *testing.T) {
	_, err := parseWorkloadSpec("web", []byte("not json"))
	assert.Error(t, err)
}

const podListJSON = `{
  "items": [
    {
      "metadata": {"name": "web-12345", "namespace": "default", "labels": {"app": "web"}},
      "status": {
        "phase": "Running",
        "containerStatuses": [
          {"name": "telepresence", "ready": true},
          {"name": "sidecar", "ready": false}
        ]
      }
    },
    {
      "metadata": {"name": "db-67890", "namespace": "default"},
      "status": {"phase": "Pending"}
    }
  ]
}`

func TestParsePodList(t *testing.T) {
	pods, err := parsePodList([]byte(podListJSON))
	require.NoError(t, err)
	require.Len(t, pods, 2)

	assert.Equal(t, "web-12345", pods[0].Name)
	assert.Equal(t, "Running", pods[0].Phase)
	assert.Equal(t, map[string]string{"app": "web"}, pods[0].Labels)
	require.Len(t, pods[0].Containers, 2)
	assert.True(t, pods[0].Containers[0].Ready)
	assert.False(t, pods[0].Containers[1].Ready)

	assert.Equal(t, "db-67890", pods[1].Name)
	assert.Equal(t, "Pending", pods[1].Phase)
	assert.Empty(t, pods[1].Containers)
}

func TestParsePodListEmpty(t *testing.T) {
	pods, err := parsePodList([]byte(`{"items": []}`))
	require.NoError(t, err)
	assert.Empty(t, pods)
}

func TestNsArgs(t *testing.T) {
	assert.Nil(t, nsArgs(""))
	assert.Equal(t, []string{"-n", "staging"}, nsArgs("staging"))
}

func TestNewDefaultsBinary(t *testing.T) {
	assert.Equal(t, "kubectl", New("").Binary)
	assert.Equal(t, "/usr/local/bin/kubectl", New("/usr/local/bin/kubectl").Binary)
}
