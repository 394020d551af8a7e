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

// Package config centralizes the version string, registry override, and
// home-directory conventions shared by the rest of the controller.
package config

import (
	"os"
	"path/filepath"
)

const (
	defaultRegistry = "docker.io/okteto"
	companionImage  = "telepresence-k8s"
	sshPort         = 22
	socksPort       = 1080

	folderName = ".telepresence"
)

// VersionString is the tool's own version. It is compared verbatim against
// the companion image tag found in a workload's pod spec; a mismatch is
// fatal. Set via -ldflags at build time.
var VersionString = "dev"

// Version returns the effective version string, honoring the
// TELEPRESENCE_VERSION override used by integration tests.
func Version() string {
	if v := os.Getenv("TELEPRESENCE_VERSION"); v != "" {
		return v
	}
	return VersionString
}

// Registry returns the container registry prefix the companion image is
// pulled from, honoring the TELEPRESENCE_REGISTRY override.
func Registry() string {
	if v := os.Getenv("TELEPRESENCE_REGISTRY"); v != "" {
		return v
	}
	return defaultRegistry
}

// CompanionImage returns the fully qualified companion image reference for
// the current version.
func CompanionImage() string {
	return Registry() + "/" + companionImage + ":" + Version()
}

// SSHPort is the well-known port the companion image's secure-shell server
// listens on inside the pod.
func SSHPort() int { return sshPort }

// SOCKSPort is the well-known fixed port the in-pod SOCKS proxy listens on.
func SOCKSPort() int { return socksPort }

// Home returns the local directory used for generated SOCKS-wrapper
// configuration files and shadow binaries, creating it if needed.
func Home() (string, error) {
	if v, ok := os.LookupEnv("TELEPRESENCE_FOLDER"); ok {
		return v, os.MkdirAll(v, 0o700)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	d := filepath.Join(home, folderName)
	if err := os.MkdirAll(d, 0o700); err != nil {
		return "", err
	}
	return d, nil
}
