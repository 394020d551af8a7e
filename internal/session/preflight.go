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
	"os/exec"

	"github.com/okteto/telepresence/internal/errors"
	"github.com/okteto/telepresence/internal/shell"
)

// preflight verifies the three external collaborators the session depends
// on before it stages anything: the control-plane CLI, a secure-shell
// client, and the SOCKS-wrapper binary.
func (c *Controller) preflight() error {
	if err := c.gw.Reachable(); err != nil {
		return errors.Preflight{
			Tool: c.gw.Binary,
			Hint: "make sure kubectl is installed and your current context can reach the cluster",
		}
	}

	if _, err := exec.LookPath("ssh"); err != nil {
		return errors.Preflight{
			Tool: "ssh",
			Hint: "install an OpenSSH-compatible client",
		}
	}

	launcher := shell.New(c.opts.SOCKSWrapper)
	if err := launcher.Preflight(); err != nil {
		return errors.Preflight{
			Tool: launcher.WrapperBinary,
			Hint: "install the SOCKS-wrapper binary and make sure it is on PATH",
		}
	}

	return nil
}
