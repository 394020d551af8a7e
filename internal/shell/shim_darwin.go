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

package shell

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// protectedPrefixes forbid library injection under system-integrity
// protection, so the wrapper needs shadow copies of any binary the child
// shell might exec from them.
var protectedPrefixes = []string{"/bin", "/sbin", "/usr/bin", "/usr/sbin"}

// shimProtectedPath materializes a shadow directory, best-effort copies
// every file out of the protected prefixes into it, and returns it as the
// path to prepend to the child's search path.
func shimProtectedPath(fs afero.Fs) (dir string, prependPath string, err error) {
	dir, err = afero.TempDir(fs, "", "telepresence-shadow-")
	if err != nil {
		return "", "", err
	}

	for _, prefix := range protectedPrefixes {
		entries, err := afero.ReadDir(fs, prefix)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			data, err := afero.ReadFile(fs, filepath.Join(prefix, entry.Name()))
			if err != nil {
				continue
			}
			_ = afero.WriteFile(fs, filepath.Join(dir, entry.Name()), data, 0o755)
		}
	}

	return dir, dir, nil
}
