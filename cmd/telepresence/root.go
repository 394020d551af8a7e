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

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/okteto/telepresence/internal/config"
	"github.com/okteto/telepresence/internal/log"
	"github.com/okteto/telepresence/internal/session"
)

var (
	deployment    string
	newDeployment string
	namespace     string
	exposedPorts  []int
	runShell      bool
	logFile       string
	showVersion   bool
	verbose       bool
	socksWrapper  string
	kubectlBin    string

	// logPath mirrors the resolved --logfile value for the panic handler
	// in main.go, which runs before any Controller exists.
	logPath string
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "telepresence --deployment NAME --run-shell",
		Short:         "Make a local shell behave as if it runs inside a pod",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runUp,
	}

	addFlags(cmd.Flags())
	return cmd
}

func addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&deployment, "deployment", "", "existing workload to attach to")
	flags.StringVar(&newDeployment, "new-deployment", "", "workload to create and attach to")
	flags.StringVar(&namespace, "namespace", "", "namespace (defaults to the current context's namespace)")
	flags.IntSliceVar(&exposedPorts, "expose", nil, "local port to expose into the cluster (repeatable)")
	flags.BoolVar(&runShell, "run-shell", false, "reserved flag; required")
	flags.StringVar(&logFile, "logfile", "./telepresence.log", "log file path, or - for stdout")
	flags.BoolVar(&showVersion, "version", false, "print the version and exit")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")
	flags.StringVar(&socksWrapper, "socks-wrapper", "", "path to the SOCKS-wrapper binary")
	flags.StringVar(&kubectlBin, "kubectl-binary", "", "path to the kubectl binary")
}

func runUp(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Println(config.Version())
		return nil
	}

	if err := validateFlags(); err != nil {
		return err
	}

	logPath = logFile
	if err := log.Init(logPath, verbose); err != nil {
		return err
	}

	workload := deployment
	createWorkload := false
	if newDeployment != "" {
		workload = newDeployment
		createWorkload = true
	}

	opts := session.Options{
		Namespace:      namespace,
		Workload:       workload,
		CreateWorkload: createWorkload,
		ExposedPorts:   exposedPorts,
		SOCKSWrapper:   socksWrapper,
		KubectlBinary:  kubectlBin,
		LogPath:        logPath,
	}

	code := session.New(opts).Run()
	if code != 0 {
		return cmdExit{code}
	}
	return nil
}

func validateFlags() error {
	if !runShell {
		return fmt.Errorf("--run-shell is required")
	}
	if (deployment == "") == (newDeployment == "") {
		return fmt.Errorf("exactly one of --deployment or --new-deployment is required")
	}
	return nil
}

// cmdExit lets main.go translate a non-zero session exit code into the
// process's exit status without cobra printing a second error line.
type cmdExit struct{ code int }

func (e cmdExit) Error() string { return "" }
