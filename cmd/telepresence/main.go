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
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/okteto/telepresence/internal/config"
	"github.com/okteto/telepresence/internal/errors"
	"github.com/okteto/telepresence/internal/kubectl"
	"github.com/okteto/telepresence/internal/log"
)

const crashLogTailLines = 20

func main() {
	defer recoverPanic()

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if exit, ok := err.(cmdExit); ok {
			os.Exit(exit.code)
		}
		log.Fail(err.Error())
		if uErr, ok := err.(errors.UserError); ok && uErr.Hint != "" {
			log.Yellow("    %s", uErr.Hint)
		}
		os.Exit(errors.ExitCode(err))
	}
}

// recoverPanic turns an unhandled panic into a crash report on stderr:
// the argv, tool version, control-plane-client version, OS identification,
// the stack trace, and the tail of the session log.
func recoverPanic() {
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "telepresence %s crashed: %v\n", config.Version(), r)
		fmt.Fprintf(os.Stderr, "    argv: %s\n", strings.Join(os.Args, " "))
		fmt.Fprintf(os.Stderr, "    os: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		if v, err := kubectl.New(kubectlBin).ClientVersion(); err == nil {
			fmt.Fprintf(os.Stderr, "    kubectl: %s\n", v)
		}
		fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
		if tail := logTail(logPath, crashLogTailLines); tail != "" {
			fmt.Fprintf(os.Stderr, "last %d log lines:\n%s\n", crashLogTailLines, tail)
		}
		fmt.Fprintf(os.Stderr, "please include the report above and %s with your bug report\n", logFileHint())
		os.Exit(errors.ExitInternal)
	}
}

// logTail returns the last n lines of the log file at path, or "" if the
// sink is stdout or the file cannot be read.
func logTail(path string, n int) string {
	if path == "" || path == "-" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func logFileHint() string {
	if logPath == "" || logPath == "-" {
		return "the console output above"
	}
	return logPath
}
