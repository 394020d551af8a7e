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

// Package log is the controller's single logging sink: a logrus logger
// that writes to the session's chosen destination (stdout or a file), with
// lumberjack rotation when that destination is a real file, plus a handful
// of colorized helpers for the few lines meant for the user's terminal
// rather than the log record.
package log

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
}

// Init points the logger at the session's log sink. path == "-" (or empty)
// keeps stdout; any other path is truncated at session start and rotated
// past 10MB.
func Init(path string, verbose bool) error {
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if path == "" || path == "-" {
		log.SetOutput(os.Stdout)
		return nil
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return err
	}

	log.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 5,
		Compress:   false,
	})
	return nil
}

// Writer exposes the underlying sink so subprocess output can be combined
// into the same line-buffered log.
func Writer() io.Writer { return log.Out }

func Debug(args ...interface{})                 { log.Debug(args...) }
func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }
func Info(args ...interface{})                  { log.Info(args...) }
func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }

// Yellow prints a warning line to stderr, independent of the structured
// log sink.
func Yellow(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(os.Stderr, format+"\n", args...)
}

// Green prints a success line to stdout.
func Green(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(os.Stdout, format+"\n", args...)
}

// Fail prints a fatal error line to stderr.
func Fail(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
}
