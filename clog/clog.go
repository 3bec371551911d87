// Copyright 2016 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clog provides the logging interface used by all plaza packages.
//
// By default messages go to the standard library logger. Binaries may
// install another backend with SetLogger, usually by blank importing
// clog/glog.
package clog

import (
	"log"
	"sync/atomic"
)

// Logger is the clog logging interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// Leveler is implemented by loggers that manage verbosity on their own.
type Leveler interface {
	V(level int) bool
	SetV(level int)
}

var (
	logger    Logger = stdlog{}
	verbosity int32
)

// SetLogger sets the clog logging implementation.
// Passing nil silences all output.
func SetLogger(l Logger) { logger = l }

// V returns whether the current clog verbosity is above the specified level.
func V(level int) bool {
	if l, ok := logger.(Leveler); ok {
		return l.V(level)
	}
	return int(atomic.LoadInt32(&verbosity)) >= level
}

// SetV sets the clog verbosity level.
func SetV(level int) {
	if l, ok := logger.(Leveler); ok {
		l.SetV(level)
		return
	}
	atomic.StoreInt32(&verbosity, int32(level))
}

// Debugf logs an information level message if verbosity is at least 2.
func Debugf(format string, args ...interface{}) {
	if logger != nil && V(2) {
		logger.Infof(format, args...)
	}
}

// Infof logs information level messages.
func Infof(format string, args ...interface{}) {
	if logger != nil {
		logger.Infof(format, args...)
	}
}

// Warningf logs warning level messages.
func Warningf(format string, args ...interface{}) {
	if logger != nil {
		logger.Warningf(format, args...)
	}
}

// Errorf logs error level messages.
func Errorf(format string, args ...interface{}) {
	if logger != nil {
		logger.Errorf(format, args...)
	}
}

// Fatalf logs fatal messages and terminates the program.
func Fatalf(format string, args ...interface{}) {
	if logger != nil {
		logger.Fatalf(format, args...)
	}
}

type stdlog struct{}

func (stdlog) Infof(format string, args ...interface{})    { log.Printf(format, args...) }
func (stdlog) Warningf(format string, args ...interface{}) { log.Printf("WARN: "+format, args...) }
func (stdlog) Errorf(format string, args ...interface{})   { log.Printf("ERROR: "+format, args...) }
func (stdlog) Fatalf(format string, args ...interface{})   { log.Fatalf("FATAL: "+format, args...) }
