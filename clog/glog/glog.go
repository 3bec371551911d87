// Package glog installs a github.com/golang/glog backend for clog.
package glog

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/golang/glog"

	"github.com/cayleygraph/plaza/clog"
)

func init() {
	clog.SetLogger(Logger{})
}

// Logger forwards clog messages to glog, reporting the caller of clog.
type Logger struct{}

func (Logger) Infof(format string, args ...interface{}) {
	glog.InfoDepth(2, fmt.Sprintf(format, args...))
}
func (Logger) Warningf(format string, args ...interface{}) {
	glog.WarningDepth(2, fmt.Sprintf(format, args...))
}
func (Logger) Errorf(format string, args ...interface{}) {
	glog.ErrorDepth(2, fmt.Sprintf(format, args...))
}
func (Logger) Fatalf(format string, args ...interface{}) {
	glog.FatalDepth(2, fmt.Sprintf(format, args...))
}

func (Logger) V(level int) bool {
	return bool(glog.V(glog.Level(level)))
}

// SetV changes the glog verbosity through its "v" flag.
func (Logger) SetV(level int) {
	if f := flag.Lookup("v"); f != nil {
		if err := f.Value.Set(strconv.Itoa(level)); err == nil {
			return
		}
	}
	glog.Warningf("changing log level is not supported; run command with '-v %d' flag", level)
}
