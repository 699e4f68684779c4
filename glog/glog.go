// Package glog is a small leveled logger in the style of github.com/golang/glog,
// matching SeaweedFS's weed/glog package. It keeps the same severity
// vocabulary (Info/Warning/Error/Fatal) and verbosity gate (V(n)).
package glog

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync/atomic"
)

// verbosity is the process-wide -v level. 0 by default; raised via SetVerbosity.
var verbosity int32

func init() {
	if v := os.Getenv("VAULTCHECK_V"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			atomic.StoreInt32(&verbosity, int32(n))
		}
	}
}

// SetVerbosity sets the global -v level used by V().
func SetVerbosity(level int) {
	atomic.StoreInt32(&verbosity, int32(level))
}

// Verbose is a boolean wrapper returned by V() so call sites can write
// glog.V(2).Infof(...) and have the check and the call fuse into one branch.
type Verbose bool

// V reports whether verbosity at the given level is enabled.
func V(level int) Verbose {
	return Verbose(int32(level) <= atomic.LoadInt32(&verbosity))
}

func (v Verbose) Info(args ...interface{}) {
	if v {
		logLine("I", fmt.Sprint(args...))
	}
}

func (v Verbose) Infof(format string, args ...interface{}) {
	if v {
		logLine("I", fmt.Sprintf(format, args...))
	}
}

func (v Verbose) Infoln(args ...interface{}) {
	if v {
		logLine("I", fmt.Sprintln(args...))
	}
}

func Info(args ...interface{})                 { logLine("I", fmt.Sprint(args...)) }
func Infof(format string, args ...interface{}) { logLine("I", fmt.Sprintf(format, args...)) }
func Infoln(args ...interface{})               { logLine("I", fmt.Sprintln(args...)) }

func Warning(args ...interface{})                 { logLine("W", fmt.Sprint(args...)) }
func Warningf(format string, args ...interface{}) { logLine("W", fmt.Sprintf(format, args...)) }
func Warningln(args ...interface{})               { logLine("W", fmt.Sprintln(args...)) }

func Error(args ...interface{})                 { logLine("E", fmt.Sprint(args...)) }
func Errorf(format string, args ...interface{}) { logLine("E", fmt.Sprintf(format, args...)) }
func Errorln(args ...interface{})               { logLine("E", fmt.Sprintln(args...)) }

func Fatal(args ...interface{}) {
	logLine("F", fmt.Sprint(args...))
	os.Exit(1)
}

func Fatalf(format string, args ...interface{}) {
	logLine("F", fmt.Sprintf(format, args...))
	os.Exit(1)
}

func logLine(severity, msg string) {
	log.Output(3, severity+" "+msg)
}
