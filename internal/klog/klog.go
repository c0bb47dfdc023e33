// Package klog is the kernel's logging facade. The original ARMv7-M port
// gates a klog! macro behind a klog-semihosting/klog-itm feature and
// compiles to nothing otherwise. Since this kernel is hosted, there is
// always somewhere to send logs, so klog wraps github.com/sirupsen/logrus
// instead of stubbing out: one *logrus.Logger per kernel instance,
// injected rather than global, fed by explicit call sites the way
// runsc's own log.Infof/log.Warningf calls are.
package klog

import (
	"github.com/sirupsen/logrus"

	"github.com/oxidecomputer/hubris-go/internal/abi"
)

// New returns a logger preconfigured with the kernel's field conventions.
func New() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Task returns an entry scoped to a single task, the way per-task
// klog! call sites in the original tag their output with the task name.
func Task(l *logrus.Logger, id abi.TaskID) *logrus.Entry {
	return l.WithField("task", id.String())
}
