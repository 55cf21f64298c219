// Package clog is the ambient logging shim shared across components. It
// exposes a capability interface (LogProvider + an enable switch) so call
// sites stay cheap when logging is disabled; the default provider is
// backed by logrus.
package clog

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LogProvider is the capability every concrete logger backend implements.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog is a cheap, copyable logging handle. Components hold one by value.
type Clog struct {
	provider LogProvider
	has      uint32 // 1: enabled, 0: disabled
}

// New creates a logger bound to a named prefix, enabled by default.
func New(name string) Clog {
	c := Clog{provider: logrusProvider{logrus.WithField("component", name)}}
	c.LogMode(true)
	return c
}

// LogMode enables or disables output without changing the provider.
func (c *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&c.has, 1)
	} else {
		atomic.StoreUint32(&c.has, 0)
	}
}

// SetProvider swaps the backing provider, e.g. to redirect into a test hook.
func (c *Clog) SetProvider(p LogProvider) {
	if p != nil {
		c.provider = p
	}
}

func (c Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Critical(format, v...)
	}
}

func (c Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Error(format, v...)
	}
}

func (c Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Warn(format, v...)
	}
}

func (c Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Debug(format, v...)
	}
}

type logrusProvider struct {
	entry *logrus.Entry
}

var _ LogProvider = logrusProvider{}

func (p logrusProvider) Critical(format string, v ...interface{}) {
	p.entry.WithField("level", "critical").Errorf(format, v...)
}
func (p logrusProvider) Error(format string, v ...interface{})    { p.entry.Errorf(format, v...) }
func (p logrusProvider) Warn(format string, v ...interface{})     { p.entry.Warnf(format, v...) }
func (p logrusProvider) Debug(format string, v ...interface{})    { p.entry.Debugf(format, v...) }
