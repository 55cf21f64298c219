// Package config holds the ambient, validated configuration for the
// obd2core runner: serial port parameters, scheduler/session timing, and
// the sanity checker's compatibility toggle. Valid applies a documented
// default to every zero-valued numeric field and range-checks the ones with
// a documented range; SerialName has no default and must be set.
package config

import (
	"time"

	"github.com/go-errors/errors"
)

// Range bounds for the fields Valid fills in when left zero.
const (
	BaudMin = 9600
	BaudMax = 921600

	TickIntervalMin = 10 * time.Millisecond
	TickIntervalMax = 10 * time.Second

	SessionTimeoutMin = 100 * time.Millisecond
	SessionTimeoutMax = 60 * time.Second

	PidPollRateMin = 50 * time.Millisecond
	PidPollRateMax = 60 * time.Second
)

// Config is the obd2core runner's full configuration. The zero value of
// any numeric field is replaced with its documented default by Valid.
type Config struct {
	// SerialName is the OS device path for the ELM327 adapter, e.g.
	// "/dev/rfcomm0" or "/dev/ttyUSB0".
	SerialName string

	// Baud is the serial connection's bit rate. Range [9600, 921600].
	Baud int

	// TickInterval paces the runner's cooperative loop: how often it
	// calls scheduler.Update and session.Update. Range [10ms, 10s].
	TickInterval time.Duration

	// SessionTimeout is a per-state session timeout, validated and
	// defaulted here. Range [100ms, 60s]. Nothing in this module passes it
	// on: session timeouts come only from session.Config.StateConfigs.
	SessionTimeout time.Duration

	// SessionMaxRetries is a per-state session retry budget, defaulted
	// here. Nothing in this module passes it on: retry budgets come only
	// from session.Config.StateConfigs.
	SessionMaxRetries uint8

	// PidPollRate is a PID polling interval, validated and defaulted here.
	// Range [50ms, 60s]. Nothing in this module passes it on: pidmgr
	// assigns pidmgr.DefaultRateMs or the PID definition's default rate.
	PidPollRate time.Duration

	// StrictPreviousValue opts sanity's stuck and rate-of-change checks into
	// the corrected "one step back" previous-sample semantics instead of
	// preserving the historical off-by-one. See sanity.Config.
	StrictPreviousValue bool
}

// Valid fills in documented defaults for zero fields and rejects
// out-of-range explicit values. It mutates cfg in place, matching
// cs104.Config.Valid's shape.
func (cfg *Config) Valid() error {
	if cfg == nil {
		return errors.New("invalid pointer")
	}

	if cfg.SerialName == "" {
		return errors.New("SerialName must name a serial device")
	}

	if cfg.Baud == 0 {
		cfg.Baud = 38400
	} else if cfg.Baud < BaudMin || cfg.Baud > BaudMax {
		return errors.New("Baud not in [9600, 921600]")
	}

	if cfg.TickInterval == 0 {
		cfg.TickInterval = 100 * time.Millisecond
	} else if cfg.TickInterval < TickIntervalMin || cfg.TickInterval > TickIntervalMax {
		return errors.New("TickInterval not in [10ms, 10s]")
	}

	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 5 * time.Second
	} else if cfg.SessionTimeout < SessionTimeoutMin || cfg.SessionTimeout > SessionTimeoutMax {
		return errors.New("SessionTimeout not in [100ms, 60s]")
	}

	if cfg.SessionMaxRetries == 0 {
		cfg.SessionMaxRetries = 3
	}

	if cfg.PidPollRate == 0 {
		cfg.PidPollRate = 1 * time.Second
	} else if cfg.PidPollRate < PidPollRateMin || cfg.PidPollRate > PidPollRateMax {
		return errors.New("PidPollRate not in [50ms, 60s]")
	}

	return nil
}

// DefaultConfig returns a Config with every timing field at its documented
// default. SerialName is left empty; callers must set it, since there is
// no sensible default serial device.
func DefaultConfig() Config {
	return Config{
		Baud:              38400,
		TickInterval:      100 * time.Millisecond,
		SessionTimeout:    5 * time.Second,
		SessionMaxRetries: 3,
		PidPollRate:       1 * time.Second,
	}
}
