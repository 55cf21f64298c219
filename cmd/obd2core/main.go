// Command obd2core is the CLI supervisor that wires transport, session,
// scheduler, and pidmgr into a running Runner against a real serial ELM327
// adapter.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/integrii/flaggy"

	"github.com/mlabs-dev/obd2core/internal/clock"
	"github.com/mlabs-dev/obd2core/internal/clog"
	"github.com/mlabs-dev/obd2core/internal/config"
	"github.com/mlabs-dev/obd2core/internal/errsink"
	"github.com/mlabs-dev/obd2core/internal/transport"
	"github.com/mlabs-dev/obd2core/obd2"
	"github.com/mlabs-dev/obd2core/pidmgr"
	"github.com/mlabs-dev/obd2core/runner"
	"github.com/mlabs-dev/obd2core/sanity"
	"github.com/mlabs-dev/obd2core/scheduler"
	"github.com/mlabs-dev/obd2core/session"
)

const defaultVersion = "unversioned"

var (
	version = defaultVersion

	serialName          = ""
	baud                = 38400
	tickIntervalFlag    = "100ms"
	strictPreviousValue = false
)

func main() {
	flaggy.SetName("obd2core")
	flaggy.SetDescription("OBD-II diagnostic client core: session, scheduler, PID registry over a serial ELM327 adapter")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/mlabs-dev/obd2core"

	flaggy.String(&serialName, "p", "port", "Serial device the ELM327 adapter is attached to (e.g. /dev/rfcomm0)")
	flaggy.Int(&baud, "b", "baud", "Serial baud rate")
	flaggy.String(&tickIntervalFlag, "t", "tick", "Cooperative loop tick interval (e.g. 100ms)")
	flaggy.Bool(&strictPreviousValue, "s", "strict-previous-value", "Use corrected sanity-check previous-sample semantics instead of the historical off-by-one")
	flaggy.SetVersion(version)

	flaggy.Parse()

	if serialName == "" {
		log.Fatal("obd2core: -port is required")
	}

	tickInterval, err := time.ParseDuration(tickIntervalFlag)
	if err != nil {
		log.Fatalf("obd2core: invalid -tick value %q: %s", tickIntervalFlag, err)
	}

	cfg := config.Config{
		SerialName:          serialName,
		Baud:                baud,
		TickInterval:        tickInterval,
		StrictPreviousValue: strictPreviousValue,
	}
	if err := cfg.Valid(); err != nil {
		log.Fatalf("obd2core: invalid configuration: %s", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("obd2core: %s", err)
	}
}

func run(cfg config.Config) error {
	appLog := clog.New("obd2core")
	clk := clock.System()

	sink := errsink.SinkFunc(func(code errsink.Code, severity errsink.Severity) {
		appLog.Warn("%s: %s", severity, code)
	})

	sess := session.New(session.Config{
		Clock: clk,
		Sink:  sink,
		TransitionCallback: func(from, to session.State, event session.Event) {
			appLog.Debug("session %s -> %s (%s)", from, to, event)
		},
	})

	sched := scheduler.New(scheduler.Config{
		Clock: clk,
		Sink:  sink,
		OnComplete: func(taskID byte, result obd2.Result) {
			appLog.Debug("task %d completed: %s", taskID, result)
		},
	})

	pm := pidmgr.New(pidmgr.Config{
		Clock: clk,
		Sink:  sink,
		OnValue: func(pid byte, value obd2.Value) {
			appLog.Debug("pid 0x%02X decoded: %.2f %s", pid, value.Eng, value.Unit)
		},
	})

	checker := sanity.NewChecker(sanity.Config{
		Clock:               clk,
		Sink:                sink,
		StrictPreviousValue: cfg.StrictPreviousValue,
	})

	// rn is referenced from the transport's OnEvent hook before it exists;
	// the closure only runs after Start, by which point rn is assigned.
	var rn *runner.Runner
	port := transport.New(transport.Config{
		Clock:      clk,
		Sink:       sink,
		SerialName: cfg.SerialName,
		Baud:       cfg.Baud,
		OnEvent: func(event transport.Event, device transport.Device) {
			if rn != nil {
				rn.EventCallback()(event, device)
			}
		},
	})
	if result := port.Init(); result != obd2.ResultOK {
		return fmt.Errorf("transport init failed: %s", result)
	}

	rn = runner.New(runner.Config{
		Session:      sess,
		Scheduler:    sched,
		PidMgr:       pm,
		Transport:    port,
		Sanity:       checker,
		Clock:        clk,
		Sink:         sink,
		TickInterval: cfg.TickInterval,
	})

	if result := rn.Start(); result != obd2.ResultOK {
		return fmt.Errorf("runner start failed: %s", result)
	}

	if result := port.Connect(transport.Device{Name: "ELM327"}); result != obd2.ResultOK {
		return fmt.Errorf("connect failed: %s", result)
	}
	go port.ReadLoop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	rn.Stop()
	port.Disconnect()
	return nil
}
