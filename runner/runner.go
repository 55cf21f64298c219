// Package runner ties the session state machine, the task scheduler, and
// the PID registry into one cooperative polling loop over a transport.Port,
// the way a real embedded target's main loop calls
// StateMachine_Update/Scheduler_Update back to back on a fixed tick.
//
// Frame parsing stays outside this package: the wire-frame parser is an
// opaque, integrator-supplied service, so Runner exposes SubmitFrame for
// whatever parser the caller wires to the transport's raw byte stream.
package runner

import (
	"time"

	throttle "github.com/boz/go-throttle"

	"github.com/mlabs-dev/obd2core/internal/clock"
	"github.com/mlabs-dev/obd2core/internal/clog"
	"github.com/mlabs-dev/obd2core/internal/errsink"
	"github.com/mlabs-dev/obd2core/internal/transport"
	"github.com/mlabs-dev/obd2core/obd2"
	"github.com/mlabs-dev/obd2core/pidmgr"
	"github.com/mlabs-dev/obd2core/sanity"
	"github.com/mlabs-dev/obd2core/scheduler"
	"github.com/mlabs-dev/obd2core/session"
)

// pollPidTaskName is the scheduler task that requests the next due PID.
const pollPidTaskName = "poll-next-pid"

// RawDataCallback receives bytes newly arrived on the transport. The
// integrator's frame parser lives behind this hook; once it produces a
// Frame it should call Runner.SubmitFrame.
type RawDataCallback func(data []byte)

// Config wires the already-constructed components a Runner drives. All
// four component fields are required; TickInterval defaults to 100ms.
type Config struct {
	Session      *session.Session
	Scheduler    *scheduler.Scheduler
	PidMgr       *pidmgr.Manager
	Transport    *transport.Port
	Sanity       *sanity.Checker // optional; nil disables post-decode validation
	Clock        clock.Source
	Sink         errsink.Sink
	TickInterval time.Duration
	OnRawData    RawDataCallback
}

// Runner owns the cooperative tick loop. Construct with New, then Start.
type Runner struct {
	session   *session.Session
	scheduler *scheduler.Scheduler
	pidmgr    *pidmgr.Manager
	transport *transport.Port
	sanity    *sanity.Checker

	clock     clock.Source
	sink      errsink.Sink
	log       clog.Clog
	onRawData RawDataCallback

	tickInterval time.Duration
	pace         throttle.ThrottleDriver
	stopReadLoop chan struct{}
}

// New constructs a Runner and registers its PID-polling task with the
// scheduler. The returned Runner is not yet running; call Start.
func New(cfg Config) *Runner {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = errsink.Nop
	}
	tick := cfg.TickInterval
	if tick == 0 {
		tick = 100 * time.Millisecond
	}

	r := &Runner{
		session:      cfg.Session,
		scheduler:    cfg.Scheduler,
		pidmgr:       cfg.PidMgr,
		transport:    cfg.Transport,
		sanity:       cfg.Sanity,
		clock:        clk,
		sink:         sink,
		log:          clog.New("runner"),
		onRawData:    cfg.OnRawData,
		tickInterval: tick,
	}

	// pace is built here, not in Start, so a transport event arriving
	// before Start runs (e.g. a read loop launched ahead of it) has a live
	// throttle.ThrottleDriver to Trigger instead of a nil interface.
	r.pace = throttle.ThrottleFunc(r.tickInterval, true, r.tick)

	r.scheduler.AddTask(pollPidTaskName, r.pollPidTask, scheduler.PriorityMedium, uint16(tick.Milliseconds()), false)
	return r
}

// pollPidTask asks pidmgr for the most overdue enabled PID and requests it
// over the transport. It only runs once the session has completed its
// handshake; any other state is a no-op, not a failure, so the scheduler
// doesn't treat a not-yet-connected vehicle as a task error.
func (r *Runner) pollPidTask() obd2.Result {
	if !r.session.IsInState(session.StateIdle) && !r.session.IsInState(session.StateReadingPids) {
		return obd2.ResultOK
	}

	pid, result := r.pidmgr.NextPidToRead()
	if result != obd2.ResultOK {
		return obd2.ResultOK
	}

	cmd := obd2.RequestLiveData(pid) + "\r"
	writeResult := r.transport.Write([]byte(cmd))
	if writeResult != obd2.ResultOK {
		r.log.Warn("poll pid 0x%02X: write failed: %s", pid, writeResult)
	}
	return writeResult
}

// handleTransportEvent maps transport-level connection events onto session
// events, and forwards newly arrived bytes to the integrator's frame
// parser hook.
func (r *Runner) handleTransportEvent(event transport.Event, device transport.Device) {
	switch event {
	case transport.EventConnected:
		r.session.ProcessEvent(session.EventConnected)
	case transport.EventDisconnected:
		r.session.ProcessEvent(session.EventDisconnected)
	case transport.EventError:
		r.session.ProcessEvent(session.EventError)
	case transport.EventDataReceived:
		r.drainRawData()
		if r.pace != nil {
			r.pace.Trigger()
		}
	}
}

func (r *Runner) drainRawData() {
	if r.onRawData == nil {
		return
	}
	buf := make([]byte, r.transport.GetAvailableBytes())
	if len(buf) == 0 {
		return
	}
	n, _ := r.transport.Read(buf)
	r.onRawData(buf[:n])
}

// SubmitFrame delivers a parsed frame from the integrator's frame parser
// into the PID registry, validating the decoded value through the sanity
// checker when one is configured.
func (r *Runner) SubmitFrame(frame obd2.Frame) obd2.Result {
	result := r.pidmgr.ProcessFrame(frame)
	if result != obd2.ResultOK || r.sanity == nil {
		return result
	}

	value, getResult := r.pidmgr.GetValue(frame.Pid)
	if getResult != obd2.ResultOK {
		return result
	}
	r.sanity.ValidatePid(frame.Pid, value)
	return result
}

// Start connects the session's handshake path, begins the scheduler, and
// launches the cooperative tick loop paced by a trailing throttle: ticks
// run at most once per TickInterval, and a Trigger() that arrives mid-period
// guarantees one more run at the end of it instead of being dropped.
func (r *Runner) Start() obd2.Result {
	r.stopReadLoop = make(chan struct{})

	result := r.scheduler.Start()
	if result != obd2.ResultOK {
		return result
	}

	go r.tickerLoop()

	return r.session.ProcessEvent(session.EventConnectRequest)
}

// tick runs one cooperative pass: session timeout handling, then scheduled
// tasks. Order matters, the same way the original main loop calls the
// state machine before the scheduler: a timed-out session should stop
// issuing PID requests in the same pass it detects the timeout.
func (r *Runner) tick() {
	r.session.Update()
	r.scheduler.Update()
}

// tickerLoop fires Trigger() on a fixed cadence so the loop keeps making
// progress even without transport activity (e.g. session timeouts,
// recurring scheduled tasks).
func (r *Runner) tickerLoop() {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.pace.Trigger()
		case <-r.stopReadLoop:
			return
		}
	}
}

// Stop halts the tick loop and the scheduler. It does not disconnect the
// transport; callers that own the Port decide its lifecycle separately.
func (r *Runner) Stop() obd2.Result {
	if r.pace != nil {
		r.pace.Stop()
	}
	if r.stopReadLoop != nil {
		close(r.stopReadLoop)
	}
	return r.scheduler.Stop()
}

// EventCallback returns the transport.EventCallback this Runner expects to
// be wired into the transport.Port's Config.OnEvent at construction time.
func (r *Runner) EventCallback() transport.EventCallback {
	return r.handleTransportEvent
}
