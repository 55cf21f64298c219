// Package session implements the 13-state, 22-event connection-lifecycle
// state machine that drives an OBD-II client from first connect through
// vehicle handshake, polling, and recovery. It is a direct translation of
// the original StateMachine module.
package session

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/mlabs-dev/obd2core/internal/clock"
	"github.com/mlabs-dev/obd2core/internal/errsink"
	"github.com/mlabs-dev/obd2core/obd2"
)

// State is one point in the connection lifecycle.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateElmInit
	StateProtocolDetect
	StateVehicleHandshake
	StateIdle
	StateReadingPids
	StateReadingDTCs
	StateClearingDTCs
	StateReadingFreezeFrame
	StateReadingVehicleInfo
	StateError
	StateRecovery
	stateMax
)

var stateStrings = [stateMax]string{
	StateDisconnected:       "DISCONNECTED",
	StateConnecting:         "CONNECTING",
	StateElmInit:            "ELM_INIT",
	StateProtocolDetect:     "PROTOCOL_DETECT",
	StateVehicleHandshake:   "VEHICLE_HANDSHAKE",
	StateIdle:               "IDLE",
	StateReadingPids:        "READING_PIDS",
	StateReadingDTCs:        "READING_DTCS",
	StateClearingDTCs:       "CLEARING_DTCS",
	StateReadingFreezeFrame: "READING_FREEZE_FRAME",
	StateReadingVehicleInfo: "READING_VEHICLE_INFO",
	StateError:              "ERROR",
	StateRecovery:           "RECOVERY",
}

func (s State) String() string {
	if s >= stateMax {
		return "UNKNOWN"
	}
	return stateStrings[s]
}

// Event is an input to the state machine.
type Event uint8

const (
	EventNone Event = iota
	EventConnectRequest
	EventDisconnectRequest
	EventConnected
	EventDisconnected
	EventElmInitComplete
	EventElmInitFailed
	EventProtocolDetected
	EventProtocolFailed
	EventHandshakeComplete
	EventHandshakeFailed
	EventReadPidsRequest
	EventReadDTCsRequest
	EventClearDTCsRequest
	EventReadFreezeFrameRequest
	EventReadVehicleInfoRequest
	EventOperationComplete
	EventOperationFailed
	EventTimeout
	EventError
	EventRecoveryComplete
	EventRecoveryFailed
	eventMax
)

var eventStrings = [eventMax]string{
	EventNone:                   "NONE",
	EventConnectRequest:         "CONNECT_REQUEST",
	EventDisconnectRequest:      "DISCONNECT_REQUEST",
	EventConnected:              "CONNECTED",
	EventDisconnected:           "DISCONNECTED",
	EventElmInitComplete:        "ELM_INIT_COMPLETE",
	EventElmInitFailed:          "ELM_INIT_FAILED",
	EventProtocolDetected:       "PROTOCOL_DETECTED",
	EventProtocolFailed:         "PROTOCOL_FAILED",
	EventHandshakeComplete:      "HANDSHAKE_COMPLETE",
	EventHandshakeFailed:        "HANDSHAKE_FAILED",
	EventReadPidsRequest:        "READ_PIDS_REQUEST",
	EventReadDTCsRequest:        "READ_DTCS_REQUEST",
	EventClearDTCsRequest:       "CLEAR_DTCS_REQUEST",
	EventReadFreezeFrameRequest: "READ_FREEZE_FRAME_REQUEST",
	EventReadVehicleInfoRequest: "READ_VEHICLE_INFO_REQUEST",
	EventOperationComplete:      "OPERATION_COMPLETE",
	EventOperationFailed:        "OPERATION_FAILED",
	EventTimeout:                "TIMEOUT",
	EventError:                  "ERROR",
	EventRecoveryComplete:       "RECOVERY_COMPLETE",
	EventRecoveryFailed:         "RECOVERY_FAILED",
}

func (e Event) String() string {
	if e >= eventMax {
		return "UNKNOWN"
	}
	return eventStrings[e]
}

type transitionKey struct {
	from  State
	event Event
}

// transitions is the compile-time transition table, transcribed verbatim
// from the original transition_table.
var transitions = map[transitionKey]State{
	{StateDisconnected, EventConnectRequest}: StateConnecting,

	{StateConnecting, EventConnected}:         StateElmInit,
	{StateConnecting, EventTimeout}:           StateError,
	{StateConnecting, EventError}:             StateError,
	{StateConnecting, EventDisconnectRequest}: StateDisconnected,

	{StateElmInit, EventElmInitComplete}:   StateProtocolDetect,
	{StateElmInit, EventElmInitFailed}:     StateRecovery,
	{StateElmInit, EventTimeout}:           StateRecovery,
	{StateElmInit, EventDisconnectRequest}: StateDisconnected,

	{StateProtocolDetect, EventProtocolDetected}:   StateVehicleHandshake,
	{StateProtocolDetect, EventProtocolFailed}:     StateRecovery,
	{StateProtocolDetect, EventTimeout}:             StateRecovery,
	{StateProtocolDetect, EventDisconnectRequest}:   StateDisconnected,

	{StateVehicleHandshake, EventHandshakeComplete}:   StateIdle,
	{StateVehicleHandshake, EventHandshakeFailed}:     StateRecovery,
	{StateVehicleHandshake, EventTimeout}:             StateRecovery,
	{StateVehicleHandshake, EventDisconnectRequest}:   StateDisconnected,

	{StateIdle, EventReadPidsRequest}:         StateReadingPids,
	{StateIdle, EventReadDTCsRequest}:         StateReadingDTCs,
	{StateIdle, EventClearDTCsRequest}:        StateClearingDTCs,
	{StateIdle, EventReadFreezeFrameRequest}:  StateReadingFreezeFrame,
	{StateIdle, EventReadVehicleInfoRequest}:  StateReadingVehicleInfo,
	{StateIdle, EventDisconnectRequest}:       StateDisconnected,
	{StateIdle, EventError}:                   StateError,

	{StateReadingPids, EventOperationComplete}: StateIdle,
	{StateReadingPids, EventOperationFailed}:   StateRecovery,
	{StateReadingPids, EventTimeout}:           StateRecovery,
	{StateReadingPids, EventDisconnectRequest}: StateDisconnected,

	{StateReadingDTCs, EventOperationComplete}: StateIdle,
	{StateReadingDTCs, EventOperationFailed}:   StateRecovery,
	{StateReadingDTCs, EventTimeout}:           StateRecovery,
	{StateReadingDTCs, EventDisconnectRequest}: StateDisconnected,

	{StateClearingDTCs, EventOperationComplete}: StateIdle,
	{StateClearingDTCs, EventOperationFailed}:   StateRecovery,
	{StateClearingDTCs, EventTimeout}:           StateRecovery,
	{StateClearingDTCs, EventDisconnectRequest}: StateDisconnected,

	{StateReadingFreezeFrame, EventOperationComplete}: StateIdle,
	{StateReadingFreezeFrame, EventOperationFailed}:   StateRecovery,
	{StateReadingFreezeFrame, EventTimeout}:           StateRecovery,
	{StateReadingFreezeFrame, EventDisconnectRequest}: StateDisconnected,

	{StateReadingVehicleInfo, EventOperationComplete}: StateIdle,
	{StateReadingVehicleInfo, EventOperationFailed}:   StateRecovery,
	{StateReadingVehicleInfo, EventTimeout}:           StateRecovery,
	{StateReadingVehicleInfo, EventDisconnectRequest}: StateDisconnected,

	{StateError, EventRecoveryComplete}:   StateIdle,
	{StateError, EventDisconnectRequest}:  StateDisconnected,

	{StateRecovery, EventRecoveryComplete}:  StateElmInit,
	{StateRecovery, EventRecoveryFailed}:    StateError,
	{StateRecovery, EventTimeout}:           StateError,
	{StateRecovery, EventDisconnectRequest}: StateDisconnected,
}

func findNextState(current State, event Event) (State, bool) {
	next, ok := transitions[transitionKey{current, event}]
	return next, ok
}

// StateConfig is one state's timeout/retry budget and lifecycle hooks.
type StateConfig struct {
	TimeoutMs  uint32
	MaxRetries uint8
	OnEntry    func()
	OnExit     func()
}

// TransitionCallback is invoked synchronously after every successful
// transition.
type TransitionCallback func(from, to State, event Event)

// Config configures a Session.
type Config struct {
	Clock              clock.Source
	Sink               errsink.Sink
	TransitionCallback TransitionCallback
	// StateConfigs is indexed by State; a nil or short slice means no
	// timeout/retry/hooks are configured for the states past its length.
	StateConfigs []StateConfig
}

// Session is the connection-lifecycle state machine. The zero value is not
// ready to use; construct with New.
type Session struct {
	mu             deadlock.Mutex
	current        State
	previous       State
	stateEntryMs   uint32
	retryCount     uint8
	clock          clock.Source
	sink           errsink.Sink
	onTransition   TransitionCallback
	stateConfigs   []StateConfig
}

// New constructs a Session starting in StateDisconnected.
func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Sink == nil {
		cfg.Sink = errsink.Nop
	}
	s := &Session{
		current:      StateDisconnected,
		previous:     StateDisconnected,
		clock:        cfg.Clock,
		sink:         cfg.Sink,
		onTransition: cfg.TransitionCallback,
		stateConfigs: cfg.StateConfigs,
	}
	s.stateEntryMs = s.clock()
	return s
}

func (s *Session) configFor(state State) (StateConfig, bool) {
	if int(state) >= len(s.stateConfigs) {
		return StateConfig{}, false
	}
	return s.stateConfigs[state], true
}

// executeTransition runs the exit hook of the current state, moves to
// new_state, fires the transition callback, then runs the entry hook of the
// new state. Caller must hold s.mu.
func (s *Session) executeTransition(newState State, event Event) {
	if cfg, ok := s.configFor(s.current); ok && cfg.OnExit != nil {
		cfg.OnExit()
	}

	s.previous = s.current
	s.current = newState
	s.retryCount = 0
	s.stateEntryMs = s.clock()

	if s.onTransition != nil {
		s.onTransition(s.previous, s.current, event)
	}

	if cfg, ok := s.configFor(s.current); ok && cfg.OnEntry != nil {
		cfg.OnEntry()
	}
}

// ProcessEvent looks up (current state, event) in the transition table. If
// no row matches, it reports ERR_STATE_INVALID_TRANSITION at WARNING and
// returns ResultError without changing state; EventNone is always
// accepted as a no-op.
func (s *Session) ProcessEvent(event Event) obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event >= eventMax {
		return obd2.ResultInvalidParam
	}
	if event == EventNone {
		return obd2.ResultOK
	}

	next, found := findNextState(s.current, event)
	if !found {
		s.sink.Report(errsink.CodeStateInvalidTransition, errsink.SeverityWarning)
		return obd2.ResultError
	}

	s.executeTransition(next, event)
	return obd2.ResultOK
}

// Update checks the current state's timeout. On timeout, it either
// consumes one retry (resetting the state-entry clock) or, once retries are
// exhausted, injects EventTimeout through the normal transition path.
func (s *Session) Update() obd2.Result {
	s.mu.Lock()

	if !s.isTimedOutLocked() {
		s.mu.Unlock()
		return obd2.ResultOK
	}

	cfg, ok := s.configFor(s.current)
	if !ok {
		s.mu.Unlock()
		return obd2.ResultOK
	}

	if s.retryCount < cfg.MaxRetries {
		s.retryCount++
		s.stateEntryMs = s.clock()
		s.mu.Unlock()
		return obd2.ResultOK
	}

	s.mu.Unlock()
	s.ProcessEvent(EventTimeout)
	return obd2.ResultOK
}

// CurrentState returns the session's current state.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// PreviousState returns the state the session was in before its last
// transition.
func (s *Session) PreviousState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previous
}

// IsInState reports whether the session is currently in state.
func (s *Session) IsInState(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == state
}

// TimeInState returns how long the session has been in its current state,
// in milliseconds, computed with wrap-safe arithmetic.
func (s *Session) TimeInState() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clock.Elapsed(s.clock(), s.stateEntryMs)
}

func (s *Session) isTimedOutLocked() bool {
	cfg, ok := s.configFor(s.current)
	if !ok || cfg.TimeoutMs == 0 {
		return false
	}
	elapsed := clock.Elapsed(s.clock(), s.stateEntryMs)
	return elapsed >= cfg.TimeoutMs
}

// IsTimedOut reports whether the current state has exceeded its configured
// timeout.
func (s *Session) IsTimedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isTimedOutLocked()
}

// Reset forces the session directly back to StateDisconnected, running exit
// and entry hooks as if EventDisconnectRequest had fired.
func (s *Session) Reset() obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executeTransition(StateDisconnected, EventDisconnectRequest)
	return obd2.ResultOK
}

// CanTransition reports whether event has a configured transition from the
// current state, without performing it.
func (s *Session) CanTransition(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event >= eventMax {
		return false
	}
	_, found := findNextState(s.current, event)
	return found
}
