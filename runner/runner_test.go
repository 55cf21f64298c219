package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlabs-dev/obd2core/internal/transport"
	"github.com/mlabs-dev/obd2core/obd2"
	"github.com/mlabs-dev/obd2core/pidmgr"
	"github.com/mlabs-dev/obd2core/scheduler"
	"github.com/mlabs-dev/obd2core/session"
)

func newTestRunner(t *testing.T, clockMs *uint32) *Runner {
	t.Helper()
	clk := func() uint32 { return *clockMs }

	sess := session.New(session.Config{Clock: clk})
	sched := scheduler.New(scheduler.Config{Clock: clk})
	pm := pidmgr.New(pidmgr.Config{Clock: clk})
	tp := transport.New(transport.Config{Clock: clk})
	require.Equal(t, obd2.ResultOK, tp.Init())

	r := New(Config{
		Session:      sess,
		Scheduler:    sched,
		PidMgr:       pm,
		Transport:    tp,
		Clock:        clk,
		TickInterval: 50 * time.Millisecond,
	})
	return r
}

func TestNewRegistersPollPidTask(t *testing.T) {
	clockMs := uint32(0)
	r := newTestRunner(t, &clockMs)
	assert.Equal(t, 1, r.scheduler.TaskCount())
}

func TestPollPidTaskNoopBeforeHandshake(t *testing.T) {
	clockMs := uint32(0)
	r := newTestRunner(t, &clockMs)

	result := r.pollPidTask()
	assert.Equal(t, obd2.ResultOK, result)
}

func TestPollPidTaskNoopWithNothingDue(t *testing.T) {
	clockMs := uint32(0)
	r := newTestRunner(t, &clockMs)

	steps := []session.Event{
		session.EventConnectRequest,
		session.EventConnected,
		session.EventElmInitComplete,
		session.EventProtocolDetected,
		session.EventHandshakeComplete,
	}
	for _, e := range steps {
		require.Equal(t, obd2.ResultOK, r.session.ProcessEvent(e))
	}
	require.Equal(t, session.StateIdle, r.session.CurrentState())

	result := r.pollPidTask()
	assert.Equal(t, obd2.ResultOK, result)
}

func TestHandleTransportEventConnectedAdvancesSession(t *testing.T) {
	clockMs := uint32(0)
	r := newTestRunner(t, &clockMs)
	r.session.ProcessEvent(session.EventConnectRequest)
	require.Equal(t, session.StateConnecting, r.session.CurrentState())

	r.handleTransportEvent(transport.EventConnected, transport.Device{})

	assert.Equal(t, session.StateElmInit, r.session.CurrentState())
}

func TestHandleTransportEventDisconnectedReturnsToDisconnected(t *testing.T) {
	clockMs := uint32(0)
	r := newTestRunner(t, &clockMs)
	r.session.ProcessEvent(session.EventConnectRequest)
	r.session.ProcessEvent(session.EventConnected)

	r.handleTransportEvent(transport.EventDisconnected, transport.Device{})

	assert.Equal(t, session.StateDisconnected, r.session.CurrentState())
}

func TestSubmitFrameUpdatesPidValue(t *testing.T) {
	clockMs := uint32(0)
	r := newTestRunner(t, &clockMs)

	frame := obd2.Frame{Mode: obd2.ModeLiveData, Pid: 0x0C, Data: [obd2.MaxDataBytes]byte{0x1A, 0xF8}, Length: 2, Valid: true}
	result := r.SubmitFrame(frame)
	require.Equal(t, obd2.ResultOK, result)

	value, getResult := r.pidmgr.GetValue(0x0C)
	require.Equal(t, obd2.ResultOK, getResult)
	assert.Greater(t, value.Eng, float32(0))
}

func TestHandleDataReceivedBeforeStartDoesNotPanic(t *testing.T) {
	clockMs := uint32(0)
	r := newTestRunner(t, &clockMs)

	// New() must leave pace ready to Trigger before Start() ever runs, since
	// a caller may launch the transport's read loop ahead of Start().
	require.NotNil(t, r.pace)
	assert.NotPanics(t, func() {
		r.handleTransportEvent(transport.EventDataReceived, transport.Device{})
	})
}

func TestEventCallbackReturnsBoundHandler(t *testing.T) {
	clockMs := uint32(0)
	r := newTestRunner(t, &clockMs)

	cb := r.EventCallback()
	require.NotNil(t, cb)

	r.session.ProcessEvent(session.EventConnectRequest)
	cb(transport.EventConnected, transport.Device{})
	assert.Equal(t, session.StateElmInit, r.session.CurrentState())
}
