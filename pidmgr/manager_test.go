package pidmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlabs-dev/obd2core/obd2"
)

func fakeClock(ms uint32) func() uint32 {
	return func() uint32 { return ms }
}

// markSupportedForTest flips Entry.Supported directly, standing in for a
// SetSupported bitmap response naming exactly these PIDs.
func (m *Manager) markSupportedForTest(pids ...byte) {
	for _, pid := range pids {
		if e := m.findEntry(pid); e != nil {
			e.Supported = true
		}
	}
}

func TestSetSupportedRegistersAdvertisedPids(t *testing.T) {
	m := New(Config{Clock: fakeClock(0)})

	// byte0 bit0 (MSB) -> pid 0x01, byte0 bit1 -> pid 0x02
	data := [4]byte{0xC0, 0x00, 0x00, 0x00}
	result := m.SetSupported(data, 0x00)
	require.Equal(t, obd2.ResultOK, result)

	assert.True(t, m.IsSupported(0x01))
	assert.True(t, m.IsSupported(0x02))
	assert.False(t, m.IsSupported(0x03))
	assert.Equal(t, 2, m.SupportedCount())
}

func TestEnableDisablePid(t *testing.T) {
	m := New(Config{Clock: fakeClock(0)})

	require.Equal(t, obd2.ResultOK, m.EnablePid(0x0C, 100))
	assert.Equal(t, 1, m.EnabledCount())

	require.Equal(t, obd2.ResultOK, m.DisablePid(0x0C))
	assert.Equal(t, 0, m.EnabledCount())

	// disabling something never tracked is a no-op, not an error
	require.Equal(t, obd2.ResultOK, m.DisablePid(0xEE))
}

func TestProcessFrameDecodesAndCaches(t *testing.T) {
	var gotPid byte
	var gotValue obd2.Value

	m := New(Config{
		Clock: fakeClock(12345),
		OnValue: func(pid byte, value obd2.Value) {
			gotPid = pid
			gotValue = value
		},
	})

	frame := obd2.Frame{Mode: obd2.ModeLiveData, Pid: 0x0D, Length: 1, Valid: true}
	frame.Data[0] = 100

	result := m.ProcessFrame(frame)
	require.Equal(t, obd2.ResultOK, result)

	assert.Equal(t, byte(0x0D), gotPid)
	assert.InDelta(t, 100.0, gotValue.Eng, 0.001)
	assert.Equal(t, uint32(12345), gotValue.Timestamp)

	value, result := m.GetValue(0x0D)
	require.Equal(t, obd2.ResultOK, result)
	assert.InDelta(t, 100.0, value.Eng, 0.001)
}

func TestProcessFrameIgnoresNonLiveDataMode(t *testing.T) {
	m := New(Config{Clock: fakeClock(0)})
	frame := obd2.Frame{Mode: obd2.ModeStoredDTCs, Pid: 0, Length: 0, Valid: true}

	result := m.ProcessFrame(frame)
	assert.Equal(t, obd2.ResultOK, result)

	_, result = m.GetValue(0)
	assert.Equal(t, obd2.ResultNoData, result)
}

func TestNextPidToReadPrefersPriorityThenOverdue(t *testing.T) {
	clockMs := uint32(0)
	m := New(Config{Clock: func() uint32 { return clockMs }})

	// RPM (0x0C) is high priority, coolant temp (0x05) is medium.
	m.EnablePid(0x0C, 100)
	m.EnablePid(0x05, 100)
	m.markSupportedForTest(0x0C, 0x05)

	clockMs = 200
	pid, result := m.NextPidToRead()
	require.Equal(t, obd2.ResultOK, result)
	assert.Equal(t, byte(0x0C), pid, "higher priority PID should win even with equal overdue")
}

func TestNextPidToReadNoCandidatesWhenNothingDue(t *testing.T) {
	clockMs := uint32(0)
	m := New(Config{Clock: func() uint32 { return clockMs }})
	m.EnablePid(0x0C, 1000)
	m.markSupportedForTest(0x0C)

	clockMs = 10
	_, result := m.NextPidToRead()
	assert.Equal(t, obd2.ResultNoData, result)
}

func TestNextPidToReadExcludesUnsupportedEvenIfEnabled(t *testing.T) {
	clockMs := uint32(0)
	m := New(Config{Clock: func() uint32 { return clockMs }})

	// 0x0C is enabled but never marked supported; 0x05 is both.
	m.EnablePid(0x0C, 100)
	m.EnablePid(0x05, 100)
	m.markSupportedForTest(0x05)

	clockMs = 200
	pid, result := m.NextPidToRead()
	require.Equal(t, obd2.ResultOK, result)
	assert.Equal(t, byte(0x05), pid, "unsupported PID must never be selected even when enabled")
}

func TestEntryTableCapacity(t *testing.T) {
	m := New(Config{Clock: fakeClock(0)})
	for i := 0; i < MaxEntries; i++ {
		result := m.EnablePid(byte(i), 1000)
		require.Equal(t, obd2.ResultOK, result)
	}

	result := m.EnablePid(0xFE, 1000)
	assert.Equal(t, obd2.ResultBufferFull, result)
}
