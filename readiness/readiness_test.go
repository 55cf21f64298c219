package readiness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlabs-dev/obd2core/obd2"
)

func TestProcessResponseRejectedBeforeInit(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	result := m.ProcessResponse([]byte{0x00, 0x07, 0x65, 0x04})
	assert.Equal(t, obd2.ResultNotReady, result)
}

func TestProcessResponseRejectsShortPayload(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()
	result := m.ProcessResponse([]byte{0x00, 0x07, 0x65})
	assert.Equal(t, obd2.ResultError, result)
}

func TestProcessResponseDecodesMilAndDtcCount(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 1234 }})
	m.Init()

	result := m.ProcessResponse([]byte{0x83, 0x07, 0x65, 0x04})
	require.Equal(t, obd2.ResultOK, result)

	data, result := m.GetData()
	require.Equal(t, obd2.ResultOK, result)
	assert.True(t, data.MilOn)
	assert.Equal(t, byte(0x03), data.DtcCount)
	assert.Equal(t, uint32(1234), data.TimestampMs)
	assert.True(t, data.Valid)
}

func TestProcessResponseSparkEngineMonitors(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()

	// byte_b: bit3=0 (spark), supported bits 0x01|0x02|0x04 (misfire/fuel/components)
	// byte_c: catalyst(0x01) + O2 sensor(0x20) supported
	// byte_d: catalyst complete bit clear (0x01=0), O2 sensor incomplete (0x20=1)
	result := m.ProcessResponse([]byte{0x00, 0x07, 0x21, 0x20})
	require.Equal(t, obd2.ResultOK, result)

	assert.Equal(t, EngineSpark, m.GetEngineType())
	assert.True(t, m.IsMonitorSupported(MonitorCatalyst))
	assert.Equal(t, StatusComplete, m.GetMonitorStatus(MonitorCatalyst))
	assert.True(t, m.IsMonitorSupported(MonitorO2Sensor))
	assert.Equal(t, StatusIncomplete, m.GetMonitorStatus(MonitorO2Sensor))
	assert.False(t, m.IsMonitorSupported(MonitorBoostPressure))
}

func TestProcessResponseCompressionEngineMonitors(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()

	// byte_b: bit3=1 (compression)
	// byte_c: boost pressure (0x08) supported
	// byte_d: boost pressure complete (bit clear)
	result := m.ProcessResponse([]byte{0x00, 0x08, 0x08, 0x00})
	require.Equal(t, obd2.ResultOK, result)

	assert.Equal(t, EngineCompression, m.GetEngineType())
	assert.True(t, m.IsMonitorSupported(MonitorBoostPressure))
	assert.Equal(t, StatusComplete, m.GetMonitorStatus(MonitorBoostPressure))
	assert.False(t, m.IsMonitorSupported(MonitorCatalyst), "catalyst is a spark-only monitor slot")
}

func TestCountsTallyAcrossMonitors(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()
	m.ProcessResponse([]byte{0x00, 0x07, 0x21, 0x20})

	assert.GreaterOrEqual(t, m.SupportedCount(), byte(2))
	assert.GreaterOrEqual(t, m.CompleteCount(), byte(1))
	assert.GreaterOrEqual(t, m.IncompleteCount(), byte(1))
}

func TestCallbackFiresOnDecode(t *testing.T) {
	var got Data
	m := New(Config{
		Clock:    func() uint32 { return 0 },
		Callback: func(d Data) { got = d },
	})
	m.Init()
	m.ProcessResponse([]byte{0x80, 0x07, 0x00, 0x00})

	assert.True(t, got.Valid)
	assert.True(t, got.MilOn)
}

func TestStringersFallBackToUnknown(t *testing.T) {
	assert.Equal(t, "Misfire", MonitorMisfire.String())
	assert.Equal(t, "Complete", StatusComplete.String())
	assert.Equal(t, "Spark Ignition", EngineSpark.String())
	assert.Equal(t, "Unknown", Monitor(0xFF).String())
}
