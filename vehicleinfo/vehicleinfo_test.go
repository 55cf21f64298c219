package vehicleinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlabs-dev/obd2core/obd2"
)

func TestProcessResponseRejectedBeforeInit(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	result := m.ProcessResponse(InfoVin, []byte("1HGCM82633A004352"))
	assert.Equal(t, obd2.ResultNotReady, result)
}

func TestProcessResponseAssemblesFullVin(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()

	vin := "1HGCM82633A004352" // 17 chars
	result := m.ProcessResponse(InfoVin, []byte(vin))
	require.Equal(t, obd2.ResultOK, result)

	assert.True(t, m.HasVin())
	got, result := m.GetVin()
	require.Equal(t, obd2.ResultOK, result)
	assert.Equal(t, vin, got)
}

func TestProcessResponseSkipsLeadingNonPrintableLengthByte(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()

	payload := append([]byte{0x01}, []byte("1HGCM82633A004352")...)
	m.ProcessResponse(InfoVin, payload)

	got, result := m.GetVin()
	require.Equal(t, obd2.ResultOK, result)
	assert.Equal(t, "1HGCM82633A004352", got)
}

func TestGetVinNoDataWhenIncomplete(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()

	m.ProcessResponse(InfoVin, []byte("SHORT"))
	_, result := m.GetVin()
	assert.Equal(t, obd2.ResultNoData, result)
	assert.False(t, m.HasVin())
}

func TestCalibrationIdAccumulatesPerEcu(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()

	m.ProcessResponse(InfoCalID, []byte("ECU1CAL"))
	m.ProcessResponse(InfoCalID, []byte("ECU2CAL"))

	info, result := m.GetInfo()
	require.Equal(t, obd2.ResultOK, result)
	assert.Equal(t, byte(2), info.CalibrationIDCount)
	assert.Equal(t, "ECU1CAL", info.CalibrationIDs[0])
	assert.Equal(t, "ECU2CAL", info.CalibrationIDs[1])
}

func TestCalibrationIdStopsAtMaxEcus(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()

	for i := 0; i < MaxEcus+2; i++ {
		m.ProcessResponse(InfoCalID, []byte("X"))
	}

	info, _ := m.GetInfo()
	assert.Equal(t, byte(MaxEcus), info.CalibrationIDCount)
}

func TestCvnCopiesUpToFixedLength(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()

	m.ProcessResponse(InfoCvn, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE})

	info, _ := m.GetInfo()
	require.Equal(t, byte(1), info.CvnCount)
	assert.Equal(t, [CvnLength]byte{0xAA, 0xBB, 0xCC, 0xDD}, info.Cvns[0])
}

func TestEcuNameAccumulates(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()

	m.ProcessResponse(InfoEcuName, []byte("Engine Control Module"))

	info, _ := m.GetInfo()
	require.Equal(t, byte(1), info.EcuNameCount)
	assert.LessOrEqual(t, len(info.EcuNames[0]), EcuNameLength)
}

func TestClearResetsAccumulatedRecordsNotInitFlag(t *testing.T) {
	m := New(Config{Clock: func() uint32 { return 0 }})
	m.Init()
	m.ProcessResponse(InfoVin, []byte("1HGCM82633A004352"))
	require.True(t, m.HasVin())

	result := m.Clear()
	require.Equal(t, obd2.ResultOK, result)
	assert.False(t, m.HasVin())

	info, getResult := m.GetInfo()
	require.Equal(t, obd2.ResultOK, getResult)
	assert.Equal(t, byte(0), info.CalibrationIDCount)
}

func TestCallbackReceivesTypeAndInfo(t *testing.T) {
	var gotType InfoType
	m := New(Config{
		Clock:    func() uint32 { return 0 },
		Callback: func(it InfoType, info Info) { gotType = it },
	})
	m.Init()
	m.ProcessResponse(InfoEcuName, []byte("PCM"))

	assert.Equal(t, InfoEcuName, gotType)
}

func TestTypeStringerFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "VIN", InfoVin.String())
	assert.Equal(t, "Unknown", InfoType(0xFF).String())
}
