package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlabs-dev/obd2core/obd2"
)

func TestInitStartsDisconnected(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	require.Equal(t, obd2.ResultOK, p.Init())
	assert.Equal(t, StateDisconnected, p.GetState())
}

func TestStartScanRejectedWhileConnected(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()
	p.OnStateChanged(StateConnected)

	result := p.StartScan()
	assert.Equal(t, obd2.ResultBusy, result)
}

func TestStopScanOnlyFromScanning(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()

	assert.Equal(t, obd2.ResultOK, p.StopScan())
	assert.Equal(t, StateDisconnected, p.GetState())

	p.StartScan()
	require.Equal(t, StateScanning, p.GetState())
	p.StopScan()
	assert.Equal(t, StateDisconnected, p.GetState())
}

func TestOnStateChangedToConnectedMarksDeviceValid(t *testing.T) {
	var gotEvent Event
	p := New(Config{
		Clock:   func() uint32 { return 0 },
		OnEvent: func(e Event, d Device) { gotEvent = e },
	})
	p.Init()

	p.OnStateChanged(StateConnected)

	assert.Equal(t, EventConnected, gotEvent)
	dev, result := p.GetConnectedDevice()
	require.Equal(t, obd2.ResultOK, result)
	assert.True(t, dev.Valid)
}

func TestOnStateChangedAwayFromConnectedFlushesRx(t *testing.T) {
	var events []Event
	p := New(Config{
		Clock:   func() uint32 { return 0 },
		OnEvent: func(e Event, d Device) { events = append(events, e) },
	})
	p.Init()
	p.OnStateChanged(StateConnected)
	p.OnDataReceived([]byte{0x41, 0x0C})
	require.Equal(t, 2, p.GetAvailableBytes())

	p.OnStateChanged(StateError)

	assert.Equal(t, 0, p.GetAvailableBytes())
	assert.Contains(t, events, EventDisconnected)
	_, result := p.GetConnectedDevice()
	assert.Equal(t, obd2.ResultNoData, result)
}

func TestWriteRejectedWhenNotConnected(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()

	result := p.Write([]byte{0x01})
	assert.Equal(t, obd2.ResultNotReady, result)
}

func TestWriteRejectsOversizedPayload(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()
	p.OnStateChanged(StateConnected)

	result := p.Write(make([]byte, TxBufferSize+1))
	assert.Equal(t, obd2.ResultBufferFull, result)
}

func TestWriteSucceedsWithoutUnderlyingSerial(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()
	p.OnStateChanged(StateConnected)

	result := p.Write([]byte("0100\r"))
	assert.Equal(t, obd2.ResultOK, result)
}

func TestOnDataReceivedFillsRxAndFiresEvent(t *testing.T) {
	var gotEvent Event
	p := New(Config{
		Clock:   func() uint32 { return 0 },
		OnEvent: func(e Event, d Device) { gotEvent = e },
	})
	p.Init()

	result := p.OnDataReceived([]byte{0x41, 0x0C, 0x1A, 0xF8})
	require.Equal(t, obd2.ResultOK, result)
	assert.Equal(t, EventDataReceived, gotEvent)
	assert.Equal(t, 4, p.GetAvailableBytes())
}

func TestOnDataReceivedReportsBufferFullWithoutPartialAccept(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()

	full := make([]byte, RxBufferSize)
	require.Equal(t, obd2.ResultOK, p.OnDataReceived(full))

	result := p.OnDataReceived([]byte{0x01})
	assert.Equal(t, obd2.ResultBufferFull, result)
}

func TestReadDrainsRxInOrder(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()
	p.OnDataReceived([]byte{0x41, 0x0C, 0x1A})

	dst := make([]byte, 2)
	n, result := p.Read(dst)

	require.Equal(t, obd2.ResultOK, result)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0x41, 0x0C}, dst)
	assert.Equal(t, 1, p.GetAvailableBytes())
}

func TestReadReturnsOkWithNothingAvailable(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()

	n, result := p.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.Equal(t, obd2.ResultOK, result)
}

func TestDisconnectClearsDeviceAndRx(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()
	p.OnStateChanged(StateConnected)
	p.OnDataReceived([]byte{0x01})

	result := p.Disconnect()

	require.Equal(t, obd2.ResultOK, result)
	assert.Equal(t, StateDisconnected, p.GetState())
	assert.Equal(t, 0, p.GetAvailableBytes())
	assert.False(t, p.IsConnected())
}

func TestConnectRejectedWhenAlreadyConnected(t *testing.T) {
	p := New(Config{Clock: func() uint32 { return 0 }})
	p.Init()
	p.OnStateChanged(StateConnected)

	result := p.Connect(Device{Name: "ELM327"})
	assert.Equal(t, obd2.ResultBusy, result)
}

func TestDeviceNameTruncatedToMax(t *testing.T) {
	var found Device
	p := New(Config{
		Clock:   func() uint32 { return 0 },
		OnEvent: func(e Event, d Device) { found = d },
	})
	p.Init()

	long := make([]byte, DeviceNameMax+20)
	for i := range long {
		long[i] = 'a'
	}
	p.NotifyDeviceFound(Device{Name: string(long)})
	assert.Len(t, found.Name, DeviceNameMax)
}

func TestStateAndEventStringers(t *testing.T) {
	assert.Equal(t, "CONNECTED", StateConnected.String())
	assert.Equal(t, "DATA_RECEIVED", EventDataReceived.String())
	assert.Equal(t, "UNKNOWN", State(0xFF).String())
}
