// Package transport implements the serial connection that carries ELM327
// traffic: an RX ring buffer, a fixed TX staging buffer, and the
// connection-level state/event pair that a Bluetooth-SPP or USB-serial
// adapter exposes to the session state machine above it.
//
// Grounded on original_source/ios_bridge/bluetooth_if.c: that file drives an
// iOS CoreBluetooth peripheral through the same state machine and the same
// fixed-size RX/TX buffers this package reproduces over a real serial port.
package transport

import (
	"sync"

	goerrors "github.com/go-errors/errors"
	"github.com/tarm/serial"

	"github.com/mlabs-dev/obd2core/internal/clock"
	"github.com/mlabs-dev/obd2core/internal/clog"
	"github.com/mlabs-dev/obd2core/internal/errsink"
	"github.com/mlabs-dev/obd2core/internal/ringbuf"
	"github.com/mlabs-dev/obd2core/obd2"
)

// RxBufferSize matches BluetoothRxBuffer_t's fixed 512-byte backing array.
const RxBufferSize = 512

// TxBufferSize matches BT_TX_BUFFER_SIZE.
const TxBufferSize = 256

// DeviceNameMax matches BT_DEVICE_NAME_MAX.
const DeviceNameMax = 64

// State mirrors BluetoothState_t.
type State uint8

const (
	StateDisabled State = iota
	StateDisconnected
	StateScanning
	StateConnecting
	StateConnected
	StateError
	stateMax
)

var stateStrings = [stateMax]string{
	StateDisabled:     "DISABLED",
	StateDisconnected: "DISCONNECTED",
	StateScanning:     "SCANNING",
	StateConnecting:   "CONNECTING",
	StateConnected:    "CONNECTED",
	StateError:        "ERROR",
}

func (s State) String() string {
	if s < stateMax {
		return stateStrings[s]
	}
	return "UNKNOWN"
}

// Event mirrors BluetoothEvent_t.
type Event uint8

const (
	EventNone Event = iota
	EventEnabled
	EventDisabled
	EventDeviceFound
	EventConnected
	EventDisconnected
	EventDataReceived
	EventWriteComplete
	EventError
	eventMax
)

var eventStrings = [eventMax]string{
	EventNone:          "NONE",
	EventEnabled:       "ENABLED",
	EventDisabled:      "DISABLED",
	EventDeviceFound:   "DEVICE_FOUND",
	EventConnected:     "CONNECTED",
	EventDisconnected:  "DISCONNECTED",
	EventDataReceived:  "DATA_RECEIVED",
	EventWriteComplete: "WRITE_COMPLETE",
	EventError:         "ERROR",
}

func (e Event) String() string {
	if e < eventMax {
		return eventStrings[e]
	}
	return "UNKNOWN"
}

// Device mirrors BluetoothDevice_t. Name is truncated to DeviceNameMax the
// way the original's fixed char[] storage would.
type Device struct {
	Name      string
	UUID      string
	RSSI      int8
	IsElm327  bool
	Valid     bool
}

func truncateName(name string) string {
	if len(name) > DeviceNameMax {
		return name[:DeviceNameMax]
	}
	return name
}

// EventCallback receives connection-level event notifications.
type EventCallback func(event Event, device Device)

// Config configures a Port.
type Config struct {
	Clock    clock.Source
	Sink     errsink.Sink
	OnEvent  EventCallback
	// SerialName and Baud describe the underlying OS serial device (e.g.
	// "/dev/rfcomm0" for a paired Bluetooth-SPP endpoint, or a USB-serial
	// path). Connect uses these to build the tarm/serial config; with an
	// empty SerialName Connect opens nothing, so tests can drive the ring
	// buffers directly through OnDataReceived/Write.
	SerialName string
	Baud       int
}

// Port is the serial connection abstraction: state machine plus RX/TX
// staging buffers, grounded on BluetoothInterface_t. It owns at most one
// underlying *serial.Port at a time, opened by Connect and closed by
// Disconnect or Deinit.
type Port struct {
	mu sync.Mutex

	state            State
	connectedDevice  Device
	rx               *ringbuf.Buffer
	tx               [TxBufferSize]byte
	txPending        int
	initialized      bool

	clock   clock.Source
	sink    errsink.Sink
	onEvent EventCallback
	log     clog.Clog

	serialName string
	baud       int
	conn       *serial.Port
}

// New constructs a Port in the uninitialized state. Call Init before use.
func New(cfg Config) *Port {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = errsink.Nop
	}
	return &Port{
		state:      StateDisabled,
		rx:         ringbuf.New(RxBufferSize),
		clock:      clk,
		sink:       sink,
		onEvent:    cfg.OnEvent,
		serialName: cfg.SerialName,
		baud:       cfg.Baud,
		log:        clog.New("transport"),
	}
}

func (p *Port) fire(event Event) {
	if p.onEvent != nil {
		p.onEvent(event, p.connectedDevice)
	}
}

// Init resets the port to Disconnected, grounded on Bluetooth_Init.
func (p *Port) Init() obd2.Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateDisconnected
	p.connectedDevice = Device{}
	p.rx.Reset()
	p.txPending = 0
	p.initialized = true
	return obd2.ResultOK
}

// Deinit disconnects if necessary, then disables the port, grounded on
// Bluetooth_Deinit.
func (p *Port) Deinit() obd2.Result {
	p.mu.Lock()
	if p.state == StateConnected {
		p.mu.Unlock()
		p.Disconnect()
		p.mu.Lock()
	}
	defer p.mu.Unlock()

	p.closeConnLocked()
	p.state = StateDisabled
	p.initialized = false
	return obd2.ResultOK
}

// StartScan transitions Disconnected -> Scanning. Grounded on
// Bluetooth_StartScan: rejects with ResultBusy while Connected.
func (p *Port) StartScan() obd2.Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateConnected {
		return obd2.ResultBusy
	}
	p.state = StateScanning
	return obd2.ResultOK
}

// StopScan transitions Scanning -> Disconnected. A no-op in any other state,
// matching Bluetooth_StopScan.
func (p *Port) StopScan() obd2.Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateScanning {
		return obd2.ResultOK
	}
	p.state = StateDisconnected
	return obd2.ResultOK
}

// NotifyDeviceFound reports a discovered device during a scan and fires
// EventDeviceFound, grounded on the scan-callback half of bluetooth_if.c
// (the original surfaces discovered peripherals through the same
// event_callback used for every other transition).
func (p *Port) NotifyDeviceFound(device Device) {
	device.Name = truncateName(device.Name)
	if p.onEvent != nil {
		p.onEvent(EventDeviceFound, device)
	}
}

// Connect transitions Disconnected/Scanning -> Connecting and opens the
// underlying serial device. Grounded on Bluetooth_Connect; ResultBusy if
// already Connected.
func (p *Port) Connect(device Device) obd2.Result {
	p.mu.Lock()
	if p.state == StateConnected {
		p.mu.Unlock()
		return obd2.ResultBusy
	}
	device.Name = truncateName(device.Name)
	p.state = StateConnecting
	p.connectedDevice = device
	p.mu.Unlock()

	if p.serialName != "" {
		conf := &serial.Config{Name: p.serialName, Baud: p.baud}
		conn, err := serial.OpenPort(conf)
		if err != nil {
			p.mu.Lock()
			p.state = StateError
			p.mu.Unlock()
			p.sink.Report(errsink.CodeCommIOError, errsink.SeverityError)
			p.log.Error("open %s: %s", p.serialName, goerrors.Wrap(err, 0).ErrorStack())
			return obd2.ResultError
		}
		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()
	}

	p.OnStateChanged(StateConnected)
	return obd2.ResultOK
}

// Disconnect unconditionally returns to Disconnected, clears the connected
// device, flushes the RX buffer, and fires EventDisconnected. Grounded on
// Bluetooth_Disconnect.
func (p *Port) Disconnect() obd2.Result {
	p.mu.Lock()
	p.closeConnLocked()
	p.state = StateDisconnected
	p.connectedDevice.Valid = false
	p.rx.Reset()
	p.txPending = 0
	p.mu.Unlock()

	p.fire(EventDisconnected)
	return obd2.ResultOK
}

func (p *Port) closeConnLocked() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Write stages data for transmission. Grounded on Bluetooth_Write:
// ResultNotReady unless Connected, ResultBufferFull if data exceeds the
// fixed TX staging size.
func (p *Port) Write(data []byte) obd2.Result {
	p.mu.Lock()

	if p.state != StateConnected {
		p.mu.Unlock()
		return obd2.ResultNotReady
	}
	if len(data) > TxBufferSize {
		p.mu.Unlock()
		return obd2.ResultBufferFull
	}

	copy(p.tx[:], data)
	p.txPending = len(data)
	conn := p.conn
	pending := p.txPending
	p.mu.Unlock()

	if conn != nil {
		if _, err := conn.Write(p.tx[:pending]); err != nil {
			p.sink.Report(errsink.CodeCommIOError, errsink.SeverityError)
			p.log.Error("write: %s", goerrors.Wrap(err, 0).ErrorStack())
			return obd2.ResultError
		}
	}

	p.mu.Lock()
	p.txPending = 0
	p.mu.Unlock()

	p.fire(EventWriteComplete)
	return obd2.ResultOK
}

// Read pops up to len(dst) bytes from the RX ring into dst, returning the
// count actually read. Always ResultOK, even when nothing was available,
// matching Bluetooth_Read.
func (p *Port) Read(dst []byte) (int, obd2.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.rx.PopN(dst)
	return n, obd2.ResultOK
}

// GetAvailableBytes returns the RX ring's buffered byte count.
func (p *Port) GetAvailableBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rx.Len()
}

// GetState returns the current connection state.
func (p *Port) GetState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsConnected reports whether the port is in StateConnected.
func (p *Port) IsConnected() bool {
	return p.GetState() == StateConnected
}

// GetConnectedDevice returns the active device. ResultNoData unless
// Connected, matching Bluetooth_GetConnectedDevice.
func (p *Port) GetConnectedDevice() (Device, obd2.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateConnected {
		return Device{}, obd2.ResultNoData
	}
	return p.connectedDevice, obd2.ResultOK
}

// OnDataReceived pushes incoming bytes into the RX ring and fires
// EventDataReceived. Grounded on Bluetooth_OnDataReceived: data that does
// not fit in full reports ERR_COMM_BUFFER_OVERFLOW and returns
// ResultBufferFull, discarding all of data rather than partially
// buffering it.
func (p *Port) OnDataReceived(data []byte) obd2.Result {
	p.mu.Lock()
	overflowed := len(data) > p.rx.Cap()-p.rx.Len()
	if !overflowed {
		p.rx.PushN(data)
	}
	p.mu.Unlock()

	if overflowed {
		p.sink.Report(errsink.CodeCommBufferOverflow, errsink.SeverityWarning)
		return obd2.ResultBufferFull
	}

	p.fire(EventDataReceived)
	return obd2.ResultOK
}

// OnStateChanged updates the connection state and fires the transition's
// event. Grounded on Bluetooth_OnStateChanged: entering Connected marks the
// device valid and fires EventConnected; leaving Connected for any other
// state clears the device and flushes the RX buffer before firing
// EventDisconnected.
func (p *Port) OnStateChanged(newState State) {
	p.mu.Lock()
	wasConnected := p.state == StateConnected
	p.state = newState

	if newState == StateConnected {
		p.connectedDevice.Valid = true
		p.mu.Unlock()
		p.fire(EventConnected)
		return
	}

	if wasConnected {
		p.connectedDevice.Valid = false
		p.rx.Reset()
		p.mu.Unlock()
		p.fire(EventDisconnected)
		return
	}
	p.mu.Unlock()
}

// ReadLoop pumps bytes from the underlying serial connection into the RX
// ring until the connection is closed or a read error occurs. Callers run
// this in its own goroutine after a successful Connect; it returns once the
// port disconnects.
func (p *Port) ReadLoop() {
	buf := make([]byte, 128)
	for {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}

		n, err := conn.Read(buf)
		if err != nil {
			p.sink.Report(errsink.CodeCommIOError, errsink.SeverityError)
			p.log.Warn("read loop exiting: %s", err)
			return
		}
		if n > 0 {
			p.OnDataReceived(buf[:n])
		}
	}
}
