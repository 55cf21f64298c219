// Package readiness decodes the Mode 01 PID 0x01 "monitor status since DTCs
// cleared" response: MIL state, stored DTC count, engine type, and the
// per-monitor supported/complete status used to judge I/M readiness.
//
// Grounded on original_source/core/readiness/readiness.c.
package readiness

import (
	"github.com/mlabs-dev/obd2core/internal/clock"
	"github.com/mlabs-dev/obd2core/obd2"
)

// Monitor identifies one of the sixteen OBD-II readiness monitors.
type Monitor uint8

const (
	MonitorMisfire Monitor = iota
	MonitorFuelSystem
	MonitorComponents
	MonitorCatalyst
	MonitorHeatedCatalyst
	MonitorEvapSystem
	MonitorSecondaryAir
	MonitorACRefrigerant
	MonitorO2Sensor
	MonitorO2SensorHeater
	MonitorEGRVVT
	MonitorNMHCCatalyst
	MonitorNOxAftertreatment
	MonitorBoostPressure
	MonitorExhaustGasSensor
	MonitorPMFilter
	monitorMax
)

var monitorStrings = [monitorMax]string{
	MonitorMisfire:           "Misfire",
	MonitorFuelSystem:        "Fuel System",
	MonitorComponents:        "Components",
	MonitorCatalyst:          "Catalyst",
	MonitorHeatedCatalyst:    "Heated Catalyst",
	MonitorEvapSystem:        "EVAP System",
	MonitorSecondaryAir:      "Secondary Air",
	MonitorACRefrigerant:     "A/C Refrigerant",
	MonitorO2Sensor:          "O2 Sensor",
	MonitorO2SensorHeater:    "O2 Sensor Heater",
	MonitorEGRVVT:            "EGR/VVT",
	MonitorNMHCCatalyst:      "NMHC Catalyst",
	MonitorNOxAftertreatment: "NOx Aftertreatment",
	MonitorBoostPressure:     "Boost Pressure",
	MonitorExhaustGasSensor:  "Exhaust Gas Sensor",
	MonitorPMFilter:          "PM Filter",
}

func (m Monitor) String() string {
	if m < monitorMax {
		return monitorStrings[m]
	}
	return "Unknown"
}

// Status is a monitor's supported/complete state.
type Status uint8

const (
	StatusNotSupported Status = iota
	StatusIncomplete
	StatusComplete
	statusMax
)

var statusStrings = [statusMax]string{
	StatusNotSupported: "Not Supported",
	StatusIncomplete:   "Incomplete",
	StatusComplete:     "Complete",
}

func (s Status) String() string {
	if s < statusMax {
		return statusStrings[s]
	}
	return "Unknown"
}

// EngineType distinguishes the two monitor groups byte C/D decode
// differently for (spark-ignition catalyst monitors vs.
// compression-ignition NOx/PM/boost monitors).
type EngineType uint8

const (
	EngineSpark EngineType = iota
	EngineCompression
	EngineUnknown
	engineMax
)

var engineStrings = [engineMax]string{
	EngineSpark:       "Spark Ignition",
	EngineCompression: "Compression Ignition",
	EngineUnknown:     "Unknown",
}

func (e EngineType) String() string {
	if e < engineMax {
		return engineStrings[e]
	}
	return "Unknown"
}

// MonitorInfo is one monitor's decoded state.
type MonitorInfo struct {
	Monitor   Monitor
	Status    Status
	Supported bool
}

// Data is the fully decoded readiness response.
type Data struct {
	Monitors    [monitorMax]MonitorInfo
	EngineType  EngineType
	MilOn       bool
	DtcCount    byte
	TimestampMs uint32
	Valid       bool
}

// Callback receives a freshly decoded Data on every successful
// ProcessResponse call.
type Callback func(data Data)

// Config configures a Manager.
type Config struct {
	Clock    clock.Source
	Callback Callback
}

// Manager decodes PID 0x01 responses and retains the latest snapshot.
//
// Grounded on ReadinessManager_t.
type Manager struct {
	data        Data
	initialized bool
	clock       clock.Source
	callback    Callback
}

// New constructs an uninitialized Manager. Call Init before use, mirroring
// ReadinessManager_Init's separate initialization step.
func New(cfg Config) *Manager {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Manager{clock: clk, callback: cfg.Callback}
}

// Init resets the manager to its all-monitors-not-supported baseline.
func (m *Manager) Init() obd2.Result {
	m.data = Data{EngineType: EngineUnknown}
	for i := range m.data.Monitors {
		m.data.Monitors[i] = MonitorInfo{Monitor: Monitor(i), Status: StatusNotSupported}
	}
	m.initialized = true
	return obd2.ResultOK
}

func setMonitorStatus(data *Data, monitor Monitor, supported, complete bool) {
	if monitor >= monitorMax {
		return
	}
	info := &data.Monitors[monitor]
	info.Monitor = monitor
	info.Supported = supported
	switch {
	case !supported:
		info.Status = StatusNotSupported
	case complete:
		info.Status = StatusComplete
	default:
		info.Status = StatusIncomplete
	}
}

// ProcessResponse decodes a 4-byte PID 0x01 payload. Grounded on
// ReadinessManager_ProcessResponse, including its byte-C/D monitor bit
// layout that differs between spark and compression engines.
func (m *Manager) ProcessResponse(data []byte) obd2.Result {
	if !m.initialized {
		return obd2.ResultNotReady
	}
	if len(data) < 4 {
		return obd2.ResultError
	}

	byteA, byteB, byteC, byteD := data[0], data[1], data[2], data[3]

	m.data.MilOn = byteA&0x80 != 0
	m.data.DtcCount = byteA & 0x7F

	isCompression := byteB&0x08 != 0
	if isCompression {
		m.data.EngineType = EngineCompression
	} else {
		m.data.EngineType = EngineSpark
	}

	setMonitorStatus(&m.data, MonitorMisfire, byteB&0x01 != 0, byteB&0x10 == 0)
	setMonitorStatus(&m.data, MonitorFuelSystem, byteB&0x02 != 0, byteB&0x20 == 0)
	setMonitorStatus(&m.data, MonitorComponents, byteB&0x04 != 0, byteB&0x40 == 0)

	if !isCompression {
		setMonitorStatus(&m.data, MonitorCatalyst, byteC&0x01 != 0, byteD&0x01 == 0)
		setMonitorStatus(&m.data, MonitorHeatedCatalyst, byteC&0x02 != 0, byteD&0x02 == 0)
		setMonitorStatus(&m.data, MonitorEvapSystem, byteC&0x04 != 0, byteD&0x04 == 0)
		setMonitorStatus(&m.data, MonitorSecondaryAir, byteC&0x08 != 0, byteD&0x08 == 0)
		setMonitorStatus(&m.data, MonitorACRefrigerant, byteC&0x10 != 0, byteD&0x10 == 0)
		setMonitorStatus(&m.data, MonitorO2Sensor, byteC&0x20 != 0, byteD&0x20 == 0)
		setMonitorStatus(&m.data, MonitorO2SensorHeater, byteC&0x40 != 0, byteD&0x40 == 0)
		setMonitorStatus(&m.data, MonitorEGRVVT, byteC&0x80 != 0, byteD&0x80 == 0)
	} else {
		setMonitorStatus(&m.data, MonitorNMHCCatalyst, byteC&0x01 != 0, byteD&0x01 == 0)
		setMonitorStatus(&m.data, MonitorNOxAftertreatment, byteC&0x02 != 0, byteD&0x02 == 0)
		setMonitorStatus(&m.data, MonitorBoostPressure, byteC&0x08 != 0, byteD&0x08 == 0)
		setMonitorStatus(&m.data, MonitorExhaustGasSensor, byteC&0x20 != 0, byteD&0x20 == 0)
		setMonitorStatus(&m.data, MonitorPMFilter, byteC&0x40 != 0, byteD&0x40 == 0)
		setMonitorStatus(&m.data, MonitorEGRVVT, byteC&0x80 != 0, byteD&0x80 == 0)
	}

	m.data.TimestampMs = m.clock()
	m.data.Valid = true

	if m.callback != nil {
		m.callback(m.data)
	}
	return obd2.ResultOK
}

// GetData returns the latest decoded snapshot.
func (m *Manager) GetData() (Data, obd2.Result) {
	if !m.initialized {
		return Data{}, obd2.ResultNotReady
	}
	return m.data, obd2.ResultOK
}

// GetMonitorStatus returns a single monitor's status.
func (m *Manager) GetMonitorStatus(monitor Monitor) Status {
	if !m.initialized || monitor >= monitorMax {
		return StatusNotSupported
	}
	return m.data.Monitors[monitor].Status
}

// IsMonitorSupported reports whether the vehicle supports the given
// monitor.
func (m *Manager) IsMonitorSupported(monitor Monitor) bool {
	if !m.initialized || monitor >= monitorMax {
		return false
	}
	return m.data.Monitors[monitor].Supported
}

// CompleteCount counts monitors in StatusComplete.
func (m *Manager) CompleteCount() byte {
	return m.countStatus(StatusComplete)
}

// IncompleteCount counts monitors in StatusIncomplete.
func (m *Manager) IncompleteCount() byte {
	return m.countStatus(StatusIncomplete)
}

func (m *Manager) countStatus(want Status) byte {
	if !m.initialized {
		return 0
	}
	var count byte
	for _, info := range m.data.Monitors {
		if info.Status == want {
			count++
		}
	}
	return count
}

// SupportedCount counts monitors the vehicle reports as supported.
func (m *Manager) SupportedCount() byte {
	if !m.initialized {
		return 0
	}
	var count byte
	for _, info := range m.data.Monitors {
		if info.Supported {
			count++
		}
	}
	return count
}

// GetEngineType returns the last decoded engine type.
func (m *Manager) GetEngineType() EngineType {
	if !m.initialized {
		return EngineUnknown
	}
	return m.data.EngineType
}
