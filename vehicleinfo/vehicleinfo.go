// Package vehicleinfo decodes Mode 09 vehicle information responses: VIN,
// per-ECU calibration IDs, CVNs, and ECU names.
//
// Grounded on original_source/core/vehicle_info/vehicle_info.c.
package vehicleinfo

import (
	"github.com/mlabs-dev/obd2core/internal/clock"
	"github.com/mlabs-dev/obd2core/obd2"
)

// VinLength is the fixed VIN character count (ISO 3779).
const VinLength = 17

// CalibrationIDLength bounds a single ECU's calibration ID string.
const CalibrationIDLength = 16

// CvnLength is the byte length of a single ECU's CVN.
const CvnLength = 4

// EcuNameLength bounds a single ECU's name string.
const EcuNameLength = 20

// MaxEcus bounds how many ECUs' calibration ID/CVN/name this module tracks.
const MaxEcus = 8

// InfoType identifies a Mode 09 information type (the PID byte of the
// request).
type InfoType byte

const (
	InfoVinCount    InfoType = 0x01
	InfoVin         InfoType = 0x02
	InfoCalIDCount  InfoType = 0x03
	InfoCalID       InfoType = 0x04
	InfoCvnCount    InfoType = 0x05
	InfoCvn         InfoType = 0x06
	InfoIptCount    InfoType = 0x07
	InfoIpt         InfoType = 0x08
	InfoEcuName     InfoType = 0x0A
	infoMax         InfoType = 0x0B
)

var typeStrings = map[InfoType]string{
	InfoVinCount:   "VIN Message Count",
	InfoVin:        "VIN",
	InfoCalIDCount: "Calibration ID Count",
	InfoCalID:      "Calibration ID",
	InfoCvnCount:   "CVN Count",
	InfoCvn:        "CVN",
	InfoIptCount:   "In-use Performance Count",
	InfoIpt:        "In-use Performance",
	InfoEcuName:    "ECU Name",
}

func (t InfoType) String() string {
	if t >= infoMax {
		return "Unknown"
	}
	if s, ok := typeStrings[t]; ok {
		return s
	}
	return "Unknown"
}

// Info is the accumulated, decoded vehicle information state.
type Info struct {
	Vin      string
	VinValid bool

	CalibrationIDs     [MaxEcus]string
	CalibrationIDCount byte

	Cvns     [MaxEcus][CvnLength]byte
	CvnCount byte

	EcuNames     [MaxEcus]string
	EcuNameCount byte

	TimestampMs uint32
}

// Callback receives notification of every processed response, along with
// the type that produced it and the accumulated Info afterward.
type Callback func(infoType InfoType, info Info)

// Config configures a Manager.
type Config struct {
	Clock    clock.Source
	Callback Callback
}

func isPrintable(c byte) bool {
	return c >= 0x20 && c <= 0x7E
}

// Manager decodes Mode 09 responses and accumulates per-ECU records.
//
// Grounded on VehicleInfoManager_t.
type Manager struct {
	info        Info
	initialized bool
	clock       clock.Source
	callback    Callback
}

// New constructs an uninitialized Manager. Call Init before use.
func New(cfg Config) *Manager {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Manager{clock: clk, callback: cfg.Callback}
}

// Init resets the manager to an empty, valid-for-use state.
func (m *Manager) Init() obd2.Result {
	m.info = Info{}
	m.initialized = true
	return obd2.ResultOK
}

func collectPrintable(data []byte, start int, maxLen int) string {
	out := make([]byte, 0, maxLen)
	for i := start; i < len(data) && len(out) < maxLen; i++ {
		if isPrintable(data[i]) {
			out = append(out, data[i])
		}
	}
	return string(out)
}

// ProcessResponse decodes one Mode 09 response for infoType. Grounded on
// VehicleInfoManager_ProcessResponse: each VIN response replaces the stored
// VIN; calibration ID, CVN, and ECU name are accumulated one per response up
// to MaxEcus; the *_COUNT and in-use-performance types are
// acknowledged but not decoded, matching the original's empty default
// cases.
func (m *Manager) ProcessResponse(infoType InfoType, data []byte) obd2.Result {
	if !m.initialized {
		return obd2.ResultNotReady
	}

	m.info.TimestampMs = m.clock()

	switch infoType {
	case InfoVin:
		start := 0
		if len(data) > 0 && data[0] < 0x20 {
			start = 1
		}
		vin := collectPrintable(data, start, VinLength)
		m.info.Vin = vin
		if len(vin) == VinLength {
			m.info.VinValid = true
		}

	case InfoCalID:
		if m.info.CalibrationIDCount < MaxEcus {
			idx := m.info.CalibrationIDCount
			m.info.CalibrationIDs[idx] = collectPrintable(data, 0, CalibrationIDLength)
			m.info.CalibrationIDCount++
		}

	case InfoCvn:
		if m.info.CvnCount < MaxEcus {
			idx := m.info.CvnCount
			n := len(data)
			if n > CvnLength {
				n = CvnLength
			}
			copy(m.info.Cvns[idx][:n], data[:n])
			m.info.CvnCount++
		}

	case InfoEcuName:
		if m.info.EcuNameCount < MaxEcus {
			idx := m.info.EcuNameCount
			m.info.EcuNames[idx] = collectPrintable(data, 0, EcuNameLength)
			m.info.EcuNameCount++
		}

	default:
	}

	if m.callback != nil {
		m.callback(infoType, m.info)
	}
	return obd2.ResultOK
}

// GetInfo returns the accumulated vehicle information.
func (m *Manager) GetInfo() (Info, obd2.Result) {
	if !m.initialized {
		return Info{}, obd2.ResultNotReady
	}
	return m.info, obd2.ResultOK
}

// GetVin returns the decoded VIN. ResultNoData if no valid 17-character VIN
// has been assembled yet, matching VehicleInfoManager_GetVin.
func (m *Manager) GetVin() (string, obd2.Result) {
	if !m.initialized {
		return "", obd2.ResultNotReady
	}
	if !m.info.VinValid {
		return "", obd2.ResultNoData
	}
	return m.info.Vin, obd2.ResultOK
}

// HasVin reports whether a valid VIN has been assembled.
func (m *Manager) HasVin() bool {
	return m.initialized && m.info.VinValid
}

// Clear resets the accumulated VIN/calibration/CVN/ECU-name records without
// requiring re-Init.
func (m *Manager) Clear() obd2.Result {
	if !m.initialized {
		return obd2.ResultNotReady
	}
	m.info.Vin = ""
	m.info.VinValid = false
	m.info.CalibrationIDCount = 0
	m.info.CvnCount = 0
	m.info.EcuNameCount = 0
	return obd2.ResultOK
}
