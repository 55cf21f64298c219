// Package obd2 holds the wire-level pieces that are bit-exact against the
// published OBD-II protocol: the frame type produced by the (external) frame
// parser, the static PID definition table, the raw-to-engineering decoder,
// and the ELM327 command-string builders used to request data.
package obd2

// ModeLiveData is the OBD-II service ID for current data ("Mode 01").
const ModeLiveData = 0x01

// ModeFreezeFrame is the OBD-II service ID for freeze-frame data ("Mode 02").
const ModeFreezeFrame = 0x02

// ModeStoredDTCs requests stored diagnostic trouble codes ("Mode 03").
const ModeStoredDTCs = 0x03

// ModeClearDTCs clears stored diagnostic trouble codes ("Mode 04").
const ModeClearDTCs = 0x04

// ModePendingDTCs requests pending diagnostic trouble codes ("Mode 07").
const ModePendingDTCs = 0x07

// ModeVehicleInfo requests vehicle information ("Mode 09").
const ModeVehicleInfo = 0x09

// MaxDataBytes bounds a frame's payload; OBD-II responses never exceed this
// under the single-frame ELM327 framing this module targets.
const MaxDataBytes = 7

// Frame is the parsed (mode, pid, data, valid) record the upstream OBD-II
// frame parser hands to the PID manager. It owns no heap-allocated state:
// Data is a fixed-size array and Length says how much of it is populated, so
// a Frame can be passed by value without allocating.
type Frame struct {
	Mode   byte
	Pid    byte
	Data   [MaxDataBytes]byte
	Length byte
	Valid  bool
}

// DataSlice returns the populated portion of Data. The returned slice
// aliases Frame's backing array; callers must not retain it past the
// Frame's lifetime if the Frame is reused.
func (f *Frame) DataSlice() []byte {
	return f.Data[:f.Length]
}
