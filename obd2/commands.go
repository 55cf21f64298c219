package obd2

import "fmt"

// ELM327 command strings are sent without spaces, with the expected number
// of response lines appended to speed up communication (see ELM327 data
// sheet p.33 — this is also how real Go OBD clients like elmobd build their
// request strings).

// RequestPid builds the ELM327 request string for a mode/pid pair that
// expects dataBytes bytes of response payload.
func RequestPid(mode byte, pid byte, dataBytes byte) string {
	lines := dataBytes / 4
	if dataBytes%4 != 0 || lines == 0 {
		lines++
	}
	return fmt.Sprintf("%02X%02X%01X", mode, pid, lines)
}

// RequestLiveData builds a Mode 01 (live data) request for pid, sized from
// the PID's static definition when known, defaulting to a single response
// line otherwise.
func RequestLiveData(pid byte) string {
	if def, ok := FindDefinition(pid); ok {
		return RequestPid(ModeLiveData, pid, def.DataBytes)
	}
	return RequestPid(ModeLiveData, pid, 1)
}

// RequestSupportedGroup builds the Mode 01 request for one of the seven
// "PIDs supported" bitmap groups.
func RequestSupportedGroup(startPid byte) string {
	return RequestPid(ModeLiveData, startPid, 4)
}

// RequestStoredDTCs builds the Mode 03 (stored trouble codes) request.
func RequestStoredDTCs() string {
	return fmt.Sprintf("%02X", ModeStoredDTCs)
}

// RequestPendingDTCs builds the Mode 07 (pending trouble codes) request.
func RequestPendingDTCs() string {
	return fmt.Sprintf("%02X", ModePendingDTCs)
}

// RequestClearDTCs builds the Mode 04 (clear trouble codes) request. Mode 04
// takes no PID or data qualifier on the wire — it is a bare service request,
// the OBD-II analogue of the reset-process command in other protocol
// stacks.
func RequestClearDTCs() string {
	return fmt.Sprintf("%02X", ModeClearDTCs)
}

// RequestVehicleInfo builds a Mode 09 (vehicle information) request for the
// given info type PID (e.g. 0x02 for VIN).
func RequestVehicleInfo(infoType byte) string {
	return RequestPid(ModeVehicleInfo, infoType, 1)
}
