package obd2

import "sort"

// Definition is a PID's static, immutable metadata: how to decode it, its
// advertised range, and its default poll priority/rate.
type Definition struct {
	Pid             byte
	Name            string
	ShortName       string
	Unit            Unit
	DataType        DataType
	DataBytes       byte
	MinValue        float32
	MaxValue        float32
	Scale           float32
	Offset          float32
	Priority        Priority
	DefaultRateMs   uint16
}

// definitions is the compile-time, sorted-by-id PID table. Sorted order is
// part of the contract: FindDefinition binary-searches it.
var definitions = []Definition{
	{0x00, "PIDs supported [01-20]", "PIDS_A", UnitNone, DataBitfield, 4, 0, 0, 1, 0, PriorityHigh, 0},
	{0x01, "Monitor status", "MIL_STATUS", UnitNone, DataBitfield, 4, 0, 0, 1, 0, PriorityHigh, 1000},
	{0x03, "Fuel system status", "FUEL_SYS", UnitNone, DataBitfield, 2, 0, 0, 1, 0, PriorityLow, 5000},
	{0x04, "Calculated engine load", "ENGINE_LOAD", UnitPercent, DataU8, 1, 0, 100, 0.392157, 0, PriorityHigh, 250},
	{0x05, "Engine coolant temp", "COOLANT_TEMP", UnitDegreesC, DataU8, 1, -40, 215, 1, -40, PriorityMedium, 1000},
	{0x06, "Short term fuel trim Bank 1", "STFT_B1", UnitPercent, DataU8, 1, -100, 99.2, 0.78125, -100, PriorityMedium, 500},
	{0x07, "Long term fuel trim Bank 1", "LTFT_B1", UnitPercent, DataU8, 1, -100, 99.2, 0.78125, -100, PriorityLow, 2000},
	{0x08, "Short term fuel trim Bank 2", "STFT_B2", UnitPercent, DataU8, 1, -100, 99.2, 0.78125, -100, PriorityMedium, 500},
	{0x09, "Long term fuel trim Bank 2", "LTFT_B2", UnitPercent, DataU8, 1, -100, 99.2, 0.78125, -100, PriorityLow, 2000},
	{0x0A, "Fuel pressure", "FUEL_PRESS", UnitKPa, DataU8, 1, 0, 765, 3, 0, PriorityMedium, 1000},
	{0x0B, "Intake manifold pressure", "MAP", UnitKPa, DataU8, 1, 0, 255, 1, 0, PriorityHigh, 250},
	{0x0C, "Engine RPM", "RPM", UnitRPM, DataU16, 2, 0, 16383.75, 0.25, 0, PriorityHigh, 100},
	{0x0D, "Vehicle speed", "SPEED", UnitKmh, DataU8, 1, 0, 255, 1, 0, PriorityHigh, 250},
	{0x0E, "Timing advance", "TIMING_ADV", UnitDegrees, DataU8, 1, -64, 63.5, 0.5, -64, PriorityMedium, 500},
	{0x0F, "Intake air temperature", "IAT", UnitDegreesC, DataU8, 1, -40, 215, 1, -40, PriorityMedium, 1000},
	{0x10, "MAF air flow rate", "MAF", UnitGramsSec, DataU16, 2, 0, 655.35, 0.01, 0, PriorityHigh, 250},
	{0x11, "Throttle position", "TPS", UnitPercent, DataU8, 1, 0, 100, 0.392157, 0, PriorityHigh, 100},
	{0x1C, "OBD standards", "OBD_STD", UnitNone, DataU8, 1, 0, 255, 1, 0, PriorityLow, 0},
	{0x1F, "Run time since engine start", "RUN_TIME", UnitSeconds, DataU16, 2, 0, 65535, 1, 0, PriorityLow, 5000},
	{0x20, "PIDs supported [21-40]", "PIDS_B", UnitNone, DataBitfield, 4, 0, 0, 1, 0, PriorityHigh, 0},
	{0x21, "Distance with MIL on", "MIL_DIST", UnitKm, DataU16, 2, 0, 65535, 1, 0, PriorityLow, 5000},
	{0x2F, "Fuel tank level", "FUEL_LEVEL", UnitPercent, DataU8, 1, 0, 100, 0.392157, 0, PriorityLow, 5000},
	{0x31, "Distance since codes cleared", "CLR_DIST", UnitKm, DataU16, 2, 0, 65535, 1, 0, PriorityLow, 5000},
	{0x33, "Barometric pressure", "BARO", UnitKPa, DataU8, 1, 0, 255, 1, 0, PriorityLow, 10000},
	{0x40, "PIDs supported [41-60]", "PIDS_C", UnitNone, DataBitfield, 4, 0, 0, 1, 0, PriorityHigh, 0},
	{0x42, "Control module voltage", "CTRL_VOLT", UnitVolts, DataU16, 2, 0, 65.535, 0.001, 0, PriorityLow, 5000},
	{0x43, "Absolute load value", "ABS_LOAD", UnitPercent, DataU16, 2, 0, 25700, 0.392157, 0, PriorityMedium, 500},
	{0x44, "Commanded AFR", "CMD_AFR", UnitRatio, DataU16, 2, 0, 2, 0.0000305, 0, PriorityMedium, 500},
	{0x45, "Relative throttle position", "REL_TPS", UnitPercent, DataU8, 1, 0, 100, 0.392157, 0, PriorityHigh, 100},
	{0x46, "Ambient air temperature", "AMB_TEMP", UnitDegreesC, DataU8, 1, -40, 215, 1, -40, PriorityLow, 10000},
	{0x47, "Absolute throttle position B", "ABS_TPS_B", UnitPercent, DataU8, 1, 0, 100, 0.392157, 0, PriorityMedium, 250},
	{0x49, "Accelerator pedal position D", "ACCEL_D", UnitPercent, DataU8, 1, 0, 100, 0.392157, 0, PriorityHigh, 100},
	{0x4A, "Accelerator pedal position E", "ACCEL_E", UnitPercent, DataU8, 1, 0, 100, 0.392157, 0, PriorityHigh, 100},
	{0x4C, "Commanded throttle actuator", "CMD_THROT", UnitPercent, DataU8, 1, 0, 100, 0.392157, 0, PriorityMedium, 250},
	{0x4D, "Time run with MIL on", "MIL_TIME", UnitMinutes, DataU16, 2, 0, 65535, 1, 0, PriorityLow, 5000},
	{0x4E, "Time since codes cleared", "CLR_TIME", UnitMinutes, DataU16, 2, 0, 65535, 1, 0, PriorityLow, 5000},
	{0x51, "Fuel type", "FUEL_TYPE", UnitNone, DataU8, 1, 0, 255, 1, 0, PriorityLow, 0},
	{0x5C, "Engine oil temperature", "OIL_TEMP", UnitDegreesC, DataU8, 1, -40, 210, 1, -40, PriorityMedium, 2000},
	{0x5E, "Engine fuel rate", "FUEL_RATE", UnitLph, DataU16, 2, 0, 3276.75, 0.05, 0, PriorityMedium, 1000},
	{0x60, "PIDs supported [61-80]", "PIDS_D", UnitNone, DataBitfield, 4, 0, 0, 1, 0, PriorityHigh, 0},
	{0x62, "Actual engine torque %", "ACT_TORQ", UnitPercent, DataU8, 1, -125, 130, 1, -125, PriorityMedium, 500},
	{0x63, "Engine reference torque", "REF_TORQ", UnitNm, DataU16, 2, 0, 65535, 1, 0, PriorityLow, 0},
	{0x80, "PIDs supported [81-A0]", "PIDS_E", UnitNone, DataBitfield, 4, 0, 0, 1, 0, PriorityHigh, 0},
	{0xA0, "PIDs supported [A1-C0]", "PIDS_F", UnitNone, DataBitfield, 4, 0, 0, 1, 0, PriorityHigh, 0},
	{0xC0, "PIDs supported [C1-E0]", "PIDS_G", UnitNone, DataBitfield, 4, 0, 0, 1, 0, PriorityHigh, 0},
}

func init() {
	sort.Slice(definitions, func(i, j int) bool { return definitions[i].Pid < definitions[j].Pid })
}

// FindDefinition looks up a PID's static definition by binary search over
// the sorted table. It returns (def, true) on a hit, or the zero value and
// false for an unknown PID.
func FindDefinition(pid byte) (Definition, bool) {
	i := sort.Search(len(definitions), func(i int) bool { return definitions[i].Pid >= pid })
	if i < len(definitions) && definitions[i].Pid == pid {
		return definitions[i], true
	}
	return Definition{}, false
}

// SupportedGroupPids lists the seven PIDs whose responses are "supported
// [N..N+32]" bitmaps rather than data values.
var SupportedGroupPids = [7]byte{0x00, 0x20, 0x40, 0x60, 0x80, 0xA0, 0xC0}
