package obd2

// Unit is the closed enum of physical units a PID's engineering value can
// carry.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitPercent
	UnitDegreesC
	UnitKPa
	UnitRPM
	UnitKmh
	UnitDegrees
	UnitGramsSec
	UnitSeconds
	UnitKm
	UnitVolts
	UnitMinutes
	UnitRatio
	UnitCount
	UnitPa
	UnitMa
	UnitNm
	UnitLph
	unitMax
)

var unitStrings = [unitMax]string{
	UnitNone:     "",
	UnitPercent:  "%",
	UnitDegreesC: "°C",
	UnitKPa:      "kPa",
	UnitRPM:      "RPM",
	UnitKmh:      "km/h",
	UnitDegrees:  "°",
	UnitGramsSec: "g/s",
	UnitSeconds:  "s",
	UnitKm:       "km",
	UnitVolts:    "V",
	UnitMinutes:  "min",
	UnitRatio:    "",
	UnitCount:    "",
	UnitPa:       "Pa",
	UnitMa:       "mA",
	UnitNm:       "Nm",
	UnitLph:      "L/h",
}

// String returns the unit's conventional abbreviation, or "" for an unknown
// or unitless value.
func (u Unit) String() string {
	if u >= unitMax {
		return ""
	}
	return unitStrings[u]
}

// DataType is the wire encoding of a PID's raw bytes.
type DataType uint8

const (
	DataU8 DataType = iota
	DataU16
	DataU32
	DataI8
	DataI16
	DataFloat
	DataBitfield
)

// Priority is a PID's poll priority tier; pidmgr's NextPidToRead prefers
// lower numbers among due PIDs.
type Priority uint8

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)
