package obd2

// Value is a decoded PID reading: the raw integer as the ECU sent it, its
// engineering-unit interpretation, and the capture metadata. The decoder
// always leaves Timestamp at zero; the caller (pidmgr) stamps it from the
// injected clock.
type Value struct {
	Raw       int32
	Eng       float32
	Unit      Unit
	Timestamp uint32
	Valid     bool
}

// Result is the shared outcome taxonomy used across every component's
// operations (spec §7): OK plus a handful of failure categories, never a
// panic.
type Result int

const (
	ResultOK Result = iota
	ResultInvalidParam
	ResultNotReady
	ResultBufferFull
	ResultBusy
	ResultNoData
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultInvalidParam:
		return "INVALID_PARAM"
	case ResultNotReady:
		return "NOT_READY"
	case ResultBufferFull:
		return "BUFFER_FULL"
	case ResultBusy:
		return "BUSY"
	case ResultNoData:
		return "NO_DATA"
	case ResultError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Decode converts raw OBD-II response bytes for pid into an engineering
// Value. It is pure: no state, safe to call concurrently, reentrant.
//
// An unknown PID decodes bytes[0] as a best-effort unitless raw value rather
// than failing outright, matching the conservative behavior of a client
// that would rather surface something than drop an unrecognized reading.
func Decode(pid byte, data []byte) (Value, Result) {
	def, known := FindDefinition(pid)
	if !known {
		if len(data) < 1 {
			return Value{}, ResultOK
		}
		return Value{
			Raw:   int32(data[0]),
			Eng:   float32(data[0]),
			Unit:  UnitNone,
			Valid: true,
		}, ResultOK
	}

	if byte(len(data)) < def.DataBytes {
		return Value{}, ResultError
	}

	raw := decodeRaw(def.DataType, data)

	return Value{
		Raw:   raw,
		Eng:   float32(raw)*def.Scale + def.Offset,
		Unit:  def.Unit,
		Valid: true,
	}, ResultOK
}

func decodeRaw(dt DataType, data []byte) int32 {
	switch dt {
	case DataU8:
		return int32(data[0])
	case DataU16:
		return int32(uint16(data[0])<<8 | uint16(data[1]))
	case DataU32, DataBitfield:
		return int32(uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]))
	case DataI8:
		return int32(int8(data[0]))
	case DataI16:
		return int32(int16(uint16(data[0])<<8 | uint16(data[1])))
	case DataFloat:
		return int32(data[0])
	default:
		return int32(data[0])
	}
}
