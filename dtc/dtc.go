// Package dtc decodes OBD-II diagnostic trouble codes from Mode 03 (stored)
// and Mode 07 (pending) responses, and builds the Mode 04 clear command.
//
// Not present as a standalone original_source/ file (see SPEC_FULL.md §5);
// the two-byte-per-code encoding is the standard OBD-II wire format that
// every READING_DTCS/CLEARING_DTCS state machine path ultimately needs a
// decoder for.
package dtc

import "fmt"

// System is the DTC's first-letter category.
type System byte

const (
	SystemPowertrain System = iota
	SystemChassis
	SystemBody
	SystemNetwork
)

func (s System) letter() byte {
	switch s {
	case SystemChassis:
		return 'C'
	case SystemBody:
		return 'B'
	case SystemNetwork:
		return 'U'
	default:
		return 'P'
	}
}

// Code is a single decoded diagnostic trouble code.
type Code struct {
	System System
	Digit1 byte // 0-3, encoded in bits 5-4 of the high byte
	Digit2 byte // 0-F
	Digit3 byte // 00-FF, the whole low byte (rendered as two hex digits)
}

// String renders the standard five-character form, e.g. "P0301".
func (c Code) String() string {
	return fmt.Sprintf("%c%d%X%02X", c.System.letter(), c.Digit1, c.Digit2, c.Digit3)
}

// IsNone reports whether the two raw bytes this Code was decoded from were
// both zero, which the standard uses as a padding/no-code marker rather
// than a real code.
func (c Code) IsNone() bool {
	return c.System == SystemPowertrain && c.Digit1 == 0 && c.Digit2 == 0 && c.Digit3 == 0
}

// Decode converts two raw response bytes into a Code. Grounded on the
// standard OBD-II DTC encoding: the top two bits of the first byte select
// the system letter, the next two bits are the first numeral (0-3), the low
// nibble of the first byte is the second numeral, and the second byte's two
// nibbles are the third and fourth numerals.
func Decode(hi, lo byte) Code {
	return Code{
		System: System((hi >> 6) & 0x03),
		Digit1: (hi >> 4) & 0x03,
		Digit2: hi & 0x0F,
		Digit3: lo, // both nibbles rendered together as one two-digit hex pair
	}
}

// DecodeResponse decodes a Mode 03/07 payload into a list of codes,
// skipping any all-zero pair the responder used as padding. Malformed
// trailing single bytes are ignored.
func DecodeResponse(data []byte) []Code {
	codes := make([]Code, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		c := Decode(data[i], data[i+1])
		if !c.IsNone() {
			codes = append(codes, c)
		}
	}
	return codes
}

// ClearCommand returns the Mode 04 request. Clearing carries no payload
// beyond the mode byte itself.
func ClearCommand() string {
	return "04"
}
