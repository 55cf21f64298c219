package dtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodePowertrainCode(t *testing.T) {
	// P0301: system=P (00), digit1=0, digit2=3, digit3=01
	c := Decode(0x03, 0x01)
	assert.Equal(t, "P0301", c.String())
}

func TestDecodeChassisCode(t *testing.T) {
	// high byte top bits 01 = Chassis, next 2 bits = digit1
	c := Decode(0x40, 0x20)
	assert.Equal(t, "C0020", c.String())
}

func TestDecodeBodyCode(t *testing.T) {
	c := Decode(0x81, 0x23)
	assert.Equal(t, "B0123", c.String())
}

func TestDecodeNetworkCode(t *testing.T) {
	c := Decode(0xC2, 0x55)
	assert.Equal(t, "U0255", c.String())
}

func TestIsNoneForZeroPadding(t *testing.T) {
	c := Decode(0x00, 0x00)
	assert.True(t, c.IsNone())
}

func TestDecodeResponseSkipsZeroPadding(t *testing.T) {
	data := []byte{0x03, 0x01, 0x00, 0x00, 0x40, 0x20}
	codes := DecodeResponse(data)

	assert.Len(t, codes, 2)
	assert.Equal(t, "P0301", codes[0].String())
	assert.Equal(t, "C0020", codes[1].String())
}

func TestDecodeResponseIgnoresTrailingOddByte(t *testing.T) {
	data := []byte{0x03, 0x01, 0x40}
	codes := DecodeResponse(data)
	assert.Len(t, codes, 1)
}

func TestDecodeResponseEmptyInput(t *testing.T) {
	codes := DecodeResponse(nil)
	assert.Empty(t, codes)
}

func TestClearCommand(t *testing.T) {
	assert.Equal(t, "04", ClearCommand())
}
