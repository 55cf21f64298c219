package sanity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlabs-dev/obd2core/obd2"
)

func TestValidateRangeOutOfBounds(t *testing.T) {
	assert.Equal(t, ResultOutOfRange, ValidateRange(0x05, 300))
	assert.Equal(t, ResultOK, ValidateRange(0x05, 90))
}

func TestValidateRangeUnconfiguredPidAlwaysOk(t *testing.T) {
	assert.Equal(t, ResultOK, ValidateRange(0xEE, 99999))
}

func TestValidatePidFailsRangeBeforeOtherChecks(t *testing.T) {
	c := NewChecker(Config{})
	result := c.ValidatePid(0x05, obd2.Value{Eng: 999, Valid: true})
	assert.Equal(t, ResultOutOfRange, result)
	assert.EqualValues(t, 1, c.TotalFailures())
}

func TestValidatePidInvalidValue(t *testing.T) {
	c := NewChecker(Config{})
	result := c.ValidatePid(0x05, obd2.Value{Valid: false})
	assert.Equal(t, ResultInvalidData, result)
}

func TestValidateStuckTripsAfterThreshold(t *testing.T) {
	c := NewChecker(Config{})
	pid := byte(0x05)

	// A constant reading of 0 avoids tripping the rate-of-change check
	// (whose baseline is 0 until two real samples exist) while still
	// accumulating identical consecutive samples for the stuck check.
	var last Result
	for i := 0; i < StuckThreshold+2; i++ {
		last = c.ValidatePid(pid, obd2.Value{Eng: 0, Valid: true})
	}

	assert.Equal(t, ResultSensorStuck, last)
}

func TestValidateStuckResetsOnChange(t *testing.T) {
	c := NewChecker(Config{})
	pid := byte(0x05)

	for i := 0; i < StuckThreshold-1; i++ {
		result := c.ValidatePid(pid, obd2.Value{Eng: 0, Valid: true})
		require.Equal(t, ResultOK, result)
	}

	result := c.ValidatePid(pid, obd2.Value{Eng: 0.5, Valid: true})
	assert.Equal(t, ResultOK, result)
}

func TestValidateRateOfChangeExceeded(t *testing.T) {
	c := NewChecker(Config{})
	pid := byte(0x0D) // SPEED, max_rate 30

	result := c.ValidatePid(pid, obd2.Value{Eng: 10, Valid: true})
	require.Equal(t, ResultOK, result)

	result = c.ValidatePid(pid, obd2.Value{Eng: 200, Valid: true})
	assert.Equal(t, ResultRateOfChange, result)
}

func TestClearHistoryResetsStuckCount(t *testing.T) {
	c := NewChecker(Config{})
	pid := byte(0x05)

	for i := 0; i < StuckThreshold-1; i++ {
		c.ValidatePid(pid, obd2.Value{Eng: 0, Valid: true})
	}

	c.ClearHistory(pid)

	result := c.ValidatePid(pid, obd2.Value{Eng: 0, Valid: true})
	assert.Equal(t, ResultOK, result)
}

func TestCompatOffByOneTogglesPreviousSample(t *testing.T) {
	withDefect := NewChecker(Config{})
	fixed := NewChecker(Config{StrictPreviousValue: true})

	pid := byte(0x0D) // SPEED, max_rate_of_change 30

	// v1=10 has no history yet so neither checker runs the comparison.
	// v2=12 is checked against the zero-history baseline (both variants
	// agree, history_count is still below 2) and gets appended.
	// v3=41 is where the two variants' "previous sample" pick diverges:
	// the fixed lookup compares against v2 (12, diff 29, under 30), the
	// off-by-one-compatible lookup compares against v1 (10, diff 31,
	// over 30).
	samples := []float32{10, 12}
	for _, v := range samples {
		require.Equal(t, ResultOK, withDefect.ValidatePid(pid, obd2.Value{Eng: v, Valid: true}))
		require.Equal(t, ResultOK, fixed.ValidatePid(pid, obd2.Value{Eng: v, Valid: true}))
	}

	defectResult := withDefect.ValidatePid(pid, obd2.Value{Eng: 41, Valid: true})
	fixedResult := fixed.ValidatePid(pid, obd2.Value{Eng: 41, Valid: true})

	assert.Equal(t, ResultOK, fixedResult, "fixed checker compares 41 against the true previous sample 12, diff 29")
	assert.Equal(t, ResultRateOfChange, defectResult, "compat checker compares 41 against the stale sample 10, diff 31")
}
