// Package sanity validates decoded PID values against per-PID range,
// stuck-sensor, and rate-of-change rules, short-circuiting on the first
// failing check. It is a direct translation of the original
// SanityCheck module.
package sanity

import (
	"github.com/VividCortex/ewma"

	"github.com/mlabs-dev/obd2core/internal/clock"
	"github.com/mlabs-dev/obd2core/internal/errsink"
	"github.com/mlabs-dev/obd2core/obd2"
)

// HistorySize is the number of recent values retained per tracked PID.
const HistorySize = 8

// StuckThreshold is the number of consecutive near-identical readings that
// trips SANITY_RESULT_SENSOR_STUCK.
const StuckThreshold = 5

// MaxTracked is the fixed capacity of the per-PID history table.
const MaxTracked = 64

// Result is the outcome of validating one PID reading.
type Result int

const (
	ResultOK Result = iota
	ResultOutOfRange
	ResultSensorStuck
	ResultInvalidData
	ResultRateOfChange
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultOutOfRange:
		return "Out of Range"
	case ResultSensorStuck:
		return "Sensor Stuck"
	case ResultInvalidData:
		return "Invalid Data"
	case ResultRateOfChange:
		return "Rate of Change Exceeded"
	default:
		return "Unknown"
	}
}

// Rule is a PID's static validation configuration.
type Rule struct {
	Pid             byte
	MinValue        float32
	MaxValue        float32
	MaxRateOfChange float32
	CheckStuck      bool
	CheckRange      bool
	CheckRate       bool
}

// rules is the compile-time table of validated PIDs, transcribed verbatim
// from the original sanity_rules table. A PID absent from this table is
// never flagged by any check.
var rules = []Rule{
	{0x04, 0.0, 100.0, 50.0, true, true, true},
	{0x05, -40.0, 215.0, 10.0, true, true, true},
	{0x06, -100.0, 99.2, 20.0, false, true, false},
	{0x07, -100.0, 99.2, 10.0, false, true, false},
	{0x0B, 0.0, 255.0, 50.0, true, true, true},
	{0x0C, 0.0, 16383.75, 2000.0, true, true, true},
	{0x0D, 0.0, 255.0, 30.0, true, true, true},
	{0x0E, -64.0, 63.5, 20.0, false, true, true},
	{0x0F, -40.0, 215.0, 5.0, true, true, true},
	{0x10, 0.0, 655.35, 100.0, true, true, true},
	{0x11, 0.0, 100.0, 50.0, true, true, true},
	{0x2F, 0.0, 100.0, 5.0, true, true, true},
	{0x33, 70.0, 110.0, 2.0, true, true, true},
	{0x42, 0.0, 65.535, 5.0, true, true, true},
	{0x46, -40.0, 215.0, 2.0, true, true, true},
	{0x5C, -40.0, 210.0, 5.0, true, true, true},
	{0x5E, 0.0, 3276.75, 50.0, true, true, true},
}

// FindRule returns pid's validation rule, if one is configured.
func FindRule(pid byte) (Rule, bool) {
	for _, r := range rules {
		if r.Pid == pid {
			return r, true
		}
	}
	return Rule{}, false
}

// IsConfigured reports whether pid has a sanity rule at all.
func IsConfigured(pid byte) bool {
	_, ok := FindRule(pid)
	return ok
}

type history struct {
	pid        byte
	values     [HistorySize]float32
	idx        uint8
	count      uint8
	stuckCount uint8
	lastCheck  uint32
	avg        ewma.MovingAverage
}

func newHistory(pid byte) *history {
	return &history{pid: pid, avg: ewma.NewMovingAverage()}
}

func (h *history) add(value float32) {
	h.values[h.idx] = value
	h.idx = (h.idx + 1) % HistorySize
	if h.count < HistorySize {
		h.count++
	}
	h.avg.Add(float64(value))
}

// previous returns the history's "previous" sample using the same indexing
// as the original get_previous_value: it steps back one slot past the most
// recently written value, not to it. CompatOffByOne controls whether that
// extra step is applied; Checker defaults to true to match historical field
// behavior byte-for-byte.
func (h *history) previous(compatOffByOne bool) float32 {
	if h.count < 2 {
		return 0
	}

	var prevIdx uint8
	if h.idx == 0 {
		prevIdx = HistorySize - 1
	} else {
		prevIdx = h.idx - 1
	}

	if compatOffByOne {
		if prevIdx == 0 {
			prevIdx = HistorySize - 1
		} else {
			prevIdx--
		}
	}

	return h.values[prevIdx]
}

// FailCallback is invoked synchronously whenever ValidatePid's combined
// check fails.
type FailCallback func(pid byte, result Result, value float32)

// Config configures a Checker.
type Config struct {
	Clock clock.Source
	Sink  errsink.Sink
	OnFail FailCallback

	// StrictPreviousValue compares the stuck/rate-of-change checks against
	// the true previous sample. Left false (the zero value), the Checker
	// instead preserves the historical field behavior, which steps back
	// one slot too many and compares against the sample before that.
	StrictPreviousValue bool
}

// Checker validates decoded PID values and tracks a short rolling history
// per PID for the stuck-sensor and rate-of-change checks.
type Checker struct {
	history        map[byte]*history
	clock          clock.Source
	sink           errsink.Sink
	onFail         FailCallback
	compatOffByOne bool
	totalChecks    uint32
	totalFailures  uint32
}

// NewChecker constructs a ready-to-use Checker. The historical off-by-one
// previous-sample lookup is preserved unless cfg.StrictPreviousValue is set.
func NewChecker(cfg Config) *Checker {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Sink == nil {
		cfg.Sink = errsink.Nop
	}
	return &Checker{
		history:        make(map[byte]*history, MaxTracked),
		clock:          cfg.Clock,
		sink:           cfg.Sink,
		onFail:         cfg.OnFail,
		compatOffByOne: !cfg.StrictPreviousValue,
	}
}

func (c *Checker) findOrCreate(pid byte) *history {
	if h, ok := c.history[pid]; ok {
		return h
	}
	if len(c.history) >= MaxTracked {
		return nil
	}
	h := newHistory(pid)
	c.history[pid] = h
	return h
}

// ValidateRange checks value against pid's configured min/max.
func ValidateRange(pid byte, value float32) Result {
	rule, ok := FindRule(pid)
	if !ok || !rule.CheckRange {
		return ResultOK
	}
	if value < rule.MinValue || value > rule.MaxValue {
		return ResultOutOfRange
	}
	return ResultOK
}

// ValidateStuck checks value against pid's recent history for a run of
// near-identical readings.
func (c *Checker) ValidateStuck(pid byte, value float32) Result {
	rule, ok := FindRule(pid)
	if !ok || !rule.CheckStuck {
		return ResultOK
	}

	h := c.findOrCreate(pid)
	if h == nil {
		return ResultOK
	}

	if h.count > 0 {
		diff := value - h.previous(c.compatOffByOne)
		if diff < 0 {
			diff = -diff
		}
		if diff < 0.001 {
			h.stuckCount++
			if h.stuckCount >= StuckThreshold {
				return ResultSensorStuck
			}
		} else {
			h.stuckCount = 0
		}
	}

	return ResultOK
}

// ValidateRateOfChange checks value against pid's maximum allowed delta
// from its previous reading.
func (c *Checker) ValidateRateOfChange(pid byte, value float32) Result {
	rule, ok := FindRule(pid)
	if !ok || !rule.CheckRate {
		return ResultOK
	}

	h := c.findOrCreate(pid)
	if h == nil {
		return ResultOK
	}

	if h.count > 0 {
		diff := value - h.previous(c.compatOffByOne)
		if diff < 0 {
			diff = -diff
		}
		if diff > rule.MaxRateOfChange {
			return ResultRateOfChange
		}
	}

	return ResultOK
}

// ValidatePid runs the full range -> stuck -> rate-of-change pipeline
// against a decoded PID value, short-circuiting on the first failing check.
// Range and stuck failures are reported to the error sink; a rate-of-change
// failure is not. A successful validation appends value to the PID's
// history.
func (c *Checker) ValidatePid(pid byte, value obd2.Value) Result {
	if !value.Valid {
		return ResultInvalidData
	}

	c.totalChecks++

	if result := ValidateRange(pid, value.Eng); result != ResultOK {
		c.fail(pid, result, value.Eng)
		c.sink.Report(errsink.CodeSanityOutOfRange, errsink.SeverityWarning)
		return result
	}

	if result := c.ValidateStuck(pid, value.Eng); result != ResultOK {
		c.fail(pid, result, value.Eng)
		c.sink.Report(errsink.CodeSanitySensorStuck, errsink.SeverityWarning)
		return result
	}

	if result := c.ValidateRateOfChange(pid, value.Eng); result != ResultOK {
		c.fail(pid, result, value.Eng)
		return result
	}

	if h := c.findOrCreate(pid); h != nil {
		h.add(value.Eng)
		h.lastCheck = c.clock()
	}

	return ResultOK
}

func (c *Checker) fail(pid byte, result Result, value float32) {
	c.totalFailures++
	if c.onFail != nil {
		c.onFail(pid, result, value)
	}
}

// ClearHistory resets pid's rolling history without removing its tracking
// slot.
func (c *Checker) ClearHistory(pid byte) {
	if h, ok := c.history[pid]; ok {
		h.idx = 0
		h.count = 0
		h.stuckCount = 0
	}
}

// ClearAllHistory resets every tracked PID's rolling history.
func (c *Checker) ClearAllHistory() {
	for _, h := range c.history {
		h.idx = 0
		h.count = 0
		h.stuckCount = 0
	}
}

// TotalChecks returns the number of ValidatePid calls made so far with a
// valid value; calls rejected as ResultInvalidData are not counted.
func (c *Checker) TotalChecks() uint32 {
	return c.totalChecks
}

// TotalFailures returns the number of ValidatePid calls that failed a range,
// stuck or rate-of-change check; ResultInvalidData is not counted.
func (c *Checker) TotalFailures() uint32 {
	return c.totalFailures
}

// Smoothed returns the exponentially weighted moving average of pid's
// recent values, for dashboards that want a de-noised trend line rather
// than the raw latest reading. Returns 0 for an untracked PID.
func (c *Checker) Smoothed(pid byte) float64 {
	h, ok := c.history[pid]
	if !ok {
		return 0
	}
	return h.avg.Value()
}
