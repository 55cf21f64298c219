// Package pidmgr tracks which PIDs a connected ECU supports, their poll
// configuration, and their most recently decoded values. It is a direct
// translation of the original PidManager module: a 256-bit supported
// bitmap plus a fixed-capacity table of per-PID polling state.
package pidmgr

import (
	"sort"

	"github.com/samber/lo"

	"github.com/mlabs-dev/obd2core/internal/clock"
	"github.com/mlabs-dev/obd2core/internal/errsink"
	"github.com/mlabs-dev/obd2core/obd2"
)

// MaxEntries is the fixed capacity of the tracked-PID table. A real vehicle
// never advertises support for more than a few dozen PIDs, so this mirrors
// the embedded target's static allocation rather than a realistic limit.
const MaxEntries = 64

// DefaultRateMs is the poll interval assigned to a newly discovered
// supported PID before any definition-specific rate is known.
const DefaultRateMs = 1000

// ValueCallback is invoked synchronously from ProcessFrame whenever a frame
// decodes successfully.
type ValueCallback func(pid byte, value obd2.Value)

// Entry is one tracked PID's live polling state.
type Entry struct {
	Pid         byte
	Supported   bool
	Enabled     bool
	RateMs      uint16
	LastReadMs  uint32
	Value       obd2.Value
}

// Manager is the PID registry and live-value cache for one active OBD-II
// session. The zero value is not ready to use; construct with New.
type Manager struct {
	supported [32]byte
	entries   []Entry
	clock     clock.Source
	sink      errsink.Sink
	onValue   ValueCallback
}

// Config configures a Manager.
type Config struct {
	Clock    clock.Source
	Sink     errsink.Sink
	OnValue  ValueCallback
}

// New constructs a ready-to-use Manager. A nil Clock defaults to
// clock.System(); a nil Sink defaults to errsink.Nop.
func New(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Sink == nil {
		cfg.Sink = errsink.Nop
	}
	return &Manager{
		entries: make([]Entry, 0, MaxEntries),
		clock:   cfg.Clock,
		sink:    cfg.Sink,
		onValue: cfg.OnValue,
	}
}

func (m *Manager) findEntry(pid byte) *Entry {
	for i := range m.entries {
		if m.entries[i].Pid == pid {
			return &m.entries[i]
		}
	}
	return nil
}

func (m *Manager) findOrCreateEntry(pid byte) *Entry {
	if e := m.findEntry(pid); e != nil {
		return e
	}
	if len(m.entries) >= MaxEntries {
		return nil
	}
	m.entries = append(m.entries, Entry{
		Pid:    pid,
		RateMs: DefaultRateMs,
	})
	return &m.entries[len(m.entries)-1]
}

// SetSupported records a "PIDs supported [N+1..N+32]" bitmap response.
// Every PID the bitmap reports as supported is registered (or updated) in
// the entry table at its definition's default poll rate.
func (m *Manager) SetSupported(data [4]byte, startPid byte) obd2.Result {
	for byteIdx := uint8(0); byteIdx < 4; byteIdx++ {
		for bitIdx := uint8(0); bitIdx < 8; bitIdx++ {
			pid, supported := obd2.SupportBit(data, startPid, byteIdx, bitIdx)
			bytePos, bitPos := obd2.BitmapPosition(pid)
			if bytePos >= 32 {
				continue
			}
			if supported {
				m.supported[bytePos] |= 1 << bitPos
			} else {
				m.supported[bytePos] &^= 1 << bitPos
			}
			if !supported {
				continue
			}
			entry := m.findOrCreateEntry(pid)
			if entry == nil {
				m.sink.Report(errsink.CodePidTableFull, errsink.SeverityWarning)
				continue
			}
			entry.Supported = true
			if def, ok := obd2.FindDefinition(pid); ok {
				entry.RateMs = def.DefaultRateMs
			}
		}
	}
	return obd2.ResultOK
}

// IsSupported reports whether the connected ECU has advertised support for
// pid.
func (m *Manager) IsSupported(pid byte) bool {
	bytePos, bitPos := obd2.BitmapPosition(pid)
	if bytePos >= 32 {
		return false
	}
	return (m.supported[bytePos]>>bitPos)&0x01 != 0
}

// EnablePid starts (or resumes) periodic polling of pid at rateMs,
// registering the PID if it is not already tracked.
func (m *Manager) EnablePid(pid byte, rateMs uint16) obd2.Result {
	entry := m.findOrCreateEntry(pid)
	if entry == nil {
		m.sink.Report(errsink.CodePidTableFull, errsink.SeverityWarning)
		return obd2.ResultBufferFull
	}
	entry.Enabled = true
	entry.RateMs = rateMs
	return obd2.ResultOK
}

// DisablePid stops polling pid. Disabling an untracked PID is a no-op, not
// an error.
func (m *Manager) DisablePid(pid byte) obd2.Result {
	if entry := m.findEntry(pid); entry != nil {
		entry.Enabled = false
	}
	return obd2.ResultOK
}

// SetRate changes the poll interval of an already-tracked PID.
func (m *Manager) SetRate(pid byte, rateMs uint16) obd2.Result {
	entry := m.findEntry(pid)
	if entry == nil {
		return obd2.ResultError
	}
	entry.RateMs = rateMs
	return obd2.ResultOK
}

// ProcessFrame decodes a Mode 01 response frame and updates the tracked
// entry's cached value, invoking the value callback on success. Frames for
// any other mode are accepted without effect; pidmgr only tracks live data.
func (m *Manager) ProcessFrame(frame obd2.Frame) obd2.Result {
	if !frame.Valid {
		return obd2.ResultInvalidParam
	}
	if frame.Mode != obd2.ModeLiveData {
		return obd2.ResultOK
	}

	entry := m.findOrCreateEntry(frame.Pid)
	if entry == nil {
		m.sink.Report(errsink.CodePidTableFull, errsink.SeverityWarning)
		return obd2.ResultBufferFull
	}

	value, result := obd2.Decode(frame.Pid, frame.DataSlice())
	if result != obd2.ResultOK {
		return result
	}

	value.Timestamp = m.clock()
	entry.LastReadMs = value.Timestamp
	entry.Value = value

	if m.onValue != nil {
		m.onValue(frame.Pid, value)
	}

	return obd2.ResultOK
}

// GetValue returns the most recently decoded value for pid.
func (m *Manager) GetValue(pid byte) (obd2.Value, obd2.Result) {
	entry := m.findEntry(pid)
	if entry == nil {
		return obd2.Value{}, obd2.ResultNoData
	}
	return entry.Value, obd2.ResultOK
}

// NextPidToRead selects the most overdue enabled, supported PID to poll
// next, preferring higher priority (lower Priority value) and breaking
// ties by how overdue the PID is. An unsupported PID is never selected,
// even if enabled.
func (m *Manager) NextPidToRead() (pid byte, result obd2.Result) {
	now := m.clock()

	// Supported==false must never be selected even if Enabled==true: a PID
	// can be enabled in advance of a supported-bitmap refresh, and polling
	// an unsupported PID wastes a request the ECU will NAK or ignore.
	candidates := lo.Filter(m.entries, func(e Entry, _ int) bool {
		return e.Supported && e.Enabled && e.RateMs != 0
	})

	bestPid := byte(0xFF)
	bestPriority := obd2.Priority(0xFF)
	var bestOverdue uint32

	for _, entry := range candidates {
		elapsed := clock.Elapsed(now, entry.LastReadMs)
		if elapsed < uint32(entry.RateMs) {
			continue
		}

		priority := obd2.PriorityLow
		if def, ok := obd2.FindDefinition(entry.Pid); ok {
			priority = def.Priority
		}

		overdue := elapsed - uint32(entry.RateMs)

		if priority < bestPriority || (priority == bestPriority && overdue > bestOverdue) {
			bestPid = entry.Pid
			bestPriority = priority
			bestOverdue = overdue
		}
	}

	if bestPid == 0xFF {
		return 0, obd2.ResultNoData
	}
	return bestPid, obd2.ResultOK
}

// SupportedCount returns how many PIDs the connected ECU has advertised
// support for.
func (m *Manager) SupportedCount() int {
	return lo.CountBy(m.entries, func(e Entry) bool { return e.Supported })
}

// EnabledCount returns how many PIDs are currently enabled for polling.
func (m *Manager) EnabledCount() int {
	return lo.CountBy(m.entries, func(e Entry) bool { return e.Enabled })
}

// SupportedPids returns the sorted list of PIDs the connected ECU has
// advertised support for.
func (m *Manager) SupportedPids() []byte {
	pids := lo.FilterMap(m.entries, func(e Entry, _ int) (byte, bool) {
		return e.Pid, e.Supported
	})
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}
