// Package trunk implements the trunking channel manager from spec.md
// §4.I: a talk-group table, a fixed-capacity voice-slot array, a
// grant/release state machine, a history ring, and a background monitor
// that retires idle slots and watches for control-channel silence.
package trunk

import (
	"fmt"
	"sync"
	"time"

	"github.com/letstrythisshit/tetrasdr/internal/pdu"
)

const (
	maxTalkGroups  = 256
	maxVoiceSlots  = 16
	maxHistory     = 100
	monitorPeriod  = 100 * time.Millisecond
	defaultHold    = 2 * time.Second
	controlTimeout = 5 * time.Second
)

// Tuner is the single abstract handle the manager retunes, per spec.md
// §4.I: it has no notion of control vs. voice, only a target frequency.
type Tuner interface {
	Tune(freqHz uint64) error
	CurrentFrequency() uint64
}

// Logger is the minimal structured-logging surface the manager needs;
// *telemetry.Logger satisfies it, and tests can supply a no-op stub.
type Logger interface {
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any) {}
func (nopLogger) Infof(string, ...any) {}

// TalkGroup is one entry of the talk-group table (spec.md §3).
type TalkGroup struct {
	ID           uint32
	Name         string
	Monitored    bool
	Priority     int
	CallCount    uint64
	LastActivity time.Time
}

// VoiceSlot is one entry of the fixed-size voice-channel array (spec.md
// §3). It carries no demodulator of its own: under a single-tuner
// orchestrator (spec.md §9) the orchestrator's current demodulator
// serves whichever frequency is tuned.
type VoiceSlot struct {
	Frequency     uint64
	TalkGroupID   uint32
	SourceID      uint32
	Active        bool
	Encrypted     bool
	GrantTime     time.Time
	LastUpdate    time.Time
	SignalStrength float64
}

// HistoryEntry records one completed voice-slot lifetime (spec.md §3).
type HistoryEntry struct {
	GrantTime   time.Time
	TalkGroupID uint32
	Frequency   uint64
	SourceID    uint32
	Duration    time.Duration
}

// Config is the trunking sub-configuration from spec.md §3.
type Config struct {
	ControlFreq       uint64
	PriorityThreshold int
	EmergencyOverride bool
	RecordAll         bool
	AutoFollow        bool
	HoldTime          time.Duration
}

// Stats is the manager's aggregate call-count view (spec.md §3).
type Stats struct {
	TotalCalls      uint64
	EmergencyCalls  uint64
	EncryptedCalls  uint64
	ControlMessages uint64
}

// Manager is the channel manager of spec.md §4.I. Its three mutexes
// (talk-group table, voice slots, history ring) are always acquired in
// that left-to-right order, and none is held across a Tuner call.
type Manager struct {
	cfg    Config
	tuner  Tuner
	log    Logger

	tgMu       sync.Mutex
	talkGroups []TalkGroup

	slotMu            sync.Mutex
	slots             [maxVoiceSlots]VoiceSlot
	activeChannelCount int
	currentSlotIdx    int // -1 when none

	histMu  sync.Mutex
	history []HistoryEntry
	histPos int

	statsMu sync.Mutex
	stats   Stats

	lastControlMu  sync.Mutex
	lastControlMsg time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// now is overridable in tests for deterministic timeouts.
var now = time.Now

// NewManager constructs a manager bound to tuner, initially tuned to the
// control frequency. log may be nil, in which case a no-op logger is
// used.
func NewManager(cfg Config, tuner Tuner, log Logger) *Manager {
	if log == nil {
		log = nopLogger{}
	}
	if cfg.HoldTime <= 0 {
		cfg.HoldTime = defaultHold
	}
	m := &Manager{
		cfg:            cfg,
		tuner:          tuner,
		log:            log,
		currentSlotIdx: -1,
		history:        make([]HistoryEntry, 0, maxHistory),
		lastControlMsg: now(),
	}
	if tuner != nil {
		if err := tuner.Tune(cfg.ControlFreq); err != nil {
			log.Warnf("trunk: initial tune to control frequency %d failed: %v", cfg.ControlFreq, err)
		}
	}
	return m
}

var errTableFull = fmt.Errorf("trunk: talk group table full")

// AddTalkGroup appends a new entry, returning its index, or an error if
// the 256-entry table is full.
func (m *Manager) AddTalkGroup(id uint32, name string, monitored bool, priority int) (int, error) {
	m.tgMu.Lock()
	defer m.tgMu.Unlock()
	if len(m.talkGroups) >= maxTalkGroups {
		return -1, errTableFull
	}
	m.talkGroups = append(m.talkGroups, TalkGroup{ID: id, Name: name, Monitored: monitored, Priority: priority})
	return len(m.talkGroups) - 1, nil
}

// findTalkGroupLocked must be called with tgMu held.
func (m *Manager) findTalkGroupLocked(id uint32) int {
	for i := range m.talkGroups {
		if m.talkGroups[i].ID == id {
			return i
		}
	}
	return -1
}

// TalkGroups returns a snapshot copy of the talk-group table.
func (m *Manager) TalkGroups() []TalkGroup {
	m.tgMu.Lock()
	defer m.tgMu.Unlock()
	out := make([]TalkGroup, len(m.talkGroups))
	copy(out, m.talkGroups)
	return out
}

// ActiveChannelCount returns the number of currently active voice slots.
func (m *Manager) ActiveChannelCount() int {
	m.slotMu.Lock()
	defer m.slotMu.Unlock()
	return m.activeChannelCount
}

// Slots returns a snapshot copy of the voice-slot array.
func (m *Manager) Slots() [maxVoiceSlots]VoiceSlot {
	m.slotMu.Lock()
	defer m.slotMu.Unlock()
	return m.slots
}

// History returns a snapshot copy of the history ring in insertion order
// (oldest first among occupied entries).
func (m *Manager) History() []HistoryEntry {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	// Once the ring has wrapped, histPos is the slot of the oldest entry;
	// before that it is 0.
	out := make([]HistoryEntry, 0, len(m.history))
	out = append(out, m.history[m.histPos:]...)
	out = append(out, m.history[:m.histPos]...)
	return out
}

// Stats returns a snapshot of the aggregate call counters.
func (m *Manager) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

func (m *Manager) appendHistoryLocked(entry HistoryEntry) {
	if len(m.history) < maxHistory {
		m.history = append(m.history, entry)
		return
	}
	m.history[m.histPos] = entry
	m.histPos = (m.histPos + 1) % maxHistory
}

// allocateSlotLocked finds the first inactive slot; must be called with
// slotMu held. Returns -1 if none is free.
func (m *Manager) allocateSlotLocked() int {
	for i := range m.slots {
		if !m.slots[i].Active {
			return i
		}
	}
	return -1
}

// ProcessControlMessage implements spec.md §4.I's process_control_message.
func (m *Manager) ProcessControlMessage(msg pdu.Message) {
	m.lastControlMu.Lock()
	m.lastControlMsg = now()
	m.lastControlMu.Unlock()

	m.statsMu.Lock()
	m.stats.ControlMessages++
	m.statsMu.Unlock()

	m.tgMu.Lock()
	if idx := m.findTalkGroupLocked(msg.TalkGroupID); idx >= 0 {
		m.talkGroups[idx].LastActivity = now()
		m.talkGroups[idx].CallCount++
	}
	m.tgMu.Unlock()

	switch msg.Type {
	case pdu.ChannelGrant, pdu.GroupCall:
		m.handleGrant(msg)
	case pdu.ChannelRelease:
		m.handleRelease(msg)
	case pdu.Emergency:
		m.statsMu.Lock()
		m.stats.EmergencyCalls++
		m.statsMu.Unlock()
	}
}

func (m *Manager) handleGrant(msg pdu.Message) {
	m.statsMu.Lock()
	m.stats.TotalCalls++
	if msg.Emergency {
		m.stats.EmergencyCalls++
	}
	if msg.Encrypted {
		m.stats.EncryptedCalls++
	}
	m.statsMu.Unlock()

	m.tgMu.Lock()
	idx := m.findTalkGroupLocked(msg.TalkGroupID)
	monitored := idx >= 0 && m.talkGroups[idx].Monitored
	priority := 0
	if idx >= 0 {
		priority = m.talkGroups[idx].Priority
	}
	m.tgMu.Unlock()

	follow := (m.cfg.EmergencyOverride && msg.Emergency) ||
		(monitored && priority >= m.cfg.PriorityThreshold) ||
		m.cfg.RecordAll

	if !follow || !m.cfg.AutoFollow || msg.ChannelFreq == 0 {
		return
	}

	m.slotMu.Lock()
	slotIdx := m.allocateSlotLocked()
	if slotIdx < 0 {
		m.slotMu.Unlock()
		m.log.Warnf("trunk: no free voice slot for talk group %d", msg.TalkGroupID)
		return
	}
	n := now()
	m.slots[slotIdx] = VoiceSlot{
		Frequency:   msg.ChannelFreq,
		TalkGroupID: msg.TalkGroupID,
		SourceID:    msg.SourceID,
		Active:      true,
		Encrypted:   msg.Encrypted,
		GrantTime:   n,
		LastUpdate:  n,
	}
	m.activeChannelCount++
	m.currentSlotIdx = slotIdx
	freq := msg.ChannelFreq
	m.slotMu.Unlock()

	if err := m.tuner.Tune(freq); err != nil {
		m.log.Warnf("trunk: retune to %d failed: %v", freq, err)
	}
}

func (m *Manager) handleRelease(msg pdu.Message) {
	m.slotMu.Lock()
	slotIdx := -1
	for i := range m.slots {
		if m.slots[i].Active && m.slots[i].TalkGroupID == msg.TalkGroupID {
			slotIdx = i
			break
		}
	}
	if slotIdx < 0 {
		m.slotMu.Unlock()
		return
	}

	slot := m.slots[slotIdx]
	m.slots[slotIdx].Active = false
	m.activeChannelCount--
	wasCurrent := m.currentSlotIdx == slotIdx
	if wasCurrent {
		m.currentSlotIdx = -1
	}
	m.slotMu.Unlock()

	m.histMu.Lock()
	m.appendHistoryLocked(HistoryEntry{
		GrantTime:   slot.GrantTime,
		TalkGroupID: slot.TalkGroupID,
		Frequency:   slot.Frequency,
		SourceID:    slot.SourceID,
		Duration:    now().Sub(slot.GrantTime),
	})
	m.histMu.Unlock()

	if wasCurrent {
		if err := m.tuner.Tune(m.cfg.ControlFreq); err != nil {
			m.log.Warnf("trunk: retune to control frequency failed: %v", err)
		}
	}
}

// Tick runs one iteration of the 100ms monitor loop's body (spec.md
// §4.I): it is exported separately from Start so tests can drive it
// deterministically without sleeping.
func (m *Manager) Tick() {
	m.lastControlMu.Lock()
	silentFor := now().Sub(m.lastControlMsg)
	if silentFor > controlTimeout {
		m.lastControlMsg = now()
		m.lastControlMu.Unlock()
		m.log.Warnf("trunk: no control-channel messages for %s", silentFor)
	} else {
		m.lastControlMu.Unlock()
	}

	type expired struct {
		idx  int
		slot VoiceSlot
	}
	var expiredSlots []expired
	retune := false

	m.slotMu.Lock()
	n := now()
	for i := range m.slots {
		if m.slots[i].Active && n.Sub(m.slots[i].LastUpdate) > m.cfg.HoldTime {
			expiredSlots = append(expiredSlots, expired{idx: i, slot: m.slots[i]})
			m.slots[i].Active = false
			m.activeChannelCount--
			if m.currentSlotIdx == i {
				m.currentSlotIdx = -1
				retune = true
			}
		}
	}
	m.slotMu.Unlock()

	if retune {
		if err := m.tuner.Tune(m.cfg.ControlFreq); err != nil {
			m.log.Warnf("trunk: retune to control frequency failed: %v", err)
		}
	}

	if len(expiredSlots) == 0 {
		return
	}

	m.histMu.Lock()
	for _, e := range expiredSlots {
		m.appendHistoryLocked(HistoryEntry{
			GrantTime:   e.slot.GrantTime,
			TalkGroupID: e.slot.TalkGroupID,
			Frequency:   e.slot.Frequency,
			SourceID:    e.slot.SourceID,
			Duration:    now().Sub(e.slot.GrantTime),
		})
	}
	m.histMu.Unlock()
}

// Start launches the background monitor goroutine at monitorPeriod.
func (m *Manager) Start() {
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(monitorPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Tick()
			}
		}
	}()
}

// Stop signals the monitor goroutine to exit and waits for it to finish
// its current tick.
func (m *Manager) Stop() {
	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	<-m.doneCh
}
