// Package engine implements the event-classification state machine at the
// heart of spacefnd.
//
// The machine consumes one key event at a time and decides whether the
// designated mod-tap key is acting as a literal keypress or as a transient
// modifier layer. It owns the event buffer, the decision deadline, and the
// current state; it performs no I/O. Callers feed it timestamped events and
// emit whatever it returns, in order.
//
// States:
//   - Idle: identity pass-through, watching for the mod-tap and pause keys.
//   - Deciding: the mod-tap key is down and its role is still ambiguous.
//     Key downs are buffered, not forwarded.
//   - Shifted: the mod-tap key is held as a modifier; events are remapped
//     through the keymap.
//
// Timeout-boundary policy: the elapsed-time check runs before the incoming
// event is dispatched. When the decide window has expired, the buffer is
// flushed (remapped down+up pairs), the machine enters Shifted, and the
// triggering event is then handled under Shifted rules within the same call.
// The run loop may also resolve an expired window with no further input via
// ExpireDecide, which performs the same flush.
package engine

import (
	"log/slog"
	"time"
)

// Transition classifies a key event.
type Transition uint8

// Key event transitions, matching the raw values a device reports.
const (
	TransitionUp Transition = iota
	TransitionDown
	TransitionRepeat
)

// TransitionFromRaw converts a raw event value to a Transition. The second
// return value is false for out-of-range values; callers at the device
// boundary drop such events rather than guessing.
func TransitionFromRaw(v int32) (Transition, bool) {
	switch v {
	case 0:
		return TransitionUp, true
	case 1:
		return TransitionDown, true
	case 2:
		return TransitionRepeat, true
	}
	return TransitionUp, false
}

// Raw returns the on-device integer value for the transition.
func (t Transition) Raw() int32 {
	return int32(t)
}

func (t Transition) String() string {
	switch t {
	case TransitionUp:
		return "up"
	case TransitionDown:
		return "down"
	case TransitionRepeat:
		return "repeat"
	}
	return "invalid"
}

// Event is a single key event arriving from the source device. At is the
// arrival timestamp; the machine never reads a clock itself.
type Event struct {
	Code       uint16
	Transition Transition
	At         time.Time
}

// OutEvent is a synthesized key event to be written to the sink.
type OutEvent struct {
	Code       uint16
	Transition Transition
}

// State is the machine's current classification state.
type State uint8

const (
	StateIdle State = iota
	StateDeciding
	StateShifted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDeciding:
		return "deciding"
	case StateShifted:
		return "shifted"
	}
	return "unknown"
}

// Remapper is the read-only keymap the Shifted layer consults.
type Remapper interface {
	// Lookup returns the mapped code, or its argument when no mapping exists.
	Lookup(code uint16) uint16
	// Has reports whether a mapping exists for code.
	Has(code uint16) bool
}

// Gate is the process-wide pause flag. Implementations must be
// non-blocking; the engine reads the gate on the keystroke path.
type Gate interface {
	Paused() bool
	// Toggle flips the flag and returns the new value.
	Toggle() bool
}

// Config carries the immutable inputs the machine is built from.
type Config struct {
	Keymap    Remapper
	ModTapKey uint16
	PauseKey  uint16
	Timeout   time.Duration
	Gate      Gate
	Logger    *slog.Logger
}

// Machine is the disambiguation state machine. It is not safe for
// concurrent use; drive it from a single goroutine.
type Machine struct {
	keymap  Remapper
	modTap  uint16
	pause   uint16
	timeout time.Duration
	gate    Gate
	log     *slog.Logger

	state       State
	buffer      []uint16
	decideStart time.Time
}

// New builds a Machine in the Idle state.
func New(cfg Config) *Machine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		keymap:  cfg.Keymap,
		modTap:  cfg.ModTapKey,
		pause:   cfg.PauseKey,
		timeout: cfg.Timeout,
		gate:    cfg.Gate,
		log:     log,
		state:   StateIdle,
		buffer:  make([]uint16, 0, 8),
	}
}

// State returns the current classification state.
func (m *Machine) State() State {
	return m.state
}

// Deadline returns the instant the current decide window expires. The
// second return value is false outside the Deciding state.
func (m *Machine) Deadline() (time.Time, bool) {
	if m.state != StateDeciding {
		return time.Time{}, false
	}
	return m.decideStart.Add(m.timeout), true
}

// Handle consumes one event and returns the synthesized events to emit, in
// order. A malformed transition value is a no-op; the no-stuck-key property
// must hold even under malformed input.
func (m *Machine) Handle(ev Event) []OutEvent {
	if ev.Transition > TransitionRepeat {
		m.log.Warn("dropping event with invalid transition", "code", ev.Code)
		return nil
	}

	switch m.state {
	case StateDeciding:
		return m.handleDeciding(ev)
	case StateShifted:
		return m.handleShifted(ev)
	default:
		return m.handleIdle(ev)
	}
}

// ExpireDecide resolves the ambiguity in favor of "modifier held" once the
// decide window has passed with no further input. now is the tick time from
// the caller's timer. Outside the Deciding state, or before the deadline,
// it does nothing.
func (m *Machine) ExpireDecide(now time.Time) []OutEvent {
	if m.state != StateDeciding || now.Sub(m.decideStart) < m.timeout {
		return nil
	}
	return m.flushDecided()
}

func (m *Machine) handleIdle(ev Event) []OutEvent {
	// The pause-toggle key never reaches downstream; a forwarded half of a
	// down/up pair would look like a stuck key to applications.
	if ev.Code == m.pause {
		if ev.Transition == TransitionDown {
			paused := m.gate.Toggle()
			m.log.Info("pause toggled", "paused", paused)
		}
		return nil
	}

	if ev.Code == m.modTap && ev.Transition == TransitionDown && !m.gate.Paused() {
		m.decideStart = ev.At
		m.buffer = m.buffer[:0]
		m.state = StateDeciding
		m.log.Debug("idle -> deciding")
		return nil
	}

	return []OutEvent{{Code: ev.Code, Transition: ev.Transition}}
}

func (m *Machine) handleDeciding(ev Event) []OutEvent {
	if ev.At.Sub(m.decideStart) >= m.timeout {
		out := m.flushDecided()
		return append(out, m.handleShifted(ev)...)
	}

	switch ev.Transition {
	case TransitionDown:
		// Hold the key until the ambiguity resolves. Auto-repeat and
		// duplicate downs must not break the at-most-once buffer invariant.
		m.bufferAdd(ev.Code)
		return nil

	case TransitionUp:
		if ev.Code == m.modTap {
			// A tap: the mod-tap key was a literal keypress. Its own code is
			// never remapped. Buffered keys are still physically held, so
			// only their downs are replayed; the ups arrive later in Idle.
			out := make([]OutEvent, 0, 2+len(m.buffer))
			out = append(out,
				OutEvent{Code: m.modTap, Transition: TransitionDown},
				OutEvent{Code: m.modTap, Transition: TransitionUp},
			)
			for _, code := range m.buffer {
				out = append(out, OutEvent{Code: code, Transition: TransitionDown})
			}
			m.buffer = m.buffer[:0]
			m.state = StateIdle
			m.log.Debug("deciding -> idle", "reason", "tap")
			return out
		}

		if m.bufferRemove(ev.Code) {
			// A full press-and-release of another key inside the window:
			// the mod-tap key is a modifier.
			mapped := m.keymap.Lookup(ev.Code)
			m.state = StateShifted
			m.log.Debug("deciding -> shifted", "reason", "key release")
			return []OutEvent{
				{Code: mapped, Transition: TransitionDown},
				{Code: mapped, Transition: TransitionUp},
			}
		}

		// An up for a key pressed before the mod-tap key.
		return []OutEvent{{Code: ev.Code, Transition: TransitionUp}}
	}

	return nil
}

func (m *Machine) handleShifted(ev Event) []OutEvent {
	if ev.Code == m.modTap {
		if ev.Transition != TransitionUp {
			return nil
		}
		// Release anything still logically held under the layer.
		out := make([]OutEvent, 0, len(m.buffer))
		for _, code := range m.buffer {
			out = append(out, OutEvent{Code: code, Transition: TransitionUp})
		}
		m.buffer = m.buffer[:0]
		m.state = StateIdle
		m.log.Debug("shifted -> idle")
		return out
	}

	if m.keymap.Has(ev.Code) {
		mapped := m.keymap.Lookup(ev.Code)
		switch ev.Transition {
		case TransitionDown:
			m.bufferAdd(mapped)
		case TransitionUp:
			m.bufferRemove(mapped)
		}
		return []OutEvent{{Code: mapped, Transition: ev.Transition}}
	}

	return []OutEvent{{Code: ev.Code, Transition: ev.Transition}}
}

// flushDecided emits a down+up pair for every buffered key, remapped, and
// enters Shifted.
func (m *Machine) flushDecided() []OutEvent {
	out := make([]OutEvent, 0, 2*len(m.buffer))
	for _, code := range m.buffer {
		mapped := m.keymap.Lookup(code)
		out = append(out,
			OutEvent{Code: mapped, Transition: TransitionDown},
			OutEvent{Code: mapped, Transition: TransitionUp},
		)
	}
	m.buffer = m.buffer[:0]
	m.state = StateShifted
	m.log.Debug("deciding -> shifted", "reason", "timeout")
	return out
}

func (m *Machine) bufferAdd(code uint16) {
	for _, c := range m.buffer {
		if c == code {
			return
		}
	}
	m.buffer = append(m.buffer, code)
}

func (m *Machine) bufferRemove(code uint16) bool {
	for i, c := range m.buffer {
		if c == code {
			m.buffer = append(m.buffer[:i], m.buffer[i+1:]...)
			return true
		}
	}
	return false
}
