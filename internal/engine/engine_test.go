package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Evdev codes used throughout; the machine itself is code-agnostic.
const (
	keySpace     uint16 = 57
	keyRightMeta uint16 = 126
	keyA         uint16 = 30
	keyH         uint16 = 35
	keyJ         uint16 = 36
	keyK         uint16 = 37
	keyLeft      uint16 = 105
	keyDown      uint16 = 108
)

const testTimeout = 200 * time.Millisecond

type fakeGate struct {
	paused  bool
	toggles int
}

func (g *fakeGate) Paused() bool { return g.paused }

func (g *fakeGate) Toggle() bool {
	g.paused = !g.paused
	g.toggles++
	return g.paused
}

type testMap map[uint16]uint16

func (m testMap) Lookup(code uint16) uint16 {
	if mapped, ok := m[code]; ok {
		return mapped
	}
	return code
}

func (m testMap) Has(code uint16) bool {
	_, ok := m[code]
	return ok
}

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time { return base.Add(offset) }

func down(code uint16, offset time.Duration) Event {
	return Event{Code: code, Transition: TransitionDown, At: at(offset)}
}

func up(code uint16, offset time.Duration) Event {
	return Event{Code: code, Transition: TransitionUp, At: at(offset)}
}

func repeat(code uint16, offset time.Duration) Event {
	return Event{Code: code, Transition: TransitionRepeat, At: at(offset)}
}

func out(code uint16, tr Transition) OutEvent {
	return OutEvent{Code: code, Transition: tr}
}

func newTestMachine(km testMap) (*Machine, *fakeGate) {
	gate := &fakeGate{}
	m := New(Config{
		Keymap:    km,
		ModTapKey: keySpace,
		PauseKey:  keyRightMeta,
		Timeout:   testTimeout,
		Gate:      gate,
	})
	return m, gate
}

// collect feeds a sequence and concatenates all output.
func collect(m *Machine, evs ...Event) []OutEvent {
	var all []OutEvent
	for _, ev := range evs {
		all = append(all, m.Handle(ev)...)
	}
	return all
}

func TestTransitionFromRaw(t *testing.T) {
	cases := []struct {
		raw  int32
		want Transition
		ok   bool
	}{
		{0, TransitionUp, true},
		{1, TransitionDown, true},
		{2, TransitionRepeat, true},
		{-1, TransitionUp, false},
		{3, TransitionUp, false},
		{99, TransitionUp, false},
	}
	for _, tc := range cases {
		got, ok := TransitionFromRaw(tc.raw)
		assert.Equal(t, tc.ok, ok, "raw %d", tc.raw)
		if tc.ok {
			assert.Equal(t, tc.want, got, "raw %d", tc.raw)
		}
	}
}

func TestIdlePassThrough(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	// Unmapped and mapped keys alike pass through untouched in Idle,
	// including repeats.
	got := collect(m,
		down(keyA, 0),
		repeat(keyA, 10*time.Millisecond),
		up(keyA, 20*time.Millisecond),
		down(keyJ, 30*time.Millisecond),
		up(keyJ, 40*time.Millisecond),
	)
	want := []OutEvent{
		out(keyA, TransitionDown),
		out(keyA, TransitionRepeat),
		out(keyA, TransitionUp),
		out(keyJ, TransitionDown),
		out(keyJ, TransitionUp),
	}
	require.Equal(t, want, got)
	require.Equal(t, StateIdle, m.State())
}

func TestTapThrough(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	require.Empty(t, m.Handle(down(keySpace, 0)))
	require.Equal(t, StateDeciding, m.State())

	got := m.Handle(up(keySpace, 50*time.Millisecond))
	require.Equal(t, []OutEvent{
		out(keySpace, TransitionDown),
		out(keySpace, TransitionUp),
	}, got)
	require.Equal(t, StateIdle, m.State())
}

// The concrete scenario from the design: SPACE down, J down, J up within
// 50ms, then SPACE up. Only LEFT is ever emitted.
func TestHoldRemapsKeyReleasedInWindow(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	got := collect(m,
		down(keySpace, 0),
		down(keyJ, 20*time.Millisecond),
		up(keyJ, 50*time.Millisecond),
	)
	require.Equal(t, []OutEvent{
		out(keyLeft, TransitionDown),
		out(keyLeft, TransitionUp),
	}, got)
	require.Equal(t, StateShifted, m.State())

	require.Empty(t, m.Handle(up(keySpace, 80*time.Millisecond)))
	require.Equal(t, StateIdle, m.State())
}

func TestFastResolutionUnmappedKey(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	got := collect(m,
		down(keySpace, 0),
		down(keyK, 10*time.Millisecond),
		up(keyK, 30*time.Millisecond),
	)
	// K has no mapping; it is emitted with its own code.
	require.Equal(t, []OutEvent{
		out(keyK, TransitionDown),
		out(keyK, TransitionUp),
	}, got)
	require.Equal(t, StateShifted, m.State())
}

func TestTapReplaysBufferedDowns(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	// J is still physically held when the tap resolves: its down is
	// replayed unmapped, its up arrives later in Idle.
	got := collect(m,
		down(keySpace, 0),
		down(keyJ, 10*time.Millisecond),
		up(keySpace, 40*time.Millisecond),
	)
	require.Equal(t, []OutEvent{
		out(keySpace, TransitionDown),
		out(keySpace, TransitionUp),
		out(keyJ, TransitionDown),
	}, got)
	require.Equal(t, StateIdle, m.State())

	require.Equal(t,
		[]OutEvent{out(keyJ, TransitionUp)},
		m.Handle(up(keyJ, 60*time.Millisecond)))
}

func TestUpForKeyPressedBeforeModTap(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	// A held before space; its release inside the window is forwarded and
	// does not resolve the ambiguity.
	require.Equal(t,
		[]OutEvent{out(keyA, TransitionDown)},
		m.Handle(down(keyA, 0)))
	require.Empty(t, m.Handle(down(keySpace, 10*time.Millisecond)))

	got := m.Handle(up(keyA, 20*time.Millisecond))
	require.Equal(t, []OutEvent{out(keyA, TransitionUp)}, got)
	require.Equal(t, StateDeciding, m.State())
}

func TestTimeoutFlushThenShiftedDispatch(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	require.Empty(t, m.Handle(down(keySpace, 0)))
	require.Empty(t, m.Handle(down(keyJ, 10*time.Millisecond)))

	// The next event arrives after the window. Buffered J is flushed as a
	// remapped down+up pair, then the event itself is handled under
	// Shifted rules in the same call.
	got := m.Handle(down(keyK, 250*time.Millisecond))
	require.Equal(t, []OutEvent{
		out(keyLeft, TransitionDown),
		out(keyLeft, TransitionUp),
		out(keyK, TransitionDown),
	}, got)
	require.Equal(t, StateShifted, m.State())
}

func TestExpireDecide(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	require.Empty(t, m.Handle(down(keySpace, 0)))
	require.Empty(t, m.Handle(down(keyJ, 10*time.Millisecond)))

	deadline, ok := m.Deadline()
	require.True(t, ok)
	require.Equal(t, at(testTimeout), deadline)

	// Before the deadline the tick is a no-op.
	require.Empty(t, m.ExpireDecide(at(100*time.Millisecond)))
	require.Equal(t, StateDeciding, m.State())

	got := m.ExpireDecide(at(testTimeout))
	require.Equal(t, []OutEvent{
		out(keyLeft, TransitionDown),
		out(keyLeft, TransitionUp),
	}, got)
	require.Equal(t, StateShifted, m.State())

	// Outside Deciding the tick does nothing.
	require.Empty(t, m.ExpireDecide(at(300*time.Millisecond)))
	_, ok = m.Deadline()
	require.False(t, ok)
}

func TestShiftedRemapPreservesTransitions(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft, keyH: keyDown})

	// Enter Shifted via timeout with an empty buffer.
	require.Empty(t, m.Handle(down(keySpace, 0)))
	require.Empty(t, m.ExpireDecide(at(testTimeout)))
	require.Equal(t, StateShifted, m.State())

	got := collect(m,
		down(keyJ, 210*time.Millisecond),
		repeat(keyJ, 240*time.Millisecond),
		up(keyJ, 260*time.Millisecond),
		down(keyH, 270*time.Millisecond),
		up(keyH, 280*time.Millisecond),
	)
	require.Equal(t, []OutEvent{
		out(keyLeft, TransitionDown),
		out(keyLeft, TransitionRepeat),
		out(keyLeft, TransitionUp),
		out(keyDown, TransitionDown),
		out(keyDown, TransitionUp),
	}, got)
}

func TestShiftedUnmappedPassThrough(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	require.Empty(t, m.Handle(down(keySpace, 0)))
	require.Empty(t, m.ExpireDecide(at(testTimeout)))

	got := collect(m,
		down(keyA, 210*time.Millisecond),
		up(keyA, 220*time.Millisecond),
	)
	require.Equal(t, []OutEvent{
		out(keyA, TransitionDown),
		out(keyA, TransitionUp),
	}, got)
}

func TestShiftedModTapReleaseFreesHeldKeys(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	require.Empty(t, m.Handle(down(keySpace, 0)))
	require.Empty(t, m.ExpireDecide(at(testTimeout)))

	// J held under the layer when the mod-tap key is released: the layer
	// must release LEFT so nothing appears stuck downstream.
	require.Equal(t,
		[]OutEvent{out(keyLeft, TransitionDown)},
		m.Handle(down(keyJ, 210*time.Millisecond)))

	got := m.Handle(up(keySpace, 230*time.Millisecond))
	require.Equal(t, []OutEvent{out(keyLeft, TransitionUp)}, got)
	require.Equal(t, StateIdle, m.State())
}

func TestShiftedModTapDownAndRepeatConsumed(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	require.Empty(t, m.Handle(down(keySpace, 0)))
	require.Empty(t, m.ExpireDecide(at(testTimeout)))

	// Kernel auto-repeat of the held mod-tap key must not type anything.
	require.Empty(t, m.Handle(repeat(keySpace, 210*time.Millisecond)))
	require.Empty(t, m.Handle(repeat(keySpace, 240*time.Millisecond)))
	require.Equal(t, StateShifted, m.State())
}

func TestDecidingRepeatAndDuplicateDownIgnored(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	require.Empty(t, m.Handle(down(keySpace, 0)))
	require.Empty(t, m.Handle(down(keyJ, 10*time.Millisecond)))
	require.Empty(t, m.Handle(repeat(keyJ, 40*time.Millisecond)))
	require.Empty(t, m.Handle(down(keyJ, 60*time.Millisecond)))

	// Exactly one flush pair despite the duplicate down and the repeats.
	got := m.ExpireDecide(at(testTimeout))
	require.Equal(t, []OutEvent{
		out(keyLeft, TransitionDown),
		out(keyLeft, TransitionUp),
	}, got)
}

func TestPauseToggleIdempotence(t *testing.T) {
	m, gate := newTestMachine(testMap{keyJ: keyLeft})

	got := collect(m,
		down(keyRightMeta, 0),
		up(keyRightMeta, 10*time.Millisecond),
		down(keyRightMeta, 20*time.Millisecond),
		up(keyRightMeta, 30*time.Millisecond),
	)
	require.Empty(t, got, "toggle key must never reach the sink")
	require.Equal(t, 2, gate.toggles)
	require.False(t, gate.paused, "two toggles must restore the gate")
	require.Equal(t, StateIdle, m.State())
}

func TestPausedBypassesDisambiguation(t *testing.T) {
	m, gate := newTestMachine(testMap{keyJ: keyLeft})
	gate.paused = true

	// While paused the mod-tap key is an ordinary key.
	got := collect(m,
		down(keySpace, 0),
		up(keySpace, 300*time.Millisecond),
		down(keyJ, 310*time.Millisecond),
		up(keyJ, 320*time.Millisecond),
	)
	require.Equal(t, []OutEvent{
		out(keySpace, TransitionDown),
		out(keySpace, TransitionUp),
		out(keyJ, TransitionDown),
		out(keyJ, TransitionUp),
	}, got)
	require.Equal(t, StateIdle, m.State())
}

func TestInvalidTransitionIsNoOp(t *testing.T) {
	m, _ := newTestMachine(testMap{keyJ: keyLeft})

	bad := Event{Code: keyA, Transition: Transition(9), At: at(0)}
	require.Empty(t, m.Handle(bad))
	require.Equal(t, StateIdle, m.State())

	require.Empty(t, m.Handle(down(keySpace, 0)))
	bad.At = at(10 * time.Millisecond)
	require.Empty(t, m.Handle(bad))
	require.Equal(t, StateDeciding, m.State())
}

// No stuck key: over a well-formed input sequence that ends with every
// physical key released and the machine back in Idle, every synthesized
// down has a matching synthesized up. A trailing unmatched up is tolerated
// (a key released after the layer closed); an unmatched down is a stuck key.
func TestNoStuckKeys(t *testing.T) {
	sequences := map[string][]Event{
		"tap with held key": {
			down(keySpace, 0),
			down(keyJ, 10 * time.Millisecond),
			up(keySpace, 40 * time.Millisecond),
			up(keyJ, 300 * time.Millisecond),
		},
		"hold and release in window": {
			down(keySpace, 0),
			down(keyJ, 10 * time.Millisecond),
			up(keyJ, 40 * time.Millisecond),
			up(keySpace, 100 * time.Millisecond),
		},
		"hold past timeout": {
			down(keySpace, 0),
			down(keyJ, 250 * time.Millisecond),
			up(keyJ, 280 * time.Millisecond),
			down(keyA, 300 * time.Millisecond),
			up(keyA, 310 * time.Millisecond),
			up(keySpace, 350 * time.Millisecond),
		},
		"mod-tap released with layer key held": {
			down(keySpace, 0),
			down(keyJ, 250 * time.Millisecond),
			up(keySpace, 300 * time.Millisecond),
			up(keyJ, 320 * time.Millisecond),
		},
	}

	for name, seq := range sequences {
		t.Run(name, func(t *testing.T) {
			m, _ := newTestMachine(testMap{keyJ: keyLeft})
			held := map[uint16]int{}
			for _, ev := range seq {
				for _, o := range m.Handle(ev) {
					switch o.Transition {
					case TransitionDown:
						held[o.Code]++
					case TransitionUp:
						held[o.Code]--
					}
				}
			}
			require.Equal(t, StateIdle, m.State())
			for code, n := range held {
				assert.LessOrEqualf(t, n, 0, "code %d left down", code)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "deciding", StateDeciding.String())
	assert.Equal(t, "shifted", StateShifted.String())
	assert.Equal(t, "down", TransitionDown.String())
	assert.Equal(t, "up", TransitionUp.String())
	assert.Equal(t, "repeat", TransitionRepeat.String())
}
