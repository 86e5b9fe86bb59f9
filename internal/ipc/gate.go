// Package ipc owns the process-wide pause gate and exposes it on the
// session bus as a readwrite Paused property, so other processes can
// disable the remapping behavior.
//
// The gate itself is a local atomic cell. The engine only ever touches the
// cell, never the bus, so the keystroke path cannot block on IPC; bus
// handlers write into the same cell.
package ipc

import (
	"log/slog"
	"sync/atomic"
)

// Gate is the shared pause flag. The zero value is a usable, unpaused gate
// with no bus attachment.
type Gate struct {
	paused atomic.Bool
	props  propWriter
	log    *slog.Logger
}

// propWriter mirrors local gate writes back to the exported property.
type propWriter interface {
	SetMust(iface, property string, v interface{})
}

// NewGate returns an unpaused gate.
func NewGate(log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{log: log}
}

// Paused reports the current flag value.
func (g *Gate) Paused() bool {
	return g.paused.Load()
}

// SetPaused stores the flag and, when exported, updates the bus property.
// Last write wins; a race with an external toggle is acceptable.
func (g *Gate) SetPaused(v bool) {
	g.paused.Store(v)
	if g.props != nil {
		g.props.SetMust(InterfaceName, PropPaused, v)
	}
}

// Toggle flips the flag and returns the new value.
func (g *Gate) Toggle() bool {
	v := !g.paused.Load()
	g.SetPaused(v)
	return v
}
