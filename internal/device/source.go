package device

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"spacefnd/internal/engine"
)

// Source reads key events from a grabbed evdev device and feeds them to the
// engine's run loop over a channel. Non-key events, keycode 0, and events
// with out-of-range transition values never reach the engine.
type Source struct {
	dev  *evdev.InputDevice
	path string
	log  *slog.Logger

	events  chan engine.Event
	readErr error

	closeOnce sync.Once
	grabbed   bool
}

// OpenSource opens the event device at path.
func OpenSource(path string, log *slog.Logger) (*Source, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", path, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		dev:    dev,
		path:   path,
		log:    log,
		events: make(chan engine.Event, 16),
	}, nil
}

// Name returns the device's reported name.
func (s *Source) Name() string {
	name, err := s.dev.Name()
	if err != nil {
		return ""
	}
	return name
}

// Grab takes exclusive access so the physical device's events no longer
// reach other readers. Close releases the grab.
func (s *Source) Grab() error {
	if err := s.dev.Grab(); err != nil {
		return fmt.Errorf("grab %s: %w", s.path, err)
	}
	s.grabbed = true
	return nil
}

// Start launches the read loop. The returned channel closes when the
// device read fails or the source is closed; Err then reports the cause.
func (s *Source) Start() <-chan engine.Event {
	go s.readLoop()
	return s.events
}

func (s *Source) readLoop() {
	defer close(s.events)

	for {
		ev, err := s.dev.ReadOne()
		if err != nil {
			s.readErr = err
			return
		}

		if ev.Type != evdev.EV_KEY || ev.Code == 0 {
			continue
		}

		tr, ok := engine.TransitionFromRaw(ev.Value)
		if !ok {
			s.log.Warn("dropping event with invalid value",
				"code", ev.Code, "value", ev.Value)
			continue
		}

		s.events <- engine.Event{
			Code:       uint16(ev.Code),
			Transition: tr,
			At:         time.Now(),
		}
	}
}

// Err returns the error that ended the read loop. Valid once the events
// channel has closed.
func (s *Source) Err() error {
	return s.readErr
}

// Close releases the grab and the device. Safe to call more than once,
// and unblocks a pending read.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.grabbed {
			if uerr := s.dev.Ungrab(); uerr != nil {
				s.log.Warn("ungrab failed", "error", uerr)
			}
		}
		err = s.dev.Close()
	})
	return err
}
