package device

import (
	"fmt"

	evdev "github.com/holoplot/go-evdev"

	"spacefnd/internal/engine"
)

// busVirtual is BUS_VIRTUAL from linux/input.h.
const busVirtual = 0x06

// Sink is the uinput virtual keyboard the daemon emits synthesized events
// through. It declares the full EV_KEY code range, so every remap target is
// within the device's capability set.
type Sink struct {
	dev *evdev.InputDevice
}

// NewSink creates the virtual output device.
func NewSink(name string) (*Sink, error) {
	keys := make([]evdev.EvCode, 0, int(evdev.KEY_MAX))
	for code := evdev.EvCode(1); code <= evdev.KEY_MAX; code++ {
		keys = append(keys, code)
	}

	dev, err := evdev.CreateDevice(name, evdev.InputID{
		BusType: busVirtual,
		Vendor:  0x1d50,
		Product: 0x4b42,
		Version: 1,
	}, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keys,
	})
	if err != nil {
		return nil, fmt.Errorf("create virtual device %q: %w", name, err)
	}
	return &Sink{dev: dev}, nil
}

// Send writes one synthesized key event followed by a SYN_REPORT so the
// kernel delivers it immediately.
func (s *Sink) Send(code uint16, tr engine.Transition) error {
	key := &evdev.InputEvent{
		Type:  evdev.EV_KEY,
		Code:  evdev.EvCode(code),
		Value: tr.Raw(),
	}
	if err := s.dev.WriteOne(key); err != nil {
		return fmt.Errorf("write key event: %w", err)
	}

	syn := &evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}
	if err := s.dev.WriteOne(syn); err != nil {
		return fmt.Errorf("write syn event: %w", err)
	}
	return nil
}

// Close destroys the virtual device.
func (s *Sink) Close() error {
	return s.dev.Close()
}
