package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"spacefnd/internal/config"
	"spacefnd/internal/device"
	"spacefnd/internal/engine"
	"spacefnd/internal/ipc"
	"spacefnd/internal/logging"
)

// outputDeviceName is the name the virtual keyboard announces to the kernel.
const outputDeviceName = "spacefn-kbd"

// run wires the daemon together and drives the event loop until the source
// fails or a signal arrives. Startup errors are fatal; nothing is retried.
func run(confPath string) error {
	var (
		cfg *config.Config
		err error
	)
	if confPath != "" {
		cfg, err = config.Load(confPath)
	} else {
		cfg, confPath, err = config.LoadOrInit()
	}
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger, err := logging.Init(&logging.Config{
		Level:     level,
		JSON:      cfg.Logging.Format == "json",
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.File,
		Component: "spacefnd",
	})
	if err != nil {
		return err
	}
	logger.Info("starting", "version", version, "config", confPath)

	fnKey, pauseKey, km, err := cfg.Keycodes()
	if err != nil {
		return err
	}
	logger.Info("keymap loaded", "entries", km.Len())
	logger.Debug("remap targets", "codes", km.Targets())

	gate := ipc.NewGate(logger)
	if conn, derr := dbus.ConnectSessionBus(); derr != nil {
		// The gate stays usable locally; only external toggling is lost.
		logger.Warn("session bus unavailable, pause gate is local only", "error", derr)
	} else {
		defer conn.Close()
		if err := gate.Export(conn); err != nil {
			return err
		}
		logger.Info("pause gate exported", "bus_name", ipc.BusName)
	}

	path, err := device.Find(cfg.Device)
	if err != nil {
		return err
	}
	src, err := device.OpenSource(path, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := device.NewSink(outputDeviceName)
	if err != nil {
		return err
	}
	defer sink.Close()

	// Grab last, once the output path exists, so no keystrokes are lost
	// between grab and first emit.
	if err := src.Grab(); err != nil {
		return err
	}
	logger.Info("device grabbed", "path", path, "name", src.Name())

	mach := engine.New(engine.Config{
		Keymap:    km,
		ModTapKey: fnKey,
		PauseKey:  pauseKey,
		Timeout:   cfg.Timeout(),
		Gate:      gate,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	return loop(ctx, mach, src, sink, logger)
}

// loop is the single goroutine that drives the engine. It consumes source
// events and the decide-window timer; the timer guarantees a pending
// decision resolves within the configured timeout even with no further
// input.
func loop(ctx context.Context, mach *engine.Machine, src *device.Source, sink *device.Sink, logger *slog.Logger) error {
	events := src.Start()

	decide := time.NewTimer(time.Hour)
	stopTimer(decide)
	defer decide.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil

		case ev, ok := <-events:
			if !ok {
				if err := src.Err(); err != nil {
					return fmt.Errorf("input device read: %w", err)
				}
				return nil
			}
			if err := emit(sink, mach.Handle(ev)); err != nil {
				return err
			}
			rearm(decide, mach)

		case now := <-decide.C:
			if err := emit(sink, mach.ExpireDecide(now)); err != nil {
				return err
			}
			rearm(decide, mach)
		}
	}
}

func emit(sink *device.Sink, outs []engine.OutEvent) error {
	for _, out := range outs {
		if err := sink.Send(out.Code, out.Transition); err != nil {
			return err
		}
	}
	return nil
}

// rearm points the timer at the machine's decide deadline, or parks it.
func rearm(t *time.Timer, mach *engine.Machine) {
	stopTimer(t)
	if deadline, ok := mach.Deadline(); ok {
		t.Reset(time.Until(deadline))
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
