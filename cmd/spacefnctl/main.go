// spacefnctl is the control CLI for spacefnd. It gets and sets the daemon's
// Paused property over the session bus.
package main

import (
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"

	"spacefnd/internal/ipc"
)

func main() {
	if len(os.Args) != 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "status":
		err = cmdStatus()
	case "pause":
		err = cmdSet(true)
	case "resume":
		err = cmdSet(false)
	case "toggle":
		err = cmdToggle()
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "spacefnctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `spacefnctl - control utility for spacefnd

Usage: spacefnctl <command>

Commands:
  status   Show whether remapping is paused
  pause    Pause remapping (events pass through unmodified)
  resume   Resume remapping
  toggle   Flip the paused state
  help     Show this help message`)
}

func gateObject() (dbus.BusObject, *dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, nil, fmt.Errorf("connect session bus: %w", err)
	}
	return conn.Object(ipc.BusName, ipc.ObjectPath), conn, nil
}

func paused(obj dbus.BusObject) (bool, error) {
	v, err := obj.GetProperty(ipc.InterfaceName + "." + ipc.PropPaused)
	if err != nil {
		return false, fmt.Errorf("get %s (is spacefnd running?): %w", ipc.PropPaused, err)
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s type %T", ipc.PropPaused, v.Value())
	}
	return b, nil
}

func cmdStatus() error {
	obj, conn, err := gateObject()
	if err != nil {
		return err
	}
	defer conn.Close()

	p, err := paused(obj)
	if err != nil {
		return err
	}
	if p {
		fmt.Println("paused")
	} else {
		fmt.Println("running")
	}
	return nil
}

func cmdSet(pause bool) error {
	obj, conn, err := gateObject()
	if err != nil {
		return err
	}
	defer conn.Close()

	prop := ipc.InterfaceName + "." + ipc.PropPaused
	if err := obj.SetProperty(prop, dbus.MakeVariant(pause)); err != nil {
		return fmt.Errorf("set %s: %w", ipc.PropPaused, err)
	}
	return nil
}

func cmdToggle() error {
	obj, conn, err := gateObject()
	if err != nil {
		return err
	}
	defer conn.Close()

	p, err := paused(obj)
	if err != nil {
		return err
	}
	prop := ipc.InterfaceName + "." + ipc.PropPaused
	if err := obj.SetProperty(prop, dbus.MakeVariant(!p)); err != nil {
		return fmt.Errorf("set %s: %w", ipc.PropPaused, err)
	}
	if !p {
		fmt.Println("paused")
	} else {
		fmt.Println("running")
	}
	return nil
}
