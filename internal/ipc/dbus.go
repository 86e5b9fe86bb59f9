package ipc

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

// Bus identity, kept wire-compatible with the original spacefn daemon so
// existing toggle scripts keep working.
const (
	BusName       = "com.spacefn.spacefn"
	InterfaceName = "com.spacefn.spacefn"
	PropPaused    = "Paused"
)

// ObjectPath is where the Paused property lives.
const ObjectPath dbus.ObjectPath = "/"

// Export claims the bus name and publishes the Paused property, default
// false. External writes land in the gate cell; an existing owner of the
// name is replaced.
func (g *Gate) Export(conn *dbus.Conn) error {
	reply, err := conn.RequestName(BusName, dbus.NameFlagReplaceExisting)
	if err != nil {
		return fmt.Errorf("request bus name %s: %w", BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already owned", BusName)
	}

	propsSpec := map[string]map[string]*prop.Prop{
		InterfaceName: {
			PropPaused: {
				Value:    false,
				Writable: true,
				Emit:     prop.EmitTrue,
				Callback: func(c *prop.Change) *dbus.Error {
					v, ok := c.Value.(bool)
					if !ok {
						return dbus.MakeFailedError(fmt.Errorf("%s must be a boolean", PropPaused))
					}
					g.paused.Store(v)
					g.log.Info("pause gate set over bus", "paused", v)
					return nil
				},
			},
		},
	}

	props, err := prop.Export(conn, ObjectPath, propsSpec)
	if err != nil {
		return fmt.Errorf("export %s property: %w", PropPaused, err)
	}
	g.props = props
	return nil
}
