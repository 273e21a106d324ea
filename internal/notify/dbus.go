//go:build linux

package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	dbusNotifyDest      = "org.freedesktop.Notifications"
	dbusNotifyPath      = "/org/freedesktop/Notifications"
	dbusNotifyInterface = "org.freedesktop.Notifications"

	appName = "Marketbell"
)

type dbusNotifier struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// New connects to the session bus. Without one it returns a no-op
// notifier.
func New() (Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return Nop(), nil //nolint:nilerr // no session bus, desktop mirroring is optional
	}
	return &dbusNotifier{conn: conn, obj: conn.Object(dbusNotifyDest, dbusNotifyPath)}, nil
}

// Notify(app_name, replaces_id, icon, summary, body, actions, hints, timeout) -> id
func (n *dbusNotifier) Notify(notif Notification) error {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(notif.Urgency)),
		"desktop-entry": dbus.MakeVariant("marketbell"),
	}

	call := n.obj.Call(
		dbusNotifyInterface+".Notify",
		0,
		appName,
		uint32(0),
		"",
		notif.Title,
		notif.Body,
		[]string{},
		hints,
		notif.Timeout,
	)
	if call.Err != nil {
		return fmt.Errorf("sending desktop notification: %w", call.Err)
	}
	return nil
}

// Close releases the session bus connection.
func (n *dbusNotifier) Close() error {
	return n.conn.Close()
}
