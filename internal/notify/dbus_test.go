//go:build linux

package notify

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifySendsNotification(t *testing.T) {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no D-Bus session available")
	}

	n, err := New()
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.Notify(Notification{
		Title:   "Test",
		Body:    "marketbell test notification",
		Timeout: 1000,
		Urgency: UrgencyLow,
	}))
}
