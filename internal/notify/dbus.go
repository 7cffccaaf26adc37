package notify

import (
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

// Desktop sends notifications over the session bus via
// org.freedesktop.Notifications.
type Desktop struct {
	conn *dbus.Conn
}

func NewDesktop() (*Desktop, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &Desktop{conn: conn}, nil
}

func (d *Desktop) Close() error { return d.conn.Close() }

func (d *Desktop) Notify(level Level, summary, body string) {
	urgency := byte(1)
	icon := "dialog-information"
	switch level {
	case LevelWarn:
		icon = "dialog-warning"
	case LevelCritical:
		urgency = 2
		icon = "dialog-error"
	}

	obj := d.conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.Call("org.freedesktop.Notifications.Notify", 0,
		"SiteWarden", // app_name
		uint32(0),    // replaces_id
		icon,         // app_icon
		summary,
		body,
		[]string{}, // actions
		map[string]dbus.Variant{
			"urgency": dbus.MakeVariant(urgency),
		},
		int32(10000), // expire_timeout (10 seconds)
	)
	if call.Err != nil {
		// Fire and forget: log and move on.
		log.Warn().Err(call.Err).Str("summary", summary).Msg("failed to send notification")
	}
}
