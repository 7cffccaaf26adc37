// Package notify delivers fire-and-forget user notifications. Delivery
// failures are logged and never affect core state.
package notify

type Level byte

const (
	LevelInfo Level = iota
	LevelWarn
	LevelCritical
)

type Notifier interface {
	Notify(level Level, summary, body string)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(Level, string, string) {}

// Recorder captures notifications for tests.
type Recorder struct {
	Notifications []Notification
}

type Notification struct {
	Level   Level
	Summary string
	Body    string
}

func (r *Recorder) Notify(level Level, summary, body string) {
	r.Notifications = append(r.Notifications, Notification{Level: level, Summary: summary, Body: body})
}
