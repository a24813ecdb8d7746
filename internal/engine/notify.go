package engine

import "fmt"

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one user-facing message.
type Notification struct {
	Seq      int64  `json:"seq"`
	Level    Level  `json:"level"`
	Message  string `json:"message"`
	RunToken string `json:"run_token,omitempty"`
}

func (n Notification) String() string {
	if n.RunToken != "" {
		return fmt.Sprintf("[%d] %s: %s (run=%s)", n.Seq, n.Level, n.Message, n.RunToken)
	}
	return fmt.Sprintf("[%d] %s: %s", n.Seq, n.Level, n.Message)
}

func (e *Engine) notify(level Level, token, format string, args ...any) {
	e.notes = append(e.notes, Notification{
		Seq:      e.clock.Next(),
		Level:    level,
		Message:  fmt.Sprintf(format, args...),
		RunToken: token,
	})
}

// Notifications returns every notification recorded so far, oldest first.
func (e *Engine) Notifications() []Notification {
	return append([]Notification(nil), e.notes...)
}

// DrainNotifications returns the recorded notifications and forgets them.
func (e *Engine) DrainNotifications() []Notification {
	notes := e.notes
	e.notes = nil
	return notes
}
