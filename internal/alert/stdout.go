package alert

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// StdoutAlerter prints events to a writer, stdout by default.
type StdoutAlerter struct {
	out io.Writer
}

// NewStdoutAlerter creates a new stdout alerter.
func NewStdoutAlerter() *StdoutAlerter {
	return &StdoutAlerter{out: os.Stdout}
}

// Name returns "stdout".
func (s *StdoutAlerter) Name() string {
	return "stdout"
}

// Send prints the event as one line, plus an impact line when known.
func (s *StdoutAlerter) Send(_ context.Context, event Event) error {
	out := s.out
	if out == nil {
		out = os.Stdout
	}
	icon := severityIcon(event.Severity)
	ts := event.Timestamp.Format(time.RFC3339)

	name := event.Network.Name
	if name == "" {
		name = event.Network.ID
	}
	if _, err := fmt.Fprintf(out, "%s [%s] %s %s: %s\n", icon, ts, event.EventType, name, event.Message); err != nil {
		return err
	}

	if event.Impact != nil && event.Impact.ComponentSize > 1 {
		_, err := fmt.Fprintf(out, "   Impact: %d networks in the same component\n", event.Impact.ComponentSize)
		return err
	}
	return nil
}

func severityIcon(severity string) string {
	switch severity {
	case "critical":
		return "[CRIT]"
	case "warning":
		return "[WARN]"
	case "info":
		return "[INFO]"
	default:
		return "[----]"
	}
}
