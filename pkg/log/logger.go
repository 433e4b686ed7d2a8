package log

import (
	"fmt"
	"strings"
)

// Logger receives device manager events. The manager calls Log inline from
// whichever goroutine performed the operation, so implementations must be
// safe for concurrent use and return quickly.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// WithCategories returns a logger forwarding to next only the events of the
// given categories. With no categories every event is forwarded.
func WithCategories(next Logger, categories ...Category) Logger {
	if len(categories) == 0 {
		return next
	}
	var keep [CategoryError + 1]bool
	for _, c := range categories {
		if c <= CategoryError {
			keep[c] = true
		}
	}
	return LoggerFunc(func(e Event) {
		if e.Category <= CategoryError && keep[e.Category] {
			next.Log(e)
		}
	})
}

// ParseCategory parses a category name, case-insensitive. "reg" is short
// for registration.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "registration", "reg":
		return CategoryRegistration, nil
	case "driver":
		return CategoryDriver, nil
	case "match":
		return CategoryMatch, nil
	case "removal":
		return CategoryRemoval, nil
	case "error":
		return CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (use registration, driver, match, removal, or error)", s)
	}
}

// ParseCategories parses a comma-separated category list. An empty string
// yields no categories.
func ParseCategories(s string) ([]Category, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []Category
	for _, part := range strings.Split(s, ",") {
		c, err := ParseCategory(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
