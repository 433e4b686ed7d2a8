package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes device manager events to an slog.Logger.
// Useful for development when you want to see events in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level. Error events are
// written at Warn level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("category", event.Category.String()),
	}

	if event.NodeID != 0 {
		attrs = append(attrs, slog.Uint64("node", uint64(event.NodeID)))
	}
	if event.ParentID != 0 {
		attrs = append(attrs, slog.Uint64("parent", uint64(event.ParentID)))
	}
	if event.Module != "" {
		attrs = append(attrs, slog.String("module", event.Module))
	}

	level := slog.LevelDebug

	switch {
	case event.Registration != nil:
		attrs = append(attrs,
			slog.String("stage", event.Registration.Stage.String()),
			slog.Int("children", event.Registration.Children),
		)
		if event.Registration.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Registration.Detail))
		}
	case event.Driver != nil:
		attrs = append(attrs,
			slog.String("action", event.Driver.Action.String()),
			slog.Int("init_count", event.Driver.InitCount),
		)
	case event.Match != nil:
		attrs = append(attrs,
			slog.String("candidate", event.Match.Candidate),
			slog.Float64("score", float64(event.Match.Score)),
			slog.Bool("selected", event.Match.Selected),
		)
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("op", event.Error.Op),
			slog.String("error_msg", event.Error.Message),
		)
	}

	a.logger.LogAttrs(context.Background(), level, "devmgr", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
