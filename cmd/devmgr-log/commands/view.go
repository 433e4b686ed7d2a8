// Package commands implements the devmgr-log CLI commands.
package commands

import (
	"fmt"
	"io"

	"github.com/devmgr-go/devmgr/pkg/log"
)

const timestampFormat = "2006-01-02T15:04:05.000000Z"

// RunView writes every event matching filter to w.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [node:id] CATEGORY module
	ts := event.Timestamp.UTC().Format(timestampFormat)
	fmt.Fprintf(w, "%s [node:%d] %-12s %s\n", ts, event.NodeID, event.Category, event.Module)

	if event.ParentID != 0 {
		fmt.Fprintf(w, "  Parent: %d\n", event.ParentID)
	}

	switch {
	case event.Registration != nil:
		formatRegistrationDetails(w, event.Registration)
	case event.Driver != nil:
		fmt.Fprintf(w, "  Driver: %s (init count %d)\n", event.Driver.Action, event.Driver.InitCount)
	case event.Match != nil:
		formatMatchDetails(w, event.Match)
	case event.Error != nil:
		fmt.Fprintf(w, "  Op: %s\n", event.Error.Op)
		fmt.Fprintf(w, "  Error: %s\n", event.Error.Message)
	}

	fmt.Fprintln(w)
}

func formatRegistrationDetails(w io.Writer, reg *log.RegistrationEvent) {
	fmt.Fprintf(w, "  Stage: %s\n", reg.Stage)
	if reg.Attributes > 0 {
		fmt.Fprintf(w, "  Attributes: %d\n", reg.Attributes)
	}
	if reg.Children > 0 {
		fmt.Fprintf(w, "  Children: %d\n", reg.Children)
	}
	if reg.Detail != "" {
		fmt.Fprintf(w, "  Detail: %s\n", reg.Detail)
	}
}

func formatMatchDetails(w io.Writer, m *log.MatchEvent) {
	fmt.Fprintf(w, "  Candidate: %s\n", m.Candidate)
	fmt.Fprintf(w, "  Score: %.2f", m.Score)
	if m.Selected {
		fmt.Fprint(w, " (selected)")
	}
	fmt.Fprintln(w)
	if m.Multiple {
		fmt.Fprintln(w, "  Multiple: true")
	}
}
