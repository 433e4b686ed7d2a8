package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/devmgr-go/devmgr/pkg/log"
)

// Stats holds aggregate counts for a log file.
type Stats struct {
	TotalEvents int
	FirstEvent  time.Time
	LastEvent   time.Time

	Sessions   map[string]int
	Categories map[log.Category]int
	Stages     map[log.Stage]int
	Modules    map[string]int

	DriversLoaded   int
	DriversUnloaded int

	MatchCandidates int
	MatchSelected   int

	Errors map[string]int
}

func newStats() *Stats {
	return &Stats{
		Sessions:   make(map[string]int),
		Categories: make(map[log.Category]int),
		Stages:     make(map[log.Stage]int),
		Modules:    make(map[string]int),
		Errors:     make(map[string]int),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	if s.FirstEvent.IsZero() || event.Timestamp.Before(s.FirstEvent) {
		s.FirstEvent = event.Timestamp
	}
	if event.Timestamp.After(s.LastEvent) {
		s.LastEvent = event.Timestamp
	}

	s.Categories[event.Category]++
	if event.SessionID != "" {
		s.Sessions[event.SessionID]++
	}

	switch {
	case event.Registration != nil:
		s.Stages[event.Registration.Stage]++
		if event.Registration.Stage == log.StageRegistered && event.Module != "" {
			s.Modules[event.Module]++
		}
	case event.Driver != nil:
		if event.Driver.Action == log.DriverLoaded {
			s.DriversLoaded++
		} else {
			s.DriversUnloaded++
		}
	case event.Match != nil:
		s.MatchCandidates++
		if event.Match.Selected {
			s.MatchSelected++
		}
	case event.Error != nil:
		s.Errors[event.Error.Op]++
	}
}

// RunStats reads the log file and writes aggregate statistics to w.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, path, stats)
	return nil
}

var allCategories = []log.Category{
	log.CategoryRegistration,
	log.CategoryDriver,
	log.CategoryMatch,
	log.CategoryRemoval,
	log.CategoryError,
}

func printStats(w io.Writer, path string, s *Stats) {
	fmt.Fprintf(w, "=== Log Statistics: %s ===\n\n", path)
	fmt.Fprintf(w, "Total Events: %d\n", s.TotalEvents)
	if s.TotalEvents == 0 {
		return
	}

	fmt.Fprintf(w, "Time Range: %s - %s (%s)\n",
		s.FirstEvent.UTC().Format(timestampFormat),
		s.LastEvent.UTC().Format(timestampFormat),
		s.LastEvent.Sub(s.FirstEvent).Round(time.Microsecond))
	fmt.Fprintf(w, "Sessions: %d\n\n", len(s.Sessions))

	fmt.Fprintln(w, "By Category:")
	for _, c := range allCategories {
		if n := s.Categories[c]; n > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", c.String()+":", n)
		}
	}

	if len(s.Stages) > 0 {
		fmt.Fprintln(w, "\nRegistration Stages:")
		for stage := log.StageAttached; stage <= log.StageRolledBack; stage++ {
			if n := s.Stages[stage]; n > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", stage.String()+":", n)
			}
		}
	}

	if s.DriversLoaded+s.DriversUnloaded > 0 {
		fmt.Fprintln(w, "\nDrivers:")
		fmt.Fprintf(w, "  Loaded:   %d\n", s.DriversLoaded)
		fmt.Fprintf(w, "  Unloaded: %d\n", s.DriversUnloaded)
	}

	if s.MatchCandidates > 0 {
		fmt.Fprintln(w, "\nMatching:")
		fmt.Fprintf(w, "  Candidates scored: %d\n", s.MatchCandidates)
		fmt.Fprintf(w, "  Selected:          %d\n", s.MatchSelected)
		fmt.Fprintf(w, "  Rejected:          %d\n", s.MatchCandidates-s.MatchSelected)
	}

	if len(s.Modules) > 0 {
		fmt.Fprintln(w, "\nRegistered Nodes By Module:")
		for _, name := range sortedKeys(s.Modules) {
			fmt.Fprintf(w, "  %s: %d\n", name, s.Modules[name])
		}
	}

	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, op := range sortedKeys(s.Errors) {
			fmt.Fprintf(w, "  %s: %d\n", op, s.Errors[op])
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
