package device

import (
	"strconv"

	"github.com/devmgr-go/devmgr/pkg/attr"
	"github.com/devmgr-go/devmgr/pkg/log"
)

// registerDynamic scores every candidate driver against n. With
// FindMultipleChildren every supporting candidate registers; otherwise only
// the best one does, ties going to the first found.
func (n *Node) registerDynamic(flags uint32) {
	m := n.manager
	multiple := flags&attr.FindMultipleChildren != 0

	m.emit(n, log.Event{
		Category:     log.CategoryRegistration,
		Registration: &log.RegistrationEvent{Stage: log.StageDynamic},
	})

	var (
		best      matcher
		bestName  string
		bestScore float32
	)

	m.forEachCandidate(n, func(name string, d matcher) bool {
		score := d.SupportsDevice(n)
		matchScore.Observe(float64(score))

		if multiple {
			if score <= 0 {
				m.emitMatch(n, name, score, false, true)
				return false
			}
			n.registerCandidate(name, d, score, true)
			return false
		}

		if score > bestScore {
			if best != nil {
				m.emitMatch(n, bestName, bestScore, false, false)
				n.putCandidate(bestName)
			}
			best, bestName, bestScore = d, name, score
			// keep the reference to the best candidate
			return true
		}
		m.emitMatch(n, name, score, false, false)
		return false
	})

	if best == nil {
		return
	}
	n.registerCandidate(bestName, best, bestScore, false)
	n.putCandidate(bestName)
}

// registerCandidate lets d publish its child of n and records the score on it.
func (n *Node) registerCandidate(name string, d matcher, score float32, multiple bool) {
	m := n.manager
	if err := d.RegisterDevice(n); err != nil {
		m.debugLog("candidate registration failed", "node", n.id, "candidate", name, "error", err)
		m.emitError(n, "register_device", err)
		m.emitMatch(n, name, score, false, multiple)
		return
	}
	if child := n.childByModule(name); child != nil {
		m.mu.Lock()
		child.score = score
		m.mu.Unlock()
	}
	m.emitMatch(n, name, score, true, multiple)
}

func (n *Node) putCandidate(name string) {
	if err := n.manager.registry.Put(name); err != nil {
		n.manager.debugLog("module release failed", "module", name, "error", err)
	}
}

// forEachCandidate loads every driver under the configured search paths,
// other than n's own module, that can score and register devices. fn returns
// true to keep the module reference; otherwise it is released right away.
// Modules that fail to load are skipped.
func (m *Manager) forEachCandidate(n *Node, fn func(name string, d matcher) bool) {
	seen := make(map[string]bool)
	for _, prefix := range m.config.SearchPaths {
		list := m.registry.OpenList(prefix, m.config.Version)
		for {
			name, err := list.ReadNext()
			if err != nil {
				break
			}
			if name == n.moduleName || seen[name] {
				continue
			}
			seen[name] = true

			mod, err := m.registry.Get(name)
			if err != nil {
				m.debugLog("skipping candidate", "candidate", name, "error", err)
				continue
			}
			d, ok := asMatcher(mod)
			if !ok {
				n.putCandidate(name)
				continue
			}
			if !fn(name, d) {
				n.putCandidate(name)
			}
		}
		list.Close()
	}
}

func (m *Manager) emitMatch(n *Node, candidate string, score float32, selected, multiple bool) {
	matchCandidatesTotal.WithLabelValues(strconv.FormatBool(selected)).Inc()
	m.emit(n, log.Event{
		Category: log.CategoryMatch,
		Match: &log.MatchEvent{
			Candidate: candidate,
			Score:     score,
			Selected:  selected,
			Multiple:  multiple,
		},
	})
}

// probeClasses maps probe paths to the device class they select.
var probeClasses = map[string]uint16{
	"disk":     attr.ClassMassStorage,
	"net":      attr.ClassNetwork,
	"graphics": attr.ClassDisplay,
	"audio":    attr.ClassMultimedia,
	"video":    attr.ClassMultimedia,
}

// probeMatches reports whether a probe of path covers n. Nodes without a
// device type match every path, and the empty path matches every node.
func probeMatches(n *Node, path string) bool {
	if path == "" {
		return true
	}
	a, ok := n.FindAttr(attr.DeviceType, attr.TypeUint16, false)
	if !ok {
		return true
	}
	class, known := probeClasses[path]
	if !known {
		return false
	}
	typ, _ := a.Uint16()
	return typ == class
}
