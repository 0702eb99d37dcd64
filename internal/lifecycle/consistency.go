package lifecycle

import (
	"sort"
	"time"
)

// checkConsistency verifies that no id is held by more than one tier
// container. It runs before destructive calls; a non-zero CheckInterval
// rate-limits it to once per interval, a zero interval runs it every
// time. An overlap means exclusive ownership was already broken by an
// earlier bug, so the result is an error rather than a repair.
func (m *Manager) checkConsistency() error {
	now := time.Now()
	if m.cfg.CheckInterval > 0 && now.Sub(m.lastCheck) < m.cfg.CheckInterval {
		return nil
	}
	m.lastCheck = now

	dup := make(map[string]struct{})
	for id := range m.immediate.index {
		if m.active.has(id) || m.background.has(id) {
			dup[id] = struct{}{}
		}
	}
	for id := range m.active.index {
		if m.background.has(id) {
			dup[id] = struct{}{}
		}
	}
	if len(dup) == 0 {
		return nil
	}

	ids := make([]string, 0, len(dup))
	for id := range dup {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &CorruptStateError{IDs: ids}
}
