package lifecycle

import "time"

// rebalance demotes members until every tier fits its current limit.
// Immediate overflow moves to Active, Active overflow to Background, and
// Background overflow drops out of the cache entirely, bookkeeping
// included. Between the capacity passes, Active members older than the
// staleness window are forced down to Background even when Active is
// within limits. Each demotion counts one tier transition.
func (m *Manager) rebalance() {
	now := time.Now()

	for m.immediate.len() > m.immediateLimit {
		id, ok := m.findDemotionCandidate(m.immediate, 0)
		if !ok {
			break
		}
		obj, _ := m.immediate.remove(id)
		obj.SetTierState(StateActive)
		m.active.insert(id, obj)
		m.metrics.transitions++
	}

	for m.active.len() > m.activeLimit {
		id, ok := m.findDemotionCandidate(m.active, 0)
		if !ok {
			break
		}
		obj, _ := m.active.remove(id)
		obj.SetTierState(StateBackground)
		m.background.insert(id, obj)
		m.metrics.transitions++
	}

	for _, id := range m.active.ids() {
		if now.Sub(m.lastAccessed[id]) > m.cfg.StalenessWindow {
			obj, _ := m.active.remove(id)
			obj.SetTierState(StateBackground)
			m.background.insert(id, obj)
			m.metrics.transitions++
		}
	}

	for m.background.len() > m.backgroundLimit {
		id, ok := m.findDemotionCandidate(m.background, 0)
		if !ok {
			break
		}
		obj, _ := m.background.remove(id)
		obj.SetTierState(StateInactive)
		delete(m.priorities, id)
		delete(m.lastAccessed, id)
		m.metrics.transitions++
	}
}

// findDemotionCandidate picks the tier member most deserving of demotion.
// With a positive ageThreshold the scan returns the first member older
// than the threshold as soon as it sees one. Otherwise every member is
// scored age * 1/(priority+1), so older and lower-priority members score
// higher, and the highest score wins with ties resolving to the earliest
// member in container order. A member with no recorded access time reads
// as maximally old. An empty tier yields no candidate.
func (m *Manager) findDemotionCandidate(t *tier, ageThreshold time.Duration) (string, bool) {
	now := time.Now()

	var (
		bestID    string
		bestScore float64
		found     bool
	)
	for el := t.order.Front(); el != nil; el = el.Next() {
		id := el.Value.(*entry).id
		age := now.Sub(m.lastAccessed[id]).Seconds()
		if ageThreshold > 0 && age > ageThreshold.Seconds() {
			return id, true
		}
		score := age * (1.0 / float64(m.priorities[id]+1))
		if !found || score > bestScore {
			bestID, bestScore, found = id, score, true
		}
	}
	return bestID, found
}
