// Package lifecycle implements a tiered working-set cache for context
// objects. Tracked objects live in one of three resident tiers, Immediate,
// Active and Background, ordered by how soon they are expected to be
// needed; everything else is Inactive, which is not a container but the
// absence of one. Objects move between tiers through explicit placement
// calls, capacity-driven demotion and read-triggered promotion.
//
// A Manager does no locking and no I/O of its own. Concurrent access must
// be serialized by the caller.
package lifecycle

import (
	"fmt"
	"time"
)

// Object is the capability surface the cache requires of anything it
// tracks. The cache holds a single reference per object and moves that
// reference between tiers; payloads are never copied.
type Object interface {
	// ContextID returns the object's stable identity. An empty id is
	// rejected as invalid.
	ContextID() string
	TierState() State
	SetTierState(State)
	LastAccessed() time.Time
	SetLastAccessed(time.Time)
}

// Base tier capacities and timing defaults.
const (
	DefaultImmediateLimit  = 30
	DefaultActiveLimit     = 200
	DefaultBackgroundLimit = 500

	// DefaultStalenessWindow bounds how long an Active member may sit
	// untouched before a rebalance forces it down to Background.
	DefaultStalenessWindow = 300 * time.Second

	// DefaultCheckInterval rate-limits the cross-tier consistency check
	// that runs before destructive calls.
	DefaultCheckInterval = 100 * time.Millisecond
)

// Config carries the tunable knobs of a Manager.
type Config struct {
	// Base capacity per tier before pressure adjustment. Zero or negative
	// means the package default.
	BaseImmediateLimit  int
	BaseActiveLimit     int
	BaseBackgroundLimit int

	// CheckInterval rate-limits the consistency check. Zero means check
	// on every destructive call.
	CheckInterval time.Duration

	// StalenessWindow is the age beyond which Active members are demoted
	// during a rebalance regardless of capacity. Zero means the default.
	StalenessWindow time.Duration
}

// DefaultConfig returns the production defaults: 30/200/500 capacities,
// a 100ms consistency check interval and a 300s staleness window.
func DefaultConfig() Config {
	return Config{
		BaseImmediateLimit:  DefaultImmediateLimit,
		BaseActiveLimit:     DefaultActiveLimit,
		BaseBackgroundLimit: DefaultBackgroundLimit,
		CheckInterval:       DefaultCheckInterval,
		StalenessWindow:     DefaultStalenessWindow,
	}
}

// Manager owns the three tier containers and all placement bookkeeping.
type Manager struct {
	cfg Config

	immediate  *tier
	active     *tier
	background *tier

	priorities   map[string]int
	lastAccessed map[string]time.Time

	immediateLimit  int
	activeLimit     int
	backgroundLimit int

	pressure        float64
	pressureHistory []float64
	peakPressure    float64

	lastCheck time.Time

	metrics accumulator
}

// New constructs a Manager from cfg. Zero-valued capacity and staleness
// fields fall back to package defaults; a zero CheckInterval is meaningful
// and makes the consistency check run every time.
func New(cfg Config) *Manager {
	if cfg.BaseImmediateLimit <= 0 {
		cfg.BaseImmediateLimit = DefaultImmediateLimit
	}
	if cfg.BaseActiveLimit <= 0 {
		cfg.BaseActiveLimit = DefaultActiveLimit
	}
	if cfg.BaseBackgroundLimit <= 0 {
		cfg.BaseBackgroundLimit = DefaultBackgroundLimit
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	return &Manager{
		cfg:             cfg,
		immediate:       newTier(),
		active:          newTier(),
		background:      newTier(),
		priorities:      make(map[string]int),
		lastAccessed:    make(map[string]time.Time),
		immediateLimit:  cfg.BaseImmediateLimit,
		activeLimit:     cfg.BaseActiveLimit,
		backgroundLimit: cfg.BaseBackgroundLimit,
		metrics:         newAccumulator(),
	}
}

func validateObject(obj Object) error {
	if obj == nil {
		return fmt.Errorf("%w: nil object", ErrInvalidObject)
	}
	if obj.ContextID() == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidObject)
	}
	if !obj.TierState().known() {
		return fmt.Errorf("%w: unrecognized state %v", ErrInvalidObject, obj.TierState())
	}
	return nil
}

// Activate places obj in the Immediate tier with the given priority and
// stamps its access time. Activating an object already resident in
// Immediate is a no-op: nothing is counted and no timestamps move. When
// the insert pushes Immediate past its limit a full rebalance runs before
// returning.
func (m *Manager) Activate(obj Object, priority int) error {
	defer m.metrics.timeOp("activate")()

	if err := validateObject(obj); err != nil {
		return err
	}
	id := obj.ContextID()
	if m.immediate.has(id) {
		return nil
	}
	if err := validateTransition(obj.TierState(), StateImmediate); err != nil {
		return err
	}

	now := time.Now()
	m.priorities[id] = priority
	m.lastAccessed[id] = now
	obj.SetLastAccessed(now)

	m.active.remove(id)
	m.background.remove(id)

	obj.SetTierState(StateImmediate)
	m.immediate.insert(id, obj)
	m.metrics.transitions++

	if m.immediate.len() > m.immediateLimit {
		m.rebalance()
	}
	return nil
}

// MarkInactive demotes obj exactly one level: Immediate to Active, or
// Active to Background. Calling it on a Background resident is a
// transition error; dropping out of Background entirely goes through
// Deactivate. An object resident in no tier is left untouched.
func (m *Manager) MarkInactive(obj Object) error {
	if err := validateObject(obj); err != nil {
		return err
	}
	if err := m.checkConsistency(); err != nil {
		return err
	}

	id := obj.ContextID()
	now := time.Now()

	switch {
	case m.immediate.has(id):
		if err := validateTransition(obj.TierState(), StateActive); err != nil {
			return err
		}
		resident, _ := m.immediate.remove(id)
		resident.SetTierState(StateActive)
		m.active.insert(id, resident)
		m.lastAccessed[id] = now
		m.metrics.transitions++
	case m.active.has(id):
		if err := validateTransition(obj.TierState(), StateBackground); err != nil {
			return err
		}
		resident, _ := m.active.remove(id)
		resident.SetTierState(StateBackground)
		m.background.insert(id, resident)
		m.lastAccessed[id] = now
		m.metrics.transitions++
	case m.background.has(id):
		return &TransitionError{From: StateBackground, To: StateInactive}
	}
	return nil
}

// AddToBackground places obj directly in the Background tier, removing it
// from Immediate or Active first if resident there. Adding an object that
// is already in Background is a transition error.
func (m *Manager) AddToBackground(obj Object) error {
	if err := validateObject(obj); err != nil {
		return err
	}
	if err := validateTransition(obj.TierState(), StateBackground); err != nil {
		return err
	}

	id := obj.ContextID()
	m.immediate.remove(id)
	m.active.remove(id)

	now := time.Now()
	m.lastAccessed[id] = now
	obj.SetLastAccessed(now)

	obj.SetTierState(StateBackground)
	m.background.insert(id, obj)
	m.metrics.transitions++
	return nil
}

// Deactivate removes obj from whichever tier holds it and clears its
// priority and access bookkeeping. Deactivating an already-Inactive
// object is a transition error and mutates nothing.
func (m *Manager) Deactivate(obj Object) error {
	defer m.metrics.timeOp("deactivate")()

	if err := validateObject(obj); err != nil {
		return err
	}
	if obj.TierState() == StateInactive {
		return &TransitionError{From: StateInactive, To: StateInactive}
	}
	if err := m.checkConsistency(); err != nil {
		return err
	}

	id := obj.ContextID()
	if m.immediate.has(id) || m.active.has(id) || m.background.has(id) {
		m.metrics.transitions++
	}
	m.immediate.remove(id)
	m.active.remove(id)
	m.background.remove(id)

	obj.SetTierState(StateInactive)
	delete(m.priorities, id)
	delete(m.lastAccessed, id)
	return nil
}

// Get looks id up in Immediate, then Active, then Background. A hit in
// Immediate refreshes the access time and nothing else. A hit in a lower
// tier promotes the object one level, but only when the level above has
// spare capacity; Get never evicts to make room and never stamps
// timestamps on promotion. A lookup that finds nothing counts as a miss.
func (m *Manager) Get(id string) (Object, bool) {
	now := time.Now()

	if obj, ok := m.immediate.get(id); ok {
		m.metrics.hits++
		obj.SetLastAccessed(now)
		m.lastAccessed[id] = now
		return obj, true
	}

	if obj, ok := m.active.get(id); ok {
		m.metrics.hits++
		if m.immediate.len() < m.immediateLimit {
			m.active.remove(id)
			obj.SetTierState(StateImmediate)
			m.immediate.insert(id, obj)
			m.metrics.transitions++
		}
		return obj, true
	}

	if obj, ok := m.background.get(id); ok {
		m.metrics.hits++
		if m.active.len() < m.activeLimit {
			m.background.remove(id)
			obj.SetTierState(StateActive)
			m.active.insert(id, obj)
			m.metrics.transitions++
		}
		return obj, true
	}

	m.metrics.misses++
	return nil, false
}

// ImmediateSize returns the number of Immediate residents.
func (m *Manager) ImmediateSize() int { return m.immediate.len() }

// ActiveSize returns the number of Active residents.
func (m *Manager) ActiveSize() int { return m.active.len() }

// BackgroundSize returns the number of Background residents.
func (m *Manager) BackgroundSize() int { return m.background.len() }

// TierLimits holds the current pressure-adjusted capacity of each tier.
type TierLimits struct {
	Immediate  int `json:"immediate"`
	Active     int `json:"active"`
	Background int `json:"background"`
}

// Limits returns the current capacity limits.
func (m *Manager) Limits() TierLimits {
	return TierLimits{
		Immediate:  m.immediateLimit,
		Active:     m.activeLimit,
		Background: m.backgroundLimit,
	}
}

// Pressure returns the most recent accepted memory pressure sample.
func (m *Manager) Pressure() float64 { return m.pressure }
