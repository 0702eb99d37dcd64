package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/salthouse/workset/internal/lifecycle"
	"github.com/salthouse/workset/internal/registry"
	"github.com/salthouse/workset/internal/store"
	"github.com/salthouse/workset/internal/telemetry"
)

// Service is the serialized front door to the cache. The lifecycle manager
// and the registry do no locking of their own, so every caller in the
// daemon, HTTP handlers and the pressure monitor alike, goes through here
// and takes the one mutex. Entities handed back for responses are clones
// taken under the lock; live pointers never leave it.
type Service struct {
	mu        sync.Mutex
	cache     *lifecycle.Manager
	registry  *registry.Registry
	collector *telemetry.Collector
	db        *store.DB
}

// NewService wraps the given components. A nil collector gets replaced
// with a fresh one; db may be nil for a memory-only service.
func NewService(cache *lifecycle.Manager, reg *registry.Registry, collector *telemetry.Collector, db *store.DB) *Service {
	if collector == nil {
		collector = telemetry.NewCollector()
	}
	return &Service{
		cache:     cache,
		registry:  reg,
		collector: collector,
		db:        db,
	}
}

// switchTimed runs one tier move and records its latency on success.
// Callers hold the mutex.
func (s *Service) switchTimed(op func() error) error {
	start := time.Now()
	if err := op(); err != nil {
		return err
	}
	s.collector.RecordTierSwitchLatency(time.Since(start))
	return nil
}

// persist writes the entity row after a placement change. The move itself
// already happened in memory, so a failed write is logged, not returned.
func (s *Service) persist(e *registry.Entity) {
	if err := s.registry.Persist(e); err != nil {
		log.Printf("server: persist %s: %v", e.ID, err)
	}
}

// Activate places obj in the hot tier at the given priority.
func (s *Service) Activate(obj lifecycle.Object, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchTimed(func() error { return s.cache.Activate(obj, priority) })
}

// AddToBackground parks obj in the background tier.
func (s *Service) AddToBackground(obj lifecycle.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchTimed(func() error { return s.cache.AddToBackground(obj) })
}

// MarkInactive demotes obj one tier.
func (s *Service) MarkInactive(obj lifecycle.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchTimed(func() error { return s.cache.MarkInactive(obj) })
}

// Deactivate drops obj out of the cache entirely.
func (s *Service) Deactivate(obj lifecycle.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchTimed(func() error { return s.cache.Deactivate(obj) })
}

// Get is the plain serialized cache lookup. Use Lookup when the access
// should show up in telemetry.
func (s *Service) Get(id string) (lifecycle.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(id)
}

// ActivateObject activates the registered entity by id and returns its
// post-move snapshot. A nil priority keeps the entity's stored priority;
// an explicit one replaces it.
func (s *Service) ActivateObject(id string, priority *int) (*registry.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	p := e.Priority
	if priority != nil {
		p = *priority
	}
	if err := s.switchTimed(func() error { return s.cache.Activate(e, p) }); err != nil {
		return nil, err
	}
	e.Priority = p
	s.persist(e)
	return e.Clone(), nil
}

// BackgroundObject parks the registered entity in the background tier.
func (s *Service) BackgroundObject(id string) (*registry.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.switchTimed(func() error { return s.cache.AddToBackground(e) }); err != nil {
		return nil, err
	}
	s.persist(e)
	return e.Clone(), nil
}

// DemoteObject moves the registered entity one tier down.
func (s *Service) DemoteObject(id string) (*registry.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.switchTimed(func() error { return s.cache.MarkInactive(e) }); err != nil {
		return nil, err
	}
	s.persist(e)
	return e.Clone(), nil
}

// DeactivateObject drops the registered entity out of the cache.
func (s *Service) DeactivateObject(id string) (*registry.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.switchTimed(func() error { return s.cache.Deactivate(e) }); err != nil {
		return nil, err
	}
	s.persist(e)
	return e.Clone(), nil
}

// Restore replays persisted tier placements into the cache. Containers
// start cold on every boot, so each entity is reset to inactive and then
// re-placed where its row says it was: background first, then active
// rows (which enter through the hot tier and step down once), then
// immediate. Returns how many entities came back resident.
func (s *Service) Restore() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTier := make(map[lifecycle.State][]*registry.Entity)
	for _, e := range s.registry.All() {
		if e.State == lifecycle.StateInactive {
			continue
		}
		byTier[e.State] = append(byTier[e.State], e)
		e.State = lifecycle.StateInactive
	}

	placed := 0
	for _, e := range byTier[lifecycle.StateBackground] {
		if err := s.cache.AddToBackground(e); err != nil {
			return placed, fmt.Errorf("restore %s to background: %w", e.ID, err)
		}
		placed++
	}
	for _, e := range byTier[lifecycle.StateActive] {
		if err := s.cache.Activate(e, e.Priority); err != nil {
			return placed, fmt.Errorf("restore %s to active: %w", e.ID, err)
		}
		if err := s.cache.MarkInactive(e); err != nil {
			return placed, fmt.Errorf("restore %s to active: %w", e.ID, err)
		}
		placed++
	}
	for _, e := range byTier[lifecycle.StateImmediate] {
		if err := s.cache.Activate(e, e.Priority); err != nil {
			return placed, fmt.Errorf("restore %s to immediate: %w", e.ID, err)
		}
		placed++
	}
	return placed, nil
}

// Lookup resolves id through the cache and records the access: latency,
// per-object count, and a hit under the tier the object was resident in
// before the lookup promoted it. Misses are recorded against the cache as
// a whole. The snapshot is returned only when the entity is resident.
func (s *Service) Lookup(id string) (*registry.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.registry.Get(id)
	level := "cache"
	before := lifecycle.StateInactive
	if err == nil {
		level = e.State.String()
		before = e.State
	}

	start := time.Now()
	_, resident := s.cache.Get(id)
	s.collector.RecordLookupLatency(time.Since(start))
	s.collector.RecordAccess(id)
	if resident {
		s.collector.RecordCacheEvent(level, true)
	} else {
		s.collector.RecordCacheEvent("cache", false)
	}

	if err != nil || !resident {
		return nil, false
	}
	if e.State != before {
		s.persist(e)
	}
	return e.Clone(), true
}

// SetMemoryPressure forwards a pressure sample to the cache. It satisfies
// pressure.Sink.
func (s *Service) SetMemoryPressure(pressure float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.SetMemoryPressure(pressure)
}

// Metrics returns the cache counters.
func (s *Service) Metrics() lifecycle.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Metrics()
}

// Limits returns the current tier capacities.
func (s *Service) Limits() lifecycle.TierLimits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Limits()
}

// Pressure returns the last accepted pressure sample.
func (s *Service) Pressure() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Pressure()
}

func (s *Service) ImmediateSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.ImmediateSize()
}

func (s *Service) ActiveSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.ActiveSize()
}

func (s *Service) BackgroundSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.BackgroundSize()
}

// Analyze returns the collector's current read of the traffic.
func (s *Service) Analyze() telemetry.Analysis {
	return s.collector.Analyze()
}

// SaveSnapshot persists one combined metrics row.
func (s *Service) SaveSnapshot() (*store.MetricsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("save snapshot: no store attached")
	}
	return s.collector.SaveTo(s.db, s.cache.Metrics())
}

// Entity returns a snapshot of the live registry entity for id.
func (s *Service) Entity(id string) (*registry.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// Entities lists live entities, optionally filtered by kind and role.
func (s *Service) Entities(kind, role string) []*registry.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*registry.Entity
	switch {
	case kind != "" && role != "":
		for _, e := range s.registry.ByKind(kind) {
			if e.Role == role {
				list = append(list, e)
			}
		}
	case kind != "":
		list = s.registry.ByKind(kind)
	case role != "":
		list = s.registry.ByRole(role)
	default:
		list = s.registry.All()
	}

	out := make([]*registry.Entity, len(list))
	for i, e := range list {
		out[i] = e.Clone()
	}
	return out
}

// CreateEntity registers a new entity. Priority and attrs are applied in
// the same write so the persisted row is complete from the start.
func (s *Service) CreateEntity(kind, role, description string, priority int, attrs map[string]float64) (*registry.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.registry.Create(kind, role, description)
	if err != nil {
		return nil, err
	}
	if priority != 0 || len(attrs) > 0 {
		e.Priority = priority
		e.Attrs = attrs
		if err := s.registry.Persist(e); err != nil {
			return nil, err
		}
	}
	return e.Clone(), nil
}

// DeleteEntity drops the entity from the cache if resident, then removes
// it from the registry.
func (s *Service) DeleteEntity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if e.State != lifecycle.StateInactive {
		if err := s.switchTimed(func() error { return s.cache.Deactivate(e) }); err != nil {
			return err
		}
	}
	return s.registry.Delete(id)
}

// Similar runs a nearest-neighbour search around id, optionally restricted
// to one kind.
func (s *Service) Similar(id string, k int, minSim float64, kind string) ([]registry.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var filter func(*registry.Entity) bool
	if kind != "" {
		filter = func(e *registry.Entity) bool { return e.Kind == kind }
	}
	matches, err := s.registry.FindSimilar(id, k, minSim, filter)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i].Entity = matches[i].Entity.Clone()
	}
	return matches, nil
}
