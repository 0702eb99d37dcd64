// Package sim runs a small seeded world against the cache: entities drift
// in and out of the working set as economic and political events fire, so
// every tier transition path gets exercised without live traffic.
package sim

import (
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/salthouse/workset/internal/lifecycle"
	"github.com/salthouse/workset/internal/registry"
	"github.com/salthouse/workset/internal/telemetry"
)

// Cache is the slice of the tiering cache the world drives. Both the raw
// lifecycle manager and the serialized daemon service satisfy it.
type Cache interface {
	Activate(obj lifecycle.Object, priority int) error
	AddToBackground(obj lifecycle.Object) error
	MarkInactive(obj lifecycle.Object) error
	Get(id string) (lifecycle.Object, bool)
	SetMemoryPressure(pressure float64) error
	Metrics() lifecycle.Snapshot
	Limits() lifecycle.TierLimits
	ImmediateSize() int
	ActiveSize() int
	BackgroundSize() int
}

// World holds the registry, the cache under test, the two drifting
// subsystems, and the event machinery.
type World struct {
	Registry *registry.Registry
	Cache    Cache
	Economy  *Economy
	Politics *Politics

	// Events is the catalog evaluated every tick. Each catalog event
	// fires at most once.
	Events []*Event

	// Collector, when set, receives the access traffic the world
	// generates.
	Collector *telemetry.Collector

	queue   []*Event
	history map[string]bool
	rng     *rand.Rand
	ticks   int
}

func NewWorld(reg *registry.Registry, cache Cache, seed int64) *World {
	return &World{
		Registry: reg,
		Cache:    cache,
		Economy:  NewEconomy(),
		Politics: NewPolitics(),
		history:  make(map[string]bool),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Ticks returns how many times the world has advanced.
func (w *World) Ticks() int { return w.ticks }

// FiredEvents returns the names of catalog events that have fired, sorted.
func (w *World) FiredEvents() []string {
	names := make([]string, 0, len(w.history))
	for name := range w.history {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tick advances the world once: subsystems drift, catalog triggers are
// evaluated, the event queue drains, a slice of the entity population is
// touched through the cache, and cache pressure follows tier utilization.
func (w *World) Tick() error {
	w.ticks++
	w.Economy.Update(w.rng)
	w.Politics.Update(w.rng)

	for _, ev := range w.Events {
		if w.history[ev.Name] {
			continue
		}
		if ev.fired(w) {
			w.queue = append(w.queue, ev)
			w.history[ev.Name] = true
		}
	}

	for len(w.queue) > 0 {
		ev := w.queue[0]
		w.queue = w.queue[1:]
		w.handle(ev)
	}

	w.touchEntities()
	return w.applyUtilizationPressure()
}

// handle applies an event's effects and queues its follow-ups. Escalations
// are gated on their own triggers; consequences always run.
func (w *World) handle(ev *Event) {
	log.Printf("sim: event %q: %s", ev.Name, ev.Description)
	for _, effect := range ev.Effects {
		effect.Apply(w)
	}
	for _, esc := range ev.Escalations {
		if esc.anyTrigger(w) {
			w.queue = append(w.queue, esc)
		}
	}
	w.queue = append(w.queue, ev.Consequences...)
}

// touchEntities simulates access traffic: roughly a quarter of the
// population is looked up, and anything found cold is activated.
func (w *World) touchEntities() {
	all := w.Registry.All()
	if len(all) == 0 {
		return
	}
	touches := len(all)/4 + 1
	for i := 0; i < touches; i++ {
		e := all[w.rng.Intn(len(all))]
		level := e.State.String()

		start := time.Now()
		_, ok := w.Cache.Get(e.ID)
		if w.Collector != nil {
			w.Collector.RecordLookupLatency(time.Since(start))
			w.Collector.RecordAccess(e.ID)
			if ok {
				w.Collector.RecordCacheEvent(level, true)
			} else {
				w.Collector.RecordCacheEvent("cache", false)
			}
		}
		if !ok {
			if err := w.Cache.Activate(e, e.Priority); err != nil {
				log.Printf("sim: activate %s: %v", e.ID, err)
			}
		}
	}
}

// applyUtilizationPressure derives a synthetic pressure signal from how
// full the tiers are, so capacity adapts even without a live memory
// monitor.
func (w *World) applyUtilizationPressure() error {
	limits := w.Cache.Limits()
	capacity := limits.Immediate + limits.Active + limits.Background
	if capacity <= 0 {
		return nil
	}
	resident := w.Cache.ImmediateSize() + w.Cache.ActiveSize() + w.Cache.BackgroundSize()
	p := float64(resident) / float64(capacity)
	if p > 1 {
		p = 1
	}
	return w.Cache.SetMemoryPressure(p)
}
