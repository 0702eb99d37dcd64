package sim

import (
	"fmt"
	"log"
)

var (
	demoKinds = []string{"faction", "region", "character"}
	demoRoles = []string{"ally", "rival", "neutral"}
)

// Populate creates n demo entities and parks them in the background tier
// so the first accesses have something to promote.
func (w *World) Populate(n int) error {
	for i := 0; i < n; i++ {
		kind := demoKinds[i%len(demoKinds)]
		role := demoRoles[w.rng.Intn(len(demoRoles))]
		desc := fmt.Sprintf("%s %s number %d of the outer reach", role, kind, i)

		e, err := w.Registry.Create(kind, role, desc)
		if err != nil {
			return fmt.Errorf("populate: %w", err)
		}
		e.Priority = w.rng.Intn(6)
		e.Attrs = map[string]float64{
			"wealth":    w.rng.Float64(),
			"stability": w.rng.Float64(),
			"influence": w.rng.Float64(),
		}
		if err := w.Cache.AddToBackground(e); err != nil {
			return fmt.Errorf("populate: seed %s: %w", e.ID, err)
		}
	}
	return nil
}

// ActivateKind pulls every entity of the kind into the hot tier at the
// given priority.
func ActivateKind(kind string, priority int) Effect {
	return EffectFunc(func(w *World) {
		for _, e := range w.Registry.ByKind(kind) {
			if err := w.Cache.Activate(e, priority); err != nil {
				log.Printf("sim: activate %s: %v", e.ID, err)
			}
		}
	})
}

// DemoteKind pushes every entity of the kind one tier down.
func DemoteKind(kind string) Effect {
	return EffectFunc(func(w *World) {
		for _, e := range w.Registry.ByKind(kind) {
			if err := w.Cache.MarkInactive(e); err != nil {
				log.Printf("sim: demote %s: %v", e.ID, err)
			}
		}
	})
}

// DemoEvents returns the stock catalog used by the simulate command. The
// thresholds sit close to the initial indicator values so a short run
// fires at least part of the chain.
func DemoEvents() []*Event {
	reliefEffort := &Event{
		Name:        "relief-effort",
		Description: "emergency grain and coin flow out to the provinces",
		Effects: []Effect{
			EffectFunc(func(w *World) {
				w.Economy.UnemploymentRate = clamp01(w.Economy.UnemploymentRate - 0.05)
				w.Politics.StabilityIndex = clamp01(w.Politics.StabilityIndex + 0.05)
			}),
			ActivateKind("region", 2),
		},
	}

	uprising := &Event{
		Name:        "uprising",
		Description: "the unrest hardens into open revolt",
		Triggers: []Trigger{
			TriggerFunc(func(w *World) bool { return w.Politics.StabilityIndex < 0.35 }),
		},
		Effects: []Effect{
			EffectFunc(func(w *World) {
				w.Politics.StabilityIndex = clamp01(w.Politics.StabilityIndex - 0.1)
				w.Economy.GiniCoefficient = clamp01(w.Economy.GiniCoefficient + 0.05)
			}),
			ActivateKind("character", 5),
			DemoteKind("region"),
		},
	}

	unrest := &Event{
		Name:        "unrest",
		Description: "strikes and street protests spread through the cities",
		Triggers: []Trigger{
			TriggerFunc(func(w *World) bool { return w.Politics.StabilityIndex < 0.48 }),
			TriggerFunc(func(w *World) bool { return w.Economy.UnemploymentRate > 0.11 }),
		},
		Effects: []Effect{
			EffectFunc(func(w *World) {
				w.Politics.StabilityIndex = clamp01(w.Politics.StabilityIndex - 0.05)
			}),
			ActivateKind("character", 4),
		},
		Escalations: []*Event{uprising},
	}

	marketCrash := &Event{
		Name:        "market-crash",
		Description: "credit seizes up and the exchanges tumble",
		Triggers: []Trigger{
			TriggerFunc(func(w *World) bool { return w.Economy.GiniCoefficient > 0.45 }),
		},
		Effects: []Effect{
			EffectFunc(func(w *World) {
				w.Economy.UnemploymentRate = clamp01(w.Economy.UnemploymentRate + 0.1)
				w.Politics.StabilityIndex = clamp01(w.Politics.StabilityIndex - 0.1)
			}),
			ActivateKind("faction", 5),
		},
		Consequences: []*Event{reliefEffort},
	}

	return []*Event{marketCrash, unrest}
}
