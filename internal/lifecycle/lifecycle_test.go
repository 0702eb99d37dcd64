package lifecycle

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// testObject is a minimal Object implementation for cache tests.
type testObject struct {
	id       string
	state    State
	accessed time.Time
}

func newTestObject(id string) *testObject { return &testObject{id: id} }

func (o *testObject) ContextID() string           { return o.id }
func (o *testObject) TierState() State            { return o.state }
func (o *testObject) SetTierState(s State)        { o.state = s }
func (o *testObject) LastAccessed() time.Time     { return o.accessed }
func (o *testObject) SetLastAccessed(t time.Time) { o.accessed = t }

// testManager returns a Manager with default capacities and the
// consistency check running on every destructive call.
func testManager(t *testing.T) *Manager {
	t.Helper()
	return New(Config{})
}

// residentTiers reports every tier currently holding id.
func residentTiers(m *Manager, id string) []State {
	var states []State
	if m.immediate.has(id) {
		states = append(states, StateImmediate)
	}
	if m.active.has(id) {
		states = append(states, StateActive)
	}
	if m.background.has(id) {
		states = append(states, StateBackground)
	}
	return states
}

func TestActivatePlacesInImmediate(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")

	if err := m.Activate(obj, 0); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if obj.state != StateImmediate {
		t.Errorf("state = %v, want %v", obj.state, StateImmediate)
	}
	if m.ImmediateSize() != 1 {
		t.Errorf("immediate size = %d, want 1", m.ImmediateSize())
	}
	if obj.accessed.IsZero() {
		t.Error("expected access time to be stamped")
	}
	if got := m.Metrics().TierTransitions; got != 1 {
		t.Errorf("transitions = %d, want 1", got)
	}
}

func TestActivateAlreadyImmediateIsNoOp(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")

	if err := m.Activate(obj, 0); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	stamped := obj.accessed

	if err := m.Activate(obj, 3); err != nil {
		t.Fatalf("second Activate: %v", err)
	}

	if obj.accessed != stamped {
		t.Error("no-op activation must not refresh the access time")
	}
	snap := m.Metrics()
	if snap.TierTransitions != 1 {
		t.Errorf("transitions = %d, want 1", snap.TierTransitions)
	}
	if snap.ActivationCount != 2 {
		t.Errorf("activation count = %d, want 2", snap.ActivationCount)
	}
	if m.priorities["obj-1"] != 0 {
		t.Errorf("priority = %d, want original 0", m.priorities["obj-1"])
	}
}

func TestActivateFromBackground(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")

	if err := m.AddToBackground(obj); err != nil {
		t.Fatalf("AddToBackground: %v", err)
	}
	if err := m.Activate(obj, 2); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if m.BackgroundSize() != 0 || m.ImmediateSize() != 1 {
		t.Errorf("sizes = %d/%d/%d, want 1/0/0",
			m.ImmediateSize(), m.ActiveSize(), m.BackgroundSize())
	}
	if obj.state != StateImmediate {
		t.Errorf("state = %v, want %v", obj.state, StateImmediate)
	}
	if got := m.Metrics().TierTransitions; got != 2 {
		t.Errorf("transitions = %d, want 2", got)
	}
}

func TestActivateInvalidObject(t *testing.T) {
	m := testManager(t)

	tests := []struct {
		name string
		obj  Object
	}{
		{"nil object", nil},
		{"missing id", newTestObject("")},
		{"unrecognized state", &testObject{id: "obj-1", state: State(42)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Activate(tt.obj, 0)
			if !errors.Is(err, ErrInvalidObject) {
				t.Errorf("err = %v, want ErrInvalidObject", err)
			}
		})
	}
}

func TestMarkInactiveChain(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")

	if err := m.Activate(obj, 0); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	if err := m.MarkInactive(obj); err != nil {
		t.Fatalf("MarkInactive from immediate: %v", err)
	}
	if obj.state != StateActive || m.ActiveSize() != 1 || m.ImmediateSize() != 0 {
		t.Fatalf("after first demotion: state=%v immediate=%d active=%d",
			obj.state, m.ImmediateSize(), m.ActiveSize())
	}

	if err := m.MarkInactive(obj); err != nil {
		t.Fatalf("MarkInactive from active: %v", err)
	}
	if obj.state != StateBackground || m.BackgroundSize() != 1 {
		t.Fatalf("after second demotion: state=%v background=%d",
			obj.state, m.BackgroundSize())
	}

	err := m.MarkInactive(obj)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err %T does not unwrap to *TransitionError", err)
	}
	if te.From != StateBackground || te.To != StateInactive {
		t.Errorf("transition = %v -> %v, want background -> inactive", te.From, te.To)
	}
	if m.BackgroundSize() != 1 {
		t.Error("failed demotion must leave the object resident")
	}
}

func TestMarkInactiveUntrackedIsNoOp(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("ghost")

	if err := m.MarkInactive(obj); err != nil {
		t.Fatalf("MarkInactive: %v", err)
	}
	if states := residentTiers(m, "ghost"); len(states) != 0 {
		t.Errorf("untracked object became resident in %v", states)
	}
}

func TestAddToBackgroundTwice(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")

	if err := m.AddToBackground(obj); err != nil {
		t.Fatalf("AddToBackground: %v", err)
	}
	err := m.AddToBackground(obj)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second add: err = %v, want ErrInvalidTransition", err)
	}
	if m.BackgroundSize() != 1 {
		t.Errorf("background size = %d, want 1", m.BackgroundSize())
	}
}

func TestDeactivateClearsBookkeeping(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")

	if err := m.Activate(obj, 7); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := m.Deactivate(obj); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	if obj.state != StateInactive {
		t.Errorf("state = %v, want %v", obj.state, StateInactive)
	}
	if states := residentTiers(m, "obj-1"); len(states) != 0 {
		t.Errorf("still resident in %v", states)
	}
	if _, ok := m.priorities["obj-1"]; ok {
		t.Error("priority not cleared")
	}
	if _, ok := m.lastAccessed["obj-1"]; ok {
		t.Error("access time not cleared")
	}
	if got := m.Metrics().TierTransitions; got != 2 {
		t.Errorf("transitions = %d, want 2", got)
	}
}

func TestDeactivateFromEachTier(t *testing.T) {
	tests := []struct {
		name  string
		place func(m *Manager, obj *testObject) error
	}{
		{"immediate", func(m *Manager, obj *testObject) error {
			return m.Activate(obj, 0)
		}},
		{"active", func(m *Manager, obj *testObject) error {
			if err := m.Activate(obj, 0); err != nil {
				return err
			}
			return m.MarkInactive(obj)
		}},
		{"background", func(m *Manager, obj *testObject) error {
			return m.AddToBackground(obj)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testManager(t)
			obj := newTestObject("obj-1")
			if err := tt.place(m, obj); err != nil {
				t.Fatalf("place: %v", err)
			}
			if err := m.Deactivate(obj); err != nil {
				t.Fatalf("Deactivate: %v", err)
			}
			if obj.state != StateInactive {
				t.Errorf("state = %v, want %v", obj.state, StateInactive)
			}
			if states := residentTiers(m, "obj-1"); len(states) != 0 {
				t.Errorf("still resident in %v", states)
			}
		})
	}
}

func TestDeactivateInactiveFails(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")

	err := m.Deactivate(obj)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err %T does not unwrap to *TransitionError", err)
	}
	if te.From != StateInactive || te.To != StateInactive {
		t.Errorf("transition = %v -> %v, want inactive -> inactive", te.From, te.To)
	}
	if got := m.Metrics().TierTransitions; got != 0 {
		t.Errorf("transitions = %d, want 0", got)
	}
}

func TestGetMiss(t *testing.T) {
	m := testManager(t)

	obj, ok := m.Get("nope")
	if ok || obj != nil {
		t.Fatalf("Get = %v, %v; want nil, false", obj, ok)
	}
	if got := m.Metrics().CacheMisses; got != 1 {
		t.Errorf("misses = %d, want 1", got)
	}
}

func TestGetImmediateHitRefreshesAccess(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")
	if err := m.Activate(obj, 0); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	stale := time.Now().Add(-time.Hour)
	m.lastAccessed["obj-1"] = stale
	obj.accessed = stale

	got, ok := m.Get("obj-1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.(*testObject) != obj {
		t.Fatal("hit returned a different reference")
	}
	if !m.lastAccessed["obj-1"].After(stale) {
		t.Error("hit did not refresh the access time")
	}
	if obj.state != StateImmediate {
		t.Errorf("state = %v, want %v", obj.state, StateImmediate)
	}
	if hits := m.Metrics().CacheHits; hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
}

func TestGetPromotesFromActive(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")
	if err := m.Activate(obj, 0); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := m.MarkInactive(obj); err != nil {
		t.Fatalf("MarkInactive: %v", err)
	}

	got, ok := m.Get("obj-1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.TierState() != StateImmediate {
		t.Errorf("state = %v, want %v", got.TierState(), StateImmediate)
	}
	if m.ImmediateSize() != 1 || m.ActiveSize() != 0 {
		t.Errorf("sizes = %d/%d, want 1/0", m.ImmediateSize(), m.ActiveSize())
	}
}

func TestGetSkipsPromotionWhenImmediateFull(t *testing.T) {
	m := New(Config{BaseImmediateLimit: 2, BaseActiveLimit: 10, BaseBackgroundLimit: 10})

	a := newTestObject("a")
	b := newTestObject("b")
	c := newTestObject("c")
	for _, obj := range []*testObject{a, b, c} {
		if err := m.Activate(obj, 0); err != nil {
			t.Fatalf("Activate %s: %v", obj.id, err)
		}
	}
	// Activating c pushed the oldest member down to Active.
	if a.state != StateActive {
		t.Fatalf("a state = %v, want %v", a.state, StateActive)
	}

	got, ok := m.Get("a")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.TierState() != StateActive {
		t.Errorf("full Immediate must not accept promotions: state = %v", got.TierState())
	}
	if m.ImmediateSize() != 2 || m.ActiveSize() != 1 {
		t.Errorf("sizes = %d/%d, want 2/1", m.ImmediateSize(), m.ActiveSize())
	}
}

func TestGetPromotesFromBackgroundOneLevel(t *testing.T) {
	m := testManager(t)
	obj := newTestObject("obj-1")
	if err := m.AddToBackground(obj); err != nil {
		t.Fatalf("AddToBackground: %v", err)
	}

	got, ok := m.Get("obj-1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.TierState() != StateActive {
		t.Errorf("state = %v, want %v (one level up, never two)", got.TierState(), StateActive)
	}
	if m.ActiveSize() != 1 || m.BackgroundSize() != 0 {
		t.Errorf("sizes active/background = %d/%d, want 1/0", m.ActiveSize(), m.BackgroundSize())
	}
}

func TestGetSkipsPromotionWhenActiveFull(t *testing.T) {
	m := New(Config{BaseImmediateLimit: 5, BaseActiveLimit: 1, BaseBackgroundLimit: 10})

	parked := newTestObject("parked")
	if err := m.Activate(parked, 0); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := m.MarkInactive(parked); err != nil {
		t.Fatalf("MarkInactive: %v", err)
	}

	obj := newTestObject("obj-1")
	if err := m.AddToBackground(obj); err != nil {
		t.Fatalf("AddToBackground: %v", err)
	}

	got, ok := m.Get("obj-1")
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.TierState() != StateBackground {
		t.Errorf("full Active must not accept promotions: state = %v", got.TierState())
	}
}

func TestExclusiveOwnershipThroughout(t *testing.T) {
	m := testManager(t)

	objs := make([]*testObject, 3)
	for i := range objs {
		objs[i] = newTestObject(fmt.Sprintf("obj-%d", i))
	}

	steps := []struct {
		name string
		op   func() error
	}{
		{"activate 0", func() error { return m.Activate(objs[0], 0) }},
		{"activate 1", func() error { return m.Activate(objs[1], 1) }},
		{"background 2", func() error { return m.AddToBackground(objs[2]) }},
		{"demote 0", func() error { return m.MarkInactive(objs[0]) }},
		{"activate 2", func() error { return m.Activate(objs[2], 0) }},
		{"demote 0 again", func() error { return m.MarkInactive(objs[0]) }},
		{"deactivate 1", func() error { return m.Deactivate(objs[1]) }},
		{"activate 0", func() error { return m.Activate(objs[0], 2) }},
	}
	for _, step := range steps {
		if err := step.op(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		for _, obj := range objs {
			states := residentTiers(m, obj.id)
			if len(states) > 1 {
				t.Fatalf("after %s: %s resident in %v", step.name, obj.id, states)
			}
			// Residency and the object's own state must agree.
			if len(states) == 1 && states[0] != obj.state {
				t.Fatalf("after %s: %s resident in %v but reports %v",
					step.name, obj.id, states[0], obj.state)
			}
			if len(states) == 0 && obj.state != StateInactive {
				t.Fatalf("after %s: %s resident nowhere but reports %v",
					step.name, obj.id, obj.state)
			}
		}
		if err := m.checkConsistency(); err != nil {
			t.Fatalf("after %s: %v", step.name, err)
		}
	}
}

func TestCorruptStateDetected(t *testing.T) {
	m := testManager(t)

	// Plant the same ids in two tiers behind the manager's back.
	for _, id := range []string{"dup-b", "dup-a"} {
		obj := &testObject{id: id, state: StateImmediate}
		m.immediate.insert(id, obj)
		m.active.insert(id, obj)
	}

	err := m.MarkInactive(newTestObject("victim"))
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("err = %v, want ErrCorruptState", err)
	}
	var ce *CorruptStateError
	if !errors.As(err, &ce) {
		t.Fatalf("err %T does not unwrap to *CorruptStateError", err)
	}
	if len(ce.IDs) != 2 || ce.IDs[0] != "dup-a" || ce.IDs[1] != "dup-b" {
		t.Errorf("IDs = %v, want sorted [dup-a dup-b]", ce.IDs)
	}
}

func TestConsistencyCheckRateLimited(t *testing.T) {
	m := New(Config{CheckInterval: time.Hour})

	// First destructive call runs the check and arms the interval.
	if err := m.MarkInactive(newTestObject("warmup")); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	obj := &testObject{id: "dup", state: StateImmediate}
	m.immediate.insert("dup", obj)
	m.active.insert("dup", obj)

	// Within the interval the corruption goes unnoticed.
	if err := m.MarkInactive(newTestObject("victim")); err != nil {
		t.Fatalf("rate-limited check still ran: %v", err)
	}

	// Once the interval has passed the next call must catch it.
	m.lastCheck = time.Now().Add(-2 * time.Hour)
	err := m.MarkInactive(newTestObject("victim"))
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("err = %v, want ErrCorruptState", err)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := testManager(t)

	a := newTestObject("a")
	b := newTestObject("b")
	if err := m.Activate(a, 0); err != nil {
		t.Fatalf("Activate a: %v", err)
	}
	if err := m.Activate(b, 0); err != nil {
		t.Fatalf("Activate b: %v", err)
	}
	if err := m.Deactivate(b); err != nil {
		t.Fatalf("Deactivate b: %v", err)
	}
	if _, ok := m.Get("a"); !ok {
		t.Fatal("expected hit on a")
	}
	if _, ok := m.Get("gone"); ok {
		t.Fatal("expected miss on gone")
	}

	snap := m.Metrics()
	if snap.ActivationCount != 2 {
		t.Errorf("activations = %d, want 2", snap.ActivationCount)
	}
	if snap.DeactivationCount != 1 {
		t.Errorf("deactivations = %d, want 1", snap.DeactivationCount)
	}
	if snap.CacheHits != 1 || snap.CacheMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", snap.CacheHits, snap.CacheMisses)
	}
	if snap.HitRate() != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", snap.HitRate())
	}
	// One object resident in Immediate against the default limit.
	want := 1.0 / float64(DefaultImmediateLimit)
	if snap.ImmediateUsage != want {
		t.Errorf("immediate usage = %v, want %v", snap.ImmediateUsage, want)
	}
	if snap.ActiveUsage != 0 || snap.BackgroundUsage != 0 {
		t.Errorf("active/background usage = %v/%v, want 0/0", snap.ActiveUsage, snap.BackgroundUsage)
	}
}
