package pressure

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sinkFunc func(float64) error

func (f sinkFunc) SetMemoryPressure(p float64) error { return f(p) }

func TestPollAppliesClampedSample(t *testing.T) {
	var applied []float64
	sink := sinkFunc(func(p float64) error {
		applied = append(applied, p)
		return nil
	})
	m := NewMonitor(sink, Config{
		Manual: -1,
		Sample: func() (Sample, error) {
			return Sample{Pressure: 1.4, UsedBytes: 4096}, nil
		},
	})

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(applied) != 1 || applied[0] != 1.0 {
		t.Errorf("applied = %v, want [1]", applied)
	}
}

func TestPollManualOverride(t *testing.T) {
	var applied []float64
	sink := sinkFunc(func(p float64) error {
		applied = append(applied, p)
		return nil
	})
	m := NewMonitor(sink, Config{
		Manual: 0.42,
		Sample: func() (Sample, error) {
			t.Error("system sampler called in manual mode")
			return Sample{}, nil
		},
	})

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(applied) != 1 || applied[0] != 0.42 {
		t.Errorf("applied = %v, want [0.42]", applied)
	}
}

func TestPollRetriesSampling(t *testing.T) {
	calls := 0
	sample := func() (Sample, error) {
		calls++
		if calls < 3 {
			return Sample{}, errors.New("proc churn")
		}
		return Sample{Pressure: 0.3}, nil
	}

	var applied []float64
	sink := sinkFunc(func(p float64) error {
		applied = append(applied, p)
		return nil
	})
	m := NewMonitor(sink, Config{Manual: -1, Sample: sample})
	m.retryDelay = time.Millisecond

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if calls != 3 {
		t.Errorf("sample calls = %d, want 3", calls)
	}
	if len(applied) != 1 || applied[0] != 0.3 {
		t.Errorf("applied = %v, want [0.3]", applied)
	}
}

func TestPollGivesUpAfterRetries(t *testing.T) {
	sinkCalls := 0
	sink := sinkFunc(func(p float64) error {
		sinkCalls++
		return nil
	})
	m := NewMonitor(sink, Config{
		Manual: -1,
		Sample: func() (Sample, error) {
			return Sample{}, errors.New("proc churn")
		},
	})
	m.retryDelay = time.Millisecond

	if err := m.Poll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if sinkCalls != 0 {
		t.Errorf("sink called %d times on failed cycle", sinkCalls)
	}
}

func TestPollSinkError(t *testing.T) {
	boom := errors.New("cache rejected pressure")
	sink := sinkFunc(func(p float64) error { return boom })
	m := NewMonitor(sink, Config{Manual: 0.5})

	err := m.Poll(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped sink error", err)
	}
}

func TestPollOnSampleCallback(t *testing.T) {
	var seen []Sample
	m := NewMonitor(sinkFunc(func(float64) error { return nil }), Config{
		Manual: -1,
		Sample: func() (Sample, error) {
			return Sample{Pressure: 0.6, UsedBytes: 2048}, nil
		},
		OnSample: func(s Sample) { seen = append(seen, s) },
	})

	if err := m.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(seen) != 1 || seen[0].UsedBytes != 2048 {
		t.Errorf("seen = %+v, want one sample with 2048 bytes", seen)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	applied := make(chan float64, 1)
	sink := sinkFunc(func(p float64) error {
		select {
		case applied <- p:
		default:
		}
		return nil
	})
	m := NewMonitor(sink, Config{Interval: 5 * time.Millisecond, Manual: 0.5})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("no sample applied")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on clean shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
