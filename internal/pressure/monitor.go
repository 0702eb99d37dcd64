// Package pressure samples system memory and feeds the cache a normalized
// pressure signal.
package pressure

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shirou/gopsutil/mem"

	"github.com/salthouse/workset/internal/retry"
)

// DefaultInterval is the sampling period when none is configured.
const DefaultInterval = 5 * time.Second

// Sink receives pressure readings in [0,1]. The cache service implements
// it.
type Sink interface {
	SetMemoryPressure(pressure float64) error
}

// Sample is one reading of system memory.
type Sample struct {
	Pressure  float64
	UsedBytes uint64
}

// SampleFunc produces a memory sample.
type SampleFunc func() (Sample, error)

// systemSample reads system memory occupancy via gopsutil.
func systemSample() (Sample, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Sample{}, fmt.Errorf("virtual memory: %w", err)
	}
	return Sample{Pressure: vm.UsedPercent / 100, UsedBytes: vm.Used}, nil
}

// Config controls a Monitor.
type Config struct {
	// Interval is the sampling period. Zero selects DefaultInterval.
	Interval time.Duration

	// Manual, when non-negative, fixes the pressure at that value and
	// skips system sampling. Set it negative for live sampling.
	Manual float64

	// Sample overrides the system memory reader, mainly for tests.
	Sample SampleFunc

	// OnSample is called after each sample is accepted by the sink.
	OnSample func(Sample)
}

// Monitor periodically pushes memory pressure into a Sink.
type Monitor struct {
	cfg        Config
	sink       Sink
	sample     SampleFunc
	interval   time.Duration
	retryDelay time.Duration
}

func NewMonitor(sink Sink, cfg Config) *Monitor {
	m := &Monitor{
		cfg:        cfg,
		sink:       sink,
		sample:     cfg.Sample,
		interval:   cfg.Interval,
		retryDelay: 200 * time.Millisecond,
	}
	if m.sample == nil {
		m.sample = systemSample
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	return m
}

// Run samples on the configured interval until ctx is canceled. Failed
// cycles are logged and skipped; a clean shutdown returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Printf("pressure: monitor started (interval %s)", m.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("pressure: monitor stopped")
			return nil
		case <-ticker.C:
			if err := m.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("pressure: %v", err)
			}
		}
	}
}

// Poll takes one sample, clamps it to [0,1], and pushes it to the sink.
// Sampling is retried a few times before the cycle is given up.
func (m *Monitor) Poll(ctx context.Context) error {
	sample, err := m.read(ctx)
	if err != nil {
		return fmt.Errorf("sample memory: %w", err)
	}
	sample.Pressure = clamp(sample.Pressure)

	if err := m.sink.SetMemoryPressure(sample.Pressure); err != nil {
		return fmt.Errorf("apply pressure %.3f: %w", sample.Pressure, err)
	}
	if m.cfg.OnSample != nil {
		m.cfg.OnSample(sample)
	}
	return nil
}

func (m *Monitor) read(ctx context.Context) (Sample, error) {
	if m.cfg.Manual >= 0 {
		return Sample{Pressure: m.cfg.Manual}, nil
	}

	var sample Sample
	err := retry.Do(ctx, retry.Config{
		Attempts: 3,
		Delay:    m.retryDelay,
		OnRetry: func(attempt int, err error) {
			log.Printf("pressure: sample attempt %d failed: %v", attempt, err)
		},
	}, func() error {
		var err error
		sample, err = m.sample()
		return err
	})
	return sample, err
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
