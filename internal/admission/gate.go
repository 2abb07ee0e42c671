// Package admission implements the global download slot semaphore
package admission

import (
	"context"
	"sync"
	"time"

	"mediabandit/internal/metrics"
)

// Gate is the chokepoint every download passes through before the extractor
// starts. It is a counting semaphore with wait-time instrumentation: every
// grant records how long the caller was blocked.
type Gate struct {
	slots   chan struct{}
	metrics *metrics.Registry
}

// Permit represents one held slot. Release is idempotent so the guaranteed
// cleanup path can run on every exit without double-freeing.
type Permit struct {
	gate *Gate
	once sync.Once
}

// NewGate creates a gate with maxSlots concurrent permits
func NewGate(maxSlots int, reg *metrics.Registry) *Gate {
	if maxSlots < 1 {
		maxSlots = 1
	}
	g := &Gate{
		slots:   make(chan struct{}, maxSlots),
		metrics: reg,
	}
	g.updateGauges()
	return g
}

// Acquire blocks until a slot is free or ctx is done. The wait duration is
// recorded into metrics on every grant.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	started := time.Now()

	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	waitMs := time.Since(started).Milliseconds()
	g.metrics.Add(metrics.WaitTimeMsTotal, waitMs)
	g.metrics.Inc(metrics.WaitTimeEvents)
	g.metrics.SetGauge(metrics.WaitLastMs, waitMs)
	g.updateGauges()

	return &Permit{gate: g}, nil
}

// Release returns the slot to the gate. Safe to call more than once.
func (p *Permit) Release() {
	p.once.Do(func() {
		<-p.gate.slots
		p.gate.updateGauges()
	})
}

// InUse returns the number of held slots
func (g *Gate) InUse() int {
	return len(g.slots)
}

// Available returns the number of free slots
func (g *Gate) Available() int {
	return cap(g.slots) - len(g.slots)
}

// Capacity returns the configured slot count
func (g *Gate) Capacity() int {
	return cap(g.slots)
}

func (g *Gate) updateGauges() {
	g.metrics.SetGauge(metrics.QueueInUse, int64(g.InUse()))
	g.metrics.SetGauge(metrics.QueueAvailable, int64(g.Available()))
}
