package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// MinInterval is the shortest allowed polling interval.
const MinInterval = time.Minute

// Schedule pairs a pipeline with its polling interval.
type Schedule struct {
	Pipeline *Pipeline
	Interval time.Duration
}

// Poller runs each scheduled pipeline on its own loop. Cycles of the same
// feed never overlap; different feeds poll independently.
type Poller struct {
	schedules []Schedule
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewPoller creates a background poller.
func NewPoller(schedules ...Schedule) *Poller {
	return &Poller{
		schedules: schedules,
		stopChan:  make(chan struct{}),
	}
}

// Start begins one polling loop per schedule. The first cycle runs
// immediately.
func (p *Poller) Start() {
	for _, s := range p.schedules {
		interval := s.Interval
		if interval < MinInterval {
			interval = MinInterval
		}
		p.wg.Add(1)
		go p.loop(s.Pipeline, interval)
	}
}

func (p *Poller) loop(pl *Pipeline, interval time.Duration) {
	defer p.wg.Done()
	for {
		slog.Info("Poller: starting cycle", "feed", pl.Name(), "interval", interval)
		if _, err := pl.RunCycle(context.Background()); err != nil && !errors.Is(err, ErrCycleRunning) {
			slog.Error("Poller: cycle failed", "feed", pl.Name(), "error", err)
		}

		select {
		case <-p.stopChan:
			return
		case <-time.After(interval):
		}
	}
}

// Stop stops the poller and waits for in-flight cycles to finish.
func (p *Poller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}
