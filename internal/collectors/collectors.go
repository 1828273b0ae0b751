// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package collectors implements the periodic entropy samplers of
// spec.md §4.9: small, cheap event sources (scheduling jitter, heap
// entropy, free memory, and others) that feed the Fortuna accumulator
// on a schedule, plus the scheduler that owns their lifecycle.
package collectors

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives one collector event: pool selects the destination pool
// (the low 5 bits of a per-collector round-robin counter, per spec.md
// §4.9), and data is the sampled entropy.
type Sink interface {
	AddEvent(pool int, data []byte)
}

// Collector is one periodic entropy sampler.
type Collector interface {
	// Name identifies the collector in logs and configuration keys.
	Name() string

	// Initialise prepares the collector and reports whether it may run;
	// a collector that requires an unavailable platform permission or
	// resource returns false and is never scheduled.
	Initialise() bool

	// Run produces one event and returns its bytes.
	Run() []byte

	// Delay is the time between successive runs.
	Delay() time.Duration
}

// Scheduler owns a single periodic goroutine per registered, initialised
// collector, feeding each collector's output into Sink via AddEvent.
// Suspend/Resume pause and resume delivery for every scheduled task at once.
type Scheduler struct {
	sink Sink

	mu        sync.Mutex
	tasks     []*task
	suspended atomic.Bool
}

type task struct {
	collector  Collector
	stop       chan struct{}
	done       chan struct{}
	roundRobin uint32
}

// NewScheduler constructs a scheduler that feeds events into sink.
func NewScheduler(sink Sink) *Scheduler {
	return &Scheduler{sink: sink}
}

// Register initialises c and, if it reports itself available, starts its
// periodic task. It is a no-op (returning false) for a collector whose
// Initialise() declines to run.
func (s *Scheduler) Register(c Collector) bool {
	if !c.Initialise() {
		return false
	}

	t := &task{collector: c, stop: make(chan struct{}), done: make(chan struct{})}

	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	go s.run(t)
	return true
}

func (s *Scheduler) run(t *task) {
	defer close(t.done)

	delay := t.collector.Delay()
	if delay <= 0 {
		delay = time.Second
	}
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if s.suspended.Load() {
				continue
			}
			data := t.collector.Run()
			if len(data) == 0 {
				continue
			}
			idx := atomic.AddUint32(&t.roundRobin, 1)
			s.sink.AddEvent(int(idx&0x1F), data)
		}
	}
}

// Suspend atomically pauses every scheduled collector without cancelling
// its underlying timer; ticks that fire while suspended are dropped.
func (s *Scheduler) Suspend() { s.suspended.Store(true) }

// Resume reinstates every scheduled collector.
func (s *Scheduler) Resume() { s.suspended.Store(false) }

// Shutdown cancels every scheduled task and waits for each to exit.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	tasks := append([]*task(nil), s.tasks...)
	s.mu.Unlock()

	for _, t := range tasks {
		close(t.stop)
	}
	for _, t := range tasks {
		<-t.done
	}
}
