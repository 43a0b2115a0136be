package demo

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs engine callbacks. Scheduled callbacks are never cancelled.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
	Go(f func())
}

// RealScheduler runs callbacks on wall-clock timers and goroutines.
type RealScheduler struct {
	wg sync.WaitGroup
}

func NewRealScheduler() *RealScheduler { return &RealScheduler{} }

func (s *RealScheduler) AfterFunc(d time.Duration, f func()) {
	s.wg.Add(1)
	time.AfterFunc(d, func() {
		defer s.wg.Done()
		f()
	})
}

func (s *RealScheduler) Go(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f()
	}()
}

// Wait blocks until every scheduled callback, including ones scheduled by
// other callbacks, has returned.
func (s *RealScheduler) Wait() { s.wg.Wait() }

type manualTimer struct {
	at  time.Duration
	seq int
	f   func()
}

// ManualScheduler runs timers on a virtual clock advanced explicitly. Go runs
// its function inline.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []manualTimer
}

func NewManualScheduler() *ManualScheduler { return &ManualScheduler{} }

func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.timers = append(m.timers, manualTimer{at: m.now + d, seq: m.seq, f: f})
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at == m.timers[j].at {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at < m.timers[j].at
	})
}

func (m *ManualScheduler) Go(f func()) { f() }

// Now is the virtual time elapsed since creation.
func (m *ManualScheduler) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending is the number of timers not yet fired.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d, firing due timers in order. Timers
// scheduled by fired callbacks run too if they fall inside the window.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()
	for m.fireNext(target) {
	}
	m.mu.Lock()
	if m.now < target {
		m.now = target
	}
	m.mu.Unlock()
}

func (m *ManualScheduler) fireNext(target time.Duration) bool {
	m.mu.Lock()
	if len(m.timers) == 0 || m.timers[0].at > target {
		m.mu.Unlock()
		return false
	}
	t := m.timers[0]
	m.timers = m.timers[1:]
	m.now = t.at
	m.mu.Unlock()
	t.f()
	return true
}
