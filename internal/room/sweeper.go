package room

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultSweepInterval is the period between sweeps.
const DefaultSweepInterval = time.Hour

// SweepFunc receives the rooms removed by one sweep pass.
type SweepFunc func(removed []Room)

// ExecFunc runs pass exactly once, returning after it has.
type ExecFunc func(pass func())

// Sweeper periodically evicts expired and empty rooms from a Store.
type Sweeper struct {
	store    *Store
	interval time.Duration
	now      func() time.Time
	onSweep  SweepFunc
	exec     ExecFunc

	wg   sync.WaitGroup
	stop context.CancelFunc
}

// NewSweeper builds a Sweeper for store. onSweep may be nil.
func NewSweeper(store *Store, interval time.Duration, onSweep SweepFunc) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		now:      time.Now,
		onSweep:  onSweep,
		exec:     func(pass func()) { pass() },
	}
}

// Through makes every pass, periodic or direct, run inside exec together with
// its onSweep callback. It returns s.
func (s *Sweeper) Through(exec ExecFunc) *Sweeper {
	if exec != nil {
		s.exec = exec
	}
	return s
}

// Sweep runs a single pass at now and returns the removed rooms.
func (s *Sweeper) Sweep(now time.Time) []Room {
	var removed []Room
	s.exec(func() { removed = s.pass(now) })
	return removed
}

func (s *Sweeper) pass(now time.Time) []Room {
	removed := s.store.SweepExpired(now)
	for _, r := range removed {
		log.Printf("Cleaning up room: %s (%d members, expires %s)", r.Name, len(r.Members), r.ExpiresAt.Format(time.RFC3339))
	}
	if len(removed) > 0 && s.onSweep != nil {
		s.onSweep(removed)
	}
	return removed
}

// Start launches the periodic pass in its own goroutine. It returns
// immediately; the loop ends when ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.stop = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	log.Printf("Room sweeper started (interval %s)", s.interval)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// Stop ends the periodic pass and waits for it to return.
func (s *Sweeper) Stop() {
	if s.stop == nil {
		return
	}
	s.stop()
	s.wg.Wait()
	log.Println("Room sweeper stopped")
}
