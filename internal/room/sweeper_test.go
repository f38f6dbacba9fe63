package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperSweepReportsRemovedRooms(t *testing.T) {
	s := NewStore(0)
	_, err := s.Create("empty", t0)
	require.NoError(t, err)
	_, err = s.Create("busy", t0, Member{ConnectionID: "c1", Username: "alice"})
	require.NoError(t, err)

	var got []string
	sw := NewSweeper(s, time.Hour, func(removed []Room) {
		for _, r := range removed {
			got = append(got, r.Name)
		}
	})

	sw.Sweep(t0.Add(time.Hour))
	assert.Equal(t, []string{"empty"}, got)

	sw.Sweep(t0.Add(time.Hour))
	assert.Equal(t, []string{"empty"}, got, "second pass should not notify again")

	sw.Sweep(t0.Add(25 * time.Hour))
	assert.Equal(t, []string{"empty", "busy"}, got)
	assert.Zero(t, s.Len())
}

func TestSweeperNilCallback(t *testing.T) {
	s := NewStore(0)
	_, err := s.Create("R", t0)
	require.NoError(t, err)

	sw := NewSweeper(s, 0, nil)
	assert.Equal(t, DefaultSweepInterval, sw.interval)

	removed := sw.Sweep(t0)
	assert.Len(t, removed, 1)
}

func TestSweeperRunsPeriodically(t *testing.T) {
	s := NewStore(0)
	_, err := s.Create("R", t0)
	require.NoError(t, err)

	swept := make(chan []Room, 1)
	sw := NewSweeper(s, 10*time.Millisecond, func(removed []Room) {
		swept <- removed
	})
	sw.now = func() time.Time { return t0.Add(time.Minute) }

	sw.Start(context.Background())
	defer sw.Stop()

	select {
	case removed := <-swept:
		require.Len(t, removed, 1)
		assert.Equal(t, "R", removed[0].Name)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not run")
	}
}

func TestSweeperStopsWithContext(t *testing.T) {
	sw := NewSweeper(NewStore(0), time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sw.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		sw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	sw.Stop()
}

func TestSweeperStopWithoutStart(t *testing.T) {
	sw := NewSweeper(NewStore(0), time.Hour, nil)
	sw.Stop()
}

func TestSweeperThroughRunsPassAndCallbackInsideExec(t *testing.T) {
	s := NewStore(0)
	_, err := s.Create("R", t0)
	require.NoError(t, err)

	var trace []string
	sw := NewSweeper(s, time.Hour, func(removed []Room) {
		trace = append(trace, "notify "+removed[0].Name)
	}).Through(func(pass func()) {
		trace = append(trace, "enter")
		pass()
		trace = append(trace, "exit")
	})

	removed := sw.Sweep(t0.Add(time.Minute))
	require.Len(t, removed, 1)
	assert.Equal(t, []string{"enter", "notify R", "exit"}, trace)
	assert.Same(t, sw, sw.Through(nil))
}
