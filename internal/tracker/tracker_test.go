package tracker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/autosave"
	"github.com/BaptisteLac/Zeus-sub000/internal/clock"
	"github.com/BaptisteLac/Zeus-sub000/internal/faststore"
	"github.com/BaptisteLac/Zeus-sub000/internal/program"
	"github.com/BaptisteLac/Zeus-sub000/internal/progression"
	"github.com/BaptisteLac/Zeus-sub000/internal/resttimer"
	"github.com/BaptisteLac/Zeus-sub000/internal/state"
	"github.com/BaptisteLac/Zeus-sub000/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC)

type memoryDurable struct {
	mu    sync.Mutex
	saves []*state.AppState
}

func (d *memoryDurable) Save(_ context.Context, st *state.AppState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saves = append(d.saves, st)
	return nil
}

// newest is the save with the latest UpdatedAt. Saves run on their own
// goroutines, so arrival order says nothing.
func (d *memoryDurable) newest() *state.AppState {
	d.mu.Lock()
	defer d.mu.Unlock()
	var newest *state.AppState
	for _, st := range d.saves {
		if newest == nil || st.UpdatedAt.After(newest.UpdatedAt) {
			newest = st
		}
	}
	return newest
}

type fixture struct {
	opener  faststore.Opener
	session faststore.Store
	durable *memoryDurable
	clock   *clock.Fake
	saver   *autosave.Controller
	tracker *tracker.Tracker
}

func newFixture(t *testing.T, st *state.AppState) *fixture {
	t.Helper()
	f := &fixture{
		opener:  faststore.MemoryOpener(),
		durable: &memoryDurable{},
		clock:   clock.NewFake(testNow),
	}
	f.start(t, st)
	return f
}

// start builds a controller and tracker over the fixture stores, as a process start would.
func (f *fixture) start(t *testing.T, st *state.AppState) {
	t.Helper()
	var err error
	f.session, err = f.opener(faststore.NamespaceSession)
	require.NoError(t, err)
	timerStore, err := f.opener(faststore.NamespaceTimer)
	require.NoError(t, err)

	f.saver = autosave.NewController(autosave.Params{
		FastStore: f.session,
		Durable:   f.durable,
		Clock:     f.clock,
	})
	t.Cleanup(func() {
		require.NoError(t, f.saver.Close(context.Background()))
	})
	f.tracker = tracker.New(st, f.saver, resttimer.New(timerStore), f.clock)
	f.tracker.NewSessionID = func() string { return "session-1" }
}

func (f *fixture) snapshot(t *testing.T) (*state.ActiveSessionSnapshot, bool) {
	t.Helper()
	raw, found, err := f.session.GetString(faststore.SessionKey)
	require.NoError(t, err)
	if !found {
		return nil, false
	}
	snap, err := state.DecodeSnapshot([]byte(raw))
	require.NoError(t, err)
	return snap, true
}

func TestTracker_FullSession(t *testing.T) {
	f := newFixture(t, state.New(testNow))
	tr := f.tracker

	assert.ErrorIs(t, tr.SetInput("squat", state.SessionInput{Charge: 60}), tracker.ErrNoSession)
	require.NoError(t, tr.Start(program.SessionA))
	assert.ErrorIs(t, tr.Start(program.SessionB), tracker.ErrSessionInProgress)

	snap, found := f.snapshot(t)
	require.True(t, found)
	assert.Equal(t, "session-1", snap.SessionID)

	assert.ErrorIs(t, tr.SetInput("deadlift", state.SessionInput{Charge: 100}), tracker.ErrNotInSession)
	assert.ErrorIs(t, tr.SetInput("squat", state.SessionInput{Charge: -1}), tracker.ErrInvalidInput)
	_, err := tr.CompleteExercise("squat")
	assert.ErrorIs(t, err, tracker.ErrNoInput)

	require.NoError(t, tr.SetInput("squat", state.SessionInput{Charge: 60, Sets: []int{8}, RIR: 2}))
	require.NoError(t, tr.SetInput("squat", state.SessionInput{Charge: 60, Sets: []int{8, 8, 8}, RIR: 2}))
	assert.True(t, f.saver.HasPending())

	f.clock.Advance(autosave.DefaultDebounceDelay)
	snap, _ = f.snapshot(t)
	assert.Equal(t, []int{8, 8, 8}, snap.Inputs["squat"].Sets)

	entry, err := tr.CompleteExercise("squat")
	require.NoError(t, err)
	assert.Equal(t, 24, entry.TotalReps)
	_, err = tr.CompleteExercise("squat")
	assert.ErrorIs(t, err, tracker.ErrAlreadyCompleted)

	snap, _ = f.snapshot(t)
	assert.Equal(t, []string{"squat"}, snap.Completed)

	rest, err := tr.StartRest("squat")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(autosave.DefaultDebounceDelay).Add(3*time.Minute), rest.EndsAt)

	session, recs := tr.Recommendations()
	assert.Equal(t, program.SessionA, session)
	require.NotEmpty(t, recs)
	require.NotNil(t, recs[0].Recommendation)
	assert.Equal(t, progression.KindIncreaseCharge, recs[0].Recommendation.Kind)

	f.clock.Advance(time.Minute)
	next, err := tr.Finish()
	require.NoError(t, err)
	assert.Equal(t, program.SessionB, next)
	_, found = f.snapshot(t)
	assert.False(t, found, "finished session snapshot is removed")

	st := tr.State()
	assert.Nil(t, st.InProgress)
	assert.Len(t, st.ExerciseHistory("squat"), 1)

	_, err = tr.Finish()
	assert.ErrorIs(t, err, tracker.ErrNoSession)

	require.NoError(t, f.saver.Close(context.Background()))
	newest := f.durable.newest()
	require.NotNil(t, newest)
	assert.Equal(t, program.SessionB, newest.CurrentSession)
	assert.Nil(t, newest.InProgress)
}

func TestTracker_EditLastEntry(t *testing.T) {
	st := state.New(testNow)
	st.AppendEntry("squat", state.NewWorkoutEntry(testNow.Add(-48*time.Hour), 60, []int{8, 8, 8}, 2))
	f := newFixture(t, st)

	edited, err := f.tracker.EditLastEntry("squat", state.SessionInput{Charge: 62.5, Sets: []int{8, 7, 7}, RIR: 1})
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(-48*time.Hour), edited.Date)
	assert.Equal(t, 22, edited.TotalReps)

	history := f.tracker.State().ExerciseHistory("squat")
	require.Len(t, history, 1)
	assert.Equal(t, edited, history[0])

	_, err = f.tracker.EditLastEntry("deadlift", state.SessionInput{Charge: 100})
	assert.ErrorIs(t, err, state.ErrNoHistory)
}

func TestTracker_CrashResume(t *testing.T) {
	f := newFixture(t, state.New(testNow))
	require.NoError(t, f.tracker.Start(program.SessionC))
	require.NoError(t, f.tracker.SetInput("deadlift", state.SessionInput{Charge: 120, Sets: []int{5, 5}, RIR: 2}))
	f.saver.Flush()

	// the process dies here; the next start sees the snapshot
	f.clock.Advance(2 * time.Hour)
	f.start(t, state.New(testNow))

	pending := f.tracker.PendingRecovery()
	require.NotNil(t, pending)
	assert.Equal(t, program.SessionC, pending.Session)
	assert.ErrorIs(t, f.tracker.Start(program.SessionA), tracker.ErrRecoveryNotDecided)

	resumed, err := f.tracker.Resume()
	require.NoError(t, err)
	assert.Equal(t, 120.0, resumed.Inputs["deadlift"].Charge)
	assert.Nil(t, f.tracker.PendingRecovery())

	snap, found := f.snapshot(t)
	require.True(t, found, "resumed session is snapshotted again")
	assert.Equal(t, pending.SessionID, snap.SessionID)

	_, err = f.tracker.Resume()
	assert.ErrorIs(t, err, tracker.ErrNothingToRecover)

	entry, err := f.tracker.CompleteExercise("deadlift")
	require.NoError(t, err)
	assert.Equal(t, 10, entry.TotalReps)
}

func TestTracker_CrashDiscard(t *testing.T) {
	f := newFixture(t, state.New(testNow))
	require.NoError(t, f.tracker.Start(program.SessionB))
	f.start(t, state.New(testNow))

	require.NotNil(t, f.tracker.PendingRecovery())
	require.NoError(t, f.tracker.Discard())
	assert.Nil(t, f.tracker.PendingRecovery())
	_, found := f.snapshot(t)
	assert.False(t, found)
	assert.ErrorIs(t, f.tracker.Discard(), tracker.ErrNothingToRecover)

	require.NoError(t, f.tracker.Start(program.SessionA))
}

func TestTracker_ResetHistory(t *testing.T) {
	st := state.New(testNow)
	st.AppendEntry("squat", state.NewWorkoutEntry(testNow, 60, []int{8}, 2))
	st.AppendEntry("bench_press", state.NewWorkoutEntry(testNow, 50, []int{8}, 2))
	f := newFixture(t, st)

	assert.ErrorIs(t, f.tracker.ResetHistory("nope"), program.ErrUnknownExercise)
	require.NoError(t, f.tracker.ResetHistory("squat"))
	assert.Empty(t, f.tracker.State().ExerciseHistory("squat"))
	assert.Len(t, f.tracker.State().ExerciseHistory("bench_press"), 1)

	require.NoError(t, f.tracker.ResetHistory(""))
	assert.Empty(t, f.tracker.State().History)
}

func TestTracker_StartInvalidSession(t *testing.T) {
	f := newFixture(t, state.New(testNow))
	assert.ErrorIs(t, f.tracker.Start("D"), program.ErrInvalidSession)
}
