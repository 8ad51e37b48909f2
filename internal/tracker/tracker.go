// Package tracker is the service layer the client front-end drives while a
// workout is recorded.
package tracker

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/BaptisteLac/Zeus-sub000/internal/clock"
	"github.com/BaptisteLac/Zeus-sub000/internal/program"
	"github.com/BaptisteLac/Zeus-sub000/internal/progression"
	"github.com/BaptisteLac/Zeus-sub000/internal/resttimer"
	"github.com/BaptisteLac/Zeus-sub000/internal/state"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNoSession          = errors.New("no session in progress")
	ErrSessionInProgress  = errors.New("a session is already in progress")
	ErrNotInSession       = errors.New("exercise is not part of the session")
	ErrAlreadyCompleted   = errors.New("exercise already completed")
	ErrNoInput            = errors.New("no input recorded for exercise")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNothingToRecover   = errors.New("no pending session to recover")
	ErrRecoveryNotDecided = errors.New("a pending session must be resumed or discarded first")
)

// Saver is the auto-save pipeline.
type Saver interface {
	SaveImmediate(st *state.AppState)
	SaveDebounced(st *state.AppState)
	PendingSession() *state.ActiveSessionSnapshot
	DismissPending()
}

type Tracker struct {
	mu    sync.Mutex
	state *state.AppState
	saver Saver
	rest  *resttimer.Timer
	clock clock.Clock
	// ability to inject session id generator (for unit testing)
	NewSessionID func() string
}

func New(st *state.AppState, saver Saver, rest *resttimer.Timer, clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Tracker{
		state:        st,
		saver:        saver,
		rest:         rest,
		clock:        clk,
		NewSessionID: uuid.NewString,
	}
}

// State returns a copy of the current state.
func (t *Tracker) State() *state.AppState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// PendingRecovery returns the session found by crash recovery, still waiting for
// a Resume or Discard.
func (t *Tracker) PendingRecovery() *state.ActiveSessionSnapshot {
	return t.saver.PendingSession()
}

// Start opens a new session. Starting while a crash-recovery prompt is
// unresolved is refused.
func (t *Tracker) Start(session program.SessionID) error {
	if !session.IsValid() {
		return fmt.Errorf("%w: %q", program.ErrInvalidSession, session)
	}
	if t.saver.PendingSession() != nil {
		return ErrRecoveryNotDecided
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.InProgress != nil {
		return ErrSessionInProgress
	}
	now := t.clock.Now()
	t.state.InProgress = state.NewSnapshot(t.NewSessionID(), session)
	t.state.CurrentSession = session
	t.state.RefreshWeek(now)
	t.state.Touch(now)
	t.saver.SaveImmediate(t.state)

	log.Debugf("tracker, session %s started: %s", session, t.state.InProgress.SessionID)
	return nil
}

// SetInput records what the user typed so far. Saved with debounce.
func (t *Tracker) SetInput(exerciseID string, input state.SessionInput) error {
	if err := validateInput(input); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpenExerciseLocked(exerciseID); err != nil {
		return err
	}
	input.Sets = append([]int{}, input.Sets...)
	t.state.InProgress.Inputs[exerciseID] = input
	t.state.Touch(t.clock.Now())
	t.saver.SaveDebounced(t.state)
	return nil
}

// CompleteExercise validates the recorded input into a history entry.
func (t *Tracker) CompleteExercise(exerciseID string) (state.WorkoutEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOpenExerciseLocked(exerciseID); err != nil {
		return state.WorkoutEntry{}, err
	}
	input, ok := t.state.InProgress.Inputs[exerciseID]
	if !ok {
		return state.WorkoutEntry{}, fmt.Errorf("%w: %s", ErrNoInput, exerciseID)
	}

	now := t.clock.Now()
	entry := state.NewWorkoutEntry(now, input.Charge, input.Sets, input.RIR)
	t.state.AppendEntry(exerciseID, entry)
	t.state.InProgress.MarkCompleted(exerciseID)
	t.state.Touch(now)
	t.saver.SaveImmediate(t.state)
	return entry, nil
}

// EditLastEntry corrects the most recent entry of an exercise, keeping its date.
func (t *Tracker) EditLastEntry(exerciseID string, input state.SessionInput) (state.WorkoutEntry, error) {
	if err := validateInput(input); err != nil {
		return state.WorkoutEntry{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.state.LastEntry(exerciseID)
	if !ok {
		return state.WorkoutEntry{}, fmt.Errorf("%s: %w", exerciseID, state.ErrNoHistory)
	}
	entry := state.NewWorkoutEntry(last.Date, input.Charge, input.Sets, input.RIR)
	if err := t.state.ReplaceLastEntry(exerciseID, entry); err != nil {
		return state.WorkoutEntry{}, err
	}
	t.state.Touch(t.clock.Now())
	t.saver.SaveImmediate(t.state)
	return entry, nil
}

// StartRest starts the rest timer of an exercise for its prescribed rest duration.
func (t *Tracker) StartRest(exerciseID string) (resttimer.Rest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	spec, ok := t.catalogLocked().Exercise(exerciseID)
	if !ok {
		return resttimer.Rest{}, fmt.Errorf("%w: %s", program.ErrUnknownExercise, exerciseID)
	}
	now := t.clock.Now()
	rest, err := t.rest.Start(exerciseID, spec.Rest(), now)
	if err != nil {
		return resttimer.Rest{}, err
	}
	t.state.Touch(now)
	t.saver.SaveImmediate(t.state)
	return rest, nil
}

// Finish closes the session and moves the rotation to the next one.
func (t *Tracker) Finish() (program.SessionID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.InProgress == nil {
		return "", ErrNoSession
	}

	now := t.clock.Now()
	finished := t.state.InProgress.Session
	t.state.InProgress = nil
	t.state.CurrentSession = finished.Next()
	t.state.RefreshWeek(now)
	t.state.Touch(now)
	if err := t.rest.Clear(); err != nil {
		log.Warnf("tracker, clear rest timer: %s", err)
	}

	t.saver.SaveImmediate(t.state)
	t.saver.DismissPending()

	log.Debugf("tracker, session %s finished, next is %s", finished, t.state.CurrentSession)
	return t.state.CurrentSession, nil
}

// Resume continues the session found by crash recovery.
func (t *Tracker) Resume() (*state.ActiveSessionSnapshot, error) {
	pending := t.saver.PendingSession()
	if pending == nil {
		return nil, ErrNothingToRecover
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// dismiss first, the save below writes a fresh snapshot
	t.saver.DismissPending()

	t.state.InProgress = pending
	t.state.CurrentSession = pending.Session
	t.state.Touch(t.clock.Now())
	t.saver.SaveImmediate(t.state)
	return pending.Clone(), nil
}

// Discard drops the session found by crash recovery.
func (t *Tracker) Discard() error {
	pending := t.saver.PendingSession()
	if pending == nil {
		return ErrNothingToRecover
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.saver.DismissPending()
	if t.state.InProgress != nil && t.state.InProgress.SessionID == pending.SessionID {
		t.state.InProgress = nil
		t.state.Touch(t.clock.Now())
		t.saver.SaveImmediate(t.state)
	}
	return nil
}

// Recommendations for the session in progress, or the next session in the rotation.
func (t *Tracker) Recommendations() (program.SessionID, []progression.ExerciseRecommendation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session := t.state.CurrentSession
	if t.state.InProgress != nil {
		session = t.state.InProgress.Session
	}
	return session, progression.ForSession(t.state, session)
}

// ResetHistory clears the log of one exercise, or all of them for an empty id.
func (t *Tracker) ResetHistory(exerciseID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if exerciseID != "" {
		if _, ok := t.catalogLocked().Exercise(exerciseID); !ok {
			return fmt.Errorf("%w: %s", program.ErrUnknownExercise, exerciseID)
		}
	}
	t.state.ResetHistory(exerciseID)
	t.state.Touch(t.clock.Now())
	t.saver.SaveImmediate(t.state)
	return nil
}

func (t *Tracker) catalogLocked() *program.Catalog {
	if t.state.Catalog == nil {
		t.state.Catalog = program.DefaultCatalog()
	}
	return t.state.Catalog
}

func (t *Tracker) checkOpenExerciseLocked(exerciseID string) error {
	if t.state.InProgress == nil {
		return ErrNoSession
	}
	ids := t.catalogLocked().Sessions[t.state.InProgress.Session]
	if !slices.Contains(ids, exerciseID) {
		return fmt.Errorf("%w: %s", ErrNotInSession, exerciseID)
	}
	if t.state.InProgress.IsCompleted(exerciseID) {
		return fmt.Errorf("%w: %s", ErrAlreadyCompleted, exerciseID)
	}
	return nil
}

func validateInput(input state.SessionInput) error {
	if input.Charge < 0 {
		return fmt.Errorf("%w: negative charge", ErrInvalidInput)
	}
	if input.RIR < 0 {
		return fmt.Errorf("%w: negative rir", ErrInvalidInput)
	}
	for _, reps := range input.Sets {
		if reps < 0 {
			return fmt.Errorf("%w: negative reps", ErrInvalidInput)
		}
	}
	return nil
}
