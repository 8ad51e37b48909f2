package state

import (
	"errors"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/program"
)

var ErrNoHistory = errors.New("exercise has no history")

// WorkoutEntry is one completed exercise instance. Entries are immutable once appended,
// except the most recent one which can be edited in place.
type WorkoutEntry struct {
	Date      time.Time `json:"date"`
	Charge    float64   `json:"charge"`
	Sets      []int     `json:"sets"`
	TotalReps int       `json:"totalReps"`
	RIR       int       `json:"rir"`
}

func NewWorkoutEntry(date time.Time, charge float64, sets []int, rir int) WorkoutEntry {
	return WorkoutEntry{
		Date:      date,
		Charge:    charge,
		Sets:      append([]int{}, sets...),
		TotalReps: SumReps(sets),
		RIR:       rir,
	}
}

func SumReps(sets []int) int {
	total := 0
	for _, reps := range sets {
		total += reps
	}
	return total
}

// AppState is the full durable record, persisted locally and remotely as one blob.
type AppState struct {
	CurrentSession program.SessionID         `json:"currentSession"`
	Block          program.Block             `json:"block"`
	Week           int                       `json:"week"`
	ProgramStart   time.Time                 `json:"programStart"`
	History        map[string][]WorkoutEntry `json:"history"`
	Catalog        *program.Catalog          `json:"catalog"`
	// InProgress is the embedded copy of the session being recorded, nil between sessions.
	InProgress *ActiveSessionSnapshot `json:"inProgress,omitempty"`
	// UpdatedAt is the last-modified timestamp used to reconcile local and remote copies.
	UpdatedAt time.Time `json:"updatedAt"`
}

// New returns the state of a program starting at now with the default catalog.
func New(now time.Time) *AppState {
	return &AppState{
		CurrentSession: program.SessionA,
		Block:          program.Block1,
		Week:           1,
		ProgramStart:   now,
		History:        make(map[string][]WorkoutEntry),
		Catalog:        program.DefaultCatalog(),
		UpdatedAt:      now,
	}
}

// Touch marks the state as modified at now.
func (s *AppState) Touch(now time.Time) {
	s.UpdatedAt = now
}

// RefreshWeek recomputes the week number and the active block from the program start.
func (s *AppState) RefreshWeek(now time.Time) {
	s.Week = program.WeekNumber(s.ProgramStart, now)
	s.Block = program.BlockForWeek(s.Week)
}

// ExerciseHistory returns the entries of one exercise, oldest first.
func (s *AppState) ExerciseHistory(exerciseID string) []WorkoutEntry {
	return s.History[exerciseID]
}

func (s *AppState) LastEntry(exerciseID string) (WorkoutEntry, bool) {
	entries := s.History[exerciseID]
	if len(entries) == 0 {
		return WorkoutEntry{}, false
	}
	return entries[len(entries)-1], true
}

func (s *AppState) AppendEntry(exerciseID string, entry WorkoutEntry) {
	if s.History == nil {
		s.History = make(map[string][]WorkoutEntry)
	}
	s.History[exerciseID] = append(s.History[exerciseID], entry)
}

// ReplaceLastEntry is the only in-place history edit: the most recent entry gets replaced.
func (s *AppState) ReplaceLastEntry(exerciseID string, entry WorkoutEntry) error {
	entries := s.History[exerciseID]
	if len(entries) == 0 {
		return ErrNoHistory
	}
	entries[len(entries)-1] = entry
	return nil
}

// ResetHistory drops the log of one exercise, or of all exercises when exerciseID is empty.
func (s *AppState) ResetHistory(exerciseID string) {
	if exerciseID == "" {
		s.History = make(map[string][]WorkoutEntry)
		return
	}
	delete(s.History, exerciseID)
}

// Clone returns a deep copy, so that later mutations of s do not leak into the copy.
func (s *AppState) Clone() *AppState {
	if s == nil {
		return nil
	}
	clone := *s
	clone.History = make(map[string][]WorkoutEntry, len(s.History))
	for id, entries := range s.History {
		copied := make([]WorkoutEntry, len(entries))
		for i, e := range entries {
			e.Sets = append([]int{}, e.Sets...)
			copied[i] = e
		}
		clone.History[id] = copied
	}
	if s.Catalog != nil {
		clone.Catalog = s.Catalog.Clone()
	}
	clone.InProgress = s.InProgress.Clone()
	return &clone
}
