package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/program"
)

var ErrCorruptSnapshot = errors.New("corrupt session snapshot")

// Encode serializes the state. encoding/json sorts map keys, so equal states
// always produce the same bytes.
func Encode(st *AppState) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode app state: %w", err)
	}
	return data, nil
}

func EncodeSnapshot(snap *ActiveSessionSnapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode session snapshot: %w", err)
	}
	return data, nil
}

// storedEntry accepts both the current and the older persisted entry layouts.
type storedEntry struct {
	Date      time.Time `json:"date"`
	Charge    *float64  `json:"charge"`
	Weight    *float64  `json:"weight"`
	Sets      []int     `json:"sets"`
	TotalReps *int      `json:"totalReps"`
	RIR       int       `json:"rir"`
}

type storedState struct {
	CurrentSession program.SessionID        `json:"currentSession"`
	Session        program.SessionID        `json:"session"`
	Block          program.Block            `json:"block"`
	Week           int                      `json:"week"`
	ProgramStart   *time.Time               `json:"programStart"`
	History        map[string][]storedEntry `json:"history"`
	Catalog        *program.Catalog         `json:"catalog"`
	InProgress     *ActiveSessionSnapshot   `json:"inProgress"`
	UpdatedAt      time.Time                `json:"updatedAt"`
}

// Decode parses a persisted state and normalizes it. now is used to fill a
// missing program start date.
func Decode(data []byte, now time.Time) (*AppState, error) {
	var stored storedState
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode app state: %w", err)
	}
	return normalize(&stored, now), nil
}

// DecodeSnapshot parses a crash-recovery snapshot. Anything that does not look
// like a snapshot is reported as ErrCorruptSnapshot.
func DecodeSnapshot(data []byte) (*ActiveSessionSnapshot, error) {
	var snap ActiveSessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if !snap.Session.IsValid() {
		return nil, fmt.Errorf("%w: invalid session %q", ErrCorruptSnapshot, snap.Session)
	}
	if snap.SavedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing savedAt", ErrCorruptSnapshot)
	}
	normalizeSnapshot(&snap)
	return &snap, nil
}

func normalize(stored *storedState, now time.Time) *AppState {
	st := &AppState{
		CurrentSession: stored.CurrentSession,
		Block:          stored.Block,
		Week:           stored.Week,
		History:        make(map[string][]WorkoutEntry, len(stored.History)),
		Catalog:        normalizeCatalog(stored.Catalog),
		InProgress:     stored.InProgress,
		UpdatedAt:      stored.UpdatedAt,
	}

	if st.CurrentSession == "" {
		st.CurrentSession = stored.Session
	}
	if !st.CurrentSession.IsValid() {
		st.CurrentSession = program.SessionA
	}
	if !st.Block.IsValid() {
		st.Block = program.Block1
	}
	if st.Week < 1 {
		st.Week = 1
	}

	switch {
	case stored.ProgramStart != nil && !stored.ProgramStart.IsZero():
		st.ProgramStart = *stored.ProgramStart
	case !stored.UpdatedAt.IsZero():
		st.ProgramStart = stored.UpdatedAt
	default:
		st.ProgramStart = now
	}

	for id, entries := range stored.History {
		converted := make([]WorkoutEntry, 0, len(entries))
		for _, e := range entries {
			converted = append(converted, normalizeEntry(e))
		}
		st.History[id] = converted
	}

	if st.InProgress != nil {
		if st.InProgress.Session.IsValid() {
			normalizeSnapshot(st.InProgress)
		} else {
			st.InProgress = nil
		}
	}

	return st
}

func normalizeEntry(e storedEntry) WorkoutEntry {
	entry := WorkoutEntry{
		Date: e.Date,
		Sets: e.Sets,
		RIR:  e.RIR,
	}
	if entry.Sets == nil {
		entry.Sets = make([]int, 0)
	}
	switch {
	case e.Charge != nil:
		entry.Charge = *e.Charge
	case e.Weight != nil:
		entry.Charge = *e.Weight
	}
	if e.TotalReps != nil {
		entry.TotalReps = *e.TotalReps
	} else {
		entry.TotalReps = SumReps(entry.Sets)
	}
	return entry
}

func normalizeCatalog(c *program.Catalog) *program.Catalog {
	defaults := program.DefaultCatalog()
	if c == nil || len(c.Exercises) == 0 {
		return defaults
	}

	out := c.Clone()
	if len(out.Sessions) == 0 {
		out.Sessions = defaults.Sessions
		for _, ids := range out.Sessions {
			for _, id := range ids {
				if _, ok := out.Exercises[id]; !ok {
					out.Exercises[id] = defaults.Exercises[id]
				}
			}
		}
	}
	return out
}

func normalizeSnapshot(snap *ActiveSessionSnapshot) {
	if snap.Inputs == nil {
		snap.Inputs = make(map[string]SessionInput)
	}
	for id, in := range snap.Inputs {
		if in.Sets == nil {
			in.Sets = make([]int, 0)
			snap.Inputs[id] = in
		}
	}
	if snap.Completed == nil {
		snap.Completed = make([]string, 0)
	}
}
