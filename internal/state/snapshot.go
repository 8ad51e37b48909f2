package state

import (
	"slices"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/program"
)

// SessionInput is what the user has typed for an exercise but not validated yet.
type SessionInput struct {
	Charge float64 `json:"charge"`
	Sets   []int   `json:"sets"`
	RIR    int     `json:"rir"`
}

// ActiveSessionSnapshot is the small crash-recovery record of an in-progress session.
type ActiveSessionSnapshot struct {
	SessionID string                  `json:"sessionId"`
	Session   program.SessionID       `json:"session"`
	Inputs    map[string]SessionInput `json:"inputs"`
	Completed []string                `json:"completed"`
	SavedAt   time.Time               `json:"savedAt"`
}

func NewSnapshot(sessionID string, session program.SessionID) *ActiveSessionSnapshot {
	return &ActiveSessionSnapshot{
		SessionID: sessionID,
		Session:   session,
		Inputs:    make(map[string]SessionInput),
		Completed: make([]string, 0),
	}
}

// SnapshotOf extracts the session-relevant subset of st, stamped with now.
// It returns nil when no session is in progress.
func SnapshotOf(st *AppState, now time.Time) *ActiveSessionSnapshot {
	if st == nil || st.InProgress == nil {
		return nil
	}
	snap := st.InProgress.Clone()
	snap.SavedAt = now
	return snap
}

// IsFresh reports whether the snapshot is at most maxAge old at now.
// A savedAt in the future counts as fresh, no clock rollback handling is attempted.
func (s *ActiveSessionSnapshot) IsFresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.SavedAt) <= maxAge
}

func (s *ActiveSessionSnapshot) IsCompleted(exerciseID string) bool {
	return slices.Contains(s.Completed, exerciseID)
}

func (s *ActiveSessionSnapshot) MarkCompleted(exerciseID string) {
	if !s.IsCompleted(exerciseID) {
		s.Completed = append(s.Completed, exerciseID)
	}
	delete(s.Inputs, exerciseID)
}

func (s *ActiveSessionSnapshot) Clone() *ActiveSessionSnapshot {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Inputs = make(map[string]SessionInput, len(s.Inputs))
	for id, in := range s.Inputs {
		in.Sets = append([]int{}, in.Sets...)
		clone.Inputs[id] = in
	}
	clone.Completed = append([]string{}, s.Completed...)
	return &clone
}
