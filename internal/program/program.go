package program

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidSession = errors.New("invalid session, must be one of A, B, C")
	ErrInvalidBlock   = errors.New("invalid block, must be one of 1, 2, 3")
)

// Range is an inclusive min/max pair (set counts, rep counts).
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r Range) String() string {
	if r.Min == r.Max {
		return fmt.Sprintf("%d", r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// ExerciseSpec is the static definition of one exercise of the program.
type ExerciseSpec struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Sets        Range   `json:"sets" yaml:"sets"`
	Reps        Range   `json:"reps" yaml:"reps"`
	StartCharge float64 `json:"startCharge" yaml:"start_charge"`
	RestSeconds int     `json:"restSeconds" yaml:"rest_seconds"`
	// TargetRIR is a tag such as "1" or "1-2", it is displayed, never computed with.
	TargetRIR string `json:"targetRir" yaml:"target_rir"`
}

// SetCountTarget is the number of sets used to compute rep targets after a charge increase.
// The lower end of the set range is used: it is the minimum viable volume at a new charge.
func (s ExerciseSpec) SetCountTarget() int {
	return s.Sets.Min
}

func (s ExerciseSpec) Rest() time.Duration {
	return time.Duration(s.RestSeconds) * time.Second
}

// SessionID is one of the three rotating workout days.
type SessionID string

const (
	SessionA SessionID = "A"
	SessionB SessionID = "B"
	SessionC SessionID = "C"
)

var AllSessions = []SessionID{SessionA, SessionB, SessionC}

func ParseSession(s string) (SessionID, error) {
	id := SessionID(strings.ToUpper(strings.TrimSpace(s)))
	if !id.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSession, s)
	}
	return id, nil
}

func (s SessionID) IsValid() bool {
	switch s {
	case SessionA, SessionB, SessionC:
		return true
	default:
		return false
	}
}

// Next returns the session following s in the A -> B -> C -> A rotation.
// An invalid session restarts the rotation at A.
func (s SessionID) Next() SessionID {
	switch s {
	case SessionA:
		return SessionB
	case SessionB:
		return SessionC
	default:
		return SessionA
	}
}

func (s SessionID) String() string {
	return string(s)
}
