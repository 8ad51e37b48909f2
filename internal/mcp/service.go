package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/program"
	"github.com/BaptisteLac/Zeus-sub000/internal/progression"
	"github.com/BaptisteLac/Zeus-sub000/internal/state"
	"github.com/BaptisteLac/Zeus-sub000/internal/syncapi"
)

// StateSource loads the AppState the tools read from (for dependency injection and testing).
type StateSource interface {
	LoadState(ctx context.Context) (*state.AppState, error)
}

// stateGetter is the part of syncapi.Repo used by RepoSource.
type stateGetter interface {
	Get(ctx context.Context, userID int) (*syncapi.StoredState, error)
}

// RepoSource reads the stored AppState of one user from the sync backend database.
type RepoSource struct {
	repo    stateGetter
	userID  int
	NowFunc func() time.Time
}

// NewRepoSource builds a source over the state of userID.
func NewRepoSource(repo stateGetter, userID int) *RepoSource {
	return &RepoSource{
		repo:    repo,
		userID:  userID,
		NowFunc: time.Now,
	}
}

// LoadState decodes the stored blob; a user without a stored state gets a fresh program.
func (s *RepoSource) LoadState(ctx context.Context) (*state.AppState, error) {
	now := s.NowFunc()
	stored, err := s.repo.Get(ctx, s.userID)
	if err != nil {
		if errors.Is(err, syncapi.ErrStateNotFound) {
			return state.New(now), nil
		}
		return nil, err
	}
	st, err := state.Decode(stored.Data, now)
	if err != nil {
		return nil, fmt.Errorf("decode stored state: %w", err)
	}
	st.RefreshWeek(now)
	return st, nil
}

// contextService provides the progression context data. Used by Handler for testability.
type contextService interface {
	GetProgram(ctx context.Context) (*ProgramOverview, error)
	GetExerciseHistory(ctx context.Context, exerciseID string, limit int) (*ExerciseHistory, error)
	GetProgression(ctx context.Context, session program.SessionID) (*SessionProgression, error)
}

// ProgramOverview is the program position and the block-adjusted specs of every session.
type ProgramOverview struct {
	CurrentSession program.SessionID                            `json:"currentSession"`
	Block          program.Block                                `json:"block"`
	Week           int                                          `json:"week"`
	ProgramStart   time.Time                                    `json:"programStart"`
	Sessions       map[program.SessionID][]program.ExerciseSpec `json:"sessions"`
	SessionRunning bool                                         `json:"sessionRunning"`
}

// ExerciseHistory is the logged entries of one exercise, oldest first.
type ExerciseHistory struct {
	Exercise program.ExerciseSpec `json:"exercise"`
	Entries  []state.WorkoutEntry `json:"entries"`
	Total    int                  `json:"total"`
}

// SessionProgression holds the next-time recommendations of one session.
type SessionProgression struct {
	Session   program.SessionID                    `json:"session"`
	Block     program.Block                        `json:"block"`
	Exercises []progression.ExerciseRecommendation `json:"exercises"`
}

// ContextService implements the progression context logic over a StateSource.
type ContextService struct {
	source StateSource
}

// NewContextService builds a ContextService reading from source.
func NewContextService(source StateSource) *ContextService {
	return &ContextService{
		source: source,
	}
}

func catalogOf(st *state.AppState) *program.Catalog {
	if st.Catalog == nil {
		return program.DefaultCatalog()
	}
	return st.Catalog
}

// GetProgram returns where the lifter is in the program and what each session holds in the current block.
func (s *ContextService) GetProgram(ctx context.Context) (*ProgramOverview, error) {
	st, err := s.source.LoadState(ctx)
	if err != nil {
		return nil, err
	}

	catalog := catalogOf(st)
	sessions := make(map[program.SessionID][]program.ExerciseSpec, len(program.AllSessions))
	for _, session := range program.AllSessions {
		specs := catalog.SessionExercises(session)
		adjusted := make([]program.ExerciseSpec, 0, len(specs))
		for _, spec := range specs {
			adjusted = append(adjusted, program.ApplyBlock(spec, st.Block))
		}
		sessions[session] = adjusted
	}

	return &ProgramOverview{
		CurrentSession: st.CurrentSession,
		Block:          st.Block,
		Week:           st.Week,
		ProgramStart:   st.ProgramStart,
		Sessions:       sessions,
		SessionRunning: st.InProgress != nil,
	}, nil
}

// GetExerciseHistory returns the last limit entries of an exercise (all of them when limit <= 0).
func (s *ContextService) GetExerciseHistory(ctx context.Context, exerciseID string, limit int) (*ExerciseHistory, error) {
	st, err := s.source.LoadState(ctx)
	if err != nil {
		return nil, err
	}

	spec, ok := catalogOf(st).Exercise(exerciseID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", program.ErrUnknownExercise, exerciseID)
	}

	entries := st.ExerciseHistory(exerciseID)
	total := len(entries)
	if limit > 0 && total > limit {
		entries = entries[total-limit:]
	}
	if entries == nil {
		entries = []state.WorkoutEntry{}
	}

	return &ExerciseHistory{
		Exercise: program.ApplyBlock(spec, st.Block),
		Entries:  entries,
		Total:    total,
	}, nil
}

// GetProgression returns the recommendations of session, or of the current session when session is empty.
func (s *ContextService) GetProgression(ctx context.Context, session program.SessionID) (*SessionProgression, error) {
	st, err := s.source.LoadState(ctx)
	if err != nil {
		return nil, err
	}
	if session == "" {
		session = st.CurrentSession
	}
	if !session.IsValid() {
		return nil, program.ErrInvalidSession
	}

	return &SessionProgression{
		Session:   session,
		Block:     st.Block,
		Exercises: progression.ForSession(st, session),
	}, nil
}

func marshalResult(v any) (string, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
