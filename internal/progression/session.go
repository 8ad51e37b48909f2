package progression

import (
	"github.com/BaptisteLac/Zeus-sub000/internal/program"
	"github.com/BaptisteLac/Zeus-sub000/internal/state"
)

// ExerciseRecommendation pairs a block-adjusted spec with its recommendation.
// Recommendation is nil for an exercise that was never performed.
type ExerciseRecommendation struct {
	Spec           program.ExerciseSpec `json:"spec"`
	LastEntry      *state.WorkoutEntry  `json:"lastEntry,omitempty"`
	Recommendation *Result              `json:"recommendation,omitempty"`
}

// ForSession computes the recommendations of every exercise of a session, in program order,
// using the spec adjusted to the block the state is currently in.
func ForSession(st *state.AppState, session program.SessionID) []ExerciseRecommendation {
	catalog := st.Catalog
	if catalog == nil {
		catalog = program.DefaultCatalog()
	}

	specs := catalog.SessionExercises(session)
	recs := make([]ExerciseRecommendation, 0, len(specs))
	for _, spec := range specs {
		adjusted := program.ApplyBlock(spec, st.Block)
		history := st.ExerciseHistory(spec.ID)
		rec := ExerciseRecommendation{
			Spec:           adjusted,
			Recommendation: Calculate(adjusted, history),
		}
		if last, ok := st.LastEntry(spec.ID); ok {
			rec.LastEntry = &last
		}
		recs = append(recs, rec)
	}
	return recs
}
