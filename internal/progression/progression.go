package progression

import (
	"fmt"

	"github.com/BaptisteLac/Zeus-sub000/internal/program"
	"github.com/BaptisteLac/Zeus-sub000/internal/state"
)

const (
	// ChargeIncrement is added to the charge once a progression is validated, in kg.
	ChargeIncrement = 2.5
	// GoodRIRMax is the highest reps-in-reserve value still considered good.
	GoodRIRMax = 2
)

type Kind string

const (
	KindIncreaseCharge Kind = "increase_charge"
	KindIncreaseReps   Kind = "increase_reps"
	KindStagnation     Kind = "stagnation"
)

// Result is a recommendation for the next time an exercise is performed.
type Result struct {
	Kind            Kind    `json:"type"`
	NextCharge      float64 `json:"nextCharge"`
	TargetTotalReps int     `json:"targetTotalReps"`
	Message         string  `json:"message"`
}

// Calculate derives the recommendation from the exercise spec and its history,
// ordered oldest first. It returns nil when history is empty.
//
// Rules are checked in order and the first match wins:
//  1. all sets at max reps with a hard RIR: keep the charge, repeat the reps
//  2. all sets at max reps with a good RIR: add ChargeIncrement
//  3. same charge and total reps as the previous entry: stagnation
//  4. otherwise beat the last total by one rep
func Calculate(spec program.ExerciseSpec, history []state.WorkoutEntry) *Result {
	if len(history) == 0 {
		return nil
	}

	last := history[len(history)-1]
	atMax := allSetsAtMax(last.Sets, spec.Reps.Max)
	goodRIR := last.RIR <= GoodRIRMax

	switch {
	case atMax && !goodRIR:
		return &Result{
			Kind:            KindIncreaseReps,
			NextCharge:      last.Charge,
			TargetTotalReps: last.TotalReps,
			Message: fmt.Sprintf(
				"Max reps reached at RIR %d. Stay at %s kg and repeat %d reps with better control.",
				last.RIR, formatCharge(last.Charge), last.TotalReps,
			),
		}
	case atMax && goodRIR:
		next := last.Charge + ChargeIncrement
		target := spec.SetCountTarget() * spec.Reps.Min
		return &Result{
			Kind:            KindIncreaseCharge,
			NextCharge:      next,
			TargetTotalReps: target,
			Message: fmt.Sprintf(
				"Progression validated. Move up to %s kg and aim for at least %d total reps.",
				formatCharge(next), target,
			),
		}
	}

	if len(history) >= 2 {
		prev := history[len(history)-2]
		if prev.Charge == last.Charge && prev.TotalReps == last.TotalReps {
			return &Result{
				Kind:            KindStagnation,
				NextCharge:      last.Charge,
				TargetTotalReps: last.TotalReps,
				Message: fmt.Sprintf(
					"No change over the last two sessions at %s kg. Consider reducing volume or taking a deload week.",
					formatCharge(last.Charge),
				),
			}
		}
	}

	return &Result{
		Kind:            KindIncreaseReps,
		NextCharge:      last.Charge,
		TargetTotalReps: last.TotalReps + 1,
		Message: fmt.Sprintf(
			"Stay at %s kg and beat your last total: %d reps or more.",
			formatCharge(last.Charge), last.TotalReps+1,
		),
	}
}

// allSetsAtMax treats an empty set list as a single set of zero reps.
func allSetsAtMax(sets []int, repsMax int) bool {
	if len(sets) == 0 {
		return 0 >= repsMax
	}
	for _, reps := range sets {
		if reps < repsMax {
			return false
		}
	}
	return true
}

func formatCharge(charge float64) string {
	return fmt.Sprintf("%g", charge)
}
