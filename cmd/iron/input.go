package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BaptisteLac/Zeus-sub000/internal/state"
)

var errInputFormat = errors.New("expected: <charge> <reps,reps,...> [rir]")

// parseInput reads "<charge> <reps,reps,...> [rir]", e.g. "62.5 8,8,7 2".
// A missing RIR is recorded as 0.
func parseInput(args []string) (state.SessionInput, error) {
	if len(args) < 2 || len(args) > 3 {
		return state.SessionInput{}, errInputFormat
	}

	charge, err := strconv.ParseFloat(strings.Replace(args[0], ",", ".", 1), 64)
	if err != nil {
		return state.SessionInput{}, fmt.Errorf("charge %q: %w", args[0], errInputFormat)
	}

	var sets []int
	for _, part := range strings.Split(args[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		reps, err := strconv.Atoi(part)
		if err != nil {
			return state.SessionInput{}, fmt.Errorf("reps %q: %w", part, errInputFormat)
		}
		sets = append(sets, reps)
	}
	if len(sets) == 0 {
		return state.SessionInput{}, fmt.Errorf("no sets: %w", errInputFormat)
	}

	rir := 0
	if len(args) == 3 {
		rir, err = strconv.Atoi(args[2])
		if err != nil {
			return state.SessionInput{}, fmt.Errorf("rir %q: %w", args[2], errInputFormat)
		}
	}

	return state.SessionInput{Charge: charge, Sets: sets, RIR: rir}, nil
}
