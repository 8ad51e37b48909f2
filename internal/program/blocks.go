package program

import "time"

// Block is a multi-week training phase. Later blocks add volume and lower the rep ranges.
type Block int

const (
	Block1 Block = 1
	Block2 Block = 2
	Block3 Block = 3

	weeksPerBlock = 4
)

func (b Block) IsValid() bool {
	return b >= Block1 && b <= Block3
}

// WeekNumber returns the 1-based program week for now, given the program start date.
// A start date in the future (or a zero one) yields week 1.
func WeekNumber(start, now time.Time) int {
	if start.IsZero() || now.Before(start) {
		return 1
	}
	days := int(now.Sub(start).Hours() / 24)
	return days/7 + 1
}

// BlockForWeek maps a program week onto its block: weeks 1-4 -> 1, 5-8 -> 2, 9+ -> 3.
func BlockForWeek(week int) Block {
	switch {
	case week <= weeksPerBlock:
		return Block1
	case week <= 2*weeksPerBlock:
		return Block2
	default:
		return Block3
	}
}

// ApplyBlock returns a copy of spec with set and rep targets adjusted for block.
func ApplyBlock(spec ExerciseSpec, block Block) ExerciseSpec {
	var extraSets, repsDrop int
	switch block {
	case Block2:
		extraSets, repsDrop = 1, 2
	case Block3:
		extraSets, repsDrop = 1, 4
	default:
		return spec
	}

	spec.Sets = Range{Min: spec.Sets.Min + extraSets, Max: spec.Sets.Max + extraSets}
	spec.Reps = Range{Min: atLeastOne(spec.Reps.Min - repsDrop), Max: atLeastOne(spec.Reps.Max - repsDrop)}
	return spec
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
