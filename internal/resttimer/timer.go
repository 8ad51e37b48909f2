// Package resttimer keeps the end of the current rest period in the
// iron-timer namespace so that it survives a restart.
package resttimer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/faststore"

	log "github.com/sirupsen/logrus"
)

const restKey = "rest"

var ErrInvalidDuration = errors.New("rest duration must be positive")

type Rest struct {
	ExerciseID string    `json:"exerciseId"`
	StartedAt  time.Time `json:"startedAt"`
	EndsAt     time.Time `json:"endsAt"`
}

func (r Rest) Remaining(now time.Time) time.Duration {
	if left := r.EndsAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

type Timer struct {
	store faststore.Store
}

func New(store faststore.Store) *Timer {
	return &Timer{store: store}
}

func (t *Timer) Start(exerciseID string, d time.Duration, now time.Time) (Rest, error) {
	if d <= 0 {
		return Rest{}, ErrInvalidDuration
	}
	rest := Rest{ExerciseID: exerciseID, StartedAt: now, EndsAt: now.Add(d)}
	data, err := json.Marshal(rest)
	if err != nil {
		return Rest{}, fmt.Errorf("encode rest: %w", err)
	}
	if err := t.store.Set(restKey, string(data)); err != nil {
		return Rest{}, fmt.Errorf("store rest: %w", err)
	}
	return rest, nil
}

// Current returns the running rest, if any. An unreadable record is dropped.
func (t *Timer) Current() (Rest, bool, error) {
	raw, found, err := t.store.GetString(restKey)
	if err != nil || !found {
		return Rest{}, false, err
	}
	var rest Rest
	if err := json.Unmarshal([]byte(raw), &rest); err != nil {
		log.Warnf("rest timer, dropping unreadable record: %s", err)
		return Rest{}, false, t.Clear()
	}
	return rest, true, nil
}

// Remaining is zero when no rest runs or the rest is over.
func (t *Timer) Remaining(now time.Time) (time.Duration, error) {
	rest, found, err := t.Current()
	if err != nil || !found {
		return 0, err
	}
	return rest.Remaining(now), nil
}

func (t *Timer) Clear() error {
	return t.store.Delete(restKey)
}
