package syncapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrStateNotFound = errors.New("state not found")

// StoredState is the opaque AppState blob of one user.
type StoredState struct {
	UserID    int
	Data      json.RawMessage
	UpdatedAt time.Time
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Get(ctx context.Context, userID int) (*StoredState, error) {
	st := &StoredState{UserID: userID}
	err := r.db.QueryRow(
		ctx,
		`SELECT data, updated_at FROM app_state WHERE user_id = $1`,
		userID,
	).Scan(&st.Data, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("get state: %w", err)
	}
	return st, nil
}

// Upsert stores data only when updatedAt is strictly newer than the stored copy.
// It returns whether the write was applied and the timestamp the server now holds.
func (r *Repo) Upsert(ctx context.Context, userID int, data json.RawMessage, updatedAt time.Time) (bool, time.Time, error) {
	var stored time.Time
	err := r.db.QueryRow(
		ctx,
		`INSERT INTO app_state (user_id, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
			SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
			WHERE app_state.updated_at < EXCLUDED.updated_at
		RETURNING updated_at`,
		userID, []byte(data), updatedAt.UTC(),
	).Scan(&stored)
	if err == nil {
		return true, stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, time.Time{}, fmt.Errorf("upsert state: %w", err)
	}

	// conflict row not updated: the server copy is as new or newer
	current, err := r.Get(ctx, userID)
	if err != nil {
		return false, time.Time{}, err
	}
	return false, current.UpdatedAt, nil
}
