// Package durable persists the full app state: a local cache that is always
// written, and the remote copy when the user is signed in.
package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/faststore"
	"github.com/BaptisteLac/Zeus-sub000/internal/state"
	"github.com/BaptisteLac/Zeus-sub000/internal/syncclient"
	"github.com/BaptisteLac/Zeus-sub000/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	appStateKey = "app_state"
	lastSyncKey = "last_sync"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=durable_test

// Remote is the hosted copy of the state.
type Remote interface {
	IsAuthenticated(ctx context.Context) (bool, error)
	Pull(ctx context.Context) (*syncclient.RemoteState, error)
	Push(ctx context.Context, data []byte, timestamp time.Time) (*syncclient.PushResult, error)
}

type Source string

const (
	SourceLocal   Source = "local"
	SourceRemote  Source = "remote"
	SourceDefault Source = "default"
)

type LoadResult struct {
	State  *state.AppState
	Source Source
	// RemoteErr is set when the remote could not be reached; the local copy is used then.
	RemoteErr error
}

type Store struct {
	// mu makes the compare-and-set of the local cache atomic: saves run on
	// concurrent goroutines and may finish in any order.
	mu     sync.Mutex
	local  faststore.Store
	remote Remote
	// injectable clock (for unit tests)
	NowFunc func() time.Time
}

// NewStore returns a store caching into local (the iron-state namespace).
// remote may be nil for a local-only setup.
func NewStore(local faststore.Store, remote Remote) *Store {
	return &Store{
		local:   local,
		remote:  remote,
		NowFunc: time.Now,
	}
}

func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	if s.remote == nil {
		return false, nil
	}
	return s.remote.IsAuthenticated(ctx)
}

// Load returns the reconciled state. The remote copy wins only when it is strictly
// newer than both the last sync and the local copy; it is then written to the cache.
// Every loaded state is normalized and its week and block refreshed.
func (s *Store) Load(ctx context.Context) (_ *LoadResult, err error) {
	ctx, span := tracing.ClientTracer.Start(ctx, "durable.load")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	now := s.NowFunc()
	local, err := s.loadLocal(now)
	if err != nil {
		return nil, err
	}
	lastSync, err := s.lastSync()
	if err != nil {
		return nil, err
	}

	result := &LoadResult{State: local, Source: SourceLocal}
	if local == nil {
		result.Source = SourceDefault
	}

	remote, err := s.pullRemote(ctx)
	if err != nil {
		log.Warnf("durable store, remote load failed, using local copy: %s", err)
		result.RemoteErr = err
	}

	if remote != nil {
		// local edits not pushed yet count too, not only the last sync
		known := lastSync
		if local != nil && local.UpdatedAt.After(known) {
			known = local.UpdatedAt
		}
		if remote.Timestamp.After(known) {
			remoteState, decodeErr := state.Decode(remote.State, now)
			if decodeErr != nil {
				log.Errorf("durable store, remote state is unreadable, ignoring it: %s", decodeErr)
				result.RemoteErr = decodeErr
			} else {
				if err := s.cache(remote.State, remote.Timestamp); err != nil {
					return nil, err
				}
				result.State, result.Source = remoteState, SourceRemote
			}
		}
	}

	if result.State == nil {
		result.State = state.New(now)
	}
	result.State.RefreshWeek(now)

	span.SetAttributes(attribute.String("source", string(result.Source)))
	return result, nil
}

// Save writes the local cache and, when signed in, pushes to the remote.
// Like the server upsert, the cache only takes a strictly newer state; an older
// one is dropped without a push. An equal one is still pushed, so that a sync
// after offline edits reaches the remote. A push the remote rejected as older
// leaves the last sync untouched.
func (s *Store) Save(ctx context.Context, st *state.AppState) (err error) {
	ctx, span := tracing.ClientTracer.Start(ctx, "durable.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	data, err := state.Encode(st)
	if err != nil {
		return err
	}
	stale, err := s.cacheIfNewer(data, st.UpdatedAt)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Bool("stale", stale))
	if stale {
		log.Debugf("durable store, dropping save from %s, the cache is newer", st.UpdatedAt)
		return nil
	}

	authenticated, err := s.IsAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("check auth: %w", err)
	}
	if !authenticated {
		return nil
	}

	res, err := s.remote.Push(ctx, data, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("push state: %w", err)
	}
	span.SetAttributes(attribute.Bool("applied", res.Applied))
	if !res.Applied {
		log.Debugf("durable store, remote kept its newer copy from %s", res.Timestamp)
		return nil
	}
	return s.advanceLastSync(st.UpdatedAt)
}

// cacheIfNewer writes data when updatedAt is strictly newer than the cached state.
// It reports stale when the cached state is newer.
func (s *Store) cacheIfNewer(data []byte, updatedAt time.Time) (stale bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cachedAt, found, err := s.cachedUpdatedAt()
	if err != nil {
		return false, err
	}
	if found && !updatedAt.After(cachedAt) {
		return updatedAt.Before(cachedAt), nil
	}
	if err := s.local.Set(appStateKey, string(data)); err != nil {
		return false, fmt.Errorf("write local cache: %w", err)
	}
	return false, nil
}

// cachedUpdatedAt reads the timestamp of the cached state. An unreadable cache
// counts as absent, the next save replaces it.
func (s *Store) cachedUpdatedAt() (time.Time, bool, error) {
	raw, found, err := s.local.GetString(appStateKey)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read local cache: %w", err)
	}
	if !found {
		return time.Time{}, false, nil
	}
	var stamp struct {
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal([]byte(raw), &stamp); err != nil {
		return time.Time{}, false, nil
	}
	return stamp.UpdatedAt, true, nil
}

func (s *Store) advanceLastSync(ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.lastSync()
	if err != nil {
		return err
	}
	if !ts.After(current) {
		return nil
	}
	return s.setLastSync(ts)
}

func (s *Store) loadLocal(now time.Time) (*state.AppState, error) {
	raw, found, err := s.local.GetString(appStateKey)
	if err != nil {
		return nil, fmt.Errorf("read local cache: %w", err)
	}
	if !found {
		return nil, nil
	}
	st, err := state.Decode([]byte(raw), now)
	if err != nil {
		log.Errorf("durable store, local cache is unreadable, ignoring it: %s", err)
		return nil, nil
	}
	return st, nil
}

func (s *Store) pullRemote(ctx context.Context) (*syncclient.RemoteState, error) {
	authenticated, err := s.IsAuthenticated(ctx)
	if err != nil {
		return nil, fmt.Errorf("check auth: %w", err)
	}
	if !authenticated {
		return nil, nil
	}
	return s.remote.Pull(ctx)
}

func (s *Store) lastSync() (time.Time, error) {
	raw, found, err := s.local.GetString(lastSyncKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("read last sync: %w", err)
	}
	if !found {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		log.Warnf("durable store, invalid last sync %q: %s", raw, err)
		return time.Time{}, nil
	}
	return ts, nil
}

func (s *Store) setLastSync(ts time.Time) error {
	if err := s.local.Set(lastSyncKey, ts.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write last sync: %w", err)
	}
	return nil
}

func (s *Store) cache(data []byte, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.Set(appStateKey, string(data)); err != nil {
		return fmt.Errorf("write local cache: %w", err)
	}
	return s.setLastSync(ts)
}
