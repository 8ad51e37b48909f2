package syncapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/middleware"
	"github.com/BaptisteLac/Zeus-sub000/internal/telemetry/metrics"
	"github.com/BaptisteLac/Zeus-sub000/internal/telemetry/tracing"
	"github.com/BaptisteLac/Zeus-sub000/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=syncapi_test

// MaxStateBytes bounds a single uploaded AppState.
const MaxStateBytes = 4 << 20

type stateRepo interface {
	Get(ctx context.Context, userID int) (*StoredState, error)
	Upsert(ctx context.Context, userID int, data json.RawMessage, updatedAt time.Time) (bool, time.Time, error)
}

type StateResponse struct {
	State     json.RawMessage `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
}

type PutStateRequest struct {
	State     json.RawMessage `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
}

type PutStateResponse struct {
	Applied   bool      `json:"applied"`
	Timestamp time.Time `json:"timestamp"`
}

type Handler struct {
	repo           stateRepo
	metricsManager *metrics.Manager
}

func NewHandler(repo stateRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.state.get")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	stored, err := handler.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.Errorf("failed to get state of user %d: %s", userID, err)
		http.Error(w, "failed to get state", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "get-failed")
		span.RecordError(err)
		return
	}

	pkg.WriteJSON(w, StateResponse{
		State:     stored.Data,
		Timestamp: stored.UpdatedAt,
	}, http.StatusOK)
}

func (handler *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.state.put")
	defer span.End()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))

	var req PutStateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxStateBytes)).Decode(&req); err != nil {
		log.Errorf("put state of user %d, unmarshal json: %s", userID, err)
		http.Error(w, "invalid state payload", http.StatusBadRequest)
		return
	}
	if len(req.State) == 0 || !json.Valid(req.State) || req.State[0] != '{' {
		http.Error(w, "error, state must be a json object", http.StatusBadRequest)
		return
	}
	if req.Timestamp.IsZero() {
		http.Error(w, "error, timestamp missing", http.StatusBadRequest)
		return
	}

	applied, current, err := handler.repo.Upsert(ctx, userID, req.State, req.Timestamp)
	if err != nil {
		log.Errorf("failed to store state of user %d: %s", userID, err)
		http.Error(w, "failed to store state", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "upsert-failed")
		span.RecordError(err)
		return
	}

	outcome := "applied"
	if !applied {
		outcome = "stale"
		log.Debugf("state of user %d not applied, server copy from %s is newer than %s", userID, current, req.Timestamp)
	}
	if handler.metricsManager != nil {
		handler.metricsManager.CounterStateWrites.WithLabelValues(outcome).Inc()
	}
	span.SetAttributes(attribute.Bool("state.applied", applied))

	pkg.WriteJSON(w, PutStateResponse{
		Applied:   applied,
		Timestamp: current,
	}, http.StatusOK)
}
