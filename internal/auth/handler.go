package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/telemetry/tracing"
	"github.com/BaptisteLac/Zeus-sub000/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=auth

// TokenHeader is read by logout and by the auth middleware.
const TokenHeader = "X-IRON-TOKEN"

type authenticator interface {
	Register(ctx context.Context, creds Credentials) (*User, error)
	Login(ctx context.Context, creds Credentials, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type LoginResponse struct {
	Token string `json:"token"`
}

type RegisterResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

type Handler struct {
	service             authenticator
	registrationEnabled bool
}

func NewHandler(service authenticator, registrationEnabled bool) *Handler {
	return &Handler{
		service:             service,
		registrationEnabled: registrationEnabled,
	}
}

// readCredentials accepts a JSON body or a form.
func readCredentials(r *http.Request) (Credentials, error) {
	var creds Credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return Credentials{}, err
		}
		return creds, nil
	}
	if err := r.ParseForm(); err != nil {
		return Credentials{}, err
	}
	creds.Username = r.Form.Get("username")
	creds.Password = r.Form.Get("password")
	return creds, nil
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.register")
	defer span.End()

	if !h.registrationEnabled {
		http.Error(w, "registration disabled", http.StatusForbidden)
		span.SetStatus(codes.Error, "registration-disabled")
		return
	}

	creds, err := readCredentials(r)
	if err != nil {
		log.Errorf("register, read credentials: %s", err)
		http.Error(w, "invalid credentials", http.StatusBadRequest)
		return
	}

	user, err := h.service.Register(ctx, creds)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrUserExists):
			http.Error(w, "user already exists", http.StatusConflict)
		default:
			log.Errorf("register [%s]: %s", creds.Username, err)
			http.Error(w, "register failed", http.StatusInternalServerError)
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "register-failed")
		return
	}

	log.Printf("new user registered: %d [%s]", user.ID, user.Username)
	pkg.WriteJSON(w, RegisterResponse{ID: user.ID, Username: user.Username}, http.StatusCreated)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.login")
	defer span.End()

	creds, err := readCredentials(r)
	if err != nil {
		log.Errorf("login, read credentials: %s", err)
		http.Error(w, "invalid credentials", http.StatusBadRequest)
		return
	}
	if creds.Username == "" || creds.Password == "" {
		http.Error(w, "error, username or password empty", http.StatusBadRequest)
		return
	}

	token, err := h.service.Login(ctx, creds, time.Now())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrWrongPassword) {
			log.Debugf("login [%s]: %s", creds.Username, err)
			http.Error(w, "no can do", http.StatusUnauthorized)
		} else {
			log.Errorf("login [%s]: %s", creds.Username, err)
			http.Error(w, "login failed", http.StatusInternalServerError)
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "login-failed")
		return
	}

	pkg.WriteJSON(w, LoginResponse{Token: token}, http.StatusOK)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.logout")
	defer span.End()

	token := r.Header.Get(TokenHeader)
	if token == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	loggedOut, err := h.service.Logout(ctx, token)
	if err != nil {
		log.Errorf("logout: %s", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		span.RecordError(err)
		return
	}
	if !loggedOut {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	pkg.WriteTextResponseOK(w, "logged-out")
}
