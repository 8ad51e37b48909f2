package syncclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/faststore"
	"github.com/BaptisteLac/Zeus-sub000/internal/syncclient"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token-123"

type fakeServer struct {
	state     json.RawMessage
	timestamp time.Time
	pushes    int
}

func (f *fakeServer) router(t *testing.T) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/a/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Username != "lifter" || creds.Password != "secret" {
			http.Error(w, "error, wrong credentials", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token": "` + testToken + `"}`))
	}).Methods("POST")
	r.HandleFunc("/a/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}).Methods("POST")
	r.HandleFunc("/a/logout", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testToken, r.Header.Get(syncclient.TokenHeader))
		w.Write([]byte("logged-out"))
	}).Methods("POST")
	r.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(syncclient.TokenHeader) != testToken {
			http.Error(w, "no can do", http.StatusUnauthorized)
			return
		}
		if f.state == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"state": f.state, "timestamp": f.timestamp})
	}).Methods("GET")
	r.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(syncclient.TokenHeader) != testToken {
			http.Error(w, "no can do", http.StatusUnauthorized)
			return
		}
		f.pushes++
		var body syncclient.RemoteState
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		applied := body.Timestamp.After(f.timestamp)
		if applied {
			f.state, f.timestamp = body.State, body.Timestamp
		}
		json.NewEncoder(w).Encode(syncclient.PushResult{Applied: applied, Timestamp: f.timestamp})
	}).Methods("PUT")
	return r
}

func newTestClient(t *testing.T, f *fakeServer) (*syncclient.Client, faststore.Store) {
	t.Helper()
	srv := httptest.NewServer(f.router(t))
	t.Cleanup(srv.Close)
	tokens := faststore.NewMemoryStore(faststore.DefaultMemorySize)
	return syncclient.NewClient(srv.URL+"/", tokens, srv.Client()), tokens
}

func TestClient_LoginPushPull(t *testing.T) {
	ctx := context.Background()
	f := &fakeServer{}
	c, _ := newTestClient(t, f)

	authenticated, err := c.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, authenticated)

	_, err = c.Pull(ctx)
	assert.ErrorIs(t, err, syncclient.ErrNotAuthenticated)

	assert.ErrorIs(t, c.Login(ctx, "lifter", "wrong"), syncclient.ErrWrongCredentials)
	require.NoError(t, c.Login(ctx, "lifter", "secret"))
	authenticated, err = c.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, authenticated)

	remote, err := c.Pull(ctx)
	require.NoError(t, err)
	assert.Nil(t, remote)

	ts := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	res, err := c.Push(ctx, []byte(`{"week":2}`), ts)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, ts.Equal(res.Timestamp))

	res, err = c.Push(ctx, []byte(`{"week":1}`), ts.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, res.Applied)

	remote, err = c.Pull(ctx)
	require.NoError(t, err)
	require.NotNil(t, remote)
	assert.JSONEq(t, `{"week":2}`, string(remote.State))
	assert.True(t, ts.Equal(remote.Timestamp))
	assert.Equal(t, 2, f.pushes)
}

func TestClient_RejectedTokenIsForgotten(t *testing.T) {
	ctx := context.Background()
	c, tokens := newTestClient(t, &fakeServer{})
	require.NoError(t, tokens.Set("auth_token", "expired"))

	_, err := c.Pull(ctx)
	assert.ErrorIs(t, err, syncclient.ErrNotAuthenticated)

	authenticated, err := c.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, authenticated)
}

func TestClient_Logout(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, &fakeServer{})

	require.NoError(t, c.Logout(ctx), "logout without token is a no-op")

	require.NoError(t, c.Login(ctx, "lifter", "secret"))
	require.NoError(t, c.Logout(ctx))
	authenticated, err := c.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, authenticated)
}

func TestClient_RegisterConflict(t *testing.T) {
	c, _ := newTestClient(t, &fakeServer{})
	assert.ErrorIs(t, c.Register(context.Background(), "lifter", "secret"), syncclient.ErrUserExists)
}

func TestClient_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tokens := faststore.NewMemoryStore(faststore.DefaultMemorySize)
	require.NoError(t, tokens.Set("auth_token", testToken))
	c := syncclient.NewClient(srv.URL, tokens, srv.Client())

	_, err := c.Pull(context.Background())
	var statusErr *syncclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "db down", statusErr.Body)
}
