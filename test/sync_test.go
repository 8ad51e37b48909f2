//go:build integration

package test

import (
	"context"
	"net/http"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/durable"
	"github.com/BaptisteLac/Zeus-sub000/internal/state"
	"github.com/BaptisteLac/Zeus-sub000/internal/syncclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestAuth_RegisterLoginLogout() {
	t := s.T()
	ctx := context.Background()
	username := newUsername()

	phone := s.newDevice()
	require.NoError(t, phone.client.Register(ctx, username, testPassword))
	assert.ErrorIs(t, phone.client.Register(ctx, username, testPassword), syncclient.ErrUserExists)

	assert.ErrorIs(t, phone.client.Login(ctx, username, "wrong-password"), syncclient.ErrWrongCredentials)
	assert.ErrorIs(t, phone.client.Login(ctx, "nobody-"+username, testPassword), syncclient.ErrWrongCredentials)

	require.NoError(t, phone.client.Login(ctx, username, testPassword))
	authenticated, err := phone.client.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, authenticated)

	token, found, err := phone.tokens.GetString("auth_token")
	require.NoError(t, err)
	require.True(t, found)

	remote, err := phone.client.Pull(ctx)
	require.NoError(t, err)
	assert.Nil(t, remote, "a new account has no state")

	require.NoError(t, phone.client.Logout(ctx))
	_, err = phone.client.Pull(ctx)
	assert.ErrorIs(t, err, syncclient.ErrNotAuthenticated)

	// the old token is gone on the server too
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverEndpoint+"/state", nil)
	require.NoError(t, err)
	req.Header.Set(syncclient.TokenHeader, token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestState_RequiresToken() {
	resp, err := http.Get(serverEndpoint + "/state")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestSync_LastWriteWins() {
	t := s.T()
	ctx := context.Background()
	username := newUsername()
	// postgres keeps microseconds
	now := time.Now().UTC().Truncate(time.Millisecond)

	phone := s.newDevice()
	require.NoError(t, phone.client.Register(ctx, username, testPassword))
	require.NoError(t, phone.client.Login(ctx, username, testPassword))

	st := state.New(now.Add(-time.Hour))
	st.AppendEntry("squat", state.NewWorkoutEntry(now, 60, []int{8, 8, 7}, 2))
	st.Touch(now)
	require.NoError(t, phone.store.Save(ctx, st))

	laptop := s.newDevice()
	require.NoError(t, laptop.client.Login(ctx, username, testPassword))
	loaded, err := laptop.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, durable.SourceRemote, loaded.Source)
	require.Len(t, loaded.State.History["squat"], 1)
	assert.Equal(t, 23, loaded.State.History["squat"][0].TotalReps)
	assert.True(t, now.Equal(loaded.State.UpdatedAt))

	// an older copy never overwrites the server
	stale := loaded.State.Clone()
	stale.ResetHistory("")
	stale.UpdatedAt = now.Add(-time.Minute)
	res, err := laptop.client.Push(ctx, mustEncode(t, stale), stale.UpdatedAt)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.True(t, now.Equal(res.Timestamp))

	// neither does an equal one
	res, err = laptop.client.Push(ctx, mustEncode(t, stale), now)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	newer := loaded.State.Clone()
	newer.AppendEntry("bench_press", state.NewWorkoutEntry(now.Add(time.Minute), 50, []int{8, 8, 8}, 1))
	newer.Touch(now.Add(time.Minute))
	require.NoError(t, laptop.store.Save(ctx, newer))

	remote, err := phone.client.Pull(ctx)
	require.NoError(t, err)
	require.NotNil(t, remote)
	assert.True(t, now.Add(time.Minute).Equal(remote.Timestamp))

	reloaded, err := phone.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, durable.SourceRemote, reloaded.Source)
	assert.Len(t, reloaded.State.History["bench_press"], 1)
	assert.Len(t, reloaded.State.History["squat"], 1)
}

func (s *IntegrationTestSuite) TestSync_RejectsBadPayload() {
	t := s.T()
	ctx := context.Background()
	username := newUsername()

	d := s.newDevice()
	require.NoError(t, d.client.Register(ctx, username, testPassword))
	require.NoError(t, d.client.Login(ctx, username, testPassword))

	_, err := d.client.Push(ctx, []byte(`[1, 2, 3]`), time.Now())
	var statusErr *syncclient.StatusError
	require.ErrorAs(t, err, &statusErr)
}

func mustEncode(t require.TestingT, st *state.AppState) []byte {
	data, err := state.Encode(st)
	require.NoError(t, err)
	return data
}
