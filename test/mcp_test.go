//go:build integration

package test

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/state"
	"github.com/BaptisteLac/Zeus-sub000/internal/syncclient"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(syncclient.TokenHeader, t.token)
	return t.base.RoundTrip(req)
}

func (s *IntegrationTestSuite) TestMCP_ToolsReadUserState() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	username := newUsername()
	d := s.newDevice()
	require.NoError(t, d.client.Register(ctx, username, testPassword))
	require.NoError(t, d.client.Login(ctx, username, testPassword))

	now := time.Now().UTC().Truncate(time.Millisecond)
	st := state.New(now)
	st.AppendEntry("squat", state.NewWorkoutEntry(now, 60, []int{8, 8, 8}, 2))
	st.Touch(now)
	require.NoError(t, d.store.Save(ctx, st))

	token, found, err := d.tokens.GetString("auth_token")
	require.NoError(t, err)
	require.True(t, found)

	client := mcp.NewClient(&mcp.Implementation{Name: "iron-test", Version: "test"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint: serverEndpoint + "/mcp",
		HTTPClient: &http.Client{
			Transport: &tokenTransport{token: token, base: http.DefaultTransport},
		},
	}, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_exercise_history",
		Arguments: map[string]any{"exercise_id": "squat"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, toolText(res), `"totalReps": 24`)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_progression",
		Arguments: map[string]any{"session": "A"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, toolText(res), "increase_charge")
}

func (s *IntegrationTestSuite) TestMCP_RequiresToken() {
	resp, err := http.Post(serverEndpoint+"/mcp", "application/json", strings.NewReader(`{}`))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func toolText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}
