package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer builds an MCP server with the progression tools over source:
// program overview, exercise history, next-session recommendations.
// Used by cmd/iron-mcp over stdio and by the sync backend at /mcp.
func NewServer(source StateSource) *mcp.Server {
	h := NewHandler(NewContextService(source))
	s := mcp.NewServer(&mcp.Implementation{
		Name:    "iron-progression",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_program",
		Description: "Returns the lifter's position in the program (next session, block, week) and each session's exercises with sets, reps, rest and target RIR adjusted to the current block.",
	}, h.GetProgramTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_exercise_history",
		Description: "Returns the logged entries (date, charge, reps per set, total reps, RIR) of one exercise, oldest first. Args: exercise_id; optional: limit. Use when you need to see how an exercise evolved.",
	}, h.GetExerciseHistoryTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_progression",
		Description: "Returns the recommendation for each exercise of a session (increase charge, increase reps or stagnation) with the next charge and target total reps. Optional arg: session (A, B, C), defaults to the next session.",
	}, h.GetProgressionTool())

	return s
}

// NewHTTPHandler serves the tools over the streamable HTTP transport.
// sourceFor picks the state of the user behind each request; a nil source rejects the request.
func NewHTTPHandler(sourceFor func(r *http.Request) StateSource) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		source := sourceFor(r)
		if source == nil {
			return nil
		}
		return NewServer(source)
	}, nil)
}
