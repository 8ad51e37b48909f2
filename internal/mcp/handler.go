package mcp

import (
	"context"

	"github.com/BaptisteLac/Zeus-sub000/internal/program"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler handles MCP tool requests and responses: parses input, calls the service, formats MCP result.
type Handler struct {
	service contextService
}

// NewHandler builds a handler with the given service.
func NewHandler(service contextService) *Handler {
	return &Handler{
		service: service,
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	text, err := marshalResult(v)
	if err != nil {
		return errorResult("Error encoding response: " + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// GetProgramTool returns the MCP tool handler for get_program.
func (h *Handler) GetProgramTool() func(context.Context, *mcp.CallToolRequest, any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
		overview, err := h.service.GetProgram(ctx)
		if err != nil {
			return errorResult("Error loading program: " + err.Error()), nil, nil
		}
		return jsonResult(overview), nil, nil
	}
}

// ExerciseHistoryInput is the input for get_exercise_history.
type ExerciseHistoryInput struct {
	ExerciseID string `json:"exercise_id" jsonschema:"Exercise id from the program (e.g. squat)"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Only return the most recent entries (0 = all)"`
}

// GetExerciseHistoryTool returns the MCP tool handler for get_exercise_history.
func (h *Handler) GetExerciseHistoryTool() func(context.Context, *mcp.CallToolRequest, ExerciseHistoryInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in ExerciseHistoryInput) (*mcp.CallToolResult, any, error) {
		if in.ExerciseID == "" {
			return errorResult("Missing exercise_id"), nil, nil
		}
		if in.Limit < 0 {
			return errorResult("Invalid limit: must be >= 0"), nil, nil
		}
		history, err := h.service.GetExerciseHistory(ctx, in.ExerciseID, in.Limit)
		if err != nil {
			return errorResult("Error fetching exercise history: " + err.Error()), nil, nil
		}
		return jsonResult(history), nil, nil
	}
}

// ProgressionInput is the input for get_progression.
type ProgressionInput struct {
	Session string `json:"session,omitempty" jsonschema:"Session A, B or C (default: the next session to perform)"`
}

// GetProgressionTool returns the MCP tool handler for get_progression.
func (h *Handler) GetProgressionTool() func(context.Context, *mcp.CallToolRequest, ProgressionInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in ProgressionInput) (*mcp.CallToolResult, any, error) {
		var session program.SessionID
		if in.Session != "" {
			parsed, err := program.ParseSession(in.Session)
			if err != nil {
				return errorResult("Invalid session: use A, B or C"), nil, nil
			}
			session = parsed
		}
		prog, err := h.service.GetProgression(ctx, session)
		if err != nil {
			return errorResult("Error computing progression: " + err.Error()), nil, nil
		}
		return jsonResult(prog), nil, nil
	}
}
