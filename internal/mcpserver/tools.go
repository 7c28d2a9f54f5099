// Package mcpserver registers MCP tools that expose the study sync API.
// It adapts the app package to the MCP SDK's tool handler interface.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alexjbarnes/wordswipe-sync/internal/app"
	"github.com/alexjbarnes/wordswipe-sync/internal/models"
)

// RegisterTools adds all tools to the given MCP server.
func RegisterTools(server *mcp.Server, a *app.App) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "profile_get",
		Description: "Return the signed-in learner's profile: display name, friend code, word and session totals, last sync time.",
	}, profileGetHandler(a))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "profile_rename",
		Description: "Change the display name shown to friends. 1 to 40 characters after trimming.",
	}, profileRenameHandler(a))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_save",
		Description: "Push local study progress to the remote store now instead of waiting for the next periodic push.",
	}, syncSaveHandler(a))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_load",
		Description: "Pull remote study progress now and merge it into the local store. The newer review of each word wins.",
	}, syncLoadHandler(a))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "friend_find",
		Description: "Look up a learner by their 6-character friend code. Case-insensitive.",
	}, friendFindHandler(a))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "friend_add",
		Description: "Add the owner of a friend code as a friend. Reports success=false with a reason for unknown codes or your own code.",
	}, friendAddHandler(a))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "friend_list",
		Description: "List friends with their current profiles.",
	}, friendListHandler(a))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "leaderboard",
		Description: "Rank you and your friends by words studied. Set global=true to rank all learners instead.",
	}, leaderboardHandler(a))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "study_record_review",
		Description: "Record a review of one word in the local store. Fields are merged into the word's record and lastReview is stamped automatically.",
	}, recordReviewHandler(a))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "study_record_session",
		Description: "Count one study session for a day (YYYY-MM-DD, defaults to today).",
	}, recordSessionHandler(a))
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// EmptyInput has no parameters.
type EmptyInput struct{}

// RenameInput holds parameters for profile_rename.
type RenameInput struct {
	Name string `json:"name" jsonschema:"required,new display name"`
}

// CodeInput holds parameters for friend_find and friend_add.
type CodeInput struct {
	Code string `json:"code" jsonschema:"required,6-character friend code"`
}

// LeaderboardInput holds parameters for leaderboard.
type LeaderboardInput struct {
	Global bool `json:"global,omitempty" jsonschema:"rank all learners instead of friends only"`
}

// ReviewInput holds parameters for study_record_review.
type ReviewInput struct {
	Word   string         `json:"word" jsonschema:"required,word key"`
	Fields map[string]any `json:"fields,omitempty" jsonschema:"learning-state fields to store on the record"`
}

// SessionInput holds parameters for study_record_session.
type SessionInput struct {
	Day string `json:"day,omitempty" jsonschema:"date bucket YYYY-MM-DD, defaults to today"`
}

// --- Result types ---

// ProfileResult wraps a profile, absent before the first sync.
type ProfileResult struct {
	Profile *models.Profile `json:"profile,omitempty"`
}

// RenameResult reports the stored display name.
type RenameResult struct {
	Name string `json:"name"`
}

// SyncResult reports a completed push or pull.
type SyncResult struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// FriendsResult lists friends.
type FriendsResult struct {
	Friends []models.FriendView `json:"friends"`
}

// LeaderboardResult is a ranked list of profiles.
type LeaderboardResult struct {
	Global  bool             `json:"global"`
	Entries []models.Profile `json:"entries"`
}

// ReviewResult is the stored record for one word.
type ReviewResult struct {
	Word       string         `json:"word"`
	LastReview int64          `json:"lastReview"`
	Record     map[string]any `json:"record"`
}

// SessionResult is the stored bucket for one day.
type SessionResult struct {
	Day      string `json:"day"`
	Sessions int64  `json:"sessions"`
}

// --- Handlers ---

func profileGetHandler(a *app.App) mcp.ToolHandlerFor[EmptyInput, *ProfileResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *ProfileResult, error) {
		p, err := a.GetProfile(ctx)
		if err != nil {
			return nil, nil, err
		}

		result := &ProfileResult{Profile: p}

		return textResult(result), result, nil
	}
}

func profileRenameHandler(a *app.App) mcp.ToolHandlerFor[RenameInput, *RenameResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RenameInput) (*mcp.CallToolResult, *RenameResult, error) {
		name, err := a.UpdateDisplayName(ctx, input.Name)
		if err != nil {
			return nil, nil, err
		}

		result := &RenameResult{Name: name}

		return textResult(result), result, nil
	}
}

func syncSaveHandler(a *app.App) mcp.ToolHandlerFor[EmptyInput, *SyncResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *SyncResult, error) {
		if err := a.SaveNow(ctx); err != nil {
			return nil, nil, err
		}

		result := &SyncResult{OK: true, Status: a.Status().String()}

		return textResult(result), result, nil
	}
}

func syncLoadHandler(a *app.App) mcp.ToolHandlerFor[EmptyInput, *SyncResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *SyncResult, error) {
		if err := a.LoadNow(ctx); err != nil {
			return nil, nil, err
		}

		result := &SyncResult{OK: true, Status: a.Status().String()}

		return textResult(result), result, nil
	}
}

func friendFindHandler(a *app.App) mcp.ToolHandlerFor[CodeInput, *ProfileResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CodeInput) (*mcp.CallToolResult, *ProfileResult, error) {
		p, err := a.FindFriendByCode(ctx, input.Code)
		if err != nil {
			return nil, nil, err
		}

		result := &ProfileResult{Profile: p}

		return textResult(result), result, nil
	}
}

func friendAddHandler(a *app.App) mcp.ToolHandlerFor[CodeInput, *app.AddFriendResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CodeInput) (*mcp.CallToolResult, *app.AddFriendResult, error) {
		res, err := a.AddFriend(ctx, input.Code)
		if err != nil {
			return nil, nil, err
		}

		return textResult(res), &res, nil
	}
}

func friendListHandler(a *app.App) mcp.ToolHandlerFor[EmptyInput, *FriendsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *FriendsResult, error) {
		friends, err := a.ListFriends(ctx)
		if err != nil {
			return nil, nil, err
		}

		result := &FriendsResult{Friends: friends}

		return textResult(result), result, nil
	}
}

func leaderboardHandler(a *app.App) mcp.ToolHandlerFor[LeaderboardInput, *LeaderboardResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LeaderboardInput) (*mcp.CallToolResult, *LeaderboardResult, error) {
		var (
			entries []models.Profile
			err     error
		)

		if input.Global {
			entries, err = a.GlobalLeaderboard(ctx)
		} else {
			entries, err = a.GetLeaderboard(ctx)
		}

		if err != nil {
			return nil, nil, err
		}

		result := &LeaderboardResult{Global: input.Global, Entries: entries}

		return textResult(result), result, nil
	}
}

func recordReviewHandler(a *app.App) mcp.ToolHandlerFor[ReviewInput, *ReviewResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input ReviewInput) (*mcp.CallToolResult, *ReviewResult, error) {
		rec, err := a.RecordReview(input.Word, input.Fields)
		if err != nil {
			return nil, nil, err
		}

		fields, err := rec.Fields()
		if err != nil {
			return nil, nil, err
		}

		result := &ReviewResult{Word: input.Word, LastReview: rec.LastReview(), Record: fields}

		return textResult(result), result, nil
	}
}

func recordSessionHandler(a *app.App) mcp.ToolHandlerFor[SessionInput, *SessionResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, *SessionResult, error) {
		day, stats, err := a.RecordSession(input.Day)
		if err != nil {
			return nil, nil, err
		}

		result := &SessionResult{Day: day, Sessions: stats.Sessions()}

		return textResult(result), result, nil
	}
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
