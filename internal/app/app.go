// Package app is the API surface offered to UI and tool callers. It binds
// the sync controller and the friend service to the active session.
package app

import (
	"context"
	"errors"
	"log/slog"

	wserrors "github.com/alexjbarnes/wordswipe-sync/internal/errors"
	"github.com/alexjbarnes/wordswipe-sync/internal/friends"
	"github.com/alexjbarnes/wordswipe-sync/internal/models"
	"github.com/alexjbarnes/wordswipe-sync/internal/wordsync"
)

// AddFriendResult is the outcome of AddFriend. Expected failures
// (unknown code, own code) are reported here rather than as an error.
type AddFriendResult struct {
	Success bool               `json:"success"`
	Error   string             `json:"error,omitempty"`
	Friend  *models.FriendEdge `json:"friend,omitempty"`
}

// Snapshot is the local study data.
type Snapshot struct {
	Studied models.StudiedSet `json:"studied"`
	Stats   models.StatsSet   `json:"stats"`
}

// App wires the controller and friend service together.
type App struct {
	sync            *wordsync.Controller
	friends         *friends.Service
	leaderboardSize int
	logger          *slog.Logger
}

// New creates an App. leaderboardSize <= 0 uses the friends default.
func New(ctrl *wordsync.Controller, svc *friends.Service, leaderboardSize int, logger *slog.Logger) *App {
	return &App{
		sync:            ctrl,
		friends:         svc,
		leaderboardSize: leaderboardSize,
		logger:          logger,
	}
}

// Initialize starts the sync lifecycle and returns the session.
func (a *App) Initialize(ctx context.Context) (*models.Session, error) {
	return a.sync.Start(ctx)
}

// Status returns the controller's lifecycle state.
func (a *App) Status() wordsync.Status {
	return a.sync.State()
}

// GetProfile returns the caller's profile, or nil before it exists.
func (a *App) GetProfile(ctx context.Context) (*models.Profile, error) {
	return a.friends.GetProfile(ctx, a.sync.Session())
}

// UpdateDisplayName renames the caller and returns the stored name.
func (a *App) UpdateDisplayName(ctx context.Context, name string) (string, error) {
	return a.friends.UpdateDisplayName(ctx, a.sync.Session(), name)
}

// SaveNow pushes local progress immediately.
func (a *App) SaveNow(ctx context.Context) error {
	return a.sync.SaveNow(ctx)
}

// LoadNow pulls remote progress immediately.
func (a *App) LoadNow(ctx context.Context) error {
	return a.sync.LoadNow(ctx)
}

// FindFriendByCode looks up a profile by friend code.
func (a *App) FindFriendByCode(ctx context.Context, code string) (*models.Profile, error) {
	return a.friends.FindByCode(ctx, a.sync.Session(), code)
}

// AddFriend adds the owner of code as a friend. Only transport and
// session failures are returned as errors.
func (a *App) AddFriend(ctx context.Context, code string) (AddFriendResult, error) {
	edge, err := a.friends.AddFriend(ctx, a.sync.Session(), code)

	switch {
	case err == nil:
		return AddFriendResult{Success: true, Friend: edge}, nil
	case errors.Is(err, wserrors.ErrNotFound), errors.Is(err, wserrors.ErrSelfReference):
		return AddFriendResult{Error: err.Error()}, nil
	default:
		return AddFriendResult{}, err
	}
}

// ListFriends returns the caller's friends with live profiles.
func (a *App) ListFriends(ctx context.Context) ([]models.FriendView, error) {
	return a.friends.ListFriends(ctx, a.sync.Session())
}

// GetLeaderboard ranks the caller and their friends.
func (a *App) GetLeaderboard(ctx context.Context) ([]models.Profile, error) {
	return a.friends.Leaderboard(ctx, a.sync.Session(), a.leaderboardSize)
}

// GlobalLeaderboard ranks all users.
func (a *App) GlobalLeaderboard(ctx context.Context) ([]models.Profile, error) {
	return a.friends.GlobalLeaderboard(ctx, a.sync.Session(), a.leaderboardSize)
}

// RecordReview stores one word's progress locally. It works while
// signed out; the next push carries it.
func (a *App) RecordReview(word string, fields map[string]any) (models.ProgressRecord, error) {
	return a.sync.RecordReview(word, fields)
}

// RecordSession counts a study session for day (YYYY-MM-DD, empty for
// today) and returns the resolved day with its bucket.
func (a *App) RecordSession(day string) (string, models.DayStats, error) {
	return a.sync.RecordSession(day)
}

// Snapshot returns the local study data.
func (a *App) Snapshot() (Snapshot, error) {
	studied, stats, err := a.sync.Snapshot()
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Studied: studied, Stats: stats}, nil
}
