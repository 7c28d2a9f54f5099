// Package friends manages profiles, friend codes, friend edges and the
// leaderboard.
package friends

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/alexjbarnes/wordswipe-sync/internal/docstore"
	wserrors "github.com/alexjbarnes/wordswipe-sync/internal/errors"
	"github.com/alexjbarnes/wordswipe-sync/internal/models"
	"github.com/alexjbarnes/wordswipe-sync/internal/state"
)

const (
	// DefaultLeaderboardSize applies when a caller passes n <= 0.
	DefaultLeaderboardSize = 10

	maxNameLength = 40
)

// Service implements the friend and profile operations on a Store.
type Service struct {
	store  docstore.Store
	local  state.KV
	rand   io.Reader
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a Service. local receives the display name on
// rename. rand feeds friend code generation; nil uses crypto/rand.
func NewService(store docstore.Store, local state.KV, rand io.Reader, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		local:  local,
		rand:   rand,
		now:    time.Now,
		logger: logger,
	}
}

// GetProfile returns the caller's profile, or nil when it has not been
// created yet.
func (s *Service) GetProfile(ctx context.Context, sess *models.Session) (*models.Profile, error) {
	if sess == nil {
		return nil, wserrors.ErrAuthRequired
	}

	return s.profile(ctx, sess.UserID)
}

// EnsureProfile returns the caller's profile, creating it with a fresh
// friend code and the given display name when absent.
func (s *Service) EnsureProfile(ctx context.Context, sess *models.Session, name string) (*models.Profile, error) {
	if sess == nil {
		return nil, wserrors.ErrAuthRequired
	}

	p, err := s.profile(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	if p != nil {
		return p, nil
	}

	code, err := s.NewCode(ctx)
	if err != nil {
		return nil, err
	}

	p = &models.Profile{
		UID:        sess.UserID,
		Name:       name,
		FriendCode: code,
		CreatedAt:  models.Millis(s.now()),
	}

	fields, err := docstore.Encode(p)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetDocument(ctx, docstore.ProfilePath(sess.UserID), fields, false); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	s.logger.Info("created profile", slog.String("uid", p.UID), slog.String("friend_code", p.FriendCode))

	return p, nil
}

// NormalizeName applies NFC, trims surrounding space and enforces the
// length limit counted in characters.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(norm.NFC.String(name))

	n := utf8.RuneCountInString(name)
	if n < 1 || n > maxNameLength {
		return "", wserrors.ErrInvalidName
	}

	return name, nil
}

// UpdateDisplayName renames the caller on the profile document and in
// the local store. The profile must already exist.
func (s *Service) UpdateDisplayName(ctx context.Context, sess *models.Session, name string) (string, error) {
	if sess == nil {
		return "", wserrors.ErrAuthRequired
	}

	name, err := NormalizeName(name)
	if err != nil {
		return "", err
	}

	fields, err := docstore.Encode(map[string]string{"name": name})
	if err != nil {
		return "", err
	}

	if err := s.store.UpdateDocument(ctx, docstore.ProfilePath(sess.UserID), fields); err != nil {
		return "", fmt.Errorf("renaming profile: %w", err)
	}

	if err := s.local.Set(state.KeyUserName, name); err != nil {
		return "", fmt.Errorf("saving display name locally: %w", err)
	}

	return name, nil
}

// FindByCode looks up the profile owning code. Input is trimmed and
// upper-cased first.
func (s *Service) FindByCode(ctx context.Context, sess *models.Session, code string) (*models.Profile, error) {
	if sess == nil {
		return nil, wserrors.ErrAuthRequired
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, wserrors.ErrNotFound
	}

	docs, err := s.store.QueryByField(ctx, docstore.UsersCollection, "friendCode", code)
	if err != nil {
		return nil, fmt.Errorf("looking up friend code: %w", err)
	}

	if len(docs) == 0 {
		return nil, wserrors.ErrNotFound
	}

	var p models.Profile
	if err := docs[0].Decode(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

// AddFriend creates an edge from the caller to the owner of code, with a
// snapshot of their current name and code. Adding an existing friend
// refreshes the snapshot.
func (s *Service) AddFriend(ctx context.Context, sess *models.Session, code string) (*models.FriendEdge, error) {
	friend, err := s.FindByCode(ctx, sess, code)
	if err != nil {
		return nil, err
	}

	if friend.UID == sess.UserID {
		return nil, wserrors.ErrSelfReference
	}

	edge := &models.FriendEdge{
		UID:        friend.UID,
		Name:       friend.Name,
		FriendCode: friend.FriendCode,
		AddedAt:    models.Millis(s.now()),
	}

	fields, err := docstore.Encode(edge)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetDocument(ctx, docstore.FriendPath(sess.UserID, friend.UID), fields, false); err != nil {
		return nil, fmt.Errorf("adding friend: %w", err)
	}

	s.logger.Info("added friend", slog.String("uid", sess.UserID), slog.String("friend_uid", friend.UID))

	return edge, nil
}

// ListFriends returns the caller's friends joined with their live
// profiles, ordered by the snapshot name. Friends whose profile no
// longer exists are skipped.
func (s *Service) ListFriends(ctx context.Context, sess *models.Session) ([]models.FriendView, error) {
	if sess == nil {
		return nil, wserrors.ErrAuthRequired
	}

	docs, err := s.store.ListDocuments(ctx, docstore.FriendsCollection(sess.UserID))
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}

	views := make([]models.FriendView, 0, len(docs))

	for _, d := range docs {
		var edge models.FriendEdge
		if err := d.Decode(&edge); err != nil {
			s.logger.Warn("skipping malformed friend edge", slog.String("path", d.Path), slog.String("error", err.Error()))
			continue
		}

		p, err := s.profile(ctx, edge.UID)
		if err != nil {
			return nil, err
		}

		if p == nil {
			continue
		}

		views = append(views, models.FriendView{FriendEdge: edge, Profile: *p})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return strings.ToLower(views[i].Name) < strings.ToLower(views[j].Name)
	})

	return views, nil
}

// Leaderboard ranks the caller and their friends by totalWords, highest
// first, returning at most n entries.
func (s *Service) Leaderboard(ctx context.Context, sess *models.Session, n int) ([]models.Profile, error) {
	if sess == nil {
		return nil, wserrors.ErrAuthRequired
	}

	if n <= 0 {
		n = DefaultLeaderboardSize
	}

	friends, err := s.ListFriends(ctx, sess)
	if err != nil {
		return nil, err
	}

	entries := make([]models.Profile, 0, len(friends)+1)

	self, err := s.profile(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	if self != nil {
		entries = append(entries, *self)
	}

	for _, f := range friends {
		entries = append(entries, f.Profile)
	}

	rank(entries)

	if len(entries) > n {
		entries = entries[:n]
	}

	return entries, nil
}

// GlobalLeaderboard returns the top n profiles across all users.
func (s *Service) GlobalLeaderboard(ctx context.Context, sess *models.Session, n int) ([]models.Profile, error) {
	if sess == nil {
		return nil, wserrors.ErrAuthRequired
	}

	if n <= 0 {
		n = DefaultLeaderboardSize
	}

	docs, err := s.store.QueryTopN(ctx, docstore.UsersCollection, "totalWords", n)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}

	entries := make([]models.Profile, 0, len(docs))

	for _, d := range docs {
		var p models.Profile
		if err := d.Decode(&p); err != nil {
			continue
		}

		entries = append(entries, p)
	}

	rank(entries)

	return entries, nil
}

// rank orders by totalWords descending, then name, then uid.
func rank(entries []models.Profile) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalWords != b.TotalWords {
			return a.TotalWords > b.TotalWords
		}

		if a.Name != b.Name {
			return a.Name < b.Name
		}

		return a.UID < b.UID
	})
}

func (s *Service) profile(ctx context.Context, uid string) (*models.Profile, error) {
	doc, err := s.store.GetDocument(ctx, docstore.ProfilePath(uid))
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", uid, err)
	}

	if doc == nil {
		return nil, nil
	}

	var p models.Profile
	if err := doc.Decode(&p); err != nil {
		return nil, err
	}

	return &p, nil
}
