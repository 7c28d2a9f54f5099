package wordsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/wordswipe-sync/internal/docstore"
	"github.com/alexjbarnes/wordswipe-sync/internal/merge"
	"github.com/alexjbarnes/wordswipe-sync/internal/models"
	"github.com/alexjbarnes/wordswipe-sync/internal/state"
)

// dayLayout is the date bucket key format of the stats set.
const dayLayout = "2006-01-02"

// profileTotals is the subset of profile fields refreshed on every push.
type profileTotals struct {
	TotalWords    int64 `json:"totalWords"`
	TotalSessions int64 `json:"totalSessions"`
	LastSync      int64 `json:"lastSync"`
}

// push writes the full local snapshot to the remote documents. There is
// no merge on push: the remote merge flag only keeps remote-only keys.
func (c *Controller) push(ctx context.Context, sess *models.Session) error {
	studied, err := state.LoadStudied(c.local)
	if err != nil {
		return err
	}

	stats, err := state.LoadStats(c.local)
	if err != nil {
		return err
	}

	if err := c.store.SetDocument(ctx, docstore.StudiedPath(sess.UserID), studiedToFields(studied), true); err != nil {
		return fmt.Errorf("pushing studied: %w", err)
	}

	if err := c.store.SetDocument(ctx, docstore.StatsPath(sess.UserID), statsToFields(stats), true); err != nil {
		return fmt.Errorf("pushing stats: %w", err)
	}

	now := models.Millis(c.now())

	totals, err := docstore.Encode(profileTotals{
		TotalWords:    int64(len(studied)),
		TotalSessions: stats.TotalSessions(),
		LastSync:      now,
	})
	if err != nil {
		return err
	}

	if err := c.store.UpdateDocument(ctx, docstore.ProfilePath(sess.UserID), totals); err != nil {
		return fmt.Errorf("updating profile totals: %w", err)
	}

	c.logger.Debug("pushed local snapshot",
		slog.Int("words", len(studied)),
		slog.Int("days", len(stats)),
	)

	c.recordCursor(sess, func(ss *state.SyncState) { ss.LastPush = now })

	return nil
}

// pull fetches both remote documents and merges them into the local
// store.
func (c *Controller) pull(ctx context.Context, sess *models.Session) error {
	studiedDoc, err := c.store.GetDocument(ctx, docstore.StudiedPath(sess.UserID))
	if err != nil {
		return fmt.Errorf("fetching studied: %w", err)
	}

	statsDoc, err := c.store.GetDocument(ctx, docstore.StatsPath(sess.UserID))
	if err != nil {
		return fmt.Errorf("fetching stats: %w", err)
	}

	if err := c.applyStudied(studiedDoc); err != nil {
		return err
	}

	if err := c.applyStats(statsDoc); err != nil {
		return err
	}

	now := models.Millis(c.now())
	c.recordCursor(sess, func(ss *state.SyncState) { ss.LastPull = now })

	return nil
}

// applyStudied merges a remote studied snapshot into the local store.
// Absent documents are ignored. Nothing is written when the merge leaves
// the local set unchanged.
func (c *Controller) applyStudied(doc *docstore.Document) error {
	if doc == nil {
		return nil
	}

	c.localMu.Lock()
	defer c.localMu.Unlock()

	local, err := state.LoadStudied(c.local)
	if err != nil {
		return err
	}

	merged := merge.Studied(local, studiedFromFields(doc.Fields))

	changed := merge.Changes(local, merged)
	if len(changed) == 0 {
		return nil
	}

	if err := state.SaveStudied(c.local, merged); err != nil {
		return err
	}

	c.logger.Info("merged remote progress", slog.Int("changed", len(changed)))

	return nil
}

// applyStats overlays a remote stats snapshot on the local store.
func (c *Controller) applyStats(doc *docstore.Document) error {
	if doc == nil {
		return nil
	}

	c.localMu.Lock()
	defer c.localMu.Unlock()

	local, err := state.LoadStats(c.local)
	if err != nil {
		return err
	}

	merged := merge.Stats(local, statsFromFields(doc.Fields))
	if statsEqual(local, merged) {
		return nil
	}

	return state.SaveStats(c.local, merged)
}

func (c *Controller) recordCursor(sess *models.Session, update func(*state.SyncState)) {
	if c.cursor == nil {
		return
	}

	ss, err := c.cursor.GetSync()
	if err != nil || ss.UserID != sess.UserID {
		ss = state.SyncState{UserID: sess.UserID}
	}

	update(&ss)

	if err := c.cursor.SetSync(ss); err != nil {
		c.logger.Warn("saving sync cursor", slog.String("error", err.Error()))
	}
}

// RecordReview writes one word's progress to the local store. fields
// overlay the existing record. lastReview is stamped with the current
// time, or one past the previous stamp when the clock has not advanced,
// so a later review always wins a merge.
func (c *Controller) RecordReview(word string, fields map[string]any) (models.ProgressRecord, error) {
	if word == "" {
		return nil, fmt.Errorf("word must not be empty")
	}

	c.localMu.Lock()
	defer c.localMu.Unlock()

	set, err := state.LoadStudied(c.local)
	if err != nil {
		return nil, err
	}

	prev := set[word]

	next, err := prev.Fields()
	if err != nil {
		next = make(map[string]any)
	}

	for k, v := range fields {
		next[k] = v
	}

	stamp := models.Millis(c.now())
	if last := prev.LastReview(); stamp <= last {
		stamp = last + 1
	}

	next["lastReview"] = stamp

	rec, err := models.NewProgressRecord(next)
	if err != nil {
		return nil, err
	}

	set[word] = rec

	if err := state.SaveStudied(c.local, set); err != nil {
		return nil, err
	}

	return rec, nil
}

// RecordSession increments the session counter of day (YYYY-MM-DD) and
// returns the day with its updated bucket. An empty day means today in
// local time.
func (c *Controller) RecordSession(day string) (string, models.DayStats, error) {
	if day == "" {
		day = c.now().Format(dayLayout)
	}

	if _, err := time.Parse(dayLayout, day); err != nil {
		return "", nil, fmt.Errorf("invalid day %q: want YYYY-MM-DD", day)
	}

	c.localMu.Lock()
	defer c.localMu.Unlock()

	set, err := state.LoadStats(c.local)
	if err != nil {
		return "", nil, err
	}

	var bucket map[string]any

	// A corrupt bucket is replaced rather than blocking new sessions.
	if err := json.Unmarshal(set[day], &bucket); err != nil || bucket == nil {
		bucket = make(map[string]any)
	}

	bucket["sessions"] = set[day].Sessions() + 1

	data, err := json.Marshal(bucket)
	if err != nil {
		return "", nil, fmt.Errorf("encoding day stats: %w", err)
	}

	set[day] = models.DayStats(data)

	if err := state.SaveStats(c.local, set); err != nil {
		return "", nil, err
	}

	return day, set[day], nil
}

// Snapshot returns the current local sets.
func (c *Controller) Snapshot() (models.StudiedSet, models.StatsSet, error) {
	studied, err := state.LoadStudied(c.local)
	if err != nil {
		return nil, nil, err
	}

	stats, err := state.LoadStats(c.local)
	if err != nil {
		return nil, nil, err
	}

	return studied, stats, nil
}
