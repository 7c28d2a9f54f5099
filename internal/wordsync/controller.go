// Package wordsync keeps the local study store and the remote document
// store in step for one signed-in user.
//
// Architecture: Start authenticates, makes sure the profile exists,
// opens subscriptions to the studied and stats documents and pulls once.
// Listen then runs a single event loop that owns every remote write and
// every pull: the push ticker, subscription snapshots, SaveNow/LoadNow
// requests and local change notifications are handled one at a time, so
// no two reconciliations ever overlap.
package wordsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexjbarnes/wordswipe-sync/internal/docstore"
	wserrors "github.com/alexjbarnes/wordswipe-sync/internal/errors"
	"github.com/alexjbarnes/wordswipe-sync/internal/friends"
	"github.com/alexjbarnes/wordswipe-sync/internal/identity"
	"github.com/alexjbarnes/wordswipe-sync/internal/models"
	"github.com/alexjbarnes/wordswipe-sync/internal/state"
)

const (
	DefaultSyncInterval = 10 * time.Second
	DefaultFlushTimeout = 3 * time.Second
	DefaultDisplayName  = "Learner"
)

// Status is the lifecycle state of a Controller.
type Status int

const (
	SignedOut Status = iota
	Authenticating
	Syncing
)

func (s Status) String() string {
	switch s {
	case SignedOut:
		return "signed_out"
	case Authenticating:
		return "authenticating"
	case Syncing:
		return "syncing"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Config tunes a Controller. Zero values take the defaults above.
type Config struct {
	SyncInterval       time.Duration
	FlushTimeout       time.Duration
	DefaultDisplayName string
}

// CursorStore records push and pull times. *state.State implements it.
type CursorStore interface {
	GetSync() (state.SyncState, error)
	SetSync(ss state.SyncState) error
}

// Deps are the collaborators of a Controller. Cursor may be nil.
type Deps struct {
	Store    docstore.Store
	Local    state.KV
	Identity identity.Provider
	Profiles *friends.Service
	Cursor   CursorStore
}

// FlushResult reports the outcome of a bounded exit push.
type FlushResult struct {
	Attempted bool
	Err       error
	Duration  time.Duration
}

type opKind int

const (
	opPush opKind = iota
	opPull
)

// syncOp is a caller-requested push or pull executed by the event loop.
type syncOp struct {
	ctx    context.Context
	kind   opKind
	result chan error
}

// Controller drives the sync lifecycle.
type Controller struct {
	store    docstore.Store
	local    state.KV
	identity identity.Provider
	profiles *friends.Service
	cursor   CursorStore
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	status    Status
	sess      *models.Session
	subCancel context.CancelFunc
	studiedCh <-chan docstore.Event
	statsCh   <-chan docstore.Event
	closed    chan struct{}
	loopDone  chan struct{}

	// localMu serializes read-modify-write cycles on the local store
	// within this process.
	localMu sync.Mutex

	opCh    chan syncOp
	localCh chan struct{}
}

// NewController creates a signed-out Controller.
func NewController(deps Deps, cfg Config, logger *slog.Logger) *Controller {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}

	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}

	if cfg.DefaultDisplayName == "" {
		cfg.DefaultDisplayName = DefaultDisplayName
	}

	return &Controller{
		store:    deps.Store,
		local:    deps.Local,
		identity: deps.Identity,
		profiles: deps.Profiles,
		cursor:   deps.Cursor,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		opCh:     make(chan syncOp),
		localCh:  make(chan struct{}, 1),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Session returns the active session, or nil when not syncing.
func (c *Controller) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != Syncing {
		return nil
	}

	return c.sess
}

// Start signs in, ensures the profile exists, subscribes to the user's
// documents and performs one pull. A failed initial pull is logged and
// does not fail Start. Calling Start while syncing returns the current
// session.
func (c *Controller) Start(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	switch c.status {
	case Syncing:
		sess := c.sess
		c.mu.Unlock()

		return sess, nil
	case Authenticating:
		c.mu.Unlock()
		return nil, fmt.Errorf("start already in progress")
	}

	c.status = Authenticating
	c.mu.Unlock()

	sess, studiedCh, statsCh, cancel, err := c.establish(ctx)
	if err != nil {
		c.setStatus(SignedOut)
		return nil, err
	}

	if err := c.pull(ctx, sess); err != nil {
		c.logger.Warn("initial pull failed", slog.String("error", err.Error()))
	}

	c.mu.Lock()
	c.status = Syncing
	c.sess = sess
	c.subCancel = cancel
	c.studiedCh = studiedCh
	c.statsCh = statsCh
	c.closed = make(chan struct{})
	c.mu.Unlock()

	c.logger.Info("sync started",
		slog.String("uid", sess.UserID),
		slog.Bool("anonymous", sess.Anonymous),
	)

	return sess, nil
}

func (c *Controller) establish(ctx context.Context) (*models.Session, <-chan docstore.Event, <-chan docstore.Event, context.CancelFunc, error) {
	sess, err := c.identity.ResumeSession(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("resuming session: %w", err)
	}

	if sess == nil {
		sess, err = c.identity.CreateAnonymous(ctx)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("signing in anonymously: %w", err)
		}
	}

	name, err := state.UserName(c.local)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if n, err := friends.NormalizeName(name); err == nil {
		name = n
	} else {
		name = c.cfg.DefaultDisplayName
	}

	if _, err := c.profiles.EnsureProfile(ctx, sess, name); err != nil {
		return nil, nil, nil, nil, remoteErr("ensuring profile", err)
	}

	// Subscriptions outlive the Start call and end on Close.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	studiedCh, err := c.store.Subscribe(subCtx, docstore.StudiedPath(sess.UserID))
	if err != nil {
		cancel()
		return nil, nil, nil, nil, remoteErr("subscribing to studied", err)
	}

	statsCh, err := c.store.Subscribe(subCtx, docstore.StatsPath(sess.UserID))
	if err != nil {
		cancel()
		return nil, nil, nil, nil, remoteErr("subscribing to stats", err)
	}

	return sess, studiedCh, statsCh, cancel, nil
}

// remoteErr wraps err so it always matches ErrRemoteUnavailable.
func remoteErr(op string, err error) error {
	if errors.Is(err, wserrors.ErrRemoteUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %w", op, wserrors.ErrRemoteUnavailable, err)
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Listen runs the event loop until ctx is cancelled or Close is called.
// On cancellation it runs a bounded Flush and returns ctx.Err().
func (c *Controller) Listen(ctx context.Context) error {
	c.mu.Lock()
	if c.status != Syncing {
		c.mu.Unlock()
		return wserrors.ErrAuthRequired
	}

	if c.loopDone != nil {
		c.mu.Unlock()
		return fmt.Errorf("event loop already running")
	}

	loopDone := make(chan struct{})
	c.loopDone = loopDone
	sess := c.sess
	studiedCh, statsCh, closed := c.studiedCh, c.statsCh, c.closed
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loopDone = nil
		c.mu.Unlock()
		close(loopDone)
	}()

	ticker := time.NewTicker(c.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			res := c.Flush(context.WithoutCancel(ctx))
			c.logFlush(res)

			return ctx.Err()

		case <-closed:
			return nil

		case <-ticker.C:
			if err := c.push(ctx, sess); err != nil {
				c.logger.Warn("periodic push failed", slog.String("error", err.Error()))
			}

		case <-c.localCh:
			if err := c.push(ctx, sess); err != nil {
				c.logger.Warn("push after local change failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-studiedCh:
			if !ok {
				studiedCh = nil
				continue
			}

			if err := c.applyStudied(ev.Doc); err != nil {
				c.logger.Warn("applying studied snapshot failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-statsCh:
			if !ok {
				statsCh = nil
				continue
			}

			if err := c.applyStats(ev.Doc); err != nil {
				c.logger.Warn("applying stats snapshot failed", slog.String("error", err.Error()))
			}

		case op := <-c.opCh:
			op.result <- c.run(op.ctx, sess, op.kind)
		}
	}
}

func (c *Controller) logFlush(res FlushResult) {
	if !res.Attempted {
		return
	}

	if res.Err != nil {
		c.logger.Warn("exit flush failed",
			slog.String("error", res.Err.Error()),
			slog.Duration("duration", res.Duration),
		)

		return
	}

	c.logger.Info("exit flush complete", slog.Duration("duration", res.Duration))
}

// SaveNow pushes the local snapshot immediately.
func (c *Controller) SaveNow(ctx context.Context) error {
	return c.submit(ctx, opPush)
}

// LoadNow fetches both remote documents and merges them into the local
// store.
func (c *Controller) LoadNow(ctx context.Context) error {
	return c.submit(ctx, opPull)
}

// submit hands op to the event loop, or runs it inline when no loop is
// running.
func (c *Controller) submit(ctx context.Context, kind opKind) error {
	c.mu.Lock()
	status, sess, loopDone := c.status, c.sess, c.loopDone
	c.mu.Unlock()

	if status != Syncing {
		return wserrors.ErrAuthRequired
	}

	if loopDone == nil {
		return c.run(ctx, sess, kind)
	}

	op := syncOp{ctx: ctx, kind: kind, result: make(chan error, 1)}

	select {
	case c.opCh <- op:
	case <-loopDone:
		return c.run(ctx, sess, kind)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run(ctx context.Context, sess *models.Session, kind opKind) error {
	switch kind {
	case opPush:
		return c.push(ctx, sess)
	case opPull:
		return c.pull(ctx, sess)
	default:
		return fmt.Errorf("unknown sync op %d", kind)
	}
}

// NotifyLocalChange tells the event loop the local store was modified
// outside this process. Notifications coalesce into a single push.
func (c *Controller) NotifyLocalChange() {
	select {
	case c.localCh <- struct{}{}:
	default:
	}
}

// Flush pushes once, bounded by the configured flush timeout. Nothing is
// attempted unless the controller is syncing.
func (c *Controller) Flush(ctx context.Context) FlushResult {
	c.mu.Lock()
	status, sess := c.status, c.sess
	c.mu.Unlock()

	if status != Syncing {
		return FlushResult{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.FlushTimeout)
	defer cancel()

	start := time.Now()
	err := c.push(ctx, sess)

	return FlushResult{Attempted: true, Err: err, Duration: time.Since(start)}
}

// Close tears down the subscriptions and signs out. It is safe to call
// more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subCancel != nil {
		c.subCancel()
		c.subCancel = nil
	}

	if c.closed != nil {
		close(c.closed)
		c.closed = nil
	}

	if c.status == Syncing {
		c.logger.Info("sync stopped")
	}

	c.status = SignedOut
	c.sess = nil
	c.studiedCh = nil
	c.statsCh = nil
}
