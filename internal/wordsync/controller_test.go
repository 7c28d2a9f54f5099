package wordsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alexjbarnes/wordswipe-sync/internal/docstore"
	wserrors "github.com/alexjbarnes/wordswipe-sync/internal/errors"
	"github.com/alexjbarnes/wordswipe-sync/internal/friends"
	"github.com/alexjbarnes/wordswipe-sync/internal/models"
	"github.com/alexjbarnes/wordswipe-sync/internal/state"
)

// --- test doubles ---

type syncKV struct {
	mu sync.Mutex
	m  map[string]string
}

func newSyncKV() *syncKV { return &syncKV{m: make(map[string]string)} }

func (k *syncKV) Get(key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	v, ok := k.m[key]

	return v, ok, nil
}

func (k *syncKV) Set(key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.m[key] = value

	return nil
}

type fakeIdentity struct {
	resume    *models.Session
	resumeErr error
	anonErr   error
	anonCalls atomic.Int32
}

func (f *fakeIdentity) ResumeSession(context.Context) (*models.Session, error) {
	return f.resume, f.resumeErr
}

func (f *fakeIdentity) CreateAnonymous(context.Context) (*models.Session, error) {
	f.anonCalls.Add(1)

	if f.anonErr != nil {
		return nil, f.anonErr
	}

	return &models.Session{UserID: "u1", Token: "tok", Anonymous: true}, nil
}

// faultyStore wraps Memory with switchable failures.
type faultyStore struct {
	*docstore.Memory

	failSet       atomic.Bool
	blockSet      atomic.Bool
	failGetPath   string
	failSubscribe bool

	subsMu sync.Mutex
	subs   []<-chan docstore.Event
}

func (f *faultyStore) SetDocument(ctx context.Context, path string, fields docstore.Fields, merge bool) error {
	if f.blockSet.Load() {
		<-ctx.Done()
		return ctx.Err()
	}

	if f.failSet.Load() {
		return fmt.Errorf("set %s: %w", path, wserrors.ErrRemoteUnavailable)
	}

	return f.Memory.SetDocument(ctx, path, fields, merge)
}

func (f *faultyStore) GetDocument(ctx context.Context, path string) (*docstore.Document, error) {
	if f.failGetPath != "" && strings.HasPrefix(path, f.failGetPath) {
		return nil, fmt.Errorf("get %s: %w", path, wserrors.ErrRemoteUnavailable)
	}

	return f.Memory.GetDocument(ctx, path)
}

func (f *faultyStore) Subscribe(ctx context.Context, path string) (<-chan docstore.Event, error) {
	if f.failSubscribe {
		return nil, errors.New("listen refused")
	}

	ch, err := f.Memory.Subscribe(ctx, path)
	if err != nil {
		return nil, err
	}

	f.subsMu.Lock()
	f.subs = append(f.subs, ch)
	f.subsMu.Unlock()

	return ch, nil
}

type harness struct {
	store *faultyStore
	local *syncKV
	id    *fakeIdentity
	ctrl  *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &faultyStore{Memory: docstore.NewMemory()}
	local := newSyncKV()
	id := &fakeIdentity{}

	ctrl := NewController(Deps{
		Store:    store,
		Local:    local,
		Identity: id,
		Profiles: friends.NewService(store, local, nil, logger),
	}, Config{}, logger)

	return &harness{store: store, local: local, id: id, ctrl: ctrl}
}

// listen runs the event loop and returns a stop function that cancels it
// and reports Listen's error.
func (h *harness) listen(t *testing.T) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- h.ctrl.Listen(ctx) }()

	synctest.Wait()

	return func() error {
		cancel()
		return <-done
	}
}

func setStudied(t *testing.T, kv state.KV, raw string) {
	t.Helper()
	require.NoError(t, kv.Set(state.KeyStudied, raw))
}

func localStudied(t *testing.T, kv state.KV) models.StudiedSet {
	t.Helper()
	set, err := state.LoadStudied(kv)
	require.NoError(t, err)
	return set
}

func remoteProfile(t *testing.T, store docstore.Store, uid string) models.Profile {
	t.Helper()
	doc, err := store.GetDocument(context.Background(), docstore.ProfilePath(uid))
	require.NoError(t, err)
	require.NotNil(t, doc)

	var p models.Profile
	require.NoError(t, doc.Decode(&p))

	return p
}

func putRemote(t *testing.T, store docstore.Store, path, fields string) {
	t.Helper()

	var f docstore.Fields
	require.NoError(t, json.Unmarshal([]byte(fields), &f))
	require.NoError(t, store.SetDocument(context.Background(), path, f, false))
}

// --- Start ---

func TestStart_AnonymousSessionAndInitialPull(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		setStudied(t, h.local, `{"cat":{"lastReview":100}}`)
		putRemote(t, h.store, docstore.StudiedPath("u1"), `{"cat":{"lastReview":200},"dog":{"lastReview":50}}`)
		putRemote(t, h.store, docstore.StatsPath("u1"), `{"2024-01-01":{"sessions":2}}`)

		assert.Equal(t, SignedOut, h.ctrl.State())

		sess, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "u1", sess.UserID)
		assert.Equal(t, Syncing, h.ctrl.State())
		assert.Equal(t, sess, h.ctrl.Session())
		assert.Equal(t, int32(1), h.id.anonCalls.Load())

		studied := localStudied(t, h.local)
		assert.Equal(t, int64(200), studied["cat"].LastReview())
		assert.Equal(t, int64(50), studied["dog"].LastReview())

		stats, err := state.LoadStats(h.local)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalSessions())

		p := remoteProfile(t, h.store, "u1")
		assert.Equal(t, DefaultDisplayName, p.Name)
		assert.Len(t, p.FriendCode, friends.CodeLength)
	})
}

func TestStart_ResumesSessionAndUsesLocalName(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		h.id.resume = &models.Session{UserID: "u9", Token: "t"}
		require.NoError(t, h.local.Set(state.KeyUserName, "  Zoë "))

		sess, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "u9", sess.UserID)
		assert.Zero(t, h.id.anonCalls.Load())
		assert.Equal(t, "Zoë", remoteProfile(t, h.store, "u9").Name)

		again, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)
		assert.Same(t, sess, again)
	})
}

func TestStart_AuthFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		h.id.anonErr = wserrors.ErrAuthRequired

		sess, err := h.ctrl.Start(context.Background())
		assert.ErrorIs(t, err, wserrors.ErrAuthRequired)
		assert.Nil(t, sess)
		assert.Equal(t, SignedOut, h.ctrl.State())
	})
}

func TestStart_ResumeFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		h.id.resumeErr = wserrors.ErrRemoteUnavailable

		_, err := h.ctrl.Start(context.Background())
		assert.ErrorIs(t, err, wserrors.ErrRemoteUnavailable)
		assert.Equal(t, SignedOut, h.ctrl.State())
	})
}

func TestStart_ProfileFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		h.store.failGetPath = docstore.ProfilePath("u1")

		_, err := h.ctrl.Start(context.Background())
		assert.ErrorIs(t, err, wserrors.ErrRemoteUnavailable)
		assert.Equal(t, SignedOut, h.ctrl.State())
	})
}

func TestStart_SubscribeFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		h.store.failSubscribe = true

		_, err := h.ctrl.Start(context.Background())
		assert.ErrorIs(t, err, wserrors.ErrRemoteUnavailable)
		assert.ErrorContains(t, err, "listen refused")
		assert.Equal(t, SignedOut, h.ctrl.State())
	})
}

func TestStart_InitialPullFailureSwallowed(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		h.store.failGetPath = docstore.StudiedPath("u1")

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Syncing, h.ctrl.State())
	})
}

// --- Listen ---

func TestListen_RequiresStart(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.ctrl.Listen(context.Background()), wserrors.ErrAuthRequired)
}

func TestListen_PeriodicPushWritesTotals(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		stop := h.listen(t)

		setStudied(t, h.local, `{"cat":{"lastReview":1},"dog":{"lastReview":2}}`)
		require.NoError(t, h.local.Set(state.KeyStats, `{"2024-01-01":{"sessions":2},"2024-01-02":{"sessions":1}}`))

		time.Sleep(DefaultSyncInterval + time.Millisecond)
		synctest.Wait()

		p := remoteProfile(t, h.store, "u1")
		assert.Equal(t, int64(2), p.TotalWords)
		assert.Equal(t, int64(3), p.TotalSessions)
		assert.NotZero(t, p.LastSync)

		doc, err := h.store.GetDocument(context.Background(), docstore.StudiedPath("u1"))
		require.NoError(t, err)
		assert.Len(t, doc.Fields, 2)

		assert.ErrorIs(t, stop(), context.Canceled)
	})
}

func TestPush_KeepsRemoteOnlyKeys(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		require.NoError(t, h.ctrl.SaveNow(context.Background()))

		// Another device adds a word, but this device has not pulled it.
		require.NoError(t, h.store.Memory.SetDocument(context.Background(), docstore.StudiedPath("u1"),
			docstore.Fields{"owl": json.RawMessage(`{"lastReview":5}`)}, true))

		setStudied(t, h.local, `{"cat":{"lastReview":1}}`)
		require.NoError(t, h.ctrl.SaveNow(context.Background()))

		doc, err := h.store.GetDocument(context.Background(), docstore.StudiedPath("u1"))
		require.NoError(t, err)
		assert.Contains(t, doc.Fields, "owl")
		assert.Contains(t, doc.Fields, "cat")
	})
}

func TestListen_PullOnNotification(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		setStudied(t, h.local, `{"cat":{"lastReview":300},"dog":{"lastReview":10}}`)

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		stop := h.listen(t)

		putRemote(t, h.store, docstore.StudiedPath("u1"), `{"cat":{"lastReview":200},"dog":{"lastReview":20,"box":4}}`)
		synctest.Wait()

		studied := localStudied(t, h.local)
		assert.Equal(t, int64(300), studied["cat"].LastReview())
		assert.Equal(t, int64(20), studied["dog"].LastReview())

		putRemote(t, h.store, docstore.StatsPath("u1"), `{"2024-02-02":{"sessions":4}}`)
		synctest.Wait()

		stats, err := state.LoadStats(h.local)
		require.NoError(t, err)
		assert.Equal(t, int64(4), stats["2024-02-02"].Sessions())

		assert.ErrorIs(t, stop(), context.Canceled)
	})
}

func TestListen_AbsentDocumentIgnored(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		setStudied(t, h.local, `{"cat":{"lastReview":1}}`)

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		stop := h.listen(t)

		h.store.Delete(docstore.StudiedPath("u1"))
		synctest.Wait()

		assert.Contains(t, localStudied(t, h.local), "cat")

		assert.ErrorIs(t, stop(), context.Canceled)
	})
}

func TestListen_FailingPushIsSwallowed(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		setStudied(t, h.local, `{"cat":{"lastReview":1}}`)
		h.store.failSet.Store(true)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() { done <- h.ctrl.Listen(ctx) }()

		time.Sleep(DefaultSyncInterval + time.Millisecond)
		synctest.Wait()

		select {
		case err := <-done:
			t.Fatalf("listen exited after push failure: %v", err)
		default:
		}

		assert.Zero(t, remoteProfile(t, h.store, "u1").TotalWords)

		h.store.failSet.Store(false)
		time.Sleep(DefaultSyncInterval)
		synctest.Wait()

		assert.Equal(t, int64(1), remoteProfile(t, h.store, "u1").TotalWords)

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestListen_LocalChangeTriggersPush(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		stop := h.listen(t)

		setStudied(t, h.local, `{"cat":{"lastReview":1}}`)
		h.ctrl.NotifyLocalChange()
		h.ctrl.NotifyLocalChange()
		synctest.Wait()

		assert.Equal(t, int64(1), remoteProfile(t, h.store, "u1").TotalWords)

		assert.ErrorIs(t, stop(), context.Canceled)
	})
}

func TestListen_CancelFlushes(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		stop := h.listen(t)

		setStudied(t, h.local, `{"cat":{"lastReview":1},"dog":{"lastReview":1}}`)

		assert.ErrorIs(t, stop(), context.Canceled)
		assert.Equal(t, int64(2), remoteProfile(t, h.store, "u1").TotalWords)
	})
}

func TestListen_ReturnsOnClose(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		done := make(chan error, 1)

		go func() { done <- h.ctrl.Listen(context.Background()) }()

		synctest.Wait()
		h.ctrl.Close()

		assert.NoError(t, <-done)
	})
}

// --- SaveNow / LoadNow ---

func TestSaveNow_SignedOut(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.ctrl.SaveNow(context.Background()), wserrors.ErrAuthRequired)
	assert.ErrorIs(t, h.ctrl.LoadNow(context.Background()), wserrors.ErrAuthRequired)
}

func TestSaveNowLoadNow_ThroughLoop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		stop := h.listen(t)

		_, err = h.ctrl.RecordReview("cat", map[string]any{"box": 2})
		require.NoError(t, err)
		require.NoError(t, h.ctrl.SaveNow(context.Background()))

		doc, err := h.store.GetDocument(context.Background(), docstore.StudiedPath("u1"))
		require.NoError(t, err)
		assert.Contains(t, doc.Fields, "cat")

		h.store.failSet.Store(true)
		assert.ErrorIs(t, h.ctrl.SaveNow(context.Background()), wserrors.ErrRemoteUnavailable)
		h.store.failSet.Store(false)

		require.NoError(t, h.ctrl.LoadNow(context.Background()))

		assert.ErrorIs(t, stop(), context.Canceled)
	})
}

func TestLoadNow_MergesRemote(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		// No event loop is running, so only LoadNow applies this.
		putRemote(t, h.store, docstore.StudiedPath("u1"), `{"eel":{"lastReview":9}}`)
		assert.NotContains(t, localStudied(t, h.local), "eel")

		require.NoError(t, h.ctrl.LoadNow(context.Background()))
		assert.Contains(t, localStudied(t, h.local), "eel")
	})
}

// --- Flush / Close ---

func TestFlush_NotSyncing(t *testing.T) {
	h := newHarness(t)
	res := h.ctrl.Flush(context.Background())
	assert.False(t, res.Attempted)
	assert.NoError(t, res.Err)
}

func TestFlush_Success(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		res := h.ctrl.Flush(context.Background())
		assert.True(t, res.Attempted)
		assert.NoError(t, res.Err)
	})
}

func TestFlush_BoundedByTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		defer h.ctrl.Close()

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		h.store.blockSet.Store(true)

		res := h.ctrl.Flush(context.Background())
		assert.True(t, res.Attempted)
		assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
		assert.Equal(t, DefaultFlushTimeout, res.Duration)
	})
}

func TestClose_ClosesSubscriptions(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)

		_, err := h.ctrl.Start(context.Background())
		require.NoError(t, err)

		h.ctrl.Close()
		h.ctrl.Close()
		synctest.Wait()

		assert.Equal(t, SignedOut, h.ctrl.State())
		assert.Nil(t, h.ctrl.Session())

		h.store.subsMu.Lock()
		subs := h.store.subs
		h.store.subsMu.Unlock()

		require.Len(t, subs, 2)

		for _, ch := range subs {
			_, ok := <-ch
			assert.False(t, ok)
		}

		assert.ErrorIs(t, h.ctrl.SaveNow(context.Background()), wserrors.ErrAuthRequired)
	})
}

// --- push wire order ---

func TestPush_WritesDocumentsThenTotals(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := docstore.NewMockStore(ctrl)
	local := newSyncKV()

	setStudied(t, local, `{"cat":{"lastReview":1}}`)
	require.NoError(t, local.Set(state.KeyStats, `{"2024-01-01":{"sessions":3}}`))

	c := NewController(Deps{Store: store, Local: local}, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return time.UnixMilli(42) }

	sess := &models.Session{UserID: "u1"}

	gomock.InOrder(
		store.EXPECT().SetDocument(gomock.Any(), docstore.StudiedPath("u1"), gomock.Any(), true).
			DoAndReturn(func(_ context.Context, _ string, f docstore.Fields, _ bool) error {
				assert.JSONEq(t, `{"lastReview":1}`, string(f["cat"]))
				return nil
			}),
		store.EXPECT().SetDocument(gomock.Any(), docstore.StatsPath("u1"), gomock.Any(), true).Return(nil),
		store.EXPECT().UpdateDocument(gomock.Any(), docstore.ProfilePath("u1"), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, f docstore.Fields) error {
				assert.JSONEq(t, `1`, string(f["totalWords"]))
				assert.JSONEq(t, `3`, string(f["totalSessions"]))
				assert.JSONEq(t, `42`, string(f["lastSync"]))
				return nil
			}),
	)

	require.NoError(t, c.push(context.Background(), sess))
}

func TestPush_StopsOnFirstFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := docstore.NewMockStore(ctrl)

	c := NewController(Deps{Store: store, Local: newSyncKV()}, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	store.EXPECT().SetDocument(gomock.Any(), docstore.StudiedPath("u1"), gomock.Any(), true).
		Return(wserrors.ErrRemoteUnavailable)

	err := c.push(context.Background(), &models.Session{UserID: "u1"})
	assert.ErrorIs(t, err, wserrors.ErrRemoteUnavailable)
}

// --- local mutations ---

func TestRecordReview_MonotonicStamp(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t)
		now := models.Millis(time.Now())

		first, err := h.ctrl.RecordReview("cat", map[string]any{"box": 1, "starred": true})
		require.NoError(t, err)
		assert.Equal(t, now, first.LastReview())

		second, err := h.ctrl.RecordReview("cat", map[string]any{"box": 2})
		require.NoError(t, err)
		assert.Equal(t, now+1, second.LastReview())

		fields, err := second.Fields()
		require.NoError(t, err)
		assert.Equal(t, true, fields["starred"])
		assert.InDelta(t, 2, fields["box"], 0)

		time.Sleep(time.Second)

		third, err := h.ctrl.RecordReview("cat", nil)
		require.NoError(t, err)
		assert.Equal(t, now+1000, third.LastReview())
	})
}

func TestRecordReview_EmptyWord(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.RecordReview("", nil)
	assert.Error(t, err)
}

func TestRecordSession(t *testing.T) {
	h := newHarness(t)

	day, stats, err := h.ctrl.RecordSession("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", day)
	assert.Equal(t, int64(1), stats.Sessions())

	require.NoError(t, h.local.Set(state.KeyStats, `{"2024-03-01":{"sessions":1,"words":12}}`))

	_, stats, err = h.ctrl.RecordSession("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Sessions())
	assert.Contains(t, string(stats), `"words":12`)

	today, stats, err := h.ctrl.RecordSession("")
	require.NoError(t, err)
	assert.Equal(t, time.Now().Format(dayLayout), today)
	assert.Equal(t, int64(1), stats.Sessions())

	_, _, err = h.ctrl.RecordSession("03/01/2024")
	assert.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t)
	setStudied(t, h.local, `{"cat":{"lastReview":1}}`)

	studied, stats, err := h.ctrl.Snapshot()
	require.NoError(t, err)
	assert.Len(t, studied, 1)
	assert.Empty(t, stats)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "signed_out", SignedOut.String())
	assert.Equal(t, "authenticating", Authenticating.String())
	assert.Equal(t, "syncing", Syncing.String())
	assert.Equal(t, "status(7)", Status(7).String())
}
