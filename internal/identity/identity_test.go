package identity

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wserrors "github.com/alexjbarnes/wordswipe-sync/internal/errors"
	"github.com/alexjbarnes/wordswipe-sync/internal/state"
)

func testState(t *testing.T) *state.State {
	t.Helper()
	s, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testProvider(t *testing.T, st *state.State, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPProvider(srv.URL, st, "laptop", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResumeSession_NoToken(t *testing.T) {
	p := testProvider(t, testState(t), func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected without a token")
	})

	sess, err := p.ResumeSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestResumeSession_Valid(t *testing.T) {
	st := testState(t)
	require.NoError(t, st.SetToken("tok-1"))

	p := testProvider(t, st, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/session", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"uid":"u1","anonymous":true}`))
	})

	sess, err := p.ResumeSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "tok-1", sess.Token)
	assert.True(t, sess.Anonymous)
}

func TestResumeSession_ExpiredClearsToken(t *testing.T) {
	st := testState(t)
	require.NoError(t, st.SetToken("stale"))

	p := testProvider(t, st, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	sess, err := p.ResumeSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, "", st.Token())
}

func TestResumeSession_ServerDown(t *testing.T) {
	st := testState(t)
	require.NoError(t, st.SetToken("tok"))

	p := testProvider(t, st, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.ResumeSession(context.Background())
	assert.ErrorIs(t, err, wserrors.ErrRemoteUnavailable)
	assert.Equal(t, "tok", st.Token())
}

func TestCreateAnonymous(t *testing.T) {
	st := testState(t)

	p := testProvider(t, st, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/auth/anonymous", r.URL.Path)

		var body anonymousRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "laptop", body.Device)

		w.Write([]byte(`{"uid":"anon-7","token":"new-tok","anonymous":true}`))
	})

	sess, err := p.CreateAnonymous(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anon-7", sess.UserID)
	assert.True(t, sess.Anonymous)
	assert.Equal(t, "new-tok", st.Token())
	assert.Equal(t, "new-tok", p.Token())
}

func TestCreateAnonymous_MissingToken(t *testing.T) {
	p := testProvider(t, testState(t), func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"uid":"anon-7"}`))
	})

	_, err := p.CreateAnonymous(context.Background())
	assert.Error(t, err)
}

func TestCreateAnonymous_Rejected(t *testing.T) {
	p := testProvider(t, testState(t), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.CreateAnonymous(context.Background())
	assert.ErrorIs(t, err, wserrors.ErrAuthRequired)
}
