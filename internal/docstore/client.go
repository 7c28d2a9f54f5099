package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	wserrors "github.com/alexjbarnes/wordswipe-sync/internal/errors"
)

const (
	// httpClientTimeout applies to the default HTTP client.
	httpClientTimeout = 30 * time.Second

	// maxResponseBytes caps response body reads. The studied document
	// is the largest payload and stays well below this.
	maxResponseBytes = 8 * 1024 * 1024

	// maxFrameBytes caps a single WebSocket frame.
	maxFrameBytes = 8 * 1024 * 1024

	// maxRedirects matches the net/http default.
	maxRedirects = 10

	redialMin = 1 * time.Second
	redialMax = 1 * time.Minute

	// jitterDivisor bounds redial jitter to [0, backoff/jitterDivisor).
	jitterDivisor = 2

	// requestIDHeader carries a per-request UUID for server-side tracing.
	requestIDHeader = "X-Request-ID"
)

// ClientConfig holds the parameters for a Client.
type ClientConfig struct {
	// BaseURL is the HTTP root of the document service, e.g.
	// https://api.wordswipe.app.
	BaseURL string

	// ListenURL is the WebSocket root. Derived from BaseURL when empty.
	ListenURL string

	// Token returns the current session token for the Authorization
	// header. It is called on every request.
	Token func() string

	// HTTPClient defaults to a 30 second timeout client that only
	// follows same-host redirects.
	HTTPClient *http.Client
}

// Client is a Store over the document service's HTTP API, with
// subscriptions over WebSocket.
type Client struct {
	httpClient *http.Client
	baseURL    string
	listenURL  string
	token      func() string
	logger     *slog.Logger
}

var _ Store = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:       httpClientTimeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	listenURL := cfg.ListenURL
	if listenURL == "" {
		listenURL = ListenURLFor(cfg.BaseURL)
	}

	token := cfg.Token
	if token == nil {
		token = func() string { return "" }
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		listenURL:  strings.TrimRight(listenURL, "/"),
		token:      token,
		logger:     logger,
	}
}

// ListenURLFor maps an http(s) base URL to its ws(s) equivalent.
func ListenURLFor(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}

// sameHostRedirectPolicy follows redirects only within the original host
// so the bearer token never leaks to a third party.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

type fieldsBody struct {
	Fields Fields `json:"fields"`
}

type collectionResponse struct {
	Documents []Document `json:"documents"`
}

// GetDocument implements Store.
func (c *Client) GetDocument(ctx context.Context, path string) (*Document, error) {
	var doc Document

	err := c.do(ctx, http.MethodGet, documentEndpoint(path), nil, nil, &doc)
	if errors.Is(err, wserrors.ErrNoDocument) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if doc.Path == "" {
		doc.Path = path
	}

	if doc.Fields == nil {
		doc.Fields = make(Fields)
	}

	return &doc, nil
}

// SetDocument implements Store.
func (c *Client) SetDocument(ctx context.Context, path string, fields Fields, merge bool) error {
	q := url.Values{"merge": {strconv.FormatBool(merge)}}
	return c.do(ctx, http.MethodPut, documentEndpoint(path), q, fieldsBody{Fields: fields}, nil)
}

// UpdateDocument implements Store.
func (c *Client) UpdateDocument(ctx context.Context, path string, fields Fields) error {
	return c.do(ctx, http.MethodPatch, documentEndpoint(path), nil, fieldsBody{Fields: fields}, nil)
}

// QueryByField implements Store.
func (c *Client) QueryByField(ctx context.Context, collection, field, value string) ([]Document, error) {
	return c.queryCollection(ctx, collection, url.Values{"field": {field}, "value": {value}})
}

// QueryTopN implements Store.
func (c *Client) QueryTopN(ctx context.Context, collection, field string, n int) ([]Document, error) {
	return c.queryCollection(ctx, collection, url.Values{"orderBy": {field}, "limit": {strconv.Itoa(n)}})
}

// ListDocuments implements Store.
func (c *Client) ListDocuments(ctx context.Context, collection string) ([]Document, error) {
	return c.queryCollection(ctx, collection, nil)
}

func (c *Client) queryCollection(ctx context.Context, collection string, q url.Values) ([]Document, error) {
	var resp collectionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/collections/"+escapePath(collection), q, nil, &resp); err != nil {
		return nil, err
	}

	return resp.Documents, nil
}

func documentEndpoint(path string) string {
	return "/v1/documents/" + escapePath(path)
}

// escapePath escapes each segment of a slash-separated document path.
func escapePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return strings.Join(segments, "/")
}

// do sends one JSON request and decodes the response into result.
// Network failures and 5xx/429 responses wrap ErrRemoteUnavailable, 401
// wraps ErrAuthRequired and 404 wraps ErrNoDocument.
func (c *Client) do(ctx context.Context, method, endpoint string, q url.Values, body, result any) error {
	target := c.baseURL + endpoint
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()

	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", method, endpoint, ctx.Err())
		}

		return fmt.Errorf("%s %s: %w: %w", method, endpoint, wserrors.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: reading response: %w: %w", method, endpoint, wserrors.ErrRemoteUnavailable, err)
	}

	c.logger.Debug("remote request",
		slog.String("method", method),
		slog.String("endpoint", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", requestID),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, endpoint, wserrors.ErrNoDocument)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, endpoint, wserrors.ErrAuthRequired)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%s %s returned status %d: %w", method, endpoint, resp.StatusCode, wserrors.ErrRemoteUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s returned status %d: %s", method, endpoint, resp.StatusCode, sanitizeResponseBody(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response from %s: %w", endpoint, err)
		}
	}

	return nil
}

// sanitizeResponseBody truncates a body to 256 bytes and replaces
// invalid UTF-8 and control characters for safe inclusion in errors.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// snapshotFrame is the server's push message for one document.
type snapshotFrame struct {
	Op     string `json:"op"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Fields Fields `json:"fields"`
}

// Subscribe implements Store. The first dial happens before returning so
// a failing connection is reported to the caller. After that the stream
// re-dials with jittered exponential backoff until ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	conn, err := c.dial(ctx, path)
	if err != nil {
		return nil, err
	}

	ch := make(chan Event)

	go c.stream(ctx, path, conn, ch)

	return ch, nil
}

func (c *Client) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	target := c.listenURL + "/v1/listen?" + url.Values{"path": {path}}.Encode()

	header := http.Header{requestIDHeader: []string{uuid.NewString()}}
	if tok := c.token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := websocket.Dial(ctx, target, &websocket.DialOptions{ //nolint:bodyclose // websocket.Dial closes the response body internally
		HTTPClient: c.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("subscribing to %s: %w", path, wserrors.ErrAuthRequired)
		}

		return nil, fmt.Errorf("subscribing to %s: %w: %w", path, wserrors.ErrRemoteUnavailable, err)
	}

	conn.SetReadLimit(maxFrameBytes)

	return conn, nil
}

// stream owns conn and every replacement for it. It closes ch on return.
func (c *Client) stream(ctx context.Context, path string, conn *websocket.Conn, ch chan<- Event) {
	defer close(ch)

	backoff := redialMin

	for {
		err := c.readFrames(ctx, path, conn, ch)
		conn.Close(websocket.StatusNormalClosure, "")

		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("subscription dropped, redialling",
			slog.String("path", path),
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)

		for {
			jitter := time.Duration(rand.Int64N(int64(backoff)/jitterDivisor + 1)) //nolint:gosec // G404: math/rand is fine for redial jitter

			timer := time.NewTimer(backoff + jitter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			conn, err = c.dial(ctx, path)
			if err == nil {
				break
			}

			if ctx.Err() != nil {
				return
			}

			backoff = min(backoff*2, redialMax)

			c.logger.Warn("redial failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)
		}

		backoff = redialMin

		c.logger.Info("subscription restored", slog.String("path", path))
	}
}

// readFrames forwards snapshot frames until the connection fails or ctx
// is cancelled.
func (c *Client) readFrames(ctx context.Context, path string, conn *websocket.Conn, ch chan<- Event) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if typ != websocket.MessageText {
			continue
		}

		switch op := gjson.GetBytes(data, "op").Str; op {
		case "ping":
			continue
		case "snapshot":
		default:
			c.logger.Debug("ignoring frame", slog.String("op", op), slog.String("path", path))
			continue
		}

		var frame snapshotFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("malformed snapshot frame", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}

		if frame.Path == "" {
			frame.Path = path
		}

		ev := Event{Path: frame.Path, Exists: frame.Exists}
		if frame.Exists {
			fields := frame.Fields
			if fields == nil {
				fields = make(Fields)
			}

			ev.Doc = &Document{Path: frame.Path, Fields: fields}
		}

		select {
		case ch <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
