package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/gjson"

	wserrors "github.com/alexjbarnes/wordswipe-sync/internal/errors"
)

// Memory is a process-local Store. Subscribers receive a snapshot after
// every write to their path. Pending snapshots for a slow subscriber are
// coalesced so a writer never blocks on a reader.
type Memory struct {
	mu   sync.Mutex
	docs map[string]Fields
	subs map[*memorySub]struct{}
}

type memorySub struct {
	path string

	mu      sync.Mutex
	pending *Event
	wake    chan struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]Fields),
		subs: make(map[*memorySub]struct{}),
	}
}

// GetDocument implements Store.
func (m *Memory) GetDocument(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.docs[path]
	if !ok {
		return nil, nil
	}

	return &Document{Path: path, Fields: fields.Clone()}, nil
}

// SetDocument implements Store.
func (m *Memory) SetDocument(ctx context.Context, path string, fields Fields, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(Fields, len(fields))
	if existing, ok := m.docs[path]; ok && merge {
		next = existing.Clone()
	}

	for k, v := range fields {
		next[k] = v
	}

	m.docs[path] = next
	m.publishLocked(path)

	return nil
}

// UpdateDocument implements Store.
func (m *Memory) UpdateDocument(ctx context.Context, path string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.docs[path]
	if !ok {
		return fmt.Errorf("updating %s: %w", path, wserrors.ErrNoDocument)
	}

	next := existing.Clone()
	for k, v := range fields {
		next[k] = v
	}

	m.docs[path] = next
	m.publishLocked(path)

	return nil
}

// Delete removes a document and notifies subscribers with a
// non-existent snapshot.
func (m *Memory) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, path)
	m.publishLocked(path)
}

// Subscribe implements Store.
func (m *Memory) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySub{path: path, wake: make(chan struct{}, 1)}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	ch := make(chan Event)

	go func() {
		defer close(ch)
		defer func() {
			m.mu.Lock()
			delete(m.subs, sub)
			m.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.wake:
			}

			sub.mu.Lock()
			ev := sub.pending
			sub.pending = nil
			sub.mu.Unlock()

			if ev == nil {
				continue
			}

			select {
			case ch <- *ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// QueryByField implements Store.
func (m *Memory) QueryByField(ctx context.Context, collection, field, value string) ([]Document, error) {
	docs, err := m.ListDocuments(ctx, collection)
	if err != nil {
		return nil, err
	}

	var out []Document

	for _, d := range docs {
		raw, ok := d.Fields[field]
		if !ok {
			continue
		}

		v := gjson.ParseBytes(raw)
		if v.Type == gjson.String && v.Str == value {
			out = append(out, d)
		}
	}

	return out, nil
}

// QueryTopN implements Store. Documents without a numeric field are
// excluded. Ties are broken by path.
func (m *Memory) QueryTopN(ctx context.Context, collection, field string, n int) ([]Document, error) {
	docs, err := m.ListDocuments(ctx, collection)
	if err != nil {
		return nil, err
	}

	type scored struct {
		doc   Document
		score float64
	}

	var ranked []scored

	for _, d := range docs {
		v := gjson.ParseBytes(d.Fields[field])
		if v.Type != gjson.Number {
			continue
		}

		ranked = append(ranked, scored{doc: d, score: v.Float()})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]Document, len(ranked))
	for i, r := range ranked {
		out[i] = r.doc
	}

	return out, nil
}

// ListDocuments implements Store. Results are sorted by path.
func (m *Memory) ListDocuments(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Document

	for path, fields := range m.docs {
		if inCollection(collection, path) {
			out = append(out, Document{Path: path, Fields: fields.Clone()})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out, nil
}

func (m *Memory) publishLocked(path string) {
	ev := Event{Path: path}
	if fields, ok := m.docs[path]; ok {
		ev.Exists = true
		ev.Doc = &Document{Path: path, Fields: fields.Clone()}
	}

	for sub := range m.subs {
		if sub.path != path {
			continue
		}

		sub.mu.Lock()
		sub.pending = &ev
		sub.mu.Unlock()

		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}
