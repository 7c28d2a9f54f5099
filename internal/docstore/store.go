// Package docstore is the remote document store adapter. Documents are
// flat maps of top-level fields addressed by slash-separated paths such
// as users/{uid}/data/studied.
package docstore

//go:generate mockgen -source=store.go -destination=mock_store.go -package=docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Fields holds a document's top-level fields as raw JSON values.
type Fields map[string]json.RawMessage

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}

	return out
}

// Document is one stored document.
type Document struct {
	Path   string `json:"path"`
	Fields Fields `json:"fields"`
}

// Decode unmarshals the document's fields into v.
func (d *Document) Decode(v any) error {
	data, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields of %s: %w", d.Path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", d.Path, err)
	}

	return nil
}

// Encode converts a struct or map into Fields via its JSON form. v must
// encode to a JSON object.
func Encode(v any) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}

	fields := make(Fields)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encoding fields: value is not an object: %w", err)
	}

	if fields == nil {
		fields = make(Fields)
	}

	return fields, nil
}

// Event is a snapshot pushed to a subscriber. Doc is nil when the
// document does not exist.
type Event struct {
	Path   string
	Exists bool
	Doc    *Document
}

// Store is the remote document service.
type Store interface {
	// GetDocument returns the document at path, or nil when it does not
	// exist.
	GetDocument(ctx context.Context, path string) (*Document, error)

	// SetDocument writes fields at path. With merge, existing top-level
	// fields not named in fields are kept; without it the document is
	// replaced.
	SetDocument(ctx context.Context, path string, fields Fields, merge bool) error

	// UpdateDocument overlays fields on an existing document. It fails
	// with ErrNoDocument when the document is absent.
	UpdateDocument(ctx context.Context, path string, fields Fields) error

	// Subscribe streams snapshots of path. The channel closes when ctx
	// is cancelled.
	Subscribe(ctx context.Context, path string) (<-chan Event, error)

	// QueryByField returns the documents directly under collection whose
	// string field equals value.
	QueryByField(ctx context.Context, collection, field, value string) ([]Document, error)

	// QueryTopN returns up to n documents under collection ordered by the
	// numeric field, highest first.
	QueryTopN(ctx context.Context, collection, field string, n int) ([]Document, error)

	// ListDocuments returns every document directly under collection.
	ListDocuments(ctx context.Context, collection string) ([]Document, error)
}
