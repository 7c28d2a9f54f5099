// Package models defines types shared across internal packages.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ProgressRecord is the learning state of a single word, kept as the raw
// JSON object so fields written by other clients survive a round trip.
// Only lastReview is interpreted here.
type ProgressRecord []byte

// NewProgressRecord encodes fields into a record.
func NewProgressRecord(fields map[string]any) (ProgressRecord, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding progress record: %w", err)
	}

	return ProgressRecord(data), nil
}

// LastReview returns the lastReview timestamp in epoch milliseconds.
// Missing, non-numeric, and negative values all read as 0.
func (r ProgressRecord) LastReview() int64 {
	return nonNegativeInt(r, "lastReview")
}

// Fields decodes the record into a generic map.
func (r ProgressRecord) Fields() (map[string]any, error) {
	fields := make(map[string]any)
	if len(r) == 0 {
		return fields, nil
	}

	if err := json.Unmarshal(r, &fields); err != nil {
		return nil, fmt.Errorf("decoding progress record: %w", err)
	}

	return fields, nil
}

// Equal reports whether both records hold identical bytes.
func (r ProgressRecord) Equal(other ProgressRecord) bool {
	return bytes.Equal(r, other)
}

// MarshalJSON emits the stored bytes unchanged.
func (r ProgressRecord) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}

	return r, nil
}

// UnmarshalJSON keeps a copy of the raw object.
func (r *ProgressRecord) UnmarshalJSON(data []byte) error {
	if r == nil {
		return fmt.Errorf("models.ProgressRecord: UnmarshalJSON on nil pointer")
	}

	*r = append((*r)[:0], data...)

	return nil
}

// StudiedSet maps a word key to its progress record.
type StudiedSet map[string]ProgressRecord

// Clone returns a shallow copy. Records are immutable byte slices by
// convention, so sharing them is safe.
func (s StudiedSet) Clone() StudiedSet {
	out := make(StudiedSet, len(s))
	for k, v := range s {
		out[k] = v
	}

	return out
}

// DayStats is the aggregate for one date bucket, kept raw like
// ProgressRecord. Only the sessions counter is interpreted.
type DayStats []byte

// Sessions returns the number of study sessions recorded for the day.
func (d DayStats) Sessions() int64 {
	return nonNegativeInt(d, "sessions")
}

// MarshalJSON emits the stored bytes unchanged.
func (d DayStats) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}

	return d, nil
}

// UnmarshalJSON keeps a copy of the raw object.
func (d *DayStats) UnmarshalJSON(data []byte) error {
	if d == nil {
		return fmt.Errorf("models.DayStats: UnmarshalJSON on nil pointer")
	}

	*d = append((*d)[:0], data...)

	return nil
}

// StatsSet maps a date key (YYYY-MM-DD) to that day's aggregate.
type StatsSet map[string]DayStats

// TotalSessions sums the sessions counter across every day.
func (s StatsSet) TotalSessions() int64 {
	var total int64
	for _, day := range s {
		total += day.Sessions()
	}

	return total
}

func nonNegativeInt(raw []byte, field string) int64 {
	if len(raw) == 0 {
		return 0
	}

	v := gjson.GetBytes(raw, field)
	if v.Type != gjson.Number {
		return 0
	}

	n := v.Int()
	if n < 0 {
		return 0
	}

	return n
}
