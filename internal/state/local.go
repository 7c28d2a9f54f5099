package state

import (
	"encoding/json"
	"fmt"

	"github.com/alexjbarnes/wordswipe-sync/internal/models"
)

// Fixed local keys, shared with the web client's localStorage layout.
const (
	KeyStudied  = "studied"
	KeyStats    = "wordswipe_stats"
	KeyUserName = "userName"
)

// KV is a synchronous string key-value store. Both State and FileStore
// implement it.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// LoadStudied decodes the StudiedSet. A missing or empty key yields an
// empty set.
func LoadStudied(kv KV) (models.StudiedSet, error) {
	set := make(models.StudiedSet)
	if err := loadJSON(kv, KeyStudied, &set); err != nil {
		return nil, err
	}

	if set == nil {
		set = make(models.StudiedSet)
	}

	return set, nil
}

// SaveStudied encodes and stores the StudiedSet.
func SaveStudied(kv KV, set models.StudiedSet) error {
	return saveJSON(kv, KeyStudied, set)
}

// LoadStats decodes the StatsSet. A missing or empty key yields an empty
// set.
func LoadStats(kv KV) (models.StatsSet, error) {
	set := make(models.StatsSet)
	if err := loadJSON(kv, KeyStats, &set); err != nil {
		return nil, err
	}

	if set == nil {
		set = make(models.StatsSet)
	}

	return set, nil
}

// SaveStats encodes and stores the StatsSet.
func SaveStats(kv KV, set models.StatsSet) error {
	return saveJSON(kv, KeyStats, set)
}

// UserName returns the locally stored display name, or "".
func UserName(kv KV) (string, error) {
	name, _, err := kv.Get(KeyUserName)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", KeyUserName, err)
	}

	return name, nil
}

func loadJSON(kv KV, key string, dst any) error {
	raw, ok, err := kv.Get(key)
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}

	if !ok || raw == "" {
		return nil
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}

	return nil
}

func saveJSON(kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	if err := kv.Set(key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	return nil
}
