package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.wordswipe-sync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket   = []byte("app")
	localBucket = []byte("local")
	tokenKey    = []byte("token")
	syncKey     = []byte("sync")
)

// SyncState records when this device last completed a push and a pull.
// Timestamps are epoch milliseconds, zero when it never happened.
type SyncState struct {
	UserID   string `json:"uid"`
	LastPush int64  `json:"lastPush"`
	LastPull int64  `json:"lastPull"`
}

// State wraps a bbolt database for all persistent application state:
// the session token, the sync cursor, and (with the bolt backend) the
// local study data itself.
type State struct {
	db *bolt.DB
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Tests pass a path under t.TempDir().
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(appBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(localBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Token returns the cached session token, or empty string.
func (s *State) Token() string {
	var token string

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(tokenKey)
		if v != nil {
			token = string(v)
		}

		return nil
	})

	return token
}

// SetToken persists the session token. An empty token clears it.
func (s *State) SetToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)
		if token == "" {
			return b.Delete(tokenKey)
		}

		return b.Put(tokenKey, []byte(token))
	})
}

// GetSync returns the sync cursor, zero-valued when never written.
func (s *State) GetSync() (SyncState, error) {
	var ss SyncState

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(syncKey)
		if v == nil {
			return nil
		}

		return json.Unmarshal(v, &ss)
	})

	return ss, err
}

// SetSync replaces the sync cursor.
func (s *State) SetSync(ss SyncState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(ss)
		if err != nil {
			return err
		}

		return tx.Bucket(appBucket).Put(syncKey, data)
	})
}

// Get returns the local value stored under key. The bool is false when
// the key has never been set.
func (s *State) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(localBucket).Get([]byte(key))
		if v == nil {
			return nil
		}

		value = string(v)
		found = true

		return nil
	})

	return value, found, err
}

// Set stores a local value under key.
func (s *State) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("local key must not be empty")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(localBucket).Put([]byte(key), []byte(value))
	})
}

// Keys returns every local key in byte order.
func (s *State) Keys() ([]string, error) {
	var keys []string

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(localBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})

	return keys, err
}
