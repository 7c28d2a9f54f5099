package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// fileStoreDirPerm is the permission mode for the shared data directory.
	fileStoreDirPerm = fs.FileMode(0o755)

	// fileStoreFilePerm is the permission mode for value files. The UI
	// process reading them may run as another user in the same group.
	fileStoreFilePerm = fs.FileMode(0o644)

	// tmpPrefix marks in-flight atomic writes. The watcher ignores them.
	tmpPrefix = ".tmp-"

	// fileExt is appended to every key to form its file name.
	fileExt = ".json"
)

// FileStore keeps each local key in its own <key>.json file inside a directory, so
// a UI process can read and write the same data this daemon syncs. Writes
// are atomic (temp file + rename). The hash of every write made through
// this FileStore is remembered so the watcher can drop its own echoes.
type FileStore struct {
	dir string
	mu  sync.RWMutex

	ownWrites   map[string]string
	ownWritesMu sync.Mutex
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store directory must not be empty")
	}

	if err := os.MkdirAll(dir, fileStoreDirPerm); err != nil {
		return nil, fmt.Errorf("creating file store directory %s: %w", dir, err)
	}

	return &FileStore{dir: dir, ownWrites: make(map[string]string)}, nil
}

// Dir returns the root directory.
func (f *FileStore) Dir() string {
	return f.dir
}

// Get reads the file for key. A missing file reports found=false.
func (f *FileStore) Get(key string) (string, bool, error) {
	path, err := f.resolve(key)
	if err != nil {
		return "", false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path validated by FileStore.resolve
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}

	return string(data), true, nil
}

// Set atomically replaces the file for key.
func (f *FileStore) Set(key, value string) error {
	path, err := f.resolve(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, tmpPrefix+key+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("writing temp file for %s: %w", key, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", key, err)
	}

	if err := os.Chmod(tmpName, fileStoreFilePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions for %s: %w", key, err)
	}

	f.rememberWrite(key, []byte(value))

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file for %s: %w", key, err)
	}

	return nil
}

// IsOwnWrite reports whether data is exactly what this FileStore last
// wrote for key.
func (f *FileStore) IsOwnWrite(key string, data []byte) bool {
	f.ownWritesMu.Lock()
	defer f.ownWritesMu.Unlock()

	h, ok := f.ownWrites[key]

	return ok && h == contentHash(data)
}

// KeyForPath maps an absolute path inside the directory back to its key.
// The bool is false for paths that are not value files.
func (f *FileStore) KeyForPath(path string) (string, bool) {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(f.dir) {
		return "", false
	}

	name := filepath.Base(path)
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}

	key := strings.TrimSuffix(name, fileExt)
	if validKey(key) != nil {
		return "", false
	}

	return key, true
}

func (f *FileStore) rememberWrite(key string, data []byte) {
	f.ownWritesMu.Lock()
	f.ownWrites[key] = contentHash(data)
	f.ownWritesMu.Unlock()
}

func (f *FileStore) resolve(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}

	return filepath.Join(f.dir, key+fileExt), nil
}

// validKey rejects keys that could escape the directory or collide with
// temp files.
func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("local key must not be empty")
	}

	if strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid local key %q", key)
	}

	return nil
}

func contentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
