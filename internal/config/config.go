package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Local store backends.
const (
	LocalStoreBolt = "bolt"
	LocalStoreDir  = "dir"
)

const (
	// minSyncInterval is the floor for SYNC_INTERVAL. Pushing more often
	// than this only multiplies remote writes.
	minSyncInterval = time.Second

	// maxLeaderboardSize caps LEADERBOARD_SIZE.
	maxLeaderboardSize = 100
)

// Config holds all environment-based configuration for wordswipe-sync.
type Config struct {
	// Remote document service. The listen URL carries change
	// notifications and defaults to the API URL with a ws/wss scheme.
	APIURL    string `env:"WORDSWIPE_API_URL"`
	ListenURL string `env:"WORDSWIPE_LISTEN_URL"`

	// Device name this client identifies as. Defaults to system hostname.
	DeviceName string `env:"DEVICE_NAME"`

	// Path of the bbolt state database. Defaults to
	// ~/.wordswipe-sync/state.db.
	StatePath string `env:"STATE_PATH"`

	// LocalStore selects where study progress lives on this device:
	// "bolt" keeps it in the state database, "dir" keeps one JSON file
	// per key in LocalDir so a UI process can share it.
	LocalStore string `env:"LOCAL_STORE" envDefault:"bolt"`
	LocalDir   string `env:"LOCAL_DIR"`

	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"10s"`
	FlushTimeout time.Duration `env:"FLUSH_TIMEOUT" envDefault:"3s"`

	// Display name given to a freshly created profile when the local
	// store has none.
	DefaultDisplayName string `env:"DEFAULT_DISPLAY_NAME" envDefault:"Learner"`
	LeaderboardSize    int    `env:"LEADERBOARD_SIZE" envDefault:"10"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogFile     string `env:"LOG_FILE"`

	// MCP server settings
	EnableMCP     bool   `env:"ENABLE_MCP" envDefault:"false"`
	MCPListenAddr string `env:"MCP_LISTEN_ADDR" envDefault:"127.0.0.1:8090"`
	MCPAPIKeys    string `env:"MCP_API_KEYS"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DeviceName == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "wordswipe-sync"
		}

		cfg.DeviceName = hostname
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.ListenURL == "" {
		listen, err := deriveListenURL(cfg.APIURL)
		if err != nil {
			return nil, err
		}

		cfg.ListenURL = listen
	}

	if cfg.StatePath == "" {
		path, err := DefaultStatePath()
		if err != nil {
			return nil, err
		}

		cfg.StatePath = path
	}

	absState, err := filepath.Abs(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
	}

	cfg.StatePath = absState

	if cfg.LocalDir != "" {
		absDir, err := filepath.Abs(cfg.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("resolving local dir to absolute path: %w", err)
		}

		cfg.LocalDir = absDir
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("WORDSWIPE_API_URL is required")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("WORDSWIPE_API_URL must be an http or https URL")
	}

	if c.ListenURL != "" {
		lu, err := url.Parse(c.ListenURL)
		if err != nil || (lu.Scheme != "ws" && lu.Scheme != "wss") || lu.Host == "" {
			return fmt.Errorf("WORDSWIPE_LISTEN_URL must be a ws or wss URL")
		}
	}

	switch c.LocalStore {
	case LocalStoreBolt:
	case LocalStoreDir:
		if c.LocalDir == "" {
			return fmt.Errorf("LOCAL_DIR is required when LOCAL_STORE is %q", LocalStoreDir)
		}
	default:
		return fmt.Errorf("LOCAL_STORE must be %q or %q, got %q", LocalStoreBolt, LocalStoreDir, c.LocalStore)
	}

	if c.SyncInterval < minSyncInterval {
		return fmt.Errorf("SYNC_INTERVAL must be at least %s", minSyncInterval)
	}

	if c.FlushTimeout <= 0 {
		return fmt.Errorf("FLUSH_TIMEOUT must be positive")
	}

	if c.LeaderboardSize < 1 || c.LeaderboardSize > maxLeaderboardSize {
		return fmt.Errorf("LEADERBOARD_SIZE must be between 1 and %d", maxLeaderboardSize)
	}

	if strings.TrimSpace(c.DefaultDisplayName) == "" {
		return fmt.Errorf("DEFAULT_DISPLAY_NAME must not be blank")
	}

	if c.EnableMCP && c.MCPAPIKeys == "" {
		return fmt.Errorf("MCP_API_KEYS is required when MCP is enabled")
	}

	return nil
}

// deriveListenURL swaps the API URL scheme for its WebSocket counterpart.
func deriveListenURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parsing WORDSWIPE_API_URL: %w", err)
	}

	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	return u.String(), nil
}

// DefaultStatePath returns ~/.wordswipe-sync/state.db.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".wordswipe-sync", "state.db"), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// APIKeyEntry holds a user identity and the bcrypt hash of the API key
// it authenticates with, parsed from MCP_API_KEYS.
type APIKeyEntry struct {
	UserID string
	Hash   string
}

// ParseMCPAPIKeys parses the MCP_API_KEYS string.
// Format: "user1:$2a$10$...,user2:$2a$10$..."
// Hashes are produced by the hash-key command.
func (c *Config) ParseMCPAPIKeys() ([]APIKeyEntry, error) {
	if c.MCPAPIKeys == "" {
		return nil, nil
	}

	seenUsers := make(map[string]struct{})

	var entries []APIKeyEntry

	for _, pair := range strings.Split(c.MCPAPIKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		idx := strings.Index(pair, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid API key entry (missing ':')")
		}

		userID := pair[:idx]

		hash := pair[idx+1:]
		if userID == "" || hash == "" {
			return nil, fmt.Errorf("empty user or hash in entry %d", len(entries)+1)
		}

		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("API key hash in entry %d is not a bcrypt hash", len(entries)+1)
		}

		if _, dup := seenUsers[userID]; dup {
			return nil, fmt.Errorf("duplicate user_id %q in MCP_API_KEYS", userID)
		}

		seenUsers[userID] = struct{}{}
		entries = append(entries, APIKeyEntry{UserID: userID, Hash: hash})
	}

	return entries, nil
}
