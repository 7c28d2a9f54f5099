package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexjbarnes/wordswipe-sync/internal/app"
	"github.com/alexjbarnes/wordswipe-sync/internal/config"
	"github.com/alexjbarnes/wordswipe-sync/internal/docstore"
	"github.com/alexjbarnes/wordswipe-sync/internal/friends"
	"github.com/alexjbarnes/wordswipe-sync/internal/identity"
	"github.com/alexjbarnes/wordswipe-sync/internal/logging"
	"github.com/alexjbarnes/wordswipe-sync/internal/state"
	"github.com/alexjbarnes/wordswipe-sync/internal/wordsync"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "wordswipe-sync",
	Short:         "Keep WordSwipe study progress in sync with the cloud",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// components is everything a command needs to talk to the local store
// and the document service.
type components struct {
	cfg      *config.Config
	logger   *slog.Logger
	state    *state.State
	local    state.KV
	files    *state.FileStore
	identity *identity.HTTPProvider
	store    *docstore.Client
	ctrl     *wordsync.Controller
	app      *app.App
}

// loadComponents reads config and opens the state database. quiet keeps
// logs off stdout for commands whose output is data.
func loadComponents(quiet bool) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewFileLogger(cfg.Environment, cfg.LogFile)
	if quiet {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	st, err := state.LoadAt(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	c := &components{cfg: cfg, logger: logger, state: st, local: st}

	if cfg.LocalStore == config.LocalStoreDir {
		files, err := state.NewFileStore(cfg.LocalDir)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("opening local dir: %w", err)
		}

		c.files = files
		c.local = files
	}

	c.identity = identity.NewHTTPProvider(cfg.APIURL, st, cfg.DeviceName, nil, logger)
	c.store = docstore.NewClient(docstore.ClientConfig{
		BaseURL:   cfg.APIURL,
		ListenURL: cfg.ListenURL,
		Token:     c.identity.Token,
	}, logger)

	profiles := friends.NewService(c.store, c.local, nil, logger)

	c.ctrl = wordsync.NewController(wordsync.Deps{
		Store:    c.store,
		Local:    c.local,
		Identity: c.identity,
		Profiles: profiles,
		Cursor:   st,
	}, wordsync.Config{
		SyncInterval:       cfg.SyncInterval,
		FlushTimeout:       cfg.FlushTimeout,
		DefaultDisplayName: cfg.DefaultDisplayName,
	}, logger)

	c.app = app.New(c.ctrl, profiles, cfg.LeaderboardSize, logger)

	return c, nil
}

func (c *components) Close() {
	c.ctrl.Close()

	if err := c.state.Close(); err != nil {
		c.logger.Warn("closing state", slog.String("error", err.Error()))
	}
}
