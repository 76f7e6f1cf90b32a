package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mmcdole/kinomark/internal/adapter"
	"github.com/mmcdole/kinomark/internal/bookmarks"
	"github.com/mmcdole/kinomark/internal/domain"
	"github.com/mmcdole/kinomark/internal/store"
	"github.com/spf13/cobra"
)

const (
	readyTimeout = 30 * time.Second
	closeTimeout = 10 * time.Second
)

// session is one command's view of the configured bookmark store
type session struct {
	cfg       *adapter.Config
	logger    *slog.Logger
	logCloser io.Closer
	kv        domain.KVStore
	store     *bookmarks.Store
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSession loads config, opens the backend and waits for the saved
// movies to finish loading.
func openSession(ctx context.Context, opts *GlobalOptions) (*session, error) {
	cfg, err := adapter.LoadConfig(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Backend != "" {
		cfg.Storage.Backend = opts.Backend
	}
	if opts.Path != "" {
		cfg.Storage.Path = opts.Path
	}

	var logCloser io.Closer = nopCloser{}
	logger, closer, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	} else {
		logCloser = closer
	}
	slog.SetDefault(logger)

	kv, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	logger.Debug("storage opened", "backend", cfg.Storage.Backend, "path", cfg.StoragePath())

	s := bookmarks.Open(ctx, kv,
		bookmarks.WithLogger(logger),
		bookmarks.WithKey(cfg.Storage.Key),
	)

	sess := &session{cfg: cfg, logger: logger, logCloser: logCloser, kv: kv, store: s}

	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := s.WaitReady(readyCtx); err != nil {
		sess.close(io.Discard)
		return nil, fmt.Errorf("saved movies did not load: %w", err)
	}
	return sess, nil
}

// close flushes pending writes and releases the backend. A durable write
// failure that was never healed is reported to warn.
func (s *session) close(warn io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := s.store.Close(ctx)
	if last := s.store.LastError(); last != nil {
		fmt.Fprintf(warn, "warning: %v\n", last)
	}
	if kvErr := s.kv.Close(); kvErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close storage: %w", kvErr))
	}
	if err != nil {
		s.logger.Error("shutdown error", "error", err)
	}
	s.logCloser.Close()
	return err
}

// withSession runs fn against an open session and always closes it
func withSession(cmd *cobra.Command, opts *GlobalOptions, fn func(*session) error) (err error) {
	sess, err := openSession(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sess.close(cmd.ErrOrStderr()))
	}()
	return fn(sess)
}
