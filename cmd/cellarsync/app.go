package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cellarsync/cellarsync/internal/config"
	"github.com/cellarsync/cellarsync/internal/gitsync"
	"github.com/cellarsync/cellarsync/internal/store"
	"github.com/cellarsync/cellarsync/internal/syncmgr"
)

// app is everything a command needs to read or sync the local cellar.
type app struct {
	cfg   *config.Config
	lock  *syncmgr.DataDirLock
	store *store.Store
	mgr   *syncmgr.Manager
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	lock := syncmgr.NewDataDirLock(cfg.DataDir)
	if err := lock.Lock(); err != nil {
		if errors.Is(err, syncmgr.ErrDataDirLocked) {
			return nil, fmt.Errorf("%w (is the daemon running?)", err)
		}
		return nil, err
	}

	st, err := store.Open(ctx, cfg.DatabasePath())
	if err != nil {
		lock.Unlock() //nolint:errcheck
		return nil, err
	}

	var engine *gitsync.Engine
	if cfg.Configured() {
		client, err := syncmgr.NewRemoteClient(cfg)
		if err != nil {
			st.Close()    //nolint:errcheck
			lock.Unlock() //nolint:errcheck
			return nil, fmt.Errorf("remote: %w", err)
		}
		engine = gitsync.New(client)
	}

	var opts []syncmgr.Option
	if cfg.AutoRetry {
		opts = append(opts, syncmgr.WithAutoRetry(syncmgr.DefaultRetryPolicy()))
	}

	slog.Debug("app open", "datadir", cfg.DataDir, "repo", cfg.Repo, "autoRetry", cfg.AutoRetry)
	return &app{
		cfg:   cfg,
		lock:  lock,
		store: st,
		mgr:   syncmgr.New(st, engine, opts...),
	}, nil
}

func (a *app) Close() error {
	a.mgr.Close()
	return errors.Join(a.store.Close(), a.lock.Unlock())
}

// withApp loads the config, opens the app for the duration of fn and closes it after.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	return fn(cmd.Context(), a)
}
