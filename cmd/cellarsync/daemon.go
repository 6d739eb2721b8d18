package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cellarsync/cellarsync/internal/config"
	"github.com/cellarsync/cellarsync/internal/controlplane"
	"github.com/cellarsync/cellarsync/internal/gitsync"
	"github.com/cellarsync/cellarsync/internal/syncmgr"
	"github.com/cellarsync/cellarsync/internal/utils"
	"github.com/cellarsync/cellarsync/internal/version"
)

const shutdownTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	var addr string
	var authToken string
	var pullOnStart bool

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Serve the local control plane and keep the data directory locked",
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("cellarsync", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			return withApp(cmd, func(ctx context.Context, a *app) error {
				if !cmd.Flags().Changed("http-addr") {
					addr = a.cfg.ControlPlaneAddr
				}
				if authToken == "" {
					authToken = a.cfg.ControlPlaneToken
				}
				if authToken == "" {
					authToken = uuid.NewString()
					slog.Info("control plane token generated", "token", authToken)
				}

				if pullOnStart {
					out := a.mgr.Pull(ctx)
					slog.Info("pull on start", "status", out.Status, "message", out.Message)
				}

				defer slog.Info("Bye!")
				srv := controlplane.NewServer(&controlplane.Config{
					Addr:      addr,
					AuthToken: authToken,
				}, a.mgr, a.store)
				err := runDaemon(ctx, a, srv, func() (*config.Config, error) {
					return loadConfig(cmd)
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("daemon", "error", err)
					return err
				}
				return nil
			})
		},
	}

	daemonCmd.Flags().StringVarP(&addr, "http-addr", "a", "", "Address to bind the control plane (default from config)")
	daemonCmd.Flags().StringVarP(&authToken, "http-token", "t", "", "Access token for the control plane, generated when empty")
	daemonCmd.Flags().BoolVar(&pullOnStart, "pull", false, "Pull from the repository before serving")
	return daemonCmd
}

// runDaemon serves the control plane until ctx is done, logging every status
// change and applying edits to the config file as they happen.
func runDaemon(ctx context.Context, a *app, srv *controlplane.Server, load func() (*config.Config, error)) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	g.Go(func() error {
		return config.Watch(gctx, a.cfg.Path, func() {
			next, err := load()
			if err != nil {
				slog.Warn("config reload", "error", err)
				return
			}
			if err := reloadConfig(gctx, a, next); err != nil {
				slog.Warn("config reload", "error", err)
			}
		})
	})

	events := a.mgr.Subscribe()
	g.Go(func() error {
		defer a.mgr.Unsubscribe(events)
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				slog.Info("sync status", "status", ev.Status, "pending", ev.PendingCount, "message", ev.Message)
			}
		}
	})

	return g.Wait()
}

// reloadConfig points the manager at the repository in next when the
// connection settings changed. A different repository starts without a
// version marker.
func reloadConfig(ctx context.Context, a *app, next *config.Config) error {
	if next.Repo == a.cfg.Repo && next.Token == a.cfg.Token && next.BaseURL == a.cfg.BaseURL {
		return nil
	}

	var engine *gitsync.Engine
	if next.Configured() {
		client, err := syncmgr.NewRemoteClient(next)
		if err != nil {
			return fmt.Errorf("remote: %w", err)
		}
		engine = gitsync.New(client)
	}

	if err := a.mgr.Reconfigure(ctx, engine, next.Repo != a.cfg.Repo); err != nil {
		return err
	}
	slog.Info("config reloaded", "repo", next.Repo, "token", utils.MaskSecret(next.Token))

	a.cfg.Repo = next.Repo
	a.cfg.Token = next.Token
	a.cfg.BaseURL = next.BaseURL
	a.cfg.Branch = next.Branch
	return nil
}
