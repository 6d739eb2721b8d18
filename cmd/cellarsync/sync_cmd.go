package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cellarsync/cellarsync/internal/syncmgr"
)

const (
	strategyPropose      = "propose"
	strategyAcceptRemote = "accept-remote"
)

var errConflict = errors.New("sync conflict: resolve with `cellarsync resolve --strategy propose` or `--strategy accept-remote`")

func init() {
	rootCmd.AddCommand(
		newStatusCmd(),
		newPushCmd(),
		newPullCmd(),
		newResolveCmd(),
		newTestConnectionCmd(),
		newDisconnectCmd(),
	)
}

// printOutcome renders a sync outcome and turns anything but success into an error.
func printOutcome(w io.Writer, out syncmgr.Outcome) error {
	if out.Skipped {
		return errors.New(out.Message)
	}

	switch out.Status {
	case syncmgr.StatusConnected:
		fmt.Fprintln(w, green.Render(out.Message))
		if out.PullRequestURL != "" {
			fmt.Fprintf(w, "%s %s\n", gray.Render("Pull request"), cyan.Render(out.PullRequestURL))
		}
		if out.CommitSHA != "" {
			fmt.Fprintf(w, "%s %s\n", gray.Render("Commit"), out.CommitSHA)
		}
		for _, f := range out.Failures {
			fmt.Fprintf(w, "%s %s: %s\n", yellow.Render("skipped"), f.Path, f.Reason)
		}
		return nil
	case syncmgr.StatusConflict:
		fmt.Fprintln(w, yellow.Render(out.Message))
		if out.PullRequestURL != "" {
			fmt.Fprintf(w, "%s %s\n", gray.Render("Pull request"), cyan.Render(out.PullRequestURL))
			return nil
		}
		return errConflict
	default:
		if out.RetryIn > 0 {
			fmt.Fprintf(w, "%s %s\n", gray.Render("Retrying in"), out.RetryIn)
		}
		return errors.New(out.Message)
	}
}

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync status and pending changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.mgr.Report(ctx)
				if err != nil {
					return err
				}
				bottles, err := a.store.AllBottles(ctx)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if jsonOut {
					data, err := json.MarshalIndent(report, "", "  ")
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(w, "%s\n", data)
					return err
				}

				repo := a.cfg.Repo
				if repo == "" {
					repo = "(none)"
				}
				fmt.Fprintf(w, "%s %s\n", gray.Render("Status     "), statusStyle(report.Status))
				fmt.Fprintf(w, "%s %s\n", gray.Render("Repository "), cyan.Render(repo))
				fmt.Fprintf(w, "%s %d\n", gray.Render("Bottles    "), len(bottles))
				fmt.Fprintf(w, "%s %d\n", gray.Render("Pending    "), report.PendingCount)
				if report.LastSyncedAt != nil {
					fmt.Fprintf(w, "%s %s (%s)\n", gray.Render("Last sync  "), humanize.Time(*report.LastSyncedAt), shortSHA(report.LastSyncedSHA))
				} else {
					fmt.Fprintf(w, "%s never\n", gray.Render("Last sync  "))
				}
				if report.Message != "" {
					fmt.Fprintf(w, "%s %s\n", gray.Render("Message    "), report.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the status as JSON")
	return cmd
}

func statusStyle(s syncmgr.Status) string {
	switch s {
	case syncmgr.StatusConnected:
		return green.Render(string(s))
	case syncmgr.StatusConflict:
		return yellow.Render(string(s))
	case syncmgr.StatusError:
		return red.Render(string(s))
	default:
		return gray.Render(string(s))
	}
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push local bottles to the repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return printOutcome(cmd.OutOrStdout(), a.mgr.Push(ctx))
			})
		},
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace local bottles with the repository contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return printOutcome(cmd.OutOrStdout(), a.mgr.Pull(ctx))
			})
		},
	}
}

func newResolveCmd() *cobra.Command {
	var strategy string
	var yes bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a sync conflict",
		Long: `Resolve a sync conflict with one of two strategies:

  propose        push local bottles to a new branch and open a pull request
  accept-remote  discard local bottles and take the repository contents`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strategy {
			case strategyPropose, strategyAcceptRemote:
			default:
				return fmt.Errorf("unknown strategy %q: use %s or %s", strategy, strategyPropose, strategyAcceptRemote)
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				if strategy == strategyPropose {
					return printOutcome(cmd.OutOrStdout(), a.mgr.ProposeMerge(ctx))
				}

				if !yes {
					bottles, err := a.store.AllBottles(ctx)
					if err != nil {
						return err
					}
					ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
						fmt.Sprintf("Replace all %d local bottle(s) with the repository contents?", len(bottles)))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
						return nil
					}
				}
				return printOutcome(cmd.OutOrStdout(), a.mgr.AcceptRemote(ctx))
			})
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "propose or accept-remote")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask before discarding local bottles")
	_ = cmd.MarkFlagRequired("strategy")
	return cmd
}

// confirm asks a yes/no question. Without a terminal it refuses, so scripts must pass --yes.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if f, ok := in.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		return false, errors.New("refusing to discard local bottles without --yes")
	}

	fmt.Fprintf(out, "%s [y/N] ", yellow.Render(question))
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func newTestConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Check the repository and token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res := a.mgr.TestConnection(ctx)
				if !res.OK {
					return errors.New(res.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), green.Render(res.Message))
				return nil
			})
		},
	}
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the repository and token, keeping local bottles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.mgr.Disconnect(ctx); err != nil {
					return err
				}

				a.cfg.Repo = ""
				a.cfg.Token = ""
				if err := a.cfg.Save(a.cfg.Path); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), green.Render("Disconnected. Local bottles were kept."))
				return nil
			})
		},
	}
}
