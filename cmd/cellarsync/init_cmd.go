package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cellarsync/cellarsync/internal/config"
	"github.com/cellarsync/cellarsync/internal/gitsync"
	"github.com/cellarsync/cellarsync/internal/syncmgr"
	"github.com/cellarsync/cellarsync/internal/utils"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var repo string
	var token string
	var branch string
	var dataDir string
	var baseURL string
	var autoRetry bool
	var skipTest bool
	var force bool

	cmd := &cobra.Command{
		Use:     "init",
		Aliases: []string{"connect"},
		Short:   "Connect the cellar to a Git repository",
		Example: `  cellarsync init --repo alice/cellar --token $GITHUB_TOKEN
  cellarsync init --repo file://$HOME/cellar.git`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			configPath := resolveConfigPath(cmd)

			cfg, err := config.Load(configPath)
			if err == nil && cfg.Configured() && !force {
				fmt.Fprintln(w, green.Render("**Already connected**"))
				logConfig(w, cfg)
				return nil
			}
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return err
				}
				cfg = &config.Config{Path: configPath}
			}

			if cmd.Flags().Changed("branch") || cfg.Branch == "" {
				cfg.Branch = branch
			}
			if cmd.Flags().Changed("data-dir") || cfg.DataDir == "" {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("base-url") || cfg.BaseURL == "" {
				cfg.BaseURL = baseURL
			}
			if cmd.Flags().Changed("auto-retry") {
				cfg.AutoRetry = autoRetry
			}

			connect := func(repo, token string) error {
				cfg.Repo = repo
				cfg.Token = token
				if err := cfg.Validate(); err != nil {
					return err
				}
				if skipTest {
					return nil
				}
				return verifyConnection(cmd.Context(), cfg)
			}

			if repo == "" {
				if !isatty.IsTerminal(os.Stdin.Fd()) {
					return errors.New("--repo is required")
				}
				if _, _, err := RunSetupTUI(SetupTUIOpts{
					ConfigPath:    configPath,
					DataDir:       cfg.DataDir,
					SubmitHandler: connect,
				}); err != nil {
					return err
				}
			} else if err := connect(repo, token); err != nil {
				return err
			}

			cmd.SilenceUsage = true
			if err := cfg.Save(configPath); err != nil {
				return err
			}

			fmt.Fprintln(w, green.Render("CellarSync connected"))
			logConfig(w, cfg)
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&repo, "repo", "r", "", "owner/repo on GitHub, or file:///path for a local bare repository")
	cmd.Flags().StringVarP(&token, "token", "t", "", "GitHub personal access token")
	cmd.Flags().StringVarP(&branch, "branch", "b", config.DefaultBranch, "Default branch for new local repositories")
	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", config.DefaultDataDir, "Directory holding the local cellar database")
	cmd.Flags().StringVar(&baseURL, "base-url", config.DefaultBaseURL, "GitHub API base URL")
	cmd.Flags().BoolVar(&autoRetry, "auto-retry", false, "Retry failed pushes with exponential backoff")
	cmd.Flags().BoolVar(&skipTest, "skip-test", false, "Save without testing the connection")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing connection")
	return cmd
}

func verifyConnection(ctx context.Context, cfg *config.Config) error {
	client, err := syncmgr.NewRemoteClient(cfg)
	if err != nil {
		return err
	}
	res := gitsync.New(client).TestConnection(ctx)
	if !res.OK {
		return errors.New(res.Message)
	}
	return nil
}

func logConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "%s %s\n", gray.Render("Config     "), cyan.Render(cfg.Path))
	fmt.Fprintf(w, "%s %s\n", gray.Render("Repository "), cyan.Render(cfg.Repo))
	fmt.Fprintf(w, "%s %s\n", gray.Render("Data Dir   "), cyan.Render(cfg.DataDir))
	if !cfg.IsLocal() {
		fmt.Fprintf(w, "%s %s\n", gray.Render("Token      "), cyan.Render(utils.MaskSecret(cfg.Token)))
	}
}
