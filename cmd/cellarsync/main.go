package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cellarsync/cellarsync/internal/config"
	"github.com/cellarsync/cellarsync/internal/utils"
	"github.com/cellarsync/cellarsync/internal/version"
)

const envPrefix = "CELLARSYNC"

// logLevel is raised to debug by --verbose.
var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:     "cellarsync",
	Short:   "Sync a wine cellar with a Git repository",
	Version: version.Detailed(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logLevel.Set(slog.LevelDebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "CellarSync config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	logFile := &lumberjack.Logger{
		Filename:   config.DefaultLogPath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	defer logFile.Close()

	if err := utils.EnsureParent(config.DefaultLogPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	logLevel.Set(slog.LevelInfo)

	// console logs go to stderr so command output on stdout stays clean
	consoleHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	fileHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(consoleHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath honors, in order, an explicit --config flag,
// CELLARSYNC_CONFIG_PATH and the default path.
func resolveConfigPath(cmd *cobra.Command) string {
	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		return cfgFlag.Value.String()
	}
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return config.DefaultConfigPath
}

// loadConfig merges the config file with CELLARSYNC_* environment variables.
// A missing config file is not an error: the result is an unconfigured cellar.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	path := resolveConfigPath(cmd)

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := &config.Config{
		Path:              path,
		Repo:              v.GetString("repo"),
		Token:             v.GetString("token"),
		Branch:            v.GetString("branch"),
		DataDir:           v.GetString("data_dir"),
		BaseURL:           v.GetString("base_url"),
		AutoRetry:         v.GetBool("auto_retry"),
		ControlPlaneAddr:  v.GetString("control_plane_addr"),
		ControlPlaneToken: v.GetString("control_plane_token"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
