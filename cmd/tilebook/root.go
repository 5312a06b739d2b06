package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tilebook/internal/config"
	"github.com/jackzampolin/tilebook/internal/home"
	"github.com/jackzampolin/tilebook/internal/output"
	"github.com/jackzampolin/tilebook/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "tilebook",
	Short: "Download tiled page scans and assemble them into a document",
	Long: `Tilebook downloads a document from a tiled image resolver.

Each page is served as a grid of tiles. Tilebook discovers the grid shape
and the number of pages, fetches every tile with a per-page retry budget,
stitches the tiles into page images and writes them out as a PDF or as a
directory of images.

Pages are emitted in order: front cover, pages 1..N, back cover.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.tilebook/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "tilebook home directory (default: ~/.tilebook)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides log_level)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)
}

// env is what every working command needs: configuration, the home
// directory, a logger and a printer for results.
type env struct {
	config  *config.Manager
	home    *home.Dir
	logger  *slog.Logger
	printer *output.Printer
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	created := !h.Exists()
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}

	level := mgr.Get().LogLevel
	if logLevel != "" {
		level = logLevel
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	if created {
		logger.Info("created home directory", "path", h.Path())
	}
	if f := mgr.ConfigFile(); f != "" {
		logger.Debug("loaded config", "file", f)
	}

	return &env{
		config:  mgr,
		home:    h,
		logger:  logger,
		printer: output.NewPrinter(cmd.OutOrStdout(), format),
	}, nil
}
