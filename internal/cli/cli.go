// Package cli implements the tablescope command-line interface.
//
// This package provides commands for fetching table lineage from a data
// catalog, exploring it interactively, rendering it as visualizations, and
// serving exploration sessions over HTTP. The CLI is built using cobra and
// supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - lineage: Fetch lineage for a table and save the working graph
//   - explore: Interactive terminal explorer with expand/collapse
//   - render: Generate SVG, DOT, or JSON artifacts
//   - serve: Expose exploration sessions over an HTTP API
//   - cache: Manage the response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tablescope/tablescope/pkg/buildinfo"
	"github.com/tablescope/tablescope/pkg/cache"
	"github.com/tablescope/tablescope/pkg/catalog"
	"github.com/tablescope/tablescope/pkg/lineage/layout"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "tablescope"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "tablescope",
		Short:        "Tablescope explores table lineage from a data catalog",
		Long:         `Tablescope is a CLI tool for exploring table-level lineage from a data catalog, expanding and collapsing the dependency graph around a center table and rendering the result.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath())
			if err != nil {
				return err
			}
			c.Config = cfg
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.lineageCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Component Factories
// =============================================================================

// newCacheBackend creates the byte cache per config and flags. Failures fall
// back to a null cache; caching is never a reason for a command to fail.
func (c *CLI) newCacheBackend(ctx context.Context, noCache bool) cache.Cache {
	if noCache || c.Config.Cache.Backend == "off" {
		return cache.NewNullCache()
	}
	if c.Config.Cache.Backend == "redis" {
		backend, err := cache.NewRedisCache(ctx, c.Config.Cache.RedisURL)
		if err != nil {
			c.Logger.Warn("redis cache unavailable, falling back to file cache", "err", err)
		} else {
			return backend
		}
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	backend, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("file cache unavailable, caching disabled", "err", err)
		return cache.NewNullCache()
	}
	return backend
}

// newGateway creates the catalog client from config.
func (c *CLI) newGateway(backend cache.Cache) (*catalog.Client, error) {
	return catalog.New(catalog.Config{
		BaseURL:  c.Config.Catalog.URL,
		Token:    c.Config.Catalog.Token,
		Cache:    backend,
		CacheTTL: c.Config.Cache.TTLDuration(),
		Logger:   c.Logger,
	})
}

// newLayoutEngine creates the layout engine with CLI logging.
func (c *CLI) newLayoutEngine() *layout.Engine {
	return layout.New(layout.Options{Logger: c.Logger})
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/tablescope/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configPath returns the config file path using XDG standard
// (~/.config/tablescope/config.toml). TABLESCOPE_CONFIG overrides it.
func configPath() string {
	if p := os.Getenv("TABLESCOPE_CONFIG"); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName, "config.toml")
}
