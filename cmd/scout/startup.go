package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"scout/internal/command"
	"scout/internal/config"
	"scout/internal/favorites"
	"scout/internal/geo"
	"scout/internal/history"
	"scout/internal/logging"
	"scout/internal/master"
	"scout/internal/regioncache"
	"scout/internal/release"
)

// gameExecutable must be present in the game directory; its absence means
// scout is pointed at the wrong place.
const gameExecutable = "h1_mp64_ship.exe"

const cacheFileName = "region_cache.json"

// bootstrap validates the environment and wires every collaborator the
// interactive session needs.
func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	if err := checkGameDir(cfg); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.LocalDir, "scout.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, errors.New("another scout instance is already running")
	}

	a := &app{unlock: func() { _ = lock.Unlock() }}

	a.store, err = history.Open(cfg.Paths.LocalDir)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open connection history: %w", err)
	}

	requestTimeout := time.Duration(cfg.Workflow.RequestTimeout) * time.Second
	a.master, err = master.New(cfg.Master.URL, master.WithTimeout(requestTimeout))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("server directory client: %w", err)
	}
	a.geo, err = geo.New(cfg.Location.URL, cfg.Location.APIKey, geo.WithTimeout(requestTimeout))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("geolocation client: %w", err)
	}

	a.cache = regioncache.New(filepath.Join(cfg.Paths.LocalDir, cacheFileName), release.Version, logger)
	loadCache(ctx, a, logger)

	a.cmdCtx, err = command.NewContext(a.cache, a.store, cfg.Paths.GameDir, cfg.Paths.LocalDir, logger, os.Stdout)
	if err != nil {
		a.close()
		return nil, err
	}

	a.builder = favorites.New(a.master, a.geo, a.cache, cfg.Paths.GameDir, cfg.Master.GameID, logger, os.Stdout)

	checkRelease(ctx, cfg, logger)
	return a, nil
}

// checkGameDir verifies scout sits next to the game. A missing players2
// folder is recoverable and gets created.
func checkGameDir(cfg *config.Config) error {
	entries, err := os.ReadDir(cfg.Paths.GameDir)
	if err != nil {
		return fmt.Errorf("read game directory: %w", err)
	}
	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		present[entry.Name()] = true
	}

	if !present[gameExecutable] {
		return fmt.Errorf("%s not found, point game_dir at your 'Call of Duty Modern Warfare Remastered' directory", gameExecutable)
	}
	if !present[cfg.Console.Binary] {
		return fmt.Errorf("%s not found in the game directory, install the mod first", cfg.Console.Binary)
	}
	if !present[favorites.FavoritesDir] {
		if err := os.Mkdir(filepath.Join(cfg.Paths.GameDir, favorites.FavoritesDir), 0o755); err != nil {
			return fmt.Errorf("create %s folder: %w", favorites.FavoritesDir, err)
		}
		fmt.Fprintf(os.Stdout, "%s folder was missing, a new one was created\n", favorites.FavoritesDir)
	}
	return nil
}

// loadCache restores the persisted region cache, rebuilding it from the
// directory when the file is missing or belongs to another release. A
// rebuild failure leaves the cache empty rather than blocking startup.
func loadCache(ctx context.Context, a *app, logger *slog.Logger) {
	ok, err := a.cache.Load()
	if err != nil {
		logger.Warn("could not read region cache", logging.Error(err))
	}
	if ok {
		return
	}

	fmt.Fprintln(os.Stdout, "Building region cache...")
	hosts, err := a.master.Fetch(ctx)
	if err != nil {
		logger.Warn("region cache rebuild skipped", logging.Error(err))
		fmt.Fprintln(os.Stdout, "Could not reach the server directory, starting with an empty cache")
		return
	}

	a.cache.Replace(regioncache.Build(ctx, a.geo, hosts, logger))
	if err := a.cache.Save(); err != nil {
		logger.Warn("could not persist rebuilt cache", logging.Error(err))
	}
}

// checkRelease prints an upgrade notice when a newer build is published.
// Failures are logged and never block startup.
func checkRelease(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	timeout := time.Duration(cfg.Release.TimeoutSeconds) * time.Second
	notice, err := release.NewChecker(cfg.Release.ManifestURL, timeout).Notice(ctx)
	if err != nil {
		logger.Warn("release check failed", logging.Error(err))
		return
	}
	if notice != "" {
		fmt.Fprintln(os.Stdout, notice)
	}
}
