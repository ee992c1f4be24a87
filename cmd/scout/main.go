package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"

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

func main() {
	var (
		configPath   string
		singleThread bool
	)

	root := &cobra.Command{
		Use:           "scout",
		Short:         "Server browser companion for the H2M mod",
		Version:       release.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, singleThread)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to config file")
	root.Flags().BoolVar(&singleThread, "single-thread", false, "run everything on a single OS thread")
	root.CompletionOptions.DisableDefaultCmd = true

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, singleThread bool) error {
	cfg, resolvedPath, found, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if singleThread || cfg.Runtime.SingleThreaded {
		cfg.Runtime.SingleThreaded = true
		runtime.GOMAXPROCS(1)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() {
		// Crashes land in the log with their origin before the process dies.
		if r := recover(); r != nil {
			logger.Error("panic",
				logging.Any("value", r),
				logging.String("stack", string(debug.Stack())))
			panic(r)
		}
	}()

	if !found {
		if err := config.CreateSample(resolvedPath); err != nil {
			logger.Warn("could not write sample config", logging.Error(err))
		} else {
			fmt.Fprintf(os.Stdout, "Created config file at %s\n", resolvedPath)
		}
	}

	app, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	scheduler := command.NewScheduler(app.cmdCtx, time.Duration(cfg.Workflow.CacheFlushInterval)*time.Second, logger)
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Run(schedulerCtx)
		close(schedulerDone)
	}()

	dispatcher := command.NewDispatcher(app.cmdCtx, command.DispatcherOptions{
		Builder:       app.builder,
		Master:        app.master,
		Geo:           app.geo,
		ConsoleBinary: cfg.Console.Binary,
		DefaultLimit:  cfg.Favorites.Limit,
		SingleThread:  cfg.Runtime.SingleThreaded,
		Logger:        logger,
		Out:           os.Stdout,
	})

	runLoop(ctx, dispatcher)

	// In-flight tasks are abandoned; the scheduler gets a final flush.
	stopScheduler()
	<-schedulerDone
	return nil
}

// app bundles everything bootstrap wires together.
type app struct {
	master  *master.Client
	geo     *geo.Client
	builder *favorites.Builder
	cmdCtx  *command.Context
	store   *history.Store
	cache   *regioncache.Cache
	unlock  func()
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.unlock != nil {
		a.unlock()
	}
}
