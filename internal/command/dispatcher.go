package command

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"scout/internal/favorites"
	"scout/internal/geo"
	"scout/internal/logging"
	"scout/internal/master"
)

// Dispatcher turns interactive input lines into command executions. Long
// running work (favorites builds, cache rebuilds) is spawned onto worker
// goroutines; Join waits for them so the prompt only returns once pending
// work is done. Everything else runs synchronously on the caller.
type Dispatcher struct {
	cmdCtx        *Context
	builder       *favorites.Builder
	master        *master.Client
	geo           *geo.Client
	consoleBinary string
	defaultLimit  int
	singleThread  bool
	logger        *slog.Logger
	out           io.Writer

	wg sync.WaitGroup
}

// DispatcherOptions carries the collaborators a dispatcher needs.
type DispatcherOptions struct {
	Builder       *favorites.Builder
	Master        *master.Client
	Geo           *geo.Client
	ConsoleBinary string
	DefaultLimit  int
	SingleThread  bool
	Logger        *slog.Logger
	Out           io.Writer
}

// NewDispatcher wires the interactive command surface.
func NewDispatcher(cmdCtx *Context, opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Dispatcher{
		cmdCtx:        cmdCtx,
		builder:       opts.Builder,
		master:        opts.Master,
		geo:           opts.Geo,
		consoleBinary: opts.ConsoleBinary,
		defaultLimit:  opts.DefaultLimit,
		singleThread:  opts.SingleThread,
		logger:        logging.NewComponentLogger(logger, "dispatcher"),
		out:           out,
	}
}

// Dispatch parses and executes one input line. It reports whether the loop
// should exit. A blank line is a no-op; a malformed line prints usage and
// leaves all state untouched.
func (d *Dispatcher) Dispatch(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}

	var exit bool
	root := d.newRoot(&exit)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		// Cobra already printed the parse error and usage.
		d.logger.Debug("command rejected", logging.Error(err))
	}
	return exit
}

// Join blocks until every spawned task has finished.
func (d *Dispatcher) Join() {
	d.wg.Wait()
}

// spawn runs fn on its own goroutine, or inline in single-threaded mode.
func (d *Dispatcher) spawn(ctx context.Context, name string, fn func(ctx context.Context)) {
	taskID := uuid.NewString()[:8]
	logger := d.logger.With(logging.String("task", name), logging.String("task_id", taskID))
	logger.Debug("task started")

	if d.singleThread {
		fn(ctx)
		logger.Debug("task finished")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(ctx)
		logger.Debug("task finished")
	}()
}
