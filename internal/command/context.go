package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"scout/internal/console"
	"scout/internal/history"
	"scout/internal/logging"
	"scout/internal/regioncache"
)

// ErrGameNotRunning is reported when a command needs the game console but
// the process is gone.
var ErrGameNotRunning = errors.New("game connection closed, restart the game with the 'launch' command")

// Context is the shared state every interactive command works against.
// Each field carries its own synchronization so unrelated commands never
// contend: the cache has its internal lock, the two flags are atomics, and
// the history buffers have independent mutexes.
type Context struct {
	cache    *regioncache.Cache
	store    *history.Store
	gameDir  string
	localDir string
	logger   *slog.Logger
	out      io.Writer

	dirty     atomic.Bool
	connected atomic.Bool

	consoleMu  sync.Mutex
	consoleLog []string

	connMu      sync.Mutex
	connections []history.Connection

	handleMu sync.Mutex
	handle   *console.Handle
}

// NewContext assembles the shared command state. The connection history is
// warmed from the store so reconnect works from the first prompt.
func NewContext(cache *regioncache.Cache, store *history.Store, gameDir, localDir string, logger *slog.Logger, out io.Writer) (*Context, error) {
	if cache == nil {
		return nil, errors.New("region cache is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if out == nil {
		out = io.Discard
	}

	c := &Context{
		cache:    cache,
		store:    store,
		gameDir:  gameDir,
		localDir: localDir,
		logger:   logging.NewComponentLogger(logger, "command"),
		out:      out,
	}

	if store != nil {
		recent, err := store.Recent(context.Background(), 20)
		if err != nil {
			c.logger.Warn("could not load connection history", logging.Error(err))
		} else {
			// Recent is newest first; the in-memory buffer appends.
			for i := len(recent) - 1; i >= 0; i-- {
				c.connections = append(c.connections, recent[i])
			}
		}
	}

	return c, nil
}

// Cache returns the shared region cache.
func (c *Context) Cache() *regioncache.Cache { return c.cache }

// GameDir returns the game installation directory.
func (c *Context) GameDir() string { return c.gameDir }

// LocalDir returns the per-user data directory.
func (c *Context) LocalDir() string { return c.localDir }

// MarkCacheDirty flags the cache for the next scheduled flush.
func (c *Context) MarkCacheDirty() { c.dirty.Store(true) }

// CacheDirty reports whether an unflushed mutation is pending.
func (c *Context) CacheDirty() bool { return c.dirty.Load() }

// TestAndClearDirty atomically consumes the dirty flag. Exactly one caller
// observes true per mutation, so a flush is never scheduled twice.
func (c *Context) TestAndClearDirty() bool {
	return c.dirty.CompareAndSwap(true, false)
}

// SetConnected records game console liveness. Part of console.Sink.
func (c *Context) SetConnected(connected bool) { c.connected.Store(connected) }

// Connected reports whether the game console stream is live.
func (c *Context) Connected() bool { return c.connected.Load() }

// AppendConsole stores one raw console line. Part of console.Sink.
func (c *Context) AppendConsole(line string) {
	c.consoleMu.Lock()
	c.consoleLog = append(c.consoleLog, line)
	c.consoleMu.Unlock()
}

// ConsoleLog returns a copy of the captured console output.
func (c *Context) ConsoleLog() []string {
	c.consoleMu.Lock()
	defer c.consoleMu.Unlock()
	return append([]string(nil), c.consoleLog...)
}

// RecordConnection stores one join in memory and in the history store.
// Part of console.Sink.
func (c *Context) RecordConnection(hostname, address string) {
	conn := history.Connection{Hostname: hostname, Address: address}
	if c.store != nil {
		stored, err := c.store.Record(context.Background(), hostname, address)
		if err != nil {
			c.logger.Warn("could not persist connection", logging.Error(err))
		} else {
			conn = *stored
		}
	}

	c.connMu.Lock()
	c.connections = append(c.connections, conn)
	c.connMu.Unlock()

	c.logger.Info("joined server",
		logging.String("hostname", hostname),
		logging.String("address", address))
}

// Connections returns a copy of the join history, oldest first.
func (c *Context) Connections() []history.Connection {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return append([]history.Connection(nil), c.connections...)
}

// HistoryAddresses returns every distinct address ever joined, most recent
// first. Without a store it falls back to the in-memory buffer, which only
// covers the current session.
func (c *Context) HistoryAddresses(ctx context.Context) []string {
	if c.store != nil {
		addrs, err := c.store.Addresses(ctx)
		if err != nil {
			c.logger.Warn("could not read history addresses", logging.Error(err))
			return nil
		}
		return addrs
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	seen := make(map[string]bool, len(c.connections))
	var addrs []string
	for i := len(c.connections) - 1; i >= 0; i-- {
		addr := c.connections[i].Address
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	return addrs
}

// SetHandle installs a freshly launched console handle.
func (c *Context) SetHandle(h *console.Handle) {
	c.handleMu.Lock()
	c.handle = h
	c.handleMu.Unlock()
}

// Handle returns the live console handle, or an error when the game is not
// running. A dead handle is dropped on the way out.
func (c *Context) Handle() (*console.Handle, error) {
	c.handleMu.Lock()
	defer c.handleMu.Unlock()

	if c.handle == nil || !c.Connected() {
		c.handle = nil
		return nil, ErrGameNotRunning
	}
	return c.handle, nil
}

// GameRunning reports whether a launched console is still attached.
func (c *Context) GameRunning() bool {
	_, err := c.Handle()
	return err == nil
}
