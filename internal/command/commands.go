package command

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"scout/internal/console"
	"scout/internal/filter"
	"scout/internal/geo"
	"scout/internal/history"
	"scout/internal/logging"
	"scout/internal/regioncache"
)

func (d *Dispatcher) newRoot(exit *bool) *cobra.Command {
	root := &cobra.Command{
		Use:   "scout",
		Short: "Interactive server browser companion",
	}
	root.SetOut(d.out)
	root.SetErr(d.out)
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		d.newFilterCommand(),
		d.newReconnectCommand(),
		d.newLaunchCommand(),
		d.newUpdateCacheCommand(),
		d.newDisplayLogsCommand(),
		d.newGameDirCommand(),
		d.newLocalEnvCommand(),
		d.newQuitCommand(exit),
	)
	return root
}

func (d *Dispatcher) newFilterCommand() *cobra.Command {
	var (
		limit       int
		includes    []string
		excludes    []string
		playerMin   int
		teamSizeMax int
		region      string
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Build a new favorites list from the server directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				limit = d.defaultLimit
			}
			criteria := filter.Criteria{
				Limit:       limit,
				Includes:    includes,
				Excludes:    excludes,
				PlayerMin:   playerMin,
				TeamSizeMax: teamSizeMax,
			}
			if region != "" {
				parsed, err := geo.ParseRegion(region)
				if err != nil {
					return err
				}
				criteria.Region = parsed
			}

			d.spawn(cmd.Context(), "filter", func(ctx context.Context) {
				updated, err := d.builder.Build(ctx, criteria)
				if err != nil {
					d.logger.Error("favorites build failed", logging.Error(err))
					fmt.Fprintf(d.out, "favorites build failed: %v\n", err)
				}
				if updated {
					d.cmdCtx.MarkCacheDirty()
				}
			})
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum favorites entries")
	cmd.Flags().StringSliceVar(&includes, "includes", nil, "keep servers whose name contains any term")
	cmd.Flags().StringSliceVar(&excludes, "excludes", nil, "drop servers whose name contains any term")
	cmd.Flags().IntVar(&playerMin, "player-min", 0, "minimum current players")
	cmd.Flags().IntVar(&teamSizeMax, "team-size-max", 0, "maximum players per team")
	cmd.Flags().StringVar(&region, "region", "", "restrict to region (NA, EU, APAC)")

	return cmd
}

func (d *Dispatcher) newReconnectCommand() *cobra.Command {
	var showHistory bool

	cmd := &cobra.Command{
		Use:   "reconnect",
		Short: "Rejoin the most recent server, or show the join history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			connections := d.cmdCtx.Connections()
			if len(connections) == 0 {
				fmt.Fprintln(d.out, "No connection history recorded yet")
				return nil
			}

			if showHistory {
				d.renderHistory(connections)
				return nil
			}

			handle, err := d.cmdCtx.Handle()
			if err != nil {
				return err
			}
			last := connections[len(connections)-1]
			if err := handle.Connect(last.Address); err != nil {
				return fmt.Errorf("reconnect to %s: %w", last.Address, err)
			}
			fmt.Fprintf(d.out, "Connecting to %s (%s)\n", last.Hostname, last.Address)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showHistory, "history", false, "display past connections instead of joining")
	return cmd
}

// renderHistory prints the join history newest first.
func (d *Dispatcher) renderHistory(connections []history.Connection) {
	tw := table.NewWriter()
	tw.SetOutputMirror(d.out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Server", "Address", "Joined"})

	for i := len(connections) - 1; i >= 0; i-- {
		conn := connections[i]
		joined := ""
		if !conn.ConnectedAt.IsZero() {
			joined = humanize.Time(conn.ConnectedAt)
		}
		name := conn.Hostname
		if name == "" {
			name = "(unknown)"
		}
		tw.AppendRow(table.Row{len(connections) - i, name, conn.Address, joined})
	}
	tw.Render()
}

func (d *Dispatcher) newLaunchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "launch",
		Short: "Start the game and attach to its console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if d.cmdCtx.GameRunning() {
				fmt.Fprintln(d.out, "Game is already running")
				return nil
			}

			handle, err := console.Launch(d.cmdCtx.GameDir(), d.consoleBinary, d.logger)
			if err != nil {
				return fmt.Errorf("launch game: %w", err)
			}
			console.AttachListener(handle, d.cmdCtx, d.logger)
			d.cmdCtx.SetHandle(handle)
			fmt.Fprintln(d.out, "Game console attached")
			return nil
		},
	}
}

func (d *Dispatcher) newUpdateCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update-cache",
		Short: "Rebuild the region cache from the server directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d.spawn(cmd.Context(), "update-cache", func(ctx context.Context) {
				if err := d.rebuildCache(ctx); err != nil {
					d.logger.Error("cache rebuild failed", logging.Error(err))
					fmt.Fprintf(d.out, "cache rebuild failed: %v\n", err)
				}
			})
			return nil
		},
	}
}

// rebuildCache resolves every host in the directory plus every address from
// the join history, then replaces and persists the cache in one step.
func (d *Dispatcher) rebuildCache(ctx context.Context) error {
	hosts, err := d.master.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch server directory: %w", err)
	}

	entries := regioncache.Build(ctx, d.geo, hosts, d.logger)
	d.seedFromHistory(ctx, entries)

	cache := d.cmdCtx.Cache()
	cache.Replace(entries)
	if err := cache.Save(); err != nil {
		// Memory stays authoritative; the scheduler retries the write.
		d.cmdCtx.MarkCacheDirty()
		return fmt.Errorf("persist cache: %w", err)
	}

	fmt.Fprintf(d.out, "Region cache rebuilt with %s hosts\n",
		humanize.Comma(int64(len(entries))))
	return nil
}

// seedFromHistory keeps previously joined servers warm even when they have
// dropped out of the directory.
func (d *Dispatcher) seedFromHistory(ctx context.Context, entries map[string]regioncache.Entry) {
	for _, address := range d.cmdCtx.HistoryAddresses(ctx) {
		host, _, err := net.SplitHostPort(address)
		if err != nil || host == "" {
			continue
		}
		if _, done := entries[host]; done {
			continue
		}

		addr, err := netip.ParseAddr(host)
		if err != nil {
			continue
		}
		continent, err := d.geo.Lookup(ctx, addr)
		if err != nil {
			d.logger.Warn("history seed lookup failed",
				logging.String("host", host),
				logging.Error(err))
			continue
		}
		entries[host] = regioncache.Entry{Region: continent, IP: host, Created: time.Now().UTC()}
	}
}

func (d *Dispatcher) newDisplayLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "display-logs",
		Short: "Print the captured game console output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines := d.cmdCtx.ConsoleLog()
			if len(lines) == 0 {
				fmt.Fprintln(d.out, "No console output captured yet")
				return nil
			}
			for _, line := range lines {
				fmt.Fprintln(d.out, line)
			}
			return nil
		},
	}
}

func (d *Dispatcher) newGameDirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "game-dir",
		Short: "Open the game directory in the file browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return openDir(d.cmdCtx.GameDir())
		},
	}
}

func (d *Dispatcher) newLocalEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "local-env",
		Short: "Open the local data directory in the file browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return openDir(d.cmdCtx.LocalDir())
		},
	}
}

func (d *Dispatcher) newQuitCommand(exit *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "quit",
		Aliases: []string{"exit"},
		Short:   "Leave the interactive session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			*exit = true
			return nil
		},
	}
}
