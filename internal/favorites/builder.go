package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"scout/internal/filter"
	"scout/internal/geo"
	"scout/internal/logging"
	"scout/internal/master"
	"scout/internal/regioncache"
)

const (
	// FavoritesDir and FavoritesFile locate the artifact inside the game
	// directory. The game reads the file on startup.
	FavoritesDir  = "players2"
	FavoritesFile = "favourites.json"

	localHost = "localhost"
)

// Builder runs one favorites query end to end: fetch the directory, filter,
// resolve regions, and write the bounded artifact.
type Builder struct {
	master  *master.Client
	geo     *geo.Client
	cache   *regioncache.Cache
	gameDir string
	gameID  string
	logger  *slog.Logger
	out     io.Writer
}

// New wires a builder. out receives user-facing progress lines; pass
// os.Stdout in the CLI.
func New(masterClient *master.Client, geoClient *geo.Client, cache *regioncache.Cache, gameDir, gameID string, logger *slog.Logger, out io.Writer) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Builder{
		master:  masterClient,
		geo:     geoClient,
		cache:   cache,
		gameDir: gameDir,
		gameID:  gameID,
		logger:  logging.NewComponentLogger(logger, "favorites"),
		out:     out,
	}
}

// Build executes the query and rewrites the favorites file. It reports
// whether the region cache picked up new entries, so the caller can mark it
// dirty for the next flush.
func (b *Builder) Build(ctx context.Context, criteria filter.Criteria) (bool, error) {
	criteria.Normalize()
	if criteria.GameID == "" {
		criteria.GameID = b.gameID
	}

	limit := criteria.EffectiveLimit()
	if limit >= filter.DefaultLimit {
		fmt.Fprintln(b.out, "NOTE: the in-game server browser breaks when more than 100 servers are added to favorites")
	}

	hosts, err := b.master.Fetch(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch server directory: %w", err)
	}

	hosts = filter.Apply(hosts, criteria)

	var (
		servers      []master.ServerInfo
		cacheUpdated bool
	)
	if criteria.Region != geo.RegionNone {
		servers, cacheUpdated = b.resolveRegions(ctx, hosts, criteria.Region)
	} else {
		servers = filter.Flatten(hosts)
	}

	fmt.Fprintf(b.out, "%d servers match the current query\n", len(servers))

	if len(servers) > limit {
		sort.SliceStable(servers, func(i, j int) bool {
			return servers[i].ClientNum < servers[j].ClientNum
		})
		// Keep the most populated servers.
		servers = servers[len(servers)-limit:]
	}

	if err := b.write(servers); err != nil {
		return cacheUpdated, err
	}

	fmt.Fprintf(b.out, "%s updated with %d entries\n", FavoritesFile, len(servers))
	return cacheUpdated, nil
}

// outcome is the result of one per-server region task.
type outcome struct {
	server  master.ServerInfo
	allowed bool
	key     string
	entry   regioncache.Entry
	cached  bool
	err     error
}

// resolveRegions classifies every server against the requested region,
// consulting the cache per host and falling back to a live lookup.
func (b *Builder) resolveRegions(ctx context.Context, hosts []master.Host, region geo.Region) ([]master.ServerInfo, bool) {
	total := 0
	for _, host := range hosts {
		total += len(host.Servers)
	}
	fmt.Fprintf(b.out, "Determining region of %d servers...\n", total)

	results := make(chan outcome, total)
	var wg sync.WaitGroup

	for _, host := range hosts {
		key := host.Identity()
		continent, known := b.cache.Region(key)
		for _, server := range host.Servers {
			wg.Add(1)
			go func(host master.Host, server master.ServerInfo) {
				defer wg.Done()
				results <- b.classify(ctx, host, server, key, continent, known, region)
			}(host, server)
		}
	}

	wg.Wait()
	close(results)

	var (
		allowed    []master.ServerInfo
		discovered = make(map[string]regioncache.Entry)
		failures   int
	)
	for result := range results {
		if result.err != nil {
			b.logger.Error("region lookup failed", logging.Error(result.err))
			failures++
			continue
		}
		if !result.cached && result.key != "" {
			discovered[result.key] = result.entry
		}
		if result.allowed {
			allowed = append(allowed, result.server)
		}
	}

	if failures > 0 {
		fmt.Fprintf(b.out, "Failed to resolve location for %d server hoster(s)\n", failures)
	}

	changed := b.cache.Update(discovered)
	return allowed, changed > 0
}

// classify resolves one server's continent and checks it against the region.
// Loopback-reported servers borrow the host's published address.
func (b *Builder) classify(ctx context.Context, host master.Host, server master.ServerInfo, key, continent string, known bool, region geo.Region) outcome {
	var addr netip.Addr
	if server.IP == localHost {
		resolved, err := geo.HostAddr(ctx, host.IPAddress, host.WebfrontURL)
		if err != nil {
			return outcome{err: fmt.Errorf("server %s: %w", server.ID, err)}
		}
		addr = resolved
		server.IP = resolved.String()
	}

	if !known {
		if !addr.IsValid() {
			resolved, err := geo.ResolveAddress(ctx, server.IP)
			if err != nil {
				return outcome{err: fmt.Errorf("server %s: %w", server.ID, err)}
			}
			addr = resolved
		}
		looked, err := b.geo.Lookup(ctx, addr)
		if err != nil {
			return outcome{err: fmt.Errorf("server %s: %w", server.ID, err)}
		}
		continent = looked
	}

	result := outcome{
		server:  server,
		allowed: b.geo.Allowed(region, continent),
		key:     key,
		cached:  known,
	}
	if !known {
		result.entry = regioncache.Entry{Region: continent, IP: addr.String(), Created: time.Now().UTC()}
	}
	return result
}

// write serializes the address list into the favorites file.
func (b *Builder) write(servers []master.ServerInfo) error {
	addrs := make([]string, 0, len(servers))
	for _, server := range servers {
		addrs = append(addrs, server.Addr())
	}

	data, err := json.Marshal(addrs)
	if err != nil {
		return fmt.Errorf("marshal favorites: %w", err)
	}

	dir := filepath.Join(b.gameDir, FavoritesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create favorites directory: %w", err)
	}

	path := filepath.Join(dir, FavoritesFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write favorites file: %w", err)
	}

	b.logger.Debug("wrote favorites file",
		logging.Int("entry_count", len(addrs)),
		logging.String("path", path))

	return nil
}
