package regioncache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scout/internal/geo"
	"scout/internal/logging"
	"scout/internal/master"
)

// Build resolves every distinct host once and returns the fresh entry set.
// Hosts that fail resolution or lookup are skipped with a warning; the
// returned map only holds successful results.
func Build(ctx context.Context, client *geo.Client, hosts []master.Host, logger *slog.Logger) map[string]Entry {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "regioncache")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		entries = make(map[string]Entry, len(hosts))
	)

	seen := make(map[string]struct{}, len(hosts))
	for _, host := range hosts {
		key := host.Identity()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		wg.Add(1)
		go func(host master.Host, key string) {
			defer wg.Done()

			addr, err := geo.HostAddr(ctx, host.IPAddress, host.WebfrontURL)
			if err != nil {
				logger.Warn("skipping unresolvable host",
					logging.String("host", key),
					logging.Error(err))
				return
			}
			continent, err := client.Lookup(ctx, addr)
			if err != nil {
				logger.Warn("region lookup failed",
					logging.String("host", key),
					logging.Error(err))
				return
			}

			mu.Lock()
			entries[key] = Entry{Region: continent, IP: addr.String(), Created: time.Now().UTC()}
			mu.Unlock()
		}(host, key)
	}

	wg.Wait()
	return entries
}
