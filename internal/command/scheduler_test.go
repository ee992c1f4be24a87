package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scout/internal/regioncache"
)

func newDiskContext(t *testing.T) (*Context, string) {
	t.Helper()
	cachePath := filepath.Join(t.TempDir(), "region_cache.json")
	cache := regioncache.New(cachePath, "1.0.0", nil)
	cmdCtx, err := NewContext(cache, nil, t.TempDir(), t.TempDir(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return cmdCtx, cachePath
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("file %s never appeared", path)
}

func TestSchedulerFlushesWhenDirty(t *testing.T) {
	cmdCtx, cachePath := newDiskContext(t)
	cmdCtx.Cache().Update(map[string]regioncache.Entry{
		"1.2.3.4": {Region: "NA", IP: "1.2.3.4"},
	})
	cmdCtx.MarkCacheDirty()

	scheduler := NewScheduler(cmdCtx, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	waitForFile(t, cachePath)
	cancel()
	<-done

	if cmdCtx.CacheDirty() {
		t.Error("dirty flag should be consumed after flush")
	}
}

func TestSchedulerFinalFlushOnShutdown(t *testing.T) {
	cmdCtx, cachePath := newDiskContext(t)
	scheduler := NewScheduler(cmdCtx, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	// Dirty arrives after the tick would have fired; only shutdown sees it.
	cmdCtx.MarkCacheDirty()
	cancel()
	<-done

	if _, err := os.Stat(cachePath); err != nil {
		t.Errorf("final flush did not write the cache: %v", err)
	}
}

func TestSchedulerSkipsCleanCycles(t *testing.T) {
	cmdCtx, cachePath := newDiskContext(t)
	scheduler := NewScheduler(cmdCtx, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if _, err := os.Stat(cachePath); err == nil {
		t.Error("clean cache should never be written")
	}
}
