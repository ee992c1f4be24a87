package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"scout/internal/favorites"
	"scout/internal/geo"
	"scout/internal/history"
	"scout/internal/master"
	"scout/internal/regioncache"
)

func newTestDispatcher(t *testing.T, hosts []master.Host) (*Dispatcher, *Context, string, *strings.Builder) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(hosts)
	}))
	t.Cleanup(srv.Close)

	masterClient, err := master.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	gameDir := t.TempDir()
	cache := regioncache.New("", "1.0.0", nil)
	cmdCtx, err := NewContext(cache, nil, gameDir, t.TempDir(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	var out strings.Builder
	builder := favorites.New(masterClient, nil, cache, gameDir, "H2M", nil, &out)
	dispatcher := NewDispatcher(cmdCtx, DispatcherOptions{
		Builder:      builder,
		Master:       masterClient,
		SingleThread: true,
		Out:          &out,
	})
	return dispatcher, cmdCtx, gameDir, &out
}

func TestDispatchQuit(t *testing.T) {
	dispatcher, _, _, _ := newTestDispatcher(t, nil)

	if dispatcher.Dispatch(context.Background(), "quit") != true {
		t.Error("quit should request exit")
	}
	if dispatcher.Dispatch(context.Background(), "exit") != true {
		t.Error("exit alias should request exit")
	}
}

func TestDispatchBlankLine(t *testing.T) {
	dispatcher, _, _, _ := newTestDispatcher(t, nil)

	if dispatcher.Dispatch(context.Background(), "   ") {
		t.Error("blank line should not exit")
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	dispatcher, _, _, out := newTestDispatcher(t, nil)

	if dispatcher.Dispatch(context.Background(), "frobnicate") {
		t.Error("unknown command should not exit")
	}
	if out.Len() == 0 {
		t.Error("expected a parse error message")
	}
}

func TestDispatchFilterWritesFavorites(t *testing.T) {
	hosts := []master.Host{{
		IPAddress: "81.2.69.142",
		Servers: []master.ServerInfo{
			{ID: "1", Game: "H2M", IP: "81.2.69.142", Port: 27016, Hostname: "one", ClientNum: 4, MaxClientNum: 18},
		},
	}}
	dispatcher, _, gameDir, _ := newTestDispatcher(t, hosts)

	if dispatcher.Dispatch(context.Background(), "filter --limit 10") {
		t.Fatal("filter should not exit")
	}
	dispatcher.Join()

	path := filepath.Join(gameDir, favorites.FavoritesDir, favorites.FavoritesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("favorites not written: %v", err)
	}
	var addrs []string
	if err := json.Unmarshal(data, &addrs); err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 1 || addrs[0] != "81.2.69.142:27016" {
		t.Errorf("unexpected favorites: %v", addrs)
	}
}

func TestDispatchFilterRejectsBadRegion(t *testing.T) {
	dispatcher, _, _, out := newTestDispatcher(t, nil)

	dispatcher.Dispatch(context.Background(), "filter --region atlantis")
	dispatcher.Join()

	if !strings.Contains(out.String(), "region") {
		t.Errorf("expected region parse error, got %q", out.String())
	}
}

func TestDispatchReconnectWithoutHistory(t *testing.T) {
	dispatcher, _, _, out := newTestDispatcher(t, nil)

	dispatcher.Dispatch(context.Background(), "reconnect")
	if !strings.Contains(out.String(), "No connection history") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestDispatchReconnectHistoryTable(t *testing.T) {
	dispatcher, cmdCtx, _, out := newTestDispatcher(t, nil)
	cmdCtx.RecordConnection("Best Lobby", "1.2.3.4:27016")

	dispatcher.Dispatch(context.Background(), "reconnect --history")
	if !strings.Contains(out.String(), "Best Lobby") || !strings.Contains(out.String(), "1.2.3.4:27016") {
		t.Errorf("history table missing entries: %q", out.String())
	}
}

func TestDispatchReconnectRequiresGame(t *testing.T) {
	dispatcher, cmdCtx, _, out := newTestDispatcher(t, nil)
	cmdCtx.RecordConnection("Best Lobby", "1.2.3.4:27016")

	dispatcher.Dispatch(context.Background(), "reconnect")
	if !strings.Contains(out.String(), "launch") {
		t.Errorf("expected not-running hint, got %q", out.String())
	}
}

func TestConcurrentFilterBuildsShareCache(t *testing.T) {
	var hosts []master.Host
	for i := 0; i < 6; i++ {
		ip := fmt.Sprintf("81.2.69.%d", 140+i)
		hosts = append(hosts, master.Host{
			IPAddress: ip,
			Servers: []master.ServerInfo{{
				ID: strconv.Itoa(i), Game: "H2M", IP: ip, Port: 27016,
				Hostname: fmt.Sprintf("server %d", i), ClientNum: i, MaxClientNum: 18,
			}},
		})
	}
	masterSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(hosts)
	}))
	t.Cleanup(masterSrv.Close)
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"continent": {"code": "NA"}}`))
	}))
	t.Cleanup(geoSrv.Close)

	masterClient, err := master.New(masterSrv.URL)
	if err != nil {
		t.Fatal(err)
	}
	geoClient, err := geo.New(geoSrv.URL, "")
	if err != nil {
		t.Fatal(err)
	}

	cache := regioncache.New("", "1.0.0", nil)
	cmdCtx, err := NewContext(cache, nil, t.TempDir(), t.TempDir(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	builder := favorites.New(masterClient, geoClient, cache, cmdCtx.GameDir(), "H2M", nil, io.Discard)
	dispatcher := NewDispatcher(cmdCtx, DispatcherOptions{
		Builder: builder,
		Master:  masterClient,
		Geo:     geoClient,
		Out:     io.Discard,
	})

	// Several builds race over the same cache and dirty flag.
	for i := 0; i < 4; i++ {
		dispatcher.Dispatch(context.Background(), "filter --limit 3 --region NA")
	}
	dispatcher.Join()

	if !cmdCtx.CacheDirty() {
		t.Error("dirty flag should be raised after new regions were discovered")
	}
	if cache.Len() != len(hosts) {
		t.Errorf("cache holds %d entries, want %d", cache.Len(), len(hosts))
	}
	for key, entry := range cache.Snapshot().Cache {
		if entry.Region != "NA" || entry.IP != key {
			t.Errorf("torn cache entry %q: %+v", key, entry)
		}
	}

	// A second wave hits only cached regions, so nothing new is discovered
	// and the consumed flag must stay down.
	if !cmdCtx.TestAndClearDirty() {
		t.Fatal("dirty flag vanished before it was consumed")
	}
	for i := 0; i < 3; i++ {
		dispatcher.Dispatch(context.Background(), "filter --limit 3 --region NA")
	}
	dispatcher.Join()
	if cmdCtx.CacheDirty() {
		t.Error("builds without new discoveries must not raise the dirty flag")
	}
}

func TestUpdateCacheSeedsFromStoredHistory(t *testing.T) {
	hosts := []master.Host{{
		IPAddress: "81.2.69.142",
		Servers: []master.ServerInfo{
			{ID: "1", Game: "H2M", IP: "81.2.69.142", Port: 27016, Hostname: "one", ClientNum: 4, MaxClientNum: 18},
		},
	}}
	masterSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(hosts)
	}))
	t.Cleanup(masterSrv.Close)
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"continent": {"code": "EU"}}`))
	}))
	t.Cleanup(geoSrv.Close)

	masterClient, err := master.New(masterSrv.URL)
	if err != nil {
		t.Fatal(err)
	}
	geoClient, err := geo.New(geoSrv.URL, "")
	if err != nil {
		t.Fatal(err)
	}

	store, err := history.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	// A server joined twice that has since dropped out of the directory.
	if _, err := store.Record(context.Background(), "retired", "203.0.113.9:27016"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Record(context.Background(), "retired", "203.0.113.9:27016"); err != nil {
		t.Fatal(err)
	}

	cache := regioncache.New(filepath.Join(t.TempDir(), "cache.json"), "1.0.0", nil)
	cmdCtx, err := NewContext(cache, store, t.TempDir(), t.TempDir(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	var out strings.Builder
	builder := favorites.New(masterClient, geoClient, cache, t.TempDir(), "H2M", nil, &out)
	dispatcher := NewDispatcher(cmdCtx, DispatcherOptions{
		Builder:      builder,
		Master:       masterClient,
		Geo:          geoClient,
		SingleThread: true,
		Out:          &out,
	})

	dispatcher.Dispatch(context.Background(), "update-cache")
	dispatcher.Join()

	if region, ok := cache.Region("203.0.113.9"); !ok || region != "EU" {
		t.Errorf("historical server not seeded: region %q, ok %v", region, ok)
	}
	if _, ok := cache.Region("81.2.69.142"); !ok {
		t.Error("directory server missing from rebuilt cache")
	}
	if !strings.Contains(out.String(), "Region cache rebuilt") {
		t.Errorf("rebuild confirmation missing: %q", out.String())
	}
}

func TestDispatchDisplayLogs(t *testing.T) {
	dispatcher, cmdCtx, _, out := newTestDispatcher(t, nil)
	cmdCtx.AppendConsole("loaded map mp_crash")

	dispatcher.Dispatch(context.Background(), "display-logs")
	if !strings.Contains(out.String(), "loaded map mp_crash") {
		t.Errorf("console log not shown: %q", out.String())
	}
}
