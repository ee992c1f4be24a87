package master

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const directoryPayload = `[
  {
    "ip_address": "203.0.113.9",
    "webfront_url": "http://203.0.113.9:1624",
    "servers": [
      {"id": "a1", "game": "H2M", "ip": "203.0.113.9", "port": 27016,
       "hostname": "^1Best ^7Server", "clientnum": 12, "maxclientnum": 18}
    ]
  },
  {
    "ip_address": "198.51.100.4",
    "webfront_url": "http://198.51.100.4:1624",
    "servers": []
  }
]`

func TestFetchDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instance" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(directoryPayload))
	}))
	defer srv.Close()

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	hosts, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(hosts))
	}
	if hosts[0].Servers[0].Hostname != "^1Best ^7Server" {
		t.Errorf("hostname mismatch: %q", hosts[0].Servers[0].Hostname)
	}
	if got := hosts[0].Servers[0].Addr(); got != "203.0.113.9:27016" {
		t.Errorf("Addr mismatch: %q", got)
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Fetch(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := New(srv.URL)
	_, err := client.Fetch(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport for 502, got %v", err)
	}
}

func TestFetchDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	client, _ := New(srv.URL)
	_, err := client.Fetch(context.Background())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestHostIdentity(t *testing.T) {
	withIP := Host{IPAddress: "203.0.113.9", WebfrontURL: "http://203.0.113.9:1624"}
	if withIP.Identity() != "203.0.113.9" {
		t.Errorf("identity should prefer reported address, got %q", withIP.Identity())
	}

	webOnly := Host{WebfrontURL: "http://example.test:1624"}
	if webOnly.Identity() != "http://example.test:1624" {
		t.Errorf("identity should fall back to web front, got %q", webOnly.Identity())
	}
}
