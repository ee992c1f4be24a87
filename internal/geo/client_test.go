package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
)

func TestLookupContinent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/203.0.113.9") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"continent": {"code": "EU"}}`)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	code, err := client.Lookup(context.Background(), netip.MustParseAddr("203.0.113.9"))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if code != "EU" {
		t.Errorf("continent mismatch: got %q", code)
	}
}

func TestLookupAppendsAPIKey(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.String()
		fmt.Fprint(w, `{"continent": {"code": "NA"}}`)
	}))
	defer srv.Close()

	client, _ := New(srv.URL, "/?token=secret")
	if _, err := client.Lookup(context.Background(), netip.MustParseAddr("198.51.100.4")); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !strings.Contains(seen, "token=secret") {
		t.Errorf("api key should be appended to the request, got %q", seen)
	}
}

func TestLookupErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message": "reserved range"}`)
	}))
	defer srv.Close()

	client, _ := New(srv.URL, "")
	_, err := client.Lookup(context.Background(), netip.MustParseAddr("192.0.2.1"))
	if err == nil || !strings.Contains(err.Error(), "reserved range") {
		t.Fatalf("expected the endpoint message in the error, got %v", err)
	}
}

func TestLookupBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, _ := New(srv.URL, "")
	if _, err := client.Lookup(context.Background(), netip.MustParseAddr("192.0.2.1")); err == nil {
		t.Fatal("Lookup should fail on non-200 status")
	}
}

func TestAllowedClassification(t *testing.T) {
	client, _ := New("http://unused.test", "")

	cases := []struct {
		region    Region
		continent string
		want      bool
	}{
		{RegionNA, "NA", true},
		{RegionNA, "EU", false},
		{RegionEU, "EU", true},
		{RegionEU, "SA", false},
		{RegionAPAC, "AS", true},
		{RegionAPAC, "OC", true},
		{RegionAPAC, "AF", true},
		{RegionAPAC, "NA", false},
		{RegionNone, "AN", true},
	}
	for _, tc := range cases {
		if got := client.Allowed(tc.region, tc.continent); got != tc.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tc.region, tc.continent, got, tc.want)
		}
	}
}

func TestParseRegion(t *testing.T) {
	for input, want := range map[string]Region{
		"na": RegionNA, "NA": RegionNA, "eu": RegionEU, "apac": RegionAPAC, "": RegionNone,
	} {
		got, err := ParseRegion(input)
		if err != nil {
			t.Errorf("ParseRegion(%q) failed: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseRegion(%q) = %v, want %v", input, got, want)
		}
	}

	if _, err := ParseRegion("atlantis"); err == nil {
		t.Error("ParseRegion should reject unknown regions")
	}
}
