package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ErrInvalidAddress marks addresses that can never be looked up: empty
// strings, the unspecified "any" address, and strings that neither parse nor
// resolve.
var ErrInvalidAddress = errors.New("invalid address")

// ResolveAddress turns a literal IPv4/IPv6 address or a hostname into a
// concrete address. Hostnames fall back to DNS.
func ResolveAddress(ctx context.Context, input string) (netip.Addr, error) {
	trimmed := strings.Trim(input, "/:")
	if trimmed == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	if addr, err := netip.ParseAddr(trimmed); err == nil {
		if addr.IsUnspecified() {
			return netip.Addr{}, fmt.Errorf("%w: %s is unspecified", ErrInvalidAddress, addr)
		}
		return addr, nil
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", trimmed)
	if err != nil || len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: hostname %q could not be resolved", ErrInvalidAddress, trimmed)
	}
	return addrs[0], nil
}

const schemeSeparator = "//"

// HostAddr recovers a hoster's public address. The reported address is tried
// first; when it does not resolve, the address is parsed out of the web-front
// URL: everything after the scheme separator up to the last port separator,
// or end of string. Bracket-free IPv6 literals are tolerated, so the last
// colon is assumed to start a port and the full remainder is retried when
// that assumption fails.
func HostAddr(ctx context.Context, reported, webfrontURL string) (netip.Addr, error) {
	addr, err := ResolveAddress(ctx, reported)
	if err == nil {
		return addr, nil
	}

	i := strings.Index(webfrontURL, schemeSeparator)
	if i < 0 {
		return netip.Addr{}, err
	}
	rest := strings.TrimRight(webfrontURL[i+len(schemeSeparator):], "/")
	if rest == "" {
		return netip.Addr{}, fmt.Errorf("%w: web front %q carries no address", ErrInvalidAddress, webfrontURL)
	}

	if j := strings.LastIndex(rest, ":"); j > 0 {
		if addr, err := ResolveAddress(ctx, rest[:j]); err == nil {
			return addr, nil
		}
	}
	return ResolveAddress(ctx, rest)
}
