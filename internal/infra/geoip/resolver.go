// Package geoip maps client addresses to ISO country codes so the i18n
// middleware can pick a default locale.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

var ErrUnavailable = errors.New("geoip resolver unavailable")

type CountryResolver interface {
	CountryCode(ip string) (string, error)
}

// Resolver reads a MaxMind GeoLite2/GeoIP2 country database.
type Resolver struct {
	reader *geoip2.Reader
}

// Open returns a nil resolver for an empty path.
func Open(path string) (*Resolver, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", path, err)
	}
	return &Resolver{reader: reader}, nil
}

// CountryCode accepts a bare address or host:port. Addresses that cannot be
// routed publicly resolve to "".
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	addr, err := parseAddr(ip)
	if err != nil {
		return "", err
	}
	if !public(addr) {
		return "", nil
	}
	record, err := r.reader.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return "", fmt.Errorf("geoip: lookup %s: %w", addr, err)
	}
	return record.Country.IsoCode, nil
}

func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}

func parseAddr(raw string) (netip.Addr, error) {
	raw = strings.TrimSpace(raw)
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().Unmap(), nil
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("geoip: invalid ip %q", raw)
	}
	return addr.Unmap(), nil
}

func public(a netip.Addr) bool {
	return a.IsValid() && !a.IsLoopback() && !a.IsPrivate() && !a.IsLinkLocalUnicast() && !a.IsUnspecified()
}

// Lookup adapts a resolver to the i18n middleware and memoizes up to
// maxEntries answers. A nil resolver yields a nil func so callers skip
// GeoIP entirely.
func Lookup(res CountryResolver) func(ip string) (string, error) {
	if res == nil {
		return nil
	}
	if r, ok := res.(*Resolver); ok && r == nil {
		return nil
	}
	m := &memo{res: res, seen: make(map[string]string)}
	return m.lookup
}

const maxEntries = 4096

type memo struct {
	res  CountryResolver
	mu   sync.Mutex
	seen map[string]string
}

func (m *memo) lookup(ip string) (string, error) {
	m.mu.Lock()
	code, ok := m.seen[ip]
	m.mu.Unlock()
	if ok {
		return code, nil
	}
	code, err := m.res.CountryCode(ip)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	if len(m.seen) >= maxEntries {
		clear(m.seen)
	}
	m.seen[ip] = code
	m.mu.Unlock()
	return code, nil
}
