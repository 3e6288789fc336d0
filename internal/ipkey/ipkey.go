// Package ipkey canonicalizes IP address strings into domain.IPKey values and
// classifies addresses that must never be sent to a lookup service.
package ipkey

import (
	"net/netip"
	"strconv"
	"strings"

	"ipanalyzer/internal/domain"
)

var refangReplacer = strings.NewReplacer(
	"[.]", ".",
	"(.)", ".",
	"{.}", ".",
	"[dot]", ".",
	"(dot)", ".",
	"[DOT]", ".",
	"(DOT)", ".",
	"[:]", ":",
)

// Canonicalize validates text as an IPv4 or IPv6 address and returns its
// canonical form: leading zeros removed, lowercase compressed IPv6, IPv4-mapped
// IPv6 unmapped and zone identifiers dropped. Common defanging such as
// "8.8.8[.]8" and bracketed or port-suffixed forms are accepted.
//
// Canonicalize(string(k)) == k for every key it returns.
func Canonicalize(text string) (domain.IPKey, error) {
	s := clean(text)
	if s == "" {
		return "", &domain.InvalidIPError{Text: text}
	}

	addr, ok := parse(s)
	if !ok {
		return "", &domain.InvalidIPError{Text: text}
	}

	addr = addr.Unmap().WithZone("")
	return domain.IPKey(addr.String()), nil
}

// MustParse returns the netip.Addr behind a key produced by Canonicalize.
func MustParse(k domain.IPKey) netip.Addr {
	return netip.MustParseAddr(string(k))
}

func clean(text string) string {
	s := strings.TrimSpace(text)
	s = strings.Trim(s, "\"'`<>")
	s = refangReplacer.Replace(s)

	// [v6]:port or [v4]
	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "]"); end > 0 {
			s = s[1:end]
		}
	}
	s = strings.TrimRight(s, ".,;")

	if !strings.Contains(s, ":") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strings.TrimSpace(s)
}

func parse(s string) (netip.Addr, bool) {
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr, true
	}
	if addr, ok := parseZeroPaddedV4(s); ok {
		return addr, true
	}
	// a.b.c.d:port
	if strings.Count(s, ":") == 1 {
		host := s[:strings.Index(s, ":")]
		if addr, err := netip.ParseAddr(host); err == nil && addr.Is4() {
			return addr, true
		}
		if addr, ok := parseZeroPaddedV4(host); ok {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// parseZeroPaddedV4 accepts dotted quads with leading zeros, reading every
// octet as decimal.
func parseZeroPaddedV4(s string) (netip.Addr, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return netip.Addr{}, false
	}
	var octets [4]byte
	for i, p := range parts {
		if p == "" || len(p) > 3 {
			return netip.Addr{}, false
		}
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return netip.Addr{}, false
		}
		octets[i] = byte(n)
	}
	return netip.AddrFrom4(octets), true
}
