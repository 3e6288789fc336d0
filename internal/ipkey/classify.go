package ipkey

import (
	"net/netip"

	"ipanalyzer/internal/domain"
)

type reservedRange struct {
	prefix netip.Prefix
	class  string
}

// reservedRanges lists special-purpose blocks that netip does not classify.
var reservedRanges = []reservedRange{
	{netip.MustParsePrefix("0.0.0.0/8"), "this network"},
	{netip.MustParsePrefix("100.64.0.0/10"), "shared address space"},
	{netip.MustParsePrefix("192.0.0.0/24"), "protocol assignments"},
	{netip.MustParsePrefix("192.0.2.0/24"), "documentation"},
	{netip.MustParsePrefix("198.51.100.0/24"), "documentation"},
	{netip.MustParsePrefix("203.0.113.0/24"), "documentation"},
	{netip.MustParsePrefix("192.88.99.0/24"), "6to4 relay anycast"},
	{netip.MustParsePrefix("198.18.0.0/15"), "benchmarking"},
	{netip.MustParsePrefix("255.255.255.255/32"), "broadcast"},
	{netip.MustParsePrefix("240.0.0.0/4"), "reserved"},
	{netip.MustParsePrefix("2001:db8::/32"), "documentation"},
	{netip.MustParsePrefix("3fff::/20"), "documentation"},
	{netip.MustParsePrefix("100::/64"), "discard only"},
	{netip.MustParsePrefix("2001:2::/48"), "benchmarking"},
	{netip.MustParsePrefix("2001:10::/28"), "orchid"},
	{netip.MustParsePrefix("2002::/16"), "6to4"},
}

// Classify reports whether addr is publicly routable. For non-public
// addresses the returned class names the range it belongs to.
func Classify(k domain.IPKey) (public bool, class string) {
	addr, err := netip.ParseAddr(string(k))
	if err != nil {
		return false, "invalid"
	}
	addr = addr.Unmap()

	switch {
	case addr.IsUnspecified():
		return false, "unspecified"
	case addr.IsLoopback():
		return false, "loopback"
	case addr.IsPrivate():
		return false, "private"
	case addr.IsLinkLocalUnicast():
		return false, "link-local"
	case addr.IsLinkLocalMulticast(), addr.IsInterfaceLocalMulticast(), addr.IsMulticast():
		return false, "multicast"
	}

	for _, r := range reservedRanges {
		if r.prefix.Contains(addr) {
			return false, r.class
		}
	}
	return true, ""
}

// IsPublic reports whether k may be sent to a lookup service.
func IsPublic(k domain.IPKey) bool {
	public, _ := Classify(k)
	return public
}
