package rate

import (
	"net/netip"
	"strconv"
	"strings"
)

const (
	// UnknownOrigin replaces client addresses that do not parse.
	UnknownOrigin = "unknown"

	ipv6SubnetBits = 56
)

// NormalizeIP maps raw (an address, optionally with a port) to the origin used
// in limiter keys. IPv4 and IPv4-mapped IPv6 addresses are kept whole; other
// IPv6 addresses are masked to their /56 network.
func NormalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UnknownOrigin
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		ap, perr := netip.ParseAddrPort(raw)
		if perr != nil {
			return UnknownOrigin
		}
		addr = ap.Addr()
	}
	addr = addr.WithZone("").Unmap()

	if addr.Is4() {
		return addr.String()
	}
	prefix, err := addr.Prefix(ipv6SubnetBits)
	if err != nil {
		return UnknownOrigin
	}
	return prefix.Addr().String() + "/" + strconv.Itoa(ipv6SubnetBits)
}

// NormalizeIdentity lower-cases and trims a claimed login identity.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
