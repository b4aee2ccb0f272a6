package vpn

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"

	"wg-console/internal/wgconf"
)

// ErrAllocationExhausted indicates no free host address remains in the
// interface's pool.
var ErrAllocationExhausted = errors.New("address allocation exhausted")

// nextAvailableIP picks the first unused host address for a new peer. The
// used set is the interface's own address plus the host of every IPv4 entry
// in every peer's allowed-ips; candidates walk the last octet of the
// interface address from .2 to .254. The declared prefix length is ignored,
// so allocation always behaves as if the pool were a /24. That is a known
// limitation, not something callers should paper over.
func nextAvailableIP(doc *wgconf.Document) (string, error) {
	base, err := interfaceIPv4(doc.Interface.Get(wgconf.KeyAddress))
	if err != nil {
		return "", err
	}

	var used netipx.IPSetBuilder
	used.Add(base)
	for _, peer := range doc.Peers {
		for _, entry := range strings.Split(peer.Get(wgconf.KeyAllowedIPs), ",") {
			if addr, ok := entryIPv4(strings.TrimSpace(entry)); ok {
				used.Add(addr)
			}
		}
	}
	set, err := used.IPSet()
	if err != nil {
		return "", err
	}

	octets := base.As4()
	for host := 2; host <= 254; host++ {
		candidate := netip.AddrFrom4([4]byte{octets[0], octets[1], octets[2], byte(host)})
		if !set.Contains(candidate) {
			return candidate.String() + "/32", nil
		}
	}
	return "", fmt.Errorf("%w: no free host in %d.%d.%d.0/24", ErrAllocationExhausted, octets[0], octets[1], octets[2])
}

// interfaceIPv4 parses the interface's address field into the base host.
// Only the first comma-separated entry counts, and it must be IPv4 CIDR.
func interfaceIPv4(address string) (netip.Addr, error) {
	first := strings.TrimSpace(strings.Split(address, ",")[0])
	if first == "" {
		return netip.Addr{}, fmt.Errorf("%w: interface has no address", ErrValidation)
	}
	prefix, err := netip.ParsePrefix(first)
	if err != nil || !prefix.Addr().Is4() {
		return netip.Addr{}, fmt.Errorf("%w: interface address %q is not IPv4 CIDR", ErrValidation, first)
	}
	return prefix.Addr(), nil
}

// entryIPv4 reads one allowed-ips entry, with or without a prefix length.
// Anything that is not IPv4 is ignored by the allocator.
func entryIPv4(entry string) (netip.Addr, bool) {
	if entry == "" {
		return netip.Addr{}, false
	}
	if prefix, err := netip.ParsePrefix(entry); err == nil {
		return prefix.Addr(), prefix.Addr().Is4()
	}
	if addr, err := netip.ParseAddr(entry); err == nil {
		return addr, addr.Is4()
	}
	return netip.Addr{}, false
}
