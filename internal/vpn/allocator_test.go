package vpn

import (
	"errors"
	"fmt"
	"testing"

	"wg-console/internal/wgconf"
)

func allocDoc(address string, peerAllowedIPs ...string) *wgconf.Document {
	doc := wgconf.NewDocument()
	if address != "" {
		doc.Interface.Set(wgconf.KeyAddress, address)
	}
	for i, allowed := range peerAllowedIPs {
		peer := wgconf.NewFields()
		peer.Set(wgconf.KeyPublicKey, fmt.Sprintf("peer-%d", i))
		peer.Set(wgconf.KeyAllowedIPs, allowed)
		doc.Peers = append(doc.Peers, peer)
	}
	return doc
}

func TestNextAvailableIP(t *testing.T) {
	cases := []struct {
		name    string
		address string
		peers   []string
		want    string
	}{
		{"empty pool", "10.0.0.1/24", nil, "10.0.0.2/32"},
		{"skips used", "10.0.0.1/24", []string{"10.0.0.2/32", "10.0.0.3/32"}, "10.0.0.4/32"},
		{"gap wins", "10.0.0.1/24", []string{"10.0.0.2/32", "10.0.0.4/32"}, "10.0.0.3/32"},
		{"all entries count", "10.0.0.1/24", []string{"10.0.0.2/32, 10.0.0.3/32"}, "10.0.0.4/32"},
		{"ipv6 entries ignored", "10.0.0.1/24", []string{"fd00::2/128, 10.0.0.2/32"}, "10.0.0.3/32"},
		{"entry without prefix", "10.0.0.1/24", []string{"10.0.0.2"}, "10.0.0.3/32"},
		{"other subnet does not block", "10.0.0.1/24", []string{"192.168.5.9/32"}, "10.0.0.2/32"},
		{"different base", "192.168.77.1/24", []string{"192.168.77.2/32"}, "192.168.77.3/32"},
		{"ipv6 second interface entry", "10.0.0.1/24, fd00::1/64", nil, "10.0.0.2/32"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := nextAvailableIP(allocDoc(tc.address, tc.peers...))
			if err != nil {
				t.Fatalf("nextAvailableIP: %v", err)
			}
			if got != tc.want {
				t.Fatalf("nextAvailableIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNextAvailableIPExhausted(t *testing.T) {
	peers := make([]string, 0, 253)
	for host := 2; host <= 254; host++ {
		peers = append(peers, fmt.Sprintf("10.0.0.%d/32", host))
	}
	_, err := nextAvailableIP(allocDoc("10.0.0.1/24", peers...))
	if !errors.Is(err, ErrAllocationExhausted) {
		t.Fatalf("err = %v, want ErrAllocationExhausted", err)
	}
}

func TestNextAvailableIPBadAddress(t *testing.T) {
	cases := []struct {
		name    string
		address string
	}{
		{"missing", ""},
		{"garbage", "not-an-address"},
		{"no prefix", "10.0.0.1"},
		{"ipv6 only", "fd00::1/64"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := nextAvailableIP(allocDoc(tc.address))
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}
