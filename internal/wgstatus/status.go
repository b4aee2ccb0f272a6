// Package wgstatus parses the line-oriented output of `wg show <interface>`
// into point-in-time snapshots. Parsing is best-effort: fields that cannot be
// understood are left at their zero values, never returned as errors.
package wgstatus

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Snapshot is the runtime state of one interface at a single moment.
type Snapshot struct {
	Name       string       `json:"name"`
	PublicKey  string       `json:"public_key"`
	ListenPort int          `json:"listen_port"`
	Peers      []PeerStatus `json:"peers"`
}

// PeerStatus is the runtime state of one peer. A zero LatestHandshake means
// the peer has never completed a handshake.
type PeerStatus struct {
	PublicKey           string    `json:"public_key"`
	Endpoint            string    `json:"endpoint,omitempty"`
	AllowedIPs          string    `json:"allowed_ips,omitempty"`
	LatestHandshake     time.Time `json:"latest_handshake,omitzero"`
	TransferRx          int64     `json:"transfer_rx"`
	TransferTx          int64     `json:"transfer_tx"`
	PersistentKeepalive int       `json:"persistent_keepalive"`
}

// Peer returns the status entry with the given public key.
func (s *Snapshot) Peer(publicKey string) (PeerStatus, bool) {
	if s == nil {
		return PeerStatus{}, false
	}
	for _, peer := range s.Peers {
		if peer.PublicKey == publicKey {
			return peer, true
		}
	}
	return PeerStatus{}, false
}

// Parse reads `wg show <name>` output. Handshake ages are relative phrases
// ("2 minutes, 30 seconds ago"), so the caller supplies now and the absolute
// handshake time is computed against it.
func Parse(name, raw string, now time.Time) *Snapshot {
	snapshot := &Snapshot{Name: name}
	var current *PeerStatus

	flush := func() {
		if current != nil {
			snapshot.Peers = append(snapshot.Peers, *current)
			current = nil
		}
	}

	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "interface:"):
			// Name comes from the argument; wg just echoes it.
		case strings.HasPrefix(line, "public key:"):
			snapshot.PublicKey = valueAfterLabel(line)
		case strings.HasPrefix(line, "listening port:"):
			if port, err := strconv.Atoi(valueAfterLabel(line)); err == nil {
				snapshot.ListenPort = port
			}
		case strings.HasPrefix(line, "peer:"):
			flush()
			current = &PeerStatus{PublicKey: valueAfterLabel(line)}
		case current == nil:
			// Interface-level line we do not care about (private key, fwmark).
		case strings.HasPrefix(line, "endpoint:"):
			current.Endpoint = valueAfterLabel(line)
		case strings.HasPrefix(line, "allowed ips:"):
			current.AllowedIPs = valueAfterLabel(line)
		case strings.HasPrefix(line, "latest handshake:"):
			current.LatestHandshake = ParseHandshake(valueAfterLabel(line), now)
		case strings.HasPrefix(line, "transfer:"):
			current.TransferRx, current.TransferTx = ParseTransfer(valueAfterLabel(line))
		case strings.HasPrefix(line, "persistent keepalive:"):
			current.PersistentKeepalive = ParseKeepalive(valueAfterLabel(line))
		}
	}
	flush()
	return snapshot
}

// valueAfterLabel strips the "label:" prefix. Only the first colon is the
// separator; values like endpoints contain their own colons.
func valueAfterLabel(line string) string {
	if idx := strings.Index(line, ":"); idx >= 0 {
		return strings.TrimSpace(line[idx+1:])
	}
	return ""
}

var handshakeUnits = []struct {
	pattern    *regexp.Regexp
	multiplier int64
}{
	{regexp.MustCompile(`(?i)(\d+)\s*day`), 86400},
	{regexp.MustCompile(`(?i)(\d+)\s*hour`), 3600},
	{regexp.MustCompile(`(?i)(\d+)\s*minute`), 60},
	{regexp.MustCompile(`(?i)(\d+)\s*second`), 1},
}

// ParseHandshake converts a relative handshake phrase into an absolute time.
// "(none)", an empty value, or a phrase without any recognizable component
// yields the zero time.
func ParseHandshake(value string, now time.Time) time.Time {
	if value == "" || value == "(none)" {
		return time.Time{}
	}
	var total int64
	for _, unit := range handshakeUnits {
		if match := unit.pattern.FindStringSubmatch(value); match != nil {
			n, err := strconv.ParseInt(match[1], 10, 64)
			if err != nil {
				continue
			}
			total += n * unit.multiplier
		}
	}
	if total <= 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(total) * time.Second)
}

var (
	transferRxPattern = regexp.MustCompile(`([\d.]+)\s*(\w+)\s*received`)
	transferTxPattern = regexp.MustCompile(`([\d.]+)\s*(\w+)\s*sent`)
	keepalivePattern  = regexp.MustCompile(`(\d+)`)
)

var transferUnits = map[string]int64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
}

// ParseTransfer reads a transfer line value like
// "1.50 MiB received, 500.00 KiB sent" into absolute byte counts. Unknown
// units fall back to a multiplier of 1.
func ParseTransfer(value string) (rx, tx int64) {
	if match := transferRxPattern.FindStringSubmatch(value); match != nil {
		rx = scaleTransfer(match[1], match[2])
	}
	if match := transferTxPattern.FindStringSubmatch(value); match != nil {
		tx = scaleTransfer(match[1], match[2])
	}
	return rx, tx
}

func scaleTransfer(amount, unit string) int64 {
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	multiplier, ok := transferUnits[unit]
	if !ok {
		multiplier = 1
	}
	return int64(value * float64(multiplier))
}

// ParseKeepalive reads a persistent keepalive value. "off" maps to 0,
// otherwise the first integer in the phrase wins ("every 25 seconds" -> 25).
func ParseKeepalive(value string) int {
	if value == "off" {
		return 0
	}
	if match := keepalivePattern.FindStringSubmatch(value); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n
		}
	}
	return 0
}
