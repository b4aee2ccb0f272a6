package wgconf

import (
	"strings"
	"unicode"
)

// publicEndpointPrefix marks the comment line carrying the interface's
// public endpoint. It rides in the file as a comment so wg-quick ignores it.
const publicEndpointPrefix = "# PublicEndpoint = "

type section int

const (
	sectionNone section = iota
	sectionInterface
	sectionPeer
)

// Parse reads WireGuard configuration text into a Document. Parsing is
// best-effort and never fails: unknown lines are skipped and whatever
// structure can be recovered is returned. Keys are normalized with
// NormalizeKey; a duplicate key within a section wins with its last value
// but keeps its first position.
func Parse(raw string) *Document {
	doc := NewDocument()
	current := NewFields()
	state := sectionNone

	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			// The endpoint comment belongs to the interface; one inside a
			// [Peer] block is somebody else's comment.
			if strings.HasPrefix(line, publicEndpointPrefix) && state != sectionPeer {
				value := strings.SplitN(line, "=", 2)[1]
				doc.Interface.Set(KeyPublicEndpoint, strings.TrimSpace(value))
			}
			continue
		}

		switch strings.ToLower(line) {
		case "[interface]":
			if state == sectionPeer && current.Len() > 0 {
				doc.Peers = append(doc.Peers, current)
			}
			state = sectionInterface
			current = NewFields()
			continue
		case "[peer]":
			if state == sectionInterface {
				doc.Interface.Merge(current)
			} else if state == sectionPeer && current.Len() > 0 {
				doc.Peers = append(doc.Peers, current)
			}
			state = sectionPeer
			current = NewFields()
			continue
		}

		if idx := strings.Index(line, "="); idx >= 0 {
			key := NormalizeKey(line[:idx])
			value := strings.TrimSpace(line[idx+1:])
			current.Set(key, value)
		}
	}

	switch state {
	case sectionInterface:
		doc.Interface.Merge(current)
	case sectionPeer:
		if current.Len() > 0 {
			doc.Peers = append(doc.Peers, current)
		}
	}
	return doc
}

var interfaceKeyOrder = []string{
	KeyPrivateKey,
	KeyAddress,
	KeyListenPort,
	KeyDNS,
	KeyPostUp,
	KeyPostDown,
	KeyMTU,
}

var peerKeyOrder = []string{
	KeyPublicKey,
	KeyPresharedKey,
	KeyAllowedIPs,
	KeyEndpoint,
	KeyPersistentKeepalive,
}

var canonicalKeys = map[string]string{
	KeyPrivateKey:          "PrivateKey",
	KeyPublicKey:           "PublicKey",
	KeyPresharedKey:        "PresharedKey",
	KeyAddress:             "Address",
	KeyListenPort:          "ListenPort",
	KeyDNS:                 "DNS",
	KeyPostUp:              "PostUp",
	KeyPostDown:            "PostDown",
	KeyAllowedIPs:          "AllowedIPs",
	KeyEndpoint:            "Endpoint",
	KeyPersistentKeepalive: "PersistentKeepalive",
	KeyMTU:                 "MTU",
}

// Serialize renders a Document as canonical WireGuard configuration text.
// Known keys come first in a fixed preference order, remaining keys follow in
// insertion order, and the public endpoint is written as a comment so the
// file stays valid for wg-quick. Output ends with a trailing newline.
func Serialize(doc *Document) string {
	lines := make([]string, 0, 8+8*len(doc.Peers))
	lines = append(lines, "[Interface]")
	if endpoint := doc.Interface.Get(KeyPublicEndpoint); endpoint != "" {
		lines = append(lines, publicEndpointPrefix+endpoint)
	}
	lines = appendSection(lines, doc.Interface, interfaceKeyOrder, true)
	for _, peer := range doc.Peers {
		lines = append(lines, "", "[Peer]")
		lines = appendSection(lines, peer, peerKeyOrder, false)
	}
	return strings.Join(lines, "\n") + "\n"
}

func appendSection(lines []string, fields Fields, order []string, skipPublicEndpoint bool) []string {
	seen := make(map[string]struct{}, len(order))
	for _, key := range order {
		value, ok := fields.Lookup(key)
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		lines = append(lines, displayKey(key)+" = "+value)
	}
	for _, key := range fields.Keys() {
		if _, done := seen[key]; done {
			continue
		}
		if skipPublicEndpoint && key == KeyPublicEndpoint {
			continue
		}
		lines = append(lines, displayKey(key)+" = "+fields.Get(key))
	}
	return lines
}

func displayKey(key string) string {
	if canonical, ok := canonicalKeys[key]; ok {
		return canonical
	}
	return titleKey(key)
}

// titleKey uppercases the first letter of each letter run, the historical
// fallback for keys outside the canonical table ("fwmark" -> "Fwmark",
// "pre_up" -> "Pre_Up").
func titleKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	prevLetter := false
	for _, r := range key {
		switch {
		case !unicode.IsLetter(r):
			b.WriteRune(r)
			prevLetter = false
		case prevLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToUpper(r))
			prevLetter = true
		}
	}
	return b.String()
}
