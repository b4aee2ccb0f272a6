package wgconf

// Normalized key names shared across the document model.
const (
	KeyPrivateKey          = "privatekey"
	KeyAddress             = "address"
	KeyListenPort          = "listenport"
	KeyDNS                 = "dns"
	KeyPostUp              = "postup"
	KeyPostDown            = "postdown"
	KeyMTU                 = "mtu"
	KeyPublicEndpoint      = "public_endpoint"
	KeyPublicKey           = "publickey"
	KeyPresharedKey        = "presharedkey"
	KeyAllowedIPs          = "allowedips"
	KeyEndpoint            = "endpoint"
	KeyPersistentKeepalive = "persistentkeepalive"
)

// Document is a parsed WireGuard configuration: one [Interface] section plus
// zero or more [Peer] sections in file order.
type Document struct {
	Interface Fields
	Peers     []Fields
}

func NewDocument() *Document {
	return &Document{Interface: NewFields()}
}

// FindPeer returns the index of the peer with the given public key. The
// match is case-sensitive; WireGuard keys are base64 and case matters.
func (d *Document) FindPeer(publicKey string) (int, bool) {
	for i, peer := range d.Peers {
		if peer.Get(KeyPublicKey) == publicKey {
			return i, true
		}
	}
	return -1, false
}

// UpsertPeer replaces the peer with a matching public key in place, or
// appends when no peer matches. Replacement keeps the peer's position.
func (d *Document) UpsertPeer(peer Fields) {
	if i, ok := d.FindPeer(peer.Get(KeyPublicKey)); ok {
		d.Peers[i] = peer
		return
	}
	d.Peers = append(d.Peers, peer)
}

// RemovePeer drops the peer with the given public key and reports whether a
// peer was removed.
func (d *Document) RemovePeer(publicKey string) bool {
	for i, peer := range d.Peers {
		if peer.Get(KeyPublicKey) == publicKey {
			d.Peers = append(d.Peers[:i], d.Peers[i+1:]...)
			return true
		}
	}
	return false
}
