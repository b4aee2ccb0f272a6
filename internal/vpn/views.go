package vpn

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wg-console/internal/wgconf"
	"wg-console/internal/wgstatus"
)

// PeerView is one peer as the API reports it: the config entry joined with
// the runtime state for the same public key. Peers without a stored display
// name fall back to a shortened public key.
type PeerView struct {
	Name                string     `json:"name,omitempty"`
	PublicKey           string     `json:"public_key"`
	AllowedIPs          string     `json:"allowed_ips"`
	Endpoint            string     `json:"endpoint,omitempty"`
	LatestHandshake     *time.Time `json:"latest_handshake,omitempty"`
	TransferRx          int64      `json:"transfer_rx"`
	TransferTx          int64      `json:"transfer_tx"`
	Online              bool       `json:"is_online"`
	PersistentKeepalive int        `json:"persistent_keepalive"`
}

// InterfaceView is the merged state of one interface. Transfer totals and
// the online count sum over the merged peers; when the interface is down
// every runtime field is zero.
type InterfaceView struct {
	Name            string     `json:"name"`
	Address         string     `json:"address"`
	ListenPort      int        `json:"listen_port"`
	PublicKey       string     `json:"public_key"`
	DNS             string     `json:"dns,omitempty"`
	PublicEndpoint  string     `json:"public_endpoint,omitempty"`
	PostUp          string     `json:"post_up,omitempty"`
	PostDown        string     `json:"post_down,omitempty"`
	Active          bool       `json:"is_active"`
	PeerCount       int        `json:"peer_count"`
	OnlinePeerCount int        `json:"active_peer_count"`
	TransferRx      int64      `json:"total_transfer_rx"`
	TransferTx      int64      `json:"total_transfer_tx"`
	Peers           []PeerView `json:"peers,omitempty"`
}

// Get returns the merged view of one interface, peers included.
func (m *Manager) Get(ctx context.Context, name string) (*InterfaceView, error) {
	if err := ValidateInterfaceName(name); err != nil {
		return nil, err
	}
	doc, err := m.load(name)
	if err != nil {
		return nil, err
	}
	return m.buildView(ctx, name, doc)
}

// List returns summary views for every config file in the directory, sorted
// by name. Files that cannot be read or carry an unusable name are skipped
// with a warning so one stray file cannot take the listing down.
func (m *Manager) List(ctx context.Context) ([]*InterfaceView, error) {
	names, err := m.discover()
	if err != nil {
		return nil, err
	}

	views := make([]*InterfaceView, 0, len(names))
	for _, name := range names {
		doc, err := m.load(name)
		if err != nil {
			logrus.Warnf("Skipping unreadable config for %s: %v", name, err)
			continue
		}
		view, err := m.buildView(ctx, name, doc)
		if err != nil {
			logrus.Warnf("Skipping interface %s: %v", name, err)
			continue
		}
		view.Peers = nil
		views = append(views, view)
	}
	return views, nil
}

// Peers returns the merged peer views for one interface.
func (m *Manager) Peers(ctx context.Context, name string) ([]PeerView, error) {
	view, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if view.Peers == nil {
		return []PeerView{}, nil
	}
	return view.Peers, nil
}

// Peer returns the merged view of a single peer.
func (m *Manager) Peer(ctx context.Context, name, publicKey string) (PeerView, error) {
	peers, err := m.Peers(ctx, name)
	if err != nil {
		return PeerView{}, err
	}
	for _, peer := range peers {
		if peer.PublicKey == publicKey {
			return peer, nil
		}
	}
	return PeerView{}, fmt.Errorf("%w: peer %s", ErrNotFound, shortKey(publicKey))
}

// buildView merges the parsed document with runtime state. The status probe
// runs only when the liveness check says the interface is up; without a
// snapshot the view degrades to config-only, all peers offline.
func (m *Manager) buildView(ctx context.Context, name string, doc *wgconf.Document) (*InterfaceView, error) {
	active := m.backend.IsActive(ctx, name)
	var status *wgstatus.Snapshot
	if active {
		// A failed probe means no runtime state, not a fault.
		status, _ = m.backend.Status(ctx, name)
	}

	names, err := m.meta.DisplayNames(name)
	if err != nil {
		return nil, err
	}

	view := &InterfaceView{
		Name:           name,
		Address:        doc.Interface.Get(wgconf.KeyAddress),
		ListenPort:     DefaultListenPort,
		DNS:            doc.Interface.Get(wgconf.KeyDNS),
		PublicEndpoint: doc.Interface.Get(wgconf.KeyPublicEndpoint),
		PostUp:         doc.Interface.Get(wgconf.KeyPostUp),
		PostDown:       doc.Interface.Get(wgconf.KeyPostDown),
		Active:         active,
	}
	if port, err := strconv.Atoi(doc.Interface.Get(wgconf.KeyListenPort)); err == nil {
		view.ListenPort = port
	}

	// Prefer the live-reported key; fall back to deriving it from the stored
	// private key. A file with a broken key yields an empty public key
	// rather than an error so listings stay usable.
	if status != nil && status.PublicKey != "" {
		view.PublicKey = status.PublicKey
	} else if derived, err := m.backend.PublicKey(ctx, doc.Interface.Get(wgconf.KeyPrivateKey)); err == nil {
		view.PublicKey = derived
	}

	now := m.now()
	for _, fields := range doc.Peers {
		publicKey := fields.Get(wgconf.KeyPublicKey)
		peer := PeerView{
			Name:       names[publicKey],
			PublicKey:  publicKey,
			AllowedIPs: fields.Get(wgconf.KeyAllowedIPs),
		}
		if peer.Name == "" {
			peer.Name = shortKey(publicKey)
		}
		if n, err := strconv.Atoi(fields.Get(wgconf.KeyPersistentKeepalive)); err == nil {
			peer.PersistentKeepalive = n
		}
		if rt, ok := status.Peer(publicKey); ok {
			peer.Endpoint = rt.Endpoint
			peer.TransferRx = rt.TransferRx
			peer.TransferTx = rt.TransferTx
			if !rt.LatestHandshake.IsZero() {
				handshake := rt.LatestHandshake
				peer.LatestHandshake = &handshake
				peer.Online = now.Sub(handshake) < OnlineWindow
			}
		}

		view.TransferRx += peer.TransferRx
		view.TransferTx += peer.TransferTx
		if peer.Online {
			view.OnlinePeerCount++
		}
		view.Peers = append(view.Peers, peer)
	}
	view.PeerCount = len(view.Peers)
	return view, nil
}

// discover lists interface names with a config file, in sorted order.
func (m *Manager) discover() ([]string, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".conf") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".conf")
		if err := ValidateInterfaceName(name); err != nil {
			logrus.Warnf("Skipping config file %s: %v", entry.Name(), err)
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func shortKey(publicKey string) string {
	if len(publicKey) > 8 {
		return publicKey[:8] + "..."
	}
	return publicKey
}
