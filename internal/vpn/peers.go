package vpn

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"wg-console/internal/wgconf"
)

// PeerCreateRequest describes a new peer. Leaving AllowedIPs empty (or the
// literal "auto") asks the allocator for the next free /32. A nil
// PersistentKeepalive gets the default; an explicit 0 disables keepalive.
type PeerCreateRequest struct {
	Name                string `json:"name"`
	AllowedIPs          string `json:"allowed_ips,omitempty"`
	PersistentKeepalive *int   `json:"persistent_keepalive,omitempty"`
	PresharedKey        string `json:"preshared_key,omitempty"`
}

// PeerUpdateRequest carries partial peer edits; nil fields stay untouched.
// Renaming only touches metadata and never re-syncs the interface.
type PeerUpdateRequest struct {
	Name                *string `json:"name,omitempty"`
	AllowedIPs          *string `json:"allowed_ips,omitempty"`
	PersistentKeepalive *int    `json:"persistent_keepalive,omitempty"`
}

// AddPeer generates a keypair, appends the peer to the config file, stores
// its metadata (display name plus the sealed private key), and re-syncs a
// running interface. The returned view carries the public key only; the
// private key is handed out solely through the rendered client config.
func (m *Manager) AddPeer(ctx context.Context, name string, req PeerCreateRequest) (PeerView, error) {
	if err := ValidateInterfaceName(name); err != nil {
		return PeerView{}, err
	}
	if err := ValidatePeerName(req.Name); err != nil {
		return PeerView{}, err
	}
	keepalive := DefaultPersistentKeepalive
	if req.PersistentKeepalive != nil {
		keepalive = *req.PersistentKeepalive
	}
	if err := ValidateKeepalive(keepalive); err != nil {
		return PeerView{}, err
	}
	if req.PresharedKey != "" {
		if err := ValidateKey(req.PresharedKey); err != nil {
			return PeerView{}, err
		}
	}
	allowedIPs := strings.TrimSpace(req.AllowedIPs)
	if allowedIPs != "" && allowedIPs != "auto" {
		if err := ValidateAddress(allowedIPs); err != nil {
			return PeerView{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load(name)
	if err != nil {
		return PeerView{}, err
	}

	if allowedIPs == "" || allowedIPs == "auto" {
		allowedIPs, err = nextAvailableIP(doc)
		if err != nil {
			return PeerView{}, err
		}
	}

	privateKey, publicKey, err := m.backend.GenerateKeypair(ctx)
	if err != nil {
		return PeerView{}, err
	}
	if _, exists := doc.FindPeer(publicKey); exists {
		return PeerView{}, fmt.Errorf("%w: peer %s", ErrAlreadyExists, shortKey(publicKey))
	}

	peer := wgconf.NewFields()
	peer.Set(wgconf.KeyPublicKey, publicKey)
	if req.PresharedKey != "" {
		peer.Set(wgconf.KeyPresharedKey, req.PresharedKey)
	}
	peer.Set(wgconf.KeyAllowedIPs, allowedIPs)
	if keepalive > 0 {
		peer.Set(wgconf.KeyPersistentKeepalive, strconv.Itoa(keepalive))
	}
	doc.Peers = append(doc.Peers, peer)

	if err := wgconf.Save(m.configPath(name), doc); err != nil {
		return PeerView{}, err
	}
	if err := m.meta.Upsert(name, publicKey, req.Name, privateKey); err != nil {
		return PeerView{}, err
	}
	if err := m.syncIfActive(ctx, name); err != nil {
		return PeerView{}, err
	}

	return PeerView{
		Name:                req.Name,
		PublicKey:           publicKey,
		AllowedIPs:          allowedIPs,
		PersistentKeepalive: keepalive,
	}, nil
}

// UpdatePeer edits the provided fields in place, keeping the peer's position
// in the file, and returns the refreshed merged view.
func (m *Manager) UpdatePeer(ctx context.Context, name, publicKey string, req PeerUpdateRequest) (PeerView, error) {
	if err := ValidateInterfaceName(name); err != nil {
		return PeerView{}, err
	}
	if req.Name != nil {
		if err := ValidatePeerName(*req.Name); err != nil {
			return PeerView{}, err
		}
	}
	if req.AllowedIPs != nil {
		if err := ValidateAddress(*req.AllowedIPs); err != nil {
			return PeerView{}, err
		}
	}
	if req.PersistentKeepalive != nil {
		if err := ValidateKeepalive(*req.PersistentKeepalive); err != nil {
			return PeerView{}, err
		}
	}

	if err := m.applyPeerUpdate(ctx, name, publicKey, req); err != nil {
		return PeerView{}, err
	}
	return m.Peer(ctx, name, publicKey)
}

func (m *Manager) applyPeerUpdate(ctx context.Context, name, publicKey string, req PeerUpdateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load(name)
	if err != nil {
		return err
	}
	idx, ok := doc.FindPeer(publicKey)
	if !ok {
		return fmt.Errorf("%w: peer %s", ErrNotFound, shortKey(publicKey))
	}

	changed := false
	if req.AllowedIPs != nil {
		doc.Peers[idx].Set(wgconf.KeyAllowedIPs, *req.AllowedIPs)
		changed = true
	}
	if req.PersistentKeepalive != nil {
		if *req.PersistentKeepalive > 0 {
			doc.Peers[idx].Set(wgconf.KeyPersistentKeepalive, strconv.Itoa(*req.PersistentKeepalive))
		} else {
			doc.Peers[idx].Delete(wgconf.KeyPersistentKeepalive)
		}
		changed = true
	}
	if changed {
		if err := wgconf.Save(m.configPath(name), doc); err != nil {
			return err
		}
		if err := m.syncIfActive(ctx, name); err != nil {
			return err
		}
	}

	if req.Name != nil {
		// Rename touches metadata only; the sealed private key survives.
		if err := m.meta.Rename(name, publicKey, *req.Name); err != nil {
			return err
		}
	}
	return nil
}

// RemovePeer drops the peer from the file, purges its metadata, and
// re-syncs a running interface.
func (m *Manager) RemovePeer(ctx context.Context, name, publicKey string) error {
	if err := ValidateInterfaceName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load(name)
	if err != nil {
		return err
	}
	if !doc.RemovePeer(publicKey) {
		return fmt.Errorf("%w: peer %s", ErrNotFound, shortKey(publicKey))
	}
	if err := wgconf.Save(m.configPath(name), doc); err != nil {
		return err
	}
	if err := m.meta.Delete(name, publicKey); err != nil {
		return err
	}
	return m.syncIfActive(ctx, name)
}

// NextAvailableIP returns the next free /32 in the interface's subnet.
func (m *Manager) NextAvailableIP(name string) (string, error) {
	if err := ValidateInterfaceName(name); err != nil {
		return "", err
	}
	doc, err := m.load(name)
	if err != nil {
		return "", err
	}
	return nextAvailableIP(doc)
}

// syncIfActive pushes the on-disk peer set into the running interface. The
// file write has already happened by the time this runs; when the sync
// fails, the file and the running interface stay diverged until the next
// successful sync. The caller gets the error, the file stands.
func (m *Manager) syncIfActive(ctx context.Context, name string) error {
	if !m.backend.IsActive(ctx, name) {
		return nil
	}
	return m.backend.Sync(ctx, name, m.configPath(name))
}

// ClientConfig renders the file a peer imports into its own WireGuard
// client. The caller resolves and supplies the peer's private key; the
// engine never unseals keys itself. The exact field layout is a
// compatibility contract with the apps that scan these files, so the text
// is built line by line rather than through the document serializer.
func (m *Manager) ClientConfig(ctx context.Context, name, peerPublicKey, peerPrivateKey string) (string, error) {
	if err := ValidateInterfaceName(name); err != nil {
		return "", err
	}
	doc, err := m.load(name)
	if err != nil {
		return "", err
	}
	idx, ok := doc.FindPeer(peerPublicKey)
	if !ok {
		return "", fmt.Errorf("%w: peer %s", ErrNotFound, shortKey(peerPublicKey))
	}
	peer := doc.Peers[idx]

	serverPublicKey, err := m.backend.PublicKey(ctx, doc.Interface.Get(wgconf.KeyPrivateKey))
	if err != nil {
		return "", err
	}

	host, err := m.settings.PublicEndpoint()
	if err != nil {
		return "", err
	}
	port := doc.Interface.Get(wgconf.KeyListenPort)
	if port == "" {
		port = strconv.Itoa(DefaultListenPort)
	}

	dns := doc.Interface.Get(wgconf.KeyDNS)
	if dns == "" {
		dns = m.settings.Defaults().DNS
	}
	address := strings.TrimSpace(strings.Split(peer.Get(wgconf.KeyAllowedIPs), ",")[0])

	lines := []string{
		"[Interface]",
		"Address = " + address,
		"PrivateKey = " + peerPrivateKey,
	}
	if dns != "" {
		lines = append(lines, "DNS = "+dns)
	}
	lines = append(lines,
		"",
		"[Peer]",
		"PublicKey = "+serverPublicKey,
		"AllowedIPs = 0.0.0.0/0, ::/0",
		"Endpoint = "+host+":"+port,
		"PersistentKeepalive = 25",
	)
	return strings.Join(lines, "\n") + "\n", nil
}
