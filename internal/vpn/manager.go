// Package vpn is the reconciliation engine. It owns the WireGuard
// configuration files on disk, merges them with live runtime state from the
// system backend, and keeps a running interface in step with its file after
// peer mutations.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wg-console/internal/peermeta"
	"wg-console/internal/settings"
	"wg-console/internal/system"
	"wg-console/internal/wgconf"
)

const (
	// OnlineWindow is how recent a peer's last handshake must be for the
	// peer to count as online.
	OnlineWindow = 180 * time.Second

	// DefaultListenPort is used when a request or config file leaves the
	// port unset.
	DefaultListenPort = 51820

	// DefaultPersistentKeepalive is applied to new peers that do not choose
	// their own interval. Zero disables keepalive.
	DefaultPersistentKeepalive = 25
)

var (
	// ErrNotFound indicates a missing interface or peer.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates the interface or peer is already present.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation indicates invalid user input.
	ErrValidation = errors.New("validation failed")
)

// CreateRequest describes a new interface.
type CreateRequest struct {
	Name           string `json:"name"`
	Address        string `json:"address"`
	ListenPort     int    `json:"listen_port"`
	DNS            string `json:"dns,omitempty"`
	PublicEndpoint string `json:"public_endpoint,omitempty"`
	PostUp         string `json:"post_up,omitempty"`
	PostDown       string `json:"post_down,omitempty"`
}

// UpdateRequest carries partial interface edits. Nil fields are left
// untouched; setting a string field to "" removes the key from the file.
// The address is fixed at creation: peers are numbered out of it.
type UpdateRequest struct {
	ListenPort     *int    `json:"listen_port,omitempty"`
	DNS            *string `json:"dns,omitempty"`
	PublicEndpoint *string `json:"public_endpoint,omitempty"`
	PostUp         *string `json:"post_up,omitempty"`
	PostDown       *string `json:"post_down,omitempty"`
}

// Manager reconciles configuration files with the running system. Mutations
// are serialized by one mutex; reads re-load the backing file on every call,
// so staleness is bounded by request latency, not by any cache.
type Manager struct {
	mu sync.Mutex

	configDir          string
	backend            system.Backend
	settings           *settings.Store
	meta               *peermeta.Store
	allowCustomScripts bool
	now                func() time.Time
}

// NewManager creates a manager over configDir. The directory is created when
// missing. allowCustomScripts lifts the iptables-only restriction on PostUp
// and PostDown commands.
func NewManager(configDir string, backend system.Backend, store *settings.Store, meta *peermeta.Store, allowCustomScripts bool) (*Manager, error) {
	return NewManagerWithClock(configDir, backend, store, meta, allowCustomScripts, time.Now)
}

// NewManagerWithClock creates a manager with an injected clock for tests.
func NewManagerWithClock(configDir string, backend system.Backend, store *settings.Store, meta *peermeta.Store, allowCustomScripts bool, now func() time.Time) (*Manager, error) {
	trimmed := strings.TrimSpace(configDir)
	if trimmed == "" {
		return nil, fmt.Errorf("config directory is required")
	}
	if err := os.MkdirAll(trimmed, 0o700); err != nil {
		return nil, err
	}
	return &Manager{
		configDir:          trimmed,
		backend:            backend,
		settings:           store,
		meta:               meta,
		allowCustomScripts: allowCustomScripts,
		now:                now,
	}, nil
}

// Create writes a new interface config file. The interface is not started;
// activation is a separate SetActive call.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*InterfaceView, error) {
	if err := ValidateInterfaceName(req.Name); err != nil {
		return nil, err
	}
	if err := ValidateAddress(req.Address); err != nil {
		return nil, err
	}
	port := req.ListenPort
	if port == 0 {
		port = DefaultListenPort
	}
	if err := ValidateListenPort(port); err != nil {
		return nil, err
	}
	if err := ValidateDNS(req.DNS); err != nil {
		return nil, err
	}
	if err := validatePublicEndpoint(req.PublicEndpoint); err != nil {
		return nil, err
	}
	if err := ValidatePostCommand(req.PostUp, m.allowCustomScripts); err != nil {
		return nil, err
	}
	if err := ValidatePostCommand(req.PostDown, m.allowCustomScripts); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.configPath(req.Name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: interface %s", ErrAlreadyExists, req.Name)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	privateKey, publicKey, err := m.backend.GenerateKeypair(ctx)
	if err != nil {
		return nil, err
	}

	dns := req.DNS
	if dns == "" {
		dns, err = m.settings.DefaultDNS()
		if err != nil {
			return nil, err
		}
	}

	doc := wgconf.NewDocument()
	doc.Interface.Set(wgconf.KeyPrivateKey, privateKey)
	doc.Interface.Set(wgconf.KeyAddress, req.Address)
	doc.Interface.Set(wgconf.KeyListenPort, strconv.Itoa(port))
	if dns != "" {
		doc.Interface.Set(wgconf.KeyDNS, dns)
	}
	if req.PostUp != "" {
		doc.Interface.Set(wgconf.KeyPostUp, req.PostUp)
	}
	if req.PostDown != "" {
		doc.Interface.Set(wgconf.KeyPostDown, req.PostDown)
	}
	if req.PublicEndpoint != "" {
		doc.Interface.Set(wgconf.KeyPublicEndpoint, req.PublicEndpoint)
	}
	if err := wgconf.Save(path, doc); err != nil {
		return nil, err
	}

	return &InterfaceView{
		Name:           req.Name,
		Address:        req.Address,
		ListenPort:     port,
		PublicKey:      publicKey,
		DNS:            dns,
		PublicEndpoint: req.PublicEndpoint,
		PostUp:         req.PostUp,
		PostDown:       req.PostDown,
	}, nil
}

// Update applies a partial edit and saves the file. On a running interface
// the peer set is re-synced; a listen port change needs the interface
// restarted, which Update does itself.
func (m *Manager) Update(ctx context.Context, name string, req UpdateRequest) (*InterfaceView, error) {
	if err := ValidateInterfaceName(name); err != nil {
		return nil, err
	}
	if req.ListenPort != nil {
		if err := ValidateListenPort(*req.ListenPort); err != nil {
			return nil, err
		}
	}
	if req.DNS != nil {
		if err := ValidateDNS(*req.DNS); err != nil {
			return nil, err
		}
	}
	if req.PublicEndpoint != nil {
		if err := validatePublicEndpoint(*req.PublicEndpoint); err != nil {
			return nil, err
		}
	}
	if req.PostUp != nil {
		if err := ValidatePostCommand(*req.PostUp, m.allowCustomScripts); err != nil {
			return nil, err
		}
	}
	if req.PostDown != nil {
		if err := ValidatePostCommand(*req.PostDown, m.allowCustomScripts); err != nil {
			return nil, err
		}
	}

	if err := m.applyInterfaceUpdate(ctx, name, req); err != nil {
		return nil, err
	}
	return m.Get(ctx, name)
}

func (m *Manager) applyInterfaceUpdate(ctx context.Context, name string, req UpdateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load(name)
	if err != nil {
		return err
	}

	portChanged := false
	if req.ListenPort != nil {
		port := strconv.Itoa(*req.ListenPort)
		portChanged = doc.Interface.Get(wgconf.KeyListenPort) != port
		doc.Interface.Set(wgconf.KeyListenPort, port)
	}
	setOrDelete(doc, wgconf.KeyDNS, req.DNS)
	setOrDelete(doc, wgconf.KeyPublicEndpoint, req.PublicEndpoint)
	setOrDelete(doc, wgconf.KeyPostUp, req.PostUp)
	setOrDelete(doc, wgconf.KeyPostDown, req.PostDown)

	if err := wgconf.Save(m.configPath(name), doc); err != nil {
		return err
	}

	if !m.backend.IsActive(ctx, name) {
		return nil
	}
	if portChanged {
		// syncconf cannot rebind the socket; bounce the interface instead.
		if err := m.backend.SetActive(ctx, name, false); err != nil {
			return err
		}
		return m.backend.SetActive(ctx, name, true)
	}
	return m.backend.Sync(ctx, name, m.configPath(name))
}

func setOrDelete(doc *wgconf.Document, key string, value *string) {
	if value == nil {
		return
	}
	if *value == "" {
		doc.Interface.Delete(key)
		return
	}
	doc.Interface.Set(key, *value)
}

// Delete brings the interface down when running, removes its file, and
// purges peer metadata. A failed shutdown is logged, not fatal: the file is
// the source of truth and removing it must stay possible.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := ValidateInterfaceName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.configPath(name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: interface %s", ErrNotFound, name)
		}
		return err
	}

	if m.backend.IsActive(ctx, name) {
		if err := m.backend.SetActive(ctx, name, false); err != nil {
			logrus.Warnf("Failed to bring down %s before delete: %v", name, err)
		}
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	return m.meta.DeleteInterface(name)
}

// SetActive brings the interface up or down.
func (m *Manager) SetActive(ctx context.Context, name string, active bool) error {
	if err := ValidateInterfaceName(name); err != nil {
		return err
	}
	if _, err := os.Stat(m.configPath(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: interface %s", ErrNotFound, name)
		}
		return err
	}
	return m.backend.SetActive(ctx, name, active)
}

func (m *Manager) configPath(name string) string {
	return filepath.Join(m.configDir, name+".conf")
}

// load re-reads the interface's backing file. Callers validate name first.
func (m *Manager) load(name string) (*wgconf.Document, error) {
	doc, err := wgconf.Load(m.configPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: interface %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func validatePublicEndpoint(v string) error {
	if err := settings.ValidateEndpoint(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
