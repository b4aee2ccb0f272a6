package system

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"wg-console/internal/wgconf"
	"wg-console/internal/wgstatus"
)

// MemoryBackend simulates WireGuard for development hosts without the
// tooling. Keys are real Curve25519 pairs, the active set lives in memory,
// and Status fabricates plausible runtime state from the on-disk config so
// the rest of the stack behaves as it would in production.
type MemoryBackend struct {
	mu        sync.Mutex
	configDir string
	active    map[string]struct{}
	counters  map[string]*fakeCounters
	now       func() time.Time
}

type fakeCounters struct {
	rx int64
	tx int64
}

func NewMemoryBackend(configDir string) *MemoryBackend {
	return &MemoryBackend{
		configDir: configDir,
		active:    make(map[string]struct{}),
		counters:  make(map[string]*fakeCounters),
		now:       time.Now,
	}
}

func (b *MemoryBackend) Kind() string { return "memory" }

func (b *MemoryBackend) GenerateKeypair(context.Context) (string, string, error) {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate private key: %w", err)
	}
	return key.String(), key.PublicKey().String(), nil
}

func (b *MemoryBackend) PublicKey(_ context.Context, privateKey string) (string, error) {
	if privateKey == "" {
		return "", nil
	}
	key, err := wgtypes.ParseKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	return key.PublicKey().String(), nil
}

func (b *MemoryBackend) Status(_ context.Context, name string) (*wgstatus.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.active[name]; !ok {
		return nil, nil
	}

	doc, err := wgconf.Load(filepath.Join(b.configDir, name+".conf"))
	if err != nil {
		return nil, nil
	}

	snapshot := &wgstatus.Snapshot{Name: name, ListenPort: 51820}
	if port, err := strconv.Atoi(doc.Interface.Get(wgconf.KeyListenPort)); err == nil {
		snapshot.ListenPort = port
	}
	if publicKey, err := b.publicKeyLocked(doc.Interface.Get(wgconf.KeyPrivateKey)); err == nil {
		snapshot.PublicKey = publicKey
	}

	now := b.now()
	for i, peer := range doc.Peers {
		publicKey := peer.Get(wgconf.KeyPublicKey)
		counters := b.counters[name+"/"+publicKey]
		if counters == nil {
			counters = &fakeCounters{}
			b.counters[name+"/"+publicKey] = counters
		}
		// Counters only ever grow, like the real ones.
		counters.rx += int64(64<<10 + i*977)
		counters.tx += int64(16<<10 + i*331)

		keepalive := 0
		if n, err := strconv.Atoi(peer.Get(wgconf.KeyPersistentKeepalive)); err == nil {
			keepalive = n
		}
		snapshot.Peers = append(snapshot.Peers, wgstatus.PeerStatus{
			PublicKey:           publicKey,
			Endpoint:            fmt.Sprintf("203.0.113.%d:%d", 10+i%200, 40000+i),
			AllowedIPs:          peer.Get(wgconf.KeyAllowedIPs),
			LatestHandshake:     now.Add(-45 * time.Second),
			TransferRx:          counters.rx,
			TransferTx:          counters.tx,
			PersistentKeepalive: keepalive,
		})
	}
	return snapshot, nil
}

func (b *MemoryBackend) publicKeyLocked(privateKey string) (string, error) {
	if privateKey == "" {
		return "", nil
	}
	key, err := wgtypes.ParseKey(privateKey)
	if err != nil {
		return "", err
	}
	return key.PublicKey().String(), nil
}

func (b *MemoryBackend) IsActive(_ context.Context, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.active[name]
	return ok
}

func (b *MemoryBackend) SetActive(_ context.Context, name string, active bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if active {
		b.active[name] = struct{}{}
	} else {
		delete(b.active, name)
	}
	return nil
}

func (b *MemoryBackend) Sync(context.Context, string, string) error { return nil }

func (b *MemoryBackend) Installed(context.Context) bool { return true }
