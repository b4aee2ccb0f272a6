package vpn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wg-console/internal/database"
	"wg-console/internal/peermeta"
	"wg-console/internal/settings"
	"wg-console/internal/wgconf"
	"wg-console/internal/wgstatus"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type keypair struct {
	private string
	public  string
}

// fakeBackend scripts the system boundary: queued keypairs, per-interface
// snapshots, recorded sync and lifecycle calls.
type fakeBackend struct {
	mu sync.Mutex

	active    map[string]bool
	snapshots map[string]*wgstatus.Snapshot
	keys      []keypair
	pubkeys   map[string]string
	generated int

	statusCalls  int
	syncCalls    []string
	activeCalls  []string
	syncErr      error
	setActiveErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		active:    make(map[string]bool),
		snapshots: make(map[string]*wgstatus.Snapshot),
		pubkeys:   make(map[string]string),
	}
}

func (b *fakeBackend) Kind() string { return "fake" }

func (b *fakeBackend) Installed(context.Context) bool { return true }

func (b *fakeBackend) GenerateKeypair(context.Context) (string, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var pair keypair
	if len(b.keys) > 0 {
		pair = b.keys[0]
		b.keys = b.keys[1:]
	} else {
		b.generated++
		pair = keypair{fmt.Sprintf("priv-%d", b.generated), fmt.Sprintf("pub-%d", b.generated)}
	}
	b.pubkeys[pair.private] = pair.public
	return pair.private, pair.public, nil
}

func (b *fakeBackend) PublicKey(_ context.Context, privateKey string) (string, error) {
	if privateKey == "" {
		return "", nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if public, ok := b.pubkeys[privateKey]; ok {
		return public, nil
	}
	return "pub-of-" + privateKey, nil
}

func (b *fakeBackend) Status(_ context.Context, name string) (*wgstatus.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls++
	return b.snapshots[name], nil
}

func (b *fakeBackend) IsActive(_ context.Context, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active[name]
}

func (b *fakeBackend) SetActive(_ context.Context, name string, active bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	action := "down"
	if active {
		action = "up"
	}
	b.activeCalls = append(b.activeCalls, name+":"+action)
	if b.setActiveErr != nil {
		return b.setActiveErr
	}
	b.active[name] = active
	return nil
}

func (b *fakeBackend) Sync(_ context.Context, name, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncCalls = append(b.syncCalls, name)
	return b.syncErr
}

type testEnv struct {
	mgr     *Manager
	backend *fakeBackend
	store   *settings.Store
	meta    *peermeta.Store
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDefaults(t, settings.Defaults{
		PublicEndpoint: "vpn.example.com",
		DNS:            "1.1.1.1",
	})
}

func newTestEnvWithDefaults(t *testing.T, defaults settings.Defaults) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()
	if defaults.ConfigDir == "" {
		defaults.ConfigDir = dir
	}
	backend := newFakeBackend()
	store := settings.NewStore(db, defaults)
	meta := peermeta.NewStore(db, "test-passphrase")

	mgr, err := NewManagerWithClock(dir, backend, store, meta, false, func() time.Time { return testNow })
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return &testEnv{mgr: mgr, backend: backend, store: store, meta: meta, dir: dir}
}

func (e *testEnv) loadDoc(t *testing.T, name string) *wgconf.Document {
	t.Helper()
	doc, err := wgconf.Load(filepath.Join(e.dir, name+".conf"))
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return doc
}

func (e *testEnv) saveDoc(t *testing.T, name string, doc *wgconf.Document) {
	t.Helper()
	if err := wgconf.Save(filepath.Join(e.dir, name+".conf"), doc); err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
}

func TestCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	view, err := env.mgr.Create(ctx, CreateRequest{
		Name:       "wg0",
		Address:    "10.0.0.1/24",
		ListenPort: 51821,
		DNS:        "9.9.9.9",
		PostUp:     "iptables -A FORWARD -i wg0 -j ACCEPT",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if view.Name != "wg0" || view.ListenPort != 51821 || view.DNS != "9.9.9.9" {
		t.Errorf("view = %+v", view)
	}
	if view.PublicKey != "pub-1" {
		t.Errorf("PublicKey = %q, want pub-1", view.PublicKey)
	}
	if view.Active {
		t.Error("new interface reported active")
	}

	doc := env.loadDoc(t, "wg0")
	if got := doc.Interface.Get(wgconf.KeyPrivateKey); got != "priv-1" {
		t.Errorf("privatekey = %q", got)
	}
	if got := doc.Interface.Get(wgconf.KeyListenPort); got != "51821" {
		t.Errorf("listenport = %q", got)
	}
	if got := doc.Interface.Get(wgconf.KeyDNS); got != "9.9.9.9" {
		t.Errorf("dns = %q", got)
	}
	if got := doc.Interface.Get(wgconf.KeyPostUp); got != "iptables -A FORWARD -i wg0 -j ACCEPT" {
		t.Errorf("postup = %q", got)
	}

	// Creation never starts the interface.
	if len(env.backend.activeCalls) != 0 {
		t.Errorf("lifecycle calls on create: %v", env.backend.activeCalls)
	}
}

func TestCreateDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("port", func(t *testing.T) {
		view, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if view.ListenPort != 51820 {
			t.Errorf("ListenPort = %d, want 51820", view.ListenPort)
		}
	})

	t.Run("static dns", func(t *testing.T) {
		view, err := env.mgr.Create(ctx, CreateRequest{Name: "wg1", Address: "10.0.1.1/24"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if view.DNS != "1.1.1.1" {
			t.Errorf("DNS = %q, want static default", view.DNS)
		}
	})

	t.Run("database dns overrides static", func(t *testing.T) {
		if err := env.store.Set(settings.KeyDefaultDNS, "8.8.4.4"); err != nil {
			t.Fatalf("set: %v", err)
		}
		view, err := env.mgr.Create(ctx, CreateRequest{Name: "wg2", Address: "10.0.2.1/24"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if view.DNS != "8.8.4.4" {
			t.Errorf("DNS = %q, want stored default", view.DNS)
		}
	})

	t.Run("request dns wins", func(t *testing.T) {
		view, err := env.mgr.Create(ctx, CreateRequest{Name: "wg3", Address: "10.0.3.1/24", DNS: "9.9.9.9"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if view.DNS != "9.9.9.9" {
			t.Errorf("DNS = %q, want request value", view.DNS)
		}
	})
}

func TestCreateOmitsEmptyKeys(t *testing.T) {
	env := newTestEnvWithDefaults(t, settings.Defaults{PublicEndpoint: "vpn.example.com"})
	ctx := context.Background()

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc := env.loadDoc(t, "wg0")
	for _, key := range []string{wgconf.KeyDNS, wgconf.KeyPostUp, wgconf.KeyPostDown, wgconf.KeyPublicEndpoint} {
		if doc.Interface.Has(key) {
			t.Errorf("key %s written for empty value", key)
		}
	}
}

func TestCreateAlreadyExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"bad name", CreateRequest{Name: "wg 0", Address: "10.0.0.1/24"}},
		{"reserved name", CreateRequest{Name: "lo", Address: "10.0.0.1/24"}},
		{"missing address", CreateRequest{Name: "wg0"}},
		{"bad address", CreateRequest{Name: "wg0", Address: "10.0.0.1"}},
		{"bad port", CreateRequest{Name: "wg0", Address: "10.0.0.1/24", ListenPort: -5}},
		{"bad dns", CreateRequest{Name: "wg0", Address: "10.0.0.1/24", DNS: "1.1.1.1; rm"}},
		{"bad postup", CreateRequest{Name: "wg0", Address: "10.0.0.1/24", PostUp: "rm -rf /"}},
		{"endpoint with port", CreateRequest{Name: "wg0", Address: "10.0.0.1/24", PublicEndpoint: "vpn.example.com:51820"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.mgr.Create(ctx, tc.req); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24", DNS: "1.1.1.1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	port := 51900
	empty := ""
	view, err := env.mgr.Update(ctx, "wg0", UpdateRequest{ListenPort: &port, DNS: &empty})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if view.ListenPort != 51900 {
		t.Errorf("ListenPort = %d, want 51900", view.ListenPort)
	}
	if view.DNS != "" {
		t.Errorf("DNS = %q, want cleared", view.DNS)
	}

	doc := env.loadDoc(t, "wg0")
	if doc.Interface.Has(wgconf.KeyDNS) {
		t.Error("dns key not removed")
	}
	if got := doc.Interface.Get(wgconf.KeyListenPort); got != "51900" {
		t.Errorf("listenport = %q", got)
	}
	// The address never changes and the interface was down: no lifecycle
	// calls, no sync.
	if got := doc.Interface.Get(wgconf.KeyAddress); got != "10.0.0.1/24" {
		t.Errorf("address = %q", got)
	}
	if len(env.backend.syncCalls) != 0 || len(env.backend.activeCalls) != 0 {
		t.Errorf("unexpected backend calls: sync=%v active=%v", env.backend.syncCalls, env.backend.activeCalls)
	}
}

func TestUpdateLiveSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24", ListenPort: 51820}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	env.backend.active["wg0"] = true

	t.Run("field change syncs", func(t *testing.T) {
		dns := "9.9.9.9"
		if _, err := env.mgr.Update(ctx, "wg0", UpdateRequest{DNS: &dns}); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if len(env.backend.syncCalls) != 1 || env.backend.syncCalls[0] != "wg0" {
			t.Errorf("syncCalls = %v", env.backend.syncCalls)
		}
		if len(env.backend.activeCalls) != 0 {
			t.Errorf("activeCalls = %v", env.backend.activeCalls)
		}
	})

	t.Run("same port still syncs", func(t *testing.T) {
		port := 51820
		if _, err := env.mgr.Update(ctx, "wg0", UpdateRequest{ListenPort: &port}); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if len(env.backend.syncCalls) != 2 {
			t.Errorf("syncCalls = %v", env.backend.syncCalls)
		}
	})

	t.Run("port change bounces", func(t *testing.T) {
		port := 51999
		if _, err := env.mgr.Update(ctx, "wg0", UpdateRequest{ListenPort: &port}); err != nil {
			t.Fatalf("Update: %v", err)
		}
		want := []string{"wg0:down", "wg0:up"}
		if len(env.backend.activeCalls) != 2 || env.backend.activeCalls[0] != want[0] || env.backend.activeCalls[1] != want[1] {
			t.Errorf("activeCalls = %v, want %v", env.backend.activeCalls, want)
		}
		if len(env.backend.syncCalls) != 2 {
			t.Errorf("sync ran alongside restart: %v", env.backend.syncCalls)
		}
	})
}

func TestUpdateNotFound(t *testing.T) {
	env := newTestEnv(t)
	port := 51900
	_, err := env.mgr.Update(context.Background(), "wg9", UpdateRequest{ListenPort: &port})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.mgr.AddPeer(ctx, "wg0", PeerCreateRequest{Name: "laptop"}); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	env.backend.active["wg0"] = true

	if err := env.mgr.Delete(ctx, "wg0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "wg0.conf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("config file still present: %v", err)
	}
	if len(env.backend.activeCalls) != 1 || env.backend.activeCalls[0] != "wg0:down" {
		t.Errorf("activeCalls = %v", env.backend.activeCalls)
	}
	names, err := env.meta.DisplayNames("wg0")
	if err != nil {
		t.Fatalf("DisplayNames: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("metadata not purged: %v", names)
	}
}

func TestDeleteSurvivesDownFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	env.backend.active["wg0"] = true
	env.backend.setActiveErr = errors.New("wg-quick exploded")

	if err := env.mgr.Delete(ctx, "wg0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "wg0.conf")); !errors.Is(err, os.ErrNotExist) {
		t.Error("config file survived delete")
	}
}

func TestDeleteNotFound(t *testing.T) {
	env := newTestEnv(t)
	if err := env.mgr.Delete(context.Background(), "wg9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.mgr.SetActive(ctx, "wg9", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := env.mgr.SetActive(ctx, "wg0", true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if !env.backend.active["wg0"] {
		t.Error("interface not active")
	}
	if err := env.mgr.SetActive(ctx, "wg0", false); err != nil {
		t.Fatalf("SetActive down: %v", err)
	}
	if env.backend.active["wg0"] {
		t.Error("interface still active")
	}
}

func TestGetMergesRuntime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	first, err := env.mgr.AddPeer(ctx, "wg0", PeerCreateRequest{Name: "alpha"})
	if err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	second, err := env.mgr.AddPeer(ctx, "wg0", PeerCreateRequest{Name: "beta"})
	if err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	third, err := env.mgr.AddPeer(ctx, "wg0", PeerCreateRequest{Name: "gamma"})
	if err != nil {
		t.Fatalf("AddPeer: %v", err)
	}

	env.backend.active["wg0"] = true
	env.backend.snapshots["wg0"] = &wgstatus.Snapshot{
		Name:      "wg0",
		PublicKey: "live-pub",
		Peers: []wgstatus.PeerStatus{
			{
				PublicKey:       second.PublicKey,
				Endpoint:        "203.0.113.9:40000",
				LatestHandshake: testNow.Add(-90 * time.Second),
				TransferRx:      1000,
				TransferTx:      2000,
			},
			{PublicKey: "runtime-only", TransferRx: 999999},
		},
	}

	view, err := env.mgr.Get(ctx, "wg0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !view.Active {
		t.Error("view not active")
	}
	if view.PublicKey != "live-pub" {
		t.Errorf("PublicKey = %q, want live value", view.PublicKey)
	}
	if view.PeerCount != 3 {
		t.Fatalf("PeerCount = %d, want 3", view.PeerCount)
	}
	if view.OnlinePeerCount != 1 {
		t.Errorf("OnlinePeerCount = %d, want 1", view.OnlinePeerCount)
	}
	// Runtime-only peers never contribute.
	if view.TransferRx != 1000 || view.TransferTx != 2000 {
		t.Errorf("totals = %d/%d, want 1000/2000", view.TransferRx, view.TransferTx)
	}

	// Config order, not snapshot order.
	wantOrder := []string{first.PublicKey, second.PublicKey, third.PublicKey}
	for i, want := range wantOrder {
		if view.Peers[i].PublicKey != want {
			t.Errorf("peer[%d] = %q, want %q", i, view.Peers[i].PublicKey, want)
		}
	}

	alpha, beta := view.Peers[0], view.Peers[1]
	if alpha.Online || alpha.LatestHandshake != nil || alpha.TransferRx != 0 {
		t.Errorf("offline peer carries runtime state: %+v", alpha)
	}
	if alpha.Name != "alpha" {
		t.Errorf("alpha name = %q", alpha.Name)
	}
	if !beta.Online || beta.Endpoint != "203.0.113.9:40000" {
		t.Errorf("beta = %+v", beta)
	}
	if beta.LatestHandshake == nil || !beta.LatestHandshake.Equal(testNow.Add(-90*time.Second)) {
		t.Errorf("beta handshake = %v", beta.LatestHandshake)
	}
}

func TestGetLivenessGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.mgr.AddPeer(ctx, "wg0", PeerCreateRequest{Name: "laptop"}); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	// A snapshot exists but the interface is down: the probe must not run.
	env.backend.snapshots["wg0"] = &wgstatus.Snapshot{Name: "wg0", PublicKey: "stale"}

	view, err := env.mgr.Get(ctx, "wg0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if env.backend.statusCalls != 0 {
		t.Errorf("status probed %d times on an inactive interface", env.backend.statusCalls)
	}
	if view.Active || view.OnlinePeerCount != 0 || view.TransferRx != 0 {
		t.Errorf("view = %+v", view)
	}
	if view.PublicKey != "pub-1" {
		t.Errorf("PublicKey = %q, want derived pub-1", view.PublicKey)
	}
}

func TestGetOnlineWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := wgconf.NewDocument()
	doc.Interface.Set(wgconf.KeyPrivateKey, "SPRIV")
	doc.Interface.Set(wgconf.KeyAddress, "10.0.0.1/24")
	ages := []time.Duration{90 * time.Second, 179 * time.Second, 180 * time.Second, 200 * time.Second}
	var status []wgstatus.PeerStatus
	for i, age := range ages {
		key := fmt.Sprintf("peer-%d", i)
		fields := wgconf.NewFields()
		fields.Set(wgconf.KeyPublicKey, key)
		fields.Set(wgconf.KeyAllowedIPs, fmt.Sprintf("10.0.0.%d/32", i+2))
		doc.Peers = append(doc.Peers, fields)
		status = append(status, wgstatus.PeerStatus{PublicKey: key, LatestHandshake: testNow.Add(-age)})
	}
	env.saveDoc(t, "wg0", doc)
	env.backend.active["wg0"] = true
	env.backend.snapshots["wg0"] = &wgstatus.Snapshot{Name: "wg0", Peers: status}

	view, err := env.mgr.Get(ctx, "wg0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	wantOnline := []bool{true, true, false, false}
	for i, want := range wantOnline {
		if view.Peers[i].Online != want {
			t.Errorf("peer with %s old handshake: online = %v, want %v", ages[i], view.Peers[i].Online, want)
		}
	}
	if view.OnlinePeerCount != 2 {
		t.Errorf("OnlinePeerCount = %d, want 2", view.OnlinePeerCount)
	}
}

func TestGetNameFallbackAndPortDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := wgconf.NewDocument()
	doc.Interface.Set(wgconf.KeyPrivateKey, "SPRIV")
	doc.Interface.Set(wgconf.KeyAddress, "10.0.0.1/24")
	fields := wgconf.NewFields()
	fields.Set(wgconf.KeyPublicKey, "ABCDEFGHIJKLMNOP")
	fields.Set(wgconf.KeyAllowedIPs, "10.0.0.5/32")
	doc.Peers = append(doc.Peers, fields)
	env.saveDoc(t, "wg0", doc)

	view, err := env.mgr.Get(ctx, "wg0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.ListenPort != 51820 {
		t.Errorf("ListenPort = %d, want default", view.ListenPort)
	}
	if view.Peers[0].Name != "ABCDEFGH..." {
		t.Errorf("fallback name = %q", view.Peers[0].Name)
	}
}

func TestGetNotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.mgr.Get(context.Background(), "wg9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"wg1", "wg0"} {
		if _, err := env.mgr.Create(ctx, CreateRequest{Name: name, Address: "10.0.0.1/24"}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	// Noise the listing must shrug off: a non-conf file, a directory named
	// like a config, and a config whose name no interface could carry.
	if err := os.WriteFile(filepath.Join(env.dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(env.dir, "sub.conf"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.dir, "bad name.conf"), []byte("[Interface]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	views, err := env.mgr.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(views), views)
	}
	if views[0].Name != "wg0" || views[1].Name != "wg1" {
		t.Errorf("order = %s, %s", views[0].Name, views[1].Name)
	}
	for _, view := range views {
		if view.Peers != nil {
			t.Errorf("list view for %s carries peers", view.Name)
		}
	}
}

func TestPeersAndPeer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.mgr.Create(ctx, CreateRequest{Name: "wg0", Address: "10.0.0.1/24"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	peers, err := env.mgr.Peers(ctx, "wg0")
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	if peers == nil || len(peers) != 0 {
		t.Errorf("peers = %#v, want empty non-nil", peers)
	}

	added, err := env.mgr.AddPeer(ctx, "wg0", PeerCreateRequest{Name: "laptop"})
	if err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	peer, err := env.mgr.Peer(ctx, "wg0", added.PublicKey)
	if err != nil {
		t.Fatalf("Peer: %v", err)
	}
	if peer.Name != "laptop" || peer.AllowedIPs != "10.0.0.2/32" {
		t.Errorf("peer = %+v", peer)
	}

	if _, err := env.mgr.Peer(ctx, "wg0", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
