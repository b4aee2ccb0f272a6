package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".conf"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestMemoryBackend_Keypair(t *testing.T) {
	backend := NewMemoryBackend(t.TempDir())
	ctx := context.Background()

	privateKey, publicKey, err := backend.GenerateKeypair(ctx)
	if err != nil {
		t.Fatalf("GenerateKeypair returned error: %v", err)
	}
	if len(privateKey) != 44 || len(publicKey) != 44 {
		t.Fatalf("expected base64 keys, got %q / %q", privateKey, publicKey)
	}

	derived, err := backend.PublicKey(ctx, privateKey)
	if err != nil {
		t.Fatalf("PublicKey returned error: %v", err)
	}
	if derived != publicKey {
		t.Fatalf("derived key %q does not match generated %q", derived, publicKey)
	}

	if _, err := backend.PublicKey(ctx, "not-a-key"); err == nil {
		t.Fatal("expected error for malformed private key")
	}
}

func TestMemoryBackend_ActiveSet(t *testing.T) {
	backend := NewMemoryBackend(t.TempDir())
	ctx := context.Background()

	if backend.IsActive(ctx, "wg0") {
		t.Fatal("fresh backend must report inactive")
	}
	if err := backend.SetActive(ctx, "wg0", true); err != nil {
		t.Fatalf("SetActive returned error: %v", err)
	}
	if !backend.IsActive(ctx, "wg0") {
		t.Fatal("expected wg0 active")
	}
	if err := backend.SetActive(ctx, "wg0", false); err != nil {
		t.Fatalf("SetActive returned error: %v", err)
	}
	if backend.IsActive(ctx, "wg0") {
		t.Fatal("expected wg0 inactive after down")
	}
}

func TestMemoryBackend_Status(t *testing.T) {
	dir := t.TempDir()
	backend := NewMemoryBackend(dir)
	ctx := context.Background()

	privateKey, publicKey, err := backend.GenerateKeypair(ctx)
	if err != nil {
		t.Fatalf("GenerateKeypair returned error: %v", err)
	}
	writeTestConfig(t, dir, "wg0", `[Interface]
PrivateKey = `+privateKey+`
Address = 10.0.0.1/24
ListenPort = 51900

[Peer]
PublicKey = peerOne=
AllowedIPs = 10.0.0.2/32
PersistentKeepalive = 25
`)

	if snapshot, err := backend.Status(ctx, "wg0"); snapshot != nil || err != nil {
		t.Fatalf("inactive interface must have no status, got %+v err=%v", snapshot, err)
	}

	if err := backend.SetActive(ctx, "wg0", true); err != nil {
		t.Fatalf("SetActive returned error: %v", err)
	}
	snapshot, err := backend.Status(ctx, "wg0")
	if err != nil || snapshot == nil {
		t.Fatalf("expected snapshot, got %+v err=%v", snapshot, err)
	}
	if snapshot.ListenPort != 51900 {
		t.Fatalf("expected listen port from config, got %d", snapshot.ListenPort)
	}
	if snapshot.PublicKey != publicKey {
		t.Fatalf("expected derived server key %q, got %q", publicKey, snapshot.PublicKey)
	}
	if len(snapshot.Peers) != 1 || snapshot.Peers[0].PublicKey != "peerOne=" {
		t.Fatalf("unexpected peers: %+v", snapshot.Peers)
	}
	if snapshot.Peers[0].LatestHandshake.IsZero() {
		t.Fatal("fabricated peers should have a recent handshake")
	}
	if snapshot.Peers[0].PersistentKeepalive != 25 {
		t.Fatalf("expected keepalive from config, got %d", snapshot.Peers[0].PersistentKeepalive)
	}

	again, err := backend.Status(ctx, "wg0")
	if err != nil {
		t.Fatalf("second Status returned error: %v", err)
	}
	if again.Peers[0].TransferRx <= snapshot.Peers[0].TransferRx {
		t.Fatalf("transfer counters must grow between probes: %d then %d", snapshot.Peers[0].TransferRx, again.Peers[0].TransferRx)
	}
}
