// Package system is the boundary to the host's WireGuard tooling. Backend is
// the capability set the reconciliation engine depends on; ExecBackend drives
// the real wg/wg-quick binaries and MemoryBackend simulates them for
// development hosts and tests.
package system

import (
	"context"

	"wg-console/internal/wgstatus"
)

// Backend abstracts every host interaction the engine performs. All
// implementations must be safe for concurrent use.
type Backend interface {
	// GenerateKeypair returns a new private/public key pair.
	GenerateKeypair(ctx context.Context) (privateKey, publicKey string, err error)
	// PublicKey derives the public key for a private key. An empty private
	// key derives an empty public key without error.
	PublicKey(ctx context.Context, privateKey string) (string, error)
	// Status probes runtime state. (nil, nil) means the interface has no
	// runtime state right now; it is not an error.
	Status(ctx context.Context, name string) (*wgstatus.Snapshot, error)
	// IsActive reports whether the interface exists on the host.
	IsActive(ctx context.Context, name string) bool
	// SetActive brings the interface up or down.
	SetActive(ctx context.Context, name string, active bool) error
	// Sync pushes the config file's peer set into the running interface
	// without disrupting established sessions.
	Sync(ctx context.Context, name, configPath string) error
	// Installed reports whether the WireGuard tooling is available.
	Installed(ctx context.Context) bool
	// Kind names the backend for diagnostics ("exec" or "memory").
	Kind() string
}
