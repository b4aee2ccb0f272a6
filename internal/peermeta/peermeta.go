// Package peermeta persists per-peer metadata that WireGuard config files
// cannot carry: display names and sealed copies of server-generated
// private keys, keyed by interface name and peer public key.
package peermeta

import (
	"database/sql"
	"errors"
	"fmt"

	"wg-console/internal/secrets"
)

// ErrNoPrivateKey is returned when no private key is stored for a peer.
// Peers that supplied their own public key never have one.
var ErrNoPrivateKey = errors.New("peermeta: no private key stored")

// Store reads and writes peer metadata rows. Private keys are sealed with
// the configured passphrase before they touch the database.
type Store struct {
	db         *sql.DB
	passphrase string
}

// NewStore creates a metadata store on top of db.
func NewStore(db *sql.DB, passphrase string) *Store {
	return &Store{db: db, passphrase: passphrase}
}

// Upsert records the display name for a peer and, when privateKey is
// non-empty, a sealed copy of the key. An empty privateKey clears any
// stored key, so renames should go through Rename instead.
func (s *Store) Upsert(iface, publicKey, name, privateKey string) error {
	var sealed sql.NullString
	if privateKey != "" {
		v, err := secrets.Seal(privateKey, s.passphrase)
		if err != nil {
			return fmt.Errorf("seal private key: %w", err)
		}
		sealed = sql.NullString{String: v, Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO peer_metadata (interface_name, public_key, name, private_key)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(interface_name, public_key)
		DO UPDATE SET name = excluded.name, private_key = excluded.private_key
	`, iface, publicKey, name, sealed)
	return err
}

// Rename updates the display name without touching the stored key.
func (s *Store) Rename(iface, publicKey, name string) error {
	_, err := s.db.Exec(`
		INSERT INTO peer_metadata (interface_name, public_key, name)
		VALUES (?, ?, ?)
		ON CONFLICT(interface_name, public_key)
		DO UPDATE SET name = excluded.name
	`, iface, publicKey, name)
	return err
}

// DisplayNames returns the stored names for all peers of an interface,
// keyed by public key.
func (s *Store) DisplayNames(iface string) (map[string]string, error) {
	rows, err := s.db.Query(`
		SELECT public_key, name
		FROM peer_metadata
		WHERE interface_name = ?
	`, iface)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var key, name string
		if err := rows.Scan(&key, &name); err != nil {
			return nil, err
		}
		names[key] = name
	}
	return names, rows.Err()
}

// Entry is one stored peer row with the key material left out, as exposed
// by data exports.
type Entry struct {
	Interface string `json:"interface"`
	PublicKey string `json:"public_key"`
	Name      string `json:"name"`
}

// All returns every stored peer row across all interfaces, sorted by
// interface and name. Sealed keys are never included.
func (s *Store) All() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT interface_name, public_key, name
		FROM peer_metadata
		ORDER BY interface_name, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Interface, &e.PublicKey, &e.Name); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PrivateKey returns the unsealed private key stored for a peer.
func (s *Store) PrivateKey(iface, publicKey string) (string, error) {
	var sealed sql.NullString
	err := s.db.QueryRow(`
		SELECT private_key
		FROM peer_metadata
		WHERE interface_name = ? AND public_key = ?
	`, iface, publicKey).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoPrivateKey
	}
	if err != nil {
		return "", err
	}
	if !sealed.Valid || sealed.String == "" {
		return "", ErrNoPrivateKey
	}
	return secrets.Open(sealed.String, s.passphrase)
}

// Delete removes the metadata row for a single peer.
func (s *Store) Delete(iface, publicKey string) error {
	_, err := s.db.Exec(`
		DELETE FROM peer_metadata
		WHERE interface_name = ? AND public_key = ?
	`, iface, publicKey)
	return err
}

// DeleteInterface removes all metadata rows for an interface.
func (s *Store) DeleteInterface(iface string) error {
	_, err := s.db.Exec(`
		DELETE FROM peer_metadata
		WHERE interface_name = ?
	`, iface)
	return err
}
