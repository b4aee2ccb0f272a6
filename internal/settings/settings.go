// Package settings stores server-wide preferences in the settings table
// and merges them with the configured defaults. Values written by the API
// are validated here so every caller sees the same rules.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Setting keys.
const (
	KeyPublicEndpoint   = "public_endpoint"
	KeyDefaultDNS       = "wg_default_dns"
	KeyRetentionEnabled = "data_retention_enabled"
	KeyRetentionDays    = "data_retention_logs_days"
)

const defaultRetentionDays = 90

// ErrInvalid wraps all validation failures from this package.
var ErrInvalid = errors.New("invalid setting")

// endpointPattern allows hostnames and IPv4 literals. Ports are rejected
// separately so the error can say so.
var endpointPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Defaults are the fallback values applied when a key has no database row.
// They come from the environment configuration.
type Defaults struct {
	PublicEndpoint string
	DNS            string
	ConfigDir      string
}

// Server is the merged server-settings view returned by the API.
type Server struct {
	PublicEndpoint string `json:"public_endpoint"`
	DefaultDNS     string `json:"wg_default_dns"`
	ConfigDir      string `json:"wg_config_path"`
}

// ServerUpdate carries a partial settings update. Nil fields are left
// untouched.
type ServerUpdate struct {
	PublicEndpoint *string `json:"public_endpoint"`
	DefaultDNS     *string `json:"wg_default_dns"`
}

// Retention is the data-retention policy for audit entries.
type Retention struct {
	Enabled bool `json:"enabled"`
	Days    int  `json:"logs_retention_days"`
}

// Store reads and writes settings rows.
type Store struct {
	db       *sql.DB
	defaults Defaults
}

// NewStore creates a settings store with the given fallback defaults.
func NewStore(db *sql.DB, defaults Defaults) *Store {
	return &Store{db: db, defaults: defaults}
}

// Defaults returns the configured fallback values.
func (s *Store) Defaults() Defaults {
	return s.defaults
}

// Lookup returns the stored value for key and whether a row exists.
func (s *Store) Lookup(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores key=value, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			updated_at = strftime('%s','now')
	`, key, value)
	return err
}

// All returns every stored setting.
func (s *Store) All() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}

// PublicEndpoint returns the effective public endpoint host: the stored
// override when present, the configured default otherwise. Values written
// by earlier releases may still carry a port ("vpn.example.com:51820");
// those are migrated in place by stripping everything after the last colon
// and persisting the cleaned host back.
func (s *Store) PublicEndpoint() (string, error) {
	value, ok, err := s.Lookup(KeyPublicEndpoint)
	if err != nil {
		return "", err
	}
	if !ok {
		value = s.defaults.PublicEndpoint
	}
	if idx := strings.LastIndex(value, ":"); idx >= 0 {
		value = value[:idx]
		if ok {
			if err := s.Set(KeyPublicEndpoint, value); err != nil {
				return "", err
			}
		}
	}
	return value, nil
}

// DefaultDNS returns the DNS servers new interfaces are created with:
// the stored override when present, the configured default otherwise.
func (s *Store) DefaultDNS() (string, error) {
	value, ok, err := s.Lookup(KeyDefaultDNS)
	if err != nil {
		return "", err
	}
	if !ok {
		return s.defaults.DNS, nil
	}
	return value, nil
}

// MergedServer returns the merged server-settings view.
func (s *Store) MergedServer() (Server, error) {
	endpoint, err := s.PublicEndpoint()
	if err != nil {
		return Server{}, err
	}
	dns, err := s.DefaultDNS()
	if err != nil {
		return Server{}, err
	}
	return Server{
		PublicEndpoint: endpoint,
		DefaultDNS:     dns,
		ConfigDir:      s.defaults.ConfigDir,
	}, nil
}

// UpdateServer validates and applies a partial update, returning the new
// merged view.
func (s *Store) UpdateServer(upd ServerUpdate) (Server, error) {
	if upd.PublicEndpoint != nil {
		if err := ValidateEndpoint(*upd.PublicEndpoint); err != nil {
			return Server{}, err
		}
		if err := s.Set(KeyPublicEndpoint, *upd.PublicEndpoint); err != nil {
			return Server{}, err
		}
	}
	if upd.DefaultDNS != nil {
		if err := ValidateDNSList(*upd.DefaultDNS); err != nil {
			return Server{}, err
		}
		if err := s.Set(KeyDefaultDNS, *upd.DefaultDNS); err != nil {
			return Server{}, err
		}
	}
	return s.MergedServer()
}

// Retention returns the stored data-retention policy, defaulting to
// disabled with 90 days.
func (s *Store) Retention() (Retention, error) {
	ret := Retention{Enabled: false, Days: defaultRetentionDays}

	enabled, ok, err := s.Lookup(KeyRetentionEnabled)
	if err != nil {
		return ret, err
	}
	if ok {
		ret.Enabled = strings.EqualFold(enabled, "true")
	}
	days, ok, err := s.Lookup(KeyRetentionDays)
	if err != nil {
		return ret, err
	}
	if ok {
		if n, err := strconv.Atoi(days); err == nil {
			ret.Days = n
		}
	}
	return ret, nil
}

// SetRetention validates and stores the retention policy.
func (s *Store) SetRetention(ret Retention) error {
	if ret.Days < 1 || ret.Days > 365 {
		return fmt.Errorf("%w: retention days must be between 1 and 365", ErrInvalid)
	}
	enabled := "false"
	if ret.Enabled {
		enabled = "true"
	}
	if err := s.Set(KeyRetentionEnabled, enabled); err != nil {
		return err
	}
	return s.Set(KeyRetentionDays, strconv.Itoa(ret.Days))
}

// Timezone returns the display timezone preference for a user, "UTC" when
// unset.
func (s *Store) Timezone(userID int64) (string, error) {
	value, ok, err := s.Lookup(timezoneKey(userID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "UTC", nil
	}
	return value, nil
}

// SetTimezone stores a user's display timezone preference.
func (s *Store) SetTimezone(userID int64, tz string) error {
	return s.Set(timezoneKey(userID), tz)
}

func timezoneKey(userID int64) string {
	return fmt.Sprintf("user_%d_timezone", userID)
}

// ValidateEndpoint checks a public endpoint value: a hostname or IPv4
// address without a port. Empty clears the override and is allowed.
func ValidateEndpoint(v string) error {
	if v == "" {
		return nil
	}
	if strings.Contains(v, ":") {
		return fmt.Errorf("%w: public endpoint must not include a port; the port is set per interface", ErrInvalid)
	}
	if !endpointPattern.MatchString(v) {
		return fmt.Errorf("%w: invalid hostname or IP address", ErrInvalid)
	}
	return nil
}

// ValidateDNSList checks a comma-separated list of IPv4 addresses.
// Empty is allowed.
func ValidateDNSList(v string) error {
	if v == "" {
		return nil
	}
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		parts := strings.Split(entry, ".")
		if len(parts) != 4 {
			return fmt.Errorf("%w: invalid DNS server %q, expected IPv4 address", ErrInvalid, entry)
		}
		for _, part := range parts {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || n > 255 {
				return fmt.Errorf("%w: invalid DNS server %q, octets must be 0-255", ErrInvalid, entry)
			}
		}
	}
	return nil
}
