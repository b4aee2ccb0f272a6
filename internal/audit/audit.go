// Package audit records administrative actions for later review.
package audit

import (
	"database/sql"
	"time"
)

// Action names recorded by the API handlers.
const (
	ActionLogin           = "login"
	ActionLogout          = "logout"
	ActionPasswordChange  = "password_change"
	ActionCreateInterface = "create_interface"
	ActionUpdateInterface = "update_interface"
	ActionDeleteInterface = "delete_interface"
	ActionInterfaceUp     = "interface_up"
	ActionInterfaceDown   = "interface_down"
	ActionAddPeer         = "add_peer"
	ActionUpdatePeer      = "update_peer"
	ActionRemovePeer      = "remove_peer"
	ActionSettingsUpdate  = "settings_update"
	ActionDataExport      = "data_export"
)

const defaultListLimit = 100

// Entry is a single recorded action. Username is resolved from the users
// table and empty when the user has since been deleted.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder writes and reads audit log rows.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a recorder on top of db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one entry. A non-positive userID records an anonymous
// entry; the column is a nullable reference, not zero. Failures here must
// not abort the action being recorded, so callers typically log and
// continue on error.
func (r *Recorder) Record(userID int64, action, details, ipAddress string) error {
	var user sql.NullInt64
	if userID > 0 {
		user = sql.NullInt64{Int64: userID, Valid: true}
	}
	_, err := r.db.Exec(`
		INSERT INTO audit_logs (user_id, action, details, ip_address)
		VALUES (?, ?, ?, ?)
	`, user, action, details, ipAddress)
	return err
}

// List returns the most recent entries, newest first. A limit of zero or
// less applies the default of 100.
func (r *Recorder) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.Query(`
		SELECT a.id, a.user_id, COALESCE(u.username, ''), a.action,
		       COALESCE(a.details, ''), COALESCE(a.ip_address, ''), a.created_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e       Entry
			userID  sql.NullInt64
			created int64
		)
		if err := rows.Scan(&e.ID, &userID, &e.Username, &e.Action, &e.Details, &e.IPAddress, &created); err != nil {
			return nil, err
		}
		if userID.Valid {
			e.UserID = userID.Int64
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
