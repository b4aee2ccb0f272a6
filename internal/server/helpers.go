package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"wg-console/internal/auth"
	"wg-console/internal/peermeta"
	"wg-console/internal/settings"
	"wg-console/internal/vpn"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

// writeError maps domain sentinels onto status codes. Anything unmapped is
// a 500; the detail goes to the log, the client gets a generic message.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vpn.ErrValidation),
		errors.Is(err, settings.ErrInvalid),
		errors.Is(err, auth.ErrWeakPassword):
		writeJSON(w, http.StatusBadRequest, errorBody(err))
	case errors.Is(err, vpn.ErrNotFound),
		errors.Is(err, peermeta.ErrNoPrivateKey),
		errors.Is(err, auth.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err))
	case errors.Is(err, vpn.ErrAlreadyExists),
		errors.Is(err, auth.ErrSetupComplete):
		writeJSON(w, http.StatusConflict, errorBody(err))
	case errors.Is(err, auth.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody(err))
	case errors.Is(err, vpn.ErrAllocationExhausted):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err))
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorBody(err))
	default:
		logrus.Errorf("Unhandled API error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

// decodeJSON decodes the request body into dst. Malformed bodies surface
// as validation errors so they map to 400.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", vpn.ErrValidation)
	}
	return nil
}

// peerKeyParam returns the {publicKey} URL parameter with percent escaping
// removed. Base64 keys contain '/' and '+', so clients send them escaped
// and chi leaves escaped segments untouched.
func peerKeyParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "publicKey")
	key, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed public key", vpn.ErrValidation)
	}
	return key, nil
}

// clientIP strips the port from RemoteAddr. The RealIP middleware has
// already substituted any forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// record appends an audit entry. Failures must not abort the action being
// recorded, so they are logged and swallowed.
func (s *Server) record(r *http.Request, userID int64, action, details string) {
	if err := s.audit.Record(userID, action, details, clientIP(r)); err != nil {
		logrus.Warnf("Audit record failed: %v", err)
	}
}

// recordUser appends an audit entry attributed to the authenticated user.
func (s *Server) recordUser(r *http.Request, action, details string) {
	user, _ := auth.UserFrom(r.Context())
	s.record(r, user.ID, action, details)
}

// requireAdmin writes a 403 and returns false when the caller is not an
// admin.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	user, ok := auth.UserFrom(r.Context())
	if !ok || !user.IsAdmin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin access required"})
		return false
	}
	return true
}
