package server

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"wg-console/internal/audit"
	"wg-console/internal/auth"
	"wg-console/internal/metrics"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSetupStatus(w http.ResponseWriter, _ *http.Request) {
	required, err := s.auth.SetupRequired()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"setup_required": required})
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.auth.Setup(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	session, err := s.auth.Login(req.Username, req.Password, clientIP(r))
	if err != nil {
		result := "failure"
		if errors.Is(err, auth.ErrRateLimited) {
			result = "rate_limited"
		}
		metrics.RecordLogin(result)
		writeError(w, err)
		return
	}
	metrics.RecordLogin("success")
	setRefreshCookie(w, session)
	s.record(r, session.User.ID, audit.ActionLogin, session.User.Username)
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, auth.ErrInvalidToken)
		return
	}
	session, err := s.auth.Refresh(cookie.Value)
	if err != nil {
		clearRefreshCookie(w)
		writeError(w, err)
		return
	}
	setRefreshCookie(w, session)
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.RefreshCookieName); err == nil && cookie.Value != "" {
		if err := s.auth.Logout(cookie.Value); err != nil {
			logrus.Warnf("Refresh token revocation failed: %v", err)
		} else {
			s.record(r, 0, audit.ActionLogout, "")
		}
	}
	clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		writeError(w, auth.ErrInvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		writeError(w, auth.ErrInvalidToken)
		return
	}
	var req passwordChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.auth.ChangePassword(user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	s.record(r, user.ID, audit.ActionPasswordChange, "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// setRefreshCookie installs the rotating refresh token. It never appears in
// a JSON body: HttpOnly keeps it away from scripts.
func setRefreshCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshCookieName,
		Value:    session.RefreshToken,
		Path:     auth.RefreshCookiePath,
		Expires:  session.RefreshExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshCookieName,
		Value:    "",
		Path:     auth.RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
