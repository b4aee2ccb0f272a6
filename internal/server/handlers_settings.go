package server

import (
	"fmt"
	"net/http"
	"time"

	"wg-console/internal/audit"
	"wg-console/internal/auth"
	"wg-console/internal/settings"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	merged, err := s.settings.MergedServer()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var req settings.ServerUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	updated, err := s.settings.UpdateServer(req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordUser(r, audit.ActionSettingsUpdate, "server")
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleGetRetention(w http.ResponseWriter, _ *http.Request) {
	ret, err := s.settings.Retention()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleUpdateRetention(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var req settings.Retention
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.settings.SetRetention(req); err != nil {
		writeError(w, err)
		return
	}
	s.recordUser(r, audit.ActionSettingsUpdate, "retention")
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetTimezone(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	tz, err := s.settings.Timezone(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"timezone": tz})
}

func (s *Server) handleUpdateTimezone(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	var req struct {
		Timezone string `json:"timezone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil || req.Timezone == "" {
		writeError(w, fmt.Errorf("%w: unknown timezone %q", settings.ErrInvalid, req.Timezone))
		return
	}
	if err := s.settings.SetTimezone(user.ID, req.Timezone); err != nil {
		writeError(w, err)
		return
	}
	s.recordUser(r, audit.ActionSettingsUpdate, "timezone")
	writeJSON(w, http.StatusOK, map[string]string{"timezone": req.Timezone})
}
