package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"wg-console/internal/audit"
	"wg-console/internal/auth"
	"wg-console/internal/peermeta"
	"wg-console/internal/util"
	"wg-console/internal/version"
	"wg-console/internal/vpn"
)

const exportAuditLimit = 10000

// versioner is implemented by backends that can report the host tooling
// version. The in-memory backend has nothing to report.
type versioner interface {
	Version(ctx context.Context) string
}

type systemInfo struct {
	Version          string `json:"version"`
	Commit           string `json:"commit"`
	BuildTime        string `json:"build_time"`
	GoVersion        string `json:"go_version"`
	OS               string `json:"os"`
	Arch             string `json:"arch"`
	Backend          string `json:"backend"`
	WireGuardVersion string `json:"wireguard_version,omitempty"`
	WANIPv4          string `json:"wan_ipv4,omitempty"`
	InterfaceCount   int    `json:"interface_count"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	views, err := s.engine.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	info := version.Current()
	out := systemInfo{
		Version:        info.Version,
		Commit:         info.Commit,
		BuildTime:      info.BuildTime,
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		Backend:        s.backend.Kind(),
		InterfaceCount: len(views),
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
	}
	if v, ok := s.backend.(versioner); ok && s.backend.Installed(r.Context()) {
		out.WireGuardVersion = v.Version(r.Context())
	}
	if ip, err := util.DetectWANIPv4(); err == nil {
		out.WANIPv4 = ip
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", vpn.ErrValidation))
			return
		}
		limit = parsed
	}
	entries, err := s.audit.List(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// exportPayload is the admin data snapshot: accounts without hashes, peer
// rows without keys, settings, and the audit trail.
type exportPayload struct {
	ExportedAt time.Time         `json:"exported_at"`
	Version    string            `json:"version"`
	Users      []auth.User       `json:"users"`
	Peers      []peermeta.Entry  `json:"peers"`
	Settings   map[string]string `json:"settings"`
	AuditLog   []audit.Entry     `json:"audit_log"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	users, err := s.auth.Users()
	if err != nil {
		writeError(w, err)
		return
	}
	peers, err := s.meta.All()
	if err != nil {
		writeError(w, err)
		return
	}
	allSettings, err := s.settings.All()
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.audit.List(exportAuditLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	payload := exportPayload{
		ExportedAt: now,
		Version:    version.Current().Version,
		Users:      users,
		Peers:      peers,
		Settings:   allSettings,
		AuditLog:   entries,
	}

	s.recordUser(r, audit.ActionDataExport, "")
	filename := "wg-console-export-" + now.Format("20060102-150405") + ".json"
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writeJSON(w, http.StatusOK, payload)
}

// handleUpdateCheck reports whether a newer release is published. Failures
// here are upstream failures, not ours, so they map to 502.
func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	status, err := s.updates.Check(r.Context())
	if err != nil {
		logrus.Warnf("update check failed: %v", err)
		writeJSON(w, http.StatusBadGateway, errorBody(errors.New("update check failed")))
		return
	}
	writeJSON(w, http.StatusOK, status)
}
