package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"wg-console/internal/audit"
	"wg-console/internal/vpn"
)

const maxHistoryHours = 168

func (s *Server) handleListInterfaces(w http.ResponseWriter, r *http.Request) {
	views, err := s.engine.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interfaces": views})
}

func (s *Server) handleCreateInterface(w http.ResponseWriter, r *http.Request) {
	var req vpn.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.engine.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordUser(r, audit.ActionCreateInterface, view.Name)
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetInterface(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateInterface(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req vpn.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.engine.Update(r.Context(), name, req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordUser(r, audit.ActionUpdateInterface, name)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteInterface(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.engine.Delete(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	s.recordUser(r, audit.ActionDeleteInterface, name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleInterfaceUp(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycle(w, r, true)
}

func (s *Server) handleInterfaceDown(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycle(w, r, false)
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request, active bool) {
	name := chi.URLParam(r, "name")
	if err := s.engine.SetActive(r.Context(), name, active); err != nil {
		writeError(w, err)
		return
	}
	action := audit.ActionInterfaceDown
	if active {
		action = audit.ActionInterfaceUp
	}
	s.recordUser(r, action, name)

	view, err := s.engine.Get(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// interfaceStats is the live transfer summary for one interface: the merged
// view reduced to the numbers a dashboard polls for.
type interfaceStats struct {
	Name            string      `json:"name"`
	Active          bool        `json:"is_active"`
	PeerCount       int         `json:"peer_count"`
	OnlinePeerCount int         `json:"active_peer_count"`
	TransferRx      int64       `json:"total_transfer_rx"`
	TransferTx      int64       `json:"total_transfer_tx"`
	Peers           []peerStats `json:"peers"`
}

type peerStats struct {
	PublicKey       string     `json:"public_key"`
	Online          bool       `json:"is_online"`
	TransferRx      int64      `json:"transfer_rx"`
	TransferTx      int64      `json:"transfer_tx"`
	LatestHandshake *time.Time `json:"latest_handshake,omitempty"`
}

func (s *Server) handleInterfaceStats(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := interfaceStats{
		Name:            view.Name,
		Active:          view.Active,
		PeerCount:       view.PeerCount,
		OnlinePeerCount: view.OnlinePeerCount,
		TransferRx:      view.TransferRx,
		TransferTx:      view.TransferTx,
		Peers:           make([]peerStats, 0, len(view.Peers)),
	}
	for _, peer := range view.Peers {
		out.Peers = append(out.Peers, peerStats{
			PublicKey:       peer.PublicKey,
			Online:          peer.Online,
			TransferRx:      peer.TransferRx,
			TransferTx:      peer.TransferTx,
			LatestHandshake: peer.LatestHandshake,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInterfaceHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := vpn.ValidateInterfaceName(name); err != nil {
		writeError(w, err)
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, fmt.Errorf("%w: hours must be a positive integer", vpn.ErrValidation))
			return
		}
		hours = parsed
	}
	if hours > maxHistoryHours {
		hours = maxHistoryHours
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	samples, err := s.sampler.History(name, since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": samples})
}
