package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"wg-console/internal/audit"
	"wg-console/internal/vpn"
)

const qrImageSize = 256

func (s *Server) handleListPeers(w http.ResponseWriter, r *http.Request) {
	peers, err := s.engine.Peers(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"peers": peers})
}

func (s *Server) handleAddPeer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req vpn.PeerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	peer, err := s.engine.AddPeer(r.Context(), name, req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordUser(r, audit.ActionAddPeer, name+" "+peer.PublicKey)
	writeJSON(w, http.StatusCreated, peer)
}

func (s *Server) handleNextIP(w http.ResponseWriter, r *http.Request) {
	ip, err := s.engine.NextAvailableIP(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ip": ip})
}

func (s *Server) handleGetPeer(w http.ResponseWriter, r *http.Request) {
	key, err := peerKeyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	peer, err := s.engine.Peer(r.Context(), chi.URLParam(r, "name"), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, peer)
}

func (s *Server) handleUpdatePeer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	key, err := peerKeyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req vpn.PeerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	peer, err := s.engine.UpdatePeer(r.Context(), name, key, req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordUser(r, audit.ActionUpdatePeer, name+" "+key)
	writeJSON(w, http.StatusOK, peer)
}

func (s *Server) handleRemovePeer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	key, err := peerKeyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.RemovePeer(r.Context(), name, key); err != nil {
		writeError(w, err)
		return
	}
	s.recordUser(r, audit.ActionRemovePeer, name+" "+key)
	w.WriteHeader(http.StatusNoContent)
}

// handlePeerConfig renders the peer's client config as a download. Only
// server-generated peers have a stored private key; everything else is 404.
func (s *Server) handlePeerConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	key, err := peerKeyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rendered, err := s.renderClientConfig(r, name, key)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.configFilename(name, key)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, rendered)
}

// handlePeerQRToken mints a short-lived token a phone can trade for the QR
// image without carrying the session.
func (s *Server) handlePeerQRToken(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	key, err := peerKeyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	// Mint only for peers that can actually be rendered.
	if _, err := s.meta.PrivateKey(name, key); err != nil {
		writeError(w, err)
		return
	}
	token, err := s.auth.NewQRToken(name, key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qr_token": token})
}

func (s *Server) handleQRImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	name, key, err := s.auth.ParseQRToken(req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	rendered, err := s.renderClientConfig(r, name, key)
	if err != nil {
		writeError(w, err)
		return
	}
	png, err := qrcode.Encode(rendered, qrcode.Low, qrImageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) renderClientConfig(r *http.Request, name, publicKey string) (string, error) {
	privateKey, err := s.meta.PrivateKey(name, publicKey)
	if err != nil {
		return "", err
	}
	return s.engine.ClientConfig(r.Context(), name, publicKey, privateKey)
}

// configFilename derives a safe download filename from the peer's display
// name, falling back to the interface name.
func (s *Server) configFilename(iface, publicKey string) string {
	base := ""
	if names, err := s.meta.DisplayNames(iface); err == nil {
		base = names[publicKey]
	}

	var b strings.Builder
	for _, c := range base {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		case c == ' ':
			b.WriteByte('-')
		}
	}
	name := b.String()
	if name == "" {
		name = iface + "-peer"
	}
	return name + ".conf"
}
