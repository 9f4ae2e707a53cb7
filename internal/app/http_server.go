package app

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/frudas24/camslice/internal/session"
	"github.com/frudas24/camslice/internal/web"
)

// RegisterRoutes wires API and static handlers onto the mux.
func (a *App) RegisterRoutes(mux *http.ServeMux, staticDir string) {
	if staticDir == "" {
		staticDir = filepath.Join("internal", "web", "static")
	}

	mux.HandleFunc("/api/stream/start", a.handleStreamStart)
	mux.HandleFunc("/api/stream/stop", a.handleStreamStop)
	mux.HandleFunc("/api/state", a.handleState)
	mux.HandleFunc("/api/crop/cleared", a.handleCropCleared)
	mux.Handle("/ws/control", a.Control())
	mux.HandleFunc("/mjpeg/view", a.ViewStream().Handler)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/favicon.ico", handleFavicon)

	mux.Handle("/", staticFileServer(staticDir))
}

type startRequest struct {
	Endpoint string `json:"endpoint"`
}

type stateResponse struct {
	Active      bool              `json:"active"`
	Transport   string            `json:"frameTransport"`
	Device      bool              `json:"device"`
	Subscribers int               `json:"viewers"`
	Session     *session.Snapshot `json:"session,omitempty"`
}

// handleStreamStart opens a stream, replacing the active one.
func (a *App) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	sess, err := a.StartStream(r.Context(), req.Endpoint)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	snap, err := sess.Snapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// handleStreamStop stops the active stream.
func (a *App) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stopped := a.StopStream()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true, "stopped": stopped})
}

// handleState returns the active session state.
func (a *App) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := stateResponse{
		Transport:   a.cfg.FrameTransport,
		Device:      a.device != nil,
		Subscribers: a.stream.Subscribers(),
	}
	if sess := a.Session(); sess != nil {
		snap, err := sess.Snapshot()
		if err == nil {
			resp.Active = true
			resp.Session = &snap
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleCropCleared tells the active session the device dropped its crop.
func (a *App) handleCropCleared(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess := a.Session()
	if sess == nil {
		http.Error(w, "no active stream", http.StatusConflict)
		return
	}
	if err := sess.ExternalCropReset(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// staticFileServer returns a handler for static assets, preferring disk then embed.
func staticFileServer(staticDir string) http.Handler {
	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			return http.FileServer(http.Dir(staticDir))
		}
	}

	embedded, err := web.StaticFS()
	if err != nil {
		log.Printf("static assets unavailable: %v", err)
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(embedded))
}

// handleHealth answers liveness probes.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// handleFavicon avoids noisy 404s for the default browser request.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
