// Package admin serves the local control surface for the playback API:
// reading its state, toggling it and listing named remote controllers.
package admin

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mcsgroi/Google-Play-Music-Desktop-Player-UNOFFICIAL/pkg/models"
)

// Status is the read side of the playback API controller
type Status interface {
	Enabled() bool
	Port() int
	ClientCount() int
}

// ControllerLister lists remote controllers registered with connect
type ControllerLister interface {
	List() []models.RemoteController
}

// Response is the envelope for every admin reply
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse describes the playback API
type StatusResponse struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
	Clients int  `json:"clients"`
}

// Server handles admin requests. Toggles are handed to whoever consumes the
// toggles channel; the request returns once the event is queued.
type Server struct {
	status      Status
	toggles     chan<- bool
	controllers ControllerLister
	logger      log.Logger
}

// NewServer creates an admin server. controllers may be nil.
func NewServer(status Status, toggles chan<- bool, controllers ControllerLister, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{
		status:      status,
		toggles:     toggles,
		controllers: controllers,
		logger:      logger,
	}
}

// Handler returns the admin routes, all restricted to loopback callers
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/playback-api", LocalOnly(s.handlePlaybackAPI))
	mux.HandleFunc("/api/controllers", LocalOnly(s.handleControllers))
	return mux
}

// IsLocalRequest checks if a request is from localhost. Forwarding headers
// are ignored: only the socket peer counts.
func IsLocalRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	return ip.IsLoopback()
}

// LocalOnly rejects requests that do not come from a loopback address
func LocalOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !IsLocalRequest(r) {
			writeJSON(w, http.StatusForbidden, Response{Error: "Admin access is limited to localhost"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handlePlaybackAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, StatusResponse{
			Enabled: s.status.Enabled(),
			Port:    s.status.Port(),
			Clients: s.status.ClientCount(),
		})

	case http.MethodPost:
		var req struct {
			State *bool `json:"state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.State == nil {
			writeJSON(w, http.StatusBadRequest, Response{Error: `Expected {"state": true|false}`})
			return
		}

		select {
		case s.toggles <- *req.State:
			level.Info(s.logger).Log("msg", "playback API toggle requested", "state", *req.State)
			writeJSON(w, http.StatusAccepted, Response{Success: true})
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, Response{Error: "Toggle not accepted"})
		}

	default:
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "Method not allowed"})
	}
}

func (s *Server) handleControllers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "Method not allowed"})
		return
	}
	list := []models.RemoteController{}
	if s.controllers != nil {
		list = append(list, s.controllers.List()...)
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
