// Package server exposes the recording session over a small JSON API
// so a browser UI on the same network can drive it.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/soundlabml/genremic/internal/audio"
	"github.com/soundlabml/genremic/internal/config"
	"github.com/soundlabml/genremic/internal/session"
)

// Server controls a single session over HTTP.
type Server struct {
	session *session.Session
	cfg     *config.Config
	port    string
}

// StatusResponse is the JSON body of the status endpoint.
type StatusResponse struct {
	Status         session.State `json:"status"`
	ElapsedSeconds int           `json:"elapsed_seconds"`
	Elapsed        string        `json:"elapsed"`
	HasRecording   bool          `json:"has_recording"`
	SampleRate     int           `json:"sample_rate"`
	Message        string        `json:"message,omitempty"`
}

// LevelResponse is the JSON body of the level endpoint, polled by the
// UI once per animation frame.
type LevelResponse struct {
	Bars    []float64     `json:"bars"`
	Elapsed string        `json:"elapsed"`
	State   session.State `json:"state"`
}

// GenericResponse is the envelope for lifecycle operations.
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// New creates a server around an existing session.
func New(cfg *config.Config, sess *session.Session, port string) *Server {
	return &Server{
		session: sess,
		cfg:     cfg,
		port:    port,
	}
}

// Handler builds the route table. Split out from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/level", s.handleLevel)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/submit", s.handleSubmit)
	mux.HandleFunc("/discard", s.handleDiscard)
	return withCORS(mux)
}

// Start runs the server. Blocks until the listener fails.
func (s *Server) Start() error {
	localIP := getLocalIP()
	slog.Info("Starting genremic control server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	return http.ListenAndServe(":"+s.port, s.Handler())
}

// withCORS allows cross-origin requests from any origin, matching the
// open CORS policy of the classification backend this pairs with.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.session.Snapshot()
	s.sendJSON(w, http.StatusOK, StatusResponse{
		Status:         snap.State,
		ElapsedSeconds: snap.ElapsedSeconds,
		Elapsed:        snap.Elapsed,
		HasRecording:   snap.HasRecording,
		SampleRate:     s.cfg.Audio.SampleRate,
		Message:        snap.LastError,
	})
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.session.Snapshot()
	s.sendJSON(w, http.StatusOK, LevelResponse{
		Bars:    snap.Bars,
		Elapsed: snap.Elapsed,
		State:   snap.State,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.session.Start(); err != nil {
		slog.Error("Start request failed", "error", err)
		switch {
		case errors.Is(err, session.ErrAlreadyRecording):
			s.sendError(w, http.StatusConflict, err.Error())
		case errors.Is(err, audio.ErrDeviceUnavailable):
			s.sendError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.sendError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.session.Stop(); err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording stopped"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.session.Submit(); err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording submitted"})
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.session.Discard(); err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording discarded"})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, msg string) {
	s.sendJSON(w, status, GenericResponse{Success: false, Error: msg})
}

// getLocalIP returns the first non-loopback IPv4 address.
func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return "localhost"
}
