// Package server exposes the emotion engine over HTTP: transcription,
// discrete and blended emotion classification, and a websocket stream for
// continuous modulation updates.
//
// The server owns no provider lifecycles — transcriber, scorer, and session
// store are injected at construction and closed by the caller. Handlers parse
// and validate uploads, delegate scoring, run the blend pipeline, and map
// errors onto HTTP status codes; everything emotional happens in
// internal/blend and the provider packages.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sainte-ai/emotion-engine/internal/blend"
	"github.com/sainte-ai/emotion-engine/internal/observe"
	"github.com/sainte-ai/emotion-engine/internal/resilience"
	"github.com/sainte-ai/emotion-engine/internal/session"
	"github.com/sainte-ai/emotion-engine/pkg/audio"
	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer"
	"github.com/sainte-ai/emotion-engine/pkg/provider/stt"
)

// defaultMaxUpload caps multipart request bodies. WAV at 16 kHz mono PCM16 is
// ~1.9 MB per minute, so 16 MB comfortably covers several minutes of audio.
const defaultMaxUpload = 16 << 20

// Server holds the HTTP handler dependencies.
type Server struct {
	transcriber stt.Transcriber
	scorer      scorer.Provider
	sessions    session.Store
	metrics     *observe.Metrics
	maxUpload   int64

	mu     sync.RWMutex
	tuning blend.Tuning
}

// Option configures a [Server].
type Option func(*Server)

// WithSessionStore enables cross-request temporal smoothing keyed by the
// session_id form field on the blended endpoint.
func WithSessionStore(st session.Store) Option {
	return func(s *Server) { s.sessions = st }
}

// WithMetrics overrides the metrics instance. Tests should pass one backed by
// a manual reader to avoid polluting the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTuning sets the initial blend tuning. See [Server.SetTuning] for
// changing it at runtime.
func WithTuning(t blend.Tuning) Option {
	return func(s *Server) { s.tuning = t }
}

// WithMaxUploadBytes overrides the multipart body size cap.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New creates a Server. transcriber may be nil, in which case /api/transcribe
// responds 503; sc is required by the emotion endpoints and the websocket
// stream.
func New(transcriber stt.Transcriber, sc scorer.Provider, opts ...Option) *Server {
	s := &Server{
		transcriber: transcriber,
		scorer:      sc,
		maxUpload:   defaultMaxUpload,
		tuning:      blend.DefaultTuning(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// SetTuning swaps the blend tuning used by subsequent requests. Called from
// the config watcher on hot reload.
func (s *Server) SetTuning(t blend.Tuning) {
	s.mu.Lock()
	s.tuning = t
	s.mu.Unlock()
	slog.Info("blend tuning updated", "sharpness", t.Sharpness, "retention", t.Retention)
}

// Tuning returns the current blend tuning.
func (s *Server) Tuning() blend.Tuning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tuning
}

// Register adds the API routes to mux. Health and metrics routes are wired
// separately by the caller.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/emotion", s.handleEmotion)
	mux.HandleFunc("POST /api/emotion/blended", s.handleEmotionBlended)
	mux.HandleFunc("GET /ws/emotion", s.handleEmotionStream)
}

// CORS wraps next with permissive cross-origin headers so that browser
// frontends can call the API directly.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errorResponse is the JSON error envelope for all API failures.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encoding failed", "err", err)
	}
}

// writeError maps err to an HTTP status and writes the error envelope.
// Bad-input sentinels become 400, open circuits and exhausted fallback chains
// become 502, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case isBadInput(err):
		status = http.StatusBadRequest
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrAllFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// isBadInput reports whether err represents a client-side input problem.
func isBadInput(err error) bool {
	return errors.Is(err, blend.ErrInvalidParameter) ||
		errors.Is(err, blend.ErrInvalidDistribution) ||
		errors.Is(err, scorer.ErrEmptyInput) ||
		errors.Is(err, stt.ErrEmptyAudio) ||
		errors.Is(err, audio.ErrNotWAV) ||
		errors.Is(err, audio.ErrUnsupportedFormat) ||
		errors.Is(err, errMalformedRequest)
}
