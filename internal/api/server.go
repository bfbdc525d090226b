package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"lagerstatus/internal/sweep"
	"lagerstatus/internal/trello"
)

const (
	// AuthHeader carries the shared secret.
	AuthHeader = "x-auth-key"

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Sweeps is the sweep side of the API.
type Sweeps interface {
	Run(ctx context.Context, authToken string) (*sweep.Result, error)
	List(ctx context.Context) ([]sweep.Entry, error)
}

// DeliverySource provides the delivery board view.
type DeliverySource interface {
	Deliveries(ctx context.Context) ([]trello.Delivery, error)
}

// HTTPServer exposes the cleanup trigger and the dashboard feeds.
type HTTPServer struct {
	authKey    string
	sweeps     Sweeps
	deliveries DeliverySource
	logger     zerolog.Logger
	server     *http.Server
	now        func() time.Time
}

// NewHTTPServer builds the server. deliveries may be nil when Trello is not configured.
func NewHTTPServer(addr, authKey string, sweeps Sweeps, deliveries DeliverySource, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		authKey:    authKey,
		sweeps:     sweeps,
		deliveries: deliveries,
		logger:     logger.With().Str("component", "api").Logger(),
		now:        time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/cleanup-expired-reservations", s.handleCleanup)
	mux.HandleFunc("/api/reservations", s.handleReservations)
	mux.HandleFunc("/api/reservations/export", s.handleReservationsExport)
	mux.HandleFunc("/api/deliveries", s.handleDeliveries)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string, at time.Time) {
	writeJSON(w, status, errorResponse{
		Success:   false,
		Error:     msg,
		Timestamp: formatTimestamp(at),
	})
}

// authorize writes a 401 and returns false when the request lacks the secret.
func (s *HTTPServer) authorize(w http.ResponseWriter, r *http.Request, at time.Time) bool {
	if err := sweep.Authorize(s.authKey, r.Header.Get(AuthHeader)); err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", at)
		return false
	}
	return true
}

func allowMethods(w http.ResponseWriter, r *http.Request, at time.Time, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", at)
	return false
}
