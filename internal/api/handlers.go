package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"lagerstatus/internal/export"
	"lagerstatus/internal/metrics"
	"lagerstatus/internal/sweep"
	"lagerstatus/internal/trello"
)

// CleanupResponse is the success body of the cleanup trigger.
type CleanupResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	ExpiredCount int    `json:"expiredCount"`
}

// ReservationsResponse is the body of GET /api/reservations.
type ReservationsResponse struct {
	Reservations []sweep.Entry `json:"reservations"`
	Timestamp    string        `json:"timestamp"`
}

// DeliveriesResponse is the body of GET /api/deliveries.
type DeliveriesResponse struct {
	Deliveries []trello.Delivery `json:"deliveries"`
	Timestamp  string            `json:"timestamp"`
}

// handleCleanup runs one sweep.
// GET|POST /api/cleanup-expired-reservations
func (s *HTTPServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cleanup")
	started := s.now()

	if !allowMethods(w, r, started, http.MethodGet, http.MethodPost) {
		return
	}

	res, err := s.sweeps.Run(r.Context(), r.Header.Get(AuthHeader))
	switch {
	case err == nil:
	case errors.Is(err, sweep.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized", started)
		return
	case errors.Is(err, sweep.ErrSweepInProgress):
		writeError(w, http.StatusConflict, err.Error(), started)
		return
	default:
		s.logger.Error().Err(err).Msg("cleanup failed")
		writeError(w, http.StatusInternalServerError, err.Error(), started)
		return
	}

	writeJSON(w, http.StatusOK, CleanupResponse{
		Success:      true,
		Message:      res.Message(),
		Timestamp:    formatTimestamp(started),
		ExpiredCount: res.RemovedCount,
	})
}

// handleReservations lists classified reservations without changing the sheet.
// GET /api/reservations
func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations")
	started := s.now()

	if !allowMethods(w, r, started, http.MethodGet) || !s.authorize(w, r, started) {
		return
	}

	entries, err := s.sweeps.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list reservations")
		writeError(w, http.StatusInternalServerError, err.Error(), started)
		return
	}

	writeJSON(w, http.StatusOK, ReservationsResponse{
		Reservations: entries,
		Timestamp:    formatTimestamp(started),
	})
}

// handleReservationsExport returns the reservations as an xlsx workbook.
// GET /api/reservations/export
func (s *HTTPServer) handleReservationsExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_export")
	started := s.now()

	if !allowMethods(w, r, started, http.MethodGet) || !s.authorize(w, r, started) {
		return
	}

	entries, err := s.sweeps.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("export reservations")
		writeError(w, http.StatusInternalServerError, err.Error(), started)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReservations(&buf, entries); err != nil {
		s.logger.Error().Err(err).Msg("build workbook")
		writeError(w, http.StatusInternalServerError, "failed to build workbook", started)
		return
	}

	filename := fmt.Sprintf("reservationer-%s.xlsx", started.UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleDeliveries returns the delivery board view.
// GET /api/deliveries
func (s *HTTPServer) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("deliveries")
	started := s.now()

	if !allowMethods(w, r, started, http.MethodGet) || !s.authorize(w, r, started) {
		return
	}
	if s.deliveries == nil {
		writeError(w, http.StatusServiceUnavailable, "delivery board is not configured", started)
		return
	}

	deliveries, err := s.deliveries.Deliveries(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load deliveries")
		writeError(w, http.StatusBadGateway, err.Error(), started)
		return
	}

	writeJSON(w, http.StatusOK, DeliveriesResponse{
		Deliveries: deliveries,
		Timestamp:  formatTimestamp(started),
	})
}
