// Package sweep clears reservations whose expiry date has passed from the inventory sheet.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"lagerstatus/internal/google"
	"lagerstatus/internal/metrics"
	"lagerstatus/internal/reservation"
)

// Table is the sheet holding the reservations.
type Table interface {
	ReadRows(ctx context.Context) ([][]string, error)
	SheetName() string
	SpreadsheetID() string
}

// CellWriter overwrites single cells.
type CellWriter interface {
	WriteCell(ctx context.Context, cell, value string) error
}

// WriterOpener obtains a write credential for one run.
type WriterOpener func(ctx context.Context) (CellWriter, error)

// Notifier is told about sweeps that changed or failed to change the sheet.
type Notifier interface {
	NotifySweep(ctx context.Context, res *Result) error
}

// Config holds configuration for the sweeper.
type Config struct {
	// AuthKey is the shared secret callers must present.
	AuthKey string

	// ReservationColumn is the header of the reservation-owner column.
	// Default: "Reserverad_av".
	ReservationColumn string

	// HeaderRows is the number of rows above the data. Default: 1.
	HeaderRows int

	// WriteInterval is the minimum spacing between two cell writes.
	// Zero disables pacing.
	WriteInterval time.Duration

	// Location decides when "today" starts. Default: UTC.
	Location *time.Location

	// LockTTL bounds how long one sweep may hold the sheet lock.
	// Default: 5 minutes.
	LockTTL time.Duration
}

// RowState is where a candidate row ended up.
type RowState string

const (
	RowSkipped     RowState = "skipped"
	RowActive      RowState = "active"
	RowCleared     RowState = "cleared"
	RowClearFailed RowState = "clear_failed"
)

// RowOutcome describes what the sweep did with one candidate row.
type RowOutcome struct {
	RowNumber  int      `json:"row"`
	Cell       string   `json:"cell"`
	State      RowState `json:"state"`
	Name       string   `json:"name,omitempty"`
	ExpiryDate string   `json:"expiry_date,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Result summarizes one sweep.
type Result struct {
	RunID        string       `json:"run_id"`
	Timestamp    time.Time    `json:"timestamp"`
	Candidates   int          `json:"candidates"`
	Skipped      int          `json:"skipped"`
	Active       int          `json:"active"`
	RemovedCount int          `json:"removed_count"`
	Failed       int          `json:"failed"`
	Interrupted  bool         `json:"interrupted,omitempty"`
	Rows         []RowOutcome `json:"rows"`
}

// Message is the human-readable summary returned to the caller.
func (r *Result) Message() string {
	return fmt.Sprintf("Cleanup completed successfully. Removed %d expired reservations.", r.RemovedCount)
}

func (r *Result) record(o RowOutcome) {
	switch o.State {
	case RowSkipped:
		r.Skipped++
	case RowActive:
		r.Active++
	case RowCleared:
		r.RemovedCount++
	case RowClearFailed:
		r.Failed++
	}
	r.Rows = append(r.Rows, o)
}

// Sweeper runs reservation expiry sweeps against one sheet.
type Sweeper struct {
	cfg        Config
	table      Table
	openWriter WriterOpener
	locker     Locker
	notifier   Notifier
	limiter    *rate.Limiter
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSweeper creates a sweeper. locker and notifier may be nil.
func NewSweeper(cfg Config, table Table, openWriter WriterOpener, locker Locker, notifier Notifier, logger zerolog.Logger) *Sweeper {
	if cfg.ReservationColumn == "" {
		cfg.ReservationColumn = "Reserverad_av"
	}
	if cfg.HeaderRows <= 0 {
		cfg.HeaderRows = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if locker == nil {
		locker = NewLocalLocker()
	}

	limit := rate.Inf
	if cfg.WriteInterval > 0 {
		limit = rate.Every(cfg.WriteInterval)
	}

	return &Sweeper{
		cfg:        cfg,
		table:      table,
		openWriter: openWriter,
		locker:     locker,
		notifier:   notifier,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With().Str("component", "sweep").Logger(),
		now:        time.Now,
	}
}

func (s *Sweeper) lockKey() string {
	return s.table.SpreadsheetID() + ":" + s.table.SheetName()
}

// Run authorizes the caller and performs one sweep. A read failure ends the
// run with a *FetchError; write failures only affect their own row.
func (s *Sweeper) Run(ctx context.Context, authToken string) (*Result, error) {
	if err := Authorize(s.cfg.AuthKey, authToken); err != nil {
		metrics.IncSweepRun("unauthorized")
		return nil, err
	}

	unlock, err := s.locker.TryLock(ctx, s.lockKey(), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			metrics.IncSweepRun("busy")
		} else {
			metrics.IncSweepRun("error")
		}
		return nil, err
	}
	defer unlock()

	start := s.now()
	res := &Result{RunID: uuid.NewString(), Timestamp: start.UTC(), Rows: []RowOutcome{}}
	logger := s.logger.With().Str("run_id", res.RunID).Logger()

	values, err := s.table.ReadRows(ctx)
	if err != nil {
		fetchErr := &FetchError{Status: google.StatusCode(err), Err: err}
		logger.Error().Err(err).Msg("failed to read sheet")
		metrics.IncSweepRun("fetch_error")
		return nil, fetchErr
	}

	rows := reservation.Candidates(values, s.cfg.HeaderRows, s.cfg.ReservationColumn)
	res.Candidates = len(rows)
	logger.Info().Int("rows", len(values)).Int("candidates", len(rows)).Msg("checking reservations")

	s.process(ctx, logger, res, rows)

	elapsed := s.now().Sub(start)
	metrics.ObserveSweepDuration(elapsed)
	metrics.AddSweepRows(string(RowSkipped), res.Skipped)
	metrics.AddSweepRows(string(RowActive), res.Active)
	metrics.AddSweepRows(string(RowCleared), res.RemovedCount)
	metrics.AddSweepRows(string(RowClearFailed), res.Failed)
	metrics.IncSweepRun("success")
	metrics.SetLastSuccess(s.now())

	logger.Info().
		Int("removed", res.RemovedCount).
		Int("failed", res.Failed).
		Int("active", res.Active).
		Int("skipped", res.Skipped).
		Dur("elapsed", elapsed).
		Msg("cleanup completed")

	if s.notifier != nil && (res.RemovedCount > 0 || res.Failed > 0) {
		if err := s.notifier.NotifySweep(ctx, res); err != nil {
			logger.Error().Err(err).Msg("failed to send sweep notification")
		}
	}

	return res, nil
}

func (s *Sweeper) process(ctx context.Context, logger zerolog.Logger, res *Result, rows []reservation.Row) {
	now := s.now().In(s.cfg.Location)
	sheet := s.table.SheetName()

	var (
		writer    CellWriter
		writerErr error
	)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Msg("sweep interrupted")
			res.Interrupted = true
			return
		}

		cell := reservation.CellAddress(sheet, row.Column, row.RowNumber)
		parsed, ok := reservation.Parse(row.Annotation, now)
		if !ok {
			res.record(RowOutcome{RowNumber: row.RowNumber, Cell: cell, State: RowSkipped})
			continue
		}

		outcome := RowOutcome{
			RowNumber:  row.RowNumber,
			Cell:       cell,
			Name:       parsed.Name,
			ExpiryDate: reservation.FormatDate(parsed.ExpiryDate),
		}
		if !parsed.Expired {
			outcome.State = RowActive
			res.record(outcome)
			continue
		}

		logger.Info().
			Int("row", row.RowNumber).
			Str("name", parsed.Name).
			Str("expired", outcome.ExpiryDate).
			Msg("found expired reservation")

		if writer == nil && writerErr == nil {
			writer, writerErr = s.open(ctx)
			if writerErr != nil {
				logger.Error().Err(writerErr).Msg("failed to obtain write credentials")
			}
		}

		err := writerErr
		if err == nil {
			err = s.clear(ctx, writer, cell)
		}
		if err != nil {
			rowErr := &RowClearError{Row: row.RowNumber, Cell: cell, Err: err}
			logger.Error().Err(rowErr).Msg("failed to clear reservation")
			outcome.State = RowClearFailed
			outcome.Error = rowErr.Error()
			res.record(outcome)
			continue
		}

		logger.Info().Int("row", row.RowNumber).Str("name", parsed.Name).Msg("cleared expired reservation")
		outcome.State = RowCleared
		res.record(outcome)
	}
}

func (s *Sweeper) open(ctx context.Context) (CellWriter, error) {
	if s.openWriter == nil {
		return nil, errors.New("no writer configured")
	}
	return s.openWriter(ctx)
}

// clear waits for the write limiter, then empties the cell.
func (s *Sweeper) clear(ctx context.Context, writer CellWriter, cell string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return writer.WriteCell(ctx, cell, "")
}
