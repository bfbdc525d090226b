package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"lagerstatus/internal/config"
)

// ErrNoWriteCredentials is returned by NewWriter when no service account is configured.
var ErrNoWriteCredentials = errors.New("google service account is not configured")

// SheetsService reads the inventory sheet with an API key and hands out
// writers authenticated with the service account.
type SheetsService struct {
	cfg        config.GoogleConfig
	reader     *sheets.Service
	clientOpts []option.ClientOption
	logger     *zerolog.Logger
}

// Option tweaks a SheetsService.
type Option func(*SheetsService)

// WithClientOptions adds client options to both the read and the write clients.
// Tests use it to point the service at a local endpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *SheetsService) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

func NewSheetsService(ctx context.Context, cfg config.GoogleConfig, logger *zerolog.Logger, opts ...Option) (*SheetsService, error) {
	s := &SheetsService{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	readOpts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, s.clientOpts...)
	reader, err := sheets.NewService(ctx, readOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets read client: %w", err)
	}
	s.reader = reader
	return s, nil
}

// SheetName is the tab the service reads and writes.
func (s *SheetsService) SheetName() string {
	return s.cfg.SheetName
}

// SpreadsheetID identifies the spreadsheet.
func (s *SheetsService) SpreadsheetID() string {
	return s.cfg.SpreadsheetID
}

func (s *SheetsService) readRange() string {
	return s.cfg.SheetName + "!" + s.cfg.ReadRange
}

// ReadRows returns every row of the configured range as strings. Row 0 holds the headers.
func (s *SheetsService) ReadRows(ctx context.Context) ([][]string, error) {
	resp, err := s.reader.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, s.readRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get values %s: %w", s.readRange(), err)
	}

	rows := valuesToStrings(resp.Values)
	if s.logger != nil {
		s.logger.Debug().Str("range", s.readRange()).Int("rows", len(rows)).Msg("sheet values fetched")
	}
	return rows, nil
}

func valuesToStrings(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		out := make([]string, len(row))
		for j, v := range row {
			switch val := v.(type) {
			case string:
				out[j] = val
			case nil:
				out[j] = ""
			default:
				out[j] = fmt.Sprint(val)
			}
		}
		rows[i] = out
	}
	return rows
}

// NewWriter exchanges the service account for a token source scoped to
// spreadsheets. A writer is meant to live for one sweep.
func (s *SheetsService) NewWriter(ctx context.Context) (*Writer, error) {
	sa := s.cfg.ServiceAccount
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, ErrNoWriteCredentials
	}

	conf := &jwt.Config{
		Email:        sa.ClientEmail,
		PrivateKey:   []byte(sa.PrivateKey),
		PrivateKeyID: sa.PrivateKeyID,
		Scopes:       []string{sheets.SpreadsheetsScope},
		TokenURL:     google.JWTTokenURL,
	}

	opts := append([]option.ClientOption{option.WithTokenSource(conf.TokenSource(ctx))}, s.clientOpts...)
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets write client: %w", err)
	}
	return &Writer{srv: srv, spreadsheetID: s.cfg.SpreadsheetID}, nil
}

// Writer updates single cells of one spreadsheet.
type Writer struct {
	srv           *sheets.Service
	spreadsheetID string
}

// WriteCell overwrites the cell at an A1 address with a literal value.
func (w *Writer) WriteCell(ctx context.Context, cell, value string) error {
	body := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := w.srv.Spreadsheets.Values.Update(w.spreadsheetID, cell, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", cell, err)
	}
	return nil
}

// StatusCode extracts the HTTP status of a Google API error, or 0.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
