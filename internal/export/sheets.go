package export

import (
	"context"
	"errors"
	"fmt"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/log"
)

// ErrSheetsDisabled is returned when no spreadsheet is configured.
var ErrSheetsDisabled = errors.New("google sheets export is not configured")

// SheetsAppender appends report rows to one sheet of a spreadsheet.
type SheetsAppender struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// NewSheetsAppender authenticates with service account credentials. Extra
// options are passed to the Sheets client; with an HTTP client option the
// credentials may be nil.
func NewSheetsAppender(ctx context.Context, credentialsJSON []byte, spreadsheetID, sheet string, logger *log.Logger, opts ...goption.ClientOption) (*SheetsAppender, error) {
	if spreadsheetID == "" {
		return nil, ErrSheetsDisabled
	}
	if logger == nil {
		logger = log.Discard()
	}
	if credentialsJSON != nil {
		opts = append([]goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, opts...)
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsAppender{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger.WithComponent(log.ComponentExport),
	}, nil
}

// Append adds one row per transaction below the existing data and returns
// the updated range.
func (a *SheetsAppender) Append(ctx context.Context, r Report) (string, error) {
	if a == nil || a.svc == nil {
		return "", ErrSheetsDisabled
	}
	if len(r.Rows) == 0 {
		return "", nil
	}

	values := make([][]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		values = append(values, []any{row.Date, row.Account, row.Description, row.Category, row.Type, float64(row.Cents) / 100})
	}

	rng := fmt.Sprintf("%s!A:F", a.sheet)
	resp, err := a.svc.Spreadsheets.Values.Append(a.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", a.sheet, err)
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	a.logger.InfoContext(ctx, "Appended transactions to sheet",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(values),
		"range", updated)
	return updated, nil
}
