package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"finanzas/internal/config"
	"finanzas/internal/log"
	ports "finanzas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ ports.TransactionWriter = (*Client)(nil)

// NewFromConfig builds a client authenticated with the configured service
// account.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.GoogleSpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := serviceAccountCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return New(svc, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger), nil
}

// New wraps an existing service. Tests point svc at a local endpoint.
func New(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func serviceAccountCredentials(cfg *config.Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.GoogleServiceAccountJSON) != "":
		return []byte(cfg.GoogleServiceAccountJSON), nil
	case cfg.GoogleServiceAccountFile != "":
		b, err := os.ReadFile(cfg.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

func (c *Client) columns() string {
	return fmt.Sprintf("%s!A:%c", c.sheetName, 'A'+len(ports.Header)-1)
}

// EnsureHeader writes the header row when the sheet's first row is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	headerRange := fmt.Sprintf("%s!A1:%c1", c.sheetName, 'A'+len(ports.Header)-1)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", c.sheetName, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{ports.Header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, headerRange, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header of %s: %w", c.sheetName, err)
	}
	c.logger.InfoContext(ctx, "Wrote mirror sheet header", "sheet", c.sheetName)
	return nil
}

// AppendTransaction appends row below the last filled row of the sheet.
func (c *Client) AppendTransaction(ctx context.Context, row ports.Row) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.columns(), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append transaction %d to %s: %w", row.TransactionID, c.sheetName, err)
	}

	ref := c.sheetName
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Appended transaction row",
		log.FieldTxID, row.TransactionID, log.FieldSheetsRef, ref, log.FieldOperation, log.OpAppend)
	return ref, nil
}
