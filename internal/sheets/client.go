package sheets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"pccmo/internal/config"
)

var ErrNotConfigured = errors.New("google sheets not configured")

const (
	valueInputOption = "USER_ENTERED"
	insertDataOption = "INSERT_ROWS"
	fallbackSheet    = "Sheet1"
)

// Info describes the target spreadsheet.
type Info struct {
	Title  string   `json:"title"`
	Sheets []string `json:"sheets"`
}

type Client struct {
	service       *gsheets.Service
	spreadsheetID string
	sheetIndex    int
}

// LoadCredentials returns the service account key from, in order, the JSON
// env value, the base64 env value or the key file. It returns nil when none
// is set.
func LoadCredentials(cfg config.Config) ([]byte, error) {
	if raw := strings.TrimSpace(cfg.GoogleCredentialsJSON); raw != "" {
		return []byte(raw), nil
	}
	if enc := strings.TrimSpace(cfg.GoogleCredentialsBase64); enc != "" {
		blob, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("invalid GOOGLE_APPLICATION_CREDENTIALS_BASE64: %w", err)
		}
		return blob, nil
	}
	if path := strings.TrimSpace(cfg.GoogleServiceAccountKeyPath); path != "" {
		blob, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return blob, err
	}
	return nil, nil
}

func NewClient(ctx context.Context, cfg config.Config) (*Client, error) {
	if strings.TrimSpace(cfg.GoogleSheetsID) == "" {
		return nil, ErrNotConfigured
	}
	creds, err := LoadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, ErrNotConfigured
	}

	jwtCfg, err := google.JWTConfigFromJSON(creds, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	svc, err := gsheets.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, err
	}

	return &Client{service: svc, spreadsheetID: cfg.GoogleSheetsID, sheetIndex: cfg.GoogleSheetIndex}, nil
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	resp, err := c.service.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return Info{}, err
	}
	info := Info{}
	if resp.Properties != nil {
		info.Title = resp.Properties.Title
	}
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			info.Sheets = append(info.Sheets, s.Properties.Title)
		}
	}
	return info, nil
}

// SheetName resolves the configured tab index to the tab's real title. An
// index past the end selects the last tab.
func (c *Client) SheetName(ctx context.Context) (string, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return "", err
	}
	if len(info.Sheets) == 0 {
		return fallbackSheet, nil
	}
	idx := min(max(c.sheetIndex, 0), len(info.Sheets)-1)
	if info.Sheets[idx] == "" {
		return fallbackSheet, nil
	}
	return info.Sheets[idx], nil
}

func (c *Client) ReadCell(ctx context.Context, rng string) (string, error) {
	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(resp.Values[0][0]), nil
}

func (c *Client) UpdateRow(ctx context.Context, rng string, row []any) error {
	vr := &gsheets.ValueRange{Values: [][]any{row}}
	_, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	return err
}

func (c *Client) AppendRows(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheets.ValueRange{Values: rows}
	_, err := c.service.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).InsertDataOption(insertDataOption).Context(ctx).Do()
	return err
}
