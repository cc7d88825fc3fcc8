// Package google stores snapshots in a Google Sheets worksheet: a header
// row, then one row per user key carrying the JSON envelope, the revision
// and the update timestamp.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"billtrack/internal/cloud"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config carries the spreadsheet coordinates and OAuth material. The
// inline JSON fields win over the file paths when both are set.
type Config struct {
	SpreadsheetID string
	SheetName     string
	ClientFile    string
	ClientJSON    string
	TokenFile     string
	TokenJSON     string
}

// Columns: A user key, B envelope JSON, C revision, D updated-at.
var headerRow = []any{"User", "Snapshot", "Revision", "Updated At"}

const snapshotColumns = "A:D"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ cloud.Store = (*Client)(nil)

// New builds a Sheets-backed snapshot store from OAuth client credentials
// and a previously issued token (see cmd/oauth-init). The token source
// refreshes itself.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Snapshots"
	}

	oauthCfg, err := loadOAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	token, err := loadToken(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithTokenSource(oauthCfg.TokenSource(ctx, token)),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func loadOAuthConfig(cfg Config) (*oauth2.Config, error) {
	data, err := readJSONSource(cfg.ClientJSON, cfg.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client credentials: %w", err)
	}
	oauthCfg, err := goauth.ConfigFromJSON(data, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client credentials: %w", err)
	}
	return oauthCfg, nil
}

func loadToken(cfg Config) (*oauth2.Token, error) {
	data, err := readJSONSource(cfg.TokenJSON, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return &token, nil
}

func readJSONSource(inline, file string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}
	if strings.TrimSpace(file) != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return data, nil
	}
	return nil, errors.New("neither inline JSON nor a file path is set")
}

// Fetch reads the snapshot row for key.
func (c *Client) Fetch(ctx context.Context, key string) (cloud.Snapshot, error) {
	if c.svc == nil {
		return cloud.Snapshot{}, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", c.sheetName, snapshotColumns)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return cloud.Snapshot{}, fmt.Errorf("read %s: %w", rng, err)
	}
	row := findRow(resp.Values, key)
	if row < 0 {
		return cloud.Snapshot{}, fmt.Errorf("%w: %s", cloud.ErrNotFound, key)
	}
	snap, err := rowToSnapshot(resp.Values[row])
	if err != nil {
		return cloud.Snapshot{}, fmt.Errorf("row %d: %w", row+1, err)
	}
	return snap, nil
}

// Upsert writes the snapshot row for snap.Key, creating the header row on
// an empty sheet and appending a row for a new key.
func (c *Client) Upsert(ctx context.Context, snap cloud.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if snap.Key == "" {
		return errors.New("snapshot key is empty")
	}

	rng := fmt.Sprintf("%s!%s", c.sheetName, snapshotColumns)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	if len(resp.Values) == 0 {
		if err := c.writeRow(ctx, 1, headerRow); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		return c.writeRow(ctx, 2, snapshotRow(snap))
	}

	targetRow := findRow(resp.Values, snap.Key)
	if targetRow < 0 {
		targetRow = len(resp.Values)
	}
	return c.writeRow(ctx, targetRow+1, snapshotRow(snap))
}

// Ping fetches spreadsheet metadata to verify access.
func (c *Client) Ping(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("spreadsheet %s: %w", c.spreadsheetID, err)
	}
	return nil
}

// writeRow updates exactly one A:D row. RAW keeps the JSON envelope from
// being reinterpreted by the spreadsheet.
func (c *Client) writeRow(ctx context.Context, row int, values []any) error {
	rng := fmt.Sprintf("%s!A%d:D%d", c.sheetName, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func snapshotRow(snap cloud.Snapshot) []any {
	return []any{
		snap.Key,
		string(snap.Envelope),
		strconv.FormatInt(snap.Revision, 10),
		snap.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// findRow returns the index of the row whose first cell equals key,
// skipping the header row. -1 when absent.
func findRow(rows [][]any, key string) int {
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == key {
			return i
		}
	}
	return -1
}

func rowToSnapshot(row []any) (cloud.Snapshot, error) {
	if len(row) < 2 {
		return cloud.Snapshot{}, errors.New("snapshot row too short")
	}
	snap := cloud.Snapshot{
		Key:      strings.TrimSpace(fmt.Sprint(row[0])),
		Envelope: []byte(fmt.Sprint(row[1])),
	}
	if len(row) > 2 {
		rev, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[2])), 10, 64)
		if err != nil {
			return cloud.Snapshot{}, fmt.Errorf("parse revision: %w", err)
		}
		snap.Revision = rev
	}
	if len(row) > 3 {
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(fmt.Sprint(row[3])))
		if err != nil {
			return cloud.Snapshot{}, fmt.Errorf("parse updated-at: %w", err)
		}
		snap.UpdatedAt = at
	}
	return snap, nil
}
