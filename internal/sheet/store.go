// Package sheet reads the profile queue from a Google Sheets worksheet
// and writes claim results back to it.
package sheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"dripper/internal/claim"
	"dripper/internal/config"
	"dripper/internal/cooldown"
)

// Profile is one worksheet row: an AdsPower profile serial paired with
// the wallet it claims for, plus the bookkeeping columns.
type Profile struct {
	Row         int // 1-based worksheet row
	Serial      string
	Address     string
	LastClaimAt string // formatted claim timestamp, may be empty
	Eligible    string // yes/no label as stored, lowercased
	ClaimCount  int
	Status      string
}

// Store is the worksheet-backed profile queue.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	cols          config.ColumnsConfig
	window        time.Duration
	log           *zap.Logger

	now func() time.Time
}

// NewStore authenticates with a service account credentials file and
// opens the configured worksheet.
func NewStore(ctx context.Context, cfg config.SheetConfig, window time.Duration, log *zap.Logger) (*Store, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewStoreWithService(svc, cfg, window, log), nil
}

// NewStoreWithService wraps an already-built service. Tests and
// alternative auth setups come through here.
func NewStoreWithService(svc *sheets.Service, cfg config.SheetConfig, window time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		worksheet:     cfg.Worksheet,
		cols:          cfg.Columns,
		window:        window,
		log:           log,
		now:           time.Now,
	}
}

// Profiles reads every populated row in stable sheet order. A leading
// header row and rows without a profile serial are skipped.
func (s *Store) Profiles(ctx context.Context) ([]Profile, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheet(s.worksheet)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet: %w", err)
	}

	var profiles []Profile
	for i, row := range resp.Values {
		serial := cellString(row, s.cols.Profile)
		if i == 0 && isHeaderCell(serial) {
			continue
		}
		if serial == "" {
			continue
		}

		profiles = append(profiles, Profile{
			Row:         i + 1,
			Serial:      serial,
			Address:     cellString(row, s.cols.Address),
			LastClaimAt: cellString(row, s.cols.LastClaim),
			Eligible:    strings.ToLower(cellString(row, s.cols.Eligible)),
			ClaimCount:  parseCount(cellString(row, s.cols.Count)),
			Status:      cellString(row, s.cols.Status),
		})
	}

	s.log.Info("worksheet read", zap.Int("profiles", len(profiles)))
	return profiles, nil
}

// Eligible returns the profiles whose cooldown window has passed,
// preserving sheet order.
func (s *Store) Eligible(ctx context.Context) ([]Profile, error) {
	all, err := s.Profiles(ctx)
	if err != nil {
		return nil, err
	}

	var ready []Profile
	for _, p := range all {
		if cooldown.Passed(p.LastClaimAt, s.window) {
			ready = append(ready, p)
		} else {
			s.log.Debug("cooldown not passed", zap.String("serial", p.Serial))
		}
	}

	s.log.Info("profiles ready", zap.Int("count", len(ready)), zap.Int("total", len(all)))
	return ready, nil
}

const statusLimit = 50

// PersistResult writes one claim outcome back to its row in a single
// batch update. The claim timestamp cell is only touched when the
// outcome pins it down; a cooldown of unknown age leaves it alone.
func (s *Store) PersistResult(ctx context.Context, row int, outcome claim.Outcome, newCount int) error {
	date := ""
	writeDate := true
	status := outcome.Detail

	switch outcome.Kind {
	case claim.Success:
		date = cooldown.Format(s.now())
	case claim.CooldownDetected:
		status = "Cooldown"
		if outcome.Detail == "unknown" {
			writeDate = false
		} else {
			date = outcome.Detail
		}
	default:
		date = cooldown.Format(s.now())
		status = truncate(outcome.Detail, statusLimit)
	}

	var data []*sheets.ValueRange
	if writeDate {
		data = append(data, s.cellRange(row, s.cols.LastClaim, date))
	}
	data = append(data,
		s.cellRange(row, s.cols.Eligible, "no"),
		s.cellRange(row, s.cols.Count, strconv.Itoa(newCount)),
		s.cellRange(row, s.cols.Status, status),
	)

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	if _, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update row %d: %w", row, err)
	}

	s.log.Info("row updated",
		zap.Int("row", row),
		zap.Stringer("outcome", outcome.Kind),
		zap.String("status", status),
		zap.Int("count", newCount))
	return nil
}

// SetStatus writes only the status cell of a row.
func (s *Store) SetStatus(ctx context.Context, row int, status string) error {
	vr := s.cellRange(row, s.cols.Status, truncate(status, statusLimit))
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, vr.Range, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("set status row %d: %w", row, err)
	}
	return nil
}

// RefreshEligibility recomputes the yes/no column from the stored
// timestamps and writes back only the labels that changed. Returns how
// many rows were corrected.
func (s *Store) RefreshEligibility(ctx context.Context) (int, error) {
	all, err := s.Profiles(ctx)
	if err != nil {
		return 0, err
	}

	var data []*sheets.ValueRange
	for _, p := range all {
		want := cooldown.YesNoLabel(p.LastClaimAt, s.window)
		if want != p.Eligible {
			data = append(data, s.cellRange(p.Row, s.cols.Eligible, want))
		}
	}
	if len(data) == 0 {
		return 0, nil
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	if _, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("refresh eligibility: %w", err)
	}

	s.log.Info("eligibility labels refreshed", zap.Int("updated", len(data)))
	return len(data), nil
}

func (s *Store) cellRange(row, col int, value string) *sheets.ValueRange {
	return &sheets.ValueRange{
		Range:  fmt.Sprintf("%s!%s%d", quoteSheet(s.worksheet), columnLetter(col), row),
		Values: [][]interface{}{{value}},
	}
}

func cellString(row []interface{}, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[col-1]))
}

func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func isHeaderCell(first string) bool {
	if isDigits(first) {
		return false
	}
	switch strings.ToLower(first) {
	case "profile", "profile number", "serial", "number", "#":
		return true
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// columnLetter converts a 1-based column index to its A1 letter form.
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
