package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

var _ Ledger = (*CSVLedger)(nil)

// CSVLedger stores attempts in a flat UTF-8 CSV file with a header row.
// The file is opened per call; nothing is cached between calls.
type CSVLedger struct {
	path string
	loc  *time.Location
	mu   sync.Mutex
}

func NewCSVLedger(path string, loc *time.Location) (*CSVLedger, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if loc == nil {
		loc = time.Local
	}
	return &CSVLedger{path: trimmed, loc: loc}, nil
}

func (l *CSVLedger) Path() string { return l.path }

func (l *CSVLedger) Append(ctx context.Context, record domain.MessageAttemptRecord) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid ledger record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close() //nolint:errcheck // close after successful sync is best-effort

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat ledger: %w", err)
	}

	// The whole chunk goes out in one write so a crash never leaves half a row.
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("failed to encode ledger header: %w", err)
		}
	}
	if err := w.Write(encodeRow(record, l.loc)); err != nil {
		return fmt.Errorf("failed to encode ledger record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode ledger record: %w", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append ledger record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}

	return nil
}

func (l *CSVLedger) ReadAll(ctx context.Context) ([]domain.MessageAttemptRecord, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.MessageAttemptRecord{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	return l.decode(f)
}

func encodeRow(record domain.MessageAttemptRecord, loc *time.Location) []string {
	return []string{
		record.Profile.String(),
		record.Outcome.String(),
		record.Message,
		record.Timestamp.In(loc).Format(TimestampLayout),
	}
}

// WriteCSV renders records in the ledger file layout, header first. It is
// used to export whichever ledger backend is configured.
func WriteCSV(w io.Writer, records []domain.MessageAttemptRecord, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, record := range records {
		if err := cw.Write(encodeRow(record, loc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (l *CSVLedger) decode(r io.Reader) ([]domain.MessageAttemptRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []domain.MessageAttemptRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrUnreadable, err)
	}
	if !validHeader(header) {
		return nil, fmt.Errorf("%w: unexpected header %q", ErrUnreadable, strings.Join(header, ","))
	}

	records := make([]domain.MessageAttemptRecord, 0)
	var malformed []error
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				malformed = append(malformed, fmt.Errorf("line %d: %w", parseErr.StartLine, parseErr.Err))
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}

		line, _ := reader.FieldPos(0)
		record, err := l.parseRow(row)
		if err != nil {
			malformed = append(malformed, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		records = append(records, record)
	}

	if len(malformed) > 0 {
		return records, fmt.Errorf("%w: %w", ErrMalformedRecord, errors.Join(malformed...))
	}
	return records, nil
}

func (l *CSVLedger) parseRow(row []string) (domain.MessageAttemptRecord, error) {
	if len(row) != len(Header) {
		return domain.MessageAttemptRecord{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}

	outcome, err := domain.ParseOutcomeFromString(row[1])
	if err != nil {
		return domain.MessageAttemptRecord{}, err
	}

	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(row[3]), l.loc)
	if err != nil {
		return domain.MessageAttemptRecord{}, fmt.Errorf("invalid timestamp %q", row[3])
	}

	return domain.MessageAttemptRecord{
		Profile:   domain.ProfileTarget(row[0]),
		Outcome:   outcome,
		Message:   row[2],
		Timestamp: ts,
	}, nil
}

func validHeader(header []string) bool {
	if len(header) != len(Header) {
		return false
	}
	for i, col := range header {
		col = strings.TrimPrefix(col, "\ufeff")
		if strings.TrimSpace(col) != Header[i] {
			return false
		}
	}
	return true
}
