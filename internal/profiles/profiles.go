// Package profiles reads recipient lists from spreadsheets.
package profiles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/xuri/excelize/v2"
)

// URLColumn is the header every profile list must carry.
const URLColumn = "URL"

// LoadFile reads a .xlsx or .csv profile list from disk.
func LoadFile(path string) ([]domain.ProfileTarget, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: profile list %q not found", domain.ErrValidation, path)
		}
		return nil, fmt.Errorf("failed to open profile list: %w", err)
	}
	defer f.Close()

	return Load(f, filepath.Base(path))
}

// Load picks the format from filename's extension. Values of the URL column
// are trimmed; empty cells are dropped and order is kept.
func Load(r io.Reader, filename string) ([]domain.ProfileTarget, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: unsupported profile list %q (want .xlsx or .csv)", domain.ErrValidation, filename)
	}
	if err != nil {
		return nil, err
	}

	return fromRows(rows)
}

func readXLSX(r io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read spreadsheet: %w", domain.ErrValidation, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: spreadsheet has no sheets", domain.ErrValidation)
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read sheet %q: %w", domain.ErrValidation, sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read csv: %w", domain.ErrValidation, err)
	}
	return rows, nil
}

func fromRows(rows [][]string) ([]domain.ProfileTarget, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: profile list is empty; a %q column is required", domain.ErrValidation, URLColumn)
	}

	col := -1
	for i, name := range rows[0] {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == URLColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: profile list must contain a %q column", domain.ErrValidation, URLColumn)
	}

	targets := make([]domain.ProfileTarget, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		if p := domain.NormalizeProfile(row[col]); p != "" {
			targets = append(targets, p)
		}
	}
	return targets, nil
}
