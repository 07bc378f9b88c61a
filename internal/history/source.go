package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/xuri/excelize/v2"

	"carbmine/internal/types"
)

// CSVSource reads a CSV file. Paths ending in ".zst" are decompressed.
type CSVSource struct {
	Path string
}

// Load implements types.HistorySource.
func (s *CSVSource) Load(ctx context.Context) ([]types.HistoricalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", s.Path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(s.Path, ".zst") {
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd reader for %s: %w", s.Path, err)
		}
		defer dec.Close()
		r = dec
	}

	return ReadCSV(r)
}

// ReadCSV parses CSV data with a header row.
func ReadCSV(r io.Reader) ([]types.HistoricalRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	all, err := cr.ReadAll()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidDataset, "malformed CSV", err)
	}
	if len(all) == 0 {
		return []types.HistoricalRecord{}, nil
	}
	return ParseTable(all[0], all[1:])
}

// XLSXSource reads the first worksheet of an Excel workbook, or Sheet when set.
type XLSXSource struct {
	Path  string
	Sheet string
}

// Load implements types.HistorySource.
func (s *XLSXSource) Load(ctx context.Context) ([]types.HistoricalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.Path, err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidDataset, fmt.Sprintf("read sheet %q", sheet), err)
	}
	if len(rows) == 0 {
		return []types.HistoricalRecord{}, nil
	}
	return ParseTable(rows[0], rows[1:])
}

// Open picks a file source from the path extension.
func Open(path string) (types.HistorySource, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".zst":
		return &CSVSource{Path: path}, nil
	case ".xlsx", ".xlsm":
		return &XLSXSource{Path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported history format %q", ext)
	}
}
