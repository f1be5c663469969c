package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SupportedExtension reports whether a file name has an ingestible extension.
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ReadFile loads a CSV or XLSX export from disk.
func ReadFile(path string) (Table, error) {
	if !SupportedExtension(path) {
		return Table{}, &domain.FormatError{File: filepath.Base(path), Reason: "only .csv and .xlsx exports are supported"}
	}
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadTable(f, filepath.Base(path))
}

// ReadTable parses an export whose format is chosen by the extension of name.
// The first row is the header.
func ReadTable(r io.Reader, name string) (Table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	default:
		return Table{}, &domain.FormatError{File: name, Reason: "only .csv and .xlsx exports are supported"}
	}
	if err != nil {
		return Table{}, &domain.FormatError{File: name, Reason: "file could not be parsed", Err: err}
	}
	if len(records) == 0 {
		return Table{}, &domain.FormatError{File: name, Reason: "file has no header row"}
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	return Table{Name: name, Header: header, Rows: records[1:]}, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}

	reader := csv.NewReader(br)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// readXLSX returns the rows of the first sheet.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from sheet %s: %w", sheet, err)
		}
		records = append(records, record)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in sheet %s: %w", sheet, err)
	}
	return records, nil
}

// LoadSources reads the export of each kind concurrently. The first failure aborts the load.
func LoadSources(ctx context.Context, files map[domain.SourceKind]string) ([]Source, error) {
	kinds := make([]domain.SourceKind, 0, len(files))
	for _, kind := range domain.SourceKinds {
		if _, ok := files[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	if len(kinds) != len(files) {
		return nil, fmt.Errorf("unknown source kind in %v", files)
	}

	sources := make([]Source, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			table, err := ReadFile(files[kind])
			if err != nil {
				return err
			}
			sources[i] = Source{Kind: kind, Table: table}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}
