// Package catalog loads the items of a batch from spreadsheets, CSV exports
// or YAML/JSON job files, and filters and validates them.
package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/types"
)

// ErrUnsupportedFormat is returned for file extensions no loader handles.
var ErrUnsupportedFormat = errors.New("unsupported item file format")

// Issue kinds reported while loading.
const (
	IssueHeaderRow = "header_row"
	IssueInvalid   = "invalid"
	IssueDuplicate = "duplicate"
	IssueFiltered  = "filtered"
)

// Issue describes a row that was dropped while loading.
type Issue struct {
	Row    int    `json:"row,omitempty"`
	ItemID string `json:"item_id,omitempty"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Report is the outcome of loading an item file.
type Report struct {
	Items  []types.Item `json:"items"`
	Issues []Issue      `json:"issues,omitempty"`
}

// LoadFile reads items from path, then applies the include/exclude filters
// and validation from cfg. The format is chosen by file extension.
func LoadFile(path string, cfg config.CatalogConfig) (*Report, error) {
	filter, err := NewFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}

	var report *Report
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		report, err = loadSpreadsheet(path, cfg.Sheet)
	case ".csv":
		report, err = loadCSV(path)
	case ".yaml", ".yml":
		report, err = loadDocument(path, yaml.Unmarshal)
	case ".json":
		report, err = loadDocument(path, json.Unmarshal)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	report.Items = filter.apply(report)
	report.Items = validateItems(report)
	return report, nil
}

func loadSpreadsheet(path, sheet string) (*Report, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return parseRows(rows)
}

func loadCSV(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffComma(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(rows) == 0 {
		return &Report{}, nil
	}
	return parseRows(rows)
}

// sniffComma picks the delimiter from the first line; Spanish locale
// exports use semicolons.
func sniffComma(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

// document is the shape of YAML/JSON job files: either a bare list of items
// or an object with an items key.
type document struct {
	Items []types.Item `json:"items" yaml:"items"`
}

func loadDocument(path string, unmarshal func([]byte, interface{}) error) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read item file: %w", err)
	}

	var items []types.Item
	if err := unmarshal(data, &items); err != nil {
		var doc document
		if err2 := unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("failed to parse item file: %w", err)
		}
		items = doc.Items
	}
	for i := range items {
		items[i].ID = strings.TrimSpace(items[i].ID)
	}
	return &Report{Items: items}, nil
}
