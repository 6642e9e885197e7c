package catalog

import (
	"fmt"
	"strings"

	"github.com/entrhq/catalogsync/pkg/types"
)

// FieldColumnPrefix marks columns whose values are written verbatim into
// the editor field named after the prefix, e.g. "field.seo_title".
const FieldColumnPrefix = "field."

type column int

const (
	colAttribute column = iota
	colID
	colName
	colBrand
	colModel
	colFamily
	colField
)

var headerAliases = map[string]column{
	"sku":         colID,
	"id":          colID,
	"codigo":      colID,
	"code":        colID,
	"descripcion": colName,
	"nombre":      colName,
	"name":        colName,
	"marca":       colBrand,
	"brand":       colBrand,
	"modelo":      colModel,
	"model":       colModel,
	"familia":     colFamily,
	"family":      colFamily,
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
)

// normalizeHeader lowercases, strips accents and joins words with "_".
func normalizeHeader(h string) string {
	h = accentReplacer.Replace(strings.TrimSpace(h))
	h = strings.ToLower(h)
	return strings.Join(strings.Fields(h), "_")
}

type header struct {
	kinds []column
	keys  []string
}

func parseHeader(row []string) (header, bool) {
	h := header{kinds: make([]column, len(row)), keys: make([]string, len(row))}
	hasID := false
	for i, cell := range row {
		key := normalizeHeader(cell)
		h.keys[i] = key
		switch {
		case strings.HasPrefix(key, FieldColumnPrefix):
			h.kinds[i] = colField
			h.keys[i] = strings.TrimPrefix(key, FieldColumnPrefix)
		default:
			if kind, ok := headerAliases[key]; ok {
				h.kinds[i] = kind
				hasID = hasID || kind == colID
			}
		}
	}
	return h, hasID
}

// isHeaderRepeat reports rows that repeat the header, as left behind when
// several exports are concatenated.
func (h header) isHeaderRepeat(row []string) bool {
	for i, cell := range row {
		if i < len(h.kinds) && h.kinds[i] == colID {
			return headerAliases[normalizeHeader(cell)] == colID
		}
	}
	return false
}

// parseRows maps a table with a header row onto items. The header is the
// first row that names an identifier column; rows above it are ignored.
func parseRows(rows [][]string) (*Report, error) {
	start := -1
	var h header
	for i, row := range rows {
		if parsed, ok := parseHeader(row); ok {
			start, h = i, parsed
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no header row with an SKU or ID column found")
	}

	report := &Report{}
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		line := i + 1
		if isBlank(row) {
			continue
		}
		if h.isHeaderRepeat(row) {
			report.Issues = append(report.Issues, Issue{Row: line, Kind: IssueHeaderRow, Detail: "repeated header row"})
			continue
		}
		report.Items = append(report.Items, h.item(row))
	}
	return report, nil
}

func (h header) item(row []string) types.Item {
	var item types.Item
	for i, kind := range h.kinds {
		if i >= len(row) {
			break
		}
		val := strings.TrimSpace(row[i])
		if val == "" {
			continue
		}
		switch kind {
		case colID:
			item.ID = val
		case colName:
			item.Name = val
		case colBrand:
			item.Brand = val
		case colModel:
			item.Model = val
		case colFamily:
			item.Family = val
		case colField:
			if item.Fields == nil {
				item.Fields = types.Fields{}
			}
			item.Fields[h.keys[i]] = row[i]
		default:
			if h.keys[i] == "" {
				continue
			}
			if item.Attributes == nil {
				item.Attributes = map[string]string{}
			}
			item.Attributes[h.keys[i]] = val
		}
	}
	return item
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
