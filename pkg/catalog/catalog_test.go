package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeSheet(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "items.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func ids(items []types.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestLoadFile_Spreadsheet(t *testing.T) {
	path := writeSheet(t, "Productos", [][]interface{}{
		{"Listado de precios"},
		{},
		{"SKU", "Descripción", "Marca", "Modelo", "Familia", "Potencia KVA", "field.seo_title"},
		{"GE-CUM-100", "Generador Cummins 100 KVA", "Cummins", "C100D5", "Grupos", "100", "Cummins 100"},
		{"SKU", "Descripción", "Marca", "Modelo", "Familia", "Potencia KVA", "field.seo_title"},
		{"CMP-50", "Compresor 50L", "Niwa", "", "Compresores", "", ""},
		{"", "", "", "", "", "", ""},
		{"CMP-50", "Compresor repetido", "Niwa"},
		{"", "Fila sin SKU"},
	})

	report, err := LoadFile(path, config.CatalogConfig{Sheet: "Productos"})
	require.NoError(t, err)

	require.Equal(t, []string{"GE-CUM-100", "CMP-50"}, ids(report.Items))
	first := report.Items[0]
	assert.Equal(t, "Generador Cummins 100 KVA", first.Name)
	assert.Equal(t, "Cummins", first.Brand)
	assert.Equal(t, "C100D5", first.Model)
	assert.Equal(t, "Grupos", first.Family)
	assert.Equal(t, "100", first.Attr("potencia_kva"))
	assert.Equal(t, types.Fields{"seo_title": "Cummins 100"}, first.Fields)
	assert.Nil(t, report.Items[1].Fields)
	assert.Equal(t, "Compresor 50L", report.Items[1].Name)

	kinds := map[string]int{}
	for _, is := range report.Issues {
		kinds[is.Kind]++
	}
	assert.Equal(t, map[string]int{IssueHeaderRow: 1, IssueDuplicate: 1, IssueInvalid: 1}, kinds)
}

func TestLoadFile_SpreadsheetActiveSheetAndMissingSheet(t *testing.T) {
	path := writeSheet(t, "Sheet1", [][]interface{}{
		{"id", "name"},
		{"A-1", "Uno"},
	})

	report, err := LoadFile(path, config.CatalogConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1"}, ids(report.Items))

	_, err = LoadFile(path, config.CatalogConfig{Sheet: "Nope"})
	assert.Error(t, err)
}

func TestLoadFile_CSV(t *testing.T) {
	t.Run("comma", func(t *testing.T) {
		path := writeFile(t, "items.csv", "SKU,Descripción,Marca\nA-1,\"Generador 5 KVA, nafta\",Honda\nB-2,Bomba,\n")
		report, err := LoadFile(path, config.CatalogConfig{})
		require.NoError(t, err)
		require.Len(t, report.Items, 2)
		assert.Equal(t, "Generador 5 KVA, nafta", report.Items[0].Name)
		assert.Equal(t, "Honda", report.Items[0].Brand)
		assert.Empty(t, report.Items[1].Brand)
	})

	t.Run("semicolon", func(t *testing.T) {
		path := writeFile(t, "items.csv", "Código;Nombre;Potencia\nA-1;Generador 5 KVA, nafta;5\n")
		report, err := LoadFile(path, config.CatalogConfig{})
		require.NoError(t, err)
		require.Len(t, report.Items, 1)
		assert.Equal(t, "A-1", report.Items[0].ID)
		assert.Equal(t, "Generador 5 KVA, nafta", report.Items[0].Name)
		assert.Equal(t, "5", report.Items[0].Attr("potencia"))
	})

	t.Run("no header", func(t *testing.T) {
		path := writeFile(t, "items.csv", "foo,bar\n1,2\n")
		_, err := LoadFile(path, config.CatalogConfig{})
		assert.ErrorContains(t, err, "no header row")
	})

	t.Run("empty", func(t *testing.T) {
		path := writeFile(t, "items.csv", "")
		report, err := LoadFile(path, config.CatalogConfig{})
		require.NoError(t, err)
		assert.Empty(t, report.Items)
	})
}

func TestLoadFile_YAMLAndJSON(t *testing.T) {
	yamlList := writeFile(t, "items.yaml", `
- id: A-1
  name: Generador
  attributes:
    potencia_kva: "10"
- id: " B-2 "
  fields:
    seo_title: Bomba centrífuga
`)
	report, err := LoadFile(yamlList, config.CatalogConfig{})
	require.NoError(t, err)
	require.Equal(t, []string{"A-1", "B-2"}, ids(report.Items))
	assert.Equal(t, "10", report.Items[0].Attr("potencia_kva"))
	assert.Equal(t, "Bomba centrífuga", report.Items[1].Fields["seo_title"])

	yamlDoc := writeFile(t, "job.yml", "items:\n  - id: C-3\n")
	report, err = LoadFile(yamlDoc, config.CatalogConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"C-3"}, ids(report.Items))

	jsonDoc := writeFile(t, "job.json", `{"items":[{"id":"D-4","brand":"Niwa"},{"id":"D-4"}]}`)
	report, err = LoadFile(jsonDoc, config.CatalogConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"D-4"}, ids(report.Items))
	assert.Equal(t, "Niwa", report.Items[0].Brand)

	broken := writeFile(t, "job.json", `{"items": [`)
	_, err = LoadFile(broken, config.CatalogConfig{})
	assert.ErrorContains(t, err, "failed to parse item file")
}

func TestLoadFile_Filters(t *testing.T) {
	path := writeFile(t, "items.csv", "SKU\nGE-1\nGE-2\nCMP-1\nGE-OLD-3\n")
	report, err := LoadFile(path, config.CatalogConfig{
		Include: []string{"GE-*"},
		Exclude: []string{"*-OLD-*"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"GE-1", "GE-2"}, ids(report.Items))

	filtered := 0
	for _, is := range report.Issues {
		if is.Kind == IssueFiltered {
			filtered++
		}
	}
	assert.Equal(t, 2, filtered)

	_, err = LoadFile(path, config.CatalogConfig{Include: []string{"[unclosed"}})
	assert.ErrorContains(t, err, "invalid include pattern")
}

func TestLoadFile_Unsupported(t *testing.T) {
	_, err := LoadFile("items.txt", config.CatalogConfig{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFilter(t *testing.T) {
	f, err := NewFilter(nil, nil)
	require.NoError(t, err)
	assert.True(t, f.Match("anything"))

	f, err = NewFilter([]string{"A-*", "B-?"}, []string{"A-9*"})
	require.NoError(t, err)
	assert.True(t, f.Match("A-1"))
	assert.True(t, f.Match("B-2"))
	assert.False(t, f.Match("B-22"))
	assert.False(t, f.Match("A-90"))
	assert.Equal(t, []string{"A-1", "B-2"}, ids(f.Apply([]types.Item{{ID: "A-1"}, {ID: "C-1"}, {ID: "B-2"}})))

	_, err = NewFilter(nil, []string{"[a"})
	assert.ErrorContains(t, err, "invalid exclude pattern")

	_, err = NewFilter([]string{"[]"}, nil)
	assert.ErrorContains(t, err, "invalid include pattern")
}

func TestValidateItem(t *testing.T) {
	assert.NoError(t, ValidateItem(types.Item{ID: "GE-1"}))
	assert.ErrorContains(t, ValidateItem(types.Item{}), "ID failed required")
	assert.ErrorContains(t, ValidateItem(types.Item{ID: "GE\n1"}), "searchable")
	assert.ErrorContains(t, ValidateItem(types.Item{ID: strings.Repeat("x", 101)}), "max")
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "descripcion", normalizeHeader(" Descripción "))
	assert.Equal(t, "potencia_kva", normalizeHeader("Potencia   KVA"))
	assert.Equal(t, "field.seo_title", normalizeHeader("Field.SEO_Title"))
}
