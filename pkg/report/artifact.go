package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/entrhq/catalogsync/pkg/config"
)

// Artifact file names inside a run directory.
const (
	RunJSONFile     = "run.json"
	SummaryFile     = "summary.md"
	ResultsXLSXFile = "results.xlsx"
)

// ArtifactWriter writes run artifacts under <output>/<run id>/.
type ArtifactWriter struct {
	cfg config.ArtifactConfig
}

// NewArtifactWriter creates a writer for the enabled formats in cfg.
func NewArtifactWriter(cfg config.ArtifactConfig) *ArtifactWriter {
	return &ArtifactWriter{cfg: cfg}
}

// Dir returns the directory artifacts of runID are written to.
func (w *ArtifactWriter) Dir(runID string) string {
	return filepath.Join(w.cfg.OutputDir, runID)
}

// WriteAll writes every enabled format and returns the written paths.
func (w *ArtifactWriter) WriteAll(summary *RunSummary) ([]string, error) {
	if !w.cfg.Enabled {
		return nil, nil
	}
	dir := w.Dir(summary.Stats.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	steps := []struct {
		enabled bool
		name    string
		write   func(string, *RunSummary) error
	}{
		{w.cfg.JSON, RunJSONFile, writeRunJSON},
		{w.cfg.Markdown, SummaryFile, writeSummaryMarkdown},
		{w.cfg.Excel, ResultsXLSXFile, writeResultsXLSX},
	}
	for _, s := range steps {
		if !s.enabled {
			continue
		}
		path := filepath.Join(dir, s.name)
		if err := s.write(path, summary); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", s.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeRunJSON(path string, summary *RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Markdown renders the human-readable summary.
func Markdown(summary *RunSummary) string {
	st := summary.Stats
	var md strings.Builder

	md.WriteString("# Catalog Update Summary\n\n")
	fmt.Fprintf(&md, "**Run:** %s\n\n", st.RunID)
	if summary.Source != "" {
		fmt.Fprintf(&md, "**Source:** %s\n\n", summary.Source)
	}
	fmt.Fprintf(&md, "**Status:** %s\n\n", summary.Status)
	fmt.Fprintf(&md, "**Started:** %s\n\n", st.StartTime.Format(time.RFC3339))
	if !st.EndTime.IsZero() {
		fmt.Fprintf(&md, "**Completed:** %s\n\n", st.EndTime.Format(time.RFC3339))
	}
	fmt.Fprintf(&md, "**Duration:** %s\n\n", summary.Duration.Round(time.Second))

	md.WriteString("## Totals\n\n")
	fmt.Fprintf(&md, "- **Items:** %d\n", st.Total)
	fmt.Fprintf(&md, "- **Updated:** %d\n", st.Processed)
	fmt.Fprintf(&md, "- **Failed:** %d\n", st.Failed)
	if skipped := st.Total - st.Attempted(); skipped > 0 {
		fmt.Fprintf(&md, "- **Skipped:** %d\n", skipped)
	}
	if st.EventsDropped > 0 {
		fmt.Fprintf(&md, "- **Events dropped:** %d\n", st.EventsDropped)
	}
	md.WriteString("\n")

	if len(st.Errors) > 0 {
		md.WriteString("## Failures\n\n")
		md.WriteString("| Item | Error |\n|---|---|\n")
		for _, e := range st.Errors {
			fmt.Fprintf(&md, "| `%s` | %s |\n", e.ItemID, escapeCell(e.Error))
		}
		md.WriteString("\n")
	}

	var partial []string
	for _, r := range summary.Results {
		for _, fe := range r.FieldErrors {
			partial = append(partial, fmt.Sprintf("- `%s` %s: %s", r.ItemID, fe.Field, fe.Error))
		}
	}
	if len(partial) > 0 {
		md.WriteString("## Field Errors\n\n")
		md.WriteString(strings.Join(partial, "\n"))
		md.WriteString("\n")
	}
	return md.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func writeSummaryMarkdown(path string, summary *RunSummary) error {
	return os.WriteFile(path, []byte(Markdown(summary)), 0o600)
}

const (
	resultsSheet = "Resultados"
	totalsSheet  = "Resumen"
)

var resultsHeader = []interface{}{"SKU", "Estado", "Paso fallido", "Error", "Campos actualizados", "Errores de campo", "Captura", "Inicio", "Duración (s)"}

func writeResultsXLSX(path string, summary *RunSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &resultsHeader); err != nil {
		return err
	}
	for i, r := range summary.Results {
		state := "OK"
		if !r.Success {
			state = "ERROR"
		}
		fieldErrs := make([]string, len(r.FieldErrors))
		for j, fe := range r.FieldErrors {
			fieldErrs[j] = fe.Field + ": " + fe.Error
		}
		row := []interface{}{
			r.ItemID,
			state,
			r.FailedStep,
			r.Error,
			strings.Join(r.FieldsUpdated, ", "),
			strings.Join(fieldErrs, "; "),
			r.Screenshot,
			r.StartedAt.Format(time.DateTime),
			r.Duration.Seconds(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(totalsSheet); err != nil {
		return err
	}
	st := summary.Stats
	totals := [][]interface{}{
		{"Ejecución", st.RunID},
		{"Estado", summary.Status},
		{"Total", st.Total},
		{"Actualizados", st.Processed},
		{"Fallidos", st.Failed},
		{"Omitidos", st.Total - st.Attempted()},
		{"Duración (s)", summary.Duration.Seconds()},
	}
	for i, row := range totals {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(totalsSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
