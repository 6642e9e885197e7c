package workflow

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RowMatch describes the search results table.
type RowMatch struct {
	// Rows is the number of result rows.
	Rows int
	// Index is the first row with a cell containing the identifier, or -1.
	Index int
}

// MatchRow parses the results table HTML and locates the first row, selected
// by rowSelector, that has a cell whose text contains id.
func MatchRow(tableHTML, rowSelector, id string) (RowMatch, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	if err != nil {
		return RowMatch{}, fmt.Errorf("failed to parse results table: %w", err)
	}

	match := RowMatch{Index: -1}
	needle := strings.TrimSpace(id)
	doc.Find(rowSelector).Each(func(i int, row *goquery.Selection) {
		match.Rows++
		if match.Index >= 0 || needle == "" {
			return
		}
		row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			if strings.Contains(strings.TrimSpace(cell.Text()), needle) {
				match.Index = i
				return false
			}
			return true
		})
	})
	return match, nil
}
