package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ccoveille/go-safecast/v2"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"parajoin/pkg/relation"
)

// RelationSummary is what the inspect command knows about one file.
type RelationSummary struct {
	Path    string
	Rows    int
	Columns []relation.ColumnStats
}

// RenderRelation draws a relation summary as a titled table with one row
// per column.
func RenderRelation(s RelationSummary) string {
	title := titleStyle.Render(fmt.Sprintf("%s  %s rows, %d columns",
		s.Path, humanize.Comma(int64(s.Rows)), len(s.Columns)))

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("column", "min", "max", "distinct (est.)").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})

	for _, c := range s.Columns {
		if s.Rows == 0 {
			t.Row(fmt.Sprintf("c%d", c.Column), "-", "-", "0")
			continue
		}
		t.Row(
			fmt.Sprintf("c%d", c.Column),
			comma(c.Min),
			comma(c.Max),
			comma(c.Distinct),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render())
}

// comma groups digits of v. Values beyond int64 are printed plain.
func comma(v uint64) string {
	n, err := safecast.Convert[int64](v)
	if err != nil {
		return strconv.FormatUint(v, 10)
	}
	return humanize.Comma(n)
}

// RenderError draws a failed inspection.
func RenderError(path string, err error) string {
	return errorStyle.Render("✗ "+path) + " " + mutedStyle.Render(strings.TrimSpace(err.Error()))
}
