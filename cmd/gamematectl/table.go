package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Count columns are right-aligned and
// summed into the footer.
type column struct {
	title string
	count bool
}

// renderTable draws rows with headers kept as written. A "Total" footer is
// added when there is more than one row and at least one count column.
func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault

	tw := table.NewWriter()
	tw.SetStyle(style)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	hasCounts := false
	for i, c := range cols {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if c.count {
			configs[i].Align = text.AlignRight
			configs[i].AlignFooter = text.AlignRight
			hasCounts = true
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	totals := make([]int, len(cols))
	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i, c := range cols {
			r[i] = ""
			if i >= len(row) {
				continue
			}
			r[i] = row[i]
			if n, err := strconv.Atoi(row[i]); c.count && err == nil {
				totals[i] += n
			}
		}
		tw.AppendRow(r)
	}

	if hasCounts && len(rows) > 1 {
		footer := make(table.Row, len(cols))
		for i, c := range cols {
			switch {
			case c.count:
				footer[i] = strconv.Itoa(totals[i])
			case i == 0:
				footer[i] = "Total"
			default:
				footer[i] = ""
			}
		}
		tw.AppendFooter(footer)
	}

	return tw.Render()
}
