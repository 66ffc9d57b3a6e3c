package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// tableView pairs a header row with the columns that hold numeric data.
// Numeric columns render right-aligned, everything else left-aligned.
type tableView struct {
	headers []string
	numeric []int
}

// jobTable is the shared layout for the jobs and history views.
var jobTable = tableView{
	headers: []string{"ID", "Item", "Status", "Progress", "Rate", "Created"},
	numeric: []int{4},
}

func renderTable(view tableView, rows [][]string) string {
	columns := len(view.headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range view.headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	right := make(map[int]bool, len(view.numeric))
	for _, col := range view.numeric {
		right[col] = true
	}
	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if right[i] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
