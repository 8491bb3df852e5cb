package main

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// column describes one table column. MaxWidth of zero leaves the column unbounded.
type column struct {
	Title    string
	Right    bool
	MaxWidth int
}

var (
	queueListColumns = []column{
		{Title: "ID"},
		{Title: "Type"},
		{Title: "Status"},
		{Title: "Post"},
		{Title: "Created"},
		{Title: "Description", MaxWidth: descriptionWidth},
	}
	queueStatsColumns = []column{
		{Title: "Status"},
		{Title: "Count", Right: true},
	}
	checkColumns = []column{
		{Title: "Check"},
		{Title: "Result"},
		{Title: "Detail", MaxWidth: 72},
	}
)

// renderTable draws rows with a rounded frame on a terminal and borderless otherwise.
func renderTable(out io.Writer, columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	if isTerminal(out) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
	}

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.Title
		align := text.AlignLeft
		if col.Right {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
		if col.MaxWidth > 0 {
			configs[i].WidthMax = col.MaxWidth
			configs[i].WidthMaxEnforcer = text.Trim
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	return tw.Render() + "\n"
}

// checkResult labels a preflight outcome, in color when out is a terminal.
func checkResult(out io.Writer, passed bool) string {
	label, color := "ok", text.FgGreen
	if !passed {
		label, color = "FAIL", text.FgRed
	}
	if !isTerminal(out) {
		return label
	}
	return color.Sprint(label)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
