package core

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// Render formats the summary as a table for terminal output.
func (s Summary) Render() string {
	rows := make([][]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		rows = append(rows, []string{c.Name, c.Type, strconv.Itoa(c.NonNull)})
	}
	out := renderTable(
		[]string{"Column", "Type", "Non-Null"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
	return out + "\n" + strconv.Itoa(s.Rows) + " rows\n"
}

// RenderYearCounts formats a MoviesPerYear result as a table.
func RenderYearCounts(counts []YearCount) string {
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{strconv.Itoa(c.Year), strconv.Itoa(c.Count)})
	}
	return renderTable([]string{"Year", "Movies"}, rows, []columnAlignment{alignLeft, alignRight})
}

// RenderPairs formats label/value rows as a two-column table with the
// values right-aligned.
func RenderPairs(label, value string, pairs [][2]string) string {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	return renderTable([]string{label, value}, rows, []columnAlignment{alignLeft, alignRight})
}

// RenderHistory formats the per-step row counts of a Clean run.
func RenderHistory(steps []StepResult) string {
	rows := make([][]string, 0, len(steps))
	for _, st := range steps {
		rows = append(rows, []string{
			st.Step,
			strconv.Itoa(st.RowsBefore),
			strconv.Itoa(st.RowsAfter),
			strconv.Itoa(st.RowsBefore - st.RowsAfter),
			st.Duration.Round(time.Microsecond).String(),
		})
	}
	return renderTable(
		[]string{"Step", "Before", "After", "Removed", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
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

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
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
