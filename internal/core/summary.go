package core

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// ColumnSummary describes one column of a dataset.
type ColumnSummary struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	NonNull int    `json:"non_null"`
}

// Summary is the structural overview logged at the end of Clean.
type Summary struct {
	Rows    int             `json:"rows"`
	Columns []ColumnSummary `json:"columns"`
}

// Summary reports the row count and each column's type and non-null count.
func (d *Dataset) Summary() Summary {
	s := Summary{Rows: d.table.Len(), Columns: make([]ColumnSummary, 0, len(d.table.columns))}
	for _, name := range d.table.columns {
		cells, _ := d.table.Column(name)
		nonNull := 0
		for _, c := range cells {
			if !IsNull(c) {
				nonNull++
			}
		}
		s.Columns = append(s.Columns, ColumnSummary{
			Name:    name,
			Type:    columnType(cells),
			NonNull: nonNull,
		})
	}
	return s
}

// columnType names the cell type shared by a column, "mixed" when cells
// disagree, or "unknown" for an empty column.
func columnType(cells []Cell) string {
	kind := ""
	for _, c := range cells {
		k := cellType(c)
		if k == "" {
			continue
		}
		if kind != "" && k != kind {
			return "mixed"
		}
		kind = k
	}
	if kind == "" {
		return "unknown"
	}
	return kind
}

func cellType(c Cell) string {
	switch c.(type) {
	case pgtype.Text:
		return "text"
	case pgtype.Int2:
		return "int16"
	case pgtype.Int4:
		return "int32"
	case pgtype.Int8:
		return "int64"
	case pgtype.Float4:
		return "float32"
	case pgtype.Float8:
		return "float64"
	case pgtype.Date:
		return "date"
	case Literal:
		return "object"
	case nil:
		return ""
	default:
		return "other"
	}
}
