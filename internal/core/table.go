package core

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Cell is a single nullable table value.
// Value returns nil for null. All pgtype values satisfy Cell.
type Cell interface {
	driver.Valuer
}

// IsNull reports whether c holds no value.
func IsNull(c Cell) bool {
	if c == nil {
		return true
	}
	v, err := c.Value()
	return err != nil || v == nil
}

// Table is a row-oriented grid of cells with named, ordered columns.
// Column names are unique. A Table is not safe for concurrent use.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Cell
}

// NewTable creates an empty table with the given columns.
// Returns an error if a column name is repeated.
func NewTable(columns []string) (*Table, error) {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := t.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		t.index[c] = i
	}
	return t, nil
}

// Append adds a row. Short rows are padded with nulls.
func (t *Table) Append(row []Cell) error {
	if len(row) > len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.columns))
	}
	for len(row) < len(t.columns) {
		row = append(row, pgtype.Text{})
	}
	t.rows = append(t.rows, row)
	return nil
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the table has the named column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Row returns row i. The slice is shared with the table.
func (t *Table) Row(i int) []Cell { return t.rows[i] }

// Get returns the cell at row i in the named column.
func (t *Table) Get(i int, column string) (Cell, bool) {
	pos, ok := t.index[column]
	if !ok {
		return nil, false
	}
	return t.rows[i][pos], true
}

// Column returns the cells of the named column in row order.
func (t *Table) Column(column string) ([]Cell, bool) {
	pos, ok := t.index[column]
	if !ok {
		return nil, false
	}
	out := make([]Cell, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[pos]
	}
	return out, true
}

// DropColumns removes the named columns.
// If any name is unknown nothing is dropped and an error wrapping
// ErrColumnNotFound lists every missing name.
func (t *Table) DropColumns(names ...string) error {
	var missing []string
	drop := make(map[int]bool, len(names))
	for _, n := range names {
		pos, ok := t.index[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		drop[pos] = true
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, strings.Join(quoteAll(missing), ", "))
	}

	keep := make([]int, 0, len(t.columns)-len(drop))
	for i := range t.columns {
		if !drop[i] {
			keep = append(keep, i)
		}
	}

	columns := make([]string, len(keep))
	for j, i := range keep {
		columns[j] = t.columns[i]
	}
	for r, row := range t.rows {
		next := make([]Cell, len(keep))
		for j, i := range keep {
			next[j] = row[i]
		}
		t.rows[r] = next
	}
	t.columns = columns
	t.reindex()
	return nil
}

// Filter keeps the rows for which keep returns true and returns the
// number of rows removed. Row order is preserved.
func (t *Table) Filter(keep func(i int, row []Cell) bool) int {
	kept := t.rows[:0]
	for i, row := range t.rows {
		if keep(i, row) {
			kept = append(kept, row)
		}
	}
	removed := len(t.rows) - len(kept)
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = nil
	}
	t.rows = kept
	return removed
}

// SetColumn replaces the named column, or appends it when absent.
// len(cells) must equal Len().
func (t *Table) SetColumn(column string, cells []Cell) error {
	if len(cells) != len(t.rows) {
		return fmt.Errorf("column %q has %d cells, table has %d rows", column, len(cells), len(t.rows))
	}
	pos, ok := t.index[column]
	if !ok {
		t.columns = append(t.columns, column)
		pos = len(t.columns) - 1
		t.index[column] = pos
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], nil)
		}
	}
	for i, c := range cells {
		t.rows[i][pos] = c
	}
	return nil
}

// MapColumn replaces every cell of the named column with fn's result.
// The first error from fn stops the walk and is returned unchanged.
func (t *Table) MapColumn(column string, fn func(i int, c Cell) (Cell, error)) error {
	pos, ok := t.index[column]
	if !ok {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	for i, row := range t.rows {
		c, err := fn(i, row[pos])
		if err != nil {
			return err
		}
		row[pos] = c
	}
	return nil
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		t.index[c] = i
	}
}

// cellKey renders c as a type-tagged string used for equality checks.
// Two cells share a key only if they hold the same kind of value.
func cellKey(c Cell) string {
	if IsNull(c) {
		return "\x00null"
	}
	switch v := c.(type) {
	case pgtype.Text:
		return "s:" + v.String
	case pgtype.Date:
		return "d:" + v.Time.Format(time.DateOnly)
	case Literal:
		return "l:" + v.String()
	}
	if n := CellNumeric(c); n.Valid {
		if n.Integral {
			return "n:" + strconv.FormatInt(n.Int, 10)
		}
		return "n:" + strconv.FormatFloat(n.Float, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", c, c)
}

// rowKey joins the cell keys of a row. Keys are length-prefixed so distinct
// rows never collide.
func rowKey(row []Cell) string {
	var b strings.Builder
	for i, c := range row {
		if i > 0 {
			b.WriteString("\x1f")
		}
		k := cellKey(c)
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Quote(v)
	}
	return out
}
