package core

// export.go serializes a Dataset as JSON.
//
// Layouts follow the usual dataframe "orient" names:
//
//	records  [{"col": v, ...}, ...]
//	split    {"columns": [...], "index": [...], "data": [[...], ...]}
//	index    {"0": {"col": v, ...}, ...}
//	columns  {"col": {"0": v, ...}, ...}
//	values   [[...], ...]
//
// Object keys keep column order. Dates are written as YYYY-MM-DD.

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Orient selects the JSON layout.
type Orient string

const (
	OrientRecords Orient = "records"
	OrientSplit   Orient = "split"
	OrientIndex   Orient = "index"
	OrientColumns Orient = "columns"
	OrientValues  Orient = "values"
)

// Orients lists every supported layout.
var Orients = []Orient{OrientRecords, OrientSplit, OrientIndex, OrientColumns, OrientValues}

// ParseOrient converts a layout name. Empty selects OrientRecords.
func ParseOrient(s string) (Orient, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return OrientRecords, nil
	}
	for _, o := range Orients {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrient, s)
}

// WriteJSON writes the dataset to w in the given layout.
func (d *Dataset) WriteJSON(w io.Writer, orient Orient) error {
	o, err := ParseOrient(string(orient))
	if err != nil {
		return err
	}

	enc := &jsonWriter{w: bufio.NewWriter(w), t: d.table}
	switch o {
	case OrientRecords:
		enc.records()
	case OrientSplit:
		enc.split()
	case OrientIndex:
		enc.index()
	case OrientColumns:
		enc.columns()
	case OrientValues:
		enc.values()
	}
	if enc.err != nil {
		return enc.err
	}
	return enc.w.Flush()
}

// SaveJSON writes the dataset to path, replacing any existing file
// atomically. Failures are logged and returned.
func (d *Dataset) SaveJSON(path string, orient Orient) error {
	if _, err := ParseOrient(string(orient)); err != nil {
		d.logger.Error("Error writing to file", "path", path, "error", err)
		return err
	}

	err := writeFileAtomic(path, func(w io.Writer) error {
		return d.WriteJSON(w, orient)
	})
	if err != nil {
		d.logger.Error("Error writing to file", "path", path, "error", err)
		return fmt.Errorf("save %s: %w", path, err)
	}

	d.logger.Info(fmt.Sprintf("File %s successfully written.", path),
		"rows", d.table.Len(),
		"orient", string(orient),
	)
	return nil
}

// jsonWriter accumulates the first write error so layouts can be written
// without checking every call.
type jsonWriter struct {
	w   *bufio.Writer
	t   *Table
	err error
}

func (e *jsonWriter) raw(s string) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

func (e *jsonWriter) str(s string) {
	if e.err != nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		e.err = err
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *jsonWriter) cell(c Cell) {
	if e.err != nil {
		return
	}
	s, err := cellJSON(c)
	if err != nil {
		e.err = err
		return
	}
	e.raw(s)
}

func (e *jsonWriter) object(row []Cell) {
	e.raw("{")
	for i, name := range e.t.columns {
		if i > 0 {
			e.raw(",")
		}
		e.str(name)
		e.raw(":")
		e.cell(row[i])
	}
	e.raw("}")
}

func (e *jsonWriter) array(row []Cell) {
	e.raw("[")
	for i, c := range row {
		if i > 0 {
			e.raw(",")
		}
		e.cell(c)
	}
	e.raw("]")
}

func (e *jsonWriter) records() {
	e.raw("[")
	for i, row := range e.t.rows {
		if i > 0 {
			e.raw(",")
		}
		e.object(row)
	}
	e.raw("]")
}

func (e *jsonWriter) values() {
	e.raw("[")
	for i, row := range e.t.rows {
		if i > 0 {
			e.raw(",")
		}
		e.array(row)
	}
	e.raw("]")
}

func (e *jsonWriter) split() {
	e.raw(`{"columns":[`)
	for i, name := range e.t.columns {
		if i > 0 {
			e.raw(",")
		}
		e.str(name)
	}
	e.raw(`],"index":[`)
	for i := range e.t.rows {
		if i > 0 {
			e.raw(",")
		}
		e.raw(strconv.Itoa(i))
	}
	e.raw(`],"data":`)
	e.values()
	e.raw("}")
}

func (e *jsonWriter) index() {
	e.raw("{")
	for i, row := range e.t.rows {
		if i > 0 {
			e.raw(",")
		}
		e.str(strconv.Itoa(i))
		e.raw(":")
		e.object(row)
	}
	e.raw("}")
}

func (e *jsonWriter) columns() {
	e.raw("{")
	for j, name := range e.t.columns {
		if j > 0 {
			e.raw(",")
		}
		e.str(name)
		e.raw(":{")
		for i, row := range e.t.rows {
			if i > 0 {
				e.raw(",")
			}
			e.str(strconv.Itoa(i))
			e.raw(":")
			e.cell(row[j])
		}
		e.raw("}")
	}
	e.raw("}")
}

// cellJSON encodes a single cell as a JSON value.
func cellJSON(c Cell) (string, error) {
	if IsNull(c) {
		return "null", nil
	}
	switch v := c.(type) {
	case pgtype.Text:
		b, err := json.Marshal(v.String)
		return string(b), err
	case pgtype.Int2:
		return strconv.FormatInt(int64(v.Int16), 10), nil
	case pgtype.Int4:
		return strconv.FormatInt(int64(v.Int32), 10), nil
	case pgtype.Int8:
		return strconv.FormatInt(v.Int64, 10), nil
	case pgtype.Float4:
		return strconv.FormatFloat(float64(v.Float32), 'g', -1, 32), nil
	case pgtype.Float8:
		return strconv.FormatFloat(v.Float64, 'g', -1, 64), nil
	case pgtype.Date:
		return `"` + v.Time.Format(time.DateOnly) + `"`, nil
	case Literal:
		b, err := v.MarshalJSON()
		return string(b), err
	}
	val, err := c.Value()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(val)
	return string(b), err
}

// writeFileAtomic writes path through a temporary file in the same
// directory and renames it into place. The temporary file is removed on
// any failure.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
