package core

// clean.go implements the cleaning pipeline.
//
// Steps run in a fixed order because each relies on the ones before it:
//
//  1. drop_columns          remove low-value columns (fails on unknown names)
//  2. drop_duplicates       remove rows identical to an earlier row
//  3. drop_empty_rows       remove rows with every cell null
//  4. drop_missing_title    remove rows with a null or blank title
//  5. coerce_numeric        id, popularity, budget to numbers; bad cells null
//  6. drop_missing_release  remove rows without release_date or original_language
//  7. parse_release_date    release_date to a date; unparseable rows removed
//  8. derive_release_year   release_year from release_date
//  9. parse_genres          genres literal to nested values; [] and NaN to null
//  10. summary              log column types and non-null counts
//
// Steps 4-9 skip a missing column with a warning. Step 1 never skips.

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/moviedata/internal/core/literal"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultDropColumns are removed by Clean unless CleanOptions overrides them.
var DefaultDropColumns = []string{
	"adult",
	"belongs_to_collection",
	"homepage",
	"imdb_id",
	"original_title",
	"overview",
	"poster_path",
	"production_companies",
	"production_countries",
	"runtime",
	"spoken_languages",
	"status",
	"tagline",
	"video",
}

// NumericColumns are coerced to numbers by Clean.
var NumericColumns = []string{ColumnID, ColumnPopularity, ColumnBudget}

// GenresPolicy decides what happens to a genres cell that is not a valid literal.
type GenresPolicy string

const (
	// GenresStrict aborts the pipeline on the first malformed cell.
	GenresStrict GenresPolicy = "strict"
	// GenresNull sets malformed cells to null and logs a warning per cell.
	GenresNull GenresPolicy = "null"
)

// ParseGenresPolicy converts a policy name. Empty selects GenresStrict.
func ParseGenresPolicy(s string) (GenresPolicy, error) {
	switch GenresPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", GenresStrict:
		return GenresStrict, nil
	case GenresNull:
		return GenresNull, nil
	default:
		return "", fmt.Errorf("%w: %q (want strict or null)", ErrInvalidGenresPolicy, s)
	}
}

// CleanOptions configures Clean.
type CleanOptions struct {
	// DropColumns overrides DefaultDropColumns when non-nil.
	// An empty, non-nil slice drops nothing.
	DropColumns []string

	// GenresPolicy defaults to GenresStrict.
	GenresPolicy GenresPolicy
}

// StepResult records one completed cleaning step.
type StepResult struct {
	Step       string        `json:"step"`
	RowsBefore int           `json:"rows_before"`
	RowsAfter  int           `json:"rows_after"`
	Duration   time.Duration `json:"duration_ns"`
}

type cleanStep struct {
	name string
	run  func() error
}

// Clean runs the cleaning pipeline on the dataset in place and returns it.
//
// On failure the error is logged and returned as a *CleanError naming the
// step; the dataset is returned too, marked Failed, with the table left as
// the failing step found it.
func (d *Dataset) Clean(opts CleanOptions) (*Dataset, error) {
	drop := opts.DropColumns
	if drop == nil {
		drop = DefaultDropColumns
	}
	policy := opts.GenresPolicy
	if policy == "" {
		policy = GenresStrict
	}

	steps := []cleanStep{
		{"drop_columns", func() error { return d.dropColumns(drop) }},
		{"drop_duplicates", d.dropDuplicates},
		{"drop_empty_rows", d.dropEmptyRows},
		{"drop_missing_title", d.dropMissingTitle},
		{"coerce_numeric", func() error { return d.coerceNumeric(NumericColumns) }},
		{"drop_missing_release", d.dropMissingRelease},
		{"parse_release_date", d.parseReleaseDate},
		{"derive_release_year", d.deriveReleaseYear},
		{"parse_genres", func() error { return d.parseGenres(policy) }},
		{"summary", d.logSummary},
	}

	d.logger.Info("cleaning dataset", "rows", d.table.Len(), "columns", len(d.table.columns))
	for _, s := range steps {
		if err := d.runStep(s); err != nil {
			d.failed = true
			d.logger.Error("cleaning failed", "step", s.name, "error", err)
			return d, err
		}
	}
	d.logger.Info("dataset cleaned", "rows", d.table.Len(), "columns", len(d.table.columns))
	return d, nil
}

func (d *Dataset) runStep(s cleanStep) (err error) {
	before := d.table.Len()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = &CleanError{Step: s.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := s.run(); err != nil {
		return &CleanError{Step: s.name, Err: err}
	}

	res := StepResult{
		Step:       s.name,
		RowsBefore: before,
		RowsAfter:  d.table.Len(),
		Duration:   time.Since(start),
	}
	d.history = append(d.history, res)
	d.logger.Info("clean step",
		"step", res.Step,
		"rows_before", res.RowsBefore,
		"rows_after", res.RowsAfter,
		"removed", res.RowsBefore-res.RowsAfter,
	)
	return nil
}

func (d *Dataset) dropColumns(names []string) error {
	if err := d.table.DropColumns(names...); err != nil {
		return err
	}
	d.logger.Info("dropped columns", "count", len(names), "columns", strings.Join(names, ","))
	return nil
}

func (d *Dataset) dropDuplicates() error {
	seen := make(map[string]struct{}, d.table.Len())
	d.table.Filter(func(_ int, row []Cell) bool {
		k := rowKey(row)
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
	return nil
}

func (d *Dataset) dropEmptyRows() error {
	d.table.Filter(func(_ int, row []Cell) bool {
		for _, c := range row {
			if !IsNull(c) {
				return true
			}
		}
		return false
	})
	return nil
}

func (d *Dataset) dropMissingTitle() error {
	pos, ok := d.table.index[ColumnTitle]
	if !ok {
		d.skipMissing(ColumnTitle)
		return nil
	}
	d.table.Filter(func(_ int, row []Cell) bool {
		t, ok := row[pos].(pgtype.Text)
		if !ok {
			return !IsNull(row[pos])
		}
		return t.Valid && strings.TrimSpace(t.String) != ""
	})
	return nil
}

func (d *Dataset) coerceNumeric(columns []string) error {
	for _, col := range columns {
		cells, ok := d.table.Column(col)
		if !ok {
			d.skipMissing(col)
			continue
		}

		values := make([]Number, len(cells))
		nulled := 0
		for i, c := range cells {
			values[i] = CellNumeric(c)
			if !values[i].Valid && !IsNull(c) {
				nulled++
			}
		}

		coerced := Downcast(values)
		if err := d.table.SetColumn(col, coerced); err != nil {
			return err
		}
		d.logger.Info("coerced column",
			"column", col,
			"type", columnType(coerced),
			"nulled", nulled,
		)
	}
	return nil
}

func (d *Dataset) dropMissingRelease() error {
	for _, col := range []string{ColumnReleaseDate, ColumnOriginalLanguage} {
		pos, ok := d.table.index[col]
		if !ok {
			d.skipMissing(col)
			continue
		}
		d.table.Filter(func(_ int, row []Cell) bool {
			return !IsNull(row[pos])
		})
	}
	return nil
}

func (d *Dataset) parseReleaseDate() error {
	pos, ok := d.table.index[ColumnReleaseDate]
	if !ok {
		d.skipMissing(ColumnReleaseDate)
		return nil
	}

	err := d.table.MapColumn(ColumnReleaseDate, func(_ int, c Cell) (Cell, error) {
		if t, ok := CellDate(c); ok {
			return pgtype.Date{Time: t, Valid: true}, nil
		}
		return pgtype.Date{}, nil
	})
	if err != nil {
		return err
	}

	removed := d.table.Filter(func(_ int, row []Cell) bool {
		return !IsNull(row[pos])
	})
	if removed > 0 {
		d.logger.Warn("dropped rows with unparseable release date", "rows", removed)
	}
	return nil
}

func (d *Dataset) deriveReleaseYear() error {
	dates, ok := d.table.Column(ColumnReleaseDate)
	if !ok {
		d.skipMissing(ColumnReleaseDate)
		return nil
	}

	years := make([]Cell, len(dates))
	for i, c := range dates {
		if t, ok := CellDate(c); ok {
			years[i] = pgtype.Text{String: fmt.Sprintf("%04d", t.Year()), Valid: true}
		} else {
			years[i] = pgtype.Text{}
		}
	}
	return d.table.SetColumn(ColumnReleaseYear, years)
}

func (d *Dataset) parseGenres(policy GenresPolicy) error {
	if !d.table.Has(ColumnGenres) {
		d.skipMissing(ColumnGenres)
		return nil
	}

	malformed := 0
	err := d.table.MapColumn(ColumnGenres, func(i int, c Cell) (Cell, error) {
		switch v := c.(type) {
		case Literal:
			if v.Valid && (v.Data == nil || literal.IsEmpty(v.Data)) {
				return Literal{}, nil
			}
			return v, nil
		case pgtype.Text:
			if !v.Valid {
				return Literal{}, nil
			}
			parsed, err := literal.Parse(v.String)
			if err != nil {
				lerr := &LiteralError{Column: ColumnGenres, Row: i, Value: v.String, Err: err}
				if policy == GenresNull {
					malformed++
					d.logger.Warn("malformed genres set to null", "row", i, "error", err)
					return Literal{}, nil
				}
				return nil, lerr
			}
			if parsed == nil || literal.IsEmpty(parsed) {
				return Literal{}, nil
			}
			return Literal{Data: parsed, Valid: true}, nil
		default:
			if IsNull(c) {
				return Literal{}, nil
			}
			return nil, fmt.Errorf("genres row %d: unexpected cell type %T", i, c)
		}
	})
	if err != nil {
		return err
	}
	if malformed > 0 {
		d.logger.Warn("genres cells nulled", "rows", malformed)
	}
	return nil
}

func (d *Dataset) logSummary() error {
	s := d.Summary()
	d.logger.Info("dataset summary", "rows", s.Rows, "columns", len(s.Columns))
	for _, c := range s.Columns {
		d.logger.Info("column", "name", c.Name, "type", c.Type, "non_null", c.NonNull)
	}
	return nil
}

func (d *Dataset) skipMissing(column string) {
	d.logger.Warn("column not found, step skipped", "column", column)
}
