package core

import (
	"fmt"
	"sort"
)

// YearCount is the number of movies released in one year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// UniqueCount returns the number of distinct non-null values in column
// (default "id"). A missing column is logged and reported as false.
func (d *Dataset) UniqueCount(column string) (int, bool) {
	column = orDefault(column, ColumnID)
	cells, ok := d.reportColumn(column)
	if !ok {
		return 0, false
	}

	seen := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		if IsNull(c) {
			continue
		}
		seen[cellKey(c)] = struct{}{}
	}
	d.logger.Info(fmt.Sprintf("Number of unique movies: %d", len(seen)), "column", column)
	return len(seen), true
}

// AverageByColumn returns the mean of the non-null values in column
// (default "vote_average"). Text cells are parsed as numbers. A missing
// column, a non-numeric value or a column with no values is logged and
// reported as false.
func (d *Dataset) AverageByColumn(column string) (float64, bool) {
	column = orDefault(column, ColumnVoteAverage)
	cells, ok := d.reportColumn(column)
	if !ok {
		return 0, false
	}

	var sum float64
	n := 0
	for i, c := range cells {
		f, ok, numeric := CellNumber(c)
		if !numeric {
			d.logger.Error(fmt.Sprintf("'%s' column is not numeric.", column), "row", i)
			return 0, false
		}
		if !ok {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		d.logger.Error(fmt.Sprintf("'%s' column has no values.", column))
		return 0, false
	}

	avg := sum / float64(n)
	d.logger.Info(fmt.Sprintf("Average rating for all movies, based on the '%s': %.2f", column, avg))
	return avg, true
}

// MoviesPerYear counts rows by the year of column (default "release_date"),
// ascending by year. Years are derived from the column itself, so this works
// whether or not Clean has run. Cells without a parseable date are skipped.
func (d *Dataset) MoviesPerYear(column string) ([]YearCount, bool) {
	column = orDefault(column, ColumnReleaseDate)
	cells, ok := d.reportColumn(column)
	if !ok {
		return nil, false
	}

	counts := make(map[int]int)
	skipped := 0
	for _, c := range cells {
		t, ok := CellDate(c)
		if !ok {
			skipped++
			continue
		}
		counts[t.Year()]++
	}

	out := make([]YearCount, 0, len(counts))
	for y, n := range counts {
		out = append(out, YearCount{Year: y, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })

	d.logger.Info("Number of films released in each year", "years", len(out), "skipped", skipped)
	for _, yc := range out {
		d.logger.Debug("films per year", "year", yc.Year, "count", yc.Count)
	}
	return out, true
}

func (d *Dataset) reportColumn(column string) ([]Cell, bool) {
	cells, ok := d.table.Column(column)
	if !ok {
		d.logger.Error(fmt.Sprintf("'%s' column not found.", column))
		return nil, false
	}
	return cells, true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
