package core

import (
	"log/slog"

	"github.com/google/uuid"
)

// Column names the cleaner and reports rely on.
const (
	ColumnID               = "id"
	ColumnTitle            = "title"
	ColumnReleaseDate      = "release_date"
	ColumnReleaseYear      = "release_year"
	ColumnOriginalLanguage = "original_language"
	ColumnPopularity       = "popularity"
	ColumnBudget           = "budget"
	ColumnGenres           = "genres"
	ColumnVoteAverage      = "vote_average"
)

// Dataset owns a movie table and the operations that clean and query it.
//
// A Dataset is loaded once, cleaned once and then only read. It is not safe
// for concurrent use; callers serialize access to one instance.
type Dataset struct {
	table   *Table
	logger  *slog.Logger
	runID   string
	history []StepResult
	failed  bool
}

// New wraps t in a Dataset. A nil logger uses slog.Default().
// Every log line carries the dataset's run id.
func New(t *Table, logger *slog.Logger) *Dataset {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Dataset{
		table:  t,
		logger: logger.With("run_id", id),
		runID:  id,
	}
}

// Table returns the underlying table.
func (d *Dataset) Table() *Table { return d.table }

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.table.Len() }

// Columns returns the column names in order.
func (d *Dataset) Columns() []string { return d.table.Columns() }

// RunID identifies this dataset in logs.
func (d *Dataset) RunID() string { return d.runID }

// History returns the results of the cleaning steps that ran.
func (d *Dataset) History() []StepResult {
	return append([]StepResult(nil), d.history...)
}

// Failed reports whether a Clean call stopped part-way. The table is then
// in an intermediate state and should not be trusted.
func (d *Dataset) Failed() bool { return d.failed }
