// Package core provides the movie dataset loader, cleaning pipeline,
// reports and JSON export.
//
// This package holds all domain logic independent of any transport. It is
// used by the HTTP API in internal/web, by cmd/moviecleaner, and by tests
// without modification.
//
// # Data Model
//
// A [Dataset] wraps a column-ordered [Table] of [Cell] values plus the run
// identity, the step history and a logger. Cells are pgtype values
// (Text, Int2/Int4/Int8, Float4/Float8, Date) or a [Literal] holding a
// parsed nested field such as genres. An invalid cell is a null.
//
// # Loading
//
// [Load] and [Read] build a dataset from delimited text:
//
//  1. The input is decoded to UTF-8 via [NewDecodingReader] (BOM aware)
//  2. Records are parsed with encoding/csv, buffered or streamed
//     depending on [LoadOptions.LowMemory]
//  3. Header names are trimmed and de-duplicated
//  4. Cells matching a null token become null text cells
//
// # Cleaning
//
// [Dataset.Clean] runs a fixed sequence of steps and records a [StepResult]
// for each. The first failing step stops the run with a [*CleanError] and
// marks the dataset failed; the partial history is kept.
//
// # Reports and Export
//
// [Dataset.UniqueCount], [Dataset.AverageByColumn] and [Dataset.MoviesPerYear]
// read the table without modifying it. [Dataset.WriteJSON] streams one of the
// [Orients] layouts and [Dataset.SaveJSON] replaces a file atomically.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE007: File errors (size, format, encoding, access)
//   - CLN001-CLN004: Cleaning errors (columns, literals, policy)
//   - EXP001: Export errors (orient)
//   - UPL003-UPL005: Request errors (busy, cancelled, timeout)
//   - RATE001: Rate limit exceeded
package core
