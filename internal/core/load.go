package core

// load.go builds a Dataset from delimited text.
//
// Every cell is read as pgtype.Text; tokens listed in NullValues become null.
// Types are assigned later by the cleaning pipeline, so loading never fails
// on cell content, only on unreadable or structurally broken input.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
)

// LoadOptions controls how input is decoded and parsed.
type LoadOptions struct {
	// Encoding is the character encoding label (default "utf-8").
	Encoding string

	// LowMemory streams records one at a time with strict quoting.
	// When false the decoded input is buffered whole and parsed with
	// lenient quoting, which copes better with hand-edited files.
	LowMemory bool

	// Delimiter separates fields (default ',').
	Delimiter rune

	// NullValues are the cell values read as null (default DefaultNullValues).
	NullValues []string
}

// Load reads the delimited file at path into a Dataset.
// Missing or unreadable files are logged and returned as errors that still
// match fs.ErrNotExist / fs.ErrPermission.
func Load(path string, opts LoadOptions, logger *slog.Logger) (*Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Error("file not found", "path", path)
		case errors.Is(err, fs.ErrPermission):
			logger.Error("permission denied", "path", path)
		default:
			logger.Error("failed to open input", "path", path, "error", err)
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	defer f.Close()

	ds, err := Read(f, opts, logger.With("path", path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// Read parses delimited text from r into a Dataset.
func Read(r io.Reader, opts LoadOptions, logger *slog.Logger) (*Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}

	counter := NewCountingReader(r)
	decoded, err := NewDecodingReader(counter, opts.Encoding)
	if err != nil {
		logger.Error("unsupported encoding", "encoding", opts.Encoding, "error", err)
		return nil, err
	}

	t, err := readTable(decoded, opts)
	if err != nil {
		logger.Error("failed to read input", "error", err)
		return nil, err
	}

	ds := New(t, logger)
	ds.logger.Info("dataset loaded",
		"rows", t.Len(),
		"columns", len(t.columns),
		"bytes", counter.BytesRead,
		"low_memory", opts.LowMemory,
	)
	return ds, nil
}

func readTable(r io.Reader, opts LoadOptions) (*Table, error) {
	if !opts.LowMemory {
		buf, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		r = bytes.NewReader(buf)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = !opts.LowMemory
	cr.ReuseRecord = opts.LowMemory
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, csvError("read header", err)
	}

	t, err := NewTable(headerNames(header))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	nullValues := opts.NullValues
	if nullValues == nil {
		nullValues = DefaultNullValues
	}
	nulls := nullSet(nullValues)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError("read record", err)
		}
		if len(rec) > len(t.columns) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrInvalidCSV, line, len(rec), len(t.columns))
		}

		row := make([]Cell, len(rec), len(t.columns))
		for i, v := range rec {
			row[i] = NullText(v, nulls)
		}
		if err := t.Append(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// csvError marks parse failures with ErrInvalidCSV and passes I/O errors
// from the underlying reader through unchanged.
func csvError(op string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCSV, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// headerNames makes header cells usable as unique column names.
// Blank names become "Unnamed: <i>"; repeats get ".1", ".2", ... suffixes.
func headerNames(raw []string) []string {
	used := make(map[string]struct{}, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		name := h
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := used[name]; dup {
			for k := 1; ; k++ {
				candidate := fmt.Sprintf("%s.%d", name, k)
				if _, taken := used[candidate]; !taken {
					name = candidate
					break
				}
			}
		}
		used[name] = struct{}{}
		out[i] = name
	}
	return out
}
