package core

// convert.go turns raw CSV text into typed, nullable cells.
//
// Every cell in a Table is a pgtype value (or a Literal for parsed nested
// fields). Invalid input never raises: the converters return a value with
// Valid=false, which is how the cleaner represents null.
//
//   - NullText:    raw text, null for empty input or an NA token
//   - ParseNumeric: strict numeric parse, exact for integers
//   - ToDate:      ISO dates first, then the common US/EU layouts
//   - Downcast:    picks the narrowest pgtype that holds a whole column

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/spf13/cast"
)

// numericRegex validates that a string is a valid numeric format.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// ISO layouts come first: release dates in movie exports are ISO.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006-1-2", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05",
		"2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// DefaultNullValues are the tokens read as null when loading text.
var DefaultNullValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// NullText converts a raw cell to pgtype.Text.
// The value is null when s is one of the supplied null tokens.
func NullText(s string, nulls map[string]struct{}) pgtype.Text {
	if _, ok := nulls[s]; ok {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// nullSet builds a lookup set from a list of null tokens.
func nullSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Number is a parsed numeric value. Integral values keep their exact
// int64 in Int; Float is always set.
type Number struct {
	Int      int64
	Float    float64
	Integral bool
	Valid    bool
}

// ParseNumeric parses s as a finite number. Plain integers are parsed
// exactly, so ids beyond 2^53 survive; anything else goes through float64.
// Whole floats inside the int64 range are marked Integral.
func ParseNumeric(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" || !numericRegex.MatchString(s) {
		return Number{}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Number{Int: i, Float: float64(i), Integral: true, Valid: true}
	}
	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}
	}
	return floatNumber(f)
}

func floatNumber(f float64) Number {
	n := Number{Float: f, Valid: true}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		n.Int, n.Integral = int64(f), true
	}
	return n
}

// ParseNumber parses s as a finite number.
// Returns false for empty input, non-numeric text, NaN and infinities.
func ParseNumber(s string) (float64, bool) {
	n := ParseNumeric(s)
	return n.Float, n.Valid
}

// ToDate converts a string to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
// Only the calendar date is kept; any time of day is dropped.
func ToDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{}
	}

	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return dateOf(t)
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return dateOf(t)
		}
	}

	return pgtype.Date{}
}

func dateOf(t time.Time) pgtype.Date {
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// CellDate returns the date held by c.
// Date cells are used as-is; text cells are parsed with ToDate.
func CellDate(c Cell) (time.Time, bool) {
	switch v := c.(type) {
	case pgtype.Date:
		if v.Valid && v.InfinityModifier == pgtype.Finite {
			return v.Time, true
		}
	case pgtype.Text:
		if v.Valid {
			if d := ToDate(v.String); d.Valid {
				return d.Time, true
			}
		}
	}
	return time.Time{}, false
}

// CellNumber returns the numeric value held by c.
// ok is false for nulls; numeric reports whether a non-null cell was a number.
func CellNumber(c Cell) (f float64, ok bool, numeric bool) {
	switch v := c.(type) {
	case pgtype.Int2:
		return float64(v.Int16), v.Valid, true
	case pgtype.Int4:
		return float64(v.Int32), v.Valid, true
	case pgtype.Int8:
		return float64(v.Int64), v.Valid, true
	case pgtype.Float4:
		return float64(v.Float32), v.Valid, true
	case pgtype.Float8:
		return v.Float64, v.Valid, true
	case pgtype.Text:
		if !v.Valid {
			return 0, false, true
		}
		f, parsed := ParseNumber(v.String)
		return f, parsed, parsed
	}
	return 0, false, IsNull(c)
}

// CellNumeric returns the Number held by c. Integer cells keep their exact
// value; text cells are parsed with ParseNumeric. Nulls and non-numeric
// cells give an invalid Number.
func CellNumeric(c Cell) Number {
	switch v := c.(type) {
	case pgtype.Int2:
		return Number{Int: int64(v.Int16), Float: float64(v.Int16), Integral: true, Valid: v.Valid}
	case pgtype.Int4:
		return Number{Int: int64(v.Int32), Float: float64(v.Int32), Integral: true, Valid: v.Valid}
	case pgtype.Int8:
		return Number{Int: v.Int64, Float: float64(v.Int64), Integral: true, Valid: v.Valid}
	case pgtype.Float4:
		if !v.Valid {
			return Number{}
		}
		return floatNumber(float64(v.Float32))
	case pgtype.Float8:
		if !v.Valid {
			return Number{}
		}
		return floatNumber(v.Float64)
	case pgtype.Text:
		if !v.Valid {
			return Number{}
		}
		return ParseNumeric(v.String)
	}
	return Number{}
}

// Downcast converts a column of parsed numbers into the narrowest pgtype
// that holds every value exactly. Invalid numbers become nulls.
//
// Integral columns use Int2, Int4 or Int8 built from the exact integers;
// anything else uses Float4 when every value survives the float32 round
// trip, otherwise Float8.
func Downcast(values []Number) []Cell {
	integral := true
	fitsFloat32 := true
	var lo, hi int64
	seen := false
	for _, n := range values {
		if !n.Valid {
			continue
		}
		if !n.Integral {
			integral = false
		}
		if float64(float32(n.Float)) != n.Float {
			fitsFloat32 = false
		}
		if !seen || n.Int < lo {
			lo = n.Int
		}
		if !seen || n.Int > hi {
			hi = n.Int
		}
		seen = true
	}

	out := make([]Cell, len(values))
	switch {
	case integral && lo >= math.MinInt16 && hi <= math.MaxInt16:
		for i, n := range values {
			out[i] = pgtype.Int2{Int16: int16(n.Int), Valid: n.Valid}
		}
	case integral && lo >= math.MinInt32 && hi <= math.MaxInt32:
		for i, n := range values {
			out[i] = pgtype.Int4{Int32: int32(n.Int), Valid: n.Valid}
		}
	case integral:
		for i, n := range values {
			out[i] = pgtype.Int8{Int64: n.Int, Valid: n.Valid}
		}
	case fitsFloat32:
		for i, n := range values {
			out[i] = pgtype.Float4{Float32: float32(n.Float), Valid: n.Valid}
		}
	default:
		for i, n := range values {
			out[i] = pgtype.Float8{Float64: n.Float, Valid: n.Valid}
		}
	}
	return out
}
