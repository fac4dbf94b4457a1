package core

import (
	"database/sql/driver"
	"encoding/json"
)

// Literal is a cell holding a parsed nested value, such as a genre list.
// Data holds the values produced by the literal package.
type Literal struct {
	Data  any
	Valid bool
}

// Value returns the JSON text of Data, or nil when the cell is null.
func (l Literal) Value() (driver.Value, error) {
	if !l.Valid {
		return nil, nil
	}
	b, err := json.Marshal(l.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// String returns the JSON text of Data, or "" when the cell is null.
func (l Literal) String() string {
	v, err := l.Value()
	if err != nil || v == nil {
		return ""
	}
	return v.(string)
}

// MarshalJSON encodes Data as nested JSON.
func (l Literal) MarshalJSON() ([]byte, error) {
	if !l.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(l.Data)
}
