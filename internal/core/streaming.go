package core

// streaming.go prepares raw input bytes for the CSV reader.
//
// Input is decoded from the requested character encoding into UTF-8 on the
// fly, without loading the file first:
//
//   - a UTF-8 or UTF-16 byte order mark overrides the requested encoding and
//     is removed (Windows tools add one)
//   - invalid UTF-8 sequences become U+FFFD instead of failing the load
//   - CountingReader tracks bytes read for the load log line
//
// Use NewDecodingReader to apply the transforms in the right order.

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is used when no encoding is requested.
const DefaultEncoding = "utf-8"

// LookupEncoding resolves an encoding label such as "utf-8", "latin1" or
// "windows-1252". Labels follow the WHATWG encoding standard.
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// NewDecodingReader wraps r so it yields UTF-8 decoded from the named
// encoding. A byte order mark at the start of r takes precedence.
func NewDecodingReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := LookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
