package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/JonMunkholm/moviedata/internal/logging"
	"github.com/jackc/pgx/v5/pgtype"
)

func exportDataset(t *testing.T) (*Dataset, *logging.Recorder) {
	t.Helper()
	tbl := mustTable(t, []string{"id", "title", "release_date", "genres", "budget"},
		[]Cell{
			pgtype.Int2{Int16: 862, Valid: true},
			txt(`Toy "Story"`),
			pgtype.Date{Time: time.Date(1995, 10, 30, 0, 0, 0, 0, time.UTC), Valid: true},
			Literal{Data: []any{map[string]any{"id": int64(16), "name": "Animation"}}, Valid: true},
			pgtype.Float4{Float32: 1.5, Valid: true},
		},
		[]Cell{
			pgtype.Int2{Int16: 949, Valid: true},
			txt("Heat"),
			pgtype.Date{Time: time.Date(1995, 12, 15, 0, 0, 0, 0, time.UTC), Valid: true},
			Literal{},
			pgtype.Float4{},
		},
	)
	rec := logging.NewRecorder()
	return New(tbl, rec.Logger()), rec
}

func TestWriteJSON(t *testing.T) {
	const (
		toy  = `{"id":862,"title":"Toy \"Story\"","release_date":"1995-10-30","genres":[{"id":16,"name":"Animation"}],"budget":1.5}`
		heat = `{"id":949,"title":"Heat","release_date":"1995-12-15","genres":null,"budget":null}`
	)

	tests := []struct {
		orient Orient
		want   string
	}{
		{
			orient: OrientRecords,
			want:   `[` + toy + `,` + heat + `]`,
		},
		{
			orient: "",
			want:   `[` + toy + `,` + heat + `]`,
		},
		{
			orient: OrientIndex,
			want:   `{"0":` + toy + `,"1":` + heat + `}`,
		},
		{
			orient: OrientValues,
			want: `[[862,"Toy \"Story\"","1995-10-30",[{"id":16,"name":"Animation"}],1.5],` +
				`[949,"Heat","1995-12-15",null,null]]`,
		},
		{
			orient: OrientSplit,
			want: `{"columns":["id","title","release_date","genres","budget"],"index":[0,1],"data":` +
				`[[862,"Toy \"Story\"","1995-10-30",[{"id":16,"name":"Animation"}],1.5],` +
				`[949,"Heat","1995-12-15",null,null]]}`,
		},
		{
			orient: OrientColumns,
			want: `{"id":{"0":862,"1":949},"title":{"0":"Toy \"Story\"","1":"Heat"},` +
				`"release_date":{"0":"1995-10-30","1":"1995-12-15"},` +
				`"genres":{"0":[{"id":16,"name":"Animation"}],"1":null},"budget":{"0":1.5,"1":null}}`,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.orient), func(t *testing.T) {
			ds, _ := exportDataset(t)
			var buf bytes.Buffer
			if err := ds.WriteJSON(&buf, tt.orient); err != nil {
				t.Fatalf("WriteJSON() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("WriteJSON(%q) =\n%s\nwant\n%s", tt.orient, got, tt.want)
			}
			if !json.Valid(buf.Bytes()) {
				t.Error("output is not valid JSON")
			}
		})
	}
}

func TestWriteJSON_EmptyTable(t *testing.T) {
	ds := New(mustTable(t, []string{"id"}), logging.NewRecorder().Logger())
	var buf bytes.Buffer
	if err := ds.WriteJSON(&buf, OrientRecords); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[]" {
		t.Errorf("WriteJSON() = %q, want []", buf.String())
	}
}

func TestParseOrient(t *testing.T) {
	for _, o := range Orients {
		if got, err := ParseOrient(string(o)); err != nil || got != o {
			t.Errorf("ParseOrient(%q) = %q, %v", o, got, err)
		}
	}
	if got, err := ParseOrient(" Records "); err != nil || got != OrientRecords {
		t.Errorf("ParseOrient(Records) = %q, %v", got, err)
	}
	if _, err := ParseOrient("table"); !errors.Is(err, ErrInvalidOrient) {
		t.Errorf("ParseOrient(table) error = %v, want ErrInvalidOrient", err)
	}
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	ds, rec := cleanCSV(t, messyMovies(), CleanOptions{})
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "movies.json")

	if err := ds.SaveJSON(path, OrientRecords); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}
	if !rec.Has(slog.LevelInfo, "successfully written") {
		t.Error("write was not logged")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("output is not a JSON array of objects: %v", err)
	}
	if len(records) != ds.Len() {
		t.Fatalf("round trip has %d rows, want %d", len(records), ds.Len())
	}

	want := ds.Columns()
	sort.Strings(want)
	for i, r := range records {
		got := make([]string, 0, len(r))
		for k := range r {
			got = append(got, k)
		}
		sort.Strings(got)
		if len(got) != len(want) {
			t.Fatalf("row %d columns = %v, want %v", i, got, want)
		}
		for j := range got {
			if got[j] != want[j] {
				t.Fatalf("row %d columns = %v, want %v", i, got, want)
			}
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("output dir has %d entries, want only the export", len(entries))
	}
}

func TestSaveJSON_Overwrites(t *testing.T) {
	ds, _ := exportDataset(t)
	path := filepath.Join(t.TempDir(), "movies.json")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ds.SaveJSON(path, OrientValues); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !json.Valid(data) {
		t.Errorf("file not replaced: %q", data)
	}
}

func TestSaveJSON_Failures(t *testing.T) {
	t.Run("invalid orient", func(t *testing.T) {
		ds, rec := exportDataset(t)
		path := filepath.Join(t.TempDir(), "movies.json")
		if err := ds.SaveJSON(path, "table"); !errors.Is(err, ErrInvalidOrient) {
			t.Fatalf("SaveJSON() error = %v, want ErrInvalidOrient", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("file created for invalid orient")
		}
		if !rec.Has(slog.LevelError, "Error writing to file") {
			t.Error("failure was not logged")
		}
	})

	t.Run("parent is a file", func(t *testing.T) {
		ds, rec := exportDataset(t)
		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if err := ds.SaveJSON(filepath.Join(blocker, "movies.json"), OrientRecords); err == nil {
			t.Fatal("SaveJSON() error = nil")
		}
		if !rec.Has(slog.LevelError, "Error writing to file") {
			t.Error("failure was not logged")
		}
	})
}
