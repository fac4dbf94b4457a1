package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/moviedata/internal/config"
	"github.com/JonMunkholm/moviedata/internal/core"
	"github.com/JonMunkholm/moviedata/internal/logging"
)

const moviesCSV = `id,title,overview,release_date,original_language,popularity,budget,genres,vote_average
862,Toy Story,toys,1995-10-30,en,21.9,30000000,"[{'id': 16, 'name': 'Animation'}]",7.7
949,Heat,heist,1995-12-15,en,17.9,60000000,"[{'id': 28, 'name': 'Action'}]",7.7
949,Heat,heist,1995-12-15,en,17.9,60000000,"[{'id': 28, 'name': 'Action'}]",7.7
10,,no title,2001-01-01,en,1,1,[],5
11,Undated,none,,en,1,1,[],5
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Clean.DropColumns = []string{"overview"}
	cfg.Rate.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	return NewServer(cfg, logging.NewRecorder().Logger())
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func postCSV(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	return req
}

func multipartRequest(t *testing.T, target, field, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "ignored"); err != nil {
		t.Fatal(err)
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, "movies.csv")
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, body)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeClean(t *testing.T, rec *httptest.ResponseRecorder) CleanResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp CleanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Cleans.Capacity != 4 {
		t.Errorf("health = %+v", resp)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestClean_RawBody(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	resp := decodeClean(t, do(s, postCSV("/api/clean", moviesCSV)))

	if resp.RunID == "" {
		t.Error("run_id is empty")
	}
	if resp.Rows != 2 {
		t.Errorf("rows = %d, want 2", resp.Rows)
	}
	if len(resp.History) != 10 {
		t.Errorf("history has %d steps, want 10", len(resp.History))
	}
	if resp.Summary.Rows != 2 {
		t.Errorf("summary rows = %d, want 2", resp.Summary.Rows)
	}
	if resp.Reports.UniqueMovies == nil || *resp.Reports.UniqueMovies != 2 {
		t.Errorf("unique_movies = %v, want 2", resp.Reports.UniqueMovies)
	}
	if resp.Reports.AverageVote == nil || *resp.Reports.AverageVote != 7.7 {
		t.Errorf("average_vote = %v, want 7.7", resp.Reports.AverageVote)
	}
	if want := []core.YearCount{{Year: 1995, Count: 2}}; len(resp.Reports.MoviesPerYear) != 1 || resp.Reports.MoviesPerYear[0] != want[0] {
		t.Errorf("movies_per_year = %v, want %v", resp.Reports.MoviesPerYear, want)
	}
	if resp.Orient != core.OrientRecords {
		t.Errorf("orient = %q, want records", resp.Orient)
	}

	var records []map[string]any
	if err := json.Unmarshal(resp.Data, &records); err != nil {
		t.Fatalf("data is not records: %v", err)
	}
	if len(records) != 2 || records[0]["title"] != "Toy Story" {
		t.Errorf("data = %v", records)
	}
	if _, ok := records[0]["overview"]; ok {
		t.Error("overview column was not dropped")
	}
	if records[0]["release_date"] != "1995-10-30" {
		t.Errorf("release_date = %v", records[0]["release_date"])
	}
}

func TestClean_Multipart(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	resp := decodeClean(t, do(s, multipartRequest(t, "/api/clean?orient=split", "file", moviesCSV)))

	if resp.Orient != core.OrientSplit {
		t.Errorf("orient = %q, want split", resp.Orient)
	}
	var split struct {
		Columns []string `json:"columns"`
		Index   []int    `json:"index"`
		Data    [][]any  `json:"data"`
	}
	if err := json.Unmarshal(resp.Data, &split); err != nil {
		t.Fatalf("data is not split: %v", err)
	}
	if len(split.Data) != 2 || len(split.Index) != 2 || split.Columns[0] != "id" {
		t.Errorf("split = %+v", split)
	}
}

func TestReport_OmitsData(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := do(s, postCSV("/api/report", moviesCSV))
	resp := decodeClean(t, rec)

	if resp.Data != nil {
		t.Errorf("report returned data: %s", resp.Data)
	}
	if strings.Contains(rec.Body.String(), `"data"`) {
		t.Error("report body has a data key")
	}
	if resp.Reports.UniqueMovies == nil {
		t.Error("report has no unique_movies")
	}
}

func TestClean_Errors(t *testing.T) {
	malformed := strings.Replace(moviesCSV, `"[{'id': 16, 'name': 'Animation'}]"`, `"[{'id': 16,"`, 1)

	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		setup      func(cfg *config.Config)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty body",
			req:        func(*testing.T) *http.Request { return postCSV("/api/clean", "") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE005",
		},
		{
			name: "multipart without file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/clean", "", "")
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
		},
		{
			name:       "unknown orient",
			req:        func(*testing.T) *http.Request { return postCSV("/api/clean?orient=table", moviesCSV) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "EXP001",
		},
		{
			name:       "unknown genres policy",
			req:        func(*testing.T) *http.Request { return postCSV("/api/clean?genres_policy=skip", moviesCSV) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "CLN004",
		},
		{
			name:       "unknown encoding",
			req:        func(*testing.T) *http.Request { return postCSV("/api/clean?encoding=klingon", moviesCSV) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE003",
		},
		{
			name:       "too large",
			req:        func(*testing.T) *http.Request { return postCSV("/api/clean", moviesCSV) },
			setup:      func(cfg *config.Config) { cfg.Server.MaxUploadSize = 16 },
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
		{
			name:       "missing drop column",
			req:        func(*testing.T) *http.Request { return postCSV("/api/clean", moviesCSV) },
			setup:      func(cfg *config.Config) { cfg.Clean.DropColumns = []string{"homepage"} },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "CLN001",
		},
		{
			name:       "malformed genres",
			req:        func(*testing.T) *http.Request { return postCSV("/api/clean", malformed) },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "CLN002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.setup != nil {
				tt.setup(cfg)
			}
			s := newTestServer(t, cfg)
			rec := do(s, tt.req(t))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			resp := decodeError(t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if resp.Message == "" || resp.Error != resp.Message {
				t.Errorf("error response = %+v", resp)
			}
		})
	}
}

func TestClean_NullGenresPolicy(t *testing.T) {
	malformed := strings.Replace(moviesCSV, `"[{'id': 16, 'name': 'Animation'}]"`, `"[{'id': 16,"`, 1)
	s := newTestServer(t, testConfig(t))
	resp := decodeClean(t, do(s, postCSV("/api/clean?genres_policy=null", malformed)))

	var records []map[string]any
	if err := json.Unmarshal(resp.Data, &records); err != nil {
		t.Fatal(err)
	}
	if records[0]["genres"] != nil {
		t.Errorf("malformed genres = %v, want null", records[0]["genres"])
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 1
	cfg.Rate.Burst = 1
	s := newTestServer(t, cfg)

	if rec := do(s, postCSV("/api/report", moviesCSV)); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := do(s, postCSV("/api/report", moviesCSV))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if got := decodeError(t, rec).Code; got != "RATE001" {
		t.Errorf("code = %q, want RATE001", got)
	}

	// health checks are not limited
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestClean_Busy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxConcurrent = 1
	cfg.Server.RequestTimeout = 50 * time.Millisecond
	s := newTestServer(t, cfg)

	if !s.limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	defer s.limiter.Release()

	rec := do(s, postCSV("/api/clean", moviesCSV))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}
	if got := decodeError(t, rec).Code; got != "UPL003" {
		t.Errorf("code = %q, want UPL003", got)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}

func TestClean_WaitsForSlot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxConcurrent = 1
	s := newTestServer(t, cfg)

	if !s.limiter.TryAcquire() {
		t.Fatal("TryAcquire failed")
	}
	time.AfterFunc(20*time.Millisecond, s.limiter.Release)

	if rec := do(s, postCSV("/api/clean", moviesCSV)); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := s.limiter.Active(); got != 0 {
		t.Errorf("Active = %d after the request, want 0", got)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want int
	}{
		{0, 1},
		{25 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{10 * time.Second, 10},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.wait); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.wait, got, tt.want)
		}
	}
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	do(s, postCSV("/api/clean", moviesCSV))
	do(s, postCSV("/api/clean", ""))

	rec := do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`moviecleaner_clean_runs_total{outcome="ok"} 1`,
		`moviecleaner_clean_runs_total{outcome="load_error"} 1`,
		`moviecleaner_rows_total{stage="loaded"} 5`,
		`moviecleaner_rows_total{stage="kept"} 2`,
		`moviecleaner_http_requests_total{method="POST",route="/api/clean",status="200"} 1`,
		`moviecleaner_clean_active 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.CORSOrigins = []string{"https://movies.example"}
	s := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/clean", nil)
	req.Header.Set("Origin", "https://movies.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := do(s, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://movies.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/clean", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = do(s, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Access-Control-Allow-Origin = %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{core.ErrBusy, http.StatusServiceUnavailable},
		{errNoFile, http.StatusBadRequest},
		{core.ErrInvalidCSV, http.StatusUnprocessableEntity},
		{&core.CleanError{Step: "summary", Err: io.ErrUnexpectedEOF}, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
