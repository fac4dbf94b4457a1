package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/moviedata/internal/core"
	"github.com/go-chi/render"
)

// multipartFileField is the form field that carries the CSV.
const multipartFileField = "file"

// Reports holds the three read-only reports. A nil field means the report
// could not be computed; the reason is in the server log.
type Reports struct {
	UniqueMovies  *int             `json:"unique_movies"`
	AverageVote   *float64         `json:"average_vote"`
	MoviesPerYear []core.YearCount `json:"movies_per_year"`
}

// CleanResponse is the body of a successful /api/clean or /api/report call.
type CleanResponse struct {
	RunID   string            `json:"run_id"`
	Rows    int               `json:"rows"`
	History []core.StepResult `json:"history"`
	Summary core.Summary      `json:"summary"`
	Reports Reports           `json:"reports"`
	Orient  core.Orient       `json:"orient,omitempty"`
	Data    json.RawMessage   `json:"data,omitempty"`
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string             `json:"status"`
	Uptime string             `json:"uptime"`
	Cleans core.LimiterStatus `json:"cleans"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Cleans: s.limiter.Status(),
	})
}

// handleClean runs the full flow on the uploaded CSV and returns the
// exported table alongside the reports.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	s.runUpload(w, r, true)
}

// handleReport is handleClean without the exported data.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.runUpload(w, r, false)
}

// runRequest is the per-request view of the configured defaults after
// query overrides.
type runRequest struct {
	orient core.Orient
	load   core.LoadOptions
	clean  core.CleanOptions
}

func (s *Server) parseRunRequest(r *http.Request) (runRequest, error) {
	q := r.URL.Query()

	orient, err := core.ParseOrient(queryOr(q.Get("orient"), s.cfg.Output.Orient))
	if err != nil {
		return runRequest{}, err
	}
	policy, err := core.ParseGenresPolicy(queryOr(q.Get("genres_policy"), s.cfg.Clean.GenresPolicy))
	if err != nil {
		return runRequest{}, err
	}
	encoding := queryOr(q.Get("encoding"), s.cfg.Input.Encoding)
	if _, err := core.LookupEncoding(encoding); err != nil {
		return runRequest{}, err
	}

	return runRequest{
		orient: orient,
		load: core.LoadOptions{
			Encoding:   encoding,
			LowMemory:  s.cfg.Input.LowMemory,
			Delimiter:  s.cfg.Input.DelimiterRune(),
			NullValues: s.cfg.Input.NullValues,
		},
		clean: core.CleanOptions{
			DropColumns:  s.cfg.Clean.DropColumns,
			GenresPolicy: policy,
		},
	}, nil
}

func (s *Server) runUpload(w http.ResponseWriter, r *http.Request, withData bool) {
	req, err := s.parseRunRequest(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.acquireSlot(r); err != nil {
		if errors.Is(err, core.ErrBusy) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(s.cfg.Server.SlotWait())))
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer s.limiter.Release()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)
	body, name, err := uploadBody(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logger := s.requestLogger(r)
	if name != "" {
		logger = logger.With("file", name)
	}

	start := time.Now()
	ds, err := core.Read(body, req.load, logger)
	if err != nil {
		s.metrics.observeRun("load_error", 0, 0, time.Since(start))
		s.respondError(w, r, err, statusFor(err))
		return
	}
	loaded := ds.Len()

	if _, err := ds.Clean(req.clean); err != nil {
		s.metrics.observeRun("clean_error", loaded, 0, time.Since(start))
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.metrics.observeRun("ok", loaded, ds.Len(), time.Since(start))

	resp := CleanResponse{
		RunID:   ds.RunID(),
		Rows:    ds.Len(),
		History: ds.History(),
		Summary: ds.Summary(),
		Reports: buildReports(ds),
	}

	if withData {
		var buf bytes.Buffer
		if err := ds.WriteJSON(&buf, req.orient); err != nil {
			s.respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		resp.Orient = req.orient
		resp.Data = buf.Bytes()
	}

	render.JSON(w, r, resp)
}

// acquireSlot takes a clean slot, waiting only when every slot is taken.
func (s *Server) acquireSlot(r *http.Request) error {
	if s.limiter.TryAcquire() {
		return nil
	}
	s.requestLogger(r).Debug("waiting for a clean slot", "active", s.limiter.Active())
	return s.limiter.Acquire(r.Context())
}

// retryAfterSeconds rounds wait up to whole seconds, at least one.
func retryAfterSeconds(wait time.Duration) int {
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func buildReports(ds *core.Dataset) Reports {
	var rep Reports
	if n, ok := ds.UniqueCount(""); ok {
		rep.UniqueMovies = &n
	}
	if avg, ok := ds.AverageByColumn(""); ok {
		rep.AverageVote = &avg
	}
	if years, ok := ds.MoviesPerYear(""); ok {
		rep.MoviesPerYear = years
	}
	return rep
}

// uploadBody returns the CSV stream: the "file" part of a multipart form,
// or the raw body for any other content type. name is the uploaded file
// name when there is one.
func uploadBody(r *http.Request) (io.Reader, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, "", nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, "", errNoFile
		}
		if err != nil {
			return nil, "", err
		}
		if part.FormName() == multipartFileField {
			return part, part.FileName(), nil
		}
		part.Close()
	}
}

func queryOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
