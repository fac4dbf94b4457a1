package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/moviedata/internal/logging"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func echoRemote(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(r.RemoteAddr))
}

func TestTrustedRealIP(t *testing.T) {
	handler := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "not-a-cidr"})(http.HandlerFunc(echoRemote))

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "trusted proxy with X-Real-IP",
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			want:    "203.0.113.7",
		},
		{
			name:    "trusted single host with X-Forwarded-For chain",
			remote:  "192.168.1.5:4000",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.1"},
			want:    "198.51.100.2",
		},
		{
			name:    "untrusted peer is ignored",
			remote:  "203.0.113.50:4000",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "203.0.113.50:4000",
		},
		{
			name:    "invalid header keeps remote",
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "nonsense"},
			want:    "10.1.2.3:4000",
		},
		{
			name:   "no headers",
			remote: "10.1.2.3:4000",
			want:   "10.1.2.3:4000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"192.0.2.1:1234", "192.0.2.1", true},
		{"[2001:db8::1]:80", "2001:db8::1", true},
		{"198.51.100.9", "198.51.100.9", true},
		{"[::ffff:10.0.0.1]:80", "10.0.0.1", true},
		{"pipe", "", false},
	}
	for _, tt := range tests {
		addr, ok := ClientAddr(tt.in)
		if ok != tt.ok || (ok && addr.String() != tt.want) {
			t.Errorf("ClientAddr(%q) = %v, %v, want %q, %v", tt.in, addr, ok, tt.want, tt.ok)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60, 2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst of 2 was not allowed")
	}
	if rl.Allow("a") {
		t.Error("third request inside a second was allowed")
	}
	if !rl.Allow("b") {
		t.Error("other client was limited")
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Error("token did not refill after a second")
	}

	now = now.Add(2 * time.Minute)
	rl.Allow("b")
	if removed := rl.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if _, ok := rl.visitors["b"]; !ok {
		t.Error("active client was swept")
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	limited := 0
	handler := rl.Handler(func(w http.ResponseWriter, r *http.Request) {
		limited++
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(echoRemote))

	for i, remote := range []string{"192.0.2.1:1000", "192.0.2.1:2000", "192.0.2.2:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		wantStatus := http.StatusOK
		if i == 1 {
			wantStatus = http.StatusTooManyRequests
		}
		if rec.Code != wantStatus {
			t.Errorf("request %d from %s: status %d, want %d", i, remote, rec.Code, wantStatus)
		}
		if i == 1 && rec.Header().Get("Retry-After") != "60" {
			t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
		}
	}
	if limited != 1 {
		t.Errorf("onLimit called %d times, want 1", limited)
	}
}

func TestLogger(t *testing.T) {
	rec := logging.NewRecorder()
	prev := slog.Default()
	slog.SetDefault(rec.Logger())
	defer slog.SetDefault(prev)

	handler := chimw.RequestID(Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	})))

	for _, path := range []string{"/ok", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := rec.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	if entries[0].Level != slog.LevelInfo || entries[0].Attrs["status"] != int64(200) {
		t.Errorf("ok entry = %+v", entries[0])
	}
	if entries[0].Attrs["bytes"] != int64(2) {
		t.Errorf("bytes = %v, want 2", entries[0].Attrs["bytes"])
	}
	if entries[1].Level != slog.LevelWarn || entries[1].Attrs["status"] != int64(404) {
		t.Errorf("missing entry = %+v", entries[1])
	}
	if entries[0].Attrs["request_id"] == nil {
		t.Error("request_id not logged")
	}
}
