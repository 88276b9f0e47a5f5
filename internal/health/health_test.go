package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/spread-monitor/internal/logger"
)

func newTestServer() *Server {
	return NewServer(0, "test", logger.New(io.Discard, logger.LevelInfo, "test", nil))
}

func TestHealth_AllHealthy(t *testing.T) {
	s := newTestServer()
	s.RegisterCheck("exchange", func(context.Context) (bool, string) { return true, "streaming" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}

	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Status != "ok" || !st.Checks["exchange"].Healthy || st.Version != "test" {
		t.Errorf("status = %+v", st)
	}
}

func TestHealth_Degraded(t *testing.T) {
	s := newTestServer()
	s.RegisterCheck("exchange", func(context.Context) (bool, string) { return true, "" })
	s.RegisterCheck("markets", func(context.Context) (bool, string) { return false, "0 of 3 resolved" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}

	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Status != "degraded" || st.Checks["markets"].Message != "0 of 3 resolved" {
		t.Errorf("status = %+v", st)
	}

	ready := httptest.NewRecorder()
	s.Handler().ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if ready.Code != http.StatusServiceUnavailable || ready.Body.String() != "not ready" {
		t.Errorf("ready = %d %q", ready.Code, ready.Body.String())
	}

	live := httptest.NewRecorder()
	s.Handler().ServeHTTP(live, httptest.NewRequest(http.MethodGet, "/live", nil))
	if live.Code != http.StatusOK {
		t.Errorf("live = %d", live.Code)
	}
}

func TestServer_StartAndStop(t *testing.T) {
	s := newTestServer()
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/live")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
