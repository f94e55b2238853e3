package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/choreboard/internal/database"
	"github.com/dukerupert/choreboard/internal/scheduler"
)

type noopJob struct {
	name string
	err  error
	runs int
}

func (j *noopJob) Name() string { return j.name }

func (j *noopJob) Run(now time.Time) error {
	j.runs++
	return j.err
}

func setupServerTest(t *testing.T, jobs ...scheduler.Job) *Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sched := scheduler.New(time.Minute, slog.New(slog.DiscardHandler))
	for _, j := range jobs {
		sched.Add(j, time.Hour)
	}
	return New(db, sched, slog.New(slog.DiscardHandler))
}

func TestHealthz(t *testing.T) {
	s := setupServerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestStatusListsJobs(t *testing.T) {
	s := setupServerTest(t, &noopJob{name: "scan"}, &noopJob{name: "prune"})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(body.Jobs))
	}
	if body.Jobs[0].Name != "scan" || body.Jobs[1].Name != "prune" {
		t.Errorf("jobs = %q, %q, want scan, prune", body.Jobs[0].Name, body.Jobs[1].Name)
	}
}

func TestRunJob(t *testing.T) {
	job := &noopJob{name: "scan"}
	s := setupServerTest(t, job)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/scan/run", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if job.runs != 1 {
		t.Errorf("runs = %d, want 1", job.runs)
	}
}

func TestRunJobUnknownName(t *testing.T) {
	s := setupServerTest(t, &noopJob{name: "scan"})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/nonsense/run", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRunJobFailure(t *testing.T) {
	job := &noopJob{name: "scan", err: errors.New("db locked")}
	s := setupServerTest(t, job)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/scan/run", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error message in the body")
	}
}
