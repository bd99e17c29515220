package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/DanielPopoola/job-scraper/internal/pipeline"
)

type fakeRunner struct {
	stats       *pipeline.ProcessingStats
	err         error
	reprocessed bool
}

func (f *fakeRunner) ProcessPending(context.Context) (*pipeline.ProcessingStats, error) {
	return f.stats, f.err
}

func (f *fakeRunner) ReprocessFailed(context.Context) (*pipeline.ProcessingStats, error) {
	f.reprocessed = true
	return f.stats, f.err
}

func newPipelineRouter(runner PipelineRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewPipelineHandler(runner)
	r.POST("/api/v1/pipeline/process", h.Process)
	r.POST("/api/v1/pipeline/reprocess", h.Reprocess)
	return r
}

func TestProcessReturnsStats(t *testing.T) {
	runner := &fakeRunner{stats: &pipeline.ProcessingStats{Claimed: 5, Processed: 4, Created: 3, Merged: 1, Failed: 1}}
	r := newPipelineRouter(runner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/process", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got pipeline.ProcessingStats
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if got != *runner.stats {
		t.Errorf("stats = %+v, want %+v", got, *runner.stats)
	}
}

func TestReprocessRoutesToFailedRows(t *testing.T) {
	runner := &fakeRunner{stats: &pipeline.ProcessingStats{}}
	r := newPipelineRouter(runner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/reprocess", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !runner.reprocessed {
		t.Error("reprocess endpoint did not call ReprocessFailed")
	}
}

func TestProcessErrorIs500(t *testing.T) {
	runner := &fakeRunner{err: errors.New("db down")}
	r := newPipelineRouter(runner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/process", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
