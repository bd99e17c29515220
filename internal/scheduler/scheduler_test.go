package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/job-scraper/internal/config"
	"github.com/DanielPopoola/job-scraper/internal/domain"
	"github.com/DanielPopoola/job-scraper/internal/scraper"
)

type fakeRawStore struct {
	mu        sync.Mutex
	rows      []*domain.RawJobPosting
	urls      map[string]bool
	insertErr error
}

func newFakeRawStore() *fakeRawStore {
	return &fakeRawStore{urls: make(map[string]bool)}
}

func (f *fakeRawStore) Insert(_ context.Context, raw *domain.RawJobPosting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	key := raw.Site + "|" + raw.SourceURL
	if f.urls[key] {
		return domain.ErrDuplicateURL
	}
	f.urls[key] = true
	f.rows = append(f.rows, raw)
	return nil
}

func (f *fakeRawStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeSessionStore struct {
	mu        sync.Mutex
	created   *domain.ScrapingSession
	finalized *domain.ScrapingSession
}

func (f *fakeSessionStore) Create(_ context.Context, s *domain.ScrapingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *s
	f.created = &copied
	return nil
}

func (f *fakeSessionStore) Finalize(_ context.Context, s *domain.ScrapingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *s
	f.finalized = &copied
	return nil
}

func (f *fakeSessionStore) getFinalized() *domain.ScrapingSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized
}

// scriptedScraper returns canned results per invocation, tracking the
// attempt count across retries.
type scriptedScraper struct {
	site  string
	calls *atomic.Int32
	// script returns the result for the given 1-based attempt number.
	script func(attempt int) ([]scraper.JobItem, error)
}

func (s *scriptedScraper) Site() string { return s.site }

func (s *scriptedScraper) Scrape(_ context.Context, _, _ string, _ int) ([]scraper.JobItem, error) {
	attempt := int(s.calls.Add(1))
	return s.script(attempt)
}

func registerScripted(reg *scraper.Registry, site string, script func(attempt int) ([]scraper.JobItem, error)) *atomic.Int32 {
	calls := &atomic.Int32{}
	reg.Register(site, func() scraper.Scraper {
		return &scriptedScraper{site: site, calls: calls, script: script}
	})
	return calls
}

func items(site string, n int) []scraper.JobItem {
	out := make([]scraper.JobItem, n)
	for i := range out {
		out[i] = scraper.JobItem{
			Title:     fmt.Sprintf("Engineer %d", i),
			Company:   "Acme",
			Location:  "Remote",
			SourceURL: fmt.Sprintf("https://%s.example.com/jobs/%d", site, i),
			ScrapedAt: time.Now().UTC(),
		}
	}
	return out
}

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		MaxConcurrency:       3,
		MaxRetries:           3,
		RetryDelay:           time.Millisecond,
		DelayBetweenSites:    0,
		DelayBetweenSearches: 0,
	}
}

func newTestScheduler(reg *scraper.Registry, raw *fakeRawStore, sess *fakeSessionStore, cfg config.SchedulerConfig) *Scheduler {
	return NewScheduler(reg, raw, sess, cfg, nil)
}

func TestRunSessionAllSucceed(t *testing.T) {
	reg := scraper.NewRegistry()
	registerScripted(reg, "linkedin", func(int) ([]scraper.JobItem, error) {
		return items("linkedin", 5), nil
	})
	registerScripted(reg, "indeed", func(int) ([]scraper.JobItem, error) {
		return items("indeed", 3), nil
	})

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, testConfig())

	result, err := s.RunSession(context.Background(), []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "golang", MaxJobs: 10},
		{Site: "indeed", SearchTerm: "golang", MaxJobs: 10},
	})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if result.Status != domain.SessionStatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if result.Succeeded != 2 || result.Failed != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 2/0", result.Succeeded, result.Failed)
	}
	if result.TotalItemsScraped != 8 {
		t.Errorf("total items = %d, want 8", result.TotalItemsScraped)
	}
	if result.SuccessRate != 1.0 {
		t.Errorf("success rate = %f, want 1.0", result.SuccessRate)
	}
	if raw.count() != 8 {
		t.Errorf("persisted rows = %d, want 8", raw.count())
	}
	for _, row := range raw.rows {
		if row.Status != domain.RawStatusPending {
			t.Errorf("raw status = %s, want pending", row.Status)
		}
		if row.ID == "" {
			t.Error("raw row has empty ID")
		}
	}

	fin := sess.getFinalized()
	if fin == nil {
		t.Fatal("session never finalized")
	}
	if fin.Status != domain.SessionStatusCompleted {
		t.Errorf("finalized status = %s, want completed", fin.Status)
	}
	if fin.EndedAt == nil {
		t.Error("finalized session missing EndedAt")
	}
	if fin.TotalItemsScraped != 8 {
		t.Errorf("finalized items = %d, want 8", fin.TotalItemsScraped)
	}
}

func TestRunSessionTransientFailureRetriesThenSucceeds(t *testing.T) {
	reg := scraper.NewRegistry()
	calls := registerScripted(reg, "linkedin", func(attempt int) ([]scraper.JobItem, error) {
		if attempt < 3 {
			return nil, scraper.NewTransient("rate limited", nil)
		}
		return items("linkedin", 2), nil
	})

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, testConfig())

	result, err := s.RunSession(context.Background(), []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "golang", MaxJobs: 10},
	})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("scrape calls = %d, want 3", got)
	}
	if result.Status != domain.SessionStatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if result.RetriedCount != 1 {
		t.Errorf("retried count = %d, want 1", result.RetriedCount)
	}
	if len(result.PerTaskDetail) != 1 || result.PerTaskDetail[0].Attempts != 3 {
		t.Errorf("per-task detail = %+v, want one outcome with 3 attempts", result.PerTaskDetail)
	}
}

func TestRunSessionTransientFailureExhaustsBudget(t *testing.T) {
	reg := scraper.NewRegistry()
	calls := registerScripted(reg, "linkedin", func(int) ([]scraper.JobItem, error) {
		return nil, scraper.NewTransient("timeout", nil)
	})

	cfg := testConfig()
	cfg.MaxRetries = 2

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, cfg)

	result, err := s.RunSession(context.Background(), []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "golang", MaxJobs: 10},
	})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	// maxRetries=2 means 3 attempts total, never more.
	if got := calls.Load(); got != 3 {
		t.Errorf("scrape calls = %d, want 3", got)
	}
	if result.Status != domain.SessionStatusFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	if result.PerTaskDetail[0].Error == "" {
		t.Error("failed outcome missing error message")
	}
}

func TestRunSessionFatalFailureNoRetry(t *testing.T) {
	reg := scraper.NewRegistry()
	calls := registerScripted(reg, "linkedin", func(int) ([]scraper.JobItem, error) {
		return nil, scraper.NewFatal("blocked: HTTP 403", nil)
	})

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, testConfig())

	result, err := s.RunSession(context.Background(), []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "golang", MaxJobs: 10},
	})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("scrape calls = %d, want 1 (no retry on fatal)", got)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if result.RetriedCount != 0 {
		t.Errorf("retried count = %d, want 0", result.RetriedCount)
	}
}

func TestRunSessionPartialStatusAndIsolation(t *testing.T) {
	reg := scraper.NewRegistry()
	registerScripted(reg, "linkedin", func(int) ([]scraper.JobItem, error) {
		return items("linkedin", 4), nil
	})
	registerScripted(reg, "indeed", func(int) ([]scraper.JobItem, error) {
		return nil, scraper.NewFatal("blocked: HTTP 403", nil)
	})

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, testConfig())

	result, err := s.RunSession(context.Background(), []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "golang", MaxJobs: 10},
		{Site: "indeed", SearchTerm: "golang", MaxJobs: 10},
	})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if result.Status != domain.SessionStatusPartial {
		t.Errorf("status = %s, want partial", result.Status)
	}
	if result.SuccessRate != 0.5 {
		t.Errorf("success rate = %f, want 0.5", result.SuccessRate)
	}
	// The failed task never touched the successful one's items.
	if raw.count() != 4 {
		t.Errorf("persisted rows = %d, want 4", raw.count())
	}
}

func TestRunSessionPreservesPartialYield(t *testing.T) {
	reg := scraper.NewRegistry()
	registerScripted(reg, "linkedin", func(int) ([]scraper.JobItem, error) {
		// Scraped two pages, then the site cut us off.
		return items("linkedin", 2), scraper.NewFatal("blocked: HTTP 403", nil)
	})

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, testConfig())

	result, err := s.RunSession(context.Background(), []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "golang", MaxJobs: 10},
	})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if raw.count() != 2 {
		t.Errorf("persisted rows = %d, want 2 (partial yield kept)", raw.count())
	}
	if result.PerTaskDetail[0].ItemsScraped != 2 {
		t.Errorf("outcome items = %d, want 2", result.PerTaskDetail[0].ItemsScraped)
	}
}

func TestRunSessionConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32

	reg := scraper.NewRegistry()
	registerScripted(reg, "linkedin", func(int) ([]scraper.JobItem, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return items("linkedin", 1), nil
	})

	cfg := testConfig()
	cfg.MaxConcurrency = 2

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, cfg)

	tasks := make([]domain.ScrapingTask, 6)
	for i := range tasks {
		tasks[i] = domain.ScrapingTask{
			Site:       "linkedin",
			SearchTerm: fmt.Sprintf("term-%d", i),
			MaxJobs:    5,
		}
	}

	result, err := s.RunSession(context.Background(), tasks)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if result.Total != 6 || result.Succeeded != 6 {
		t.Fatalf("total/succeeded = %d/%d, want 6/6", result.Total, result.Succeeded)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestRunSessionInsertFailureFailsTask(t *testing.T) {
	reg := scraper.NewRegistry()
	registerScripted(reg, "linkedin", func(int) ([]scraper.JobItem, error) {
		return items("linkedin", 4), nil
	})

	// A store that rejects every insert: the scrape itself succeeds but
	// all of its items are lost, which must not read as a clean task.
	raw := newFakeRawStore()
	raw.insertErr = fmt.Errorf("database is locked")
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, testConfig())

	result, err := s.RunSession(context.Background(), []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "golang", MaxJobs: 10},
	})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if result.Status != domain.SessionStatusFailed {
		t.Errorf("status = %s, want failed (all scraped items were lost)", result.Status)
	}
	if raw.count() != 0 {
		t.Errorf("persisted rows = %d, want 0", raw.count())
	}

	outcome := result.PerTaskDetail[0]
	if outcome.Succeeded {
		t.Error("task succeeded despite losing every item")
	}
	if outcome.ItemsScraped != 0 {
		t.Errorf("items scraped = %d, want 0", outcome.ItemsScraped)
	}
	if outcome.ItemsDropped != 4 {
		t.Errorf("items dropped = %d, want 4", outcome.ItemsDropped)
	}
	if !strings.Contains(outcome.Error, "failed to persist") {
		t.Errorf("outcome error = %q, want persistence failure detail", outcome.Error)
	}
	if !strings.Contains(outcome.Error, "database is locked") {
		t.Errorf("outcome error = %q, want underlying insert error", outcome.Error)
	}
}

func TestRunSessionDuplicateURLsSkipped(t *testing.T) {
	reg := scraper.NewRegistry()
	// Both searches return the same posting, which happens when search
	// terms overlap.
	registerScripted(reg, "linkedin", func(int) ([]scraper.JobItem, error) {
		return items("linkedin", 3), nil
	})

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, testConfig())

	result, err := s.RunSession(context.Background(), []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "golang", MaxJobs: 10},
		{Site: "linkedin", SearchTerm: "go developer", MaxJobs: 10},
	})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if result.Status != domain.SessionStatusCompleted {
		t.Errorf("status = %s, want completed (duplicates are not failures)", result.Status)
	}
	if raw.count() != 3 {
		t.Errorf("persisted rows = %d, want 3 (duplicates skipped)", raw.count())
	}
	if result.TotalItemsScraped != 3 {
		t.Errorf("total items = %d, want 3", result.TotalItemsScraped)
	}
}

func TestRunSessionUnknownSiteFailsTask(t *testing.T) {
	reg := scraper.NewRegistry()

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, testConfig())

	result, err := s.RunSession(context.Background(), []domain.ScrapingTask{
		{Site: "monster", SearchTerm: "golang", MaxJobs: 10},
	})
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if !strings.Contains(result.PerTaskDetail[0].Error, "unsupported site") {
		t.Errorf("error = %q, want unsupported-site message", result.PerTaskDetail[0].Error)
	}
}

func TestRunSessionCancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	reg := scraper.NewRegistry()
	reg.Register("linkedin", func() scraper.Scraper {
		return &blockingScraper{site: "linkedin", started: started, release: release}
	})

	cfg := testConfig()
	cfg.MaxConcurrency = 1

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, cfg)

	tasks := []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "a", MaxJobs: 5},
		{Site: "linkedin", SearchTerm: "b", MaxJobs: 5},
		{Site: "linkedin", SearchTerm: "c", MaxJobs: 5},
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan *SessionResult, 1)
	go func() {
		result, err := s.RunSession(ctx, tasks)
		if err != nil {
			t.Errorf("RunSession: %v", err)
		}
		done <- result
	}()

	<-started
	cancel()
	close(release)

	result := <-done
	if result == nil {
		t.Fatal("no result after cancellation")
	}
	// Every task still resolves: the session joins instead of leaking
	// workers.
	if len(result.PerTaskDetail) != 3 {
		t.Fatalf("resolved outcomes = %d, want 3", len(result.PerTaskDetail))
	}
	if result.Succeeded == 3 {
		t.Error("cancellation should fail at least one pending task")
	}
	if sess.getFinalized() == nil {
		t.Error("canceled session was never finalized")
	}
}

type blockingScraper struct {
	site    string
	started chan struct{}
	release chan struct{}

	once sync.Once
}

func (b *blockingScraper) Site() string { return b.site }

func (b *blockingScraper) Scrape(ctx context.Context, _, _ string, _ int) ([]scraper.JobItem, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return items(b.site, 1), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestStartSessionReturnsImmediately(t *testing.T) {
	release := make(chan struct{})

	reg := scraper.NewRegistry()
	reg.Register("linkedin", func() scraper.Scraper {
		return &blockingScraper{site: "linkedin", started: make(chan struct{}, 1), release: release}
	})

	raw := newFakeRawStore()
	sess := &fakeSessionStore{}
	s := newTestScheduler(reg, raw, sess, testConfig())

	start := time.Now()
	id, err := s.StartSession(context.Background(), []domain.ScrapingTask{
		{Site: "linkedin", SearchTerm: "golang", MaxJobs: 5},
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("StartSession blocked for %v", elapsed)
	}
	if id == "" {
		t.Fatal("StartSession returned empty session ID")
	}

	sess.mu.Lock()
	created := sess.created
	sess.mu.Unlock()
	if created == nil || created.Status != domain.SessionStatusRunning {
		t.Fatalf("created session = %+v, want running", created)
	}

	close(release)

	deadline := time.After(5 * time.Second)
	for sess.getFinalized() == nil {
		select {
		case <-deadline:
			t.Fatal("background session never finalized")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if fin := sess.getFinalized(); fin.ID != id {
		t.Errorf("finalized session ID = %s, want %s", fin.ID, id)
	}
}
