package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DanielPopoola/job-scraper/internal/config"
	"github.com/DanielPopoola/job-scraper/internal/domain"
	"github.com/DanielPopoola/job-scraper/internal/logger"
	"github.com/DanielPopoola/job-scraper/internal/scraper"
)

// RawStore persists raw postings as the scheduler scrapes them.
type RawStore interface {
	Insert(ctx context.Context, raw *domain.RawJobPosting) error
}

// SessionStore persists session lifecycle state.
type SessionStore interface {
	Create(ctx context.Context, session *domain.ScrapingSession) error
	Finalize(ctx context.Context, session *domain.ScrapingSession) error
}

// Scheduler owns a bounded worker pool that executes scraping tasks
// concurrently, applying rate limiting and bounded retry per task and
// persisting every yielded item immediately as a pending raw posting.
// One task's failure never aborts its siblings.
type Scheduler struct {
	registry *scraper.Registry
	rawStore RawStore
	sessions SessionStore
	limiter  *RateLimiter
	retrier  *RetryCoordinator
	cfg      config.SchedulerConfig
	logger   *logger.Logger
}

// NewScheduler creates a scheduler. cfg is treated as immutable.
func NewScheduler(
	registry *scraper.Registry,
	rawStore RawStore,
	sessions SessionStore,
	cfg config.SchedulerConfig,
	log *logger.Logger,
) *Scheduler {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Scheduler{
		registry: registry,
		rawStore: rawStore,
		sessions: sessions,
		limiter:  NewRateLimiter(cfg.DelayBetweenSites, cfg.DelayBetweenSearches),
		retrier:  NewRetryCoordinator(cfg.MaxRetries, cfg.RetryDelay),
		cfg:      cfg,
		logger:   log,
	}
}

func (s *Scheduler) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx)
}

// RunSession executes all tasks and blocks until every one of them has
// resolved, then returns the aggregated result. Cancelling ctx stops new
// dispatches and further retries; tasks already past the network call
// finish at their next boundary and still count toward the result.
func (s *Scheduler) RunSession(ctx context.Context, tasks []domain.ScrapingTask) (*SessionResult, error) {
	session := &domain.ScrapingSession{
		ID:         uuid.New().String(),
		StartedAt:  time.Now().UTC(),
		Status:     domain.SessionStatusRunning,
		TasksTotal: len(tasks),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.run(ctx, session, tasks), nil
}

// StartSession begins a session on a background goroutine and returns its
// ID immediately. Completion is observed by polling the session store;
// the triggering caller is never blocked and carries no callback.
func (s *Scheduler) StartSession(ctx context.Context, tasks []domain.ScrapingTask) (string, error) {
	session := &domain.ScrapingSession{
		ID:         uuid.New().String(),
		StartedAt:  time.Now().UTC(),
		Status:     domain.SessionStatusRunning,
		TasksTotal: len(tasks),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	// The HTTP request context dies with the response; the session must
	// not.
	go s.run(context.Background(), session, tasks)

	return session.ID, nil
}

func (s *Scheduler) run(ctx context.Context, session *domain.ScrapingSession, tasks []domain.ScrapingTask) *SessionResult {
	if s.logger != nil {
		ctx = s.logger.WithContext(ctx)
	}
	ctx = logger.SetSessionID(ctx, session.ID)
	s.log(ctx).WithFields(logger.Fields{
		"tasks":   len(tasks),
		"workers": s.cfg.MaxConcurrency,
	}).Info("Starting scraping session")

	agg := NewSessionAggregator(len(tasks))
	taskChan := make(chan domain.ScrapingTask)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				agg.Record(s.runTask(ctx, task))
			}
		}()
	}

	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	// Join: the result and the final session status exist only after
	// every task has resolved.
	wg.Wait()

	ended := time.Now().UTC()
	result := agg.Result(session.ID, session.StartedAt, ended)

	session.EndedAt = &ended
	session.Status = result.Status
	session.TasksSucceeded = result.Succeeded
	session.TasksFailed = result.Failed
	session.TotalItemsScraped = result.TotalItemsScraped
	session.Outcomes = domain.TaskOutcomes(result.PerTaskDetail)

	// Finalize with a fresh context so a canceled session still records
	// its terminal state.
	if err := s.sessions.Finalize(context.Background(), session); err != nil {
		s.log(ctx).WithError(err).Error("Failed to finalize session")
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: result.DurationMs,
		logger.FieldCount:      result.TotalItemsScraped,
		logger.FieldStatus:     string(result.Status),
	}).Info(ctx, "Scraping session finished: succeeded=%d, failed=%d, retried=%d",
		result.Succeeded, result.Failed, result.RetriedCount)

	return result
}

// runTask executes one task end to end: rate-limiter wait, adapter
// invocation under retry, immediate persistence of yielded items.
func (s *Scheduler) runTask(ctx context.Context, task domain.ScrapingTask) domain.TaskOutcome {
	start := time.Now()
	ctx = logger.WithField(ctx, logger.FieldSite, task.Site)

	outcome := domain.TaskOutcome{Task: task}

	fail := func(attempts int, err error) domain.TaskOutcome {
		outcome.Attempts = attempts
		outcome.Error = err.Error()
		outcome.DurationMs = time.Since(start).Milliseconds()
		s.log(ctx).WithError(err).WithFields(logger.Fields{
			"search_term": task.SearchTerm,
			"attempts":    attempts,
		}).Warn("Task failed")
		return outcome
	}

	// Cancellation stops tasks that have not dispatched yet.
	if err := ctx.Err(); err != nil {
		return fail(0, err)
	}

	if err := s.limiter.Wait(ctx, task.Site); err != nil {
		return fail(0, err)
	}

	items, attempts, err := s.retrier.Execute(ctx, func(ctx context.Context) ([]scraper.JobItem, error) {
		// Fresh adapter per attempt; adapters are stateless per
		// invocation.
		adapter, cerr := s.registry.Create(task.Site)
		if cerr != nil {
			return nil, cerr
		}
		return adapter.Scrape(ctx, task.SearchTerm, task.Location, task.MaxJobs)
	})

	// Partial success is preserved: whatever the adapter yielded before a
	// late failure is persisted either way.
	inserted, dropped, persistErr := s.persistItems(ctx, task, items)
	outcome.ItemsScraped = inserted
	outcome.ItemsDropped = dropped
	outcome.Attempts = attempts
	outcome.DurationMs = time.Since(start).Milliseconds()

	// A scrape that yielded items the store could not keep is a failed
	// task; the items are gone.
	if err == nil && persistErr != nil {
		err = fmt.Errorf("failed to persist scraped items: %w", persistErr)
	}

	if err != nil {
		outcome.Error = err.Error()
		s.log(ctx).WithError(err).WithFields(logger.Fields{
			"search_term": task.SearchTerm,
			"attempts":    attempts,
			"items":       outcome.ItemsScraped,
		}).Warn("Task failed")
		return outcome
	}

	outcome.Succeeded = true
	s.log(ctx).WithFields(logger.Fields{
		"search_term": task.SearchTerm,
		"attempts":    attempts,
		"items":       outcome.ItemsScraped,
	}).Info("Task completed")
	return outcome
}

// persistItems inserts each yielded item as a pending raw posting,
// preserving the adapter's yield order. Duplicate URLs (already scraped
// in an earlier search) are skipped; any other insert error counts the
// item as dropped, and the first such error is returned so the task
// reports the loss.
func (s *Scheduler) persistItems(ctx context.Context, task domain.ScrapingTask, items []scraper.JobItem) (inserted, dropped int, firstErr error) {
	for _, item := range items {
		raw := &domain.RawJobPosting{
			ID:                 uuid.New().String(),
			Site:               task.Site,
			SearchTerm:         task.SearchTerm,
			RawTitle:           item.Title,
			RawCompany:         item.Company,
			RawLocation:        item.Location,
			RawDescriptionHTML: item.DescriptionHTML,
			SourceURL:          item.SourceURL,
			ScrapedAt:          item.ScrapedAt,
			Status:             domain.RawStatusPending,
		}
		switch err := s.rawStore.Insert(ctx, raw); {
		case err == nil:
			inserted++
		case errors.Is(err, domain.ErrDuplicateURL):
			s.log(ctx).WithField("source_url", item.SourceURL).
				Debug("Posting already stored, skipping")
		default:
			dropped++
			if firstErr == nil {
				firstErr = err
			}
			s.log(ctx).WithError(err).WithField("source_url", item.SourceURL).
				Error("Failed to persist raw posting")
		}
	}
	return inserted, dropped, firstErr
}
