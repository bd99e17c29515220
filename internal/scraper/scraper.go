package scraper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// JobItem is one job posting as yielded by a site scraper, before any
// cleaning or normalization.
type JobItem struct {
	Title           string
	Company         string
	Location        string
	DescriptionHTML string
	SourceURL       string
	ScrapedAt       time.Time
}

// Scraper fetches job postings for one search on one site. Implementations
// are stateless per invocation; the scheduler creates a fresh instance for
// every task.
type Scraper interface {
	// Site returns the stable site key this scraper serves.
	Site() string

	// Scrape runs one search and returns the postings it found, up to
	// maxJobs. location may be empty. Errors are classified with the
	// package's TransientError/FatalError types.
	Scrape(ctx context.Context, term, location string, maxJobs int) ([]JobItem, error)
}

// Factory builds a fresh Scraper instance for one task.
type Factory func() Scraper

// Registry maps site keys to scraper factories. Sites are independent
// implementations selected by key; there is no hierarchy.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given site key, replacing any
// previous registration.
func (r *Registry) Register(site string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[site] = f
}

// Create returns a fresh scraper for the site, or an error for unknown
// sites. Unknown sites are a caller mistake, not a scrape failure, so the
// error is fatal.
func (r *Registry) Create(site string) (Scraper, error) {
	r.mu.RLock()
	f, ok := r.factories[site]
	r.mu.RUnlock()
	if !ok {
		return nil, NewFatal(fmt.Sprintf("unsupported site: %s", site), nil)
	}
	return f(), nil
}

// Sites returns the registered site keys, sorted.
func (r *Registry) Sites() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sites := make([]string, 0, len(r.factories))
	for site := range r.factories {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	return sites
}
