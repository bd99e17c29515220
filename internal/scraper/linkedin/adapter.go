package linkedin

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/DanielPopoola/job-scraper/internal/scraper"
)

const (
	SiteKey = "linkedin"

	// Guest search endpoint, paginated in steps of 25 cards.
	searchURL = "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search"
	pageSize  = 25
)

// Card markup patterns. The guest endpoint returns an HTML fragment of
// <li> job cards; if these stop matching, the site changed its markup and
// the failure is fatal by the error taxonomy.
var (
	cardPattern     = regexp.MustCompile(`(?s)<li>.*?</li>`)
	titlePattern    = regexp.MustCompile(`(?s)class="base-search-card__title[^"]*"[^>]*>(.*?)<`)
	companyPattern  = regexp.MustCompile(`(?s)class="base-search-card__subtitle[^"]*"[^>]*>.*?<a[^>]*>(.*?)</a>`)
	locationPattern = regexp.MustCompile(`(?s)class="job-search-card__location[^"]*"[^>]*>(.*?)<`)
	linkPattern     = regexp.MustCompile(`class="base-card__full-link[^"]*"[^>]*href="([^"]+)"`)
)

// Config holds the tunables shared by all adapter instances.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Adapter scrapes LinkedIn's guest job search. Stateless between Scrape
// calls; the scheduler creates one per task.
type Adapter struct {
	client *resty.Client
}

// New creates a LinkedIn adapter with its own HTTP client.
func New(cfg Config) *Adapter {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(0) // retries belong to the scheduler, not the transport
	return &Adapter{client: client}
}

// Site returns the stable site key for this adapter.
func (a *Adapter) Site() string { return SiteKey }

// Scrape pages through guest search results until maxJobs postings are
// collected or the site runs out of cards.
func (a *Adapter) Scrape(ctx context.Context, term, location string, maxJobs int) ([]scraper.JobItem, error) {
	var items []scraper.JobItem

	for start := 0; len(items) < maxJobs; start += pageSize {
		body, err := a.fetchPage(ctx, term, location, start)
		if err != nil {
			// Items collected before the failure still count; the caller
			// persists partial results.
			if len(items) > 0 {
				return items, err
			}
			return nil, err
		}

		cards := cardPattern.FindAllString(body, -1)
		if len(cards) == 0 {
			break
		}

		for _, card := range cards {
			if len(items) >= maxJobs {
				break
			}
			item, ok := parseCard(card)
			if !ok {
				continue
			}
			items = append(items, item)
		}
	}

	return items, nil
}

func (a *Adapter) fetchPage(ctx context.Context, term, location string, start int) (string, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"keywords": term,
			"location": location,
			"start":    fmt.Sprintf("%d", start),
		}).
		Get(searchURL)
	if err != nil {
		return "", scraper.NewTransient("request failed", err)
	}
	if resp.IsError() {
		return "", scraper.ClassifyHTTPStatus(resp.StatusCode(), nil)
	}

	body := resp.String()
	if !strings.Contains(body, "base-search-card") && strings.TrimSpace(body) != "" {
		return "", scraper.NewFatal("unrecognized search result markup", nil)
	}
	return body, nil
}

// parseCard extracts one posting from a card fragment. Cards missing a
// title or link are skipped rather than failing the page.
func parseCard(card string) (scraper.JobItem, bool) {
	title := extract(titlePattern, card)
	link := extract(linkPattern, card)
	if title == "" || link == "" {
		return scraper.JobItem{}, false
	}

	// Strip tracking query parameters from the posting URL.
	if idx := strings.IndexByte(link, '?'); idx != -1 {
		link = link[:idx]
	}

	return scraper.JobItem{
		Title:           title,
		Company:         extract(companyPattern, card),
		Location:        extract(locationPattern, card),
		DescriptionHTML: card,
		SourceURL:       link,
		ScrapedAt:       time.Now().UTC(),
	}, true
}

func extract(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}
