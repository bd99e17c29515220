package indeed

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/DanielPopoola/job-scraper/internal/scraper"
)

const (
	SiteKey = "indeed"

	searchURL = "https://www.indeed.com/jobs"
	pageSize  = 10
)

// Indeed embeds its result set as a JSON blob inside the search page.
var mosaicPattern = regexp.MustCompile(`window\.mosaic\.providerData\["mosaic-provider-jobcards"\]\s*=\s*(\{.*?\});`)

// mosaicData mirrors the slice of the embedded JSON we care about.
type mosaicData struct {
	MetaData struct {
		MosaicProviderJobCardsModel struct {
			Results []mosaicResult `json:"results"`
		} `json:"mosaicProviderJobCardsModel"`
	} `json:"metaData"`
}

type mosaicResult struct {
	Title             string `json:"title"`
	Company           string `json:"company"`
	FormattedLocation string `json:"formattedLocation"`
	Snippet           string `json:"snippet"`
	JobKey            string `json:"jobkey"`
}

// Config holds the tunables shared by all adapter instances.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Adapter scrapes Indeed search pages. Stateless between Scrape calls.
type Adapter struct {
	client *resty.Client
}

// New creates an Indeed adapter with its own HTTP client.
func New(cfg Config) *Adapter {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(0)
	return &Adapter{client: client}
}

// Site returns the stable site key for this adapter.
func (a *Adapter) Site() string { return SiteKey }

// Scrape pages through search results until maxJobs postings are
// collected or no further results come back.
func (a *Adapter) Scrape(ctx context.Context, term, location string, maxJobs int) ([]scraper.JobItem, error) {
	var items []scraper.JobItem

	for start := 0; len(items) < maxJobs; start += pageSize {
		results, err := a.fetchPage(ctx, term, location, start)
		if err != nil {
			if len(items) > 0 {
				return items, err
			}
			return nil, err
		}
		if len(results) == 0 {
			break
		}

		for _, res := range results {
			if len(items) >= maxJobs {
				break
			}
			if res.Title == "" || res.JobKey == "" {
				continue
			}
			items = append(items, scraper.JobItem{
				Title:           res.Title,
				Company:         res.Company,
				Location:        res.FormattedLocation,
				DescriptionHTML: res.Snippet,
				SourceURL:       "https://www.indeed.com/viewjob?jk=" + res.JobKey,
				ScrapedAt:       time.Now().UTC(),
			})
		}
	}

	return items, nil
}

func (a *Adapter) fetchPage(ctx context.Context, term, location string, start int) ([]mosaicResult, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     term,
			"l":     location,
			"start": fmt.Sprintf("%d", start),
		}).
		Get(searchURL)
	if err != nil {
		return nil, scraper.NewTransient("request failed", err)
	}
	if resp.IsError() {
		return nil, scraper.ClassifyHTTPStatus(resp.StatusCode(), nil)
	}

	body := resp.String()
	m := mosaicPattern.FindStringSubmatch(body)
	if len(m) < 2 {
		// A result page without the provider blob means the embedded data
		// moved; an empty page past the last result is normal.
		if strings.Contains(body, "jobsearch") {
			return nil, scraper.NewFatal("job card data blob not found", nil)
		}
		return nil, nil
	}

	var data mosaicData
	if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
		return nil, scraper.NewFatal("job card data blob unparsable", err)
	}
	return data.MetaData.MosaicProviderJobCardsModel.Results, nil
}
