package pipeline

import (
	"testing"
	"time"

	"github.com/DanielPopoola/job-scraper/internal/domain"
)

func canonical(id, title, company, location string, lastSeen time.Time) *domain.CanonicalJob {
	return &domain.CanonicalJob{
		ID:        id,
		Title:     title,
		Company:   company,
		Location:  location,
		BucketKey: BucketKey(company, location),
		FirstSeen: lastSeen,
		LastSeen:  lastSeen,
	}
}

func normalized(title, company, location string) *NormalizedJob {
	return &NormalizedJob{Title: title, Company: company, Location: location}
}

func TestBucketKey(t *testing.T) {
	tests := []struct {
		company, location, want string
	}{
		{"Acme", "Austin, TX", "acme|austin, tx"},
		{"ACME", "AUSTIN, TX", "acme|austin, tx"},
		{" Acme ", "Remote", "acme|remote"},
		{"", "", "|"},
	}
	for _, tt := range tests {
		if got := BucketKey(tt.company, tt.location); got != tt.want {
			t.Errorf("BucketKey(%q, %q) = %q, want %q", tt.company, tt.location, got, tt.want)
		}
	}
}

func TestSimilarityIdenticalJobs(t *testing.T) {
	d := NewDuplicateDetector(0.7, DefaultWeights())
	job := normalized("Senior Software Engineer", "Acme", "Austin, TX")
	cand := canonical("c1", "Senior Software Engineer", "Acme", "Austin, TX", time.Now())

	if got := d.Similarity(job, cand); got != 1.0 {
		t.Errorf("identical jobs score = %f, want 1.0", got)
	}
}

func TestSimilarityComponents(t *testing.T) {
	t.Run("title word order ignored", func(t *testing.T) {
		got := titleSimilarity("Engineer, Software", "Software Engineer")
		if got < 0.99 {
			t.Errorf("reordered title score = %f, want ~1.0 via Jaccard", got)
		}
	})

	t.Run("title small typo caught by edit distance", func(t *testing.T) {
		got := titleSimilarity("Software Engineer", "Software Enginer")
		if got < 0.9 {
			t.Errorf("typo title score = %f, want >= 0.9 via Levenshtein", got)
		}
	})

	t.Run("title length penalty", func(t *testing.T) {
		// Token overlap is total, but one title is a much longer role.
		short := "Engineer"
		long := "Engineer Engineer Engineer Engineer Engineer"
		withPenalty := titleSimilarity(short, long)
		if withPenalty >= 1.0 {
			t.Errorf("length-skewed titles score = %f, want penalized below 1.0", withPenalty)
		}
	})

	t.Run("company containment", func(t *testing.T) {
		if got := companySimilarity("Google", "Google Cloud"); got != 0.8 {
			t.Errorf("containment score = %f, want 0.8", got)
		}
	})

	t.Run("company empty is zero", func(t *testing.T) {
		if got := companySimilarity("", "Acme"); got != 0 {
			t.Errorf("empty company score = %f, want 0", got)
		}
	})

	t.Run("both remote match", func(t *testing.T) {
		if got := locationSimilarity("Remote", "Work From Home"); got != 1.0 {
			t.Errorf("remote pair score = %f, want 1.0", got)
		}
	})

	t.Run("remote vs onsite mismatch", func(t *testing.T) {
		if got := locationSimilarity("Remote", "Austin, TX"); got != 0.3 {
			t.Errorf("remote/onsite score = %f, want 0.3", got)
		}
	})

	t.Run("missing location neutral", func(t *testing.T) {
		if got := locationSimilarity("", "Austin, TX"); got != 0.5 {
			t.Errorf("missing location score = %f, want 0.5", got)
		}
	})
}

func TestFindBestMatchThresholdInclusive(t *testing.T) {
	// Identical company and location, maximally different equal-length
	// titles: title 0, company 1, location 1, so total = 0.3 + 0.3 = 0.6.
	job := normalized("Aaaa", "Acme", "Austin, TX")
	cand := canonical("c1", "Zzzz", "Acme", "Austin, TX", time.Now())

	exact := NewDuplicateDetector(0.6, DefaultWeights())
	if got := exact.FindBestMatch(job, []*domain.CanonicalJob{cand}); got == nil {
		t.Error("score equal to threshold should match (inclusive)")
	}

	above := NewDuplicateDetector(0.61, DefaultWeights())
	if got := above.FindBestMatch(job, []*domain.CanonicalJob{cand}); got != nil {
		t.Error("score below threshold should not match")
	}
}

func TestFindBestMatchPicksHighestScore(t *testing.T) {
	d := NewDuplicateDetector(0.7, DefaultWeights())
	job := normalized("Senior Software Engineer", "Acme", "Austin, TX")

	weak := canonical("weak", "Data Analyst", "Acme", "Austin, TX", time.Now())
	strong := canonical("strong", "Senior Software Engineer", "Acme", "Austin, TX", time.Now())

	got := d.FindBestMatch(job, []*domain.CanonicalJob{weak, strong})
	if got == nil || got.ID != "strong" {
		t.Errorf("best match = %+v, want strong", got)
	}
}

func TestFindBestMatchTieBreaksOnRecency(t *testing.T) {
	d := NewDuplicateDetector(0.7, DefaultWeights())
	job := normalized("Senior Software Engineer", "Acme", "Austin, TX")

	older := canonical("older", "Senior Software Engineer", "Acme", "Austin, TX",
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	newer := canonical("newer", "Senior Software Engineer", "Acme", "Austin, TX",
		time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	// Same perfect score either way; recency decides, not slice order.
	got := d.FindBestMatch(job, []*domain.CanonicalJob{older, newer})
	if got == nil || got.ID != "newer" {
		t.Errorf("tie-break winner = %+v, want newer", got)
	}

	got = d.FindBestMatch(job, []*domain.CanonicalJob{newer, older})
	if got == nil || got.ID != "newer" {
		t.Errorf("tie-break winner (reversed order) = %+v, want newer", got)
	}
}

func TestFindBestMatchNoCandidates(t *testing.T) {
	d := NewDuplicateDetector(0.7, DefaultWeights())
	if got := d.FindBestMatch(normalized("Engineer", "Acme", ""), nil); got != nil {
		t.Errorf("match with no candidates = %+v, want nil", got)
	}
}
