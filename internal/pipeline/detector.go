package pipeline

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/DanielPopoola/job-scraper/internal/domain"
)

// SimilarityWeights controls how much each field contributes to the
// overall duplicate score. Weights should sum to 1.
type SimilarityWeights struct {
	Title    float64
	Company  float64
	Location float64
}

// DefaultWeights returns the standard weighting: title carries the most
// signal, company and location split the rest.
func DefaultWeights() SimilarityWeights {
	return SimilarityWeights{Title: 0.4, Company: 0.3, Location: 0.3}
}

// DuplicateDetector scores a normalized job against canonical
// candidates from the same bucket and decides merge-or-create.
// All methods are pure; candidate retrieval is the caller's job.
type DuplicateDetector struct {
	threshold float64
	weights   SimilarityWeights
}

// NewDuplicateDetector creates a detector. threshold is inclusive: a
// candidate scoring exactly threshold is a duplicate.
func NewDuplicateDetector(threshold float64, weights SimilarityWeights) *DuplicateDetector {
	return &DuplicateDetector{threshold: threshold, weights: weights}
}

// BucketKey returns the candidate-bucket key for a job: lowercased
// company and location joined with a pipe. Only jobs sharing a bucket
// are ever compared, which keeps candidate sets small.
func BucketKey(company, location string) string {
	return strings.ToLower(strings.TrimSpace(company)) + "|" + strings.ToLower(strings.TrimSpace(location))
}

// FindBestMatch returns the candidate with the highest similarity to
// job, provided that score meets the threshold, else nil. Equal top
// scores resolve to the most recently seen candidate.
func (d *DuplicateDetector) FindBestMatch(job *NormalizedJob, candidates []*domain.CanonicalJob) *domain.CanonicalJob {
	var best *domain.CanonicalJob
	bestScore := -1.0

	for _, candidate := range candidates {
		score := d.Similarity(job, candidate)
		if score > bestScore || (score == bestScore && best != nil && candidate.LastSeen.After(best.LastSeen)) {
			bestScore = score
			best = candidate
		}
	}

	if best != nil && bestScore >= d.threshold {
		return best
	}
	return nil
}

// Similarity computes the weighted similarity between a normalized job
// and a canonical candidate, in [0,1].
func (d *DuplicateDetector) Similarity(job *NormalizedJob, candidate *domain.CanonicalJob) float64 {
	title := titleSimilarity(job.Title, candidate.Title)
	company := companySimilarity(job.Company, candidate.Company)
	location := locationSimilarity(job.Location, candidate.Location)

	return title*d.weights.Title + company*d.weights.Company + location*d.weights.Location
}

// titleSimilarity blends token overlap with edit distance: Jaccard
// catches reordered words ("Engineer, Software" vs "Software Engineer"),
// Levenshtein catches small spelling variations Jaccard misses entirely.
func titleSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}

	la, lb := normalizeForCompare(a), normalizeForCompare(b)
	if la == lb {
		return 1.0
	}

	jaccard := jaccardSimilarity(tokenize(a), tokenize(b))
	edit := levenshteinSimilarity(la, lb)

	score := jaccard
	if edit > score {
		score = edit
	}

	// Very different lengths usually mean different roles, not
	// different phrasings of the same one.
	if ratio := lengthRatio(a, b); ratio < 0.5 {
		score *= 0.8
	}
	return score
}

// companySimilarity heavily prefers exact matches; a duplicate posting
// almost never disagrees on the employer.
func companySimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	la, lb := normalizeForCompare(a), normalizeForCompare(b)
	if la == lb {
		return 1.0
	}

	// "Google" vs "Google Cloud" style containment.
	shorter, longer := la, lb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return 0.8
	}

	return jaccardSimilarity(tokenize(a), tokenize(b))
}

// locationSimilarity is remote-aware: two remote jobs match regardless
// of wording, while remote-vs-onsite is a strong mismatch signal. A
// missing location on either side is treated as neutral.
func locationSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.5
	}

	if normalizeForCompare(a) == normalizeForCompare(b) {
		return 1.0
	}

	remoteA, remoteB := isRemoteLocation(a), isRemoteLocation(b)
	switch {
	case remoteA && remoteB:
		return 1.0
	case remoteA || remoteB:
		return 0.3
	}

	return jaccardSimilarity(tokenize(a), tokenize(b))
}

// levenshteinSimilarity converts edit distance into a [0,1] similarity
// normalized by the longer string's length.
func levenshteinSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

var tokenPattern = regexp.MustCompile(`\w+`)

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		tokens[t] = true
	}
	return tokens
}

// jaccardSimilarity is |intersection| / |union| over token sets. Two
// empty sets are identical; one empty set matches nothing.
func jaccardSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func normalizeForCompare(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func lengthRatio(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}

func isRemoteLocation(location string) bool {
	lower := strings.ToLower(location)
	for _, indicator := range []string{"remote", "anywhere", "work from home"} {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
