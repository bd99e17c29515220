package pipeline

import (
	"html"
	"regexp"
	"strings"
)

// CleanedJob holds the output of the cleaning stage: raw scraper text
// with formatting noise removed, before any semantic normalization.
type CleanedJob struct {
	Title       string
	Company     string
	Location    string
	Description string
	SourceURL   string
	Site        string
}

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)

	// Noise that sites prepend or append to titles.
	titlePrefixPattern   = regexp.MustCompile(`(?i)^(job|position|role):\s*`)
	titleModePattern     = regexp.MustCompile(`(?i)\s*-\s*(remote|hybrid|onsite)$`)
	trailingParenPattern = regexp.MustCompile(`\s*\([^)]*\)$`)
	sentenceSplitPattern = regexp.MustCompile(`[.!?]+`)
)

// Placeholder strings sites emit instead of leaving a field blank.
var missingIndicators = map[string][]string{
	"description": {"no description available", "description not available", "n/a", "na"},
	"company":     {"unknown company", "n/a", "na"},
	"location":    {"unknown location", "n/a", "na"},
}

// Cleaner strips formatting noise from raw scraper output. All methods
// are pure; a zero Cleaner is ready to use.
type Cleaner struct{}

// NewCleaner creates a Cleaner.
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// Clean produces a CleanedJob from raw fields. It never fails: fields
// that clean down to nothing come back empty, and the validation stage
// decides whether that is acceptable.
func (c *Cleaner) Clean(rawTitle, rawCompany, rawLocation, rawDescriptionHTML, sourceURL, site string) CleanedJob {
	return CleanedJob{
		Title:       c.CleanTitle(rawTitle),
		Company:     c.CleanCompany(rawCompany),
		Location:    c.CleanLocation(rawLocation),
		Description: c.CleanDescription(rawDescriptionHTML),
		SourceURL:   sourceURL,
		Site:        site,
	}
}

// CleanTitle removes noise prefixes ("Job: "), work-mode suffixes
// ("- Remote") and trailing parentheticals, then title-cases the result.
func (c *Cleaner) CleanTitle(title string) string {
	if title == "" {
		return ""
	}
	cleaned := basicTextClean(title)
	cleaned = titlePrefixPattern.ReplaceAllString(cleaned, "")
	cleaned = titleModePattern.ReplaceAllString(cleaned, "")
	cleaned = trailingParenPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(titleCase(cleaned))
}

// CleanCompany strips placeholder values like "Unknown Company".
func (c *Cleaner) CleanCompany(company string) string {
	if company == "" {
		return ""
	}
	cleaned := basicTextClean(company)
	if isMissingIndicator("company", cleaned) {
		return ""
	}
	return strings.TrimSpace(cleaned)
}

// CleanLocation strips placeholders and trailing area qualifiers,
// turning "Houston, TX 77002 (Downtown area)" into "Houston, TX 77002".
func (c *Cleaner) CleanLocation(location string) string {
	if location == "" {
		return ""
	}
	cleaned := basicTextClean(location)
	if isMissingIndicator("location", cleaned) {
		return ""
	}
	cleaned = trailingParenPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// CleanDescription strips HTML, collapses whitespace, and removes
// duplicated sentences that some sites repeat in scraped blurbs.
func (c *Cleaner) CleanDescription(description string) string {
	if description == "" {
		return ""
	}
	if isMissingIndicator("description", strings.TrimSpace(description)) {
		return ""
	}
	cleaned := basicTextClean(description)
	cleaned = htmlTagPattern.ReplaceAllString(cleaned, " ")
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = removeRepetitiveText(cleaned)
	return strings.TrimSpace(cleaned)
}

// basicTextClean decodes HTML entities, collapses whitespace, and drops
// control characters.
func basicTextClean(text string) string {
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 32 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isMissingIndicator(field, value string) bool {
	lower := strings.ToLower(strings.TrimSpace(value))
	if lower == "" {
		return true
	}
	for _, indicator := range missingIndicators[field] {
		if lower == indicator {
			return true
		}
	}
	return false
}

// removeRepetitiveText drops sentences that repeat verbatim. Short text
// is returned as-is; repetition only matters in long scraped blurbs.
func removeRepetitiveText(text string) string {
	if len(text) < 100 {
		return text
	}

	sentences := sentenceSplitPattern.Split(text, -1)
	seen := make(map[string]bool, len(sentences))
	unique := make([]string, 0, len(sentences))

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		key := strings.ToLower(sentence)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, sentence)
	}

	return strings.Join(unique, ". ")
}

// titleCase uppercases every letter that follows a non-letter and
// lowercases the rest, so "ui/ux designer" becomes "Ui/Ux Designer".
func titleCase(s string) string {
	runes := []rune(s)
	prevLetter := false
	for i, r := range runes {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if isLetter && !prevLetter {
			runes[i] = []rune(strings.ToUpper(string(r)))[0]
		} else if isLetter {
			runes[i] = []rune(strings.ToLower(string(r)))[0]
		}
		prevLetter = isLetter
	}
	return string(runes)
}
