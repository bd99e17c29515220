package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// NormalizedJob is the pipeline's canonical-form record: standardized
// casing, expanded abbreviations, and derived classification fields.
type NormalizedJob struct {
	Title       string
	Company     string
	Location    string
	Description string
	SourceURL   string
	Site        string

	IsRemote       bool
	SeniorityLevel string
	Category       string
}

// ValidationError marks a record that cleaned down to unusable data.
// The runner catches it per record and marks only that row failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

var zipCodePattern = regexp.MustCompile(`\s*\d{5}(-\d{4})?\s*`)

// cityAliases maps shorthand city names to their expanded form plus the
// state abbreviation appended when the alias stands alone.
var cityAliases = map[string]struct {
	City  string
	State string
}{
	"nyc":    {"New York City", "NY"},
	"sf":     {"San Francisco", "CA"},
	"la":     {"Los Angeles", "CA"},
	"dc":     {"Washington", "DC"},
	"philly": {"Philadelphia", "PA"},
}

// stateAbbrevToName expands a state abbreviation found in the state slot
// of a "City, State" location.
var stateAbbrevToName = map[string]string{
	"ca": "California", "ny": "New York", "tx": "Texas",
	"fl": "Florida", "wa": "Washington", "il": "Illinois",
	"pa": "Pennsylvania", "oh": "Ohio", "ga": "Georgia",
	"nc": "North Carolina", "mi": "Michigan", "nj": "New Jersey",
	"va": "Virginia", "tn": "Tennessee", "az": "Arizona",
	"ma": "Massachusetts", "co": "Colorado", "md": "Maryland",
	"or": "Oregon", "mn": "Minnesota", "wi": "Wisconsin",
}

// stateNameToAbbrev is the reverse mapping, used to keep the state slot
// as a two-letter code for consistency.
var stateNameToAbbrev = map[string]string{
	"california": "CA", "new york": "NY", "texas": "TX",
	"florida": "FL", "washington": "WA", "illinois": "IL",
	"pennsylvania": "PA", "ohio": "OH", "georgia": "GA",
	"north carolina": "NC", "michigan": "MI", "new jersey": "NJ",
	"virginia": "VA", "tennessee": "TN", "arizona": "AZ",
	"massachusetts": "MA", "colorado": "CO", "maryland": "MD",
	"oregon": "OR", "minnesota": "MN", "wisconsin": "WI",
}

// titleAbbreviations expands shorthand found in job titles. Applied in
// order with word boundaries, dotted forms first, so "sr." expands
// before the bare "sr" pattern can leave its dot behind.
var titleAbbreviations = []struct {
	Abbrev string
	Full   string
}{
	{"sr.", "senior"}, {"sr", "senior"},
	{"jr.", "junior"}, {"jr", "junior"},
	{"dev", "developer"}, {"eng", "engineer"},
	{"mgr", "manager"}, {"admin", "administrator"},
	{"sys", "system"}, {"db", "database"},
	{"qa", "quality assurance"},
	{"ui", "user interface"}, {"ux", "user experience"},
	{"ml", "machine learning"}, {"ai", "artificial intelligence"},
}

// acronymFixups restores acronyms that title-casing mangles.
var acronymFixups = []struct {
	Mangled string
	Fixed   string
}{
	{"Api", "API"}, {"Ui", "UI"}, {"Ux", "UX"}, {"Ml", "ML"}, {"Ai", "AI"},
}

// companySuffixes are legal-entity suffixes stripped for matching
// purposes ("Apple Inc." and "Apple" are the same employer).
var companySuffixes = map[string]bool{
	"inc.": true, "inc": true, "incorporated": true,
	"llc": true, "l.l.c.": true, "l.l.c": true,
	"corp.": true, "corp": true, "corporation": true,
	"co.": true, "co": true, "company": true,
	"ltd.": true, "ltd": true, "limited": true,
	"plc": true, "p.l.c.": true,
}

var remoteIndicators = []string{
	"remote", "work from home", "wfh", "telecommute",
	"distributed", "anywhere", "virtual",
}

// seniorityKeywords is checked in order; the first match wins, so
// "Senior Staff Engineer" classifies as Senior.
var seniorityKeywords = []struct {
	Keyword string
	Level   string
}{
	{"intern", "Intern"},
	{"junior", "Junior"},
	{"associate", "Associate"},
	{"senior", "Senior"},
	{"lead", "Lead"},
	{"principal", "Principal"},
	{"staff", "Staff"},
	{"director", "Director"},
	{"vice president", "VP"},
	{"vp", "VP"},
	{"head of", "Head"},
	{"chief", "C-Level"},
}

var categoryKeywords = []struct {
	Keyword  string
	Category string
}{
	{"engineer", "Engineering"},
	{"developer", "Engineering"},
	{"programmer", "Engineering"},
	{"architect", "Engineering"},
	{"scientist", "Data Science"},
	{"analyst", "Analytics"},
	{"manager", "Management"},
	{"director", "Management"},
	{"product", "Product"},
	{"design", "Design"},
	{"marketing", "Marketing"},
	{"sales", "Sales"},
	{"recruiter", "HR"},
	{"consultant", "Consulting"},
	{"researcher", "Research"},
}

type replacement struct {
	pattern *regexp.Regexp
	with    string
}

// Normalizer converts cleaned job data into canonical form. All methods
// are pure and deterministic.
type Normalizer struct {
	abbrevPatterns  []replacement
	acronymPatterns []replacement
}

// NewNormalizer creates a Normalizer with its abbreviation patterns
// precompiled.
func NewNormalizer() *Normalizer {
	abbrevs := make([]replacement, 0, len(titleAbbreviations))
	for _, entry := range titleAbbreviations {
		// Dotted forms end on a non-word rune, where \b cannot close
		// the match, so the dot itself terminates the pattern.
		expr := `\b` + regexp.QuoteMeta(entry.Abbrev)
		if !strings.HasSuffix(entry.Abbrev, ".") {
			expr += `\b`
		}
		abbrevs = append(abbrevs, replacement{
			pattern: regexp.MustCompile(expr),
			with:    entry.Full,
		})
	}
	acronyms := make([]replacement, 0, len(acronymFixups))
	for _, entry := range acronymFixups {
		acronyms = append(acronyms, replacement{
			pattern: regexp.MustCompile(`\b` + entry.Mangled + `\b`),
			with:    entry.Fixed,
		})
	}
	return &Normalizer{abbrevPatterns: abbrevs, acronymPatterns: acronyms}
}

// Normalize converts a cleaned job to canonical form. It returns a
// *ValidationError when the record lacks a title or a company, the two
// fields every downstream comparison depends on.
func (n *Normalizer) Normalize(cleaned CleanedJob) (*NormalizedJob, error) {
	if strings.TrimSpace(cleaned.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "empty after cleaning"}
	}
	if strings.TrimSpace(cleaned.Company) == "" {
		return nil, &ValidationError{Field: "company", Reason: "empty after cleaning"}
	}

	title := n.NormalizeTitle(cleaned.Title)
	location := n.NormalizeLocation(cleaned.Location)

	return &NormalizedJob{
		Title:          title,
		Company:        n.NormalizeCompany(cleaned.Company),
		Location:       location,
		Description:    cleaned.Description,
		SourceURL:      cleaned.SourceURL,
		Site:           cleaned.Site,
		IsRemote:       detectRemote(title, location),
		SeniorityLevel: extractSeniority(title),
		Category:       extractCategory(title),
	}, nil
}

// NormalizeTitle expands abbreviations ("Sr." -> "Senior") and restores
// acronym casing after the title-case pass.
func (n *Normalizer) NormalizeTitle(title string) string {
	normalized := strings.ToLower(title)
	for _, r := range n.abbrevPatterns {
		normalized = r.pattern.ReplaceAllString(normalized, r.with)
	}

	normalized = titleCase(normalized)
	for _, r := range n.acronymPatterns {
		normalized = r.pattern.ReplaceAllString(normalized, r.with)
	}
	return normalized
}

// NormalizeCompany strips legal-entity suffixes and title-cases the
// remainder, so "apple inc." becomes "Apple".
func (n *Normalizer) NormalizeCompany(company string) string {
	normalized := strings.TrimSpace(company)
	words := strings.Fields(strings.ToLower(normalized))

	if len(words) >= 2 {
		lastTwo := strings.TrimRight(strings.Join(words[len(words)-2:], " "), ",")
		if companySuffixes[lastTwo] {
			words = words[:len(words)-2]
			return titleCase(strings.Join(words, " "))
		}
	}
	if len(words) >= 1 {
		last := strings.TrimRight(words[len(words)-1], ",")
		if companySuffixes[last] {
			words = words[:len(words)-1]
		}
	}
	return titleCase(strings.Join(words, " "))
}

// NormalizeLocation standardizes a location to "City, ST" where it can:
// remote indicators collapse to "Remote", city aliases expand with their
// state, zip codes are dropped, and state names shrink to abbreviations.
func (n *Normalizer) NormalizeLocation(location string) string {
	if location == "" {
		return ""
	}
	if isRemoteIndicator(location) {
		return "Remote"
	}

	location = strings.TrimSpace(zipCodePattern.ReplaceAllString(location, " "))

	parts := strings.Split(location, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		single := strings.ToLower(parts[0])
		if alias, ok := cityAliases[single]; ok {
			return alias.City + ", " + alias.State
		}
		if name, ok := stateAbbrevToName[single]; ok {
			return name
		}
		return titleCase(parts[0])
	case 2:
		city, state := parts[0], parts[1]

		if alias, ok := cityAliases[strings.ToLower(city)]; ok {
			city = alias.City
		} else {
			city = titleCase(city)
		}

		stateLower := strings.ToLower(state)
		if abbrev, ok := stateNameToAbbrev[stateLower]; ok {
			state = abbrev
		} else if _, ok := stateAbbrevToName[stateLower]; ok {
			state = strings.ToUpper(stateLower)
		} else {
			state = strings.ToUpper(state)
		}
		return city + ", " + state
	default:
		kept := parts[:2]
		for i := range kept {
			kept[i] = titleCase(kept[i])
		}
		return strings.Join(kept, ", ")
	}
}

func isRemoteIndicator(location string) bool {
	lower := strings.ToLower(strings.TrimSpace(location))
	for _, indicator := range remoteIndicators {
		if lower == indicator {
			return true
		}
	}
	return false
}

func detectRemote(title, location string) bool {
	text := strings.ToLower(title + " " + location)
	for _, indicator := range remoteIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return false
}

func extractSeniority(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range seniorityKeywords {
		if strings.Contains(lower, entry.Keyword) {
			return entry.Level
		}
	}
	return "Mid-Level"
}

func extractCategory(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range categoryKeywords {
		if strings.Contains(lower, entry.Keyword) {
			return entry.Category
		}
	}
	return "Other"
}
