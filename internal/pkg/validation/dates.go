package validation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Vodeneev/loterias/internal/pkg/models"
)

var (
	isoDateRe     = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})(?:T|\b)`)
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{4}|\d{2})\b`)
	longDateRe    = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:de\s+)?([a-z]{3,10})\.?\s*(?:de\s+|del\s+|,\s*)?(\d{4})\b`)
)

var spanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

// monthByName accepts full Spanish month names and their three letter prefixes.
func monthByName(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if m, ok := spanishMonths[name]; ok {
		return m, true
	}
	if len(name) < 3 {
		return 0, false
	}
	for full, m := range spanishMonths {
		if full != "setiembre" && strings.HasPrefix(full, name) {
			return m, true
		}
	}
	return 0, false
}

// dateMatch is a date token found in free text.
type dateMatch struct {
	date  models.Date
	start int
	end   int
}

// FindDates returns every distinct calendar date mentioned in s, in order of appearance.
// Recognized forms: yyyy-mm-dd (with optional time suffix), dd/mm/yyyy, dd-mm-yyyy,
// dd.mm.yyyy, two digit years, and Spanish long form ("jueves, 12 de septiembre de 2024").
func FindDates(s string) []models.Date {
	matches := findDateMatches(CleanText(s))
	seen := make(map[string]bool, len(matches))
	out := make([]models.Date, 0, len(matches))
	for _, m := range matches {
		key := m.date.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m.date)
	}
	return out
}

// HasDateToken reports whether s contains at least one recognizable date.
func HasDateToken(s string) bool {
	return len(findDateMatches(CleanText(s))) > 0
}

// StripDates removes date tokens from s so that their digits are not mistaken for numbers.
func StripDates(s string) string {
	s = CleanText(s)
	matches := findDateMatches(s)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if m.start < last {
			continue
		}
		b.WriteString(s[last:m.start])
		b.WriteByte(' ')
		last = m.end
	}
	b.WriteString(s[last:])
	return b.String()
}

// DateSpan locates one date token inside the cleaned text.
type DateSpan struct {
	Date  models.Date
	Start int
	End   int
}

// DateSpans returns every date token of CleanText(s) in order of appearance,
// repeats included.
func DateSpans(s string) []DateSpan {
	matches := findDateMatches(CleanText(s))
	out := make([]DateSpan, len(matches))
	for i, m := range matches {
		out[i] = DateSpan{Date: m.date, Start: m.start, End: m.end}
	}
	return out
}

func findDateMatches(s string) []dateMatch {
	var out []dateMatch
	taken := make([]bool, len(s)+1)
	mark := func(a, b int) {
		for i := a; i < b; i++ {
			taken[i] = true
		}
	}
	free := func(a, b int) bool {
		for i := a; i < b; i++ {
			if taken[i] {
				return false
			}
		}
		return true
	}

	for _, loc := range isoDateRe.FindAllStringSubmatchIndex(s, -1) {
		y, _ := strconv.Atoi(s[loc[2]:loc[3]])
		mo, _ := strconv.Atoi(s[loc[4]:loc[5]])
		d, _ := strconv.Atoi(s[loc[6]:loc[7]])
		if date, ok := makeDate(y, mo, d); ok {
			out = append(out, dateMatch{date: date, start: loc[0], end: loc[1]})
			mark(loc[0], loc[1])
		}
	}

	for _, loc := range numericDateRe.FindAllStringSubmatchIndex(s, -1) {
		if !free(loc[0], loc[1]) {
			continue
		}
		d, _ := strconv.Atoi(s[loc[2]:loc[3]])
		mo, _ := strconv.Atoi(s[loc[4]:loc[5]])
		y := expandYear(s[loc[6]:loc[7]])
		if date, ok := makeDate(y, mo, d); ok {
			out = append(out, dateMatch{date: date, start: loc[0], end: loc[1]})
			mark(loc[0], loc[1])
		}
	}

	for _, loc := range longDateRe.FindAllStringSubmatchIndex(s, -1) {
		if !free(loc[0], loc[1]) {
			continue
		}
		mo, ok := monthByName(s[loc[4]:loc[5]])
		if !ok {
			continue
		}
		d, _ := strconv.Atoi(s[loc[2]:loc[3]])
		y, _ := strconv.Atoi(s[loc[6]:loc[7]])
		if date, ok := makeDate(y, int(mo), d); ok {
			out = append(out, dateMatch{date: date, start: loc[0], end: loc[1]})
			mark(loc[0], loc[1])
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 2 {
		if y < 70 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

// makeDate rejects impossible calendar dates such as 31/02.
func makeDate(y, m, d int) (models.Date, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 || y < 1900 {
		return models.Date{}, false
	}
	date := models.NewDate(y, time.Month(m), d)
	if date.Day() != d || int(date.Month()) != m {
		return models.Date{}, false
	}
	return date, true
}
