package analytics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Direction is the comparison a question asks for against its cutoff.
type Direction int

const (
	DirectionAll Direction = iota
	DirectionAfter
	DirectionBefore
)

func (d Direction) String() string {
	switch d {
	case DirectionAfter:
		return "after"
	case DirectionBefore:
		return "before"
	default:
		return "all"
	}
}

// ParseDirection is the inverse of Direction.String. Unknown values are DirectionAll.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "after", "since":
		return DirectionAfter
	case "before":
		return DirectionBefore
	default:
		return DirectionAll
	}
}

var (
	afterKeywordRe  = regexp.MustCompile(`(?i)\b(?:after|since)\b`)
	beforeKeywordRe = regexp.MustCompile(`(?i)\b(?:before|prior\s+to)\b`)

	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ](\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
	mdyDateRe    = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4}|\d{2})\b`)
	freeTextRe   = regexp.MustCompile(`(?i)\b(?:after|since|before|prior\s+to)\s+([A-Za-z0-9,\s:-]+)`)
	clockRe      = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?(am|pm)?$`)
	dayRe        = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?$`)
	hourMarkerRe = regexp.MustCompile(`^(\d{1,2})(am|pm)$`)
	yearRe       = regexp.MustCompile(`^\d{4}$`)
)

// CutoffParser extracts a time cutoff and direction from a free-text question.
// Reference supplies the year for dates written without one.
type CutoffParser struct {
	Reference func() time.Time
}

// NewCutoffParser returns a parser anchored on the wall clock.
func NewCutoffParser() *CutoffParser {
	return &CutoffParser{Reference: time.Now}
}

// ParseCutoff parses question with a wall-clock anchored parser.
func ParseCutoff(question string) (*time.Time, Direction) {
	return NewCutoffParser().Parse(question)
}

// Parse returns the first date found in question and the direction implied by
// its keywords. A question without a recognizable date is (nil, DirectionAll).
// The cutoff is midnight UTC unless the matched text carried a clock time.
func (p *CutoffParser) Parse(question string) (*time.Time, Direction) {
	cutoff := p.findCutoff(question)
	if cutoff == nil {
		return nil, DirectionAll
	}
	return cutoff, directionOf(question)
}

func directionOf(question string) Direction {
	if afterKeywordRe.MatchString(question) {
		return DirectionAfter
	}
	if beforeKeywordRe.MatchString(question) {
		return DirectionBefore
	}
	return DirectionAll
}

func (p *CutoffParser) findCutoff(question string) *time.Time {
	for _, m := range isoDateRe.FindAllStringSubmatch(question, -1) {
		text := fmt.Sprintf("%04d-%02d-%02d", atoi(m[1]), atoi(m[2]), atoi(m[3]))
		if m[4] != "" {
			text += fmt.Sprintf(" %02d:%02d:%02d", atoi(m[4]), atoi(m[5]), atoi(m[6]))
		}
		if t, ok := parseDate(text); ok {
			return &t
		}
	}
	for _, m := range mdyDateRe.FindAllStringSubmatch(question, -1) {
		year := atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		if t, ok := parseDate(fmt.Sprintf("%02d/%02d/%04d", atoi(m[1]), atoi(m[2]), year)); ok {
			return &t
		}
	}
	// numeric dates that failed above must not be re-read as free text
	rest := isoDateRe.ReplaceAllString(question, ";")
	rest = mdyDateRe.ReplaceAllString(rest, ";")
	for _, m := range freeTextRe.FindAllStringSubmatch(rest, -1) {
		if t, ok := p.parseFreeText(m[1]); ok {
			return &t
		}
	}
	return nil
}

// parseFreeText is a fuzzy reader for phrases such as "May 4", "4th of May 2025"
// or "Jan 2 3:30pm". Unrecognized words are skipped. A month name or a year is
// required; a missing year takes the reference year and a missing day is the 1st.
// The recognized parts are handed to dateparse, which rejects impossible dates.
func (p *CutoffParser) parseFreeText(text string) (time.Time, bool) {
	var (
		year, month, day     int
		hour, minute, second = -1, 0, 0
		meridiem             string
	)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '-'
	})
	for _, f := range fields {
		f = strings.TrimSuffix(f, ".")
		switch {
		case monthOf(f) > 0 && month == 0:
			month = monthOf(f)
		case f == "am" || f == "pm":
			meridiem = f
		case clockRe.MatchString(f) && hour < 0:
			m := clockRe.FindStringSubmatch(f)
			hour, minute = atoi(m[1]), atoi(m[2])
			if m[3] != "" {
				second = atoi(m[3])
			}
			if m[4] != "" {
				meridiem = m[4]
			}
		case hourMarkerRe.MatchString(f) && hour < 0:
			m := hourMarkerRe.FindStringSubmatch(f)
			hour, meridiem = atoi(m[1]), m[2]
		case yearRe.MatchString(f) && year == 0:
			if y := atoi(f); y >= 1970 && y <= 2100 {
				year = y
			}
		case dayRe.MatchString(f) && day == 0:
			day = atoi(dayRe.FindStringSubmatch(f)[1])
		}
	}
	if month == 0 && year == 0 {
		return time.Time{}, false
	}
	if year == 0 {
		year = p.reference().Year()
	}
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	phrase := fmt.Sprintf("%02d %s %04d", day, time.Month(month).String()[:3], year)
	if hour >= 0 {
		switch {
		case meridiem == "pm" && hour < 12:
			hour += 12
		case meridiem == "am" && hour == 12:
			hour = 0
		}
		phrase += fmt.Sprintf(" %02d:%02d:%02d", hour, minute, second)
	}
	return parseDate(phrase)
}

func (p *CutoffParser) reference() time.Time {
	if p == nil || p.Reference == nil {
		return time.Now().UTC()
	}
	return p.Reference().UTC()
}

// parseDate reads s in UTC. Out-of-range components are an error in dateparse
// rather than being normalized into the next month.
func parseDate(s string) (time.Time, bool) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func monthOf(word string) int {
	if len(word) < 3 {
		return 0
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if word == name || word == name[:3] || (m == time.September && word == "sept") {
			return int(m)
		}
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
