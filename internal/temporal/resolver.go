// Package temporal turns relative date/time phrases ("giovedì alle 15:00",
// "domani pomeriggio", "next monday at 9:30") into absolute instants.
package temporal

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Confidence is attached to every resolved phrase. A heuristic resolver never
// reports certainty.
const Confidence = 0.85

const (
	defaultHour   = 10
	defaultMinute = 0
)

var (
	ErrInvalidReference = errors.New("temporal: invalid reference instant")
	ErrUnanchored       = errors.New("temporal: no date expression found")
)

type Result struct {
	Start       time.Time
	Date        string
	Time        string
	Timezone    string
	Confidence  float64
	DateMatched bool
}

type relativeDay struct {
	pattern *regexp.Regexp
	offset  int
}

func relative(keyword string, offset int) relativeDay {
	return relativeDay{pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`), offset: offset}
}

// Whole words only, so "appoggio" is not "oggi". Two-day keywords come first.
var relativeDays = []relativeDay{
	relative("dopodomani", 2),
	relative("dopo domani", 2),
	relative("day after tomorrow", 2),
	relative("domani", 1),
	relative("tomorrow", 1),
	relative("stasera", 0),
	relative("stamattina", 0),
	relative("oggi", 0),
	relative("today", 0),
	relative("tonight", 0),
}

type weekdayName struct {
	names   []string
	weekday time.Weekday
}

var weekdayNames = []weekdayName{
	{[]string{"lunedì", "lunedi", "monday"}, time.Monday},
	{[]string{"martedì", "martedi", "tuesday"}, time.Tuesday},
	{[]string{"mercoledì", "mercoledi", "wednesday"}, time.Wednesday},
	{[]string{"giovedì", "giovedi", "thursday"}, time.Thursday},
	{[]string{"venerdì", "venerdi", "friday"}, time.Friday},
	{[]string{"sabato", "saturday"}, time.Saturday},
	{[]string{"domenica", "sunday"}, time.Sunday},
}

var nextQualifiers = []string{"prossimo", "prossima", "next "}

type period struct {
	words  []string
	hour   int
	evenPM bool
}

var periods = []period{
	{words: []string{"stamattina", "mattina", "mattino", "morning"}, hour: 9},
	{words: []string{"pomeriggio", "afternoon"}, hour: 15, evenPM: true},
	{words: []string{"stasera", "sera", "evening", "tonight"}, hour: 18, evenPM: true},
}

// Explicit clock patterns in priority order.
var clockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:alle|ore|at)\s+(\d{1,2})[:.](\d{2})\b`),
	regexp.MustCompile(`\b(?:alle|at)\s+(\d{1,2})\s+(?:e|and)\s+(\d{2})\b`),
	regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`),
}

var hourOnlyPattern = regexp.MustCompile(`\b(?:alle|ore|at)\s+(\d{1,2})(?:\s*(am|pm))?\b`)

type Resolver struct {
	loc    *time.Location
	strict bool
	now    func() time.Time
}

type Option func(*Resolver)

// WithStrict makes phrases without any date keyword fail with ErrUnanchored
// instead of falling back to today at 10:00.
func WithStrict(strict bool) Option {
	return func(r *Resolver) { r.strict = strict }
}

// WithClock overrides the source of "now" used when no reference is given.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(timezone string, opts ...Option) (*Resolver, error) {
	if timezone == "" {
		timezone = "Europe/Rome"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	r := &Resolver{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve parses text against an optional reference instant. An empty
// reference means now.
func (r *Resolver) Resolve(text, reference string) (Result, error) {
	ref := r.now()
	if reference != "" {
		parsed, err := ParseReference(reference, r.loc)
		if err != nil {
			return Result{}, err
		}
		ref = parsed
	}
	return r.ResolveAt(text, ref)
}

// ResolveAt parses text relative to ref. It only fails in strict mode.
func (r *Resolver) ResolveAt(text string, ref time.Time) (Result, error) {
	ref = ref.In(r.loc)
	lower := strings.ToLower(text)

	offset, matched := dayOffset(lower, ref.Weekday())
	if !matched && r.strict {
		return Result{}, fmt.Errorf("%w in %q", ErrUnanchored, text)
	}

	hour, minute := clockTime(lower)

	day := time.Date(ref.Year(), ref.Month(), ref.Day()+offset, 0, 0, 0, 0, r.loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, r.loc)

	return Result{
		Start:       start,
		Date:        start.Format("2006-01-02"),
		Time:        start.Format("15:04"),
		Timezone:    r.loc.String(),
		Confidence:  Confidence,
		DateMatched: matched,
	}, nil
}

// ParseReference accepts RFC 3339 instants and local ISO dates/date-times.
func ParseReference(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidReference, value)
}

func dayOffset(lower string, refDay time.Weekday) (int, bool) {
	for _, rd := range relativeDays {
		if rd.pattern.MatchString(lower) {
			return rd.offset, true
		}
	}

	for _, wd := range weekdayNames {
		for _, name := range wd.names {
			if !strings.Contains(lower, name) {
				continue
			}
			sameWeek := (int(wd.weekday) - int(refDay) + 7) % 7
			if hasNextQualifier(lower) {
				return sameWeek + 7, true
			}
			if sameWeek == 0 {
				return 7, true
			}
			return sameWeek, true
		}
	}
	return 0, false
}

func hasNextQualifier(lower string) bool {
	for _, q := range nextQualifiers {
		if strings.Contains(lower, q) {
			return true
		}
	}
	return false
}

// clockTime returns the explicit clock time of the phrase, the period default
// when only a period word is present, or 10:00.
func clockTime(lower string) (int, int) {
	for _, re := range clockPatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			if h, mm, ok := toClock(m[1], m[2]); ok {
				return h, mm
			}
		}
	}

	p, hasPeriod := findPeriod(lower)

	if m := hourOnlyPattern.FindStringSubmatch(lower); m != nil {
		if h, mm, ok := toClock(m[1], "0"); ok {
			switch {
			case m[2] == "pm" && h < 12:
				h += 12
			case m[2] == "am" && h == 12:
				h = 0
			case m[2] == "" && hasPeriod && p.evenPM && h < 12:
				h += 12
			}
			return h, mm
		}
	}

	if hasPeriod {
		return p.hour, 0
	}
	return defaultHour, defaultMinute
}

func findPeriod(lower string) (period, bool) {
	for _, p := range periods {
		for _, w := range p.words {
			if strings.Contains(lower, w) {
				return p, true
			}
		}
	}
	return period{}, false
}

func toClock(hs, ms string) (int, int, bool) {
	h, err := strconv.Atoi(hs)
	if err != nil || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
