// Package timestamp turns the heterogeneous timestamp strings found in logs
// into instants that render identically in UTC and in any target zone.
package timestamp

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // zone database for minimal containers

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"ipanalyzer/internal/domain"
)

// layout is one entry of the fast-path layout table.
type layout struct {
	format string
	zoned  bool // format carries its own offset or zone
	noYear bool // syslog style, year taken from the reference time
}

var layouts = []layout{
	{format: time.RFC3339Nano, zoned: true},
	{format: "2006-01-02 15:04:05Z07:00", zoned: true},
	{format: "2006-01-02T15:04:05-0700", zoned: true},
	{format: "2006-01-02 15:04:05-0700", zoned: true},
	{format: "2006-01-02 15:04:05 -0700", zoned: true},
	{format: "2006-01-02 15:04:05 -07:00", zoned: true},
	{format: "02/Jan/2006:15:04:05 -0700", zoned: true},
	{format: time.RFC1123Z, zoned: true},
	{format: time.RFC822Z, zoned: true},
	{format: "Mon Jan _2 15:04:05 -0700 2006", zoned: true},
	{format: "2006-01-02T15:04:05"},
	{format: "2006-01-02 15:04:05"},
	{format: "2006-01-02T15:04"},
	{format: "2006-01-02 15:04"},
	{format: "2006/01/02 15:04:05"},
	{format: "2006.01.02 15:04:05"},
	{format: "02/Jan/2006:15:04:05"},
	{format: "02-Jan-2006 15:04:05"},
	{format: "2 Jan 2006 15:04:05"},
	{format: "Jan _2 2006 15:04:05"},
	{format: "Jan _2, 2006 15:04:05"},
	{format: "Mon Jan _2 15:04:05 2006"},
	{format: "Mon, 02 Jan 2006 15:04:05"},
	{format: "Jan _2 15:04:05", noYear: true},
	{format: "2006-01-02"},
}

// Numeric slash dates are ambiguous; the preferred order is tried first and
// the other one only when the preferred order cannot be a valid date.
var (
	monthFirstSlash = []layout{
		{format: "1/2/2006 15:04:05"},
		{format: "1/2/2006 15:04"},
		{format: "1/2/2006"},
	}
	dayFirstSlash = []layout{
		{format: "2/1/2006 15:04:05"},
		{format: "2/1/2006 15:04"},
		{format: "2/1/2006"},
	}
)

// zoneAbbreviations lists the trailing zone names accepted by offset. Other
// abbreviations are ambiguous and make the timestamp go through dateparse.
var zoneAbbreviations = map[string]int{
	"UTC": 0, "GMT": 0, "Z": 0, "UT": 0,
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
	"CET": 1 * 3600, "CEST": 2 * 3600,
	"WET": 0, "WEST": 1 * 3600,
	"EET": 2 * 3600, "EEST": 3 * 3600,
	"JST": 9 * 3600,
}

var absentMarkers = map[string]bool{
	"": true, "n/a": true, "na": true, "null": true, "none": true, "nil": true, "-": true, "unknown": true,
}

var (
	// clock followed by Z or a numeric offset, optionally prefixed by UTC/GMT
	numericOffsetRe = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?(?:[.,]\d+)?\s*(?:Z\b|(?:UTC|GMT)?[+-]\d{2}(?::?\d{2})?\b)`)
	upperWordRe     = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
)

// notZones are upper-case words that may appear in a timestamp without naming a zone.
var notZones = map[string]bool{
	"AM": true, "PM": true,
	"JAN": true, "FEB": true, "MAR": true, "APR": true, "MAY": true, "JUN": true,
	"JUL": true, "AUG": true, "SEP": true, "SEPT": true, "OCT": true, "NOV": true, "DEC": true,
	"JUNE": true, "JULY": true,
	"MON": true, "TUE": true, "TUES": true, "WED": true, "THU": true, "THUR": true, "FRI": true, "SAT": true, "SUN": true,
}

// Normalizer parses timestamp strings. It is safe for concurrent use.
type Normalizer struct {
	target    *time.Location
	assume    *time.Location
	reference time.Time
	dayFirst  bool
	table     []layout
	log       zerolog.Logger

	assumedOnce sync.Once
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithReference sets the time used to infer the year of syslog timestamps.
func WithReference(ref time.Time) Option {
	return func(n *Normalizer) { n.reference = ref }
}

// WithDayFirst reads ambiguous slash dates as dd/mm.
func WithDayFirst(dayFirst bool) Option {
	return func(n *Normalizer) { n.dayFirst = dayFirst }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(n *Normalizer) { n.log = log }
}

// New creates a Normalizer rendering into targetZone. Timestamps without an
// offset are read in assumeZone; an empty assumeZone means UTC.
func New(targetZone, assumeZone string, opts ...Option) (*Normalizer, error) {
	target, err := LoadLocation(targetZone)
	if err != nil {
		return nil, err
	}
	assume, err := LoadLocation(assumeZone)
	if err != nil {
		return nil, err
	}
	n := &Normalizer{
		target:    target,
		assume:    assume,
		reference: time.Now(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.dayFirst {
		n.table = slices.Concat(layouts, dayFirstSlash, monthFirstSlash)
	} else {
		n.table = slices.Concat(layouts, monthFirstSlash, dayFirstSlash)
	}
	return n, nil
}

// LoadLocation resolves an IANA zone name. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") || name == "Z" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, name)
	}
	return loc, nil
}

// Location returns the target zone.
func (n *Normalizer) Location() *time.Location {
	return n.target
}

// Normalize parses text. It never fails: absent input yields TimestampAbsent
// and unreadable input yields TimestampUnparseable with a reason.
func (n *Normalizer) Normalize(text string, present bool) domain.ParsedTimestamp {
	out := domain.ParsedTimestamp{Original: text, Location: n.target}

	s := strings.TrimSpace(text)
	if !present || absentMarkers[strings.ToLower(s)] {
		out.Status = domain.TimestampAbsent
		return out
	}

	instant, zoned, err := n.parse(s)
	if err != nil {
		n.log.Debug().Str("timestamp", text).Err(err).Msg("timestamp.Normalizer: unparseable")
		out.Status = domain.TimestampUnparseable
		out.Reason = err.Error()
		return out
	}
	if y := instant.Year(); y < 1900 || y > 2200 {
		out.Status = domain.TimestampUnparseable
		out.Reason = fmt.Sprintf("year %d out of range", y)
		return out
	}

	if !zoned {
		out.AssumedZone = true
		n.assumedOnce.Do(func() {
			n.log.Info().Str("zone", n.assume.String()).Msg("timestamp.Normalizer: timestamps without offset read in assumed zone")
		})
	}
	out.Status = domain.TimestampParsed
	out.Instant = instant.UTC()
	return out
}

func (n *Normalizer) parse(s string) (time.Time, bool, error) {
	if t, ok := parseEpoch(s); ok {
		return t, true, nil
	}

	s = translateMonths(s)

	if base, offset, ok := splitZoneAbbreviation(s); ok {
		if t, _, err := n.parseLayouts(base, time.FixedZone("", offset)); err == nil {
			return t, true, nil
		}
	}

	if t, zoned, err := n.parseLayouts(s, n.assume); err == nil {
		return t, zoned, nil
	}

	return n.parseFallback(s)
}

func (n *Normalizer) parseLayouts(s string, loc *time.Location) (time.Time, bool, error) {
	for _, l := range n.table {
		if l.zoned {
			if t, err := time.Parse(l.format, s); err == nil {
				return t, true, nil
			}
			continue
		}
		t, err := time.ParseInLocation(l.format, s, loc)
		if err != nil {
			continue
		}
		if l.noYear {
			t = n.inferYear(t)
		}
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("no layout matched %q", s)
}

// parseFallback hands the text to dateparse. Whether the text names its zone
// is decided from the text itself: a numeric offset, Z, or a known
// abbreviation. Any other upper-case zone-like word makes the text
// unparseable rather than silently read as UTC.
func (n *Normalizer) parseFallback(s string) (time.Time, bool, error) {
	loc := n.assume
	zoned := numericOffsetRe.MatchString(s)

	for _, idx := range upperWordRe.FindAllStringIndex(s, -1) {
		word := s[idx[0]:idx[1]]
		if notZones[word] {
			continue
		}
		offset, ok := zoneAbbreviations[word]
		if !ok {
			return time.Time{}, false, fmt.Errorf("unknown zone abbreviation %q", word)
		}
		if !zoned {
			loc = time.FixedZone(word, offset)
			zoned = true
		}
		s = strings.Join(strings.Fields(s[:idx[0]]+s[idx[1]:]), " ")
		break
	}

	t, err := dateparse.ParseIn(s, loc,
		dateparse.PreferMonthFirst(!n.dayFirst),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil {
		return time.Time{}, false, err
	}
	if !zoned {
		// the swap retry drops the location, so pin the wall clock to the assumed zone
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), n.assume)
	}
	return t, zoned, nil
}

// inferYear places a year-less timestamp in the reference year, or the year
// before when that would put it more than a day in the future.
func (n *Normalizer) inferYear(t time.Time) time.Time {
	ref := n.reference.In(t.Location())
	t = time.Date(ref.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if t.After(ref.Add(24 * time.Hour)) {
		t = t.AddDate(-1, 0, 0)
	}
	return t
}

// parseEpoch reads 10-digit seconds and 13-digit milliseconds.
func parseEpoch(s string) (time.Time, bool) {
	if len(s) != 10 && len(s) != 13 {
		return time.Time{}, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return time.Time{}, false
	}
	if len(s) == 13 {
		return time.UnixMilli(v).UTC(), true
	}
	return time.Unix(v, 0).UTC(), true
}

// splitZoneAbbreviation splits a trailing, unambiguous zone abbreviation.
func splitZoneAbbreviation(s string) (string, int, bool) {
	idx := strings.LastIndexByte(s, ' ')
	if idx > 0 {
		if offset, ok := zoneAbbreviations[strings.ToUpper(s[idx+1:])]; ok {
			return strings.TrimSpace(s[:idx]), offset, true
		}
	}
	if strings.HasSuffix(s, "Z") && !strings.Contains(s, "T") {
		return strings.TrimSuffix(s, "Z"), 0, true
	}
	return "", 0, false
}
