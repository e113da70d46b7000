// Package slots builds the calendar of bookable consultation times.
package slots

import (
	"fmt"
	"time"
)

const (
	DefaultWeeks     = 4
	DefaultLimit     = 40
	DefaultLeadTime  = 2 * time.Hour
	DefaultZoneLabel = "ET"
	DefaultTimezone  = "America/New_York"
)

// DefaultHours are the business-hour start marks (24h clock) offered each weekday.
var DefaultHours = []int{10, 11, 12, 13, 14, 15, 16, 17}

// TimeSlot is a bookable start time plus its display strings.
type TimeSlot struct {
	Timestamp int64  `json:"timestamp"`
	DayName   string `json:"dayName"`
	DateStr   string `json:"dateStr"`
	FullDate  string `json:"fullDate"`
	Time      string `json:"time"`
	FullTime  string `json:"fullTime"`
}

// Start returns the slot start as a time.Time in loc.
func (s TimeSlot) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(s.Timestamp).In(loc)
}

// Options controls slot generation. Zero values take the package defaults.
type Options struct {
	Location  *time.Location
	ZoneLabel string
	Weeks     int
	Hours     []int
	LeadTime  time.Duration
	Limit     int
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.ZoneLabel == "" {
		o.ZoneLabel = DefaultZoneLabel
	}
	if o.Weeks <= 0 {
		o.Weeks = DefaultWeeks
	}
	if len(o.Hours) == 0 {
		o.Hours = DefaultHours
	}
	if o.LeadTime <= 0 {
		o.LeadTime = DefaultLeadTime
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

// LoadLocation resolves a business timezone name. An empty name means DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("slots: load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Generate returns up to opts.Limit weekday slots, earliest first, starting strictly after
// now+LeadTime. Days are counted from the business-local date of now.
func Generate(now time.Time, opts Options) []TimeSlot {
	opts = opts.withDefaults()
	loc := opts.Location
	cutoff := now.Add(opts.LeadTime)

	local := now.In(loc)
	year, month, day := local.Date()

	out := make([]TimeSlot, 0, opts.Limit)
	for week := 0; week < opts.Weeks; week++ {
		for offset := 0; offset < 7; offset++ {
			date := time.Date(year, month, day+week*7+offset, 0, 0, 0, 0, loc)
			if !isWeekday(date.Weekday()) {
				continue
			}
			for _, hour := range opts.Hours {
				start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, loc)
				if !start.After(cutoff) {
					continue
				}
				out = append(out, newSlot(start, opts.ZoneLabel))
				if len(out) == opts.Limit {
					return out
				}
			}
		}
	}
	return out
}

// Find returns the slot with the given timestamp.
func Find(list []TimeSlot, timestamp int64) (TimeSlot, bool) {
	for _, s := range list {
		if s.Timestamp == timestamp {
			return s, true
		}
	}
	return TimeSlot{}, false
}

func newSlot(start time.Time, zoneLabel string) TimeSlot {
	clock := start.Format("3:04 PM")
	fullDate := start.Format("Monday, January 2, 2006")
	return TimeSlot{
		Timestamp: start.UnixMilli(),
		DayName:   start.Weekday().String(),
		DateStr:   start.Format("January 2"),
		FullDate:  fullDate,
		Time:      clock,
		FullTime:  fmt.Sprintf("%s at %s %s", fullDate, clock, zoneLabel),
	}
}

func isWeekday(d time.Weekday) bool {
	return d >= time.Monday && d <= time.Friday
}
