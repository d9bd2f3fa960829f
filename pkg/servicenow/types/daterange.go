package types

import (
	"fmt"
	"time"
)

// DateTimeRange is an ordered pair of instants. Start is expected to
// not be after End, but construction does not enforce it.
type DateTimeRange struct {
	start DateTime
	end   DateTime
}

func NewDateTimeRange(start, end DateTime) DateTimeRange {
	return DateTimeRange{start: start, end: end}
}

// DayRange spans a calendar day as observed in loc: from local
// midnight (converted to UTC) to 23:59:59 later.
func DayRange(year int, month time.Month, day int, loc *time.Location) DateTimeRange {
	start := FromDate(year, month, day, loc)
	end := start.Add(24*time.Hour - time.Second)
	return DateTimeRange{start: start, end: end}
}

func (r DateTimeRange) Start() DateTime {
	return r.start
}

func (r DateTimeRange) End() DateTime {
	return r.end
}

// Overlap returns how long this range and other cover the same time.
// Ranges that are disjoint, or that only touch at an endpoint, do not
// overlap and return 0.
func (r DateTimeRange) Overlap(other DateTimeRange) time.Duration {
	latestStart := r.start
	if other.start.After(latestStart) {
		latestStart = other.start
	}

	earliestEnd := r.end
	if other.end.Before(earliestEnd) {
		earliestEnd = other.end
	}

	if !latestStart.Before(earliestEnd) {
		return 0
	}

	return earliestEnd.Sub(latestStart)
}

// Overlaps reports whether the two ranges share a strictly positive
// amount of time.
func (r DateTimeRange) Overlaps(other DateTimeRange) bool {
	return r.Overlap(other) > 0
}

func (r DateTimeRange) String() string {
	return fmt.Sprintf("[%s,%s]", r.start.AsUTC(), r.end.AsUTC())
}
