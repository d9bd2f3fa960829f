// Package types holds the date/time value types used when building
// query filters against the table API. The service stores and returns
// all date/time fields as UTC strings in a fixed format, so the types
// in this package are normalized to UTC on construction and only
// convert to another zone when rendering.
package types

import (
	"strconv"
	"time"

	"github.com/lewisgf/snowclient/pkg/servicenow/errors"
)

const (
	DateLayout     string = "2006-01-02"
	DateTimeLayout string = "2006-01-02 15:04:05"
)

// DateTime is an immutable instant with seconds precision, stored in
// UTC regardless of how it was constructed.
type DateTime struct {
	t time.Time
}

// ParseDateTime parses a string in the service wire format, either
// "YYYY-MM-DD HH:MM:SS" or "YYYY-MM-DD" (implying midnight). The
// input is treated as UTC. Malformed input fails with an error
// matching errors.ErrFormat.
func ParseDateTime(s string) (DateTime, error) {
	return ParseDateTimeIn(s, time.UTC)
}

// ParseDateTimeIn parses a string in the service wire format,
// interpreting it as wall-clock time in loc before converting to UTC.
// Daylight saving transitions are resolved by the zone database. A nil
// loc means UTC.
func ParseDateTimeIn(s string, loc *time.Location) (DateTime, error) {
	if loc == nil {
		loc = time.UTC
	}

	input := s
	if len(input) == len(DateLayout) {
		input += " 00:00:00"
	}

	t, err := time.ParseInLocation(DateTimeLayout, input, loc)
	if err != nil {
		return DateTime{}, errors.NewFormatError(s)
	}

	return DateTime{t: t.UTC()}, nil
}

// FromTime converts an instant to a DateTime. The location attached to
// t is honored, so the result always denotes the same instant. Any
// sub-second precision is dropped.
func FromTime(t time.Time) DateTime {
	return DateTime{t: t.UTC().Truncate(time.Second)}
}

// FromDate returns midnight of the given calendar date in loc,
// converted to UTC. A nil loc means UTC.
func FromDate(year int, month time.Month, day int, loc *time.Location) DateTime {
	if loc == nil {
		loc = time.UTC
	}
	return DateTime{t: time.Date(year, month, day, 0, 0, 0, 0, loc).UTC()}
}

// Now returns the current instant, truncated to seconds.
func Now() DateTime {
	return FromTime(time.Now())
}

// Today returns midnight of the current calendar date as observed in
// loc. The date is rendered in loc and reparsed in the same zone, so
// the result reflects the local calendar day even when UTC has already
// rolled over.
func Today(loc *time.Location) DateTime {
	day := Now().AsLocal(loc)[:len(DateLayout)]
	d, _ := ParseDateTimeIn(day, loc)
	return d
}

// AsUTC renders the instant as "YYYY-MM-DD HH:MM:SS" in UTC.
func (d DateTime) AsUTC() string {
	return d.t.Format(DateTimeLayout)
}

// AsLocal renders the instant as "YYYY-MM-DD HH:MM:SS" in loc. A nil
// loc means UTC.
func (d DateTime) AsLocal(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return d.t.In(loc).Format(DateTimeLayout)
}

func (d DateTime) String() string {
	return d.AsUTC()
}

// Time returns the instant as a time.Time in UTC.
func (d DateTime) Time() time.Time {
	return d.t
}

func (d DateTime) Add(dur time.Duration) DateTime {
	return DateTime{t: d.t.Add(dur)}
}

func (d DateTime) Sub(other DateTime) time.Duration {
	return d.t.Sub(other.t)
}

func (d DateTime) Before(other DateTime) bool {
	return d.t.Before(other.t)
}

func (d DateTime) After(other DateTime) bool {
	return d.t.After(other.t)
}

func (d DateTime) Equal(other DateTime) bool {
	return d.t.Equal(other.t)
}

func (d DateTime) IsZero() bool {
	return d.t.IsZero()
}

// MarshalJSON renders the instant as a quoted wire format string.
func (d DateTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.AsUTC())), nil
}

// UnmarshalJSON parses a quoted wire format string as UTC.
func (d *DateTime) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.NewFormatError(string(data))
	}

	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}
