package value

import (
	"fmt"
	"time"
)

// Date is a naive (zoneless) calendar date.
type Date struct {
	Year  int32
	Month uint8
	Day   uint8
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) toTime() time.Time {
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
}

func dateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: int32(y), Month: uint8(m), Day: uint8(d)}
}

// TimeOfDay is a naive (zoneless) wall-clock time with nanosecond precision.
type TimeOfDay struct {
	Hour       uint8
	Minute     uint8
	Second     uint8
	Nanosecond uint32
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) IsMidnight() bool {
	return t.Hour == 0 && t.Minute == 0 && t.Second == 0 && t.Nanosecond == 0
}

// DateTime is a naive (zoneless) date and time.
type DateTime struct {
	Date Date
	Time TimeOfDay
}

func (dt DateTime) String() string {
	return fmt.Sprintf("%sT%s", dt.Date.String(), dt.Time.String())
}

func (dt DateTime) toTime() time.Time {
	d := dt.Date
	t := dt.Time
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), int(t.Hour), int(t.Minute), int(t.Second), int(t.Nanosecond), time.UTC)
}

func dateTimeFromTime(t time.Time) DateTime {
	return DateTime{
		Date: dateFromTime(t),
		Time: TimeOfDay{
			Hour:       uint8(t.Hour()),
			Minute:     uint8(t.Minute()),
			Second:     uint8(t.Second()),
			Nanosecond: uint32(t.Nanosecond()),
		},
	}
}

var epochDate = Date{Year: 1970, Month: 1, Day: 1}

// DateTimeWithTZ pairs a naive DateTime with an IANA timezone identifier.
// The DateTime is the wall-clock reading in that zone (not normalized to UTC),
// matching the wire encoding in wire.Reader/Writer.
type DateTimeWithTZ struct {
	DateTime DateTime
	Zone     string
}

func (dt DateTimeWithTZ) String() string {
	return fmt.Sprintf("%s %s", dt.DateTime.String(), dt.Zone)
}

// Zoned resolves the IANA zone and returns the absolute instant.
func (dt DateTimeWithTZ) Zoned() (time.Time, error) {
	loc, err := time.LoadLocation(dt.Zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown timezone %q: %w", dt.Zone, err)
	}
	d, t := dt.DateTime.Date, dt.DateTime.Time
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), int(t.Hour), int(t.Minute), int(t.Second), int(t.Nanosecond), loc), nil
}
