// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dates implements calendar dates and the timestamp formats emitted by
// the quote services.
package dates

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stockparfait/cnquotes/message"
	"github.com/stockparfait/errors"
)

// Timestamp layouts accepted by ParseTime, most specific first.
var layouts = []string{
	"2006-01-02 15:04:05.999",
	"2006-01-02T15:04:05.999Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a date optionally followed by a time of day. The result is
// in UTC.
func ParseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range layouts {
		var tm time.Time
		if tm, err = time.Parse(layout, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, errors.Annotate(err, "unrecognized timestamp: '%s'", s)
}

// Date records a calendar date as year, month and day.
type Date struct {
	YearVal  uint16
	MonthVal uint8
	DayVal   uint8
}

var _ json.Marshaler = Date{}
var _ json.Unmarshaler = &Date{}
var _ message.Message = &Date{}

// NewDate is the constructor for Date.
func NewDate(year uint16, month, day uint8) Date {
	return Date{year, month, day}
}

// NewDateFromTime creates a Date from the calendar date of t in its own
// location.
func NewDateFromTime(t time.Time) Date {
	return Date{
		YearVal:  uint16(t.Year()),
		MonthVal: uint8(t.Month()),
		DayVal:   uint8(t.Day()),
	}
}

// NewDateFromString creates a Date from a string; a time of day, if present,
// is dropped.
func NewDateFromString(s string) (Date, error) {
	t, err := ParseTime(s)
	if err != nil {
		return Date{}, errors.Annotate(err, "failed to parse a Date string: '%s'", s)
	}
	return NewDateFromTime(t), nil
}

// DateInShanghai returns the current date at the Chinese exchanges.
func DateInShanghai(now time.Time) Date {
	tz := "Asia/Shanghai"
	location, err := time.LoadLocation(tz)
	if err != nil {
		// China has no DST, a fixed offset is exact.
		location = time.FixedZone("CST", 8*60*60)
	}
	return NewDateFromTime(now.In(location))
}

func (d Date) Year() uint16 { return d.YearVal }
func (d Date) Month() uint8 { return d.MonthVal }
func (d Date) Day() uint8   { return d.DayVal }

// String representation of the value, as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), d.Month(), d.Day())
}

// IsZero checks whether the date has a zero value.
func (d Date) IsZero() bool {
	return d.Year() == 0 && d.Month() == 0 && d.Day() == 0
}

// ToTime converts Date to the midnight Time in UTC.
func (d Date) ToTime() time.Time {
	return time.Date(int(d.Year()), time.Month(d.Month()), int(d.Day()), 0, 0, 0, 0, time.UTC)
}

// Before compares two dates for strict inequality, d < d2.
func (d Date) Before(d2 Date) bool {
	return d.ToTime().Before(d2.ToTime())
}

// After compares two dates for strict inequality, d > d2.
func (d Date) After(d2 Date) bool {
	return d2.Before(d)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Annotate(err, "Date JSON must be a string")
	}
	date, err := NewDateFromString(s)
	if err != nil {
		return errors.Annotate(err, "failed to parse Date string")
	}
	*d = date
	return nil
}

// InitMessage implements message.Message. An empty string or {} yields the
// zero Date.
func (d *Date) InitMessage(js any) error {
	switch s := js.(type) {
	case string:
		if s == "" {
			*d = Date{}
			return nil
		}
		date, err := NewDateFromString(s)
		if err != nil {
			return errors.Annotate(err, "failed to parse Date string")
		}
		*d = date
	case map[string]any:
		*d = Date{}
	default:
		return errors.Reason("expected a string or {}, got %v", js)
	}
	return nil
}

// Range is an inclusive interval of timestamps.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewDayRange creates the range from the start of the start date (00:00) to
// the last minute of the end date (23:59), both inclusive.
func NewDayRange(start, end string) (Range, error) {
	s, err := ParseTime(start + " 00:00")
	if err != nil {
		return Range{}, errors.Annotate(err, "invalid start date")
	}
	e, err := ParseTime(end + " 23:59")
	if err != nil {
		return Range{}, errors.Annotate(err, "invalid end date")
	}
	return Range{Start: s, End: e}, nil
}

// Contains checks whether t is within the range, bounds included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
