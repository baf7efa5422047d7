// Package gpstime converts between calendar time and GPS week / time of week.
// Calendar times are taken to be on the GPS time scale; no leap seconds are applied.
package gpstime

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Layout is the calendar format accepted by Parse.
const Layout = "2006-01-02 15:04:05"

// SecondsPerWeek is the length of a GPS week.
const SecondsPerWeek = 604800

// Epoch is the start of GPS week 0.
var Epoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// Time is a GPS week number and time of week in seconds.
type Time struct {
	Week int
	TOW  float64
}

// FromTime converts a calendar time to GPS week and time of week.
func FromTime(t time.Time) Time {
	d := t.Sub(Epoch)
	secs := d.Seconds()
	week := int(math.Floor(secs / SecondsPerWeek))
	return Time{
		Week: week,
		TOW:  secs - float64(week)*SecondsPerWeek,
	}
}

// Time converts back to a UTC calendar time.
func (g Time) Time() time.Time {
	whole, frac := math.Modf(g.TOW)
	return Epoch.
		AddDate(0, 0, 7*g.Week).
		Add(time.Duration(whole) * time.Second).
		Add(time.Duration(math.Round(frac * float64(time.Second))))
}

// Seconds returns the time elapsed since the GPS epoch in seconds.
func (g Time) Seconds() float64 {
	return float64(g.Week)*SecondsPerWeek + g.TOW
}

func (g Time) String() string {
	return fmt.Sprintf("week %d tow %.3f", g.Week, g.TOW)
}

// Parse reads a "YYYY-MM-DD hh:mm:ss" calendar time.
func Parse(s string) (Time, error) {
	t, err := time.ParseInLocation(Layout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Time{}, fmt.Errorf("parsing gps time %q: %w", s, err)
	}
	return FromTime(t), nil
}

// JulianDate returns the Julian date of t.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	y, m := year, int(month)
	if m <= 2 {
		y--
		m += 12
	}
	a := y / 100
	b := 2 - a + a/4
	dayFrac := float64(t.Hour())/24 + float64(t.Minute())/1440 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/86400
	return math.Floor(365.25*float64(y+4716)) + math.Floor(30.6001*float64(m+1)) +
		float64(day) + float64(b) - 1524.5 + dayFrac
}
