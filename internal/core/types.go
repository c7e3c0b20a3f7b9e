package core

import "time"

// DateLayout is the calendar-day format used for bar dates across the system.
const DateLayout = "2006-01-02"

// Bar represents one trading day of an instrument
type Bar struct {
	Symbol string    `json:"symbol,omitempty"`
	Time   time.Time `json:"date"` // Midnight UTC of the trading day
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume,omitempty"`
}

// Day returns the bar's calendar day formatted as YYYY-MM-DD
func (b Bar) Day() string {
	return b.Time.Format(DateLayout)
}

// IsValid checks prices are positive and open/close lie within the low-high range
func (b Bar) IsValid() bool {
	return b.Problem() == ""
}

// Problem describes why the bar is malformed, or returns "" for a valid bar
func (b Bar) Problem() string {
	switch {
	case b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0:
		return "non-positive price"
	case b.Low > b.High:
		return "low above high"
	case b.Open < b.Low || b.Open > b.High:
		return "open outside low-high range"
	case b.Close < b.Low || b.Close > b.High:
		return "close outside low-high range"
	}
	return ""
}

// TruncateDay normalizes t to midnight UTC of the same calendar day in t's location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar day
func SameDay(a, b time.Time) bool {
	return TruncateDay(a).Equal(TruncateDay(b))
}
