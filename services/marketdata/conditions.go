package marketdata

import "time"

// Conditions is the filter set accepted by the options store. Nil pointer
// and empty-string/empty-slice fields are not applied.
type Conditions struct {
	// Exact-match filters.
	Instant *time.Time // bar timestamp
	Expiry  *time.Time
	Type    string
	Strike  *float64
	Ticker  string

	// Underlying narrows a chain query to one index/stock.
	Underlying string

	// Range filters on the bar timestamp.
	FromDate *time.Time
	ToDate   *time.Time

	// Derived filters.
	Date                  *time.Time // calendar date of the bar
	Weekday               *int
	DaysBeforeExpiry      *int // exactly n days before expiry
	StartDaysBeforeExpiry *int // at most n days before expiry
	EndDaysBeforeExpiry   *int // at least n days before expiry
	DayStartTime          string // "HH:MM:SS" intraday lower bound
	DayEndTime            string // "HH:MM:SS" intraday upper bound
	CloseLessThan         *float64
	CloseGreaterThan      *float64

	// Set-membership variants.
	Tickers  []string
	Strikes  []float64
	Dates    []time.Time
	Weekdays []int
}
