package clickhouse

import (
	"strings"

	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

// buildWhere translates a Conditions value into a WHERE clause with
// positional arguments. Unset fields contribute nothing.
func buildWhere(c marketdata.Conditions) (string, []any) {
	var parts []string
	var args []any
	add := func(clause string, vals ...any) {
		parts = append(parts, clause)
		args = append(args, vals...)
	}

	if c.Instant != nil {
		add("DateTime = ?", *c.Instant)
	}
	if c.Expiry != nil {
		add("Expiry = ?", *c.Expiry)
	}
	if c.Type != "" {
		add("Type = ?", c.Type)
	}
	if c.Strike != nil {
		add("Strike = ?", *c.Strike)
	}
	if c.Ticker != "" {
		add("Ticker = ?", c.Ticker)
	}
	if c.Underlying != "" {
		add("Underlying = ?", c.Underlying)
	}
	if c.FromDate != nil {
		add("DateTime >= ?", *c.FromDate)
	}
	if c.ToDate != nil {
		add("DateTime <= ?", *c.ToDate)
	}
	if c.Date != nil {
		add("toDate(DateTime) = toDate(?)", *c.Date)
	}
	if c.Weekday != nil {
		// toDayOfWeek is 1=Monday..7=Sunday; callers use 0=Sunday
		add("toDayOfWeek(DateTime) % 7 = ?", *c.Weekday)
	}
	if c.DaysBeforeExpiry != nil {
		add("dateDiff('day', DateTime, Expiry) = ?", *c.DaysBeforeExpiry)
	}
	if c.StartDaysBeforeExpiry != nil {
		add("dateDiff('day', DateTime, Expiry) <= ?", *c.StartDaysBeforeExpiry)
	}
	if c.EndDaysBeforeExpiry != nil {
		add("dateDiff('day', DateTime, Expiry) >= ?", *c.EndDaysBeforeExpiry)
	}
	if c.DayStartTime != "" {
		add("formatDateTime(DateTime, '%T') >= ?", c.DayStartTime)
	}
	if c.DayEndTime != "" {
		add("formatDateTime(DateTime, '%T') <= ?", c.DayEndTime)
	}
	if c.CloseLessThan != nil {
		add("Close < ?", *c.CloseLessThan)
	}
	if c.CloseGreaterThan != nil {
		add("Close > ?", *c.CloseGreaterThan)
	}
	if len(c.Tickers) > 0 {
		add("Ticker IN ("+placeholders(len(c.Tickers))+")", anySlice(c.Tickers)...)
	}
	if len(c.Strikes) > 0 {
		add("Strike IN ("+placeholders(len(c.Strikes))+")", anySlice(c.Strikes)...)
	}
	if len(c.Dates) > 0 {
		clause := make([]string, len(c.Dates))
		for i := range c.Dates {
			clause[i] = "toDate(?)"
		}
		add("toDate(DateTime) IN ("+strings.Join(clause, ",")+")", anySlice(c.Dates)...)
	}
	if len(c.Weekdays) > 0 {
		add("toDayOfWeek(DateTime) % 7 IN ("+placeholders(len(c.Weekdays))+")", anySlice(c.Weekdays)...)
	}

	if len(parts) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(parts, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
