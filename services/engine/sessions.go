package engine

import (
	"context"
	"fmt"
	"time"
)

// Trading-day roll search is bounded so an empty calendar cannot spin the
// clock forever.
const maxDaySkip = 60

// TradingCalendar answers whether a calendar date has any trading activity.
type TradingCalendar interface {
	IsTradingDate(ctx context.Context, day time.Time) (bool, error)
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// atClock places a seconds-of-day clock value on the calendar date of d.
func atClock(d time.Time, sec int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), sec/3600, sec%3600/60, sec%60, 0, d.Location())
}

// nextCandidate advances the simulation clock one bar. When the advanced
// instant's time-of-day reaches the session exit time it rolls forward to
// the next trading day's entry time, skipping non-trading days. ok=false
// means no trading day was found within the search bound.
func nextCandidate(ctx context.Context, cal TradingCalendar, clock time.Time, timeframe, entrySec, exitSec int) (next time.Time, ok bool, err error) {
	next = clock.Add(time.Duration(timeframe) * time.Minute)
	if secondsOfDay(next) < exitSec {
		return next, true, nil
	}
	day := next
	for i := 0; i < maxDaySkip; i++ {
		day = day.AddDate(0, 0, 1)
		trading, err := cal.IsTradingDate(ctx, day)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("trading date check for %s: %w", day.Format("2006-01-02"), err)
		}
		if trading {
			return atClock(day, entrySec), true, nil
		}
	}
	return time.Time{}, false, nil
}
