package clickhouse

import (
	"sort"
	"time"

	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

// resample aggregates 1-minute bars into minutes-minute bars per contract.
// Each contract is first forward-filled against the underlying's trading
// spine so thinly traded strikes keep a bar on every reference instant,
// then bucketed with Open=first, High=max, Low=min, Close=last, Volume=sum,
// OI=last. Buckets align to the start of each calendar day.
func resample(w *marketdata.Window, spine []time.Time, minutes int) *marketdata.Window {
	if minutes <= 1 || w.Empty() || len(spine) == 0 {
		return w
	}

	groups := make(map[string][]marketdata.Bar)
	var order []string
	for i := 0; i < w.Len(); i++ {
		b := w.Bar(i)
		if _, seen := groups[b.Ticker]; !seen {
			order = append(order, b.Ticker)
		}
		groups[b.Ticker] = append(groups[b.Ticker], b)
	}
	sort.Strings(order)

	out := marketdata.NewWindow()
	var merged []marketdata.Bar
	for _, ticker := range order {
		merged = append(merged, resampleContract(groups[ticker], spine, minutes)...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].Time.Equal(merged[j].Time) {
			return merged[i].Time.Before(merged[j].Time)
		}
		if merged[i].Type != merged[j].Type {
			return merged[i].Type < merged[j].Type
		}
		return merged[i].Open < merged[j].Open
	})
	for _, b := range merged {
		out.AppendBar(b)
	}
	return out
}

func resampleContract(bars []marketdata.Bar, spine []time.Time, minutes int) []marketdata.Bar {
	var out []marketdata.Bar
	var agg marketdata.Bar
	inBucket := false
	ri := 0
	var cur *marketdata.Bar

	for _, ts := range spine {
		for ri < len(bars) && !bars[ri].Time.After(ts) {
			cur = &bars[ri]
			ri++
		}
		if cur == nil {
			// spine instants before the contract's first bar stay empty
			continue
		}
		bs := bucketStart(ts, minutes)
		if !inBucket || !agg.Time.Equal(bs) {
			if inBucket {
				out = append(out, agg)
			}
			agg = *cur
			agg.Time = bs
			inBucket = true
			continue
		}
		if cur.High > agg.High {
			agg.High = cur.High
		}
		if cur.Low < agg.Low {
			agg.Low = cur.Low
		}
		agg.Close = cur.Close
		agg.Volume += cur.Volume
		agg.OI = cur.OI
	}
	if inBucket {
		out = append(out, agg)
	}
	return out
}

// bucketStart floors t to a minutes-wide bucket anchored at midnight.
func bucketStart(t time.Time, minutes int) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	mins := int(t.Sub(day).Minutes())
	return day.Add(time.Duration(mins/minutes*minutes) * time.Minute)
}
