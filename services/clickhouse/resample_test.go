package clickhouse

import (
	"testing"
	"time"

	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

func minuteSpine(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Minute)
	}
	return out
}

func TestResampleAggregatesBuckets(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	w := marketdata.NewWindow()
	for i := 0; i < 10; i++ {
		c := float64(i + 1)
		w.AppendBar(marketdata.Bar{
			Time: start.Add(time.Duration(i) * time.Minute), Ticker: "A", Type: "CE",
			Open: c, High: c, Low: c, Close: c, Volume: 1, OI: float64(i),
		})
	}

	out := resample(w, minuteSpine(start, 10), 5)
	if out.Len() != 2 {
		t.Fatalf("expected 2 buckets, got %d", out.Len())
	}
	first := out.Bar(0)
	if !first.Time.Equal(start) {
		t.Fatalf("bucket start %v, want %v", first.Time, start)
	}
	if first.Open != 1 || first.High != 5 || first.Low != 1 || first.Close != 5 {
		t.Fatalf("OHLC %v/%v/%v/%v", first.Open, first.High, first.Low, first.Close)
	}
	if first.Volume != 5 {
		t.Fatalf("volume %v, want 5", first.Volume)
	}
	if first.OI != 4 {
		t.Fatalf("OI %v, want last value 4", first.OI)
	}
	second := out.Bar(1)
	if !second.Time.Equal(start.Add(5 * time.Minute)) {
		t.Fatalf("second bucket %v", second.Time)
	}
	if second.Open != 6 || second.Close != 10 {
		t.Fatalf("second OHLC open=%v close=%v", second.Open, second.Close)
	}
}

func TestResampleForwardFillsAgainstSpine(t *testing.T) {
	// a thin contract trades twice; the underlying's spine keeps it alive
	start := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	w := marketdata.NewWindow()
	w.AppendBar(marketdata.Bar{Time: start, Ticker: "B", Type: "CE", Open: 100, High: 100, Low: 100, Close: 100, Volume: 1})
	w.AppendBar(marketdata.Bar{Time: start.Add(7 * time.Minute), Ticker: "B", Type: "CE", Open: 200, High: 200, Low: 200, Close: 200, Volume: 1})

	out := resample(w, minuteSpine(start, 10), 5)
	if out.Len() != 2 {
		t.Fatalf("expected 2 buckets, got %d", out.Len())
	}
	second := out.Bar(1)
	if second.Open != 100 {
		t.Fatalf("second bucket must open on the filled price, got %v", second.Open)
	}
	if second.High != 200 || second.Close != 200 {
		t.Fatalf("second bucket high=%v close=%v", second.High, second.Close)
	}
}

func TestResampleSkipsSpineBeforeFirstBar(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	w := marketdata.NewWindow()
	w.AppendBar(marketdata.Bar{Time: start.Add(6 * time.Minute), Ticker: "C", Type: "CE", Open: 50, High: 50, Low: 50, Close: 50})

	out := resample(w, minuteSpine(start, 10), 5)
	if out.Len() != 1 {
		t.Fatalf("expected 1 bucket, got %d", out.Len())
	}
	if want := start.Add(5 * time.Minute); !out.Bar(0).Time.Equal(want) {
		t.Fatalf("bucket %v, want %v", out.Bar(0).Time, want)
	}
}

func TestResampleOneMinutePassthrough(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	w := marketdata.NewWindow()
	w.AppendBar(marketdata.Bar{Time: start, Ticker: "A", Close: 1})
	if got := resample(w, minuteSpine(start, 1), 1); got != w {
		t.Fatal("minutes=1 must pass the window through")
	}
}

func TestBucketStartAnchorsAtMidnight(t *testing.T) {
	ts := time.Date(2024, 1, 2, 9, 17, 0, 0, time.UTC)
	want := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	if got := bucketStart(ts, 5); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	// 25-minute frames do not divide the hour; anchoring at midnight keeps
	// buckets aligned with day boundaries
	ts = time.Date(2024, 1, 2, 1, 10, 0, 0, time.UTC)
	want = time.Date(2024, 1, 2, 0, 50, 0, 0, time.UTC)
	if got := bucketStart(ts, 25); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
