package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

// fakeStore serves canned windows: chain snapshots for Instant queries,
// contract history otherwise.
type fakeStore struct {
	chain func(cond marketdata.Conditions) (*marketdata.Window, error)
	hist  func(cond marketdata.Conditions) (*marketdata.Window, error)
}

func (f *fakeStore) IsTradingDate(_ context.Context, day time.Time) (bool, error) {
	wd := day.Weekday()
	return wd != time.Saturday && wd != time.Sunday, nil
}

func (f *fakeStore) FetchOptionsData(_ context.Context, cond marketdata.Conditions, _ int) (*marketdata.Window, error) {
	if cond.Instant != nil {
		return f.chain(cond)
	}
	return f.hist(cond)
}

type ohlc struct {
	hh, mm     int
	o, h, l, c float64
}

func histWindow(ticker string, bars []ohlc) *marketdata.Window {
	w := marketdata.NewWindow()
	for _, b := range bars {
		w.AppendBar(marketdata.Bar{
			Time:   time.Date(2024, 1, 2, b.hh, b.mm, 0, 0, time.UTC),
			Ticker: ticker, Type: "CE", Strike: 21000,
			Open: b.o, High: b.h, Low: b.l, Close: b.c, Volume: 100, OI: 100,
		})
	}
	return w
}

const testTicker = "NIFTY24JAN21000CE"

// chainAt serves a one-contract chain only at the given candidate instant.
func chainAt(hh, mm int, premium float64) func(marketdata.Conditions) (*marketdata.Window, error) {
	at := time.Date(2024, 1, 2, hh, mm, 0, 0, time.UTC)
	return func(cond marketdata.Conditions) (*marketdata.Window, error) {
		w := marketdata.NewWindow()
		if cond.Instant.Equal(at) {
			w.AppendBar(marketdata.Bar{
				Time: at, Ticker: testTicker, Type: cond.Type, Strike: 21000,
				Open: premium, High: premium, Low: premium, Close: premium,
			})
		}
		return w, nil
	}
}

func oneDayConfig() StrategyConfig {
	return StrategyConfig{
		TimeFrame: 5,
		EntryTime: "09:15:00",
		ExitTime:  "15:15:00",
		FromDate:  "2024-01-02",
		ToDate:    "2024-01-02",
		Legs: []LegConfig{{
			Name:            "long_call",
			Underlying:      "NIFTY",
			OptionType:      OptionCall,
			Strike:          StrikeRule{ClosestPremium: fp(100)},
			Direction:       DirectionBuy,
			Lots:            50,
			TargetPoints:    10,
			StoplossPoints:  10,
			EntryConditions: []string{"Close > 0"},
			ExitConditions:  []string{"Close < 0"},
		}},
	}
}

func TestRunDayEndExit(t *testing.T) {
	// premium path 100 -> 108 -> 95 with 10-point levels hits nothing,
	// so the day-end row closes the trade at 95
	store := &fakeStore{
		chain: chainAt(9, 20, 100),
		hist: func(marketdata.Conditions) (*marketdata.Window, error) {
			return histWindow(testTicker, []ohlc{
				{9, 15, 100, 100, 100, 100},
				{9, 20, 100, 100, 100, 100},
				{9, 25, 108, 108, 108, 108},
				{15, 15, 95, 95, 95, 95},
			}), nil
		},
	}

	book, err := New(store, nil).Run(context.Background(), oneDayConfig())
	if err != nil {
		t.Fatal(err)
	}
	if book.Partial {
		t.Fatal("unexpected partial book")
	}
	if len(book.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(book.Trades))
	}
	tr := book.Trades[0]
	if tr.ExitReason != ExitDayEnd {
		t.Fatalf("expected DayEnd exit, got %s", tr.ExitReason)
	}
	if tr.EntryPrice != 100 || tr.ExitPrice != 95 {
		t.Fatalf("entry/exit = %v/%v, want 100/95", tr.EntryPrice, tr.ExitPrice)
	}
	if want := decimal.NewFromInt(-250); !tr.Profit.Equal(want) {
		t.Fatalf("profit %s, want %s", tr.Profit, want)
	}
	wantExit := time.Date(2024, 1, 2, 15, 15, 0, 0, time.UTC)
	if !tr.ExitTime.Equal(wantExit) {
		t.Fatalf("exit time %v, want %v", tr.ExitTime, wantExit)
	}
}

func TestRunStoplossBeatsTargetOnSameRow(t *testing.T) {
	store := &fakeStore{
		chain: chainAt(9, 20, 100),
		hist: func(marketdata.Conditions) (*marketdata.Window, error) {
			return histWindow(testTicker, []ohlc{
				{9, 15, 100, 100, 100, 100},
				{9, 20, 100, 100, 100, 100},
				{9, 25, 100, 111, 89, 95}, // both levels touched
				{15, 15, 95, 95, 95, 95},
			}), nil
		},
	}

	book, err := New(store, nil).Run(context.Background(), oneDayConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(book.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(book.Trades))
	}
	tr := book.Trades[0]
	if tr.ExitReason != ExitStoploss {
		t.Fatalf("expected Stoploss to win the row, got %s", tr.ExitReason)
	}
	if tr.ExitPrice != 90 {
		t.Fatalf("stoploss fills at the level, got %v", tr.ExitPrice)
	}
	wantExit := time.Date(2024, 1, 2, 9, 25, 0, 0, time.UTC)
	if !tr.ExitTime.Equal(wantExit) {
		t.Fatalf("exit time %v, want %v", tr.ExitTime, wantExit)
	}
}

func TestRunSellTargetFillsAtLevel(t *testing.T) {
	store := &fakeStore{
		chain: chainAt(9, 20, 100),
		hist: func(marketdata.Conditions) (*marketdata.Window, error) {
			return histWindow(testTicker, []ohlc{
				{9, 15, 100, 100, 100, 100},
				{9, 20, 100, 100, 100, 100},
				{9, 25, 95, 96, 88, 92}, // low crosses the 90 target
				{15, 15, 92, 92, 92, 92},
			}), nil
		},
	}

	cfg := oneDayConfig()
	cfg.Legs[0].Direction = DirectionSell
	book, err := New(store, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(book.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(book.Trades))
	}
	tr := book.Trades[0]
	if tr.ExitReason != ExitTarget {
		t.Fatalf("expected Target exit, got %s", tr.ExitReason)
	}
	if tr.ExitPrice != 90 {
		t.Fatalf("target fills at the level, got %v", tr.ExitPrice)
	}
	if want := decimal.NewFromInt(500); !tr.Profit.Equal(want) {
		t.Fatalf("profit %s, want %s", tr.Profit, want)
	}
}

func TestRunExitConditionBeforeDayEnd(t *testing.T) {
	store := &fakeStore{
		chain: chainAt(9, 20, 100),
		hist: func(marketdata.Conditions) (*marketdata.Window, error) {
			return histWindow(testTicker, []ohlc{
				{9, 15, 100, 100, 100, 100},
				{9, 20, 100, 100, 100, 100},
				{9, 25, 98, 98, 98, 98},
				{9, 30, 96, 96, 96, 96},
				{15, 15, 95, 95, 95, 95},
			}), nil
		},
	}

	cfg := oneDayConfig()
	cfg.Legs[0].ExitConditions = []string{"Close < 97"}
	book, err := New(store, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(book.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(book.Trades))
	}
	tr := book.Trades[0]
	if tr.ExitReason != ExitCondition {
		t.Fatalf("expected ExitCondition, got %s", tr.ExitReason)
	}
	// condition exits fill at the row close, not a level
	if tr.ExitPrice != 96 {
		t.Fatalf("exit price %v, want 96", tr.ExitPrice)
	}
	wantExit := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	if !tr.ExitTime.Equal(wantExit) {
		t.Fatalf("exit time %v, want %v", tr.ExitTime, wantExit)
	}
}

func TestRunEntryNeverConfirmed(t *testing.T) {
	store := &fakeStore{
		chain: chainAt(9, 20, 100),
		hist: func(marketdata.Conditions) (*marketdata.Window, error) {
			return histWindow(testTicker, []ohlc{
				{9, 15, 100, 100, 100, 100},
				{9, 20, 100, 100, 100, 100},
				{15, 15, 95, 95, 95, 95},
			}), nil
		},
	}

	cfg := oneDayConfig()
	cfg.Legs[0].EntryConditions = []string{"Close > 1000"}
	book, err := New(store, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(book.Trades) != 0 || book.Partial {
		t.Fatalf("expected clean empty book, got %d trades partial=%v", len(book.Trades), book.Partial)
	}
}

func TestRunSkipsShortHistory(t *testing.T) {
	store := &fakeStore{
		chain: chainAt(9, 20, 100),
		hist: func(marketdata.Conditions) (*marketdata.Window, error) {
			return histWindow(testTicker, []ohlc{
				{9, 15, 100, 100, 100, 100},
				{9, 20, 100, 100, 100, 100},
			}), nil
		},
	}

	cfg := oneDayConfig()
	cfg.Indicators = []IndicatorSpec{{Name: "SMA_20", Kind: "sma", Window: 20}}
	book, err := New(store, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(book.Trades) != 0 {
		t.Fatalf("short history must be skipped, got %d trades", len(book.Trades))
	}
}

func TestRunLegFailureDoesNotAbortSiblings(t *testing.T) {
	store := &fakeStore{
		chain: func(cond marketdata.Conditions) (*marketdata.Window, error) {
			if cond.Type == OptionPut {
				return nil, errors.New("store unavailable")
			}
			return chainAt(9, 20, 100)(cond)
		},
		hist: func(marketdata.Conditions) (*marketdata.Window, error) {
			return histWindow(testTicker, []ohlc{
				{9, 15, 100, 100, 100, 100},
				{9, 20, 100, 100, 100, 100},
				{15, 15, 95, 95, 95, 95},
			}), nil
		},
	}

	cfg := oneDayConfig()
	put := cfg.Legs[0]
	put.Name = "long_put"
	put.OptionType = OptionPut
	cfg.Legs = append(cfg.Legs, put)

	book, err := New(store, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !book.Partial {
		t.Fatal("expected partial book")
	}
	if len(book.LegErrors) != 1 || book.LegErrors[0].Leg != "long_put" {
		t.Fatalf("expected long_put failure, got %+v", book.LegErrors)
	}
	if len(book.Trades) != 1 || book.Trades[0].LegName != "long_call" {
		t.Fatalf("surviving leg trades missing: %+v", book.Trades)
	}
}

func TestRunUnresolvedExitFailsLegOnly(t *testing.T) {
	// the call leg enters but its post-entry window has no level touch,
	// no exit signal and no bar at the configured exit time, so the trade
	// cannot close; the put leg still runs to its day-end exit
	const putTicker = "NIFTY24JAN21000PE"
	store := &fakeStore{
		chain: func(cond marketdata.Conditions) (*marketdata.Window, error) {
			at := time.Date(2024, 1, 2, 9, 20, 0, 0, time.UTC)
			w := marketdata.NewWindow()
			if cond.Instant.Equal(at) {
				ticker := testTicker
				if cond.Type == OptionPut {
					ticker = putTicker
				}
				w.AppendBar(marketdata.Bar{
					Time: at, Ticker: ticker, Type: cond.Type, Strike: 21000,
					Open: 100, High: 100, Low: 100, Close: 100,
				})
			}
			return w, nil
		},
		hist: func(cond marketdata.Conditions) (*marketdata.Window, error) {
			if cond.Ticker == putTicker {
				return histWindow(putTicker, []ohlc{
					{9, 15, 100, 100, 100, 100},
					{9, 20, 100, 100, 100, 100},
					{15, 15, 95, 95, 95, 95},
				}), nil
			}
			return histWindow(testTicker, []ohlc{
				{9, 15, 100, 100, 100, 100},
				{9, 20, 100, 100, 100, 100},
				{9, 25, 102, 103, 101, 102}, // inside the 10-point levels
			}), nil
		},
	}

	cfg := oneDayConfig()
	put := cfg.Legs[0]
	put.Name = "long_put"
	put.OptionType = OptionPut
	cfg.Legs = append(cfg.Legs, put)

	book, err := New(store, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !book.Partial {
		t.Fatal("expected partial book")
	}
	if len(book.LegErrors) != 1 || book.LegErrors[0].Leg != "long_call" {
		t.Fatalf("expected long_call failure, got %+v", book.LegErrors)
	}
	if !strings.Contains(book.LegErrors[0].Err, ErrExitUnresolved.Error()) {
		t.Fatalf("leg error %q does not name the unresolved exit", book.LegErrors[0].Err)
	}
	if len(book.Trades) != 1 || book.Trades[0].LegName != "long_put" {
		t.Fatalf("surviving leg trades missing: %+v", book.Trades)
	}
	if book.Trades[0].ExitReason != ExitDayEnd {
		t.Fatalf("expected DayEnd exit on the put, got %s", book.Trades[0].ExitReason)
	}
}

func TestRunCancelledContextTruncates(t *testing.T) {
	store := &fakeStore{
		chain: chainAt(9, 20, 100),
		hist: func(marketdata.Conditions) (*marketdata.Window, error) {
			return histWindow(testTicker, nil), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	book, err := New(store, nil).Run(ctx, oneDayConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !book.Partial {
		t.Fatal("expected truncated run to mark the book partial")
	}
	if len(book.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(book.Trades))
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := oneDayConfig()
	cfg.Legs[0].ExitConditions = nil
	_, err := New(&fakeStore{}, nil).Run(context.Background(), cfg)
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestRunManifestIsStamped(t *testing.T) {
	store := &fakeStore{
		chain: chainAt(9, 20, 100),
		hist: func(marketdata.Conditions) (*marketdata.Window, error) {
			return histWindow(testTicker, nil), nil
		},
	}
	cfg := oneDayConfig()
	book, err := New(store, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	m := book.Manifest
	if m.RunID == "" || m.ConfigHash == "" || m.EngineVersion != EngineVersion {
		t.Fatalf("incomplete manifest: %+v", m)
	}
	if len(m.Legs) != 1 || m.Legs[0] != "long_call" {
		t.Fatalf("manifest legs %v", m.Legs)
	}

	other, err := New(store, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if other.Manifest.ConfigHash != m.ConfigHash {
		t.Fatal("same config must hash identically")
	}
	if other.Manifest.RunID == m.RunID {
		t.Fatal("runs must get distinct ids")
	}
}
