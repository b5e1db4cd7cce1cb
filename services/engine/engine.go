// Package engine executes options-trading strategies over historical bar
// data. One trade state machine runs per configured leg, concurrently; the
// merged trade book is sorted by exit time and carries profit, cumulative
// profit and drawdown.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

// DataSource is the market data store the engine pulls from. Legs share it
// read-only; implementations must be safe for concurrent use.
type DataSource interface {
	TradingCalendar
	FetchOptionsData(ctx context.Context, cond marketdata.Conditions, resampleMinutes int) (*marketdata.Window, error)
}

type Engine struct {
	store DataSource
	log   *zap.Logger
}

func New(store DataSource, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log}
}

type legResult struct {
	trades    []TradeRecord
	events    []Event
	truncated bool
	err       error
}

// Run validates the configuration, simulates every leg concurrently and
// aggregates the merged trade book. Leg failures do not abort siblings:
// completed legs still aggregate and the book is marked partial.
func (e *Engine) Run(ctx context.Context, cfg StrategyConfig) (*TradeBook, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	book := &TradeBook{Manifest: newManifest(cfg)}
	e.log.Info("run started",
		zap.String("run_id", book.Manifest.RunID),
		zap.Int("legs", len(cfg.Legs)),
		zap.String("from", cfg.FromDate),
		zap.String("to", cfg.ToDate),
	)

	// build every runner before spawning any so a construction failure
	// cannot return with sibling goroutines still running
	runners := make([]*legRunner, len(cfg.Legs))
	for i, leg := range cfg.Legs {
		runner, rerr := newLegRunner(params, cfg.Indicators, leg, e.store, e.log)
		if rerr != nil {
			return nil, rerr
		}
		runners[i] = runner
	}

	results := make([]legResult, len(cfg.Legs))
	var wg sync.WaitGroup
	for i, runner := range runners {
		wg.Add(1)
		go func(i int, runner *legRunner) {
			defer wg.Done()
			legCtx := ctx
			if params.legTimeout > 0 {
				var cancel context.CancelFunc
				legCtx, cancel = context.WithTimeout(ctx, params.legTimeout)
				defer cancel()
			}
			started := time.Now()
			trades, truncated, lerr := runner.run(legCtx)
			results[i] = legResult{trades: trades, events: runner.events.Events, truncated: truncated, err: lerr}
			if lerr != nil {
				e.log.Error("leg failed", zap.String("leg", runner.leg.Name), zap.Error(lerr))
				return
			}
			e.log.Info("leg finished",
				zap.String("leg", runner.leg.Name),
				zap.Int("trades", len(trades)),
				zap.Bool("truncated", truncated),
				zap.Duration("elapsed", time.Since(started)),
			)
		}(i, runner)
	}
	wg.Wait()

	perLeg := make([][]TradeRecord, 0, len(results))
	for i, res := range results {
		if res.err != nil {
			book.Partial = true
			book.LegErrors = append(book.LegErrors, LegError{Leg: cfg.Legs[i].Name, Err: res.err.Error()})
			continue
		}
		if res.truncated {
			book.Partial = true
		}
		perLeg = append(perLeg, res.trades)
		book.Events = append(book.Events, res.events...)
	}
	book.Trades = aggregate(perLeg)

	e.log.Info("run completed",
		zap.String("run_id", book.Manifest.RunID),
		zap.Int("trades", len(book.Trades)),
		zap.Bool("partial", book.Partial),
		zap.String("total_profit", book.TotalProfit().StringFixed(2)),
	)
	return book, nil
}
