package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Helambe-vaibhav/BACKTest/services/indicators"
	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

// legRunner simulates one leg: Seeking -> Entered -> Seeking until the
// clock passes the horizon. Every iteration strictly advances the clock,
// either by a skipped candidate bar or by a completed trade's exit time.
type legRunner struct {
	params runParams
	specs  []IndicatorSpec
	leg    LegConfig
	store  DataSource
	log    *zap.Logger
	events *EventLog

	entry []Expr
	exit  []Expr
}

func newLegRunner(params runParams, specs []IndicatorSpec, leg LegConfig, store DataSource, log *zap.Logger) (*legRunner, error) {
	r := &legRunner{
		params: params,
		specs:  specs,
		leg:    leg,
		store:  store,
		log:    log.With(zap.String("leg", leg.Name)),
		events: &EventLog{},
	}
	for _, src := range leg.EntryConditions {
		e, err := Parse(src)
		if err != nil {
			return nil, configErrf("leg %s: condition %q: %v", leg.Name, src, err)
		}
		r.entry = append(r.entry, e)
	}
	for _, src := range leg.ExitConditions {
		e, err := Parse(src)
		if err != nil {
			return nil, configErrf("leg %s: condition %q: %v", leg.Name, src, err)
		}
		r.exit = append(r.exit, e)
	}
	return r, nil
}

// run drives the state machine over the configured horizon. truncated
// reports a deadline expiry: the trades collected so far are still valid,
// the overall result just becomes partial.
func (r *legRunner) run(ctx context.Context) (trades []TradeRecord, truncated bool, err error) {
	clock := atClock(r.params.from, r.params.entrySec)
	horizon := atClock(r.params.to, r.params.exitSec)

	for clock.Before(horizon) {
		if ctx.Err() != nil {
			r.log.Warn("leg deadline expired, truncating book",
				zap.Time("clock", clock), zap.Int("trades", len(trades)))
			r.events.Append(Event{Ts: clock, Type: EventLegTruncated, Leg: r.leg.Name})
			return trades, true, nil
		}

		next, ok, cerr := nextCandidate(ctx, r.store, clock, r.params.timeframe, r.params.entrySec, r.params.exitSec)
		if cerr != nil {
			return trades, false, cerr
		}
		if !ok || !next.Before(horizon) {
			break
		}
		clock = next

		rec, entered, serr := r.attemptCycle(ctx, clock)
		if serr != nil {
			return trades, false, serr
		}
		if !entered {
			continue
		}
		trades = append(trades, rec)
		clock = rec.ExitTime
	}
	return trades, false, nil
}

// attemptCycle runs one Seeking iteration at the candidate instant. A false
// return is a recoverable skip (data gap, unresolved strike, entry not
// confirmed); the caller advances the clock and stays Seeking.
func (r *legRunner) attemptCycle(ctx context.Context, candidate time.Time) (TradeRecord, bool, error) {
	chain, err := r.fetchChain(ctx, candidate)
	if err != nil {
		return TradeRecord{}, false, fmt.Errorf("leg %s: chain snapshot at %s: %w", r.leg.Name, candidate, err)
	}
	contract, ok := SelectStrike(r.leg.Strike, chain)
	if !ok {
		return TradeRecord{}, false, nil
	}

	hist, err := r.fetchHistory(ctx, candidate, contract.Ticker)
	if err != nil {
		return TradeRecord{}, false, fmt.Errorf("leg %s: history for %s: %w", r.leg.Name, contract.Ticker, err)
	}
	if hist.Len() < r.params.maxLookback {
		return TradeRecord{}, false, nil
	}
	if err := r.applyIndicators(hist); err != nil {
		return TradeRecord{}, false, fmt.Errorf("leg %s: %w", r.leg.Name, err)
	}

	pre, post := hist.SplitAt(candidate)
	if pre.Empty() || post.Empty() {
		return TradeRecord{}, false, nil
	}

	entryExprs, err := resolveAll(r.entry, hist)
	if err != nil {
		return TradeRecord{}, false, fmt.Errorf("leg %s: entry conditions: %w", r.leg.Name, err)
	}
	confirmed, err := EvalLast(entryExprs, pre)
	if err != nil {
		return TradeRecord{}, false, fmt.Errorf("leg %s: entry conditions: %w", r.leg.Name, err)
	}
	if !confirmed {
		return TradeRecord{}, false, nil
	}

	rec, err := r.openAndResolve(candidate, pre, post)
	if err != nil {
		return TradeRecord{}, false, err
	}
	return rec, true, nil
}

// openAndResolve transitions Seeking -> Entered and resolves the exit over
// the post-entry window with the fixed reason priority.
func (r *legRunner) openAndResolve(candidate time.Time, pre, post *marketdata.Window) (TradeRecord, error) {
	last := pre.Len() - 1
	entryPrice := pre.Float(marketdata.ColClose, last)
	if math.IsNaN(entryPrice) {
		return TradeRecord{}, fmt.Errorf("leg %s: entry close missing at %s", r.leg.Name, candidate)
	}
	ticker := pre.Tickers[last]

	var target, stoploss float64
	if r.leg.Direction == DirectionBuy {
		target = entryPrice + r.leg.TargetPoints
		stoploss = entryPrice - r.leg.StoplossPoints
	} else {
		target = entryPrice - r.leg.TargetPoints
		stoploss = entryPrice + r.leg.StoplossPoints
	}
	r.events.Append(Event{Ts: candidate, Type: EventEntry, Leg: r.leg.Name, Ticker: ticker})

	exitExprs, err := resolveAll(r.exit, post)
	if err != nil {
		return TradeRecord{}, fmt.Errorf("leg %s: exit conditions: %w", r.leg.Name, err)
	}
	exitSignal, err := EvalBulk(exitExprs, post)
	if err != nil {
		return TradeRecord{}, fmt.Errorf("leg %s: exit conditions: %w", r.leg.Name, err)
	}

	for i := 0; i < post.Len(); i++ {
		bar := post.Bar(i)
		var stopHit, targetHit bool
		if r.leg.Direction == DirectionBuy {
			targetHit = bar.High >= target
			stopHit = bar.Low <= stoploss
		} else {
			targetHit = bar.Low <= target
			stopHit = bar.High >= stoploss
		}
		dayEnd := secondsOfDay(bar.Time) == r.params.exitSec

		var reason ExitReason
		var exitPrice float64
		switch {
		case stopHit:
			reason, exitPrice = ExitStoploss, stoploss
		case targetHit:
			reason, exitPrice = ExitTarget, target
		case exitSignal[i]:
			reason, exitPrice = ExitCondition, bar.Close
		case dayEnd:
			reason, exitPrice = ExitDayEnd, bar.Close
		default:
			continue
		}
		r.events.Append(Event{Ts: bar.Time, Type: exitEventType(reason), Leg: r.leg.Name, Ticker: ticker})
		return TradeRecord{
			LegName:    r.leg.Name,
			Direction:  r.leg.Direction,
			Ticker:     ticker,
			EntryTime:  candidate,
			EntryPrice: entryPrice,
			Target:     target,
			Stoploss:   stoploss,
			ExitTime:   bar.Time,
			ExitPrice:  exitPrice,
			ExitReason: reason,
			Lots:       r.leg.Lots,
		}, nil
	}
	return TradeRecord{}, fmt.Errorf("leg %s: trade entered at %s: %w", r.leg.Name, candidate, ErrExitUnresolved)
}

func (r *legRunner) fetchChain(ctx context.Context, instant time.Time) (*marketdata.Window, error) {
	startDays := r.params.expiryEntryDays
	endDays := r.params.expiryExitDays
	cond := marketdata.Conditions{
		Instant:               &instant,
		Underlying:            r.leg.Underlying,
		Type:                  r.leg.OptionType,
		StartDaysBeforeExpiry: &startDays,
		EndDaysBeforeExpiry:   &endDays,
	}
	return r.store.FetchOptionsData(ctx, cond, 1)
}

func (r *legRunner) fetchHistory(ctx context.Context, candidate time.Time, ticker string) (*marketdata.Window, error) {
	// size the fetch to the maximum indicator lookback, in whole sessions
	days := r.params.maxLookback / (sessionMinutes / r.params.timeframe)
	start := candidate.AddDate(0, 0, -(days + 1))
	cond := marketdata.Conditions{
		FromDate: &start,
		Ticker:   ticker,
	}
	return r.store.FetchOptionsData(ctx, cond, r.params.timeframe)
}

func (r *legRunner) applyIndicators(w *marketdata.Window) error {
	for _, spec := range r.specs {
		source := spec.Source
		if source == "" {
			source = marketdata.ColClose
		}
		src, ok := w.Col(source)
		if !ok {
			return &TranslationError{Name: source}
		}
		series, err := indicators.Compute(spec.Kind, src, indicators.Params{
			Window: spec.Window, Offset: spec.Offset, Sigma: spec.Sigma,
		})
		if err != nil {
			return err
		}
		if err := w.SetCol(spec.Name, series); err != nil {
			return err
		}
	}
	return nil
}

func resolveAll(exprs []Expr, w *marketdata.Window) ([]Expr, error) {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		resolved, err := Resolve(e, w.HasCol)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

func exitEventType(r ExitReason) EventType {
	switch r {
	case ExitStoploss:
		return EventStopHit
	case ExitTarget:
		return EventTargetHit
	case ExitCondition:
		return EventConditionExit
	default:
		return EventDayEnd
	}
}
