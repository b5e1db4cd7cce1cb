// Package arrowpipeline serializes trade books to Apache Arrow IPC for
// downstream analytics tooling.
package arrowpipeline

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"go.uber.org/zap"

	"github.com/Helambe-vaibhav/BACKTest/services/engine"
)

// Pipeline converts aggregated trade books into Arrow record batches.
type Pipeline struct {
	pool memory.Allocator
	log  *zap.Logger
}

func NewPipeline(log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{pool: memory.NewGoAllocator(), log: log}
}

// tradeSchema is the column layout of an exported trade book. Timestamps
// are epoch milliseconds, money columns are float64.
func tradeSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "leg", Type: arrow.BinaryTypes.String},
		{Name: "ticker", Type: arrow.BinaryTypes.String},
		{Name: "direction", Type: arrow.BinaryTypes.String},
		{Name: "entry_time", Type: arrow.PrimitiveTypes.Int64},
		{Name: "exit_time", Type: arrow.PrimitiveTypes.Int64},
		{Name: "entry_price", Type: arrow.PrimitiveTypes.Float64},
		{Name: "exit_price", Type: arrow.PrimitiveTypes.Float64},
		{Name: "target", Type: arrow.PrimitiveTypes.Float64},
		{Name: "stoploss", Type: arrow.PrimitiveTypes.Float64},
		{Name: "exit_reason", Type: arrow.BinaryTypes.String},
		{Name: "lots", Type: arrow.PrimitiveTypes.Int64},
		{Name: "profit", Type: arrow.PrimitiveTypes.Float64},
		{Name: "cum_profit", Type: arrow.PrimitiveTypes.Float64},
		{Name: "drawdown", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
}

// ConvertTradeBook serializes a trade book into a single Arrow IPC stream.
func (p *Pipeline) ConvertTradeBook(book *engine.TradeBook) ([]byte, error) {
	if book == nil || len(book.Trades) == 0 {
		return nil, fmt.Errorf("no trades to convert")
	}

	n := len(book.Trades)
	legs := make([]string, n)
	tickers := make([]string, n)
	directions := make([]string, n)
	entryTimes := make([]int64, n)
	exitTimes := make([]int64, n)
	entryPrices := make([]float64, n)
	exitPrices := make([]float64, n)
	targets := make([]float64, n)
	stops := make([]float64, n)
	reasons := make([]string, n)
	lots := make([]int64, n)
	profits := make([]float64, n)
	cumProfits := make([]float64, n)
	drawdowns := make([]float64, n)

	for i, t := range book.Trades {
		legs[i] = t.LegName
		tickers[i] = t.Ticker
		directions[i] = t.Direction
		entryTimes[i] = t.EntryTime.UnixMilli()
		exitTimes[i] = t.ExitTime.UnixMilli()
		entryPrices[i] = t.EntryPrice
		exitPrices[i] = t.ExitPrice
		targets[i] = t.Target
		stops[i] = t.Stoploss
		reasons[i] = t.ExitReason.String()
		lots[i] = int64(t.Lots)
		profits[i] = t.Profit.InexactFloat64()
		cumProfits[i] = t.CumProfit.InexactFloat64()
		drawdowns[i] = t.Drawdown.InexactFloat64()
	}

	schema := tradeSchema()

	legArr := stringArray(p.pool, legs)
	tickerArr := stringArray(p.pool, tickers)
	directionArr := stringArray(p.pool, directions)
	entryTimeArr := int64Array(p.pool, entryTimes)
	exitTimeArr := int64Array(p.pool, exitTimes)
	entryPriceArr := float64Array(p.pool, entryPrices)
	exitPriceArr := float64Array(p.pool, exitPrices)
	targetArr := float64Array(p.pool, targets)
	stopArr := float64Array(p.pool, stops)
	reasonArr := stringArray(p.pool, reasons)
	lotsArr := int64Array(p.pool, lots)
	profitArr := float64Array(p.pool, profits)
	cumProfitArr := float64Array(p.pool, cumProfits)
	drawdownArr := float64Array(p.pool, drawdowns)

	record := array.NewRecord(schema, []arrow.Array{
		legArr,
		tickerArr,
		directionArr,
		entryTimeArr,
		exitTimeArr,
		entryPriceArr,
		exitPriceArr,
		targetArr,
		stopArr,
		reasonArr,
		lotsArr,
		profitArr,
		cumProfitArr,
		drawdownArr,
	}, int64(n))
	defer record.Release()

	var buf bytes.Buffer
	if err := p.writeRecord(&buf, record); err != nil {
		return nil, err
	}
	p.log.Debug("trade book converted to arrow", zap.Int("trades", n), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// WriteTradeBook streams the trade book as Arrow IPC to w.
func (p *Pipeline) WriteTradeBook(w io.Writer, book *engine.TradeBook) error {
	data, err := p.ConvertTradeBook(book)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write Arrow data: %w", err)
	}
	return nil
}

func (p *Pipeline) writeRecord(w io.Writer, record arrow.Record) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(record.Schema()))
	defer writer.Close()
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write Arrow record: %w", err)
	}
	return nil
}

func stringArray(pool memory.Allocator, values []string) arrow.Array {
	b := array.NewStringBuilder(pool)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewStringArray()
}

func int64Array(pool memory.Allocator, values []int64) arrow.Array {
	b := array.NewInt64Builder(pool)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewInt64Array()
}

func float64Array(pool memory.Allocator, values []float64) arrow.Array {
	b := array.NewFloat64Builder(pool)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewFloat64Array()
}
