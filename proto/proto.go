package proto

import "context"

type RunBacktestRequest struct {
	Strategy       []byte `json:"strategy"`
	OutputFormat   OutputFormat
	LegTimeoutSecs int64 `json:"leg_timeout_secs"`
}

type OutputFormat int32

const (
	OutputFormat_JSON  OutputFormat = 0
	OutputFormat_ARROW OutputFormat = 1
	OutputFormat_CSV   OutputFormat = 2
)

type Trade struct {
	LegName    string
	Ticker     string
	Direction  TradeDirection
	EntryTime  int64
	EntryPrice string
	Target     string
	Stoploss   string
	ExitTime   int64
	ExitPrice  string
	ExitReason string
	Lots       int32
	Profit     string
	CumProfit  string
	Drawdown   string
}

type TradeDirection int32

const (
	TradeDirection_BUY  TradeDirection = 0
	TradeDirection_SELL TradeDirection = 1
)

type LegFailure struct {
	Leg   string
	Error string
}

type RunManifest struct {
	RunId         string
	EngineVersion string
	ConfigHash    string
	FromDate      string
	ToDate        string
	Legs          []string
	CreatedAt     int64
}

type RunBacktestResponse struct {
	RunId         string
	ExecutionTime int64
	Trades        []*Trade
	Partial       bool
	LegFailures   []*LegFailure
	TotalProfit   string
	MaxDrawdown   string
	Manifest      *RunManifest
	ArrowPayload  []byte
}

// gRPC server interface stub

type UnimplementedBacktestServiceServer struct{}

func RegisterBacktestServiceServer(_ any, _ BacktestServiceServer) {}

type BacktestServiceServer interface {
	RunBacktest(context.Context, *RunBacktestRequest) (*RunBacktestResponse, error)
}
