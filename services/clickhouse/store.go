// Package clickhouse implements the options market data store over
// ClickHouse: filtered bar fetches, timeframe resampling against the
// underlying's trading spine, and the trading calendar.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/Helambe-vaibhav/BACKTest/services/marketdata"
)

type Config struct {
	Addr     string
	Database string
	Table    string
	Username string
	Password string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "localhost:9000"
	}
	if c.Database == "" {
		c.Database = "backtest"
	}
	if c.Table == "" {
		c.Table = "data"
	}
	return c
}

// Store is safe for concurrent use; every leg of a run shares one handle.
type Store struct {
	conn driver.Conn
	cfg  Config
	log  *zap.Logger
}

func NewStore(cfg Config, log *zap.Logger) (*Store, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Store{conn: conn, cfg: cfg, log: log}, nil
}

func (s *Store) Close() error { return s.conn.Close() }

// FetchOptionsData queries bars matching the conditions, default sort
// (DateTime, Type, Open), optionally resampled to resampleMinutes-minute
// bars forward-filled against the underlying's trading spine.
func (s *Store) FetchOptionsData(ctx context.Context, cond marketdata.Conditions, resampleMinutes int) (*marketdata.Window, error) {
	where, args := buildWhere(cond)
	query := fmt.Sprintf(`
		SELECT DateTime, Ticker, Expiry, Type, Open, High, Low, Close, Volume, OI, Strike, Underlying
		FROM %s.%s
		WHERE %s
		ORDER BY DateTime, Type, Open`, s.cfg.Database, s.cfg.Table, where)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch options data: %w", err)
	}
	defer rows.Close()

	w := marketdata.NewWindow()
	var underlying string
	for rows.Next() {
		var b marketdata.Bar
		var volume, oi uint64
		var u string
		if err := rows.Scan(&b.Time, &b.Ticker, &b.Expiry, &b.Type,
			&b.Open, &b.High, &b.Low, &b.Close, &volume, &oi, &b.Strike, &u); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if underlying == "" {
			underlying = u
		}
		b.Volume = float64(volume)
		b.OI = float64(oi)
		w.AppendBar(b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch options data: %w", err)
	}

	if resampleMinutes <= 1 || w.Empty() {
		return w, nil
	}

	from := w.Times[0]
	to := w.Times[w.Len()-1]
	if cond.FromDate != nil {
		from = *cond.FromDate
	}
	if cond.ToDate != nil {
		to = *cond.ToDate
	}
	spine, err := s.tradingSpine(ctx, underlying, from, to)
	if err != nil {
		return nil, err
	}
	return resample(w, spine, resampleMinutes), nil
}

// IsTradingDate reports whether any bar exists on the given calendar date.
func (s *Store) IsTradingDate(ctx context.Context, day time.Time) (bool, error) {
	query := fmt.Sprintf(`SELECT count() FROM %s.%s WHERE toDate(DateTime) = toDate(?)`,
		s.cfg.Database, s.cfg.Table)
	var n uint64
	if err := s.conn.QueryRow(ctx, query, day).Scan(&n); err != nil {
		return false, fmt.Errorf("trading date check: %w", err)
	}
	return n > 0, nil
}

// FetchExpiries lists the distinct expiry dates inside [from, to].
func (s *Store) FetchExpiries(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT Expiry FROM %s.%s
		WHERE toDate(Expiry) >= toDate(?) AND toDate(Expiry) <= toDate(?)
		ORDER BY Expiry`, s.cfg.Database, s.cfg.Table)
	rows, err := s.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch expiries: %w", err)
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan expiry: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// tradingSpine is the underlying's distinct bar timestamps, the reference
// calendar that resampling forward-fills against.
func (s *Store) tradingSpine(ctx context.Context, underlying string, from, to time.Time) ([]time.Time, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT DateTime FROM %s.%s
		WHERE Ticker = ? AND DateTime >= ? AND DateTime <= ?
		ORDER BY DateTime`, s.cfg.Database, s.cfg.Table)
	rows, err := s.conn.Query(ctx, query, underlying, from, to)
	if err != nil {
		return nil, fmt.Errorf("trading spine: %w", err)
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan spine: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
