// One-shot installer for option bar CSV exports → ClickHouse with dedup guarantees.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	chproto "github.com/ClickHouse/clickhouse-go/v2/lib/proto"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Config via env
type cfg struct {
	Addr     string
	Database string
	Table    string
	User     string
	Password string
	DataDir  string
}

func mustEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func loadCfg() cfg {
	return cfg{
		Addr:     mustEnv("BACKTEST_CLICKHOUSE_ADDR", "localhost:9000"),
		Database: mustEnv("BACKTEST_CLICKHOUSE_DB", "backtest"),
		Table:    mustEnv("BACKTEST_CLICKHOUSE_TABLE", "data"),
		User:     mustEnv("BACKTEST_CLICKHOUSE_USER", "default"),
		Password: mustEnv("BACKTEST_CLICKHOUSE_PASSWORD", ""),
		DataDir:  mustEnv("BACKTEST_DATA_DIR", "./data"),
	}
}

func main() {
	cfg := loadCfg()
	ctx := context.Background()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		panic(err)
	}
	if err := conn.Ping(ctx); err != nil {
		panic(fmt.Errorf("clickhouse ping: %s", explainCHError(err)))
	}

	if err := ensureSchema(ctx, conn, cfg); err != nil {
		panic(err)
	}

	files, err := listCSVs(cfg.DataDir)
	if err != nil {
		panic(err)
	}
	if len(files) == 0 {
		fmt.Printf("==> no CSV files under %s, nothing to do\n", cfg.DataDir)
		return
	}

	fmt.Printf("==> installing %d CSV file(s) from %s\n", len(files), cfg.DataDir)
	total := 0
	for _, f := range files {
		n, err := ingestFile(ctx, conn, cfg, f)
		if err != nil {
			// Non-fatal: continue other files
			fmt.Printf("WARN: %s ingest failed: %v\n", f, err)
			continue
		}
		total += n
	}
	fmt.Printf("✅ Done. %d rows installed with dedup safeguards.\n", total)
}

func listCSVs(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(path), ".csv") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func ensureSchema(ctx context.Context, conn driver.Conn, c cfg) error {
	dbDDL := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", c.Database)
	if err := conn.Exec(ctx, dbDDL); err != nil {
		return fmt.Errorf("create database: %w", err)
	}

	tableDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			DateTime DateTime,
			Ticker String,
			Underlying LowCardinality(String),
			Expiry DateTime,
			Strike Float64,
			Type LowCardinality(String),
			Open Float64,
			High Float64,
			Low Float64,
			Close Float64,
			Volume UInt64,
			OI UInt64,
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (Ticker, DateTime)
		SETTINGS index_granularity = 8192
	`, c.Database, c.Table)
	return conn.Exec(ctx, tableDDL)
}

// ingestFile streams one CSV file into the bars table. Files exported from
// Windows tools arrive UTF-16 with a BOM, so the reader sniffs and decodes.
//
// Expected columns:
// 0 DateTime, 1 Ticker, 2 Underlying, 3 Expiry, 4 Strike, 5 Type,
// 6 Open, 7 High, 8 Low, 9 Close, 10 Volume, 11 OI
func ingestFile(ctx context.Context, conn driver.Conn, c cfg, path string) (int, error) {
	fmt.Printf("  -> %s\n", path)
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader, err := decodedReader(f)
	if err != nil {
		return 0, err
	}

	batch, err := conn.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO %s.%s SETTINGS insert_deduplicate=1`, c.Database, c.Table))
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	ver := uint64(time.Now().UTC().UnixNano()) // same for this file; ReplacingMergeTree keeps last

	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	rows := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "\ufeff")
		line = strings.ReplaceAll(line, "\"", "")
		rec := strings.Split(line, ",")
		if len(rec) < 12 {
			continue
		}
		ts, err := parseTS(rec[0])
		if err != nil {
			// header row
			continue
		}
		expiry, err := parseTS(rec[3])
		if err != nil {
			continue
		}
		strike, _ := parseF(rec[4])
		open, _ := parseF(rec[6])
		high, _ := parseF(rec[7])
		low, _ := parseF(rec[8])
		closep, _ := parseF(rec[9])
		vol, _ := parseU64(rec[10])
		oi, _ := parseU64(rec[11])

		if err := batch.Append(
			ts,
			strings.TrimSpace(rec[1]),
			strings.TrimSpace(rec[2]),
			expiry,
			strike,
			strings.TrimSpace(rec[5]),
			open, high, low, closep,
			vol,
			oi,
			ver,
		); err != nil {
			return 0, fmt.Errorf("batch append: %w", err)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("csv read: %w", err)
	}
	if rows == 0 {
		fmt.Println("    (empty)")
		return 0, nil
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("batch send: %s", explainCHError(err))
	}
	fmt.Printf("    inserted %d rows\n", rows)
	return rows, nil
}

// decodedReader wraps f with a UTF-16 decoder when a BOM is present.
func decodedReader(f *os.File) (io.Reader, error) {
	br := bufio.NewReader(f)
	b, _ := br.Peek(2)
	if len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}
		return transform.NewReader(f, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()), nil
	}
	return br, nil
}

func parseTS(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseU64(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "."); i != -1 {
		s = s[:i]
	}
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseF(s string) (float64, error) { return strconv.ParseFloat(strings.TrimSpace(s), 64) }

func explainCHError(err error) string {
	var ex *chproto.Exception
	if errors.As(err, &ex) {
		return fmt.Sprintf("ClickHouse [%d] %s (%s)", ex.Code, ex.Message, ex.Name)
	}
	return err.Error()
}
