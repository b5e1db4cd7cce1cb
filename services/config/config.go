// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

type ServerConfig struct {
	HTTPPort int
	GRPCPort int
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Table    string
	Username string
	Password string
}

type EngineConfig struct {
	LegTimeoutSeconds int
}

type Config struct {
	Environment string
	Server      ServerConfig
	ClickHouse  ClickHouseConfig
	Engine      EngineConfig
}

// Load reads configuration from BACKTEST_* environment variables,
// falling back to development defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: envStr("BACKTEST_ENV", "dev"),
		Server: ServerConfig{
			HTTPPort: 8080,
			GRPCPort: 9091,
		},
		ClickHouse: ClickHouseConfig{
			Addr:     envStr("BACKTEST_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: envStr("BACKTEST_CLICKHOUSE_DB", "backtest"),
			Table:    envStr("BACKTEST_CLICKHOUSE_TABLE", "data"),
			Username: envStr("BACKTEST_CLICKHOUSE_USER", "default"),
			Password: os.Getenv("BACKTEST_CLICKHOUSE_PASSWORD"),
		},
	}

	var err error
	if cfg.Server.HTTPPort, err = envInt("BACKTEST_HTTP_PORT", cfg.Server.HTTPPort); err != nil {
		return nil, err
	}
	if cfg.Server.GRPCPort, err = envInt("BACKTEST_GRPC_PORT", cfg.Server.GRPCPort); err != nil {
		return nil, err
	}
	if cfg.Engine.LegTimeoutSeconds, err = envInt("BACKTEST_LEG_TIMEOUT_SECONDS", 0); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}
