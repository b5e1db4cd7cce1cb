package engine

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const EngineVersion = "1.0.0"

// RunManifest pins a run to its exact inputs for reproducibility.
type RunManifest struct {
	RunID         string    `json:"run_id"`
	EngineVersion string    `json:"engine_version"`
	ConfigHash    string    `json:"config_hash"`
	FromDate      string    `json:"from_date"`
	ToDate        string    `json:"to_date"`
	Legs          []string  `json:"legs"`
	CreatedAt     time.Time `json:"created_at"`
}

func newManifest(cfg StrategyConfig) RunManifest {
	raw, _ := json.Marshal(cfg)
	legs := make([]string, len(cfg.Legs))
	for i, leg := range cfg.Legs {
		legs[i] = leg.Name
	}
	return RunManifest{
		RunID:         uuid.NewString(),
		EngineVersion: EngineVersion,
		ConfigHash:    fmt.Sprintf("%x", sha256.Sum256(raw)),
		FromDate:      cfg.FromDate,
		ToDate:        cfg.ToDate,
		Legs:          legs,
		CreatedAt:     time.Now().UTC(),
	}
}
