package seed

import (
	"fmt"
	"strconv"
	"strings"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Table     string
	Rows      int
	BatchSize int
	Seed      int64
	// Replace clears existing rows or parts before writing.
	Replace bool
}

func DefaultConfig() Config {
	return Config{
		Table:     "medical_insurance",
		Rows:      1338,
		BatchSize: 200,
		Seed:      1,
		Replace:   false,
	}
}

// LoadConfigFromEnv reads TABLEQA_SEED_* keys. The table defaults to
// TABLEQA_STORE_TABLE so the seed lands where the api will look.
func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "TABLEQA_STORE_TABLE", &cfg.Table); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLEQA_SEED_TABLE", &cfg.Table); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLEQA_SEED_ROWS", &cfg.Rows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLEQA_SEED_BATCH_SIZE", &cfg.BatchSize); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "TABLEQA_SEED_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLEQA_SEED_REPLACE", &cfg.Replace); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.Table) == "" {
		return Config{}, fmt.Errorf("TABLEQA_SEED_TABLE is required")
	}
	if cfg.Rows <= 0 {
		return Config{}, fmt.Errorf("TABLEQA_SEED_ROWS must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("TABLEQA_SEED_BATCH_SIZE must be > 0")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
