package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Store         StoreConfig
	ObjectStore   ObjectStoreConfig
	AI            AIConfig
	Framing       FramingConfig
	Pipeline      PipelineConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoreConfig scopes the backing store to exactly one table. The DSN should
// carry credentials that only hold SELECT on that table.
type StoreConfig struct {
	Driver          string
	DSN             string
	Table           string
	SampleRows      int
	RowLimit        int
	QueryTimeout    time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type AIConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	TopK     int
}

type FramingConfig struct {
	Domain string
	Fields []string
}

type PipelineConfig struct {
	MaxInFlight int
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

// LoadFromEnv reads an optional .env file from the working directory before
// consulting the process environment. Variables already set in the
// environment win over .env entries.
func LoadFromEnv(serviceName string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TABLEQA_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TABLEQA_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	var temperature float64
	appliers := []func() error{
		func() error { return applyString(lookup, "TABLEQA_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "TABLEQA_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "TABLEQA_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "TABLEQA_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "TABLEQA_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "TABLEQA_STORE_DRIVER", &cfg.Store.Driver) },
		func() error { return applyString(lookup, "TABLEQA_STORE_DSN", &cfg.Store.DSN) },
		func() error { return applyString(lookup, "TABLEQA_STORE_TABLE", &cfg.Store.Table) },
		func() error { return applyInt(lookup, "TABLEQA_STORE_SAMPLE_ROWS", &cfg.Store.SampleRows) },
		func() error { return applyInt(lookup, "TABLEQA_STORE_ROW_LIMIT", &cfg.Store.RowLimit) },
		func() error { return applyDuration(lookup, "TABLEQA_STORE_QUERY_TIMEOUT", &cfg.Store.QueryTimeout) },
		func() error { return applyInt(lookup, "TABLEQA_STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns) },
		func() error { return applyInt(lookup, "TABLEQA_STORE_MAX_IDLE_CONNS", &cfg.Store.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "TABLEQA_STORE_CONN_MAX_IDLE_TIME", &cfg.Store.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "TABLEQA_STORE_CONN_MAX_LIFETIME", &cfg.Store.ConnMaxLifetime)
		},
		func() error { return applyString(lookup, "TABLEQA_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "TABLEQA_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "TABLEQA_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "TABLEQA_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error {
			return applyString(lookup, "TABLEQA_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "TABLEQA_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "TABLEQA_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "TABLEQA_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyString(lookup, "TABLEQA_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "TABLEQA_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "TABLEQA_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "TABLEQA_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "TABLEQA_AI_TEMPERATURE", &temperature) },
		func() error { return applyDuration(lookup, "TABLEQA_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyInt(lookup, "TABLEQA_AI_TOP_K", &cfg.AI.TopK) },
		func() error { return applyString(lookup, "TABLEQA_FRAMING_DOMAIN", &cfg.Framing.Domain) },
		func() error { return applyList(lookup, "TABLEQA_FRAMING_FIELDS", &cfg.Framing.Fields) },
		func() error { return applyInt(lookup, "TABLEQA_MAX_INFLIGHT", &cfg.Pipeline.MaxInFlight) },
		func() error { return applyBool(lookup, "TABLEQA_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "TABLEQA_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "TABLEQA_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "TABLEQA_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Store.Table == "" {
		return Config{}, fmt.Errorf("store table is required")
	}
	switch cfg.Store.Driver {
	case "mysql", "postgres", "duckdb":
	default:
		return Config{}, fmt.Errorf("invalid TABLEQA_STORE_DRIVER: %q", cfg.Store.Driver)
	}
	if cfg.Store.SampleRows < 0 {
		return Config{}, fmt.Errorf("invalid TABLEQA_STORE_SAMPLE_ROWS: must be >= 0")
	}
	// Model calls always run at temperature 0.
	if temperature != 0 {
		return Config{}, fmt.Errorf("invalid TABLEQA_AI_TEMPERATURE: %v (must be 0)", temperature)
	}
	if cfg.Pipeline.MaxInFlight < 0 {
		return Config{}, fmt.Errorf("invalid TABLEQA_MAX_INFLIGHT: must be >= 0")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "tableqa-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Driver:          "mysql",
			DSN:             "root@tcp(localhost:3306)/helth_insurance?parseTime=true",
			Table:           "medical_insurance",
			SampleRows:      2,
			RowLimit:        200,
			QueryTimeout:    15 * time.Second,
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "tableqa",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		AI: AIConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com",
			Model:    "gpt-3.5-turbo",
			Timeout:  30 * time.Second,
			TopK:     5,
		},
		Framing: FramingConfig{
			Domain: "health insurance",
			Fields: []string{"age", "gender", "bmi", "children", "discount_eligibility", "region", "expenses", "premium"},
		},
		Pipeline: PipelineConfig{
			MaxInFlight: 0,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
		cfg.Pipeline.MaxInFlight = 32
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		items = append(items, part)
	}
	*dst = items
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
