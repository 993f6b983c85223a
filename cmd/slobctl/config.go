package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holmberd/go-slob"
)

const envPrefix = "SLOB"

// PoolSpecs is a comma separated list of block:storage pairs, e.g. "4:120,8:160".
type PoolSpecs []slob.PoolConfig

// Decode implements envconfig.Decoder.
func (p *PoolSpecs) Decode(value string) error {
	var specs PoolSpecs
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		block, storage, ok := strings.Cut(item, ":")
		if !ok {
			return fmt.Errorf("pool %q: expected block:storage", item)
		}
		bs, err := strconv.Atoi(strings.TrimSpace(block))
		if err != nil {
			return fmt.Errorf("pool %q: block size: %w", item, err)
		}
		ss, err := strconv.Atoi(strings.TrimSpace(storage))
		if err != nil {
			return fmt.Errorf("pool %q: storage size: %w", item, err)
		}
		specs = append(specs, slob.PoolConfig{BlockSize: bs, StorageSize: ss})
	}
	*p = specs
	return nil
}

func (p PoolSpecs) String() string {
	items := make([]string, len(p))
	for i, pc := range p {
		items[i] = fmt.Sprintf("%d:%d", pc.BlockSize, pc.StorageSize)
	}
	return strings.Join(items, ",")
}

// Config is read from SLOB_* environment variables.
type Config struct {
	// TotalPools defaults to the number of configured pools when zero.
	TotalPools int       `envconfig:"TOTAL_POOLS" default:"0"`
	Pools      PoolSpecs `envconfig:"POOLS" default:"4:120,8:160"`
	Backing    string    `envconfig:"BACKING" default:"heap"`
	Policy     string    `envconfig:"POLICY" default:"first-fit"`
	ThreadSafe bool      `envconfig:"THREAD_SAFE" default:"false"`
	LogLevel   string    `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string    `envconfig:"LOG_FORMAT" default:"text"`
}

// loadConfig loads envFile, when set, and processes the environment.
// Variables already present in the environment take precedence over the file.
func loadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	return cfg, nil
}

// allocatorConfig converts cfg into a slob.Config.
func (cfg Config) allocatorConfig(logger *slog.Logger, reg prometheus.Registerer) (slob.Config, error) {
	backing, err := slob.ParseBacking(cfg.Backing)
	if err != nil {
		return slob.Config{}, err
	}
	policy, err := slob.ParsePolicy(cfg.Policy)
	if err != nil {
		return slob.Config{}, err
	}
	total := cfg.TotalPools
	if total == 0 {
		total = len(cfg.Pools)
	}
	c := slob.Config{
		TotalPools: total,
		Pools:      cfg.Pools,
		Backing:    backing,
		Policy:     policy,
		ThreadSafe: cfg.ThreadSafe,
		Logger:     logger,
		Registerer: reg,
	}
	return c, c.Validate()
}

// newLogger builds a slog logger writing to w.
// Format is either "text" or "json".
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
