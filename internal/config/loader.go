package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if RUMBLE_CONFIG is set
//  3. env (prefix RUMBLE_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("RUMBLE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: RUMBLE_ADDR, RUMBLE_UPDATE_BUS_SIZE, ...
	// Map env keys like RUMBLE_UPDATE_BUS_SIZE -> update_bus_size (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("RUMBLE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "rumble_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	// Basic validation; a broken weight table must fail here, before any
	// party can be scored against it.
	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if err := cfg.ScoringWeights().Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
