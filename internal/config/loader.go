package config

import (
	"context"
	"fmt"
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
//  2. file (YAML) if SABRE_CONFIG is set
//  3. env (prefix SABRE_)
func Load(_ context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("SABRE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: SABRE_ADDR, SABRE_QUEUE_SIZE, ...
	// Map env keys like SABRE_QUEUE_SIZE -> queue_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("SABRE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "sabre_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate performs basic well-formedness checks. Scoring knobs are
// deliberately not rejected here: the scoring package clamps them so a
// misconfigured competition still scores solves.
func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.EligibleTeams < 0 {
		return fmt.Errorf("%w: eligible_teams must not be negative", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(cfg.Challenges))
	for _, spec := range cfg.Challenges {
		if spec.ID == "" {
			return fmt.Errorf("%w: challenge id must not be empty", ErrInvalidConfig)
		}
		if _, dup := seen[spec.ID]; dup {
			return fmt.Errorf("%w: duplicate challenge id %s", ErrInvalidConfig, spec.ID)
		}
		seen[spec.ID] = struct{}{}
		if _, err := spec.Challenge(); err != nil {
			return err
		}
	}
	return nil
}
