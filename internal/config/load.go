package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
)

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func processEnv(ctx context.Context, prefix string, lookuper envconfig.Lookuper, target any) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   target,
		Lookuper: envconfig.PrefixLookuper(prefix, lookuper),
	})
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}

func set[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
