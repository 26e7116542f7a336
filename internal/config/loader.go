package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names and prefix.
const (
	EnvPrefix  = "CARDELO_"
	EnvConfig  = EnvPrefix + "CONFIG"
	EnvEnvFile = EnvPrefix + "ENV_FILE"

	defaultEnvFile = ".env"
)

// Load builds a Config by layering defaults, optional files, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CARDELO_CONFIG is set
//  3. .env file (CARDELO_ENV_FILE, default ".env"), skipped when missing
//  4. env (prefix CARDELO_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := loadDotEnv(k); err != nil {
		return nil, err
	}

	// CARDELO_STORE_PATH -> store_path. Underscores are kept to match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv reads CARDELO_ entries from the .env file without touching the
// process environment.
func loadDotEnv(k *koanf.Koanf) error {
	path := os.Getenv(EnvEnvFile)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}

	for name, value := range values {
		if !strings.HasPrefix(strings.ToUpper(name), EnvPrefix) {
			continue
		}
		key := envKey(name)
		if key == "config" || key == "env_file" {
			continue
		}
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoadConfig, name, err)
		}
	}
	return nil
}

func envKey(s string) string {
	s = strings.ToLower(s)
	return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
}
