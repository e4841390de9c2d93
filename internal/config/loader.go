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

	"github.com/okian/powerrank/internal/domain/model"
)

// Environment variables read directly by Load.
const (
	EnvPrefix  = "LEAGUE_"
	EnvConfig  = "LEAGUE_CONFIG"
	EnvDotFile = "LEAGUE_ENV_FILE"
)

// Load builds a Config by layering, low to high precedence:
//  1. defaults (New)
//  2. a .env file (LEAGUE_ENV_FILE, default ".env") filling unset env vars
//  3. a YAML file if LEAGUE_CONFIG is set
//  4. LEAGUE_* env vars; "__" separates nested keys, e.g.
//     LEAGUE_RANKING__ELO__BASE_K -> ranking.elo.base_k
func Load(_ context.Context) (*Config, error) {
	base := New()

	dotFile := os.Getenv(EnvDotFile)
	if dotFile == "" {
		dotFile = ".env"
	}
	if err := godotenv.Load(dotFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, dotFile, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	// Decoding a list into a populated slice merges element-wise; start empty.
	cfg.Ranking.Matchup.Categories = nil
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if len(cfg.Ranking.Matchup.Categories) == 0 {
		cfg.Ranking.Matchup.Categories = model.DefaultCategories()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
