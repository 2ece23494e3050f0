package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"wrun/internal/wasm"
)

// fileConfig is the shape of a --config FILE document: a handful of RuntimeConfig knobs an embedder would
// otherwise set in Go. Anything it doesn't mention keeps wrun's built-in default.
type fileConfig struct {
	CallStackCeiling int             `mapstructure:"call-stack-ceiling"`
	LogLevel         string          `mapstructure:"log-level"`
	Features         map[string]bool `mapstructure:"features"`
}

// loadFileConfig reads and decodes path with viper, which sniffs the format from its extension (YAML, JSON,
// and TOML are all acceptable).
func loadFileConfig(path string) (*fileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// applyFileConfig folds cfg's features into base, returning the resulting feature set and the requested log
// level (or logrus.WarnLevel if cfg named none).
func applyFileConfig(base wasm.Features, cfg *fileConfig) (wasm.Features, logrus.Level, error) {
	level := logrus.WarnLevel
	if cfg == nil {
		return base, level, nil
	}
	if cfg.LogLevel != "" {
		l, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid log-level %q: %w", cfg.LogLevel, err)
		}
		level = l
	}
	result := base
	for name, enabled := range cfg.Features {
		f, ok := wasm.ParseFeatureName(name)
		if !ok {
			return 0, 0, fmt.Errorf("unknown feature %q", name)
		}
		result = result.Set(f, enabled)
	}
	return result, level, nil
}
