// Package config loads converter settings from flags, MCR2ANVIL_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/rmmh/mcr2anvil/go/chunk"
)

const EnvPrefix = "MCR2ANVIL"

// NoBiome leaves converted biomes undetermined.
const NoBiome = -1

type Settings struct {
	BaseDir    string `mapstructure:"base_dir"`
	World      string `mapstructure:"world"`
	Workers    int    `mapstructure:"workers"`
	Biome      int    `mapstructure:"biome"`
	Fresh      bool   `mapstructure:"fresh"`
	Journal    string `mapstructure:"journal"`
	StatusAddr string `mapstructure:"status_addr"`
	Debug      bool   `mapstructure:"debug"`
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("base_dir", "")
	v.SetDefault("world", "")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("biome", NoBiome)
	v.SetDefault("fresh", false)
	v.SetDefault("journal", "")
	v.SetDefault("status_addr", "")
	v.SetDefault("debug", false)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile (if set) into v and returns the validated settings.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", configFile)
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	switch {
	case s.BaseDir == "":
		return errors.New("config: base folder is required")
	case s.World == "":
		return errors.New("config: world name is required")
	case s.Workers < 0:
		return errors.Errorf("config: workers must not be negative, got %d", s.Workers)
	case s.Biome < NoBiome || s.Biome > 255:
		return errors.Errorf("config: biome must be between %d and 255, got %d", NoBiome, s.Biome)
	}
	return nil
}

// Biomes is the biome source the settings ask for; nil means undetermined.
func (s *Settings) Biomes() chunk.BiomeSource {
	if s.Biome == NoBiome {
		return nil
	}
	return chunk.Fixed(uint8(s.Biome))
}
