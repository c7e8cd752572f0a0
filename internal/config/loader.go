package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName      = ".traceinstr"
	configType      = "yaml"
	envPrefix       = "TRACEINSTR"
	envKeySeparator = "_"
)

// Load reads configuration from file, environment and defaults. When path
// is empty the file is searched in the current directory and $HOME. Missing
// config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("level", DefaultLevel)
	v.SetDefault("directive", DefaultDirective)
	v.SetDefault("context", DefaultContext)
	v.SetDefault("jobs", DefaultJobs)
	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("output.overlay", "")
}
