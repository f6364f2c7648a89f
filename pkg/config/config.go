// Package config provides a reusable loader for tribenet configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"tribenet/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a tribenet node: the instance
// address seeded with DEFAULT_ADMIN_ROLE, the Post Minter's cooldown and
// batch-limit defaults, and logging. It mirrors the structure of the YAML
// files under cmd/config.
type Config struct {
	Node struct {
		AdminAddress string `mapstructure:"admin_address" json:"admin_address"`
		NFTFixture   string `mapstructure:"nft_fixture" json:"nft_fixture"`
	} `mapstructure:"node" json:"node"`

	Posts struct {
		DefaultCooldownSeconds int64            `mapstructure:"default_cooldown_seconds" json:"default_cooldown_seconds"`
		TypeCooldowns          map[string]int64 `mapstructure:"type_cooldowns" json:"type_cooldowns"`
		MaxBatchSize           uint32           `mapstructure:"max_batch_size" json:"max_batch_size"`
		BatchCooldownSeconds   int64            `mapstructure:"batch_cooldown_seconds" json:"batch_cooldown_seconds"`
	} `mapstructure:"posts" json:"posts"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the TRIBENET_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("TRIBENET_ENV", ""))
}
