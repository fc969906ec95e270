// Package config loads service configuration from a YAML file with
// PHARMX_* environment overrides.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env string `mapstructure:"env"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Storage struct {
		Driver     string `mapstructure:"driver"`
		SQLitePath string `mapstructure:"sqlite_path"`
		DSN        string `mapstructure:"dsn"`
	} `mapstructure:"storage"`

	Blob struct {
		Driver string `mapstructure:"driver"`
		FSRoot string `mapstructure:"fs_root"`
	} `mapstructure:"blob"`

	Ledger struct {
		LowStockThreshold int64 `mapstructure:"low_stock_threshold"`
		// SweepInterval is a Go duration string, e.g. "1h". Empty disables
		// the background expiry sweep.
		SweepInterval string `mapstructure:"sweep_interval"`
	} `mapstructure:"ledger"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// Load reads the config file at path. A missing file is not an error: every
// field has a usable default and can come from PHARMX_* environment
// variables instead.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PHARMX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "pharmxchain.db")
	// AutomaticEnv only resolves keys viper already knows about, so keys
	// without a meaningful default still need an empty one registered.
	v.SetDefault("storage.dsn", "")
	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.fs_root", "./blobdata")
	v.SetDefault("ledger.low_stock_threshold", 10)
	v.SetDefault("ledger.sweep_interval", "")
	v.SetDefault("metrics.enabled", true)

	var c Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return c, err
			}
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
