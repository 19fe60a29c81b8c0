// Package config provides YAML-based configuration loading for netplayd.
package config

import (
    "strings"

    "github.com/spf13/viper"
)

// Config is the root netplayd configuration.
type Config struct {
    AppName    string            `mapstructure:"app_name"`
    Log        LogConfig         `mapstructure:"log"`
    Server     ServerConfig      `mapstructure:"server"`
    Transports []TransportConfig `mapstructure:"transports"`
}

type LogConfig struct {
    Level       string         `mapstructure:"level"`
    Format      string         `mapstructure:"format"` // "json" or "console"
    Outputs     []string       `mapstructure:"outputs"`
    Rotation    RotationConfig `mapstructure:"rotation"`
    Development bool           `mapstructure:"development"`
}

type RotationConfig struct {
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

type ServerConfig struct {
    // TestMode enables the bounded session registry and permits remote
    // shutdown. Never enable in production.
    TestMode    bool `mapstructure:"test_mode"`
    MaxSessions int  `mapstructure:"max_sessions"`
    Spectating  bool `mapstructure:"spectating"`
}

// Load reads configuration from the given file (optional), environment
// variables prefixed NETPLAY_, and built-in defaults, in that precedence.
func Load(path string) (*Config, error) {
    v := viper.New()
    setDefaults(v)

    v.SetEnvPrefix("NETPLAY")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    if path != "" {
        v.SetConfigFile(path)
        if err := v.ReadInConfig(); err != nil { return nil, err }
    }

    var cfg Config
    if err := v.Unmarshal(&cfg); err != nil { return nil, err }
    return &cfg, nil
}

func setDefaults(v *viper.Viper) {
    v.SetDefault("app_name", "netplayd")

    v.SetDefault("log.level", "info")
    v.SetDefault("log.format", "console")
    v.SetDefault("log.outputs", []string{"stdout"})
    v.SetDefault("log.development", false)
    v.SetDefault("log.rotation.filename", "logs/netplayd.log")
    v.SetDefault("log.rotation.max_size_mb", 100)
    v.SetDefault("log.rotation.max_backups", 5)
    v.SetDefault("log.rotation.max_age_days", 14)
    v.SetDefault("log.rotation.compress", true)

    v.SetDefault("server.test_mode", false)
    v.SetDefault("server.max_sessions", 10)
    v.SetDefault("server.spectating", true)

    v.SetDefault("transports", []map[string]any{
        {"kind": "tcp", "listen": "0.0.0.0:7864"},
    })
}
