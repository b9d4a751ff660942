package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port              int    `mapstructure:"port"`
	Scheme            string `mapstructure:"scheme"`
	ShutdownTimeoutMs int    `mapstructure:"shutdown_timeout_ms"`
}

type StorageConfig struct {
	Root      string `mapstructure:"root"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const DefaultPort = 3000

// Flags returns the command-line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("lan-drop", pflag.ContinueOnError)
	fs.String("config", "", "path to a config file (default: app.yaml in . or ../..)")
	fs.String("root", "", "folder that receives uploads")
	fs.Int("port", DefaultPort, "TCP port to listen on (0 picks a free port)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.scheme", "http")
	v.SetDefault("server.shutdown_timeout_ms", 3000)
	v.SetDefault("storage.root", "./uploads")
	v.SetDefault("storage.chunk_size", 1<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load builds the configuration from defaults, an optional app.yaml,
// LANDROP_* environment variables (plus PORT), and flags when given.
// Flags only override when explicitly set.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("landrop")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "LANDROP_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("storage.root", "LANDROP_STORAGE_ROOT", "LANDROP_ROOT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	configFile := ""
	if flags != nil {
		for key, flag := range map[string]string{
			"server.port":  "port",
			"storage.root": "root",
			"log.level":    "log-level",
		} {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
		configFile, _ = flags.GetString("config")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("../..")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Storage.Root == "" {
		return errors.New("storage.root is required")
	}
	if c.Storage.ChunkSize <= 0 {
		return fmt.Errorf("invalid storage.chunk_size %d", c.Storage.ChunkSize)
	}
	return nil
}
