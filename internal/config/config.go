package config

import (
	"fmt"

	sio "github.com/funcards/socket.io-server"
	"github.com/funcards/socket.io-server/eio"
	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Addr      string `yaml:"addr" env-default:":3000" env:"SIO_ADDR"`
	Path      string `yaml:"path" env-default:"/socket.io/" env:"SIO_PATH"`
	LogLevel  string `yaml:"log_level" env-default:"info" env:"SIO_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env-default:"json" env:"SIO_LOG_FORMAT"`

	Server sio.Config `yaml:"server"`
	Engine eio.Config `yaml:"engine"`
}

// Load reads the YAML file at path, when given, and applies environment overrides.
func Load(path string) (Config, error) {
	var cfg Config

	if len(path) == 0 {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: read env: %w", err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// Logger builds a zap logger for LogLevel. LogFormat "console" selects the
// development encoder, anything else JSON.
func (c Config) Logger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}
