// Package config provides configuration loading and validation for melodist.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort          = errors.New("invalid server port")
	ErrInvalidInstanceLimit = errors.New("solver instance limit must not be negative")
	ErrInvalidTimeout       = errors.New("solver timeout must not be negative")
	ErrInvalidMeasures      = errors.New("beat search measures must not be negative")
	ErrInvalidLogLevel      = errors.New("unknown log level")
	ErrInvalidLogFormat     = errors.New("log format must be text or json")
	ErrInvalidSampleRatio   = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidTicks         = errors.New("ticks per quarter must be within [1, 32767]")
	ErrInvalidVelocity      = errors.New("velocity must be within [1, 127]")
	ErrInvalidChannel       = errors.New("channel must be within [0, 15]")
)

const (
	maxPort     = 65535
	maxTicks    = 32767
	maxVelocity = 127
	maxChannel  = 15

	configName = "melodist"
	envPrefix  = "MELODIST"
)

// Config holds all configuration for melodist.
type Config struct {
	Solver        SolverConfig        `mapstructure:"solver"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Server        ServerConfig        `mapstructure:"server"`
	Render        RenderConfig        `mapstructure:"render"`
}

// SolverConfig holds solver defaults applied when a problem leaves them unset.
type SolverConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	InstanceLimit      int           `mapstructure:"instance_limit"`
	BeatSearchMeasures int           `mapstructure:"beat_search_measures"`
	AcceptPartials     bool          `mapstructure:"accept_partials"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel maps Level onto a slog level. The level is validated on load.
func (l LoggingConfig) SlogLevel() slog.Level {
	var lvl slog.Level

	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}

	return lvl
}

// JSON reports whether logs are written as JSON.
func (l LoggingConfig) JSON() bool {
	return strings.EqualFold(l.Format, "json")
}

// ObservabilityConfig holds OTLP export settings.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr joins host and port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RenderConfig holds MIDI rendering configuration.
type RenderConfig struct {
	TicksPerQuarter int `mapstructure:"ticks_per_quarter"`
	Velocity        int `mapstructure:"velocity"`
	Channel         int `mapstructure:"channel"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty path searches for melodist.yaml in the working directory,
// ./config and /etc/melodist; a missing file leaves the defaults in place.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/melodist")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("solver.instance_limit", DefaultSolverInstanceLimit)
	viperCfg.SetDefault("solver.accept_partials", DefaultSolverAcceptPartials)
	viperCfg.SetDefault("solver.timeout", DefaultSolverTimeout.String())
	viperCfg.SetDefault("solver.beat_search_measures", DefaultSolverSearchMeasures)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("observability.otlp_endpoint", DefaultObservabilityEndpoint)
	viperCfg.SetDefault("observability.otlp_insecure", DefaultObservabilityInsecure)
	viperCfg.SetDefault("observability.sample_ratio", DefaultObservabilitySampleRatio)

	viperCfg.SetDefault("server.host", DefaultServerHost)
	viperCfg.SetDefault("server.port", DefaultServerPort)

	viperCfg.SetDefault("render.ticks_per_quarter", DefaultRenderTicksPerQuarter)
	viperCfg.SetDefault("render.velocity", DefaultRenderVelocity)
	viperCfg.SetDefault("render.channel", DefaultRenderChannel)
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Solver.InstanceLimit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInstanceLimit, config.Solver.InstanceLimit)
	}

	if config.Solver.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, config.Solver.Timeout)
	}

	if config.Solver.BeatSearchMeasures < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMeasures, config.Solver.BeatSearchMeasures)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(config.Logging.Level)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	switch strings.ToLower(config.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if r := config.Observability.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, r)
	}

	if t := config.Render.TicksPerQuarter; t <= 0 || t > maxTicks {
		return fmt.Errorf("%w: %d", ErrInvalidTicks, t)
	}

	if v := config.Render.Velocity; v <= 0 || v > maxVelocity {
		return fmt.Errorf("%w: %d", ErrInvalidVelocity, v)
	}

	if c := config.Render.Channel; c < 0 || c > maxChannel {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, c)
	}

	return nil
}
