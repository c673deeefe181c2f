package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Source records which configuration layer supplied a setting.
type Source string

// Provenance values reported for effective settings.
const (
	SourceCLI     Source = "cli"
	SourceEnv     Source = "env"
	SourceDefault Source = "default"
	SourceMissing Source = "missing"
)

const (
	// DefaultPort is used when neither --port nor PORT is supplied.
	DefaultPort = 3000
	// DefaultBaseURL is the public Ordiscan API root.
	DefaultBaseURL = "https://api.ordiscan.com/v1"
	// DefaultTimeout bounds every outbound API call.
	DefaultTimeout = 15 * time.Second

	portFlag = "port"
)

// ErrInvalidPort is returned when the flag or PORT carries an unusable value.
var ErrInvalidPort = errors.New("invalid port")

// Sources records the provenance of each effective setting.
type Sources struct {
	Port   Source
	APIKey Source
}

// Config is the effective configuration. It is built once at startup and
// never modified afterwards.
type Config struct {
	Port    int
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Sources Sources
}

type environment struct {
	Port    string        `env:"PORT"`
	APIKey  string        `env:"ORDISCAN_API_KEY"`
	BaseURL string        `env:"ORDISCAN_BASE_URL" envDefault:"https://api.ordiscan.com/v1"`
	Timeout time.Duration `env:"ORDISCAN_TIMEOUT" envDefault:"15s"`
}

// Environ returns the process environment as a map for Resolve.
func Environ() map[string]string {
	return env.ToMap(os.Environ())
}

// MergeDotEnv reads KEY=VALUE pairs from the file at path and adds them to
// environ without overriding keys that are already set. A missing file is not
// an error.
func MergeDotEnv(path string, environ map[string]string) (map[string]string, error) {
	merged := make(map[string]string, len(environ))
	for k, v := range environ {
		merged[k] = v
	}
	fromFile, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return merged, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for k, v := range fromFile {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return merged, nil
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.Int(portFlag, 0, "Port to run the HTTP transport on (overrides PORT env)")
}

// Resolve merges flags, environment and defaults into the effective
// configuration. environ is the process environment as a key/value map; a nil
// map reads nothing. A missing API key is not an error.
func Resolve(fs *pflag.FlagSet, environ map[string]string) (Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}

	var raw environment
	if err := env.ParseWithOptions(&raw, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		APIKey:  raw.APIKey,
		BaseURL: strings.TrimRight(strings.TrimSpace(raw.BaseURL), "/"),
		Timeout: raw.Timeout,
		Sources: Sources{APIKey: SourceMissing},
	}
	if cfg.APIKey != "" {
		cfg.Sources.APIKey = SourceEnv
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	flagPort, flagSet, err := portFromFlags(fs)
	if err != nil {
		return Config{}, err
	}
	port, source, err := resolvePort(flagPort, flagSet, raw.Port, DefaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.Port = port
	cfg.Sources.Port = source

	return cfg, nil
}

func portFromFlags(fs *pflag.FlagSet) (int, bool, error) {
	if fs == nil || fs.Lookup(portFlag) == nil || !fs.Changed(portFlag) {
		return 0, false, nil
	}
	port, err := fs.GetInt(portFlag)
	if err != nil {
		return 0, false, fmt.Errorf("read --%s: %w", portFlag, err)
	}
	return port, true, nil
}

func resolvePort(flagValue int, flagSet bool, envValue string, fallback int) (int, Source, error) {
	if flagSet {
		if !validPort(flagValue) {
			return 0, "", fmt.Errorf("%w: --%s %d", ErrInvalidPort, portFlag, flagValue)
		}
		return flagValue, SourceCLI, nil
	}
	if envValue != "" {
		port, err := strconv.Atoi(strings.TrimSpace(envValue))
		if err != nil || !validPort(port) {
			return 0, "", fmt.Errorf("%w: PORT %q", ErrInvalidPort, envValue)
		}
		return port, SourceEnv, nil
	}
	return fallback, SourceDefault, nil
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

// Report writes the human-readable configuration summary to the diagnostic
// logger. Callers must skip it when stdout carries the protocol stream.
func Report(logger *log.Logger, cfg Config) {
	logger.Info("configuration loaded",
		"port", cfg.Port,
		"port_source", cfg.Sources.Port,
		"base_url", cfg.BaseURL,
		"timeout", cfg.Timeout,
	)
	if cfg.Sources.APIKey == SourceMissing {
		logger.Warn("ORDISCAN_API_KEY is missing; tool calls will be rejected by the API")
		return
	}
	logger.Info("ORDISCAN_API_KEY loaded", "source", cfg.Sources.APIKey)
}
