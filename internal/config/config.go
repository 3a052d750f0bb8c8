package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"keycast.pinglu.dev/internal/dispatch"
	"keycast.pinglu.dev/internal/osc"
	"keycast.pinglu.dev/internal/targets"
)

var ERROR_INVALID_PORT = errors.New("port must be between 1 and 65535")
var ERROR_INVALID_TICK = errors.New("tick-ms must be between 0 and 3600000")
var ERROR_INVALID_MDNS_TIMEOUT = errors.New("mdns-timeout-ms must be between 0 and 60000")
var ERROR_INVALID_ADDRESS = errors.New("invalid OSC address")

const ENV_TARGET = "OSC_TARGET"

const DEFAULT_PORT = 9000
const DEFAULT_TICK_MS = 50
const DEFAULT_MDNS_TIMEOUT_MS = 1000

// Upper bounds for the millisecond settings.
const MAX_TICK_MS = 60 * 60 * 1000
const MAX_MDNS_TIMEOUT_MS = 60 * 1000

// Config holds everything the sender needs before the loop starts.
type Config struct {
	Port          int    `yaml:"port"`
	TickMs        int    `yaml:"tick_ms"`
	Target        string `yaml:"target"`
	Address       string `yaml:"address"`
	MDNS          bool   `yaml:"mdns"`
	MDNSService   string `yaml:"mdns_service"`
	MDNSTimeoutMs int    `yaml:"mdns_timeout_ms"`
	Script        string `yaml:"-"`
	Verbose       bool   `yaml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:          DEFAULT_PORT,
		TickMs:        DEFAULT_TICK_MS,
		Address:       dispatch.DEFAULT_ADDRESS,
		MDNSService:   targets.DEFAULT_MDNS_SERVICE,
		MDNSTimeoutMs: DEFAULT_MDNS_TIMEOUT_MS,
	}
}

func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

func (c *Config) MDNSTimeout() time.Duration {
	return time.Duration(c.MDNSTimeoutMs) * time.Millisecond
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: got %d", ERROR_INVALID_PORT, c.Port)
	}

	if c.TickMs < 0 || c.TickMs > MAX_TICK_MS {
		return fmt.Errorf("%w: got %d", ERROR_INVALID_TICK, c.TickMs)
	}

	if c.MDNSTimeoutMs < 0 || c.MDNSTimeoutMs > MAX_MDNS_TIMEOUT_MS {
		return fmt.Errorf("%w: got %d", ERROR_INVALID_MDNS_TIMEOUT, c.MDNSTimeoutMs)
	}

	if _, err := osc.NewMessage(c.Address); err != nil {
		return fmt.Errorf("%w: %w", ERROR_INVALID_ADDRESS, err)
	}

	return nil
}

// LoadFile overlays a YAML file onto c. A missing file leaves c untouched.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// Load builds the configuration from, lowest to highest precedence:
// defaults, the --config file, the OSC_TARGET environment variable, flags.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	fs := pflag.NewFlagSet("keycast", pflag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	port := fs.Int("port", DEFAULT_PORT, "OSC UDP port")
	tickMs := fs.Int("tick-ms", DEFAULT_TICK_MS, "loop delay in ms")
	target := fs.String("target", "", "unicast target IP or hostname, overrides broadcast (env "+ENV_TARGET+")")
	address := fs.String("address", dispatch.DEFAULT_ADDRESS, "OSC address to send")
	mdns := fs.Bool("mdns", false, "look for receivers advertising "+targets.DEFAULT_MDNS_SERVICE+" before broadcasting")
	fs.StringVar(&cfg.Script, "script", "", "replay these keys instead of reading the terminal ('.' is an idle tick)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}

	if env := strings.TrimSpace(getenv(ENV_TARGET)); env != "" {
		cfg.Target = env
	}

	if fs.Changed("port") {
		cfg.Port = *port
	}
	if fs.Changed("tick-ms") {
		cfg.TickMs = *tickMs
	}
	if fs.Changed("target") {
		cfg.Target = strings.TrimSpace(*target)
	}
	if fs.Changed("address") {
		cfg.Address = *address
	}
	if fs.Changed("mdns") {
		cfg.MDNS = *mdns
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
