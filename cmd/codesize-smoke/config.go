package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/naoina/toml"
	"github.com/tkmct/substrate-smoke/smoke"
	"github.com/tkmct/substrate-smoke/substrate"
)

// maxKeysPerPage is the node side cap of state_getKeysPaged.
const maxKeysPerPage = 1000

// Config holds the smoke runner configuration.
type Config struct {
	RPCEndpoint string
	BlockNumber *uint64 `toml:",omitempty"` // nil = finalized head
	PageSize    int
	MaxCodeSize int
	RateLimit   float64 // Requests per second (0 = unlimited)
	RateBurst   int
	RPCTimeout  time.Duration // Per request (0 = none)
	Timeout     time.Duration // Whole suite (0 = none)
	Log         LogConfig
}

// LogConfig controls log output.
type LogConfig struct {
	Verbosity  int
	Format     string // "terminal", "logfmt" or "json"
	File       string // rotated with lumberjack when set
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

func defaultConfig() *Config {
	return &Config{
		RPCEndpoint: "ws://localhost:9944",
		PageSize:    smoke.DefaultPageSize,
		MaxCodeSize: smoke.MaxCodeSize,
		RateLimit:   substrate.DefaultClientConfig.RateLimit,
		RateBurst:   substrate.DefaultClientConfig.Burst,
		RPCTimeout:  substrate.DefaultClientConfig.Timeout,
		Timeout:     smoke.DefaultSuiteTimeout,
		Log: LogConfig{
			Verbosity:  3,
			Format:     "terminal",
			MaxSizeMB:  100,
			MaxBackups: 10,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if c.PageSize < 1 || c.PageSize > maxKeysPerPage {
		return fmt.Errorf("page-size must be in [1, %d], got %d", maxKeysPerPage, c.PageSize)
	}
	if c.MaxCodeSize < 1 {
		return fmt.Errorf("max-code-size must be > 0")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rpc.rate must be >= 0")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rpc.burst must be > 0 when rpc.rate is set")
	}
	if c.RPCTimeout < 0 || c.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	switch c.Log.Format {
	case "terminal", "logfmt", "json":
	default:
		return fmt.Errorf("log.format must be one of terminal, logfmt, json, got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) clientConfig() substrate.ClientConfig {
	return substrate.ClientConfig{
		RateLimit: c.RateLimit,
		Burst:     c.RateBurst,
		Timeout:   c.RPCTimeout,
	}
}

func (c *Config) suiteConfig() smoke.CodeSizeConfig {
	return smoke.CodeSizeConfig{
		PageSize:    c.PageSize,
		MaxCodeSize: c.MaxCodeSize,
		BlockNumber: c.BlockNumber,
		Timeout:     c.Timeout,
	}
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

func loadConfig(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	var lineErr *toml.LineError
	if errors.As(err, &lineErr) {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}
