// Command codesize-smoke checks that no EVM contract deployed on a Substrate
// chain carries bytecode larger than the EVM code size limit.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/tkmct/substrate-smoke/smoke"
	"github.com/tkmct/substrate-smoke/substrate"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configFileFlag    = "config"
	rpcFlag           = "rpc"
	blockNumberFlag   = "block-number"
	pageSizeFlag      = "page-size"
	maxCodeSizeFlag   = "max-code-size"
	rpcRateFlag       = "rpc.rate"
	rpcBurstFlag      = "rpc.burst"
	rpcTimeoutFlag    = "rpc.timeout"
	timeoutFlag       = "timeout"
	verbosityFlag     = "verbosity"
	logFormatFlag     = "log.format"
	logFileFlag       = "log.file"
	logMaxSizeFlag    = "log.maxsize"
	logMaxBackupsFlag = "log.maxbackups"
	logCompressFlag   = "log.compress"
)

var app = newApp()

// newApp builds the CLI with a fresh set of flags.
func newApp() *cli.App {
	def := defaultConfig()
	return &cli.App{
		Name:  "codesize-smoke",
		Usage: "Check that no deployed EVM contract exceeds the code size limit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  configFileFlag,
				Usage: "TOML configuration file",
			},
			&cli.StringFlag{
				Name:    rpcFlag,
				Usage:   "Substrate node RPC endpoint (ws:// or http://)",
				Value:   def.RPCEndpoint,
				EnvVars: []string{"SMOKE_RPC"},
			},
			&cli.Uint64Flag{
				Name:    blockNumberFlag,
				Usage:   "Block to pin the scan to (default: finalized head)",
				EnvVars: []string{"BLOCK_NUMBER"},
			},
			&cli.IntFlag{
				Name:  pageSizeFlag,
				Usage: "Storage keys per page and values per batch",
				Value: def.PageSize,
			},
			&cli.IntFlag{
				Name:  maxCodeSizeFlag,
				Usage: "Largest accepted contract bytecode in bytes",
				Value: def.MaxCodeSize,
			},
			&cli.Float64Flag{
				Name:  rpcRateFlag,
				Usage: "Maximum RPC requests per second (0 = unlimited)",
				Value: def.RateLimit,
			},
			&cli.IntFlag{
				Name:  rpcBurstFlag,
				Usage: "RPC requests allowed past the rate limit at once",
				Value: def.RateBurst,
			},
			&cli.DurationFlag{
				Name:  rpcTimeoutFlag,
				Usage: "Timeout of a single RPC request (0 = none)",
				Value: def.RPCTimeout,
			},
			&cli.DurationFlag{
				Name:  timeoutFlag,
				Usage: "Maximum run time of the suite (0 = none)",
				Value: def.Timeout,
			},
			&cli.IntFlag{
				Name:  verbosityFlag,
				Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
				Value: def.Log.Verbosity,
			},
			&cli.StringFlag{
				Name:  logFormatFlag,
				Usage: "Log format to use (terminal, logfmt, json)",
				Value: def.Log.Format,
			},
			&cli.StringFlag{
				Name:  logFileFlag,
				Usage: "Write logs to a rotated file instead of stderr",
			},
			&cli.IntFlag{
				Name:  logMaxSizeFlag,
				Usage: "Maximum size in MB of a single log file",
				Value: def.Log.MaxSizeMB,
			},
			&cli.IntFlag{
				Name:  logMaxBackupsFlag,
				Usage: "Maximum number of rotated log files to keep",
				Value: def.Log.MaxBackups,
			},
			&cli.BoolFlag{
				Name:  logCompressFlag,
				Usage: "Compress rotated log files",
			},
		},
		Action: runSmoke,
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSmoke(ctx *cli.Context) error {
	cfg, err := buildConfigFromCLI(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	closer, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	sigctx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := substrate.Dial(sigctx, cfg.RPCEndpoint, cfg.clientConfig())
	if err != nil {
		return err
	}
	defer client.Close()

	return runSuites(sigctx, client, cfg, colorable.NewColorableStdout())
}

// runSuites runs every smoke suite against node and prints the summary.
func runSuites(ctx context.Context, node smoke.Node, cfg *Config, out io.Writer) error {
	log.Info("Starting smoke suite", "suite", smoke.CodeSizeSuiteID, "title", smoke.CodeSizeSuiteTitle, "rpc", cfg.RPCEndpoint)

	results := smoke.NewResults(out)
	suite := smoke.NewCodeSizeSuite(node, cfg.suiteConfig(), log.Root())
	err := suite.Run(ctx, results)
	results.Print()

	log.Info("Smoke run finished", "passed", results.Passed, "failed", results.Failed, "requests", substrate.RequestCount())
	return err
}

// buildConfigFromCLI layers the config file (if any) over the defaults and
// explicitly set flags over both.
func buildConfigFromCLI(ctx *cli.Context) (*Config, error) {
	cfg := defaultConfig()
	if file := ctx.String(configFileFlag); file != "" {
		if err := loadConfig(file, cfg); err != nil {
			return nil, err
		}
	}
	if ctx.IsSet(rpcFlag) {
		cfg.RPCEndpoint = ctx.String(rpcFlag)
	}
	if ctx.IsSet(blockNumberFlag) {
		n := ctx.Uint64(blockNumberFlag)
		cfg.BlockNumber = &n
	}
	if ctx.IsSet(pageSizeFlag) {
		cfg.PageSize = ctx.Int(pageSizeFlag)
	}
	if ctx.IsSet(maxCodeSizeFlag) {
		cfg.MaxCodeSize = ctx.Int(maxCodeSizeFlag)
	}
	if ctx.IsSet(rpcRateFlag) {
		cfg.RateLimit = ctx.Float64(rpcRateFlag)
	}
	if ctx.IsSet(rpcBurstFlag) {
		cfg.RateBurst = ctx.Int(rpcBurstFlag)
	}
	if ctx.IsSet(rpcTimeoutFlag) {
		cfg.RPCTimeout = ctx.Duration(rpcTimeoutFlag)
	}
	if ctx.IsSet(timeoutFlag) {
		cfg.Timeout = ctx.Duration(timeoutFlag)
	}
	if ctx.IsSet(verbosityFlag) {
		cfg.Log.Verbosity = ctx.Int(verbosityFlag)
	}
	if ctx.IsSet(logFormatFlag) {
		cfg.Log.Format = ctx.String(logFormatFlag)
	}
	if ctx.IsSet(logFileFlag) {
		cfg.Log.File = ctx.String(logFileFlag)
	}
	if ctx.IsSet(logMaxSizeFlag) {
		cfg.Log.MaxSizeMB = ctx.Int(logMaxSizeFlag)
	}
	if ctx.IsSet(logMaxBackupsFlag) {
		cfg.Log.MaxBackups = ctx.Int(logMaxBackupsFlag)
	}
	if ctx.IsSet(logCompressFlag) {
		cfg.Log.Compress = ctx.Bool(logCompressFlag)
	}
	return cfg, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogging installs the default logger. The returned closer flushes the
// log file, if one is used.
func setupLogging(cfg LogConfig) (io.Closer, error) {
	var (
		output   io.Writer = colorable.NewColorableStderr()
		useColor           = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		closer   io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		output, closer, useColor = rotating, rotating, false
	}
	handler, err := newLogHandler(output, cfg, useColor)
	if err != nil {
		return nil, err
	}
	log.SetDefault(log.NewLogger(handler))
	return closer, nil
}

func newLogHandler(w io.Writer, cfg LogConfig, useColor bool) (slog.Handler, error) {
	level := log.FromLegacyLevel(cfg.Verbosity)
	switch cfg.Format {
	case "", "terminal":
		return log.NewTerminalHandlerWithLevel(w, level, useColor), nil
	case "logfmt":
		return log.LogfmtHandlerWithLevel(w, level), nil
	case "json":
		return log.JSONHandlerWithLevel(w, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
