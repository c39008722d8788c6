// Command finagent serves the finance assistant over HTTP.
//
//	finagent serve [--config finagent.yaml]
//	finagent tools [--config finagent.yaml] [<tool> <argument>]
//	finagent migrate [--config finagent.yaml] <up|down|status|...>
//	finagent health [--addr http://localhost:8000]
//	finagent version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/BaSui01/finagent/config"
	"github.com/BaSui01/finagent/internal/migration"
	"github.com/BaSui01/finagent/llm/tools"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Set at build time with -ldflags "-X main.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "serve":
		err = serveCommand(ctx, args)
	case "tools":
		err = toolsCommand(ctx, args, os.Stdout)
	case "migrate":
		err = migrateCommand(ctx, args)
	case "health":
		err = healthCommand(ctx, args)
	case "version":
		printVersion(os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "finagent %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// loadConfig parses --config from args and returns the validated config and
// its loader. Remaining args are returned.
func loadConfig(name string, args []string) (*config.Config, *config.Loader, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", os.Getenv("FINAGENT_CONFIG"), "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	loader := config.NewLoader().WithValidator((*config.Config).Validate)
	if *path != "" {
		loader = loader.WithConfigPath(*path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, loader, fs.Args(), nil
}

func serveCommand(ctx context.Context, args []string) error {
	cfg, loader, _, err := loadConfig("serve", args)
	if err != nil {
		return err
	}
	logger, level, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var reloader *config.LevelReloader
	if r, err := config.NewLevelReloader(loader, cfg, level, logger); err == nil {
		reloader = r
	}
	return runServe(ctx, cfg, reloader, logger)
}

// toolsCommand lists the registered tools, or dispatches one invocation
// without the model in the loop.
func toolsCommand(ctx context.Context, args []string, out io.Writer) error {
	cfg, _, rest, err := loadConfig("tools", args)
	if err != nil {
		return err
	}
	app := &application{cfg: cfg, logger: zap.NewNop()}
	if err := app.initTools(); err != nil {
		return err
	}

	if len(rest) == 0 {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, s := range app.registry.Specs() {
			fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Description)
		}
		return tw.Flush()
	}

	obs := app.dispatcher.Dispatch(ctx, tools.Invocation{ToolName: rest[0], Argument: strings.Join(rest[1:], " ")})
	fmt.Fprintln(out, obs.Text)
	if obs.IsError {
		return errors.New("tool reported an error")
	}
	return nil
}

func migrateCommand(ctx context.Context, args []string) error {
	cfg, _, rest, err := loadConfig("migrate", args)
	if err != nil {
		return err
	}
	if len(rest) == 0 || rest[0] == "help" {
		fmt.Println("Usage: finagent migrate [--config <path>] <subcommand>\n\n" + migration.Usage)
		return nil
	}
	if !cfg.Database.Enabled() {
		return errors.New("database.driver is not configured")
	}
	logger, _, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	m, err := migration.NewMigratorFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return migration.NewCLI(m).Run(ctx, rest[0], rest[1:])
}

func healthCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8000", "server address")
	ready := fs.Bool("ready", false, "check readiness instead of liveness")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := "/health"
	if *ready {
		path = "/ready"
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(*addr, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	fmt.Println("OK")
	return nil
}

// newLogger builds the root logger. The returned level can be changed at
// runtime by the config reloader.
func newLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := config.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	encoding := "json"
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "console" {
		encoding = "console"
		enc = zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	zc := zap.Config{
		Level:             level,
		Development:       cfg.Format == "console",
		Encoding:          encoding,
		EncoderConfig:     enc,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("service", "finagent")), level, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "finagent %s\n  build time: %s\n  git commit: %s\n", Version, BuildTime, GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `finagent - finance question answering agent

Usage:
  finagent <command> [options]

Commands:
  serve     Start the HTTP API and metrics servers
  tools     List tools, or run one: finagent tools Calculator "2+2"
  migrate   Run database migrations (finagent migrate help)
  health    Probe a running server
  version   Show build information

Every command except health and version accepts --config <path>. The
FINAGENT_CONFIG environment variable sets the default path, and any
setting can be overridden with FINAGENT_<SECTION>_<KEY>.
`)
}
