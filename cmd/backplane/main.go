// Command backplane runs the shared-memory backplane: the event bus, log
// collector, whiteboard listener, and every store-backed module, wired
// together and exposed over HTTP.
//
// Usage:
//
//	backplane serve --config config.yaml
//	backplane validate --config config.yaml
//	backplane promote --config config.yaml --title "Q3 migration" --plan plan.md
//	backplane version
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/backplane/internal/agentregistry"
	"github.com/kadirpekel/backplane/internal/audit"
	"github.com/kadirpekel/backplane/internal/autoarchive"
	"github.com/kadirpekel/backplane/internal/bus"
	"github.com/kadirpekel/backplane/internal/conductorlog"
	"github.com/kadirpekel/backplane/internal/config"
	"github.com/kadirpekel/backplane/internal/council"
	"github.com/kadirpekel/backplane/internal/ctxboard"
	"github.com/kadirpekel/backplane/internal/embedding"
	"github.com/kadirpekel/backplane/internal/handoff"
	"github.com/kadirpekel/backplane/internal/httpserver"
	"github.com/kadirpekel/backplane/internal/llm"
	"github.com/kadirpekel/backplane/internal/logcollector"
	"github.com/kadirpekel/backplane/internal/logging"
	"github.com/kadirpekel/backplane/internal/memory"
	"github.com/kadirpekel/backplane/internal/observability"
	"github.com/kadirpekel/backplane/internal/pattern"
	"github.com/kadirpekel/backplane/internal/planpromoter"
	"github.com/kadirpekel/backplane/internal/vectorstore"
	"github.com/kadirpekel/backplane/internal/whiteboard"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the backplane HTTP server and background loops."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Promote  PromoteCmd  `cmd:"" help:"Promote a markdown plan into a project and tasks."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or colored)."`
}

// VersionCmd prints build version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("backplane version %s\n", version)
	return nil
}

// ValidateCmd loads and validates a config file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	loader := config.NewLoader(cli.Config)
	if _, err := loader.Load(); err != nil {
		return err
	}
	fmt.Println("configuration is valid")
	return nil
}

// PromoteCmd invokes the plan promoter outside of the HTTP surface, for
// operators feeding a plan document directly from the command line.
type PromoteCmd struct {
	Title string `help:"Project title." required:""`
	Plan  string `name:"plan" help:"Path to the markdown plan document." type:"path" required:""`
}

func (c *PromoteCmd) Run(cli *CLI) error {
	_ = config.LoadEnvFiles()
	loader := config.NewLoader(cli.Config)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	planBytes, err := os.ReadFile(c.Plan)
	if err != nil {
		return fmt.Errorf("read plan document: %w", err)
	}

	if cfg.AnthropicAPIKey == "" {
		return fmt.Errorf("promote requires anthropic_api_key to be configured")
	}
	llmCfg := &llm.Config{APIKey: cfg.AnthropicAPIKey}
	llmCfg.SetDefaults()
	client, err := llm.NewAnthropicClient(llmCfg)
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}
	defer client.Close()

	store, err := planpromoter.NewStore(planpromoter.Config{
		Driver:           cfg.Database.Dialect(),
		ConnectionString: cfg.Database.ConnectionString,
	})
	if err != nil {
		return fmt.Errorf("open plan promoter store: %w", err)
	}
	defer store.Close()

	promoter := planpromoter.NewPromoter(client, store)
	project, tasks, err := promoter.Promote(context.Background(), c.Title, string(planBytes))
	if err != nil {
		return err
	}
	fmt.Printf("created project %s with %d tasks\n", project.ID, len(tasks))
	return nil
}

// ServeCmd starts the HTTP server and every background loop.
type ServeCmd struct {
	Port    int  `help:"Port to listen on, overriding config/env."`
	Observe bool `help:"Enable OpenTelemetry tracing in addition to Prometheus metrics."`
	Watch   bool `help:"Watch the config file for changes and hot-reload the log level."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	_ = config.LoadEnvFiles()

	loader := config.NewLoader(cli.Config, config.WithOnChange(func(cfg *config.Config) {
		if lvl, err := logging.ParseLevel(cfg.LogLevel); err == nil {
			slog.Info("config changed: applying new log level", "level", cfg.LogLevel)
			logFile, _, _ := openLogFile(cfg.LogFile)
			logging.Init(lvl, logFile, cfg.LogFormat)
		}
	}))
	defer loader.Close()

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.LogFile != "" {
		cfg.LogFile = cli.LogFile
	}
	if cli.LogFormat != "" {
		cfg.LogFormat = cli.LogFormat
	}
	if c.Port != 0 {
		cfg.Port = c.Port
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logFile, closeLogFile, err := openLogFile(cfg.LogFile)
	if err != nil {
		return err
	}
	if closeLogFile != nil {
		defer closeLogFile()
	}
	logging.Init(level, logFile, cfg.LogFormat)
	logger := logging.GetLogger()

	if c.Watch {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	obsCfg := &observability.Config{}
	obsCfg.Metrics.Enabled = true
	obsCfg.Tracing.Enabled = c.Observe
	obsManager, err := observability.NewFromConfig(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer obsManager.Shutdown(context.Background())

	b, err := bus.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("init event bus: %w", err)
	}
	defer b.Close()

	db, err := sql.Open(cfg.Database.Dialect().DriverName(), cfg.Database.ConnectionString)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	gateway := embedding.NewGateway(embedder)

	vectorProvider, err := vectorstore.NewProvider(&vectorstore.ProviderConfig{Type: vectorstore.ProviderChromem})
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}

	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmCfg := &llm.Config{APIKey: cfg.AnthropicAPIKey}
		llmCfg.SetDefaults()
		llmClient, err = llm.NewAnthropicClient(llmCfg)
		if err != nil {
			return fmt.Errorf("init llm client: %w", err)
		}
		defer llmClient.Close()
	}

	sqlCfg := &memory.SQLConfig{
		Driver:           memory.Dialect(string(cfg.Database.Dialect())),
		ConnectionString: cfg.Database.ConnectionString,
	}
	sessions, err := memory.NewStore(sqlCfg, gateway, vectorProvider)
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}
	defer sessions.Close()

	sqlutilDialect := cfg.Database.Dialect()
	dsn := cfg.Database.ConnectionString

	patternStore, err := pattern.NewStore(pattern.Config{Driver: sqlutilDialect, ConnectionString: dsn}, gateway, vectorProvider)
	if err != nil {
		return fmt.Errorf("init pattern store: %w", err)
	}
	defer patternStore.Close()
	var extractor *pattern.Extractor
	if llmClient != nil {
		extractor = pattern.NewExtractor(llmClient, patternStore)
	}

	agents, err := agentregistry.NewStore(agentregistry.Config{Driver: sqlutilDialect, ConnectionString: dsn})
	if err != nil {
		return fmt.Errorf("init agent registry: %w", err)
	}
	defer agents.Close()

	ctxBoard, err := ctxboard.NewStore(ctxboard.Config{Driver: sqlutilDialect, ConnectionString: dsn})
	if err != nil {
		return fmt.Errorf("init context board: %w", err)
	}
	defer ctxBoard.Close()

	handoffs, err := handoff.NewStore(handoff.Config{Driver: sqlutilDialect, ConnectionString: dsn})
	if err != nil {
		return fmt.Errorf("init handoff store: %w", err)
	}
	defer handoffs.Close()

	councilStore, err := council.NewStore(council.Config{Driver: sqlutilDialect, ConnectionString: dsn})
	if err != nil {
		return fmt.Errorf("init council store: %w", err)
	}
	defer councilStore.Close()

	conductorLog, err := conductorlog.NewStore(conductorlog.Config{Driver: sqlutilDialect, ConnectionString: dsn})
	if err != nil {
		return fmt.Errorf("init conductor log: %w", err)
	}
	defer conductorLog.Close()

	auditStore, err := audit.NewStore(audit.Config{Driver: sqlutilDialect, ConnectionString: dsn})
	if err != nil {
		return fmt.Errorf("init audit log: %w", err)
	}
	defer auditStore.Close()

	whiteboardStore, err := whiteboard.NewStore(whiteboard.Config{Driver: sqlutilDialect, ConnectionString: dsn})
	if err != nil {
		return fmt.Errorf("init whiteboard store: %w", err)
	}
	defer whiteboardStore.Close()
	whiteboardListener, err := whiteboard.NewListener(ctx, b, whiteboardStore, logger)
	if err != nil {
		return fmt.Errorf("init whiteboard listener: %w", err)
	}

	planStore, err := planpromoter.NewStore(planpromoter.Config{Driver: sqlutilDialect, ConnectionString: dsn})
	if err != nil {
		return fmt.Errorf("init plan promoter store: %w", err)
	}
	defer planStore.Close()
	sweeper := autoarchive.New(planStore, autoarchive.Config{}, logger)

	collector := logcollector.New(b, logger)

	srv := &httpserver.Server{
		Bus:           b,
		DB:            db,
		Sessions:      sessions,
		Patterns:      patternStore,
		Extractor:     extractor,
		Agents:        agents,
		Context:       ctxBoard,
		Handoffs:      handoffs,
		Council:       councilStore,
		ConductorLog:  conductorLog,
		Audit:         auditStore,
		Whiteboard:    whiteboardListener,
		Observability: obsManager,
		Logger:        logger,
	}

	httpSrv := &httpServer{addr: fmt.Sprintf(":%d", cfg.Port), handler: srv.Router()}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return whiteboardListener.Run(groupCtx) })
	group.Go(func() error {
		collector.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		sweeper.Run(groupCtx)
		return nil
	})
	group.Go(func() error { return httpSrv.Start(groupCtx) })

	logger.Info("backplane starting", "port", cfg.Port, "redis", cfg.RedisURL != "", "anthropic", cfg.AnthropicAPIKey != "")
	return group.Wait()
}

func openLogFile(path string) (*os.File, func(), error) {
	if path == "" {
		return nil, nil, nil
	}
	f, cleanup, err := logging.OpenLogFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, cleanup, nil
}

func buildEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, nil
	}
	embCfg := &embedding.Config{Type: embedding.ProviderOpenAI, APIKey: cfg.OpenAIAPIKey}
	embCfg.SetDefaults()
	return embedding.NewEmbedder(embCfg)
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	parseCtx := kong.Parse(&cli,
		kong.Name("backplane"),
		kong.Description("Multi-agent shared-memory backplane"),
		kong.UsageOnError(),
	)

	if err := parseCtx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
