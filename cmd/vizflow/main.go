// Package main implements the vizflow command. It loads a workspace into a
// processor network, runs evaluation passes and optionally keeps serving
// metrics, processor health and network events.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/vizflow/config"
	"github.com/c360/vizflow/evaluator"
	"github.com/c360/vizflow/eventstream"
	"github.com/c360/vizflow/metric"
	"github.com/c360/vizflow/natsclient"
	"github.com/c360/vizflow/network"
	"github.com/c360/vizflow/pkg/worker"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/processors"
	"github.com/c360/vizflow/registry"
	"github.com/c360/vizflow/workspace"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "vizflow"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if err == flag.ErrHelp {
			return
		}
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

// app holds what run wires together.
type app struct {
	cli    *CLIConfig
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	metrics   *metric.MetricsRegistry
	nats      *natsclient.Client
	store     *workspace.Store
	workers   *worker.Pool[worker.Task]
	registry  *registry.Registry
	net       *network.Network
	evaluator *evaluator.Evaluator
	loaded    *workspace.Document
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cli, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		_, _ = fmt.Fprintf(out, "%s version %s (%s)\n", appName, Version, BuildTime)
		return nil
	}

	a := &app{cli: cli, out: out}
	if err := a.loadConfig(); err != nil {
		return err
	}

	a.registry = registry.New()
	if err := processors.Register(a.registry); err != nil {
		return fmt.Errorf("register processors: %w", err)
	}
	if cli.ListClasses {
		for _, info := range a.registry.ListAvailable() {
			_, _ = fmt.Fprintf(out, "%-28s %-10s %s\n", info.ClassIdentifier, info.Category, info.DisplayName)
		}
		return nil
	}

	if cli.Validate {
		return a.validate()
	}

	a.logger.Info("Starting vizflow", "version", Version, "build_time", BuildTime, "config_path", cli.ConfigPath)
	a.metrics = metric.NewMetricsRegistry()

	if err := a.connectNATS(ctx); err != nil {
		return err
	}
	defer a.closeNATS()

	return a.serve(ctx)
}

// loadConfig merges the config file over defaults and applies the log
// flags, which win over the file.
func (a *app) loadConfig() error {
	loader := config.NewLoader()
	if a.cli.ConfigPath != "" {
		loader.AddLayer(a.cli.ConfigPath)
	}
	loader.EnableValidation(true)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.cli.LogLevel != "" {
		cfg.Log.Level = a.cli.LogLevel
	}
	if a.cli.LogFormat != "" {
		cfg.Log.Format = a.cli.LogFormat
	}
	a.cfg = cfg
	a.logger = setupLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) validate() error {
	if a.cli.WorkspacePath != "" {
		doc, err := workspace.ReadFile(a.cli.WorkspacePath)
		if err != nil {
			return fmt.Errorf("invalid workspace: %w", err)
		}
		for _, p := range doc.Processors {
			if !a.registry.HasFactory(p.Class) {
				return fmt.Errorf("invalid workspace: processor %s has unknown class %s", p.Identifier, p.Class)
			}
		}
		a.logger.Info("Workspace is valid", "workspace", doc.String())
	}
	a.logger.Info("Configuration is valid", "config", a.cfg.String())
	return nil
}

func (a *app) connectNATS(ctx context.Context) error {
	natsCfg := a.cfg.NATS
	needStore := a.cli.WorkspaceID != "" || a.cli.SaveToStore
	if len(natsCfg.URLs) == 0 {
		if needStore {
			return fmt.Errorf("the workspace store needs nats.urls in the configuration")
		}
		return nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithLogger(a.logger),
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(natsCfg.MaxReconnects),
	}
	if natsCfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(natsCfg.ReconnectWait))
	}
	if natsCfg.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(natsCfg.Timeout))
	}
	if natsCfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(natsCfg.Username, natsCfg.Password))
	}
	if natsCfg.Token != "" {
		opts = append(opts, natsclient.WithToken(natsCfg.Token))
	}

	client, err := natsclient.NewClient(strings.Join(natsCfg.URLs, ","), opts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	core := a.metrics.CoreMetrics()
	client.OnHealthChange(core.RecordNATSStatus)

	a.logger.Info("Connecting to NATS", "urls", natsCfg.URLs)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(context.Background())
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	a.nats = client

	if needStore {
		store, err := workspace.NewStore(ctx, client, natsCfg.Bucket, a.logger)
		if err != nil {
			return fmt.Errorf("open workspace store: %w", err)
		}
		a.store = store
	}
	return nil
}

func (a *app) closeNATS() {
	if a.nats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cli.ShutdownTimeout)
	defer cancel()
	if err := a.nats.Close(ctx); err != nil {
		a.logger.Warn("NATS close failed", "error", err)
	}
}

// buildNetwork creates the network and evaluator sharing one mailbox, so
// asynchronous processors hand results back to the evaluation goroutine.
func (a *app) buildNetwork() {
	mailbox := evaluator.NewMailbox(a.cfg.Evaluator.MailboxSize)
	a.workers = worker.NewTaskPool(a.cfg.Workers.Count, a.cfg.Workers.QueueSize,
		worker.WithMetricsRegistry[worker.Task](a.metrics, "processor_workers"),
		worker.WithErrorHandler(func(_ worker.Task, err error) {
			a.logger.Warn("Background task failed", "error", err)
		}),
	)

	a.net = network.New(network.Dependencies{
		Registry:        a.registry,
		Logger:          a.logger,
		MetricsRegistry: a.metrics,
		Processor: processor.Dependencies{
			Logger:          a.logger,
			MetricsRegistry: a.metrics,
			Workers:         a.workers,
			Dispatcher:      mailbox,
		},
	})
	a.evaluator = evaluator.New(a.net, evaluator.Config{
		MaxPassRate: a.cfg.Evaluator.MaxPassRate,
		Burst:       a.cfg.Evaluator.Burst,
		MailboxSize: a.cfg.Evaluator.MailboxSize,
	}, evaluator.Dependencies{
		Logger:          a.logger,
		MetricsRegistry: a.metrics,
		Mailbox:         mailbox,
	})
}

func (a *app) loadWorkspace(ctx context.Context) error {
	var doc *workspace.Document
	switch {
	case a.cli.WorkspacePath != "":
		d, err := workspace.ReadFile(a.cli.WorkspacePath)
		if err != nil {
			return fmt.Errorf("read workspace: %w", err)
		}
		doc = d
	case a.cli.WorkspaceID != "":
		rec, err := a.store.Get(ctx, a.cli.WorkspaceID)
		if err != nil {
			return fmt.Errorf("fetch workspace %s: %w", a.cli.WorkspaceID, err)
		}
		doc = rec.Document
	default:
		a.logger.Info("No workspace given, starting with an empty network")
		return nil
	}

	report, err := workspace.Deserialize(a.net, doc)
	if err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}
	for _, itemErr := range report.Errors {
		a.logger.Warn("Workspace entry skipped", "error", itemErr)
	}
	a.loaded = doc
	return nil
}

// save runs on the evaluation goroutine after the last requested pass.
func (a *app) save(ctx context.Context) error {
	doc := workspace.Serialize(a.net)
	if a.loaded != nil {
		doc.ID, doc.Name, doc.Setup = a.loaded.ID, a.loaded.Name, a.loaded.Setup
	}
	if a.cli.SavePath != "" {
		if err := workspace.WriteFile(a.cli.SavePath, doc); err != nil {
			return err
		}
		a.logger.Info("Workspace written", "path", a.cli.SavePath)
	}
	if a.cli.SaveToStore && a.store != nil {
		rec, err := a.store.Save(ctx, doc)
		if err != nil {
			return err
		}
		a.logger.Info("Workspace stored", "id", rec.ID, "version", rec.Version)
	}
	a.net.SetModified(false)
	return nil
}

func (a *app) eventSinks(hub *eventstream.Hub) []eventstream.Sink {
	var sinks []eventstream.Sink
	if a.cfg.Events.NATSEnabled && a.nats != nil {
		sinks = append(sinks, eventstream.NewNATSPublisher(a.nats, a.cfg.Events.SubjectPrefix))
	}
	if hub != nil {
		sinks = append(sinks, hub)
	}
	return sinks
}

func (a *app) serve(ctx context.Context) error {
	a.buildNetwork()
	defer a.evaluator.Close()

	if err := a.workers.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	defer func() {
		if err := a.workers.Stop(a.cli.ShutdownTimeout); err != nil {
			a.logger.Warn("Worker pool stop failed", "error", err)
		}
	}()

	if err := a.loadWorkspace(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var hub *eventstream.Hub
	if a.cli.Serve {
		hub = eventstream.NewHub(a.logger)
		defer hub.Close()
	}
	if sinks := a.eventSinks(hub); len(sinks) > 0 {
		fwd := eventstream.NewForwarder(a.net, eventstream.DefaultConfig(), eventstream.Dependencies{
			Logger:          a.logger,
			MetricsRegistry: a.metrics,
		}, sinks...)
		g.Go(func() error { return fwd.Run(gctx) })
	}

	if a.cli.Serve && a.cfg.Metrics.Enabled {
		server := metric.NewServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path, a.metrics)
		server.Handle("/health/processors", a.evaluator.Health().Handler(appName))
		server.Handle(a.cfg.Events.WebSocketPath, hub)
		a.logger.Info("Serving metrics and events", "metrics", server.Address(), "events", a.cfg.Events.WebSocketPath)
		g.Go(func() error { return server.Start(gctx) })
	}

	passes := 0
	var saveErr error
	sub := a.evaluator.OnReport(func(r evaluator.Report) {
		passes++
		a.logger.Info("Evaluation pass",
			"pass", r.Pass, "processed", len(r.Processed), "failed", len(r.Failed),
			"skipped", len(r.Skipped), "duration", r.Duration)
		for id, err := range r.Failed {
			a.logger.Warn("Processor failed", "processor", id, "error", err)
		}

		if passes < a.cli.Passes {
			a.evaluator.Signal()
			return
		}
		if passes == a.cli.Passes {
			saveErr = a.save(gctx)
			if !a.cli.Serve {
				cancel()
			}
		}
	})
	defer sub.Unsubscribe()

	g.Go(func() error { return a.evaluator.Run(gctx) })

	if err := g.Wait(); err != nil {
		return err
	}
	if saveErr != nil {
		return fmt.Errorf("save workspace: %w", saveErr)
	}
	return nil
}
