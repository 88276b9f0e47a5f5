// Package main is the entry point for the spread monitor.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/spread-monitor/business/broadcast"
	broadcastDomain "github.com/fd1az/spread-monitor/business/broadcast/domain"
	"github.com/fd1az/spread-monitor/business/monitor"
	monitorApp "github.com/fd1az/spread-monitor/business/monitor/app"
	monitorDI "github.com/fd1az/spread-monitor/business/monitor/di"
	"github.com/fd1az/spread-monitor/business/pricing"
	"github.com/fd1az/spread-monitor/internal/apm"
	"github.com/fd1az/spread-monitor/internal/config"
	"github.com/fd1az/spread-monitor/internal/health"
	"github.com/fd1az/spread-monitor/internal/logger"
	"github.com/fd1az/spread-monitor/internal/metrics"
	"github.com/fd1az/spread-monitor/internal/monolith"
	"github.com/fd1az/spread-monitor/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	tuiMode := flag.Bool("tui", false, "Run the terminal dashboard instead of logging to stderr")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("spread-monitor %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !*tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, *tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	// In TUI mode logs would corrupt the screen.
	var out io.Writer = os.Stderr
	if tuiMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, apm.TraceID)
	log.Info(ctx, "starting spread monitor",
		"version", version,
		"environment", cfg.App.Environment,
		"pairs", len(cfg.Pairs),
	)

	stopTelemetry, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&pricing.Module{},   // feeds and the price store
		&broadcast.Module{}, // hub and subscriber socket, depends on pricing
		&monitor.Module{},   // event loop, depends on both
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	coord := monitorDI.GetCoordinator(mono.Services())

	healthServer := health.NewServer(cfg.Health.Port, version, log)
	registerChecks(healthServer, coord, len(cfg.Pairs))
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "addr", healthServer.Addr())
	}
	defer healthServer.Stop(context.Background())

	start := func() error {
		if err := mono.StartModules(ctx, modules...); err != nil {
			return fmt.Errorf("failed to start modules: %w", err)
		}
		return nil
	}
	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		coord.Stop(stopCtx)
	}

	if tuiMode {
		return runTUI(ctx, cfg, coord, start, stop)
	}
	return runCLI(ctx, log, start, stop)
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	tp, err := apm.NewTraceProvider(log, apm.ParseProvider(cfg.Telemetry.Provider), apm.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     apm.ParseHeaders(cfg.Telemetry.OTLPHeaders),
	})
	if err != nil {
		return nil, err
	}

	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	}
	if p := apm.ParseProvider(cfg.Telemetry.Provider); p == apm.OTLPGRPCProvider {
		opts = append(opts, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(
			cfg.Telemetry.OTLPEndpoint,
			apm.ParseHeaders(cfg.Telemetry.OTLPHeaders),
			strings.HasPrefix(cfg.Telemetry.OTLPEndpoint, "http://"),
		)))
	}
	mp, err := metrics.NewMetricProvider(opts...)
	if err != nil {
		_ = tp.Stop()
		return nil, err
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	prom := metrics.NewPromServer(log, metrics.WithPort(strconv.Itoa(port)))
	if err := prom.Start(); err != nil {
		log.Warn(ctx, "failed to start metrics server", "error", err)
	}

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = prom.Stop(stopCtx)
		_ = mp.Shutdown(stopCtx)
		_ = tp.Stop()
	}, nil
}

func registerChecks(s *health.Server, coord *monitorApp.Coordinator, pairs int) {
	s.RegisterCheck("exchange_stream", func(context.Context) (bool, string) {
		if coord.Status().ExchangeConnected {
			return true, "streaming"
		}
		return false, "disconnected"
	})
	s.RegisterCheck("onchain_markets", func(context.Context) (bool, string) {
		st := coord.Status()
		return st.OnChainReady, fmt.Sprintf("%d of %d resolved", len(st.Markets), pairs)
	})
	s.RegisterCheck("subscribers", func(context.Context) (bool, string) {
		return true, fmt.Sprintf("%d connected", coord.Status().Clients)
	})
}

func runCLI(ctx context.Context, log logger.LoggerInterface, start func() error, stop func()) error {
	if err := start(); err != nil {
		stop()
		return err
	}
	log.Info(ctx, "all modules started, monitoring spreads")

	<-ctx.Done()

	log.Info(ctx, "shutting down")
	stop()
	return nil
}

func runTUI(ctx context.Context, cfg *config.Config, coord *monitorApp.Coordinator, start func() error, stop func()) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	p := tea.NewProgram(ui.New(cfg.Spread.Threshold()), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := start(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			stop()
			errCh <- err
			return
		}

		feed := ui.NewFeed(cfg.Server.SendBuffer)
		if err := coord.Attach(feed, broadcastDomain.Topic{All: true}); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
		}
		go feed.Run(ctx, ui.Send)
		go pollStatus(ctx, coord)

		<-ctx.Done()
		stop()
		errCh <- nil
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Quitting from the TUI must also tear the monitor down.
	select {
	case err := <-errCh:
		return err
	default:
		stop()
		return nil
	}
}

func pollStatus(ctx context.Context, coord *monitorApp.Coordinator) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := coord.Status()
			ui.Send(ui.StatusMsg{
				ExchangeConnected: st.ExchangeConnected,
				OnChainReady:      st.OnChainReady,
				Markets:           st.Markets,
				Clients:           st.Clients,
			})
		}
	}
}
