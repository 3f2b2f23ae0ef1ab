package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/countdown/internal/duckdb"
	"github.com/tinytelemetry/countdown/internal/history"
	"github.com/tinytelemetry/countdown/internal/httpserver"
	"github.com/tinytelemetry/countdown/internal/metrics"
	"github.com/tinytelemetry/countdown/internal/model"
	"github.com/tinytelemetry/countdown/internal/runtimelog"
	"github.com/tinytelemetry/countdown/internal/socketrpc"
	"github.com/tinytelemetry/countdown/internal/timer"
)

// runServer runs the timer engine headless behind the HTTP API and the
// socket RPC server until it receives SIGINT or SIGTERM.
func runServer(cfg appConfig) error {
	logPath, cleanupLogger := runtimelog.Configure("countdown", os.Stderr)
	defer cleanupLogger()

	engine := timer.New(timer.WithInterval(cfg.TickInterval))
	defer engine.Close()
	if cfg.InitialDuration > 0 {
		engine.SetDuration(cfg.InitialDuration)
	}

	// Run history is optional; a nil reader disables the history endpoints.
	var historyReader model.HistoryReader
	if cfg.HistoryEnabled {
		store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		defer store.Close()
		historyReader = store

		retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
			RetentionDays: cfg.HistoryRetention,
		})
		if retentionCleaner != nil {
			defer retentionCleaner.Stop()
		}

		recorder := history.NewRecorder(store)
		recorder.Attach(engine)
		defer recorder.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	timerMetrics := metrics.MustNewMetrics(reg)
	timerMetrics.Attach(engine)
	defer timerMetrics.Detach()

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, engine, historyReader, reg)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for the TUI and countdownctl
	socketUp := true
	sockServer := socketrpc.NewServer(cfg.SocketPath, engine, historyReader)
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
		socketUp = false
	} else {
		defer sockServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	printStartupBanner(cfg, socketUp, logPath)
	log.Printf("countdown: started (tick %s, history %t)", cfg.TickInterval, cfg.HistoryEnabled)

	g, gctx := errgroup.WithContext(ctx)

	// Log every transition so the runtime log doubles as an audit trail.
	g.Go(func() error {
		stop := engine.Watch(func(t model.Transition) {
			if t.Cause == model.CauseTick {
				return
			}
			log.Printf("countdown: %s: %s -> %s", t.Cause, t.From, t.To)
		})
		<-gctx.Done()
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	// Deferred stops run in reverse order: socket, API, metrics, history,
	// then the engine. The signal goroutine dies with the process.
	signal.Stop(sigCh)
	log.Printf("countdown: stopped")

	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

type bannerRow struct {
	on    bool
	label string
	value string
}

type bannerSection struct {
	title string
	rows  []bannerRow
}

func bannerSections(cfg appConfig, socketUp bool, logPath string) []bannerSection {
	api := bannerRow{label: "HTTP API", value: "disabled"}
	metricsRow := bannerRow{label: "Metrics", value: "disabled"}
	if cfg.APIEnabled {
		api = bannerRow{on: true, label: "HTTP API", value: cfg.APIAddr}
		metricsRow = bannerRow{on: true, label: "Metrics", value: cfg.APIAddr + "/metrics"}
	}
	socket := bannerRow{label: "Unix Socket", value: "unavailable"}
	if socketUp {
		socket = bannerRow{on: true, label: "Unix Socket", value: shortenPath(cfg.SocketPath)}
	}

	storage := []bannerRow{{label: "Run History", value: "disabled"}}
	if cfg.HistoryEnabled {
		retention := bannerRow{label: "Retention", value: "keep forever"}
		if cfg.HistoryRetention > 0 {
			retention = bannerRow{on: true, label: "Retention", value: fmt.Sprintf("%d days", cfg.HistoryRetention)}
		}
		storage = []bannerRow{{on: true, label: "Run History", value: shortenPath(cfg.DBPath)}, retention}
	}

	configRow := bannerRow{label: "Config File", value: "default (no file)"}
	if cfg.ConfigPath != "" {
		configRow = bannerRow{on: true, label: "Config File", value: shortenPath(cfg.ConfigPath)}
	}
	logRow := bannerRow{label: "Log File", value: "stderr"}
	if logPath != "" {
		logRow = bannerRow{on: true, label: "Log File", value: shortenPath(logPath)}
	}

	return []bannerSection{
		{title: "Gateway", rows: []bannerRow{api, metricsRow, socket}},
		{title: "Storage", rows: storage},
		{title: "Timer", rows: []bannerRow{
			{on: true, label: "Tick", value: cfg.TickInterval.String()},
			{on: cfg.InitialDuration > 0, label: "Duration", value: fmt.Sprintf("%ds", cfg.InitialDuration)},
		}},
		{title: "Runtime", rows: []bannerRow{configRow, logRow}},
	}
}

func printStartupBanner(cfg appConfig, socketUp bool, logPath string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	logo := cyan.Bold(true).Render(`
    ╔═╗╔═╗╦ ╦╔╗╔╔╦╗╔╦╗╔═╗╦ ╦╔╗╔
    ║  ║ ║║ ║║║║ ║  ║║║ ║║║║║║║
    ╚═╝╚═╝╚═╝╝╚╝ ╩ ═╩╝╚═╝╚╩╝╝╚╝`)
	separator := dim.Render("    " + strings.Repeat("─", 33))

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}
	for _, sec := range bannerSections(cfg, socketUp, logPath) {
		lines = append(lines, bold.Render("    "+sec.title), "")
		for _, row := range sec.rows {
			marker, value := dim.Render("●"), dim.Render(row.value)
			if row.on {
				marker = green.Render("●")
				if sec.title == "Gateway" {
					value = cyan.Render(row.value)
				}
			}
			lines = append(lines, fmt.Sprintf("    %s  %-14s %s", marker, row.label, value))
		}
		lines = append(lines, "")
	}
	lines = append(lines, separator, "",
		"    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
