package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/countdown/internal/duckdb"
	"github.com/tinytelemetry/countdown/internal/history"
	"github.com/tinytelemetry/countdown/internal/model"
	"github.com/tinytelemetry/countdown/internal/runtimelog"
	"github.com/tinytelemetry/countdown/internal/socketrpc"
	"github.com/tinytelemetry/countdown/internal/timer"
	"github.com/tinytelemetry/countdown/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var socketPath string
	var standalone bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/countdown/config.yml)")
	flag.StringVar(&socketPath, "socket", "", "override socket path to connect to the countdown service")
	flag.BoolVar(&standalone, "standalone", false, "run the timer in-process instead of connecting to the service")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Countdown TUI - Timer Client\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if socketPath != "" {
		cfg.SocketPath = socketPath
	}

	if err := runTUI(cfg, standalone); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// source bundles what the pages need from either an in-process engine or
// the service.
type source struct {
	ctl     model.TimerControl
	watch   tui.WatchFunc
	history model.HistoryReader
	close   func()
}

func runTUI(cfg cliConfig, standalone bool) error {
	// The program owns the terminal, so logs never fall back to stderr.
	_, cleanupLogger := runtimelog.Configure("countdown-tui", io.Discard)
	defer cleanupLogger()

	var (
		src source
		err error
	)
	if standalone {
		src, err = standaloneSource(cfg)
	} else {
		src, err = serviceSource(cfg)
	}
	if err != nil {
		return err
	}
	defer src.close()

	timerPage := tui.NewTimerPage(src.ctl, src.watch)
	defer timerPage.Close()
	historyPage := tui.NewHistoryPage(src.history, cfg.RefreshInterval, cfg.HistoryLimit)
	app := tui.NewApp(timerPage, historyPage)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

func serviceSource(cfg cliConfig) (source, error) {
	client, err := socketrpc.Dial(cfg.SocketPath)
	if err != nil {
		return source{}, fmt.Errorf("cannot connect to countdown service at %s: %w\nIs the countdown service running? Start it with: countdown (or use -standalone)", cfg.SocketPath, err)
	}
	return source{
		ctl:     client,
		watch:   client.Watch,
		history: client,
		close:   func() { _ = client.Close() },
	}, nil
}

// standaloneSource runs the engine in-process. History is recorded to the
// configured DuckDB file when it can be opened, and disabled otherwise.
func standaloneSource(cfg cliConfig) (source, error) {
	engine := timer.New(timer.WithInterval(cfg.TickInterval))
	src := source{
		ctl:   engine,
		watch: tui.EngineWatch(engine),
		close: engine.Close,
	}
	if !cfg.HistoryEnabled {
		return src, nil
	}

	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		log.Printf("countdown-tui: history disabled: %v", err)
		return src, nil
	}
	recorder := history.NewRecorder(store)
	recorder.Attach(engine)

	src.history = store
	src.close = func() {
		recorder.Close()
		engine.Close()
		_ = store.Close()
	}
	return src, nil
}
