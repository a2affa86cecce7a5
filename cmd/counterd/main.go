package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("counterd v%s\n", version)
	fmt.Println("Reactive tick counter daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  counterd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Runs a counter that can be started, paused, stepped up or down on a")
	fmt.Println("  timer, set directly and reset. Controls arrive over a Unix socket")
	fmt.Println("  (counterctl), a WebSocket UI and optional keyboard devices; renders are")
	fmt.Println("  pushed to WebSocket clients.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocketPath)
	fmt.Println()
	fmt.Println("  -ws-listen string")
	fmt.Printf("        WebSocket listen address (default %q)\n", defaultWSListenAddr)
	fmt.Println()
	fmt.Println("  -ws-enabled bool")
	fmt.Println("        Enable the WebSocket surface (default true)")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux input event device for keyboard control (S/P/Up/Down/R)")
	fmt.Println()
	fmt.Println("  -tick-speed-ms int")
	fmt.Printf("        Initial tick period in milliseconds (default %d)\n", defaultTickSpeedMS)
	fmt.Println()
	fmt.Println("  -count-diff int")
	fmt.Printf("        Initial step per tick (default %d)\n", defaultCountDiff)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  TICKCOUNTER_<SECTION>_<KEY> overrides config file values,")
	fmt.Println("  e.g. TICKCOUNTER_COUNTER_TICK_SPEED_MS=100 or TICKCOUNTER_LOGGING_LEVEL=debug")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  counterd")
	fmt.Println("  counterd -config /etc/tickcounter.yaml -log-level debug")
	fmt.Println("  counterd -input-device /dev/input/event3")
	fmt.Println()
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		ipcSocket   = flag.String("ipc-socket", defaultIPCSocketPath, "Unix domain socket path for IPC")
		wsListen    = flag.String("ws-listen", defaultWSListenAddr, "WebSocket listen address")
		wsEnabled   = flag.Bool("ws-enabled", true, "Enable the WebSocket surface")
		inputDevice = flag.String("input-device", "", "Linux input event device for keyboard control")
		tickSpeedMS = flag.Int("tick-speed-ms", defaultTickSpeedMS, "Initial tick period in milliseconds")
		countDiff   = flag.Int("count-diff", defaultCountDiff, "Initial step per tick")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Only explicitly-set flags override the config file / environment.
	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocket
		case "ws-listen":
			overrides.WSListen = wsListen
		case "ws-enabled":
			overrides.WSEnabled = wsEnabled
		case "input-device":
			overrides.InputDevice = inputDevice
		case "tick-speed-ms":
			overrides.TickSpeedMS = tickSpeedMS
		case "count-diff":
			overrides.CountDiff = countDiff
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})

	cfg, err := loadConfig(*configPath, overrides)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level) // validated by loadConfig
	logger := setupLogger(os.Stdout, logLevel)

	logger.Debug("starting counterd", "version", version)
	logger.Debug("configuration",
		"initial_count", cfg.Counter.Count,
		"initial_is_ticking", cfg.Counter.IsTicking,
		"initial_tick_speed_ms", cfg.Counter.TickSpeedMS,
		"initial_count_diff", cfg.Counter.CountDiff,
		"initial_count_up", cfg.Counter.CountUp,
		"set_to_offset", cfg.Counter.SetToOffset,
		"ipc_socket", cfg.IPC.SocketPath,
		"ws_enabled", cfg.WebSocket.Enabled,
		"ws_listen", cfg.WebSocket.Listen,
		"input_devices", cfg.Input.Devices)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("counterd stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

// loadConfig layers defaults, file, environment and flags, then validates.
func loadConfig(path string, overrides FlagOverrides) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// run wires the engine and its surfaces and blocks until ctx is canceled or a
// surface fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	// Central event bus: every control surface sends here; only the engine reads.
	events := make(chan Event, cfg.Engine.EventBuf)

	sinks := multiSink{logSink{logger: logger}}

	// The engine renders into the hub; the server reads the engine's store.
	var hub *Hub
	if cfg.WebSocket.Enabled {
		hub = NewHub(logger, HubConfig{SendBuf: cfg.WebSocket.SendBuf, BroadcastBuf: cfg.WebSocket.BroadcastBuf})
		sinks = append(sinks, newWSRenderSink(hub, systemClock{}, logger))
	}

	engine := NewEngine(cfg.ToEngineConfig(), sinks, systemClock{}, logger)
	store := engine.Store()

	g.Go(func() error {
		runDaemon(ctx, engine, events, logger)
		return nil
	})

	g.Go(func() error {
		runActivityLog(ctx, store, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, events, store, logger)
	})

	if len(cfg.Input.Devices) > 0 {
		g.Go(func() error {
			return runInputAdapter(ctx, cfg.Input.Devices, events, logger)
		})
	}

	if hub != nil {
		wsServer := NewServer(logger, hub, events, store)

		g.Go(func() error {
			hub.Run(ctx)
			return nil
		})

		g.Go(func() error {
			src, cancel := store.Subscribe()
			defer cancel()
			RunBroadcaster(ctx, hub, src, logger)
			return nil
		})

		mux := http.NewServeMux()
		wsServer.Register(mux, cfg.WebSocket.Path)
		httpServer := &http.Server{
			Addr:              cfg.WebSocket.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("ws listening", "addr", cfg.WebSocket.Listen, "path", cfg.WebSocket.Path)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ws server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info("listening", "ipc", cfg.IPC.SocketPath, "ws_enabled", cfg.WebSocket.Enabled, "ws_listen", cfg.WebSocket.Listen)

	return g.Wait()
}
