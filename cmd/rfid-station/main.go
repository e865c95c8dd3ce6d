package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openmensa/rfid-station/internal/api"
	"github.com/openmensa/rfid-station/internal/config"
	"github.com/openmensa/rfid-station/internal/core"
	"github.com/openmensa/rfid-station/internal/install"
	"github.com/openmensa/rfid-station/internal/logging"
	"github.com/openmensa/rfid-station/internal/service"
	"github.com/openmensa/rfid-station/internal/settings"
	"github.com/openmensa/rfid-station/internal/store"
	"github.com/openmensa/rfid-station/internal/store/memory"
	"github.com/openmensa/rfid-station/internal/store/sqlite"
)

func main() {
	// Define flags
	versionFlag := flag.Bool("version", false, "Print version information and exit")

	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "RFID Station - cafeteria card scan service\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  rfid-station [flags]\n")
		fmt.Fprintf(os.Stderr, "  rfid-station <command>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  install     Install systemd user service\n")
		fmt.Fprintf(os.Stderr, "  uninstall   Remove systemd user service\n")
		fmt.Fprintf(os.Stderr, "  version     Print version information\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  RFID_STATION_ADDR    Listen address (default: 127.0.0.1:8730)\n")
		fmt.Fprintf(os.Stderr, "  RFID_READER_NAME     Reader name pattern (default: ACR1252)\n")
		fmt.Fprintf(os.Stderr, "  RFID_SCAN_TIMEOUT    Scan timeout in ms (default: 5000)\n")
		fmt.Fprintf(os.Stderr, "  MOCK_RFID_READER     Force the mock reader (default: false)\n")
		fmt.Fprintf(os.Stderr, "  RFID_STATION_STORE   Store backend: memory | sqlite (default: memory)\n")
		fmt.Fprintf(os.Stderr, "  STATION_ID           Station identity (default: STATION_001)\n")
	}

	flag.Parse()

	// Handle version flag
	if *versionFlag {
		printVersion()
		return
	}

	// Handle commands (non-flag arguments)
	args := flag.Args()
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			return
		case "install":
			if err := install.New().Install(); err != nil {
				log.Fatalf("Failed to install service: %v", err)
			}
			fmt.Println("Service installed successfully")
			return
		case "uninstall":
			if err := install.New().Uninstall(); err != nil {
				log.Fatalf("Failed to uninstall service: %v", err)
			}
			fmt.Println("Service removed successfully")
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			flag.Usage()
			os.Exit(1)
		}
	}

	// Load configuration
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	run(cfg)
}

func printVersion() {
	fmt.Printf("rfid-station %s\n", api.Version)
	fmt.Printf("Build time: %s\n", api.BuildTime)
	fmt.Printf("Git commit: %s\n", api.GitCommit)
}

func run(cfg config.Config) {
	// Initialize logging system
	logging.Init(1000, logging.LevelDebug)
	logger := logging.Get()
	logger.Info(logging.CatSystem, "RFID station starting", map[string]any{
		"version": api.Version,
		"station": cfg.StationID,
	})

	// Crash reporting is opt-in via persisted settings.
	if _, err := settings.Load(); err != nil {
		logger.Warn(logging.CatSystem, "Failed to load settings, using defaults", map[string]any{
			"error": err.Error(),
		})
	}
	sentryEnabled := logging.InitSentry(api.Version, settings.IsCrashReportingEnabled())
	if sentryEnabled {
		defer logging.FlushSentry(2 * time.Second)
	}

	ctx := context.Background()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	users := service.NewUserService(st, logger)
	reservations := service.NewReservationService(st, cfg.StationID, logger)

	history := core.NewHistory(100)
	server := api.NewServer(history, reservations, logger)
	go server.Hub().Run()

	cafeteria := core.CafeteriaInfo{
		Name:    cfg.CafeteriaName,
		Station: cfg.StationID,
	}
	resolver := core.NewResolver(users, reservations, server.Hub(), history, logger, cafeteria, cfg.ScanTimeout)

	supervisor := core.NewSupervisor(core.SupervisorOptions{
		Hardware:  core.NewHardwareTransport(core.PCSCFactory{}, cfg.ReaderName, logger),
		Mock:      &core.MockTransport{},
		ForceMock: cfg.MockReader,
		Resolver:  resolver,
		Publisher: server.Hub(),
		History:   history,
		Log:       logger,
		Config: core.ReaderConfig{
			ScanTimeoutMs: int(cfg.ScanTimeout / time.Millisecond),
			AutoReconnect: cfg.AutoReconnect,
			BeepOnScan:    cfg.BeepOnScan,
		},
	})
	server.SetSupervisor(supervisor)

	if err := supervisor.Initialize(); err != nil {
		log.Fatalf("failed to initialize reader: %v", err)
	}
	supervisor.Start()

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.NewMux(),
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down...")
		logger.Info(logging.CatSystem, "Shutdown requested", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)

		supervisor.Stop()
	}()

	log.Printf("rfid-station %s listening on http://%s\n", api.Version, cfg.Addr)
	log.Printf("WebSocket available at ws://%s/ws\n", cfg.Addr)
	logger.Info(logging.CatSystem, "Server started", map[string]any{
		"address": cfg.Addr,
	})

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// openStore selects the configured backend. The memory store gets demo data
// so a fresh station has cards to scan.
func openStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (store.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		logger.Info(logging.CatStore, "Opening SQLite store", map[string]any{
			"path": cfg.DBPath,
		})
		return sqlite.Open(ctx, cfg.DBPath)
	default:
		logger.Info(logging.CatStore, "Using in-memory store with demo data", nil)
		st := memory.NewStore()
		if err := st.SeedDemo(ctx, time.Now()); err != nil {
			return nil, err
		}
		return st, nil
	}
}
