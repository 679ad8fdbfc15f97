package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chadserv/config"
	"chadserv/failures"
	"chadserv/httpserver"
	"chadserv/logger"
	"chadserv/processor"
	"chadserv/routes"
	"chadserv/storage"
	"chadserv/transcoder"
)

// app is the explicit application context: everything constructed once
// at startup and torn down by shutdown. No process-wide globals.
type app struct {
	cfg       *config.Config
	server    *httpserver.Server
	processor *processor.Processor
	store     *storage.Manager
	faultLog  *failures.Store
}

func (a *app) shutdown() {
	logger.Info("shutting down server")
	a.server.Stop()
	a.processor.Shutdown()
	if err := a.store.Close(); err != nil {
		logger.Errorf("error closing storage: %v", err)
	}
	if err := a.faultLog.Close(); err != nil {
		logger.Errorf("error closing failure store: %v", err)
	}
	logger.Close()
}

func buildApp() *app {
	cfg := config.New()
	if _, err := os.Stat("config/server_config.json"); err != nil {
		logger.Warn("configuration file not found, using defaults")
	} else if err := cfg.LoadFromFile("config/server_config.json"); err != nil {
		logger.Errorf("failed to load configuration, using defaults: %v", err)
	} else {
		logger.Info("configuration loaded successfully")
	}

	storagePath := cfg.GetString("video_processing.storage_path", "storage/processed")
	tempPath := cfg.GetString("video_processing.temp_path", "storage/temp")

	store, err := storage.Open(storagePath)
	if err != nil {
		logger.Fatalf("failed to initialize storage manager: %v", err)
	}

	faultLog, err := failures.Open(cfg.GetString("video_processing.failures_db", "data/failures.db"))
	if err != nil {
		logger.Fatalf("failed to initialize failure store: %v", err)
	}

	poolSize := cfg.GetInt("video_processing.thread_pool_size", 4)
	proc := processor.New(poolSize, transcoder.New(), store, faultLog)
	if err := proc.Initialize(storagePath, tempPath); err != nil {
		logger.Fatalf("failed to initialize video processor: %v", err)
	}
	proc.SetMaxChunks(cfg.GetInt("video_processing.max_chunks", 100))

	if mirrorInfo := cfg.GetStringMap("storage.mirror"); mirrorInfo != nil {
		proc.SetMirror(mirrorInfo)
		logger.Infof("mirror backend configured: %s", mirrorInfo["type"])
	}

	server := httpserver.New(cfg.GetInt("server.port", 8080))
	routes.Register(server, routes.Deps{
		Config:    cfg,
		Processor: proc,
		Store:     store,
		Failures:  faultLog,
	})

	return &app{
		cfg:       cfg,
		server:    server,
		processor: proc,
		store:     store,
		faultLog:  faultLog,
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found")
	}

	if err := os.MkdirAll("logs", 0o755); err == nil {
		if err := logger.Init("logs/server.log", true); err != nil {
			logger.Errorf("failed to initialize log file: %v", err)
		}
	}
	logger.SetLevel(logger.INFO)
	logger.Info("ChadServr starting up")

	a := buildApp()

	// Signal translation: the handler only forwards; shutdown runs on
	// the main goroutine.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	if !a.server.Start() {
		logger.Fatal("failed to start server")
	}

	sig := <-sigs
	logger.Infof("signal received: %v", sig)
	a.shutdown()
	logger.Info("server stopped normally")
}
