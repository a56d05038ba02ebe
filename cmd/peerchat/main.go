package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"peerchat/infrastructure/loopback"
	"peerchat/infrastructure/ws"
	"peerchat/internal"
	"peerchat/repositories"
	"peerchat/runtime"
	"peerchat/runtime/workers"
	"peerchat/services"
	"peerchat/sink"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "peerchat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the daemon and blocks until a signal arrives. Deferred cleanups
// run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(ctx, config, log))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	if config.DebugPort != 0 {
		internal.StartDebugServer(ctx, log, db, config.DebugAddr(), "/inspect", storeMapper)
		log.Info("Store inspector available", "url", fmt.Sprintf("http://%s/inspect", config.DebugAddr()))
	}

	// 3. Session
	history := repositories.NewRoomHistoryRepository(db, log, config.KeyPassphrase)
	messages := repositories.NewMessageRepository(db, blugeWriter, log)
	fanout := workers.NewEventFanout(log, config.SinkTimeout)
	fanout.Add("journal", sink.NewLogSink(log.With("component", "journal")))
	fanout.Add("history", sink.NewMessageStoreSink(messages, log))
	// Only the in-process loopback network is wired: rooms are shared by the
	// UI connections of this daemon and never reach another process.
	network := loopback.NewNetwork(log.With("component", "network"), config.EventBufferSize)
	log.Warn("Using the in-process loopback network, peers in other processes are unreachable")
	session := runtime.NewSession(log, network, history, fanout, config.RestartInterval)
	defer func() {
		if _, err := session.Disconnect(context.Background()); err != nil {
			log.Error("Disconnect failed", "error", err)
		}
	}()

	// 4. Background health reporting
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	supervisor.Add(workers.NewHealthMonitoringWorker(log, config.HealthInterval,
		workers.Gauge{Name: "listeners", Read: session.ActiveListeners},
		workers.Gauge{Name: "sinks", Read: fanout.Len},
	))
	go supervisor.Run(ctx)

	// 5. IPC bridge
	server := ws.NewServer(ws.Config{
		Log:         log,
		Dispatcher:  services.NewCommandRouter(services.NewChatService(log, session, history, messages)),
		Registrar:   fanout,
		ListenAddr:  config.IPCAddr(),
		TokenSecret: []byte(config.IPCTokenSecret),
	})
	if config.IPCTokenSecret == "" {
		log.Warn("IPC_TOKEN_SECRET is empty, any local process can drive the daemon")
	}

	if err := server.Run(ctx); err != nil {
		return exitRuntime, fmt.Errorf("IPC server error: %w", err)
	}
	log.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(ctx context.Context, config internal.Config, log *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if log.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

func storeMapper(key string, val []byte) internal.InspectRow {
	view := repositories.Describe(key, val)
	return internal.InspectRow{
		Key:       view.Key,
		Type:      view.Type,
		Timestamp: view.Timestamp,
		Detail:    view.Detail,
	}
}
