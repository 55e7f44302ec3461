package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"stagehand/internal/config"
	"stagehand/internal/daemon"
	"stagehand/internal/ipc"
	"stagehand/internal/logging"
	"stagehand/internal/preflight"
	"stagehand/internal/replicant"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the stagehand daemon and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("stagehand-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update stagehand.log link: %v\n", err)
	}

	if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); len(failed) > 0 {
		for _, r := range failed {
			logger.Error("preflight check failed",
				logging.String(logging.FieldEventType, "preflight_failed"),
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
		}
		return fmt.Errorf("preflight: %d check(s) failed, first: %s: %s", len(failed), failed[0].Name, failed[0].Detail)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "stagehand.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	// A typed nil *SQLiteStore must not leak into the Store interface.
	var store replicant.Store
	if cfg.Replicants.Persist {
		sqlite, err := replicant.OpenSQLite(cfg.ReplicantDBPath())
		if err != nil {
			logger.Error("open replicant store", logging.Error(err))
			return err
		}
		defer sqlite.Close()
		store = sqlite
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check that no other stagehandd holds the lock and the API address is free"),
		)
		return err
	}

	logger.Info("stagehand daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("api_addr", d.APIAddr()),
		logging.String("socket_path", cfg.SocketPath()),
		logging.String("log_path", logPath),
	)

	<-signalCtx.Done()
	logger.Info("stagehand daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "stagehand.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
