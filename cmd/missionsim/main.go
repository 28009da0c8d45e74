// Command missionsim runs a scenario through the simulation kernel and
// records the timeline and detection events to the configured backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OCAP2/missionsim/internal/api"
	"github.com/OCAP2/missionsim/internal/config"
	"github.com/OCAP2/missionsim/internal/dispatcher"
	"github.com/OCAP2/missionsim/internal/logging"
	"github.com/OCAP2/missionsim/internal/mission"
	"github.com/OCAP2/missionsim/internal/monitor"
	"github.com/OCAP2/missionsim/internal/scenario"
	"github.com/OCAP2/missionsim/internal/sim"
	"github.com/OCAP2/missionsim/internal/storage"
	"github.com/OCAP2/missionsim/internal/worker"
	"github.com/OCAP2/missionsim/pkg/core"
	"github.com/spf13/viper"
)

// Version and BuildDate can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "missionsim:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 && args[0] == "export" {
		opts, err := parseExportFlags(args[1:])
		if err != nil {
			return err
		}
		return exportRun(opts)
	}

	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	return simulate(ctx, opts)
}

func simulate(ctx context.Context, opts *options) (err error) {
	sessionStart := time.Now()

	configErr := config.Load(opts.ConfigDir)
	if err := config.BindFlags(opts.flags); err != nil {
		return err
	}

	missionCtx := mission.NewContext()
	logManager := logging.NewSlogManager()
	logManager.Context = missionCtx.Attrs

	logOut, closeLogs, err := setupLogging(logManager, sessionStart)
	if err != nil {
		return err
	}
	defer closeLogs()
	logger := logManager.Logger()
	logger.Info("Starting up...", "version", Version, "buildDate", BuildDate)

	if configErr != nil {
		logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		logger.Info("Loaded config", "dir", opts.ConfigDir)
	}

	s, err := scenario.Load(opts.ScenarioPath)
	if err != nil {
		return err
	}

	simCfg := config.GetSimulationConfig()
	k, err := sim.New(
		sim.WithLogger(logger),
		sim.WithWindow(simCfg.StartSec, simCfg.EndSec),
	)
	if err != nil {
		return err
	}
	if err := k.Initialize(s); err != nil {
		return fmt.Errorf("initializing scenario: %w", err)
	}
	logger.Info("Scenario loaded",
		"path", opts.ScenarioPath,
		"teams", len(s.Teams),
		"objects", s.ObjectCount(),
	)

	stores, err := initStorage(ctx, logManager, logOut, sessionStart)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stores.Close(logger); cerr != nil {
			logger.Error("Failed to close storage", "error", cerr)
			err = errors.Join(err, cerr)
		}
	}()

	d, err := dispatcher.New(logging.NewDispatcherLogger(
		logging.NewZerolog(logOut, viper.GetString("logLevel"), "dispatcher"),
	))
	if err != nil {
		return err
	}
	wm := worker.NewManager(worker.Dependencies{
		LogManager:     logManager,
		MissionContext: missionCtx,
		BufferSize:     viper.GetInt("dispatcher.bufferSize"),
	}, stores.backend)
	wm.RegisterHandlers(d)

	metrics, stopMetrics, err := serveMetrics(logger, viper.GetString("metrics.address"))
	if err != nil {
		return err
	}
	defer stopMetrics()

	mon := monitor.NewService(monitor.Dependencies{
		DB:             stores.DB(),
		Influx:         stores.influx,
		LogManager:     logManager,
		MissionContext: missionCtx,
		WorkerManager:  wm,
		Metrics:        metrics,
		StatusDir:      viper.GetString("logsDir"),
		Interval:       simCfg.ProgressInterval,
	})

	startSec, endSec := k.Window()
	simRun := &core.Run{
		Name:         opts.RunName,
		ScenarioPath: opts.ScenarioPath,
		StartSec:     startSec,
		EndSec:       endSec,
		EntityCount:  s.ObjectCount(),
		TeamCount:    len(s.Teams),
		StartedAt:    sessionStart,
	}
	if err := wm.Begin(simRun, s.Entities()); err != nil {
		return fmt.Errorf("starting run: %w", err)
	}
	_ = mon.Start()

	runErr := k.Run(interruptible{ctx: ctx, Sink: wm})

	lastTick, ok := missionCtx.LastTick()
	if !ok {
		lastTick = startSec - 1
	}
	finishErr := wm.Finish(lastTick)

	mon.Stop()
	if rerr := mon.Record(mon.Sample()); rerr != nil {
		logger.Warn("Failed to record final sample", "error", rerr)
	}

	if runErr != nil || finishErr != nil {
		logger.Error("Run aborted", "lastTick", lastTick, "error", errors.Join(runErr, finishErr))
		return errors.Join(runErr, finishErr)
	}
	logger.Info("Run finished",
		"run", simRun.Name,
		"id", simRun.ID,
		"ticks", simRun.Ticks(),
		"elapsed", time.Since(sessionStart),
	)

	if viper.GetBool("api.upload") {
		if up, ok := stores.backend.(storage.Uploadable); ok {
			uploadRecording(ctx, logManager, up)
		} else {
			logger.Warn("Storage backend leaves nothing to upload", "type", config.GetStorageConfig().Type)
		}
	}
	return nil
}

// interruptible stops a run once ctx is done. Nothing reaches the inner
// sink after that, so the event stream never runs past the timeline.
type interruptible struct {
	ctx context.Context
	sim.Sink
}

func (s interruptible) Event(ev core.Event) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return s.Sink.Event(ev)
}

func (s interruptible) Timeline(rec core.TimelineRecord) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return s.Sink.Timeline(rec)
}

func uploadRecording(ctx context.Context, logManager *logging.SlogManager, up storage.Uploadable) {
	logger := logManager.Logger()
	path := up.ExportedFilePath()
	if path == "" {
		logger.Warn("No recording was exported, skipping upload")
		return
	}

	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	if err := client.Healthcheck(ctx); err != nil {
		logger.Warn("Web frontend is offline, skipping upload", "error", err)
		return
	}
	if err := client.Upload(ctx, path, up.ExportMetadata()); err != nil {
		logger.Error("Failed to upload recording", "path", path, "error", err)
		return
	}
	logger.Info("Recording uploaded", "path", path)
}

// setupLogging points the slog manager at a per-session log file (also
// echoed to stderr) and at Graylog when enabled. The returned writer is
// shared with the zerolog loggers.
func setupLogging(m *logging.SlogManager, sessionStart time.Time) (io.Writer, func(), error) {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("error creating logs dir: %w", err)
	}

	logPath := logging.LogFilePath(logsDir, "missionsim", sessionStart)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file: %w", err)
	}
	out := io.MultiWriter(os.Stderr, logFile)

	var gelfWriter io.WriteCloser
	var gelfErr error
	if viper.GetBool("graylog.enabled") {
		gelfWriter, gelfErr = logging.NewGelfWriter(viper.GetString("graylog.address"), "missionsim")
	}

	var gelfOut io.Writer
	if gelfWriter != nil {
		gelfOut = gelfWriter
	}
	m.Setup(out, viper.GetString("logLevel"), gelfOut)
	m.Logger().Info("Logging to file", "path", logPath)
	if gelfErr != nil {
		m.Logger().Warn("Graylog disabled", "error", gelfErr)
	}

	closer := func() {
		if gelfWriter != nil {
			_ = gelfWriter.Close()
		}
		_ = logFile.Close()
	}
	return logFile, closer, nil
}
