package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gsnap/extension/internal/config"
	"github.com/gsnap/extension/internal/database"
	"github.com/gsnap/extension/internal/dispatcher"
	"github.com/gsnap/extension/internal/influx"
	"github.com/gsnap/extension/internal/logging"
	intOtel "github.com/gsnap/extension/internal/otel"
	"github.com/gsnap/extension/internal/scene"
	"github.com/gsnap/extension/internal/scene/memory"
	"github.com/gsnap/extension/internal/scheduler"
	"github.com/gsnap/extension/internal/tool"
	"github.com/gsnap/extension/pkg/hostinterface"
)

const toolName = "gsnap"

func configFileName() string {
	return config.FileName
}

// app is one tool session with everything it is wired to.
type app struct {
	sessionID    string
	sessionStart time.Time
	logPath      string
	logFile      *os.File
	gelf         io.WriteCloser

	slog   *logging.SlogManager
	logger *slog.Logger
	zlog   zerolog.Logger
	otel   *intOtel.Provider

	db     *database.Manager
	influx *influx.Manager

	loop       *scheduler.Loop
	scene      *memory.Scene
	tool       *tool.Tool
	dispatcher *dispatcher.Dispatcher
}

func newApp(dir string) (*app, error) {
	a := &app{
		sessionID:    uuid.New().String(),
		sessionStart: time.Now(),
		slog:         logging.NewSlogManager(),
	}
	a.slog.Setup(logging.Options{Level: "info"})
	a.logger = a.slog.Logger()

	if err := config.Load(dir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config", "dir", dir)
	}

	a.setupLogging()
	a.connectSettings()
	a.connectInflux()

	dl := logging.NewDispatcherLogger(a.zlog)
	a.loop = scheduler.NewLoop(dl)
	a.scene = memory.New()

	tc := config.GetToolConfig()
	opts := []tool.Option{tool.WithLogger(a.logger.With("component", "tool"))}
	if a.db != nil {
		opts = append(opts, tool.WithSettings(a.db))
	}
	if a.influx != nil {
		opts = append(opts, tool.WithObserver(a.influx))
	}
	t, err := tool.New(a.scene, a.loop, tool.Config{
		Group:         tc.GroupName,
		DefaultScale:  tc.DefaultScale,
		FallbackColor: scene.Color(tc.FallbackColor),
		Debounce:      tc.Debounce,
		FocusDelay:    tc.FocusDelay,
	}, opts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating tool: %w", err)
	}
	a.tool = t

	d, err := dispatcher.New(dl)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	a.dispatcher = d
	a.tool.RegisterHandlers(d)
	a.tool.RegisterSceneHandlers(d, a.scene)
	a.registerLifecycleHandlers(d)

	a.logger.Info("Session started", "commands", len(d.Commands()))
	return a, nil
}

// setupLogging moves logging from the console to the session log file and
// the optional Graylog and OTel sinks.
func (a *app) setupLogging() {
	level := viper.GetString("logLevel")
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		a.logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	a.logPath = logging.LogFilePath(logsDir, toolName, a.sessionStart)
	if _, err := os.Stat(a.logPath); err == nil {
		_ = os.Rename(a.logPath, a.logPath+".old")
	}
	f, err := os.OpenFile(a.logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		a.logger.Error("Failed to create/open log file!", "error", err, "path", a.logPath)
	} else {
		a.logFile = f
	}

	var gelfWriter io.Writer
	if gc := config.GetGraylogConfig(); gc.Enabled {
		w, err := logging.NewGelfWriter(gc.Address, toolName)
		if err != nil {
			a.logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			a.gelf = w
			gelfWriter = w
		}
	}

	var fileWriter io.Writer
	if a.logFile != nil {
		fileWriter = a.logFile
	}

	oc := config.GetOTelConfig()
	if oc.Enabled {
		p, err := intOtel.New(intOtel.Config{
			Enabled:      oc.Enabled,
			ServiceName:  oc.ServiceName,
			BatchTimeout: oc.BatchTimeout,
			LogWriter:    fileWriter,
			Endpoint:     oc.Endpoint,
			Insecure:     oc.Insecure,
		})
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.otel = p
			a.logger.Info("OTel provider initialized", "file", a.logPath, "endpoint", oc.Endpoint)
		}
	}

	opts := logging.Options{
		File:  fileWriter,
		Level: level,
		Gelf:  gelfWriter,
		Context: logging.SessionContext(a.sessionID, func() []slog.Attr {
			return []slog.Attr{slog.Bool("usingLocalDB", a.db != nil && a.db.UsingSqlite)}
		}),
	}
	if a.otel != nil {
		opts.Provider = a.otel.LoggerProvider()
	}
	a.slog.Setup(opts)
	a.logger = a.slog.Logger()
	a.logger.Info("Logging to file", "path", a.logPath)

	a.zlog = logging.NewZerolog(fileWriter, gelfWriter, level).
		With().Str("session", a.sessionID).Logger()
}

func (a *app) connectSettings() {
	cfg := config.GetSettingsConfig()
	if cfg.Type == "none" {
		a.logger.Info("Settings database disabled")
		return
	}

	m := database.NewManager(cfg, a.zlog.With().Str("component", "database").Logger())
	if err := m.Connect(); err != nil {
		a.logger.Error("Failed to connect settings database", "error", err)
		return
	}
	if err := m.Setup(); err != nil {
		a.logger.Error("Failed to set up settings database", "error", err)
		_ = m.Close()
		return
	}
	a.db = m
}

func (a *app) connectInflux() {
	cfg := config.GetTelemetryConfig()
	if !cfg.Enabled {
		return
	}

	m := influx.NewManager(cfg, a.zlog.With().Str("component", "influx").Logger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		a.logger.Error("Failed to set up InfluxDB", "error", err)
		_ = m.Close()
		return
	}
	a.influx = m
}

func (a *app) registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":GETDIR:LOG:", func(e dispatcher.Event) (any, error) {
		return a.logPath, nil
	})

	d.Register(":SESSION:", func(e dispatcher.Event) (any, error) {
		return a.sessionID, nil
	})

	d.Register(":LOG:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 2 {
			return nil, fmt.Errorf(":LOG: expects a level and a message")
		}
		a.slog.WriteLog("host", strings.Join(e.Args[1:], "|"), e.Args[0])
		return nil, nil
	})

	d.Register(":FLUSH:", func(e dispatcher.Event) (any, error) {
		if err := a.tool.Flush(); err != nil {
			return nil, err
		}
		if a.otel != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.otel.Flush(ctx); err != nil {
				a.logger.Warn("Failed to flush OTel data", "error", err)
			}
		}
		return nil, nil
	})
}

func (a *app) server() *hostinterface.Server {
	return hostinterface.New(a.dispatcher,
		hostinterface.WithVersion(Version+" "+BuildDate),
		hostinterface.WithLogger(a.logger.With("component", "host")),
	)
}

// demoScript opens the tool, creates two objects, adds a locator aligned to
// the first, snaps it onto the second and rescales it.
var demoScript = []string{
	":OPEN:",
	":SCENE:CREATE:|pCube1|0|1|0|0|0|0",
	":SCENE:CREATE:|pCube2|4|0|-2|0|90|0",
	":SCENE:SELECT:|replace|pCube1",
	":ADD:|left hand",
	":SCENE:SELECT:|replace|LEFT_HAND|pCube2",
	":SNAP:",
	":SCALE:|5",
	":FLUSH:",
	":SCENE:WORLD:|LEFT_HAND",
	":STATE:",
}

func (a *app) demo() (string, error) {
	srv := a.server()
	var b strings.Builder
	for _, line := range demoScript {
		fmt.Fprintf(&b, "> %s\n%s\n", line, srv.Handle(line))
	}
	return b.String(), nil
}

func (a *app) close() {
	var errs []error
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.tool != nil {
		if err := a.loop.Do(func() { errs = append(errs, a.tool.Close()) }); err != nil {
			errs = append(errs, err)
		}
	}
	if a.loop != nil {
		a.loop.Close()
	}
	if a.influx != nil {
		errs = append(errs, a.influx.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.slog.Flush(ctx), a.otel.Shutdown(ctx))
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Errors during shutdown", "error", err)
	}
	a.logger.Info("Session ended", "duration", time.Since(a.sessionStart))
	if a.gelf != nil {
		_ = a.gelf.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
