package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/racerl/racecore/internal/api"
	"github.com/racerl/racecore/internal/config"
	"github.com/racerl/racecore/internal/dispatcher"
	"github.com/racerl/racecore/internal/env"
	"github.com/racerl/racecore/internal/logging"
	"github.com/racerl/racecore/internal/monitor"
	intOtel "github.com/racerl/racecore/internal/otel"
	"github.com/racerl/racecore/internal/physics"
	"github.com/racerl/racecore/internal/policy"
	"github.com/racerl/racecore/internal/policy/learned"
	"github.com/racerl/racecore/internal/storage"
	"github.com/racerl/racecore/internal/storage/memory"
	"github.com/racerl/racecore/internal/track"
	"github.com/racerl/racecore/internal/worker"
	"github.com/racerl/racecore/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const shutdownTimeout = 30 * time.Second

// session owns everything one invocation of the binary sets up.
type session struct {
	id    string
	start time.Time

	slogs   *logging.SlogManager
	logger  *slog.Logger
	zlog    zerolog.Logger
	logFile *os.File
	otel    *intOtel.Provider
	epCtx   *logging.EpisodeContext

	dispatcher *dispatcher.Dispatcher
	backend    storage.Backend
	workers    *worker.Manager
	track      *track.Track
	env        *env.Environment
	monitor    *monitor.Service
}

// openSession loads the config, sets up logging and telemetry, and builds
// the environment with its recording pipeline.
func openSession(tag string) (*session, error) {
	s := &session{
		id:    uuid.NewString(),
		start: time.Now(),
		slogs: logging.NewSlogManager(),
		epCtx: &logging.EpisodeContext{},
	}
	s.slogs.Setup(nil, "info", nil)
	s.logger = s.slogs.Logger()

	if err := config.Load(configDir); err != nil {
		s.logger.Warn("Failed to load config, using defaults!", "error", err)
	}
	s.setupLogging()

	if err := s.build(tag); err != nil {
		s.close(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *session) setupLogging() {
	level := viper.GetString("logLevel")
	logsDir := viper.GetString("logsDir")

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		s.logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	} else {
		path := logging.LogFilePath(logsDir, appName, s.start)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			s.logger.Error("Failed to create/open log file!", "error", err, "path", path)
		} else {
			s.logFile = f
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		pcfg := intOtel.Config{
			Enabled:        true,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: Version,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      s.logWriter(),
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
			MetricInterval: otelCfg.MetricInterval,
		}
		if otelCfg.Metrics {
			pcfg.MetricWriter = s.logWriter()
		}
		p, err := intOtel.New(pcfg)
		if err != nil {
			s.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			s.otel = p
		}
	}

	opts := []logging.Option{
		logging.WithContext(s.epCtx.Attrs),
		logging.WithServiceName(otelCfg.ServiceName),
	}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			s.logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			opts = append(opts, logging.WithGraylog(w))
		}
	}

	var provider *sdklog.LoggerProvider
	if s.otel != nil {
		provider = s.otel.LoggerProvider()
	}
	if s.logFile != nil {
		s.slogs.Setup(s.logFile, level, provider, opts...)
	} else {
		s.slogs.Setup(nil, level, provider, opts...)
	}
	s.logger = s.slogs.Logger().With("session", s.id)
	s.zlog = logging.NewZerolog(s.logWriter(), level).With().Str("session", s.id).Logger()
}

func (s *session) logWriter() *os.File {
	if s.logFile != nil {
		return s.logFile
	}
	return os.Stdout
}

func (s *session) build(tag string) error {
	epCfg := config.GetEpisodeConfig()
	if epCfg.TrackPath == "" {
		return errors.New("episode.trackPath is not set")
	}
	tr, err := track.Load(epCfg.TrackPath)
	if err != nil {
		return err
	}
	s.track = tr
	s.logger.Info("Track loaded", "track", tr.Name(), "features", tr.Size(), "checkpoints", len(tr.Checkpoints()))

	d, err := dispatcher.New(logging.NewDispatcherLogger(s.zlog))
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	s.dispatcher = d

	storageCfg := config.GetStorageConfig()
	backend, err := worker.NewBackend(storageCfg, worker.BackendOptions{
		Logger:  s.logger,
		Zerolog: s.zlog,
		Session: memory.Session{
			ID:        s.id,
			TrackName: tr.Name(),
			Tag:       tag,
			StartTime: s.start,
		},
		Checkpoints: len(tr.Checkpoints()),
		API:         config.GetAPIConfig(),
	})
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	s.backend = backend
	s.logger.Info("Storage backend initialized", "type", storageCfg.Type)

	s.workers = worker.NewManager(worker.Dependencies{Logger: s.logger, Buffer: storageCfg.Buffer}, backend)
	s.workers.RegisterHandlers(d)

	pol, err := s.policy()
	if err != nil {
		return err
	}

	var spawn core.Pose
	if sp := tr.Spawn(); sp != nil {
		spawn = *sp
	}
	e, err := env.New(env.Config{
		Motion:         config.GetMotionConfig(),
		Sensors:        config.GetSensorConfig(),
		Reward:         config.GetRewardConfig(),
		Checkpoints:    tr.Checkpoints(),
		Spawn:          tr.Spawn(),
		MaxTicks:       epCfg.MaxTicks,
		FixedDeltaTime: epCfg.FixedDeltaTime,
		CarRadius:      epCfg.CarRadius,
	}, env.Dependencies{
		Body:       physics.NewKinematicBody(spawn),
		Raycaster:  tr,
		World:      tr,
		Policy:     pol,
		Dispatcher: d,
		Logger:     s.logger,
		Context:    s.epCtx,
	})
	if err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	s.env = e

	if mc := config.GetMonitorConfig(); mc.Enabled {
		s.monitor = monitor.NewService(monitor.Dependencies{
			Logger:     s.logger,
			Recorder:   s.workers,
			Episodes:   e,
			StatusPath: filepath.Join(viper.GetString("logsDir"), "status.json"),
			Interval:   mc.Interval,
		})
		s.monitor.Start(context.Background())
	}
	return nil
}

func (s *session) policy() (policy.Policy, error) {
	cfg := config.GetPolicyConfig()
	switch cfg.Type {
	case "", "manual":
		return policy.Manual{}, nil
	case "learned":
		p, err := learned.Load(cfg.ModelPath, cfg.ModelID, s.logger)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		s.logger.Info("Learned policy loaded", "path", cfg.ModelPath, "model", cfg.ModelID)
		return p, nil
	}
	return nil, fmt.Errorf("unknown policy type %q", cfg.Type)
}

// close stops the environment, drains the recording queue, closes the
// backend, uploads its export if one was produced, and flushes telemetry.
func (s *session) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if s.env != nil {
		_ = s.env.Close()
	}
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	if s.monitor != nil {
		s.monitor.Stop()
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("Failed to close storage backend", "error", err)
		}
		s.upload(ctx)
	}
	if s.workers != nil {
		s.logger.Info("Recording finished", "events", s.workers.Recorded())
	}

	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}
	if err := s.slogs.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "failed to close logging:", err)
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

func (s *session) upload(ctx context.Context) {
	up, ok := s.backend.(storage.Uploadable)
	if !ok || up.ExportedFilePath() == "" {
		return
	}
	apiCfg := config.GetAPIConfig()
	if apiCfg.ServerURL == "" {
		s.logger.Info("Recording saved", "path", up.ExportedFilePath())
		return
	}

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		s.logger.Warn("Recordings server is offline, keeping local file", "error", err, "path", up.ExportedFilePath())
		return
	}
	if err := client.UploadExport(ctx, up); err != nil {
		s.logger.Error("Failed to upload recording", "error", err, "path", up.ExportedFilePath())
		return
	}
	s.logger.Info("Recording uploaded", "path", up.ExportedFilePath(), "server", apiCfg.ServerURL)
}
