// Package run is the holdtalk daemon: it wires the dictation pipeline to the
// key-event feed, the control socket, metrics and notifications.
package run

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"holdtalk/internal/asr"
	"holdtalk/internal/audio"
	"holdtalk/internal/config"
	"holdtalk/internal/control"
	"holdtalk/internal/hotkey"
	"holdtalk/internal/output"
	"holdtalk/internal/permissions"
	"holdtalk/internal/pipeline"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Server owns one pipeline and everything that feeds or observes it.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	startedAt time.Time

	orch     *pipeline.Orchestrator
	coord    *asr.Coordinator
	detector *hotkey.Detector
	store    *hotkey.Store
	keys     *hotkey.ManualSource
	feeders  atomic.Int32
	perms    pipeline.PermissionChecker

	metrics     *Metrics
	transcripts *transcriptLog
}

// permissionPoll is how often permission probes re-run in the background.
const permissionPoll = 2 * time.Second

// permissionWatcher re-probes permissions off the pipeline's goroutine.
type permissionWatcher interface {
	Watch(ctx context.Context, every time.Duration)
}

// components are the platform pieces the pipeline drives.
type components struct {
	engine      asr.Engine
	capture     audio.Capture
	output      output.Emitter
	permissions pipeline.PermissionChecker
	notify      notifyFunc
}

// Serve runs the daemon until interrupted.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	comps, err := systemComponents(cfg, logger)
	if err != nil {
		return err
	}
	srv, err := newServer(cfg, logger, comps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigCh)
		select {
		case s := <-sigCh:
			logger.Infof("received signal %s, shutting down", s)
			cancel()
		case <-ctx.Done():
		}
	}()
	return srv.Run(ctx)
}

func systemComponents(cfg *config.Config, logger *logrus.Logger) (components, error) {
	capture, err := audio.NewCapture(cfg.Audio.DeviceName, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.FrameMS, logger)
	if err != nil {
		return components{}, fmt.Errorf("audio: %w", err)
	}
	if cfg.Audio.TrimSilence {
		capture = audio.Trimmed(capture, cfg.Audio.FrameMS, cfg.Audio.VADAggressiveness, logger)
	}

	// Only pasting needs keystroke synthesis.
	axProbe := permissions.Fixed(permissions.Granted)
	var out output.Emitter
	if cfg.Output.Mode == "" || cfg.Output.Mode == "paste" {
		keys := output.NewKeystroker()
		out = output.NewPaster(output.SystemClipboard{}, keys, cfg.Output.PasteDelayMS, logger)
		axProbe = permissions.FromSetting(cfg.Permissions.Accessibility, func() permissions.State {
			if err := output.Available(keys); err != nil {
				logger.Debugf("paste unavailable: %v", err)
				return permissions.Denied
			}
			return permissions.Granted
		})
	} else if out, err = output.New(cfg, logger); err != nil {
		return components{}, err
	}

	micProbe := permissions.FromSetting(cfg.Permissions.Microphone, func() permissions.State {
		devs, err := audio.Devices()
		switch {
		case err != nil:
			return permissions.Unknown
		case len(devs) == 0:
			return permissions.Denied
		default:
			return permissions.Granted
		}
	})

	var notify notifyFunc
	if cfg.UI.Notify {
		notify = desktopNotify
	}
	return components{
		engine:      asr.NewEngine(cfg, logger),
		capture:     capture,
		output:      out,
		permissions: permissions.NewChecker(micProbe, axProbe),
		notify:      notify,
	}, nil
}

func newServer(cfg *config.Config, logger *logrus.Logger, comps components) (*Server, error) {
	pcfg := pipeline.DefaultConfig()
	pcfg.SampleRate = audio.TargetRate
	pcfg.DumpDir = cfg.Audio.DumpDir

	coord := asr.NewCoordinator(comps.engine, logger)
	orch := pipeline.New(pcfg, pipeline.Deps{
		Coordinator: coord,
		Capture:     comps.capture,
		Output:      comps.output,
		Permissions: comps.permissions,
		Logger:      logger,
	})

	store := hotkey.NewStore(cfg.Hotkey.BindingPath, logger)
	binding, msg := store.Load()
	if msg != "" {
		logger.Warn(msg)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
		orch:      orch,
		coord:     coord,
		detector:  hotkey.NewDetector(binding, orch.Callbacks(), logger),
		store:     store,
		keys:      hotkey.NewManualSource(),
		perms:     comps.permissions,
		metrics:   NewMetrics(),
	}
	bus := orch.Bus()
	if err := s.metrics.Attach(bus); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if cfg.Transcripts.Enabled {
		s.transcripts = newTranscriptLog(cfg.Paths.TranscriptPath, cfg.UI.StatusTail, logger)
		if err := bus.SubscribeAsync(pipeline.TopicTranscript, s.transcripts.record, true); err != nil {
			return nil, fmt.Errorf("transcripts: %w", err)
		}
	}
	if comps.notify != nil {
		n := failureNotifier{notify: comps.notify, logger: logger}
		if err := bus.SubscribeAsync(pipeline.TopicFailure, n.onFailure, false); err != nil {
			return nil, fmt.Errorf("notifications: %w", err)
		}
		if msg != "" {
			go func() { _ = comps.notify("holdtalk", msg) }()
		}
	}
	return s, nil
}

// Run serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	if err := os.Remove(s.cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Debugf("remove stale socket: %v", err)
	}
	ln, err := net.Listen("unix", s.cfg.Paths.SocketPath)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	if err := s.detector.Start(s.keys); err != nil {
		_ = ln.Close()
		return fmt.Errorf("hotkey: %w", err)
	}
	s.logger.Infof("holdtalk ready; hold %s to dictate", s.detector.Binding())

	g, ctx := errgroup.WithContext(ctx)
	if w, ok := s.perms.(permissionWatcher); ok {
		g.Go(func() error {
			w.Watch(ctx, permissionPoll)
			return nil
		})
	}
	g.Go(func() error { return s.orch.Run(ctx) })
	g.Go(func() error { return s.controlLoop(ctx, ln) })
	if s.cfg.Metrics.Enabled {
		g.Go(func() error { return s.serveMetrics(ctx) })
	}
	if model := s.cfg.ASR.Model; model != "" {
		g.Go(func() error {
			s.autoLoad(ctx, model)
			return nil
		})
	}
	err = g.Wait()

	if derr := s.detector.Stop(); derr != nil {
		s.logger.Warnf("hotkey stop: %v", derr)
	}
	s.orch.Bus().WaitAsync()
	if cerr := s.coord.Close(); cerr != nil {
		s.logger.Warnf("release model: %v", cerr)
	}
	if rerr := os.Remove(s.cfg.Paths.SocketPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		s.logger.Debugf("remove socket: %v", rerr)
	}
	return err
}

func (s *Server) autoLoad(ctx context.Context, model string) {
	if err := s.orch.LoadModelAndWait(ctx, model); err != nil && ctx.Err() == nil {
		s.logger.Warnf("load %s: %v", model, err)
	}
}

func (s *Server) status() control.Status {
	st := control.Status{
		Running:    true,
		UptimeSec:  time.Since(s.startedAt).Seconds(),
		Hotkey:     s.detector.Binding().String(),
		KeyFeeders: int(s.feeders.Load()),
	}
	if snap, err := s.orch.Snapshot(); err == nil {
		st.Phase = snap.Phase.String()
		st.Model = snap.Model.String()
		st.SelectedModel = snap.SelectedModel
		st.LoadedModel = snap.LoadedModel
		st.EditingHotkey = snap.EditingHotkey
	} else {
		st.Running = false
	}
	if s.transcripts != nil {
		st.Transcripts = s.transcripts.recent()
	}
	return st
}
