// Package app wires the hook, the session controller, capture and the
// transcription pool into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"sync"

	"github.com/Car-Role/Whisper-dictation/internal/asr"
	"github.com/Car-Role/Whisper-dictation/internal/audio"
	"github.com/Car-Role/Whisper-dictation/internal/clipboard"
	"github.com/Car-Role/Whisper-dictation/internal/config"
	"github.com/Car-Role/Whisper-dictation/internal/dispatch"
	"github.com/Car-Role/Whisper-dictation/internal/hotkey"
	"github.com/Car-Role/Whisper-dictation/internal/indicator"
	"github.com/Car-Role/Whisper-dictation/internal/inject"
	"github.com/Car-Role/Whisper-dictation/internal/notify"
	"github.com/Car-Role/Whisper-dictation/internal/record"
	"github.com/Car-Role/Whisper-dictation/internal/session"
	"github.com/Car-Role/Whisper-dictation/internal/telemetry"
)

// Unhooker releases an installed keyboard hook.
type Unhooker interface {
	Uninstall() error
}

// Deps overrides the OS-facing pieces. Zero fields get the real
// implementations.
type Deps struct {
	Source      record.Source
	Clipboard   dispatch.Clipboard
	Injector    dispatch.Injector
	Engine      asr.Engine
	LoadEngine  func(ctx context.Context, model string) (asr.Engine, error)
	InstallHook func(hotkey.Handler) (Unhooker, error)
	Modifiers   hotkey.ModifierFunc
	Notify      func(message string) error
	Indicators  []indicator.Indicator
}

// State owns every long-lived component. Use Init, then Run, then Shutdown.
type State struct {
	cfg     config.Config
	deps    Deps
	log     *slog.Logger
	metrics *telemetry.Recorder
	tempDir string

	engine      asr.Engine
	dispatcher  *dispatch.Dispatcher
	recorder    *record.Recorder
	controller  *session.Controller
	watchdog    *session.Watchdog
	interceptor *hotkey.Interceptor
	hook        Unhooker
	tray        *indicator.Tray

	// loadCtx bounds background model loads; cancelled by Shutdown.
	loadCtx    context.Context
	loadCancel context.CancelFunc
	loads      sync.WaitGroup

	mu      sync.Mutex
	model   string
	pending string

	quit     chan struct{}
	quitOnce sync.Once
	workers  sync.WaitGroup
	shutdown sync.Once
}

// New prepares a State. Nothing touches the OS before Init.
func New(cfg config.Config, deps Deps, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &State{
		cfg:        cfg,
		deps:       deps,
		log:        logger.With("component", "app"),
		metrics:    telemetry.NewRecorder(logger),
		model:      cfg.Model,
		loadCtx:    ctx,
		loadCancel: cancel,
		quit:       make(chan struct{}),
	}
	s.fillDefaults(logger)
	return s
}

func (s *State) fillDefaults(logger *slog.Logger) {
	if s.deps.Source == nil {
		s.deps.Source = record.PortAudio{}
	}
	if s.deps.Clipboard == nil {
		s.deps.Clipboard = clipboard.System{}
	}
	if s.deps.LoadEngine == nil {
		s.deps.LoadEngine = func(ctx context.Context, model string) (asr.Engine, error) {
			return LoadEngine(ctx, s.cfg.Engine, model, asr.Options{TempDir: s.tempDir, Logger: logger})
		}
	}
	if s.deps.InstallHook == nil {
		s.deps.InstallHook = func(h hotkey.Handler) (Unhooker, error) {
			hk, err := hotkey.Install(h)
			if err != nil {
				return nil, err
			}
			return hk, nil
		}
	}
	if s.deps.Modifiers == nil {
		s.deps.Modifiers = hotkey.OSModifiers
	}
	if s.deps.Notify == nil {
		s.deps.Notify = notify.Notify
	}
}

// LoadEngine builds the engine for model and fetches its weights when the
// engine keeps them locally.
func LoadEngine(ctx context.Context, ec config.EngineConfig, model string, opts asr.Options) (asr.Engine, error) {
	e, err := asr.NewForModel(ec, model, opts)
	if err != nil {
		return nil, err
	}
	if m, ok := e.(interface{ EnsureModel(context.Context) error }); ok {
		if err := m.EnsureModel(ctx); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("load model %s: %w", model, err)
		}
	}
	return e, nil
}

// Init builds the pipeline and installs the keyboard hook. A
// *hotkey.HookInstallError is fatal.
func (s *State) Init() error {
	tempDir, err := config.ResolveTempDir(&s.cfg)
	if err != nil {
		return err
	}
	s.tempDir = tempDir
	if n := audio.CleanupStale(tempDir, s.log); n > 0 {
		s.log.Info("removed stale recordings", "count", n, "dir", tempDir)
	}

	spec, err := hotkey.FromConfig(s.cfg.Hotkey)
	if err != nil {
		return err
	}
	recColor, err := indicator.ParseColor(s.cfg.UI.IndicatorColor)
	if err != nil {
		return fmt.Errorf("invalid ui.indicator_color: %w", err)
	}

	s.engine = s.deps.Engine
	if s.engine == nil {
		s.log.Info("loading model", "model", s.cfg.Model, "engine", s.cfg.Engine.Kind)
		if s.engine, err = s.deps.LoadEngine(s.loadCtx, s.cfg.Model); err != nil {
			return err
		}
	}

	injector := s.deps.Injector
	if injector == nil {
		if injector, err = inject.New(s.cfg.Injection.Mode); err != nil {
			_ = s.engine.Close()
			return err
		}
	}

	s.dispatcher = dispatch.New(s.engine, s.deps.Clipboard, injector, dispatch.Config{
		Workers:  s.cfg.Workers,
		Language: s.cfg.Language,
	}, s.metrics, s.log)
	s.recorder = record.New(s.cfg.Audio, s.deps.Source, s.dispatcher, tempDir, s.log)
	s.controller = session.New(s.recorder, s.indicators(recColor), s.metrics, s.log)
	s.watchdog = session.NewWatchdog(s.controller, s.cfg.Recording.MaxDuration(), s.cfg.Recording.WatchdogInterval(), s.metrics, s.log)
	s.interceptor = hotkey.NewInterceptor(spec, s.deps.Modifiers, s.controller)

	hook, err := s.deps.InstallHook(s.interceptor.Handle)
	if err != nil {
		_ = s.dispatcher.Close()
		var hie *hotkey.HookInstallError
		if !errors.As(err, &hie) {
			err = &hotkey.HookInstallError{Err: err}
		}
		return err
	}
	s.hook = hook
	s.log.Info("hotkey registered", "hotkey", spec.String())
	return nil
}

func (s *State) indicators(recColor color.RGBA) indicator.Multi {
	inds := indicator.Multi{indicator.NewLog(s.log)}
	if s.cfg.Indicator.Notification {
		inds = append(inds, indicator.NewNotifier(s.deps.Notify, s.log))
	}
	if s.cfg.Indicator.Tray {
		s.tray = indicator.NewTray(config.Models, s.cfg.Model, recColor, s.SwitchModel, s.RequestQuit, s.log)
		inds = append(inds, s.tray)
	}
	return append(inds, s.deps.Indicators...)
}

// Run processes hotkey commands until ctx is done or a quit is requested.
// With a tray the call blocks in the tray loop.
func (s *State) Run(ctx context.Context) error {
	if s.controller == nil {
		return errors.New("app not initialised")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.dispatcher.Start()
	s.workers.Add(2)
	go func() {
		defer s.workers.Done()
		s.controller.Run(ctx)
	}()
	go func() {
		defer s.workers.Done()
		s.watchdog.Run(ctx)
	}()

	s.log.Info("ready, hold the hotkey to dictate",
		"hotkey", s.interceptor.Spec().String(),
		"model", s.Model(),
		"engine", s.dispatcher.Engine().Name())

	if s.tray == nil {
		select {
		case <-ctx.Done():
		case <-s.quit:
		}
		return nil
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.quit:
		}
		s.tray.Quit()
	}()
	s.tray.Run()
	return nil
}

// RequestQuit makes Run return.
func (s *State) RequestQuit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Shutdown releases the hook, finishes the live recording, drains pending
// transcriptions and closes the engines. Safe to call more than once.
func (s *State) Shutdown() error {
	var err error
	s.shutdown.Do(func() {
		s.RequestQuit()
		if s.hook != nil {
			if uerr := s.hook.Uninstall(); uerr != nil {
				err = errors.Join(err, uerr)
			}
		}
		s.mu.Lock()
		s.loadCancel()
		s.mu.Unlock()
		s.loads.Wait()
		s.workers.Wait()
		if s.controller != nil {
			s.controller.Shutdown()
		}
		if s.dispatcher != nil {
			err = errors.Join(err, s.dispatcher.Close())
		}
		if s.interceptor != nil {
			s.metrics.DroppedSignals(s.interceptor.Dropped())
		}
		s.metrics.LogSummary()
		s.log.Info("shutdown complete")
	})
	return err
}

// Controller exposes the session controller.
func (s *State) Controller() *session.Controller { return s.controller }

// Metrics exposes the counters.
func (s *State) Metrics() *telemetry.Recorder { return s.metrics }

// Model returns the active model name.
func (s *State) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}
