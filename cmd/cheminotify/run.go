package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cheminotify/agent/internal/audio"
	"github.com/cheminotify/agent/internal/config"
	"github.com/cheminotify/agent/internal/coords"
	"github.com/cheminotify/agent/internal/desktop/native"
	"github.com/cheminotify/agent/internal/history"
	"github.com/cheminotify/agent/internal/layout"
	"github.com/cheminotify/agent/internal/logging"
	"github.com/cheminotify/agent/internal/notify"
	"github.com/cheminotify/agent/internal/ocr"
	"github.com/cheminotify/agent/internal/ocr/tesseract"
	"github.com/cheminotify/agent/internal/orchestrator"
	"github.com/cheminotify/agent/internal/pixel"
	"github.com/cheminotify/agent/internal/popup"
	"github.com/cheminotify/agent/internal/resilience"
	"github.com/cheminotify/agent/internal/screen"
	"github.com/cheminotify/agent/internal/server"
	"github.com/cheminotify/agent/internal/state"
)

func newRunCmd(cfgPath *string) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run automation sessions until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAgent(ctx, *cfgPath, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single session and exit")
	return cmd
}

func runAgent(ctx context.Context, cfgPath string, once bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	_, closeLogs, err := logging.Setup(cfg.LogLevel, cfg.LogDir, os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = closeLogs() }()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return err
	}

	dt := native.New()
	mapper := coords.NewMapper(layout.RefSizes)

	// Screenshot stores
	var debugOpts []screen.Option
	if !cfg.Debug() {
		debugOpts = append(debugOpts, screen.Disabled())
	}
	debugShots := screen.NewStore(dt.Screen, cfg.ScreenshotDir(), debugOpts...)
	ocrShots := screen.NewStore(dt.Screen, cfg.OCRScreenshotDir())
	var evidence state.Shots
	if cfg.IncludeScreenshots {
		evidence = screen.NewStore(dt.Screen, filepath.Join(cfg.LogDir, "evidence"))
	}
	for _, s := range []*screen.Store{debugShots, ocrShots} {
		if n, err := s.Prune(screen.DefaultKeep); err != nil {
			slog.Warn("screenshot prune failed", "dir", s.Dir(), "error", err)
		} else if n > 0 {
			slog.Info("pruned old screenshots", "dir", s.Dir(), "removed", n)
		}
	}

	// Audit log
	var recorder *history.Recorder
	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		batcher := history.NewBatcher(store, history.DefaultBatchMaxSize, history.DefaultBatchFlushDelay)
		defer batcher.Stop()
		recorder = history.NewRecorder(batcher)
	}

	recognizer, breakers, closeOCR, err := buildOCR(cfg)
	if err != nil {
		slog.Error("no OCR backend available", "error", err)
		return err
	}
	defer closeOCR()

	rules, err := popup.LoadRulesFile(cfg.PopupRulesPath)
	if err != nil {
		return err
	}
	detectorOpts := []popup.Option{
		popup.WithUnrecognizedStore(ocrShots),
		popup.WithObserver(recorder),
	}
	if tmpl, err := popup.LoadTemplate(cfg.OKButtonTemplate); err != nil {
		slog.Warn("OK button template unavailable, click_ok falls back to Enter", "path", cfg.OKButtonTemplate, "error", err)
	} else {
		detectorOpts = append(detectorOpts, popup.WithOKButton(tmpl, 1))
	}
	detector := popup.NewDetector(dt, recognizer, popup.NewClassifier(rules), detectorOpts...)

	notifier := notify.NewFacade()
	if cfg.WebhookURL != "" {
		discord := notify.NewDiscord(cfg.WebhookURL, cfg.IncludeScreenshots)
		breakers = append(breakers, discord.Breaker())
		notifier.Register(discord)
	}
	if cfg.AlertSound {
		notifier.Register(audio.NewAlert(audio.DefaultTone(), nil))
	}
	if notifier.Len() == 0 {
		slog.Warn("no notification channel configured; availability will only be logged")
	}

	env := &state.Env{
		Desktop:       dt,
		Mapper:        mapper,
		Matcher:       pixel.NewMatcher(mapper, dt.Screen, debugShots),
		Popups:        detector,
		Notifier:      notifier,
		Shots:         debugShots,
		Evidence:      evidence,
		Checks:        recorder,
		Credentials:   state.Credentials{Username: cfg.Username, Password: cfg.Password},
		JNLPPath:      cfg.JNLPPath,
		CourseCode:    cfg.CourseCode,
		RetryInterval: cfg.RetryInterval,
		FocusRetry:    resilience.FocusRetryConfig(),
	}

	ropts := []orchestrator.RunnerOption{orchestrator.WithCooldown(cfg.SessionCooldown)}
	if once {
		ropts = append(ropts, orchestrator.WithMaxSessions(1))
	}
	runner := orchestrator.NewRunner(
		func() state.Set { return state.NewSet(env) },
		orchestrator.Options{
			Timeout:  cfg.SessionTimeout,
			Course:   cfg.CourseCode,
			Recorder: recorder,
			Shots:    env,
		},
		ropts...,
	)
	for _, b := range breakers {
		runner.Watch(b)
	}

	if cfg.StatusAddr != "" {
		var sopts []server.Option
		if store != nil {
			sopts = append(sopts, server.WithHistory(store))
		}
		srv := server.New(runner, runner.Journal(), sopts...)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.StatusAddr); err != nil {
				slog.Error("status server error", "addr", cfg.StatusAddr, "error", err)
			}
		}()
	}

	slog.Info("cheminotify starting",
		"course", cfg.CourseCode,
		"retry_interval", cfg.RetryInterval,
		"session_timeout", cfg.SessionTimeout,
		"debug", cfg.Debug())

	err = runner.Run(ctx)
	slog.Info("shutdown complete")
	return err
}

// buildOCR prefers the remote service and falls back to local tesseract. The
// remote circuit, when there is one, is returned for status reporting.
func buildOCR(cfg *config.Config) (ocr.Recognizer, []*resilience.Breaker, func(), error) {
	fb := &ocr.Fallback{}
	var closers []func() error
	var breakers []*resilience.Breaker

	if cfg.OCRAddr != "" {
		remote, err := ocr.Dial(cfg.OCRAddr)
		if err != nil {
			slog.Warn("remote OCR unavailable", "addr", cfg.OCRAddr, "error", err)
		} else {
			fb.Primary = remote
			breakers = append(breakers, remote.Breaker())
			closers = append(closers, remote.Close)
		}
	}

	engine, err := tesseract.New(cfg.OCRLanguage, cfg.TessdataPrefix)
	switch {
	case err == nil:
		fb.Secondary = engine
		closers = append(closers, engine.Close)
	case fb.Primary == nil:
		return nil, nil, nil, err
	default:
		slog.Warn("tesseract unavailable, using remote OCR only", "error", err)
	}

	return fb, breakers, func() {
		for _, c := range closers {
			_ = c()
		}
	}, nil
}
