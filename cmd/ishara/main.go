package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/ishara/internal/app"
	"github.com/ayusman/ishara/internal/capture"
	"github.com/ayusman/ishara/internal/config"
	"github.com/ayusman/ishara/internal/detector"
	"github.com/ayusman/ishara/internal/gallery"
	"github.com/ayusman/ishara/internal/gesture"
	"github.com/ayusman/ishara/internal/notify"
	"github.com/ayusman/ishara/internal/plugin"
	"github.com/ayusman/ishara/internal/server"
	"github.com/ayusman/ishara/internal/speech"
	"github.com/ayusman/ishara/internal/store"
	"github.com/ayusman/ishara/internal/tray"
)

func main() {
	configPath := flag.String("config", os.Getenv("ISHARA_CONFIG"), "path to the YAML configuration file")
	logFormat := flag.String("log-format", "json", "log format: json or text")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [import-translations <file>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ishara: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, *logFormat)
	slog.SetDefault(logger)

	switch flag.Arg(0) {
	case "":
		err = run(cfg, logger)
	case "import-translations":
		if flag.NArg() != 2 {
			flag.Usage()
			os.Exit(2)
		}
		err = importTranslations(cfg, flag.Arg(1), logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("ishara failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func importTranslations(cfg *config.Config, path string, logger *slog.Logger) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := importFile(st, path)
	if err != nil {
		return err
	}
	logger.Info("translations imported", "file", path, "tokens", n)
	return nil
}

func importFile(st *store.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return st.ImportTranslations(f)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Phrase.TranslationsFile != "" {
		if n, err := importFile(st, cfg.Phrase.TranslationsFile); err != nil {
			logger.Warn("failed to import translations", "file", cfg.Phrase.TranslationsFile, "error", err)
		} else {
			logger.Info("translations imported", "file", cfg.Phrase.TranslationsFile, "tokens", n)
		}
	}
	lex, err := st.Lexicon()
	if err != nil {
		return fmt.Errorf("load lexicon: %w", err)
	}

	plugins := plugin.NewManager(cfg.Speech.PluginDir, logger)
	if err := plugins.Discover(); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.Speech.PluginDir, "error", err)
	}
	engine := speech.NewPluginEngine(plugins, plugin.NewExecutor(cfg.Speech.SpeakTimeout), cfg.Speech.Synthesizer, cfg.Speech.Listener, logger)

	gal := gallery.New(cfg.Gallery.Dir)
	fetcher := gallery.NewFetcher(gal, cfg.Gallery.FetchURL, cfg.Gallery.FetchTimeout, logger)

	det := newDetector(cfg, logger)
	defer det.Close()

	mgr := capture.NewManager(capture.DeviceOpener{FPS: cfg.Camera.TargetFPS}, capture.ManagerConfig{
		MaxIndex:         cfg.Camera.MaxIndex,
		Settle:           cfg.Camera.Settle,
		TestReads:        cfg.Camera.TestReads,
		FailureThreshold: cfg.Camera.FailureThreshold,
		ReconnectDelay:   cfg.Camera.ReconnectDelay,
		Logger:           logger,
	})

	static, sequence := app.LoadModels(cfg.Models.StaticPath, cfg.Models.SequencePath, logger)

	application, err := app.New(app.Config{
		Capture:        mgr,
		Detector:       det,
		Static:         static,
		Sequence:       sequence,
		SequenceLength: cfg.Models.SequenceLength,
		MinConfidence:  cfg.Detector.MinConfidence,
		Vote: gesture.VoteConfig{
			HistorySize:         cfg.Vote.HistorySize,
			MinSupport:          cfg.Vote.MinSupport,
			WordMinConfidence:   cfg.Vote.WordMinConfidence,
			WordRepeatCooldown:  cfg.Vote.WordRepeatCooldown,
			LetterMinConfidence: cfg.Vote.LetterMinConfidence,
			LetterCooldown:      cfg.Vote.LetterCooldown,
		},
		Mode:            gesture.SourceLetter,
		Language:        cfg.Phrase.Language,
		Corrections:     cfg.Phrase.LetterCorrections,
		NetworkURL:      cfg.Camera.NetworkURL,
		TargetFPS:       cfg.Camera.TargetFPS,
		MotionThreshold: cfg.Camera.MotionThreshold,
		Store:           st,
		Lexicon:         lex,
		Gallery:         gal,
		Fetcher:         fetcher,
		Speaker:         engine,
		Listener:        engine,
		Notifier:        newNotifier(ctx, cfg, logger),
		SpeakTimeout:    cfg.Speech.SpeakTimeout,
		ListenTimeout:   cfg.Speech.ListenTimeout,
		DisplayHold:     cfg.Speech.DisplayHold,
		MissHold:        cfg.Speech.MissHold,
		LetterHold:      cfg.Speech.LetterHold,
		SpaceHold:       cfg.Speech.SpaceHold,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer application.Stop()

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg.DataDir),
		App:       application,
		Store:     st,
		Gallery:   gal,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.HTTPAddr)
	}()

	if cfg.Tray.Enabled {
		t := tray.New(application, logger)
		t.OnOpen(func() { openBrowser(browserURL(cfg.HTTPAddr), logger) })
		t.OnQuit(cancel)
		// Blocks on the main goroutine until Quit or a signal.
		t.Run(ctx)
		cancel()
	} else {
		select {
		case <-ctx.Done():
		case err := <-errCh:
			return err
		}
	}

	logger.Info("shutting down")
	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		return errors.New("http server did not stop in time")
	}
}

// newDetector starts the MediaPipe helper. Without it the app still runs,
// showing the preview and speech-to-gesture, but never sees a hand.
func newDetector(cfg *config.Config, logger *slog.Logger) detector.Detector {
	det, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        cfg.Detector.MaxHands,
		MinConfidence:   cfg.Detector.MinConfidence,
		MinTrackingConf: cfg.Detector.MinConfidence,
	}, detector.MediaPipeOptions{Logger: logger})
	if err != nil {
		logger.Error("hand detector unavailable, recognition disabled", "error", err)
		return detector.NewMockDetector()
	}
	return det
}

// newNotifier connects to the MQTT broker when one is configured. A broker
// that cannot be reached disables notifications.
func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if cfg.MQTT.Broker == "" {
		return notify.Nop{}
	}
	n := notify.NewMQTT(notify.MQTTConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Topic:    cfg.MQTT.Topic,
		QoS:      cfg.MQTT.QoS,
	}, logger)
	if err := n.Connect(ctx); err != nil {
		logger.Warn("mqtt unavailable, notifications disabled", "broker", cfg.MQTT.Broker, "error", err)
		n.Close()
		return notify.Nop{}
	}
	return n
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <data dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, logger *slog.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("failed to open browser", "url", url, "error", err)
		return
	}
	go cmd.Wait()
}
