package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gogpu/gg"

	"github.com/ayusman/fingerbrush/internal/app"
	"github.com/ayusman/fingerbrush/internal/capture"
	"github.com/ayusman/fingerbrush/internal/config"
	"github.com/ayusman/fingerbrush/internal/geometry"
	"github.com/ayusman/fingerbrush/internal/server"
	"github.com/ayusman/fingerbrush/internal/store"
	"github.com/ayusman/fingerbrush/internal/stroke"
	"github.com/ayusman/fingerbrush/internal/surface"
	"github.com/ayusman/fingerbrush/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	withTray := flag.Bool("tray", false, "show a system tray menu")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fingerbrush: %v\n", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *withTray {
		cfg.Tray = true
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	gg.SetLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fingerbrush failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	dbPath, err := resolveDBPath(cfg.DBPath)
	if err != nil {
		return err
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	restoreSettings(&cfg, st.Settings(), logger)

	mode, _ := stroke.ParseInputMode(cfg.Canvas.Mode)
	facing, _ := capture.ParseFacingMode(cfg.Camera.Facing)

	a, err := app.New(app.Config{
		Logger:         logger,
		Canvas:         geometry.Size{Width: cfg.Canvas.Width, Height: cfg.Canvas.Height},
		StrokeColor:    cfg.Canvas.StrokeColor,
		LineWidth:      cfg.Canvas.LineWidth,
		PinchThreshold: cfg.Gesture.PinchThreshold,
		Smoothing:      cfg.Gesture.Smoothing,
		Mode:           mode,
		Facing:         facing,
		Devices: capture.Devices{
			User:        cfg.Camera.UserDevice,
			Environment: cfg.Camera.EnvironmentDevice,
			Probe:       cfg.Camera.ProbeDevices,
		},
		CameraWidth:     cfg.Camera.Width,
		CameraHeight:    cfg.Camera.Height,
		TickFPS:         cfg.Pipeline.TickFPS,
		IdleFPS:         cfg.Pipeline.IdleFPS,
		ActiveFPS:       cfg.Pipeline.ActiveFPS,
		IdleTimeout:     cfg.Pipeline.IdleTimeout,
		MotionThreshold: cfg.Pipeline.MotionThreshold,
		Settings:        st.Settings(),
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	if err := a.Start(); err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	defer a.Stop()

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logger.Info("serving static files", "dir", staticDir)
	}

	httpServer := &http.Server{
		Addr: cfg.Addr,
		Handler: server.New(server.Config{
			StaticDir: staticDir,
			Store:     st,
			App:       a,
			Logger:    logger,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cfg.Tray {
		// The tray owns the main thread until it quits.
		t := newTray(a, cfg.Addr, stop, logger)
		go func() {
			select {
			case <-ctx.Done():
			case <-serveErr:
			}
			t.Quit()
		}()
		t.Run()
		stop()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	return runErr
}

func newTray(a *app.App, addr string, quit func(), logger *slog.Logger) *tray.Tray {
	status := a.Status()
	mode, _ := stroke.ParseInputMode(status.Mode)

	t := tray.New(mode)
	t.SetGestureAvailable(status.GestureAvailable)
	t.OnModeToggle(func(m stroke.InputMode) error {
		if err := a.SetMode(m); err != nil {
			logger.Warn("switch input mode", "mode", m, "error", err)
			return err
		}
		return nil
	})
	t.OnFlipCamera(func() {
		if _, err := a.FlipCamera(); err != nil {
			logger.Warn("flip camera", "error", err)
		}
		t.SetGestureAvailable(a.Status().GestureAvailable)
	})
	t.OnClear(func() {
		if err := a.Clear(); err != nil {
			logger.Warn("clear canvas", "error", err)
		}
	})
	t.OnOpen(func() {
		if err := openBrowser(browserURL(addr)); err != nil {
			logger.Warn("open browser", "error", err)
		}
	})
	t.OnQuit(quit)
	return t
}

// restoreSettings applies persisted user choices over the config. Values
// that no longer parse are ignored.
func restoreSettings(cfg *config.Config, settings *store.SettingsRepository, logger *slog.Logger) {
	saved, err := settings.All()
	if err != nil {
		logger.Warn("load settings", "error", err)
		return
	}

	if v, ok := saved[app.SettingMode]; ok {
		if _, err := stroke.ParseInputMode(v); err == nil {
			cfg.Canvas.Mode = v
		}
	}
	if v, ok := saved[app.SettingColor]; ok {
		if _, _, err := surface.ParseColor(v); err == nil {
			cfg.Canvas.StrokeColor = v
		}
	}
	if v, ok := saved[app.SettingFacing]; ok {
		if _, err := capture.ParseFacingMode(v); err == nil {
			cfg.Camera.Facing = v
		}
	}
}

func resolveDBPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dbDir := filepath.Join(homeDir, ".fingerbrush")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return filepath.Join(dbDir, "fingerbrush.db"), nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.fingerbrush/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".fingerbrush", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

func browserURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
