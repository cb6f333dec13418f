package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	cfgpkg "http-inspector/internal/infrastructure/config"
	httpapi "http-inspector/internal/infrastructure/httpapi"
	obs "http-inspector/internal/infrastructure/observability"
	"http-inspector/internal/inspector"
)

func main() {
	configPath := flag.String("config", os.Getenv("INSPECTOR_CONFIG"), "YAML config file")
	demo := flag.Duration("demo", 0, "issue demo requests through the tap at this interval (0 disables)")
	open := flag.Bool("open", false, "open the inspector API in a browser on start")
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := obs.NewLogger(cfg.LogLevel)
	var logFile io.Closer
	if cfg.LogFile != "" {
		logger, logFile = obs.NewFileLogger(cfg.LogLevel, cfg.LogFile, cfg.LogMaxSizeMB)
	}
	logger.Info().Str("addr", cfg.Addr).Str("commit", obs.Commit).Msg("starting http-inspector")

	metrics := obs.NewMetrics()
	monitor := httpapi.NewMonitorHub(cfg.CORSAllowOrigin)
	ins := inspector.New(
		inspector.WithLogger(logger),
		inspector.WithMetrics(metrics),
		inspector.WithOverlay(monitor),
		inspector.WithPresenter(browserPresenter{url: baseURL(cfg.Addr) + "/api/transactions"}),
	)
	if err := ins.Configure(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	ins.Subscribe(monitor.TransactionCaptured)
	ins.Start()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(&httpapi.Deps{Cfg: cfg, Logger: logger, Metrics: metrics, Inspector: ins, Monitor: monitor}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *demo > 0 {
		go runDemo(ctx, ins, logger, baseURL(cfg.Addr), *demo)
	}
	if *open {
		go func() {
			time.Sleep(300 * time.Millisecond)
			if err := ins.Show(); err != nil {
				logger.Warn().Err(err).Msg("could not open browser")
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	if err := ins.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("notifications still in flight")
	}
	logger.Info().Msg("http-inspector stopped")
	if logFile != nil {
		_ = logFile.Close()
	}
}

// runDemo sends a small mix of successful and failing requests through the
// tap so a fresh inspector has something to show.
func runDemo(ctx context.Context, ins *inspector.Inspector, logger *zerolog.Logger, self string, every time.Duration) {
	hc := ins.Client()
	hc.Timeout = 5 * time.Second
	targets := []string{
		self + "/healthz",
		self + "/api/version",
		self + "/does-not-exist",
		"http://inspector-demo.invalid/",
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, targets[i%len(targets)], nil)
		req.Header.Set("Authorization", "Bearer demo-token")
		resp, err := hc.Do(req)
		if err != nil {
			logger.Debug().Err(err).Msg("demo request failed")
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}

func baseURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, ":"):
		return "http://localhost" + addr
	case !strings.HasPrefix(addr, "http"):
		return "http://" + addr
	}
	return addr
}

type browserPresenter struct{ url string }

func (p browserPresenter) Show() error { return openBrowser(p.url) }

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
