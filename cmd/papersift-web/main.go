package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"yashubustudio/papersift/internal/web"
	"yashubustudio/papersift/papersift"
)

type cliOptions struct {
	configPath string
	addr       string
	provider   string
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		log.Fatalf("papersift-web: %v", err)
	}
}

func parseFlags() cliOptions {
	var opts cliOptions
	flag.StringVar(&opts.configPath, "config", "", "Path to config.json or config.toml (default: ./config.json)")
	flag.StringVar(&opts.addr, "addr", "", "Listen address (default from config, :5000)")
	flag.StringVar(&opts.provider, "provider", "", "Embedding provider: onnx, openai or hashing")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	opts.configPath = strings.TrimSpace(opts.configPath)
	opts.addr = strings.TrimSpace(opts.addr)
	opts.provider = strings.TrimSpace(opts.provider)
	return opts
}

func run(opts cliOptions) error {
	cfg, err := papersift.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.addr != "" {
		cfg.Web.Addr = opts.addr
	}
	if opts.provider != "" {
		cfg.Embedder.Provider = opts.provider
	}
	if cfg.Embedder.CacheTTL == "" {
		cfg.Embedder.CacheTTL = cfg.Web.SessionTTL
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	pool := papersift.NewEmbedderPool(cfg, nil)
	defer pool.Close()

	srv, err := web.NewServer(cfg, pool, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go srv.Sessions().Janitor(ctx, time.Minute)

	httpServer := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s (model %s)", cfg.Web.Addr, pool.DefaultModel())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
