package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/coreman2200/funtimes-pgp/internal/config"
	"github.com/coreman2200/funtimes-pgp/internal/indicator"
	"github.com/coreman2200/funtimes-pgp/internal/scene"
	"github.com/coreman2200/funtimes-pgp/internal/ws"
)

func main() {
	// ---- Flags (config.yaml overrides what it sets) ----
	var (
		configPath = flag.String("config", "pgpd.yaml", "path to pgpd.yaml")
		addr       = flag.String("addr", "", "HTTP listen address (default from config, :8080)")
		backend    = flag.String("backend", "", "device backend: serial | uart | file")
		port       = flag.String("port", "", "device port, UART name or output file")
		baud       = flag.Int("baud", 0, "baud rate")
		sceneDir   = flag.String("scenes", ".", "directory scene image and script paths resolve against")
		connect    = flag.Bool("connect", false, "connect to the device at startup")
		level      = flag.String("log", "", "log level: debug | info | warn | error")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stdout.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}

	// ---- Config ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults and flags")
		cfg = config.Default()
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *backend != "" {
		cfg.Device.Backend = *backend
	}
	if *port != "" {
		cfg.Device.Port = *port
	}
	if *baud > 0 {
		cfg.Device.Baud = *baud
	}
	if *connect {
		cfg.Device.AutoConnect = true
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Log.JSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// ---- State ----
	state := ws.NewState(cfg, *configPath)
	state.Loader = &scene.Loader{Dir: *sceneDir}
	if cfg.Indicator.Enabled {
		in, err := indicator.Open(cfg.Indicator.Dev, cfg.Indicator.Pixels, cfg.Indicator.SpeedHz)
		if err != nil {
			log.Warn().Err(err).Str("dev", cfg.Indicator.Dev).Msg("indicator init failed; logging only")
		} else {
			state.Indicator = in
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Device.AutoConnect {
		resp := state.Connect(ctx)
		if !resp.OK {
			log.Warn().Str("err", resp.Error).Msg("auto connect failed")
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      withCORS(state.Handler()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("backend", cfg.Device.Backend).Str("port", cfg.Device.Port).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if state.Indicator != nil {
		g.Go(func() error { return state.Indicator.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
	if err := state.Close(); err != nil {
		log.Warn().Err(err).Msg("disconnect")
	}
	if state.Indicator != nil {
		_ = state.Indicator.Close()
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
