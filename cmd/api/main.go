package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/catalog"
	"royaltyhub.org/internal/config"
	"royaltyhub.org/internal/docstore"
	"royaltyhub.org/internal/httpapi"
	"royaltyhub.org/internal/obs"
	"royaltyhub.org/internal/ratelimit"
	"royaltyhub.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("load config")
	}
	obs.Configure(cfg.LogLevel, cfg.LogFormat)
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var docs docstore.Store
	if cfg.PostgresDSN != "" {
		store, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open postgres")
		}
		defer store.Close()
		docs = store
	} else {
		log.Warn().Msg("ROYALTYHUB_PG_DSN not set; using in-memory store")
		docs = docstore.NewInMemory()
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemory(cfg.LoginMaxAttempts, cfg.LoginWindow)
	if cfg.RedisAddr != "" {
		client, err := ratelimit.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		defer client.Close()
		limiter = ratelimit.NewRedis(client, cfg.LoginMaxAttempts, cfg.LoginWindow)
	}

	codec, err := auth.NewCodec(cfg.TokenSecret, auth.WithTTL(cfg.TokenTTL), auth.WithIssuer(cfg.TokenIssuer))
	if err != nil {
		log.Fatal().Err(err).Msg("token codec")
	}
	users := auth.NewDocStore(docs)
	probe := httpapi.PingProbe{Target: docs}

	api, err := httpapi.New(httpapi.Options{
		ApplicationToken: cfg.ApplicationToken,
		Auth:             auth.NewService(users, users, codec),
		Catalog:          catalog.NewService(docs),
		Limiter:          limiter,
		Ready:            probe,
		Version:          version,
		CORSOrigins:      cfg.CORSOrigins,
		RateBurst:        cfg.RateBurst,
		RatePerSec:       float64(cfg.RatePerSec),
		MaxBodyBytes:     cfg.MaxBodyBytes,

		TrustProxyHeaders: cfg.TrustProxy,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build api")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("grpc listen")
		}
		grpcServer = grpc.NewServer()
		health := httpapi.NewHealthReporter(probe)
		health.Register(grpcServer)
		go health.Run(ctx, 10*time.Second)
		go func() {
			log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc listening")
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Error().Err(err).Msg("grpc server")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	log.Info().Msg("stopped")
}
