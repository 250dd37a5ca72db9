package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"datareg.org/internal/auth"
	"datareg.org/internal/blob"
	"datareg.org/internal/config"
	"datareg.org/internal/httpapi"
	"datareg.org/internal/obs"
	"datareg.org/internal/registry"
	"datareg.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		store registry.Store
		db    *pg.Store
	)
	if cfg.UseMemory() {
		store = registry.NewMemory()
		obs.Log("warn", "using in-memory store", map[string]any{"reason": "database.dsn is empty"})
	} else {
		db, err = pg.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = db
	}

	blobs, err := blob.NewDir(cfg.Uploads.Dir)
	if err != nil {
		log.Fatalf("upload dir: %v", err)
	}
	svc, err := registry.NewService(store, blobs)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	if cfg.UseMemory() && cfg.Seed.AdminPassword != "" {
		if _, err := svc.ProvisionUser(context.Background(), registry.NewUser{
			Username: cfg.Seed.AdminUsername,
			Password: cfg.Seed.AdminPassword,
			RealName: "Administrator",
			Role:     auth.RoleAdmin,
		}); err != nil {
			log.Fatalf("provision admin: %v", err)
		}
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.Secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithTTL(cfg.Auth.TokenTTL),
	)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	api, err := httpapi.New(svc, tokens,
		httpapi.WithVersion(version),
		httpapi.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		httpapi.WithMaxUpload(cfg.Uploads.MaxBytes),
		httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins...),
	)
	if err != nil {
		log.Fatalf("http api: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	grpcServer := grpc.NewServer()
	httpapi.NewGRPCServer(svc).Register(grpcServer)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}

	obs.Log("info", "starting", map[string]any{
		"version":   version,
		"http_addr": srv.Addr,
		"grpc_addr": cfg.GRPC.Addr,
		"store":     storeKind(cfg),
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Log("info", "shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcServer.GracefulStop()
	if db != nil {
		_ = db.Close()
	}
	obs.Log("info", "stopped", nil)
}

func storeKind(cfg config.Config) string {
	if cfg.UseMemory() {
		return "memory"
	}
	return "postgres"
}
