package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"wastechem.org/internal/audit"
	"wastechem.org/internal/auth"
	"wastechem.org/internal/config"
	"wastechem.org/internal/datasvc"
	"wastechem.org/internal/datasvc/sqlstore"
	"wastechem.org/internal/datasvc/supabase"
	"wastechem.org/internal/httpapi"
	"wastechem.org/internal/inventory"
	"wastechem.org/internal/obs"
	"wastechem.org/internal/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is the data service selected by configuration.
type backend struct {
	tables   datasvc.Tables
	verifier auth.Verifier
	signer   storage.Signer
	// receiver is set when this process stores uploads itself.
	receiver *storage.Receiver
	close    func() error
}

func main() {
	configPath := flag.String("config", os.Getenv("WASTECHEM_CONFIG"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := obs.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format, version)
	obs.SetLogger(logger)
	slog.SetDefault(logger)
	obs.Init()
	obs.InitBuildInfo(version, commit, cfg.Backend)

	be, err := openBackend(cfg)
	if err != nil {
		logger.Error("data service setup failed", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer func() { _ = be.close() }()

	proxies, err := httpapi.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}

	tables := datasvc.Instrument(be.tables)
	authz := auth.NewAuthorizer(tables)
	recorder := audit.NewRecorder(tables, logger)

	api := httpapi.New(httpapi.Deps{
		Ready:          tables,
		Verifier:       be.verifier,
		Authorizer:     authz,
		Directory:      auth.NewDirectory(tables, authz),
		Inventory:      inventory.NewService(tables, recorder),
		Recorder:       recorder,
		Uploader:       storage.NewUploader(be.signer, cfg.Uploads.Buckets, cfg.Uploads.TTL),
		Receiver:       be.receiver,
		Logger:         logger,
		Version:        version,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		TrustedProxies: proxies,
		RateBurst:      cfg.HTTP.RateBurst,
		RatePerSec:     float64(cfg.HTTP.RatePerSec),
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcServer *grpc.Server
	if cfg.HTTP.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTP.GRPCAddr)
		if err != nil {
			logger.Error("grpc listen failed", "addr", cfg.HTTP.GRPCAddr, "error", err)
			os.Exit(1)
		}
		grpcServer = grpc.NewServer()
		httpapi.NewGRPCServer(tables).Register(grpcServer)
		go func() {
			logger.Info("grpc health listening", "addr", cfg.HTTP.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Error("grpc serve failed", "error", err)
			}
		}()
	}

	logger.Info("starting wastechem-api", "addr", srv.Addr, "backend", cfg.Backend)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	logger.Info("stopped")
}

func openBackend(cfg *config.Config) (backend, error) {
	switch cfg.Backend {
	case config.BackendSQL:
		store, err := sqlstore.Open(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			return backend{}, err
		}
		verifier, err := auth.NewJWTVerifier(cfg.Service.JWTSecret, cfg.Service.JWTAudience)
		if err != nil {
			_ = store.Close()
			return backend{}, err
		}
		signer, err := storage.NewJWTSigner(cfg.Service.JWTSecret, cfg.Uploads.PublicURL, cfg.Uploads.MaxBytes)
		if err != nil {
			_ = store.Close()
			return backend{}, err
		}
		disk, err := storage.NewDiskStore(cfg.Uploads.Dir)
		if err != nil {
			_ = store.Close()
			return backend{}, err
		}
		return backend{
			tables:   store,
			verifier: verifier,
			signer:   signer,
			receiver: storage.NewReceiver(signer, disk),
			close:    store.Close,
		}, nil

	default:
		client, err := supabase.New(cfg.Service.URL, cfg.Service.ServiceRoleKey, cfg.Service.AnonKey,
			supabase.WithTimeout(cfg.Service.Timeout))
		if err != nil {
			return backend{}, err
		}
		be := backend{tables: client, verifier: client, signer: client, close: func() error { return nil }}
		if cfg.Service.JWTSecret != "" {
			verifier, err := auth.NewJWTVerifier(cfg.Service.JWTSecret, cfg.Service.JWTAudience)
			if err != nil {
				return backend{}, err
			}
			be.verifier = verifier
		}
		return be, nil
	}
}
