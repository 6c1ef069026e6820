package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/HillTopTRPG/quoridorn-server-lib/internal/adapters/http"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/adapters/ws"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/config"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/core"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/interop"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/objstore"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var st store.Store
	switch cfg.StoreType {
	case "mongodb":
		mongo, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.DBNameSuffix)
		if err != nil {
			log.Fatal().Err(err).Msg("mongodb connect failed")
		}
		defer mongo.Close(context.Background())
		st = mongo
	default:
		st = store.NewMemory()
	}

	var objects objstore.Store
	if cfg.Minio.EndPoint != "" {
		minio, err := objstore.ConnectMinio(ctx, objstore.MinioOptions{
			EndPoint:  cfg.Minio.EndPoint,
			Port:      cfg.Minio.Port,
			UseSSL:    cfg.Minio.UseSSL,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("object storage connect failed")
		}
		objects = minio
	} else {
		objects = objstore.NewMemory()
	}

	window := interop.Window{}
	if cfg.InteroperabilityPath != "" {
		window, err = interop.Load(cfg.InteroperabilityPath, cfg.ServerVersion)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.InteroperabilityPath).Msg("interoperability load failed")
		}
	}

	ctrl := ws.NewController()
	engine := core.New(core.Options{
		Config:    cfg,
		Store:     st,
		Objects:   objects,
		Transport: ctrl,
		Window:    window,
	})
	ctrl.Core = engine
	engine.StartSweeper(ctx, time.Minute)

	r := router.SetupRouter(cfg, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("version", cfg.ServerVersion).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
