// Package server provides functionalities to start and manage the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"imghost/internal/config"
	"imghost/internal/gallery"
	"imghost/internal/server/auth"
	"imghost/internal/server/images"
	"imghost/pkg/minio"
	"imghost/pkg/object"
	"imghost/pkg/r2"
	"imghost/pkg/sqlite"
)

const shutdownTimeout = 10 * time.Second

// OpenStore initializes the object storage backend selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg *config.Server) (object.ObjectStorage, error) {
	var (
		backend object.ObjectStorage
		param   any
	)
	switch cfg.Driver {
	case config.DriverR2:
		backend = &r2.Storage{}
		param = r2.Config{
			AccountID:        cfg.R2.AccountID,
			AccessKey:        cfg.R2.AccessKey,
			SecretAccessKey:  cfg.R2.SecretAccessKey,
			Bucket:           cfg.R2.Bucket,
			EndpointOverride: cfg.R2.Endpoint,
		}
	case config.DriverMinIO:
		backend = &minio.Storage{}
		param = minio.Config{
			Endpoint:     cfg.MinIO.Endpoint,
			AccessKey:    cfg.MinIO.AccessKey,
			SecretKey:    cfg.MinIO.SecretKey,
			Bucket:       cfg.MinIO.Bucket,
			UseSSL:       cfg.MinIO.UseSSL,
			Region:       cfg.MinIO.Region,
			CreateBucket: cfg.MinIO.CreateBucket,
		}
	case config.DriverSQLite:
		backend = &sqlite.Storage{}
		param = sqlite.Config{
			Source:         cfg.SQLite.Source,
			AllowOverwrite: true,
		}
	default:
		return nil, fmt.Errorf("unknown backend driver: %s", cfg.Driver)
	}
	if err := backend.Init(ctx, param); err != nil {
		return nil, fmt.Errorf("init %s backend: %w", cfg.Driver, err)
	}
	return backend, nil
}

// Handler builds the full HTTP handler over store.
func Handler(cfg *config.Server, store object.ObjectStorage, log zerolog.Logger) http.Handler {
	svc := gallery.New(store, gallery.Config{
		Root:              cfg.RootPrefix,
		Domain:            cfg.Domain,
		CDNDomain:         cfg.CDNDomain,
		DeleteConcurrency: cfg.DeleteConcurrency,
	}, gallery.WithObservers(auditLog{}))

	authenticator := auth.New(auth.Credentials{
		APIToken:     cfg.APIToken,
		Username:     cfg.Username,
		Password:     cfg.Password,
		PasswordHash: cfg.PasswordHash,
	})
	if !authenticator.Enabled() {
		log.Warn().Msg("no API_TOKEN or USERNAME configured; uploads and deletions are disabled")
	}

	// Mux definition start
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	handle(mux, "/", images.Handler(svc, images.Options{
		PublicRead:     cfg.PublicRead,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}), compress, authenticator.Middleware)
	// Mux definition end

	return chain(mux, requestLogger(log), accessLog, cors)
}

// Serve opens the configured backend and serves HTTP until ctx is done.
func Serve(ctx context.Context, cfg *config.Server, log zerolog.Logger) error {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))
	log.Info().Str("driver", cfg.Driver).Str("root", cfg.RootPrefix).Msg("object storage ready")

	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           Handler(cfg, store, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.HTTPAddress)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	log.Info().Str("address", lis.Addr().String()).Msg("starting server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
