package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"vistorias/pkg/api"
	"vistorias/pkg/auth"
	"vistorias/pkg/cep"
	"vistorias/pkg/config"
	"vistorias/pkg/db"
	"vistorias/pkg/notify"
	"vistorias/pkg/storage"
	"vistorias/pkg/store"
	"vistorias/pkg/version"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			return serve(cmd.Context(), cfg, log, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "migrate and seed before serving")
	return cmd
}

// seed writes a generated admin password to out only; it never reaches the log.
func seed(gdb *gorm.DB, cfg config.Config, nome string, log *zap.Logger, out io.Writer) (db.SeedResult, error) {
	res, err := db.Seed(gdb, db.SeedOptions{AdminNome: nome, AdminEmail: cfg.AdminEmail, AdminSenha: cfg.AdminPassword})
	if err != nil {
		return res, fmt.Errorf("seed: %w", err)
	}
	log.Info("seed done",
		zap.Bool("adminCriado", res.AdminCriado),
		zap.Int("templates", res.TemplatesNovos),
		zap.Int("tiposFoto", res.TiposFotoNovos))
	if res.SenhaGerada != "" {
		log.Warn("bootstrap admin created with a generated password; change it after first login",
			zap.String("email", cfg.AdminEmail))
		fmt.Fprintf(out, "admin %s criado com senha temporária: %s\n", cfg.AdminEmail, res.SenhaGerada)
	}
	return res, nil
}

func openObjects(ctx context.Context, cfg config.Config) (storage.ObjectStore, http.Handler, error) {
	switch cfg.StorageBackend {
	case "s3":
		s, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:     cfg.S3Bucket,
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			PathStyle:  cfg.S3PathStyle,
			PresignTTL: cfg.PresignTTL,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
		})
		return s, nil, err
	default:
		var secret string
		if cfg.JWTSecret != "" {
			secret = "uploads:" + cfg.JWTSecret
		}
		s, err := storage.NewLocalStore(storage.LocalOptions{
			Root:      cfg.UploadDir,
			URLPrefix: "/uploads",
			Secret:    secret,
			TTL:       cfg.PresignTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger, migrate bool) error {
	gdb, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if migrate {
		if err := db.Migrate(gdb); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if _, err := seed(gdb, cfg, "Administrador", log, os.Stderr); err != nil {
			return err
		}
	}

	objects, uploads, err := openObjects(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if issuer.UsingDefaultSecret() {
		log.Warn("JWT_SECRET not set; using the built-in development secret")
	}
	hub := notify.NewHub(issuer, log.Named("ws"), cfg.CORSOrigin)
	defer hub.Close()

	srv := api.New(api.Deps{
		Store:          store.New(gdb),
		Issuer:         issuer,
		Objects:        objects,
		CEP:            cep.NewClient(cfg.CEPBaseURL),
		Notify:         hub,
		Log:            log,
		WS:             http.HandlerFunc(hub.HandleWS),
		Uploads:        uploads,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigin:     cfg.CORSOrigin,
		Empresa:        cfg.EmpresaNome,
	})
	tlsCfg, err := api.TLSConfig(cfg)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening",
			zap.String("addr", cfg.Addr),
			zap.Bool("tls", tlsCfg != nil),
			zap.String("storage", cfg.StorageBackend),
			zap.String("db", cfg.DBDriver),
			zap.String("version", version.String()))
		if tlsCfg != nil {
			errCh <- httpSrv.ListenAndServeTLS("", "")
			return
		}
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	hub.Close()
	return httpSrv.Shutdown(shutCtx)
}
