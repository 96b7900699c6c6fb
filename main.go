package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gardenshare/internal/auth"
	"github.com/robalobadob/gardenshare/internal/config"
	"github.com/robalobadob/gardenshare/internal/datastore"
	"github.com/robalobadob/gardenshare/internal/httpserver"
	"github.com/robalobadob/gardenshare/internal/media"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	if cfg.UsesDevSecret() {
		log.Warn().Msg("JWT_SECRET not set, using development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := datastore.Open(ctx, datastore.Options{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseURL,
		Logger: log.Logger.With().Str("component", "datastore").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	var store media.Store
	if cfg.HasCloudinary() {
		store, err = media.NewCloudinary(media.CloudinaryConfig{
			URL:       cfg.CloudinaryURL,
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure cloudinary")
		}
	} else {
		log.Warn().Msg("cloudinary not configured, keeping uploads in memory")
		store = media.NewMemoryStore("http://localhost:" + cfg.Port + "/media")
	}

	srv := httpserver.New(httpserver.Deps{
		Store:     db,
		Tokens:    auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL()),
		Passwords: auth.NewPasswords(cfg.BcryptCost),
		Media:     store,
		Log:       log.Logger,
	}, httpserver.Options{
		CORSOrigins:       cfg.CORSOrigins,
		MediaFolder:       cfg.MediaFolder,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AuthRatePerMinute: cfg.AuthRatePerMinute,
		RequestTimeout:    cfg.RequestTimeout,
	})

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Str("driver", cfg.DatabaseDriver).Msg("starting garden share api")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

// setupLogging applies LOG_LEVEL and switches to console output outside production.
func setupLogging(cfg *config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
