package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"soundguard/internal/api"
	"soundguard/internal/audio"
	"soundguard/internal/classifier"
	"soundguard/internal/config"
	"soundguard/internal/detect"
	"soundguard/internal/features"
	"soundguard/internal/logger"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logr := logger.New(cfg.Log, "soundguard")
	if envErr != nil {
		logr.Debug().Msg("No .env file found, using environment variables")
	}

	gin.SetMode(cfg.GinMode)

	clf, err := classifier.Load(cfg.Model.Type, cfg.Model.Path)
	if err != nil {
		logr.Fatal().Err(err).Str("path", cfg.Model.Path).Msg("Failed to load model")
	}
	loader := &audio.Loader{
		FFmpegPath:    cfg.Audio.FFmpegPath,
		DecodeTimeout: cfg.Audio.DecodeTimeout,
	}
	if loader.FFmpegPath != "" {
		if _, err := exec.LookPath(loader.FFmpegPath); err != nil {
			logr.Warn().Err(err).Msg("ffmpeg not found, only WAV uploads can be classified")
			loader.FFmpegPath = ""
		}
	}

	detector, err := detect.New(loader, features.New(features.DefaultConfig()), clf)
	if err != nil {
		logr.Fatal().Err(err).Msg("Model does not match feature extractor")
	}
	logr.Info().
		Str("path", cfg.Model.Path).
		Int("input_size", clf.InputSize()).
		Int("classes", clf.NumClasses()).
		Msg("Model loaded")

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: newRouter(cfg, detector, logr),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info().Str("addr", srv.Addr).Msg("Scream detection server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logr.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logr.Fatal().Err(err).Msg("Server stopped with error")
	}
	logr.Info().Msg("Server stopped")
}

// newRouter wires the middleware chain and routes. The request logger sits
// outside Recovery so requests that panic are still logged with their 500.
func newRouter(cfg *config.Config, detector *detect.Detector, logr zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = cfg.HTTP.MaxUploadBytes()
	r.Use(logger.GinLogger(logr), gin.Recovery())

	// Add CORS middleware for mobile app
	r.Use(api.CORS(), api.BodyLimit(cfg.HTTP.MaxUploadBytes()))

	api.NewHandler(detector, api.Options{
		UploadDir:         cfg.Storage.UploadDir,
		TempDir:           cfg.Storage.TempDir,
		LegacyStatusCodes: cfg.HTTP.LegacyStatusCodes,
	}, logr).RegisterRoutes(r)
	return r
}
