package main

import (
	"net/http"

	"github.com/joho/godotenv"

	"github.com/yourusername/realtime-voice-proxy/internal/config"
	"github.com/yourusername/realtime-voice-proxy/internal/httpapi"
	"github.com/yourusername/realtime-voice-proxy/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Not an error - we might be using system env vars.
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Init(true)
		logger.WithComponent("main").Fatal().Err(err).Msg("configuration error")
	}

	logger.Init(cfg.IsDevelopment())
	log := logger.WithComponent("main")

	log.Info().Msg("starting realtime voice proxy")

	router := httpapi.NewRouter(cfg)

	log.Info().
		Str("port", cfg.Port).
		Str("path", cfg.ListenPath).
		Str("env", cfg.Env).
		Msg("listening")

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}
