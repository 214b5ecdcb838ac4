package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/OmerCohen55/VideoProject/internal/adapter/driven/call/memory"
	"github.com/OmerCohen55/VideoProject/internal/adapter/driven/gateway/ws"
	handler "github.com/OmerCohen55/VideoProject/internal/adapter/driving/http"
)

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()

	_ = godotenv.Load()
	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	window := cast.ToDuration(os.Getenv("PRESENCE_WINDOW"))
	if window <= 0 {
		window = 30 * time.Second
	}

	registry := memory.NewRegistry()
	presence := memory.NewPresence(window)
	hub := ws.NewHub(l)

	h := handler.NewHandler(registry, presence, hub, l)

	srv := &http.Server{
		Addr:    addr,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", addr).Msg("Starting signaling server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	hub.Stop()
	l.Info().Msg("Server exited")
}
