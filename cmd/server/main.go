// Command server runs the turn coordination service: it loads configuration,
// builds the game registry, and serves TCP requests until it receives
// SIGINT or SIGTERM.
//
// Adapted from the teacher's cmd/api/main.go graceful-shutdown pattern
// (signal.NotifyContext, a done channel, a bounded shutdown timeout), with
// an http.Server swapped for a net.Listener-backed server.Server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"turnserver/internal/config"
	"turnserver/internal/framework"
	"turnserver/internal/game"
	"turnserver/internal/games/tictactoe"
	"turnserver/internal/logging"
	"turnserver/internal/server"
)

func gracefulShutdown(srv *server.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("shutdown signal received, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}

	done <- true
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logs := logging.New(cfg)

	registry := game.NewRegistry(map[string]game.Class{
		"TicTacToe": tictactoe.Class,
	})

	gameTimeout := time.Duration(cfg.GameTimeout) * time.Second
	connectionTimeout := time.Duration(cfg.ConnectionTimeout) * time.Second

	fw := framework.New(registry, gameTimeout, cfg.RequestSizeMax, logs)

	addr := fmt.Sprintf("%s:%d", cfg.IP, cfg.Port)
	srv := server.New(addr, fw, cfg.BufferSize, cfg.RequestSizeMax, connectionTimeout, logs)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, done)

	if err := srv.Run(); err != nil {
		logs.ServerError.Fatal().Err(err).Msg("server exited with error")
	}

	<-done
	log.Println("graceful shutdown complete")
}
