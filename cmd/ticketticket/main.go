package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/kirinyoku/ticketticket/docs"
	"github.com/kirinyoku/ticketticket/internal/app"
	"github.com/kirinyoku/ticketticket/internal/config"
)

// @title       TicketTicket API
// @version     1.0
// @description Marketplace for ticket companions, transfers and exchanges.
// @host        localhost:8080
// @BasePath    /
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
func main() {
	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
