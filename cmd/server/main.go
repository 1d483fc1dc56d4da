package main

import (
	"log/slog"
	"os"

	"github.com/georgemblack/feed-sync/pkg/app"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}
	if os.Getenv("DEBUG") == "true" {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	err := app.Server()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
