package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/HotelAssist/config"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to parse config, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := RunAssistJournal(ctx, cfg, defaultJournalFactories(), journalOpts{}); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("assist-journal", "error", err.Error())
		os.Exit(1)
	}
}
