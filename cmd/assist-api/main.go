package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/HotelAssist/config"
	"github.com/BearBump/HotelAssist/internal/cache/rediscache"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to parse config, %v", err))
	}

	opts := assistHTTPOpts{swaggerPath: os.Getenv("swaggerPath")}
	if cfg.Assist.RedisSeenSet || cfg.Assist.RateLimitPerMinute > 0 {
		opts.ready = rediscache.New(redisAddr(cfg)).Ping
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := RunAssistAPI(ctx, cfg, defaultAssistFactories(), opts); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("assist-api", "error", err.Error())
		os.Exit(1)
	}
}
