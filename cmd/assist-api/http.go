package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/HotelAssist/config"
	assistapi "github.com/BearBump/HotelAssist/internal/api/assist_api"
	"github.com/BearBump/HotelAssist/internal/services/sessions"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type assistHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	// ready is optional; it backs /readyz.
	ready func(ctx context.Context) error

	mgr *sessions.Manager
	cfg *config.Config
}

func runAssistHTTPServer(ctx context.Context, opts assistHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.swaggerPath == "" {
		return errors.New("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return errors.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.ready != nil {
			if err := opts.ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.mgr == nil {
			_, _ = w.Write([]byte(`{"error":"sessions not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.mgr.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Operational settings only, no hosts or credentials.
		p := listPolicy(opts.cfg)
		out := map[string]any{
			"hotelApiMode":                opts.cfg.HotelAPI.Mode,
			"paymentFirstDelay":           p.FirstDelay.String(),
			"paymentInterval":             p.Interval.String(),
			"paymentWindow":               p.Window.String(),
			"paymentMaxPolls":             p.MaxPolls(),
			"notificationIntervalSeconds": opts.cfg.Assist.NotificationIntervalSeconds,
			"redisSeenSet":                opts.cfg.Assist.RedisSeenSet,
			"seenTTLSeconds":              opts.cfg.Assist.SeenTTLSeconds,
			"rateLimitPerMinute":          opts.cfg.Assist.RateLimitPerMinute,
			"publishEvents":               opts.cfg.Assist.PublishEvents,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.mgr == nil {
			_, _ = w.Write([]byte(`{"error":"sessions not wired"}`))
			return
		}
		n := opts.mgr.Trigger()
		_ = json.NewEncoder(w).Encode(map[string]any{"triggered": true, "sessions": n})
	})

	// no-store plus a cachebuster so /docs always picks up a fresh file
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	if opts.mgr != nil {
		assistapi.New(opts.mgr).Register(r)
	}

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("assist HTTP listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
