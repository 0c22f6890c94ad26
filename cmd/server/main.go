package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/travelspend/internal/config"
	"github.com/mmynk/travelspend/internal/feed"
	"github.com/mmynk/travelspend/internal/metrics"
	"github.com/mmynk/travelspend/internal/middleware"
	"github.com/mmynk/travelspend/internal/notify"
	"github.com/mmynk/travelspend/internal/service"
	"github.com/mmynk/travelspend/internal/storage/sqlite"
	"github.com/mmynk/travelspend/internal/tracker"
	"github.com/mmynk/travelspend/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	printer, err := notify.NewPrinter(cfg.Locale)
	if err != nil {
		return err
	}

	var tr *tracker.Tracker
	hub := feed.NewHub(
		feed.ViewFunc(func() tracker.View { return tr.View() }),
		feed.WithCheckOrigin(middleware.OriginChecker(cfg.AllowedOrigins)),
	)
	defer hub.Close()

	notifiers := notify.Multi{notify.NewLogger(slog.Default()), hub}
	if cfg.AMQPURL != "" {
		publisher, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("connect notification broker: %w", err)
		}
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
		slog.Info("Publishing notifications", "exchange", cfg.AMQPExchange)
	}

	m := metrics.New()

	tr = tracker.New(store, notifiers, tracker.WithPrinter(printer))
	tr.OnChange(func() {
		m.ObserveView(tr.View())
		hub.PublishView()
	})
	if err := tr.Start(ctx); err != nil {
		// The tracker keeps serving whatever subscription did open.
		slog.Error("Tracker started with errors", "error", err)
	}
	defer tr.Close()

	svc := service.NewTravelService(store, tr, notifiers,
		service.WithPrinter(printer),
		service.WithDateLayout(cfg.DateLayout),
	)

	mux := http.NewServeMux()
	path, handler := service.NewTravelServiceHandler(
		service.NewHandler(svc, tr),
		connect.WithInterceptors(middleware.LoggingInterceptor(), m.Interceptor()),
	)
	mux.Handle(path, handler)
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// h2c serves HTTP/2 without TLS, which Connect clients use for streaming.
	root := middleware.AccessLog(middleware.CORS(cfg.AllowedOrigins)(mux))
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(root, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		hub.Close()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
