package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/safar/orderdesk/internal/api"
	"github.com/safar/orderdesk/internal/config"
	"github.com/safar/orderdesk/internal/database"
	"github.com/safar/orderdesk/internal/invoice"
	"github.com/safar/orderdesk/internal/logging"
	"github.com/safar/orderdesk/internal/metrics"
	"github.com/safar/orderdesk/internal/notify"
	"github.com/safar/orderdesk/internal/orders"
	"github.com/safar/orderdesk/internal/store"
)

type notifier interface {
	orders.Notifier
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Load config")
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Connect to database")
	}
	defer db.Close()

	log.Info().Msg("Connected to database successfully")

	srvMetrics := metrics.NewServerMetrics("api")

	var events notifier = notify.Nop{}
	if cfg.Notifier.Enabled() {
		writer := notify.NewWriter(cfg.Notifier.Brokers, cfg.Notifier.OrderTopic)
		events = notify.NewKafkaNotifier(writer, notify.Options{
			BufferSize: cfg.Notifier.BufferSize,
			OnDrop:     srvMetrics.DroppedNotifications.Inc,
		})
		log.Info().Strs("brokers", cfg.Notifier.Brokers).Str("topic", cfg.Notifier.OrderTopic).Msg("Publishing order events to kafka")
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, order events are discarded")
	}

	svc := orders.NewService(
		store.NewOrderStore(db),
		store.NewCatalogue(database.Sqlx(db)),
		events,
		orders.Options{},
	)

	renderer, err := newRenderer(cfg.Invoice)
	if err != nil {
		log.Fatal().Err(err).Msg("Configure invoice renderer")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(api.NewHandler(svc, renderer, srvMetrics)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := events.Close(); err != nil {
		log.Error().Err(err).Msg("Close notifier")
	}

	log.Info().Msg("Server stopped")
}

func newRenderer(cfg config.InvoiceConfig) (*invoice.Renderer, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	opts := invoice.DefaultOptions()
	opts.Company = invoice.Company{
		Name:    cfg.CompanyName,
		Address: cfg.CompanyAddress,
		Email:   cfg.CompanyEmail,
		Phone:   cfg.CompanyPhone,
	}
	opts.ShippingFee = cfg.ShippingFee
	opts.Location = loc
	opts.FetchTimeout = cfg.ImageFetchTimeout

	return invoice.NewRenderer(invoice.NewHTTPFetcher(cfg.ImageFetchTimeout), opts), nil
}
