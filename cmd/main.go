package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/bookswap/internal/auth"
	"github.com/fjod/bookswap/internal/blob"
	"github.com/fjod/bookswap/internal/cache"
	"github.com/fjod/bookswap/internal/config"
	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/events"
	h "github.com/fjod/bookswap/internal/http"
	"github.com/fjod/bookswap/internal/publisher"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/fjod/bookswap/internal/service"
	"github.com/fjod/bookswap/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/text/currency"
)

func main() {
	cfg := config.Load()

	l := logger.New(cfg.LogLevel, !cfg.IsProduction())
	log.Logger = l
	zerolog.DefaultContextLogger = &l

	// incoming traceparent headers become the request span context
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	cur, err := currency.ParseISO(cfg.MarketCurrency)
	if err != nil {
		log.Fatal().Err(err).Str("currency", cfg.MarketCurrency).Msg("invalid market currency")
	}

	ctx := context.Background()

	// Postgres: carts, orders, reviews
	cred := &repository.Credentials{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.Name,
	}
	if err := repository.RunMigrations(cred); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	pool, err := repository.NewPool(ctx, cred)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	// Mongo: book catalog
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := repository.DisconnectMongoDB(context.Background(), mongoDB); err != nil {
			log.Warn().Err(err).Msg("mongodb disconnect failed")
		}
	}()
	catalog := repository.NewMongoCatalog(mongoDB)
	if err := catalog.CreateIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create catalog indexes")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis ping succeeded")

	minioGateway, err := blob.NewMinioGateway(blob.MinioConfig{
		Endpoint:  cfg.Blob.Endpoint,
		AccessKey: cfg.Blob.AccessKey,
		SecretKey: cfg.Blob.SecretKey,
		Bucket:    cfg.Blob.Bucket,
		Region:    cfg.Blob.Region,
		UseSSL:    cfg.Blob.UseSSL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create blob gateway")
	}
	if err := minioGateway.EnsureBucket(ctx, cfg.Blob.Region); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare bucket")
	}
	blobs := blob.NewBreakerGateway(minioGateway)
	previews := blob.NewPreviewCache(cfg.PreviewCacheSize, blob.PreviewURLExpiry)

	eventPublisher := newPublisher(cfg)
	defer func() {
		if err := eventPublisher.Close(); err != nil {
			log.Warn().Err(err).Msg("event publisher close failed")
		}
	}()

	var policy domain.TransitionPolicy = domain.PermissiveTransitions{}
	if cfg.StrictOrderTransitions {
		policy = domain.StrictTransitions{}
	}

	cartCache := cache.NewRedisCache(redisClient)
	carts := repository.NewCartRepository(pool, cur)
	orders := repository.NewOrderRepository(pool)
	reviews := repository.NewReviewRepository(pool)

	router := h.NewRouter(h.Deps{
		Auth:        auth.NewSessionStore(redisClient, cfg.SessionTTL),
		Listings:    service.NewListingService(catalog, cur),
		Carts:       service.NewCartService(carts, catalog, cartCache),
		Orders:      service.NewOrderService(orders, catalog, cartCache, policy, cur),
		Fulfillment: service.NewFulfillmentService(orders, catalog, blobs, cache.NewRedisDownloadTokens(redisClient)),
		Media:       service.NewMediaService(catalog, blobs, previews),
		Reviews:     service.NewReviewService(reviews, orders, catalog),
		Logger:      l,
		Options: h.Options{
			Timeout:       cfg.RequestTimeout,
			Production:    cfg.IsProduction(),
			MaxUploadSize: cfg.MaxUploadSize,
		},
	})

	pollCtx, stopPoller := context.WithCancel(l.WithContext(context.Background()))
	poller := publisher.NewOutboxPoller(repository.NewOutboxRepository(pool), eventPublisher,
		publisher.WithEventTick(cfg.OutboxPollInterval),
		publisher.WithRetention(cfg.OutboxRetention),
	)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(pollCtx)
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Mount("/", router)

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
	}).Handler(r)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(handler, "bookswap"),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("env", cfg.Env).Msg("bookswap starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	stopPoller()
	<-pollerDone
	log.Info().Msg("server exited")
}

func newPublisher(cfg *config.Config) events.Publisher {
	switch cfg.EventsDriver {
	case "kafka":
		log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("publishing events to kafka")
		return events.NewKafkaPublisher(cfg.KafkaBrokers...)
	case "rabbitmq":
		p, err := events.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		log.Info().Str("exchange", cfg.RabbitExchange).Msg("publishing events to rabbitmq")
		return p
	default:
		return events.LogPublisher{}
	}
}
