package main

import (
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"

	"github.com/teamforge/authedge/adapters/events"
	"github.com/teamforge/authedge/adapters/issuer"
	"github.com/teamforge/authedge/adapters/store"
	"github.com/teamforge/authedge/config"
	"github.com/teamforge/authedge/ports"
	"github.com/teamforge/authedge/service"
	transport "github.com/teamforge/authedge/transport/http"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	issuerClient, err := issuer.NewClient(cfg.IssuerURL, cfg.UpstreamTimeout)
	if err != nil {
		logger.Error("failed to create issuer client", "error", err)
		os.Exit(1)
	}

	// With Redis, session envelopes survive instance restarts and lifecycle
	// events reach other instances. Without it, both fall back to process-local.
	var envelopes ports.EnvelopeStore
	var publisher ports.EventPublisher
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse Redis URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		envelopes = store.NewRedisStore(redisClient)

		wmLogger := watermill.NewStdLogger(false, false)
		pub, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			wmLogger,
		)
		if err != nil {
			logger.Error("failed to create Redis publisher", "error", err)
			os.Exit(1)
		}
		publisher = events.NewWatermillPublisher(pub)
	} else {
		envelopes = store.NewMemoryStore()
	}

	renewer := service.NewRenewer(issuerClient, publisher, logger)
	exchange := service.NewExchange(issuerClient, envelopes, publisher, []byte(cfg.EnvelopeSecret), logger)

	proxyClient, err := service.NewProxyClient(cfg.BackendURL, renewer, cfg.UpstreamTimeout, logger)
	if err != nil {
		logger.Error("failed to create proxy client", "error", err)
		os.Exit(1)
	}

	server := transport.NewServer(exchange, renewer, proxyClient, cfg.HubURL, cfg.SecureCookies, logger)
	router := transport.SetupRouter(server)

	logger.Info("starting session edge", "addr", cfg.ListenAddr)
	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
