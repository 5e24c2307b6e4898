package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/mesh-api/internal/alert"
	"github.com/jwalitptl/mesh-api/internal/config"
	"github.com/jwalitptl/mesh-api/internal/handler"
	routingHandler "github.com/jwalitptl/mesh-api/internal/handler/routing"
	"github.com/jwalitptl/mesh-api/internal/model"
	"github.com/jwalitptl/mesh-api/internal/repository/postgres"
	"github.com/jwalitptl/mesh-api/internal/router"
	breakerService "github.com/jwalitptl/mesh-api/internal/service/breaker"
	eventService "github.com/jwalitptl/mesh-api/internal/service/event"
	healthService "github.com/jwalitptl/mesh-api/internal/service/health"
	replicaService "github.com/jwalitptl/mesh-api/internal/service/replica"
	routingService "github.com/jwalitptl/mesh-api/internal/service/routing"
	"github.com/jwalitptl/mesh-api/pkg/clock"
	"github.com/jwalitptl/mesh-api/pkg/logger"
	"github.com/jwalitptl/mesh-api/pkg/messaging"
	redisBroker "github.com/jwalitptl/mesh-api/pkg/messaging/redis"
	"github.com/jwalitptl/mesh-api/pkg/metrics"
)

const routingEventsChannel = "mesh.routing.events"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	clk := clock.New()

	m := metrics.New("meshapi")
	m.Register(prometheus.DefaultRegisterer)

	// Region catalog: database when configured, config file otherwise.
	regions, err := loadRegions(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load region catalog")
	}

	// Message broker for routing events, optional.
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, appLogger.Zerolog())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
	}
	events := eventService.NewService(broker, routingEventsChannel, clk, appLogger)
	alerts := alert.NewService(cfg.Alerts, clk, appLogger)

	// Routing core.
	breakerSvc := breakerService.NewService(regionIDs(regions), breakerService.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
	}, clk, appLogger, m)
	breakerSvc.OnTransition(func(regionID string, from, to model.CircuitState) {
		events.Record(context.Background(), eventService.TypeBreakerTransition, regionID, map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		})
		if to == model.CircuitOpen {
			alerts.BreakerOpened(regionID)
		}
	})

	healthSvc := healthService.NewService(regions,
		healthService.NewHTTPProber(cfg.Health.ProbeTimeout),
		healthService.Settings{
			ProbeInterval: cfg.Health.ProbeInterval,
			ProbeTimeout:  cfg.Health.ProbeTimeout,
			WindowSize:    cfg.Health.WindowSize,
		}, clk, appLogger, m)
	healthSvc.OnChange(func(regionID string, healthy bool, lastError string) {
		events.Record(context.Background(), eventService.TypeRegionHealthChanged, regionID, map[string]interface{}{
			"healthy":    healthy,
			"last_error": lastError,
		})
		if !healthy {
			alerts.RegionUnhealthy(regionID, lastError)
		}
	})

	routingSvc, err := routingService.NewService(regions, healthSvc, breakerSvc, appLogger, m)
	if err != nil {
		log.Fatal().Err(err).Msg("no active regions configured")
	}

	poolSvc := replicaService.NewService(regions, replicaService.Settings{
		ReplicasPerRegion: cfg.Pool.ReplicasPerRegion,
		LeaseWait:         cfg.Pool.LeaseWait,
	}, breakerSvc, clk, appLogger, m)

	healthSvc.Start()
	defer healthSvc.Stop()

	// HTTP surface.
	routingH := routingHandler.NewHandler(routingSvc, healthSvc, breakerSvc, poolSvc, appLogger)
	h := handler.NewHandler(routingSvc)

	r := router.NewRouter(routingH, h, router.Config{
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		MetricsPrefix:  "meshapi_http",
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Int("regions", len(regions)).Msg("mesh routing service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

func loadRegions(cfg *config.Config) ([]model.Region, error) {
	if cfg.Database.Host == "" {
		return cfg.RegionModels(), nil
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	regions, err := postgres.NewRegionRepository(db).ListRegions(ctx)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return cfg.RegionModels(), nil
	}
	return regions, nil
}

func regionIDs(regions []model.Region) []string {
	ids := make([]string, 0, len(regions))
	for _, r := range regions {
		ids = append(ids, r.ID)
	}
	return ids
}
