// README: Entry point; loads config, wires services, starts HTTP server and background schedulers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"boda/internal/config"
	httptransport "boda/internal/http"
	"boda/internal/infra"
	"boda/internal/modules/bulk"
	"boda/internal/modules/countdown"
	"boda/internal/modules/dispatch"
	"boda/internal/modules/order"
	"boda/internal/modules/pricing"
	"boda/internal/modules/rider"
	"boda/internal/types"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("service", "boda-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	pricingSvc := pricing.NewService(cfg.Pricing)

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, pricingSvc)

	riderStore := rider.NewStore(dbPool, redisClient)
	riderSvc := rider.NewService(riderStore)

	book := dispatch.NewStore(redisClient)

	// The tracker's expire hook calls back into the dispatcher, which in
	// turn stops the tracker; resolve the cycle by capturing the service
	// variable before it is assigned.
	var dispatchSvc *dispatch.Service
	tracker := countdown.New(func(ctx context.Context, orderID types.ID) {
		if _, err := dispatchSvc.Expire(ctx, orderID); err != nil {
			log.Error().Err(err).Str("order_id", string(orderID)).Msg("countdown expire failed")
		}
	})
	dispatchSvc = dispatch.NewService(orderStore, riderSvc, book, tracker, cfg.Dispatch)

	bulkStore := bulk.NewStore(dbPool)
	bulkSvc := bulk.NewService(bulkStore, orderSvc, dispatchSvc)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Order:     orderSvc,
		Dispatch:  dispatchSvc,
		Riders:    riderSvc,
		Bulk:      bulkSvc,
		Countdown: tracker,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go dispatchSvc.RunExpirySweep(ctx)
	go tracker.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
}
