package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/config"
	kafkax "github.com/ariefcatur/go-commerce-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/redisx"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/stock"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/sweeper"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName+"-sweeper").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pRelease := kafkax.NewProducer(cfg.KafkaBrokers, commerce.TopicStockReleased, 1024, log)
	pRelease.Start(ctx)

	m := metrics.New("sweeper")
	ledger := stock.NewLedger(db, cfg.ReservationTTL, log)

	swp := sweeper.New(ledger, cfg.SweepInterval, log)
	swp.OnReleased = func(n int) { m.SweeperReleased.Add(float64(n)) }
	swp.Start(ctx)

	// released-on-cancel path shares the ledger with the periodic sweep;
	// both treat an already-released reservation as a benign no-op
	cc := &stock.CancelConsumer{
		Ledger:      ledger,
		Redis:       rdb,
		Producer:    pRelease,
		ServiceName: cfg.ServiceName + "-sweeper",
		Log:         log,
	}
	group := getenv("SWEEPER_GROUP", "stock-sweeper")
	workers := mustAtoi(os.Getenv("SWEEPER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, commerce.TopicOrderCancelled, workers, log)

	go func() {
		log.Info().Str("group", group).Str("topic", commerce.TopicOrderCancelled).
			Int("workers", workers).Msg("cancel consumer started")
		if err := cons.Start(ctx, cc.HandleOrderCancelled); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down sweeper...")
	swp.Stop()
	cancel()
	time.Sleep(500 * time.Millisecond)
	pRelease.Close()
	pRelease.WaitClosed()
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
