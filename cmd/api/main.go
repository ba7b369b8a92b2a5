package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/checkout"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/commerce"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/config"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-commerce-checkout.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/orders"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/postgres"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/pricing"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/promotion"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/redisx"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/stock"
	"github.com/ariefcatur/go-commerce-checkout.git/internal/sweeper"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pCheckout := kafkax.NewProducer(cfg.KafkaBrokers, commerce.TopicCheckoutCompleted, 1024, log)
	pCancel := kafkax.NewProducer(cfg.KafkaBrokers, commerce.TopicOrderCancelled, 1024, log)
	pReserve := kafkax.NewProducer(cfg.KafkaBrokers, commerce.TopicStockReserved, 1024, log)
	pRelease := kafkax.NewProducer(cfg.KafkaBrokers, commerce.TopicStockReleased, 1024, log)
	producers := []*kafkax.Producer{pCheckout, pCancel, pReserve, pRelease}
	for _, p := range producers {
		p.Start(ctx)
	}

	m := metrics.New("api")
	ledger := stock.NewLedger(db, cfg.ReservationTTL, log)
	swp := sweeper.New(ledger, cfg.SweepInterval, log)
	swp.OnReleased = func(n int) { m.SweeperReleased.Add(float64(n)) }

	h := &httpx.CommerceHandler{
		Checkout:         checkout.NewService(&checkout.PgxBeginner{DB: db}, cfg.TaxRate, log),
		Pricing:          pricing.NewResolver(&pricing.PgxStore{DB: db}, rdb, log),
		Promos:           promotion.NewService(&promotion.PgxStore{Q: db}, log),
		Orders:           orders.NewService(db, log),
		Ledger:           ledger,
		Sweeper:          swp,
		Redis:            rdb,
		Metrics:          m,
		Service:          cfg.ServiceName,
		CheckoutProducer: pCheckout,
		CancelProducer:   pCancel,
		ReserveProducer:  pReserve,
		ReleaseProducer:  pRelease,
	}

	router := httpx.NewRouter()
	h.Register(router)
	router.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
	cancel()
}
