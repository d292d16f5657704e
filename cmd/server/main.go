package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kitco/pricer/internal/api"
	"github.com/kitco/pricer/internal/cartsync"
	"github.com/kitco/pricer/internal/catalog"
	"github.com/kitco/pricer/internal/checkout"
	"github.com/kitco/pricer/internal/config"
	"github.com/kitco/pricer/internal/discount"
	"github.com/kitco/pricer/internal/events"
	"github.com/kitco/pricer/internal/history"
	"github.com/kitco/pricer/internal/repository"
	"github.com/kitco/pricer/internal/simulation"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("db_path", cfg.DBPath).Msg("initializing database")
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer db.Close()

	// Create repositories.
	productRepo := repository.NewProductRepo(db)
	tickRepo := repository.NewTickRepo(db)
	overrideRepo := repository.NewOverrideRepo(db)

	// Price simulation.
	local := simulation.NewLocalSource(cfg.PriceRadius, cfg.PriceSeed)
	var source simulation.Source = local
	if cfg.PriceSourceURL != "" {
		source = simulation.NewRemoteSource(cfg.PriceSourceURL, cfg.PriceSourceTimeout, local)
		log.Info().Str("url", cfg.PriceSourceURL).Msg("using remote price source")
	}
	prices := simulation.NewService(source, cfg.PriceInterval)

	// Catalog.
	catalogSvc, err := catalog.NewService(productRepo, prices, 512)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	restored, err := catalogSvc.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore catalog: %w", err)
	}
	if restored == 0 {
		log.Info().Msg("catalog is empty, seeding products from testdata")
		if err := seedProducts(ctx, catalogSvc); err != nil {
			log.Warn().Err(err).Msg("failed to seed products")
		}
	} else {
		log.Info().Int("products", restored).Msg("catalog restored, skipping seed")
	}

	// Cart synchronisation.
	cart := checkout.NewClient(checkout.Config{
		BaseURL:  cfg.CheckoutBaseURL,
		AppKey:   cfg.CheckoutAppKey,
		AppToken: cfg.CheckoutAppToken,
		Timeout:  cfg.CheckoutTimeout,
	})
	syncer := cartsync.NewSyncer(cart, prices, cartsync.Options{
		ToleranceBps: cfg.SyncToleranceBps,
		Recorder:     overrideRepo,
		SKUs:         catalogSvc,
	})
	defer syncer.Close()

	publisher, err := events.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		log.Warn().Err(err).Msg("rabbit unavailable, tick events disabled")
		publisher = nil
	}
	defer publisher.Close()

	recorder := history.NewRecorder(tickRepo, 64, time.Second)

	// Subscribe before the clock starts so no tick is missed.
	syncSub := prices.Subscribe(64)
	historySub := prices.Subscribe(256)
	var eventSub *simulation.Subscription
	if publisher != nil {
		eventSub = prices.Subscribe(256)
	}

	router := api.NewRouter(api.Deps{
		Prices:      prices,
		Local:       local,
		Schedule:    discount.DefaultSchedule(),
		Catalog:     catalogSvc,
		Syncer:      syncer,
		Ticks:       tickRepo,
		Overrides:   overrideRepo,
		CORSOrigins: cfg.CORSOrigins,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return prices.Run(gctx) })
	g.Go(func() error { return syncer.Run(gctx, syncSub.C) })
	g.Go(func() error { return recorder.Run(gctx, historySub.C) })
	if eventSub != nil {
		g.Go(func() error { return publisher.Run(gctx, eventSub.C) })
	}
	g.Go(func() error {
		logEndpoints(cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func logEndpoints(port string) {
	log.Info().Msgf("Kitco price simulator listening on http://localhost:%s", port)
	log.Info().Msgf("API base: http://localhost:%s/api/v1", port)
	for _, e := range []string{
		"GET    /price?basePrice=",
		"POST   /api/v1/products",
		"GET    /api/v1/products",
		"GET    /api/v1/products/{id}/price",
		"GET    /api/v1/products/{id}/bulk-discounts",
		"GET    /api/v1/products/{id}/quote",
		"GET    /api/v1/products/{id}/ticks",
		"POST   /api/v1/carts/{orderFormId}/watch",
		"DELETE /api/v1/carts/{orderFormId}/watch",
		"POST   /api/v1/carts/{orderFormId}/sync",
		"POST   /api/v1/carts/{orderFormId}/items",
		"GET    /api/v1/carts/{orderFormId}/overrides",
	} {
		log.Info().Msg("  " + e)
	}
}

func seedProducts(ctx context.Context, svc *catalog.Service) error {
	// Try multiple possible locations for testdata.
	candidates := []string{
		filepath.Join("testdata", "products.json"),
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "products.json"),
			filepath.Join(dir, "..", "..", "testdata", "products.json"),
		)
	}

	var data []byte
	var loadErr error
	for _, path := range candidates {
		data, loadErr = os.ReadFile(path)
		if loadErr == nil {
			log.Info().Str("path", path).Msg("loaded product snapshots")
			break
		}
	}
	if loadErr != nil {
		return fmt.Errorf("could not find products.json in any candidate path: %w", loadErr)
	}

	var snapshots []json.RawMessage
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return fmt.Errorf("unmarshal products: %w", err)
	}

	seeded := 0
	for _, raw := range snapshots {
		if _, err := svc.Ingest(ctx, raw); err != nil {
			log.Warn().Err(err).Msg("skipping product snapshot")
			continue
		}
		seeded++
	}
	log.Info().Int("seeded", seeded).Int("total", len(snapshots)).Msg("seeded products")
	return nil
}
