package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gagebu/internal/amqp"
	"gagebu/internal/api"
	"gagebu/internal/cli"
	apphttp "gagebu/internal/http"
	"gagebu/internal/netmon"
	"gagebu/internal/queue"
	"gagebu/internal/store"
	"gagebu/internal/syncer"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting gagebu")

	cfg := cli.LoadAndValidateConfig(logger)

	kv := cli.InitKV(logger, cfg.SQLiteDBPath)
	defer kv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pending, err := queue.Open(ctx, kv)
	if err != nil {
		logger.Error("Failed to open mutation queue", "error", err)
		os.Exit(1)
	}
	logger.Info("Mutation queue restored", "pending", pending.Len())

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTokenSource(func(ctx context.Context) (string, error) {
			return cfg.APIToken, nil
		}),
		api.WithUnauthorizedHandler(func() {
			logger.Warn("Backend rejected the API token")
		}),
	)

	transactions, err := store.OpenTransactionStore(ctx, client, pending, kv)
	if err != nil {
		logger.Error("Failed to open transaction store", "error", err)
		os.Exit(1)
	}
	categories := store.NewCategoryStore(client)
	cards := store.NewCardStore(client)

	engineOpts := []syncer.Option{}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		engineOpts = append(engineOpts, syncer.WithNotifier(amqpClient))
		logger.Info("AMQP flush events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	engineOpts = append(engineOpts, syncer.WithLogger(logger.WithComponent("syncer").Logger))
	engine := syncer.NewEngine(client, pending, transactions, engineOpts...)

	probeURL := cfg.ProbeURL
	if probeURL == "" {
		probeURL = strings.TrimSuffix(cfg.APIBaseURL, "/") + "/health"
	}
	monitor := netmon.NewMonitor(netmon.NewHTTPProber(probeURL, cfg.ProbeInterval))
	monitor.OnOnline(func() {
		go func() {
			if err := engine.Flush(context.Background()); err != nil {
				logger.Error("Reconnect flush failed", "error", err)
			}
		}()
	})
	monitor.Start(ctx)
	defer monitor.Stop()

	// Drain anything left over from the previous run.
	if pending.Len() > 0 {
		go func() {
			if err := engine.Flush(context.Background()); err != nil {
				logger.Error("Startup flush failed", "error", err)
			}
		}()
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Monitor:      monitor,
		Engine:       engine,
		Transactions: transactions,
		Categories:   categories,
		Cards:        cards,
		Pending:      pending,
		CacheSize:    cfg.SuggestCacheSize,
		CacheTTL:     cfg.SuggestCacheTTL,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting gagebu server", "port", cfg.Port, "api", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
			return gctx.Err()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
