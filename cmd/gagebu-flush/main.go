// gagebu-flush replays the persisted mutation queue once and exits.
// Useful from cron or after restoring a database file.
package main

import (
	"context"
	"os"
	"time"

	"gagebu/internal/api"
	"gagebu/internal/cli"
	"gagebu/internal/queue"
	"gagebu/internal/store"
	"gagebu/internal/syncer"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	cfg := cli.LoadAndValidateConfig(logger)

	kv := cli.InitKV(logger, cfg.SQLiteDBPath)
	defer kv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pending, err := queue.Open(ctx, kv)
	if err != nil {
		logger.Error("Failed to open mutation queue", "error", err)
		os.Exit(1)
	}

	if pending.Len() == 0 {
		logger.Info("Nothing to flush")
		return
	}
	logger.Info("Flushing pending mutations", "count", pending.Len())

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTokenSource(func(ctx context.Context) (string, error) {
			return cfg.APIToken, nil
		}),
	)

	if err := client.Health(ctx); err != nil {
		logger.Error("Backend unreachable, refusing to flush", "error", err)
		os.Exit(1)
	}

	transactions, err := store.OpenTransactionStore(ctx, client, pending, kv)
	if err != nil {
		logger.Error("Failed to open transaction store", "error", err)
		os.Exit(1)
	}

	engine := syncer.NewEngine(client, pending, transactions,
		syncer.WithLogger(logger.WithComponent("syncer").Logger))
	if err := engine.Flush(ctx); err != nil {
		logger.Error("Flush stopped early", "error", err, "remaining", pending.Len())
		os.Exit(1)
	}

	logger.Info("Flush complete", "remaining", pending.Len())
}
