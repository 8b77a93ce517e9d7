// gagebu-worker consumes flush-completed events from RabbitMQ and
// keeps a last-flush journal entry in the local database. Dashboards
// and the gagebu-flush cron read the journal instead of polling the
// server.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gagebu/internal/amqp"
	"gagebu/internal/cli"
)

const lastFlushKey = "last-flush"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting gagebu-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	kv := cli.InitKV(logger, cfg.SQLiteDBPath)
	defer kv.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := func(msg *amqp.FlushCompletedMessage) error {
		logger.Info("Flush completed",
			"flushed", msg.Flushed,
			"remaining", msg.Remaining,
			"at", msg.Timestamp)

		body, err := msg.ToJSON()
		if err != nil {
			return err
		}

		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return kv.SetItem(writeCtx, lastFlushKey, string(body))
	}

	if err := amqpClient.ConsumeFlushCompleted(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
