package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/doc-enricher/internal/bootstrap"
	"github.com/DeafMist/doc-enricher/internal/config"
	"github.com/DeafMist/doc-enricher/internal/dispatch"
	"github.com/DeafMist/doc-enricher/internal/events"
	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/metrics"
	"github.com/DeafMist/doc-enricher/internal/models"
)

type eventDispatcher interface {
	Dispatch(ctx context.Context, ev models.ChangeEvent) error
}

func main() {
	_ = godotenv.Load()

	log := logger.New("listener")
	cfg, err := config.LoadListener()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	metrics.Register()

	stack := bootstrap.New(cfg.Common, log)
	actions, err := stack.Actions(cfg.Actions...)
	if err != nil {
		log.Error("build actions", slog.Any("err", err))
		os.Exit(1)
	}
	dispatcher := dispatch.New(dispatch.DefaultRegistrations(cfg.Mappings, actions, stack.Repo, log), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := bootstrap.WaitReady(ctx, "repository", stack.Repo, 10, 2*time.Second, log); err != nil {
		log.Error("connect repository", slog.Any("err", err))
		os.Exit(1)
	}

	shutdownOps := bootstrap.ServeOps(bootstrap.OpsServer(cfg.MetricsBindAddr, stack.Repo), log)
	defer shutdownOps()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("listener started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
		slog.Any("registrations", dispatcher.Registrations()),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := handleMessage(ctx, log, dispatcher, msg); err != nil {
			log.Warn("handle message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			sent, canceled := deadLetter(ctx, log, dlqWriter, msg, err)
			if canceled {
				log.Info("context canceled during DLQ retry")
				return
			}
			// Only commit if DLQ write succeeded; otherwise skip commit and reprocess on restart
			if !sent {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// handleMessage decodes one repository event and runs every matching handler.
func handleMessage(ctx context.Context, log *slog.Logger, dispatcher eventDispatcher, msg kafka.Message) error {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		return err
	}

	log.Debug("event received",
		slog.String("event_id", ev.ID),
		slog.String("kind", string(ev.Kind)),
		slog.String("resource_id", ev.ResourceID),
	)
	return dispatcher.Dispatch(ctx, ev)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// deadLetter copies msg to the DLQ with error context, retrying with backoff.
func deadLetter(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error) (sent, canceled bool) {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range 5 {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true, false
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false, true
		}
	}
	return false, false
}
