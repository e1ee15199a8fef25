package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/matcher"
	"github.com/trogers1052/trade-journal/internal/models"
)

// ExecutionRepository stores reported executions in the import inbox
type ExecutionRepository interface {
	CreatePendingExecution(e *models.Execution) error
	PendingExecutionExists(externalID, source string) (bool, error)
}

// PendingImporter drains a user's inbox into the ledger
type PendingImporter interface {
	ImportPending(ctx context.Context, userID string) (*matcher.ImportResult, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

func newReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
}

// Consumer stores EXECUTION_REPORTED events in the execution inbox. When an
// importer is set, the user's inbox is imported after each stored execution.
type Consumer struct {
	reader   messageReader
	repo     ExecutionRepository
	importer PendingImporter
	logger   *zap.Logger
}

// NewConsumer creates a new Kafka consumer for execution events
func NewConsumer(brokers []string, topic, groupID string, repo ExecutionRepository, importer PendingImporter, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:   newReader(brokers, topic, groupID),
		repo:     repo,
		importer: importer,
		logger:   logger.Named("execution-consumer"),
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	return consume(ctx, c.reader, c.logger, c.processMessage)
}

func consume(ctx context.Context, reader messageReader, logger *zap.Logger, handle func(context.Context, kafka.Message) error) error {
	logger.Info("starting kafka consumer", zap.String("topic", reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			logger.Info("kafka consumer shutting down")
			return reader.Close()
		default:
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return reader.Close()
				}
				logger.Warn("error reading message", zap.Error(err))
				continue
			}

			if err := handle(ctx, msg); err != nil {
				logger.Warn("error processing message",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.ExecutionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal execution event: %w", err)
	}

	if event.EventType != models.EventExecutionReported {
		c.logger.Debug("ignoring event", zap.String("event_type", event.EventType))
		return nil
	}

	if event.Data.TradeID != "" {
		exists, err := c.repo.PendingExecutionExists(event.Data.TradeID, event.Source)
		if err != nil {
			return fmt.Errorf("failed to check for duplicate execution: %w", err)
		}
		if exists {
			c.logger.Debug("execution already stored",
				zap.String("trade_id", event.Data.TradeID), zap.String("source", event.Source))
			return nil
		}
	}

	exec, err := convertEvent(event)
	if err != nil {
		return fmt.Errorf("failed to convert execution event: %w", err)
	}

	if err := c.repo.CreatePendingExecution(exec); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	c.logger.Info("stored execution",
		zap.String("user_id", exec.UserID),
		zap.String("symbol", exec.Symbol),
		zap.String("side", exec.Side),
		zap.String("quantity", exec.Quantity.String()),
		zap.String("price", exec.Price.String()))

	if c.importer != nil {
		res, err := c.importer.ImportPending(ctx, exec.UserID)
		if err != nil {
			return fmt.Errorf("failed to import pending executions for %s: %w", exec.UserID, err)
		}
		c.logger.Debug("imported pending executions",
			zap.String("user_id", exec.UserID), zap.Int("mutations", res.Mutations))
	}
	return nil
}

// convertEvent maps an ExecutionEvent to an Execution
func convertEvent(event models.ExecutionEvent) (*models.Execution, error) {
	data := event.Data

	if strings.TrimSpace(data.UserID) == "" {
		return nil, fmt.Errorf("missing user_id")
	}

	quantity, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %s: %w", data.Quantity, err)
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %s: %w", data.Price, err)
	}

	side := strings.ToUpper(data.Side)
	if side != models.TradeTypeBuy && side != models.TradeTypeSell {
		return nil, fmt.Errorf("invalid trade side: %s", data.Side)
	}

	if data.ExecutedAt == nil || *data.ExecutedAt == "" {
		return nil, fmt.Errorf("missing executed_at")
	}
	executedAt, err := parseTimestamp(*data.ExecutedAt)
	if err != nil {
		return nil, err
	}

	return &models.Execution{
		UserID:          data.UserID,
		Symbol:          strings.ToUpper(strings.TrimSpace(data.Symbol)),
		Side:            side,
		Quantity:        quantity,
		Price:           price,
		ExecutedAt:      executedAt,
		ExternalTradeID: data.TradeID,
		Segment:         data.Segment,
		Source:          event.Source,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// Without timezone
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid executed_at %q", s)
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
