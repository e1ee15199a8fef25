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

	"github.com/trogers1052/trade-journal/internal/models"
)

// HoldingsRepository replaces a user's holdings snapshot
type HoldingsRepository interface {
	ReplaceHoldings(userID string, holdings []*models.Holding) error
}

// HoldingsConsumer applies HOLDINGS_SNAPSHOT events
type HoldingsConsumer struct {
	reader messageReader
	repo   HoldingsRepository
	logger *zap.Logger
}

func NewHoldingsConsumer(brokers []string, topic, groupID string, repo HoldingsRepository, logger *zap.Logger) *HoldingsConsumer {
	return &HoldingsConsumer{
		reader: newReader(brokers, topic, groupID),
		repo:   repo,
		logger: logger.Named("holdings-consumer"),
	}
}

func (c *HoldingsConsumer) Start(ctx context.Context) error {
	return consume(ctx, c.reader, c.logger, c.processMessage)
}

func (c *HoldingsConsumer) processMessage(_ context.Context, msg kafka.Message) error {
	var event models.HoldingsEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal holdings event: %w", err)
	}
	if event.EventType != models.EventHoldingsSnapshot {
		return nil
	}
	if event.Data.UserID == "" {
		return fmt.Errorf("holdings snapshot without user_id")
	}

	holdings := make([]*models.Holding, 0, len(event.Data.Holdings))
	now := time.Now()
	for _, h := range event.Data.Holdings {
		qty, err := decimal.NewFromString(h.Quantity)
		if err != nil {
			return fmt.Errorf("invalid quantity %s for %s: %w", h.Quantity, h.Symbol, err)
		}
		if !qty.IsPositive() {
			continue
		}
		avg, err := decimal.NewFromString(h.AveragePrice)
		if err != nil {
			return fmt.Errorf("invalid average price %s for %s: %w", h.AveragePrice, h.Symbol, err)
		}
		last := avg
		if h.LastPrice != "" {
			if last, err = decimal.NewFromString(h.LastPrice); err != nil {
				return fmt.Errorf("invalid last price %s for %s: %w", h.LastPrice, h.Symbol, err)
			}
		}

		holdings = append(holdings, &models.Holding{
			UserID:       event.Data.UserID,
			Symbol:       strings.ToUpper(h.Symbol),
			Quantity:     qty,
			AveragePrice: avg,
			CurrentPrice: last,
			UnrealizedPL: last.Sub(avg).Mul(qty),
			UpdatedAt:    now,
		})
	}

	if err := c.repo.ReplaceHoldings(event.Data.UserID, holdings); err != nil {
		return fmt.Errorf("failed to replace holdings: %w", err)
	}
	c.logger.Info("holdings snapshot applied",
		zap.String("user_id", event.Data.UserID), zap.Int("holdings", len(holdings)))
	return nil
}

func (c *HoldingsConsumer) Close() error {
	return c.reader.Close()
}
