package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/models"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Cached keeps series and quotes in Redis in front of another provider.
// Cache errors are logged and never fail a request.
type Cached struct {
	next      PriceSeriesProvider
	client    *redis.Client
	seriesTTL time.Duration
	quoteTTL  time.Duration
	logger    *zap.Logger
}

func NewCached(next PriceSeriesProvider, client *redis.Client, seriesTTL, quoteTTL time.Duration, logger *zap.Logger) *Cached {
	return &Cached{
		next:      next,
		client:    client,
		seriesTTL: seriesTTL,
		quoteTTL:  quoteTTL,
		logger:    logger.Named("price_cache"),
	}
}

func seriesKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("series:%s:%s:%s", strings.ToUpper(symbol), start.Format("20060102"), end.Format("20060102"))
}

func quoteKey(symbol string) string {
	return "quote:" + strings.ToUpper(symbol)
}

func (c *Cached) DailySeries(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	key := seriesKey(symbol, start, end)

	var bars []models.Bar
	if c.get(ctx, key, &bars) {
		return bars, nil
	}

	bars, err := c.next.DailySeries(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, bars, c.seriesTTL)
	return bars, nil
}

func (c *Cached) LiveQuote(ctx context.Context, symbol string) (models.Quote, error) {
	key := quoteKey(symbol)

	var q models.Quote
	if c.get(ctx, key, &q) {
		return q, nil
	}

	q, err := c.next.LiveQuote(ctx, symbol)
	if err != nil {
		return q, err
	}
	c.set(ctx, key, q, c.quoteTTL)
	return q, nil
}

func (c *Cached) get(ctx context.Context, key string, dest interface{}) bool {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(val, dest); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Cached) set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
