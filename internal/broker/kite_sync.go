// Package broker pulls executions and holdings from a Zerodha Kite account.
package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/models"
)

// SourceKite tags executions pulled from Kite.
const SourceKite = "kite"

// KiteAccount is the subset of the Kite Connect client used for account sync.
type KiteAccount interface {
	GetTrades() (kiteconnect.Trades, error)
	GetHoldings() (kiteconnect.Holdings, error)
}

// ExecutionSink stores raw executions awaiting import.
type ExecutionSink interface {
	PendingExecutionExists(externalID, source string) (bool, error)
	CreatePendingExecution(e *models.Execution) error
}

// HoldingStore replaces a user's holdings snapshot.
type HoldingStore interface {
	ReplaceHoldings(userID string, holdings []*models.Holding) error
}

// SyncResult reports what one sync stored.
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Stored   int `json:"stored"`
	Existing int `json:"existing"`
	Holdings int `json:"holdings"`
}

// KiteSync copies the day's trades into the execution inbox and refreshes holdings.
type KiteSync struct {
	api      KiteAccount
	sink     ExecutionSink
	holdings HoldingStore
	logger   *zap.Logger
}

func NewKiteSync(api KiteAccount, sink ExecutionSink, holdings HoldingStore, logger *zap.Logger) *KiteSync {
	return &KiteSync{api: api, sink: sink, holdings: holdings, logger: logger.Named("kite-sync")}
}

func (k *KiteSync) Sync(ctx context.Context, userID string) (*SyncResult, error) {
	res := &SyncResult{}

	if err := k.syncTrades(ctx, userID, res); err != nil {
		return res, err
	}
	if err := k.syncHoldings(ctx, userID, res); err != nil {
		return res, err
	}

	k.logger.Info("kite sync complete",
		zap.String("user_id", userID),
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
		zap.Int("existing", res.Existing),
		zap.Int("holdings", res.Holdings))
	return res, nil
}

func (k *KiteSync) syncTrades(ctx context.Context, userID string, res *SyncResult) error {
	trades, err := k.api.GetTrades()
	if err != nil {
		return fmt.Errorf("failed to fetch kite trades: %w", err)
	}
	res.Fetched = len(trades)

	for _, t := range trades {
		if err := ctx.Err(); err != nil {
			return err
		}

		exec := ExecutionFromTrade(userID, t)
		exists, err := k.sink.PendingExecutionExists(exec.ExternalTradeID, SourceKite)
		if err != nil {
			return err
		}
		if exists {
			res.Existing++
			continue
		}
		if err := k.sink.CreatePendingExecution(exec); err != nil {
			return err
		}
		res.Stored++
	}
	return nil
}

func (k *KiteSync) syncHoldings(ctx context.Context, userID string, res *SyncResult) error {
	if k.holdings == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	hs, err := k.api.GetHoldings()
	if err != nil {
		return fmt.Errorf("failed to fetch kite holdings: %w", err)
	}

	out := make([]*models.Holding, 0, len(hs))
	now := time.Now()
	for _, h := range hs {
		qty := decimal.NewFromFloat(float64(h.Quantity))
		if !qty.IsPositive() {
			continue
		}
		avg := decimal.NewFromFloat(h.AveragePrice)
		last := decimal.NewFromFloat(h.LastPrice)
		out = append(out, &models.Holding{
			UserID:       userID,
			Symbol:       strings.ToUpper(h.Tradingsymbol),
			Quantity:     qty,
			AveragePrice: avg,
			CurrentPrice: last,
			UnrealizedPL: last.Sub(avg).Mul(qty),
			UpdatedAt:    now,
		})
	}

	if err := k.holdings.ReplaceHoldings(userID, out); err != nil {
		return err
	}
	res.Holdings = len(out)
	return nil
}

// ExecutionFromTrade maps a Kite fill onto an execution. The exchange is kept
// as the segment so derivative fills are filtered by the matcher.
func ExecutionFromTrade(userID string, t kiteconnect.Trade) *models.Execution {
	at := t.FillTimestamp.Time
	if at.IsZero() {
		at = t.ExchangeTimestamp.Time
	}
	return &models.Execution{
		UserID:          userID,
		Symbol:          strings.ToUpper(t.TradingSymbol),
		Side:            strings.ToUpper(t.TransactionType),
		Quantity:        decimal.NewFromFloat(float64(t.Quantity)),
		Price:           decimal.NewFromFloat(t.AveragePrice),
		ExecutedAt:      at,
		ExternalTradeID: t.TradeID,
		Segment:         t.Exchange,
		Source:          SourceKite,
	}
}
