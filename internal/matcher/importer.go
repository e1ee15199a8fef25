package matcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/telemetry"
)

// DefaultBatchSize is the number of ledger mutations committed per transaction.
const DefaultBatchSize = 50

// LedgerStore is the ledger persistence contract. Implemented by database.DB.
type LedgerStore interface {
	GetLedger(userID string) ([]*models.Trade, error)
	ApplyLedgerBatch(userID string, mutations []models.LedgerMutation) error
}

// ExecutionInbox holds executions reported by brokers or the message bus that
// have not been matched yet. Implemented by database.DB.
type ExecutionInbox interface {
	GetPendingExecutions(userID string) ([]*models.Execution, error)
	MarkExecutionsProcessed(ids []int) error
}

// ImportResult reports an import run. It is returned even when a batch fails.
type ImportResult struct {
	UserID           string  `json:"user_id"`
	Summary          Summary `json:"summary"`
	Mutations        int     `json:"mutations"`
	BatchesCommitted int     `json:"batches_committed"`
	BatchesTotal     int     `json:"batches_total"`
	// Deferred holds the input indexes of sells that reached lots created in
	// the same run.
	Deferred []int `json:"deferred,omitempty"`
}

// userLocks serializes imports per user.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (u *userLocks) lock(userID string) func() {
	u.mu.Lock()
	if u.locks == nil {
		u.locks = make(map[string]*sync.Mutex)
	}
	l, ok := u.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[userID] = l
	}
	u.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Importer runs the matcher against a user's persisted ledger and commits the
// resulting mutations in fixed-size batches.
type Importer struct {
	matcher   *Matcher
	store     LedgerStore
	inbox     ExecutionInbox
	batchSize int
	locks     userLocks
	logger    *zap.Logger
}

func NewImporter(store LedgerStore, inbox ExecutionInbox, batchSize int, logger *zap.Logger) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Importer{
		matcher:   New(),
		store:     store,
		inbox:     inbox,
		batchSize: batchSize,
		logger:    logger.Named("importer"),
	}
}

// Import matches executions against the user's ledger. Each batch of
// mutations commits atomically; a failing batch stops the run and earlier
// batches stay committed. Re-running the same executions is safe.
func (im *Importer) Import(ctx context.Context, userID string, executions []models.Execution) (*ImportResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "matcher.import",
		attribute.String("user_id", userID), attribute.Int("executions", len(executions)))
	defer span.End()

	unlock := im.locks.lock(userID)
	defer unlock()

	result := &ImportResult{UserID: userID}

	ledger, err := im.store.GetLedger(userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, fmt.Errorf("failed to load ledger for %s: %w", userID, err)
	}

	matched, err := im.matcher.Match(userID, ledger, executions)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	result.Summary = matched.Summary
	result.Mutations = len(matched.Mutations)
	result.Deferred = matched.Deferred

	batches := ledgerBatches(matched.Mutations, im.batchSize)
	result.BatchesTotal = len(batches)

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("import for %s cancelled after %d batches: %w", userID, result.BatchesCommitted, err)
		}

		if err := im.store.ApplyLedgerBatch(userID, batch); err != nil {
			telemetry.RecordError(span, err)
			im.logger.Error("ledger batch failed",
				zap.String("user_id", userID),
				zap.Int("batch", result.BatchesCommitted+1),
				zap.Int("batches_total", result.BatchesTotal),
				zap.Error(err))
			return result, fmt.Errorf("failed to apply ledger batch %d/%d for %s: %w",
				result.BatchesCommitted+1, result.BatchesTotal, userID, err)
		}
		result.BatchesCommitted++
	}

	im.logger.Info("import complete",
		zap.String("user_id", userID),
		zap.Int("total", result.Summary.Total),
		zap.Int("applied", result.Summary.Applied),
		zap.Int("skipped", result.Summary.Skipped),
		zap.Int("duplicates", result.Summary.Duplicates),
		zap.Int("deferred_closes", result.Summary.DeferredCloses),
		zap.Int("mutations", result.Mutations))

	return result, nil
}

// ImportPending drains the user's execution inbox: pending rows are sorted
// chronologically, imported, and marked processed only if every batch committed.
func (im *Importer) ImportPending(ctx context.Context, userID string) (*ImportResult, error) {
	if im.inbox == nil {
		return nil, fmt.Errorf("no execution inbox configured")
	}

	pending, err := im.inbox.GetPendingExecutions(userID)
	if err != nil {
		return &ImportResult{UserID: userID}, fmt.Errorf("failed to load pending executions for %s: %w", userID, err)
	}

	executions := make([]models.Execution, 0, len(pending))
	for _, p := range pending {
		executions = append(executions, *p)
	}
	SortExecutions(executions)

	result, err := im.Import(ctx, userID, executions)
	if err != nil {
		return result, err
	}

	// Deferred sells stay pending so the next drain closes the lots they reached.
	keep := make(map[int]bool, len(result.Deferred))
	for _, i := range result.Deferred {
		keep[i] = true
	}
	ids := make([]int, 0, len(executions))
	for i, e := range executions {
		if !keep[i] {
			ids = append(ids, e.ID)
		}
	}

	if len(ids) > 0 {
		if err := im.inbox.MarkExecutionsProcessed(ids); err != nil {
			return result, fmt.Errorf("failed to mark executions processed: %w", err)
		}
	}
	return result, nil
}

// ledgerBatches cuts mutations into batches of size. A REDUCE and the CREATE
// of its closed part always commit together, so a batch may exceed size by one.
func ledgerBatches(mutations []models.LedgerMutation, size int) [][]models.LedgerMutation {
	var batches [][]models.LedgerMutation
	start := 0
	for start < len(mutations) {
		end := start + size
		if end > len(mutations) {
			end = len(mutations)
		}
		if mutations[end-1].Kind == models.MutationReduce && end < len(mutations) {
			end++
		}
		batches = append(batches, mutations[start:end])
		start = end
	}
	return batches
}

// SortExecutions orders executions by time, keeping input order for ties.
func SortExecutions(executions []models.Execution) {
	sort.SliceStable(executions, func(i, j int) bool {
		return executions[i].ExecutedAt.Before(executions[j].ExecutedAt)
	})
}
