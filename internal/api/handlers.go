package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/alerts"
	"github.com/trogers1052/trade-journal/internal/behavior"
	"github.com/trogers1052/trade-journal/internal/broker"
	"github.com/trogers1052/trade-journal/internal/matcher"
	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/simulator"
)

// Importer applies executions to a user's ledger
type Importer interface {
	Import(ctx context.Context, userID string, executions []models.Execution) (*matcher.ImportResult, error)
	ImportPending(ctx context.Context, userID string) (*matcher.ImportResult, error)
}

// JournalStore reads the persisted ledger and holdings
type JournalStore interface {
	GetClosedTrades(userID string, from, to time.Time) ([]*models.Trade, error)
	GetOpenLots(userID string) ([]*models.Trade, error)
	GetHoldings(userID string) ([]*models.Holding, error)
}

// Signals produces per-symbol stage and flag snapshots
type Signals interface {
	Snapshot(ctx context.Context, symbol string) models.SignalSnapshot
	SnapshotAll(ctx context.Context, symbols []string) []models.SignalSnapshot
}

// BehaviorAnalyzer builds a behavior report from closed trades and holdings
type BehaviorAnalyzer interface {
	Analyze(ctx context.Context, trades []*models.Trade, holdings []*models.Holding) behavior.Report
}

// PathSimulator replays trades against daily price paths
type PathSimulator interface {
	StopLossPath(ctx context.Context, trades []*models.Trade, stopLossPercent float64) simulator.Result
	TrailingStopPath(ctx context.Context, trades []*models.Trade, trailPercent float64) simulator.Result
}

// AlertRunner runs one alert evaluation pass
type AlertRunner interface {
	Run(ctx context.Context) (alerts.PassResult, error)
}

// BrokerSync pulls executions and holdings from a broker account
type BrokerSync interface {
	Sync(ctx context.Context, userID string) (*broker.SyncResult, error)
}

// Deps are the services behind the HTTP API. Nil optional services disable their routes.
type Deps struct {
	Importer Importer
	Store    JournalStore
	Signals  Signals
	Behavior BehaviorAnalyzer
	Paths    PathSimulator
	Alerts   AlertRunner
	Broker   BrokerSync
	Logger   *zap.Logger
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{deps: deps, logger: logger.Named("api")}
}

// ImportExecutions handles POST /users/{userID}/executions
func (h *Handler) ImportExecutions(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		Executions []models.Execution `json:"executions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Executions) == 0 {
		http.Error(w, "executions are required", http.StatusBadRequest)
		return
	}

	for i := range req.Executions {
		req.Executions[i].UserID = userID
	}

	result, err := h.deps.Importer.Import(r.Context(), userID, req.Executions)
	h.respondImport(w, result, err)
}

// ImportPending handles POST /users/{userID}/import-pending
func (h *Handler) ImportPending(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	result, err := h.deps.Importer.ImportPending(r.Context(), userID)
	h.respondImport(w, result, err)
}

func (h *Handler) respondImport(w http.ResponseWriter, result *matcher.ImportResult, err error) {
	if err == nil {
		respondJSON(w, http.StatusOK, result)
		return
	}

	h.logger.Warn("import failed", zap.Error(err))
	status := http.StatusInternalServerError
	if errors.Is(err, models.ErrOrderingViolation) {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, map[string]interface{}{
		"error":  err.Error(),
		"result": result,
	})
}

// GetOpenLots handles GET /users/{userID}/lots
func (h *Handler) GetOpenLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.deps.Store.GetOpenLots(mux.Vars(r)["userID"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, lots)
}

// GetBehavior handles GET /users/{userID}/behavior
func (h *Handler) GetBehavior(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	from, to, err := dateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	trades, err := h.deps.Store.GetClosedTrades(userID, from, endOfDay(to))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	holdings, err := h.deps.Store.GetHoldings(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, h.deps.Behavior.Analyze(r.Context(), trades, holdings))
}

type simulateRequest struct {
	Mode            string  `json:"mode"`
	StopLossPercent float64 `json:"stop_loss_percent"`
	TargetPercent   float64 `json:"target_percent"`
	TrailPercent    float64 `json:"trail_percent"`
	From            string  `json:"from"`
	To              string  `json:"to"`
}

// Simulation modes
const (
	ModeStopLoss       = "stop_loss"
	ModeTarget         = "target"
	ModeStopLossTarget = "stop_loss_target"
	ModeStopLossPath   = "stop_loss_path"
	ModeTrailingStop   = "trailing_stop_path"
)

// validate requires a positive percent for every rule the mode applies.
func (req simulateRequest) validate() error {
	switch req.Mode {
	case ModeStopLoss, ModeStopLossPath:
		if req.StopLossPercent <= 0 {
			return errors.New("stop_loss_percent must be positive")
		}
	case ModeTarget:
		if req.TargetPercent <= 0 {
			return errors.New("target_percent must be positive")
		}
	case ModeStopLossTarget, "":
		if req.StopLossPercent <= 0 && req.TargetPercent <= 0 {
			return errors.New("stop_loss_percent or target_percent must be positive")
		}
		if req.StopLossPercent < 0 || req.TargetPercent < 0 {
			return errors.New("percentages must not be negative")
		}
	case ModeTrailingStop:
		if req.TrailPercent <= 0 {
			return errors.New("trail_percent must be positive")
		}
	}
	return nil
}

// Simulate handles POST /users/{userID}/simulate
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, err := parseDate(req.From)
	if err != nil {
		http.Error(w, "invalid from date", http.StatusBadRequest)
		return
	}
	to, err := parseDate(req.To)
	if err != nil {
		http.Error(w, "invalid to date", http.StatusBadRequest)
		return
	}

	trades, err := h.deps.Store.GetClosedTrades(userID, from, endOfDay(to))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var result simulator.Result
	switch req.Mode {
	case ModeStopLoss:
		result = simulator.StopLoss(trades, req.StopLossPercent)
	case ModeTarget:
		result = simulator.TargetProfit(trades, req.TargetPercent)
	case ModeStopLossTarget, "":
		result = simulator.StopLossWithTarget(trades, req.StopLossPercent, req.TargetPercent)
	case ModeStopLossPath:
		if h.deps.Paths == nil {
			http.Error(w, "path simulation unavailable", http.StatusNotImplemented)
			return
		}
		result = h.deps.Paths.StopLossPath(r.Context(), trades, req.StopLossPercent)
	case ModeTrailingStop:
		if h.deps.Paths == nil {
			http.Error(w, "path simulation unavailable", http.StatusNotImplemented)
			return
		}
		result = h.deps.Paths.TrailingStopPath(r.Context(), trades, req.TrailPercent)
	default:
		http.Error(w, "unsupported mode "+req.Mode, http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetSignal handles GET /signals/{symbol}
func (h *Handler) GetSignal(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	respondJSON(w, http.StatusOK, h.deps.Signals.Snapshot(r.Context(), symbol))
}

// GetSignals handles GET /signals?symbols=A,B
func (h *Handler) GetSignals(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	for _, s := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		http.Error(w, "symbols is required", http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, h.deps.Signals.SnapshotAll(r.Context(), symbols))
}

// CheckAlerts handles POST /alerts/check
func (h *Handler) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Alerts.Run(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SyncBroker handles POST /users/{userID}/sync-broker
func (h *Handler) SyncBroker(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	result, err := h.deps.Broker.Sync(r.Context(), userID)
	if err != nil {
		h.logger.Warn("broker sync failed", zap.String("user_id", userID), zap.Error(err))
		respondJSON(w, http.StatusBadGateway, map[string]interface{}{"error": err.Error(), "result": result})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid from date")
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid to date")
	}
	return from, to, nil
}

// parseDate accepts YYYY-MM-DD; an empty value is an open bound
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

// endOfDay turns a date bound into the last instant of that day so sells made
// later on the to-date are included. A zero bound stays open.
func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.AddDate(0, 0, 1).Add(-time.Microsecond)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
