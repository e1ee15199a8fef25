package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	if handler.deps.Importer != nil {
		api.HandleFunc("/users/{userID}/executions", handler.ImportExecutions).Methods("POST")
		api.HandleFunc("/users/{userID}/import-pending", handler.ImportPending).Methods("POST")
	}
	if handler.deps.Store != nil {
		api.HandleFunc("/users/{userID}/lots", handler.GetOpenLots).Methods("GET")
		api.HandleFunc("/users/{userID}/simulate", handler.Simulate).Methods("POST")
		if handler.deps.Behavior != nil {
			api.HandleFunc("/users/{userID}/behavior", handler.GetBehavior).Methods("GET")
		}
	}
	if handler.deps.Broker != nil {
		api.HandleFunc("/users/{userID}/sync-broker", handler.SyncBroker).Methods("POST")
	}
	if handler.deps.Signals != nil {
		api.HandleFunc("/signals", handler.GetSignals).Methods("GET")
		api.HandleFunc("/signals/{symbol}", handler.GetSignal).Methods("GET")
	}
	if handler.deps.Alerts != nil {
		api.HandleFunc("/alerts/check", handler.CheckAlerts).Methods("POST")
	}

	return r
}
