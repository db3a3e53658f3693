package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public API, the admin surface and the operational
// endpoints. adminSecret guards /admin; when empty the admin routes
// reject every request.
func NewRouter(h *Handler, adminSecret []byte) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/window", h.WindowStatusHandler).Methods("GET")
	apiV1.HandleFunc("/addresses", h.ListAddressesHandler).Methods("GET")
	apiV1.HandleFunc("/settlements", h.SubmitSettlementHandler).Methods("POST")

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(RequireAdmin(adminSecret))
	admin.HandleFunc("/settlements", h.ListSettlementsHandler).Methods("GET")
	admin.HandleFunc("/settlements/orphans", h.OrphanSettlementsHandler).Methods("GET")
	admin.HandleFunc("/settlements/export", h.ExportSettlementsHandler).Methods("GET")

	return r
}
