package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/okassov/paygate/internal/domain"
	"github.com/okassov/paygate/internal/report"
	"github.com/okassov/paygate/internal/store"
	"github.com/okassov/paygate/internal/window"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paygate_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})

	settlementAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paygate_settlement_attempts_total",
		Help: "Settlement submissions by terminal state",
	}, []string{"result"})
)

// Settler is the settlement entrypoint the handler drives.
type Settler interface {
	Submit(ctx context.Context, claim domain.ClaimedTransaction) (*domain.SettlementOutcome, error)
}

type Handler struct {
	settler   Settler
	ledger    store.Ledger
	calc      window.Calculator
	addresses []domain.PaymentAddress
	now       func() time.Time
}

func NewHandler(settler Settler, ledger store.Ledger, calc window.Calculator, addresses []domain.PaymentAddress) *Handler {
	return &Handler{
		settler:   settler,
		ledger:    ledger,
		calc:      calc,
		addresses: addresses,
		now:       time.Now,
	}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// windowPayload is the wire shape of the window status, with the
// presentation strings layered on top of the raw dates.
type windowPayload struct {
	IsOpen        bool   `json:"is_open"`
	OpensOn       string `json:"opens_on"`
	OpensOnLabel  string `json:"opens_on_label"`
	ClosesOn      string `json:"closes_on"`
	ClosesOnLabel string `json:"closes_on_label"`
	DaysUntilOpen int    `json:"days_until_open"`
}

func toWindowPayload(win window.Window) windowPayload {
	return windowPayload{
		IsOpen:        win.IsOpen,
		OpensOn:       win.OpensOn.String(),
		OpensOnLabel:  win.OpensOn.Label(),
		ClosesOn:      win.ClosesOn.String(),
		ClosesOnLabel: win.ClosesOn.Label(),
		DaysUntilOpen: win.DaysUntilOpen,
	}
}

func (h *Handler) WindowStatusHandler(w http.ResponseWriter, r *http.Request) {
	win := h.calc.Status(window.DateOf(h.now().UTC()))
	httpRequestsTotal.WithLabelValues("GET", "/window", "200").Inc()
	respondWithJSON(w, http.StatusOK, toWindowPayload(win))
}

func (h *Handler) ListAddressesHandler(w http.ResponseWriter, r *http.Request) {
	httpRequestsTotal.WithLabelValues("GET", "/addresses", "200").Inc()
	respondWithJSON(w, http.StatusOK, h.addresses)
}

// settlementRequest is the submission payload.
type settlementRequest struct {
	PayerID   string `json:"payer_id"`
	TxHash    string `json:"tx_hash"`
	AddressID string `json:"address_id"`
}

func (h *Handler) SubmitSettlementHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/settlements"))
	defer timer.ObserveDuration()

	var req settlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.countAndRespondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/settlements")
		return
	}
	if req.PayerID == "" || req.TxHash == "" || req.AddressID == "" {
		h.countAndRespondError(w, http.StatusUnprocessableEntity, "payer_id, tx_hash and address_id are required", "POST", "/settlements")
		return
	}

	addr, ok := h.addressByID(req.AddressID)
	if !ok {
		h.countAndRespondError(w, http.StatusUnprocessableEntity, "Unknown payment address", "POST", "/settlements")
		return
	}

	// Window gate: submissions outside the window are refused before any
	// ledger work happens.
	win := h.calc.Status(window.DateOf(h.now().UTC()))
	if !win.IsOpen {
		settlementAttempts.WithLabelValues(string(domain.ReasonWindowClosed)).Inc()
		httpRequestsTotal.WithLabelValues("POST", "/settlements", "403").Inc()
		respondWithJSON(w, http.StatusForbidden, map[string]any{
			"error":  "Payment window is closed",
			"reason": domain.ReasonWindowClosed,
			"window": toWindowPayload(win),
		})
		return
	}

	outcome, err := h.settler.Submit(r.Context(), domain.ClaimedTransaction{
		LedgerAddress: addr.Address,
		Reference:     req.TxHash,
		PayerID:       req.PayerID,
	})
	if err != nil {
		settlementAttempts.WithLabelValues("error").Inc()
		if errors.Is(err, domain.ErrOracleUnavailable) {
			// Transient: the payer should retry later, not resend funds.
			h.countAndRespondError(w, http.StatusBadGateway, "Ledger oracle unavailable, try again later", "POST", "/settlements")
			return
		}
		h.countAndRespondError(w, http.StatusInternalServerError, "Internal Server Error", "POST", "/settlements")
		return
	}

	settlementAttempts.WithLabelValues(resultLabel(outcome)).Inc()
	status := statusForOutcome(outcome)
	httpRequestsTotal.WithLabelValues("POST", "/settlements", fmt.Sprintf("%d", status)).Inc()
	respondWithJSON(w, status, outcome)
}

func (h *Handler) addressByID(id string) (domain.PaymentAddress, bool) {
	for _, addr := range h.addresses {
		if addr.ID == id {
			return addr, true
		}
	}
	return domain.PaymentAddress{}, false
}

func resultLabel(outcome *domain.SettlementOutcome) string {
	if outcome.Status == domain.StatusRejected {
		return string(outcome.Reason)
	}
	return string(outcome.Status)
}

func statusForOutcome(outcome *domain.SettlementOutcome) int {
	switch outcome.Status {
	case domain.StatusSettled:
		return http.StatusCreated
	case domain.StatusDeliveryFailed:
		// Verified and recorded, invite undelivered: support case, not a
		// payment retry.
		return http.StatusAccepted
	}
	switch outcome.Reason {
	case domain.ReasonAlreadyUsed:
		return http.StatusConflict
	case domain.ReasonNotFound:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *Handler) ListSettlementsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.List(r.Context())
	if err != nil {
		h.countAndRespondError(w, http.StatusInternalServerError, "System error listing settlements", "GET", "/admin/settlements")
		return
	}
	httpRequestsTotal.WithLabelValues("GET", "/admin/settlements", "200").Inc()
	respondWithJSON(w, http.StatusOK, records)
}

// OrphanSettlementsHandler lists settled-but-undelivered records for
// manual recovery.
func (h *Handler) OrphanSettlementsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.Orphans(r.Context())
	if err != nil {
		h.countAndRespondError(w, http.StatusInternalServerError, "System error listing orphans", "GET", "/admin/settlements/orphans")
		return
	}
	httpRequestsTotal.WithLabelValues("GET", "/admin/settlements/orphans", "200").Inc()
	respondWithJSON(w, http.StatusOK, records)
}

func (h *Handler) ExportSettlementsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.List(r.Context())
	if err != nil {
		h.countAndRespondError(w, http.StatusInternalServerError, "System error listing settlements", "GET", "/admin/settlements/export")
		return
	}

	format := r.URL.Query().Get("format")
	var (
		data        []byte
		contentType string
		filename    string
	)
	switch format {
	case "", "xlsx":
		data, err = report.BuildSettlementsXLSX(records)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "settlements.xlsx"
	case "pdf":
		data, err = report.BuildSettlementsPDF(records)
		contentType = "application/pdf"
		filename = "settlements.pdf"
	default:
		h.countAndRespondError(w, http.StatusBadRequest, "format must be xlsx or pdf", "GET", "/admin/settlements/export")
		return
	}
	if err != nil {
		h.countAndRespondError(w, http.StatusInternalServerError, "Export failed", "GET", "/admin/settlements/export")
		return
	}

	httpRequestsTotal.WithLabelValues("GET", "/admin/settlements/export", "200").Inc()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) countAndRespondError(w http.ResponseWriter, code int, message, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, fmt.Sprintf("%d", code)).Inc()
	respondWithError(w, code, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
