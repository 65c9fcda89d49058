package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payoutflow/internal/audit"
	"payoutflow/internal/auth"
	"payoutflow/internal/forecast/application"
	forecast "payoutflow/internal/forecast/domain"
)

const dayLayout = "2006-01-02"

// AccountsHandler serves schedule and projection queries under
// /api/v1/accounts/{id}/...
type AccountsHandler struct {
	settlements forecast.SettlementRepository
	trend       application.TrendProvider
	checker     auth.AccountAccessChecker
	horizonDays int
	location    *time.Location
}

// NewAccountsHandler constructs an AccountsHandler.
func NewAccountsHandler(
	settlements forecast.SettlementRepository,
	trend application.TrendProvider,
	checker auth.AccountAccessChecker,
	horizonDays int,
	location *time.Location,
) *AccountsHandler {
	if location == nil {
		location = time.UTC
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &AccountsHandler{
		settlements: settlements,
		trend:       trend,
		checker:     checker,
		horizonDays: horizonDays,
		location:    location,
	}
}

type scheduleDay struct {
	Date                string `json:"date"`
	SettlementID        string `json:"settlement_id"`
	Status              string `json:"status"`
	DailyUnlockCents    int64  `json:"daily_unlock_cents"`
	CumulativeCents     int64  `json:"cumulative_available_cents"`
	CumulativeFormatted string `json:"cumulative_available"`
}

type scheduleResponse struct {
	AccountID string        `json:"account_id"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Days      []scheduleDay `json:"days"`
}

type projectionResponse struct {
	AccountID       string        `json:"account_id"`
	Days            []scheduleDay `json:"days"`
	HorizonDays     int           `json:"horizon_days"`
	TrendCents      int64         `json:"trend_amount_cents,omitempty"`
	TrendLowerCents int64         `json:"trend_lower_bound_cents,omitempty"`
	TrendUpperCents int64         `json:"trend_upper_bound_cents,omitempty"`
}

// ServeHTTP routes /api/v1/accounts/{id}/schedule and
// /api/v1/accounts/{id}/projection.
func (h *AccountsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.settlements == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	accountID := parts[0]

	if h.checker != nil {
		caller := auth.AccountIDFromContext(r.Context())
		if err := h.checker.EnsureAccountAccess(r.Context(), caller, accountID); err != nil {
			respondAccessError(w, err)
			return
		}
	}

	switch parts[1] {
	case "schedule":
		h.serveSchedule(w, r, accountID)
	case "projection":
		h.serveProjection(w, r, accountID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *AccountsHandler) serveSchedule(w http.ResponseWriter, r *http.Request, accountID string) {
	from, to, err := parseDayRange(r, h.location)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := h.settlements.ListForecastsBetween(r.Context(), accountID, from, to)
	if err != nil {
		http.Error(w, "query schedule error", http.StatusInternalServerError)
		return
	}

	resp := scheduleResponse{
		AccountID: accountID,
		From:      from.Format(dayLayout),
		To:        to.Format(dayLayout),
		Days:      buildScheduleDays(rows),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *AccountsHandler) serveProjection(w http.ResponseWriter, r *http.Request, accountID string) {
	now := time.Now()
	from := forecast.DateOnly(now, h.location)
	to := from.AddDate(0, 0, h.horizonDays)

	rows, err := h.settlements.ListForecastsBetween(r.Context(), accountID, from, to)
	if err != nil {
		http.Error(w, "query projection error", http.StatusInternalServerError)
		return
	}

	resp := projectionResponse{
		AccountID:   accountID,
		Days:        buildScheduleDays(rows),
		HorizonDays: h.horizonDays,
	}
	if h.trend != nil {
		estimate, err := h.trend.Estimate(r.Context(), accountID, h.horizonDays)
		if err == nil {
			resp.TrendCents = int64(estimate.Amount)
			resp.TrendLowerCents = int64(estimate.LowerBound)
			resp.TrendUpperCents = int64(estimate.UpperBound)
			if estimate.Horizon > 0 {
				resp.HorizonDays = estimate.Horizon
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func buildScheduleDays(rows []*forecast.SettlementPeriod) []scheduleDay {
	days := make([]scheduleDay, 0, len(rows))
	var cumulative forecast.Money
	for _, row := range rows {
		cumulative += row.TotalAmount
		days = append(days, scheduleDay{
			Date:                row.PeriodStart.Format(dayLayout),
			SettlementID:        row.SettlementID,
			Status:              string(row.Status),
			DailyUnlockCents:    int64(row.TotalAmount),
			CumulativeCents:     int64(cumulative),
			CumulativeFormatted: cumulative.Decimal(),
		})
	}
	return days
}

// DrawsHandler serves POST /api/v1/draws.
type DrawsHandler struct {
	service *application.DrawService
	checker auth.AccountAccessChecker
	auditor audit.Logger
}

// NewDrawsHandler constructs a DrawsHandler.
func NewDrawsHandler(service *application.DrawService, checker auth.AccountAccessChecker, auditor audit.Logger) *DrawsHandler {
	return &DrawsHandler{service: service, checker: checker, auditor: auditor}
}

type drawRequest struct {
	AccountID    string `json:"account_id"`
	SettlementID string `json:"settlement_id"`
	AmountCents  int64  `json:"amount_cents"`
	DrawDate     string `json:"draw_date"`
	Notes        string `json:"notes"`
}

type drawResponse struct {
	DrawID       string `json:"draw_id"`
	AccountID    string `json:"account_id"`
	SettlementID string `json:"settlement_id"`
	AmountCents  int64  `json:"amount_cents"`
	DrawDate     string `json:"draw_date"`
}

// ServeHTTP records a draw and returns the created entry.
func (h *DrawsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req drawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	drawDate, err := time.Parse(dayLayout, req.DrawDate)
	if err != nil {
		http.Error(w, "draw_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	if h.checker != nil {
		caller := auth.AccountIDFromContext(r.Context())
		if err := h.checker.EnsureAccountAccess(r.Context(), caller, req.AccountID); err != nil {
			respondAccessError(w, err)
			return
		}
	}

	draw, err := h.service.RecordDraw(r.Context(), req.AccountID, req.SettlementID, forecast.Money(req.AmountCents), drawDate, req.Notes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.logAudit(r, "draw.record", req.AccountID, draw.ID, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(drawResponse{
		DrawID:       draw.ID,
		AccountID:    draw.AccountID,
		SettlementID: draw.SettlementID,
		AmountCents:  int64(draw.Amount),
		DrawDate:     draw.DrawDate.Format(dayLayout),
	})
}

func (h *DrawsHandler) logAudit(r *http.Request, action, accountID, resourceID string, payload any) {
	if h.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(payload)
	_ = h.auditor.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "daily_draw",
		ResourceID:   resourceID,
		AccountID:    accountID,
		Metadata:     metadata,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
}

// CashOutHandler serves POST /api/v1/cashout/detect.
type CashOutHandler struct {
	detector *application.CashOutDetector
	checker  auth.AccountAccessChecker
	auditor  audit.Logger
}

// NewCashOutHandler constructs a CashOutHandler.
func NewCashOutHandler(detector *application.CashOutDetector, checker auth.AccountAccessChecker, auditor audit.Logger) *CashOutHandler {
	return &CashOutHandler{detector: detector, checker: checker, auditor: auditor}
}

type cashOutRequest struct {
	AccountID string `json:"account_id"`
}

type cashOutResponse struct {
	AccountID             string `json:"account_id"`
	CashOutDetected       bool   `json:"cash_out_detected"`
	CashOutDate           string `json:"cash_out_date,omitempty"`
	AmountCents           int64  `json:"amount_cents,omitempty"`
	AvailableBalanceCents int64  `json:"available_balance_cents"`
}

// ServeHTTP runs boundary-gap detection for one account.
func (h *CashOutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.detector == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req cashOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	if h.checker != nil {
		caller := auth.AccountIDFromContext(r.Context())
		if err := h.checker.EnsureAccountAccess(r.Context(), caller, req.AccountID); err != nil {
			respondAccessError(w, err)
			return
		}
	}

	result, err := h.detector.Detect(r.Context(), req.AccountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if h.auditor != nil && result.CashOutDetected {
		metadata, _ := json.Marshal(result)
		_ = h.auditor.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "cashout.detect",
			ResourceType: "settlement_period",
			AccountID:    req.AccountID,
			Metadata:     metadata,
			IP:           r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		})
	}

	resp := cashOutResponse{
		AccountID:             req.AccountID,
		CashOutDetected:       result.CashOutDetected,
		AmountCents:           int64(result.Amount),
		AvailableBalanceCents: int64(result.AvailableBalance),
	}
	if !result.CashOutDate.IsZero() {
		resp.CashOutDate = result.CashOutDate.Format(dayLayout)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ReconcileHandler serves POST /api/v1/reconcile/run.
type ReconcileHandler struct {
	reconciler *application.Reconciler
	auditor    audit.Logger
}

// NewReconcileHandler constructs a ReconcileHandler.
func NewReconcileHandler(reconciler *application.Reconciler, auditor audit.Logger) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler, auditor: auditor}
}

type reconcileRequest struct {
	AccountID string `json:"account_id"`
	AsOf      string `json:"as_of"`
}

// ServeHTTP triggers a reconciliation run, for all accounts or one.
func (h *ReconcileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.reconciler == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	req := reconcileRequest{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	now := time.Now()
	if req.AsOf != "" {
		parsed, err := time.Parse(dayLayout, req.AsOf)
		if err != nil {
			http.Error(w, "as_of must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		now = parsed
	}

	var err error
	if req.AccountID != "" {
		err = h.reconciler.RunAccountAt(r.Context(), req.AccountID, now)
	} else {
		err = h.reconciler.RunAllAt(r.Context(), now)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if h.auditor != nil {
		metadata, _ := json.Marshal(req)
		_ = h.auditor.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "reconcile.run",
			ResourceType: "reconcile",
			AccountID:    req.AccountID,
			Metadata:     metadata,
			IP:           r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// IngestHandler serves POST /ingest/settlements for processor settlement
// records. Bodies are authenticated upstream by the ingest signature
// middleware.
type IngestHandler struct {
	settlements forecast.SettlementRepository
	reconciler  *application.Reconciler
}

// NewIngestHandler constructs an IngestHandler.
func NewIngestHandler(settlements forecast.SettlementRepository, reconciler *application.Reconciler) *IngestHandler {
	return &IngestHandler{settlements: settlements, reconciler: reconciler}
}

type ingestRecord struct {
	AccountID             string `json:"account_id"`
	SettlementID          string `json:"settlement_id"`
	PeriodStart           string `json:"period_start"`
	PeriodEnd             string `json:"period_end"`
	TotalAmountCents      int64  `json:"total_amount_cents"`
	BeginningBalanceCents *int64 `json:"beginning_balance_cents"`
	CurrencyCode          string `json:"currency_code"`
	Status                string `json:"status"`
}

type ingestRequest struct {
	Records []ingestRecord `json:"records"`
}

// ServeHTTP upserts settlement records and regenerates touched accounts.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.settlements == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.Records) == 0 {
		http.Error(w, "records is required", http.StatusBadRequest)
		return
	}

	touched := make(map[string]struct{})
	for i, record := range req.Records {
		period, err := toSettlementPeriod(record)
		if err != nil {
			http.Error(w, "record "+strconv.Itoa(i)+": "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.settlements.Save(r.Context(), period); err != nil {
			respondServiceError(w, err)
			return
		}
		touched[record.AccountID] = struct{}{}
	}

	if h.reconciler != nil {
		for accountID := range touched {
			if err := h.reconciler.Regenerate(r.Context(), accountID); err != nil {
				respondServiceError(w, err)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]int{"ingested": len(req.Records)})
}

func toSettlementPeriod(record ingestRecord) (*forecast.SettlementPeriod, error) {
	if record.AccountID == "" {
		return nil, forecast.ErrEmptyAccountID
	}
	if record.SettlementID == "" {
		return nil, forecast.ErrEmptySettlementID
	}
	start, err := time.Parse(dayLayout, record.PeriodStart)
	if err != nil {
		return nil, errors.New("period_start must be YYYY-MM-DD")
	}
	period := &forecast.SettlementPeriod{
		SettlementID: record.SettlementID,
		AccountID:    record.AccountID,
		PeriodStart:  forecast.DateOnly(start, time.UTC),
		TotalAmount:  forecast.Money(record.TotalAmountCents),
		CurrencyCode: record.CurrencyCode,
	}
	if record.PeriodEnd != "" {
		end, err := time.Parse(dayLayout, record.PeriodEnd)
		if err != nil {
			return nil, errors.New("period_end must be YYYY-MM-DD")
		}
		period.PeriodEnd = forecast.DateOnly(end, time.UTC)
	}
	if record.BeginningBalanceCents != nil {
		period.BeginningBalance = forecast.Money(*record.BeginningBalanceCents)
		period.HasBeginning = true
	}
	switch forecast.Status(record.Status) {
	case forecast.StatusEstimated, forecast.StatusConfirmed:
		period.Status = forecast.Status(record.Status)
	default:
		return nil, errors.New("status must be estimated or confirmed")
	}
	if err := period.ValidateBounds(); err != nil {
		return nil, err
	}
	return period, nil
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, forecast.ErrSettlementNotOpen):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, forecast.ErrSettlementNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, forecast.ErrEmptyAccountID),
		errors.Is(err, forecast.ErrEmptySettlementID),
		errors.Is(err, forecast.ErrNonPositiveAmount),
		errors.Is(err, forecast.ErrInvalidDrawDate),
		errors.Is(err, forecast.ErrInvalidPeriodBounds):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func respondAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		http.Error(w, "account not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrAccountMismatch):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseDayRange(r *http.Request, location *time.Location) (time.Time, time.Time, error) {
	fromValue := r.URL.Query().Get("from")
	toValue := r.URL.Query().Get("to")

	now := time.Now()
	from := forecast.DateOnly(now, location)
	to := from.AddDate(0, 0, 30)

	if fromValue != "" {
		parsed, err := time.Parse(dayLayout, fromValue)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
		}
		from = forecast.DateOnly(parsed, time.UTC)
	}
	if toValue != "" {
		parsed, err := time.Parse(dayLayout, toValue)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
		}
		to = forecast.DateOnly(parsed, time.UTC)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return from, to, nil
}
