package interfaces_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"payoutflow/internal/forecast/application"
	forecast "payoutflow/internal/forecast/domain"
	"payoutflow/internal/forecast/infrastructure/memory"
	"payoutflow/internal/forecast/interfaces"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testConfig() application.Config {
	return application.Config{
		TimeZone:             "UTC",
		DailyStyleMaxDays:    3,
		CloseLagDays:         3,
		AccuracyLookbackDays: 7,
	}
}

func seedForecastRow(repo *memory.SettlementRepository, accountID, settlementID string, on time.Time, amount forecast.Money) {
	repo.Seed(&forecast.SettlementPeriod{
		AccountID:    accountID,
		SettlementID: settlementID,
		PeriodStart:  on,
		PeriodEnd:    on,
		TotalAmount:  amount,
		CurrencyCode: "USD",
		Status:       forecast.StatusForecasted,
	})
}

func TestAccountsHandler_Schedule(t *testing.T) {
	settlements := memory.NewSettlementRepository()
	seedForecastRow(settlements, "acct-1", "stl-1", day(2026, time.March, 3), 18000)
	seedForecastRow(settlements, "acct-1", "stl-1", day(2026, time.March, 4), 18000)
	seedForecastRow(settlements, "acct-1", "stl-1", day(2026, time.March, 5), 18000)

	handler := interfaces.NewAccountsHandler(settlements, nil, nil, 30, time.UTC)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acct-1/schedule?from=2026-03-01&to=2026-03-07", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AccountID string `json:"account_id"`
		From      string `json:"from"`
		To        string `json:"to"`
		Days      []struct {
			Date             string `json:"date"`
			SettlementID     string `json:"settlement_id"`
			Status           string `json:"status"`
			DailyUnlockCents int64  `json:"daily_unlock_cents"`
			CumulativeCents  int64  `json:"cumulative_available_cents"`
			Cumulative       string `json:"cumulative_available"`
		} `json:"days"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccountID != "acct-1" || resp.From != "2026-03-01" || resp.To != "2026-03-07" {
		t.Fatalf("envelope mismatch: %+v", resp)
	}
	if len(resp.Days) != 3 {
		t.Fatalf("day count mismatch: %d", len(resp.Days))
	}
	if resp.Days[0].Date != "2026-03-03" || resp.Days[0].DailyUnlockCents != 18000 {
		t.Fatalf("first day mismatch: %+v", resp.Days[0])
	}
	if resp.Days[2].CumulativeCents != 54000 || resp.Days[2].Cumulative != "540.00" {
		t.Fatalf("cumulative mismatch: %+v", resp.Days[2])
	}
}

func TestAccountsHandler_BadRange(t *testing.T) {
	handler := interfaces.NewAccountsHandler(memory.NewSettlementRepository(), nil, nil, 30, time.UTC)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acct-1/schedule?from=2026-03-07&to=2026-03-01", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range should 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acct-1/unknown", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown subresource should 404, got %d", rec.Code)
	}
}

func newTestDrawService(t *testing.T, settlements *memory.SettlementRepository, draws *memory.DrawRepository, now time.Time) *application.DrawService {
	t.Helper()
	service, err := application.NewDrawService(
		settlements, draws, nil, memory.NewLocker(), nil,
		fixedClock{now: now}, testConfig(), nil, nil,
	)
	if err != nil {
		t.Fatalf("new draw service: %v", err)
	}
	return service
}

func TestDrawsHandler_Created(t *testing.T) {
	settlements := memory.NewSettlementRepository()
	settlements.Seed(&forecast.SettlementPeriod{
		AccountID:    "acct-1",
		SettlementID: "stl-1",
		PeriodStart:  day(2026, time.March, 1),
		PeriodEnd:    day(2026, time.March, 7),
		TotalAmount:  140000,
		CurrencyCode: "USD",
		Status:       forecast.StatusEstimated,
	})
	service := newTestDrawService(t, settlements, memory.NewDrawRepository(), day(2026, time.March, 3))
	handler := interfaces.NewDrawsHandler(service, nil, nil)

	body := `{"account_id":"acct-1","settlement_id":"stl-1","amount_cents":50000,"draw_date":"2026-03-03","notes":"supplier invoice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/draws", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status mismatch: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		DrawID       string `json:"draw_id"`
		SettlementID string `json:"settlement_id"`
		AmountCents  int64  `json:"amount_cents"`
		DrawDate     string `json:"draw_date"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DrawID == "" || resp.SettlementID != "stl-1" || resp.AmountCents != 50000 || resp.DrawDate != "2026-03-03" {
		t.Fatalf("response mismatch: %+v", resp)
	}
}

func TestDrawsHandler_Errors(t *testing.T) {
	settlements := memory.NewSettlementRepository()
	settlements.Seed(&forecast.SettlementPeriod{
		AccountID:    "acct-1",
		SettlementID: "stl-closed",
		PeriodStart:  day(2026, time.March, 1),
		PeriodEnd:    day(2026, time.March, 7),
		TotalAmount:  140000,
		Status:       forecast.StatusConfirmed,
	})
	service := newTestDrawService(t, settlements, memory.NewDrawRepository(), day(2026, time.March, 3))
	handler := interfaces.NewDrawsHandler(service, nil, nil)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"closed settlement", `{"account_id":"acct-1","settlement_id":"stl-closed","amount_cents":50000,"draw_date":"2026-03-03"}`, http.StatusConflict},
		{"bad date", `{"account_id":"acct-1","settlement_id":"stl-closed","amount_cents":50000,"draw_date":"Mar 3"}`, http.StatusBadRequest},
		{"non-positive amount", `{"account_id":"acct-1","settlement_id":"stl-closed","amount_cents":0,"draw_date":"2026-03-03"}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/draws", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status mismatch: got=%d want=%d body=%s", tc.name, rec.Code, tc.want, rec.Body.String())
		}
	}
}

func TestCashOutHandler_DetectsGap(t *testing.T) {
	settlements := memory.NewSettlementRepository()
	settlements.Seed(
		&forecast.SettlementPeriod{
			AccountID: "acct-1", SettlementID: "stl-old",
			PeriodStart: day(2026, time.March, 1), PeriodEnd: day(2026, time.March, 3),
			TotalAmount: 120000, BeginningBalance: 80000, HasBeginning: true,
			Status: forecast.StatusEstimated,
		},
		&forecast.SettlementPeriod{
			AccountID: "acct-1", SettlementID: "stl-new",
			PeriodStart: day(2026, time.March, 5), PeriodEnd: day(2026, time.March, 7),
			TotalAmount: 90000, Status: forecast.StatusEstimated,
		},
	)
	detector, err := application.NewCashOutDetector(settlements, memory.NewDrawRepository(), nil, fixedClock{now: day(2026, time.March, 8)}, nil, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	handler := interfaces.NewCashOutHandler(detector, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cashout/detect", strings.NewReader(`{"account_id":"acct-1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		CashOutDetected bool   `json:"cash_out_detected"`
		CashOutDate     string `json:"cash_out_date"`
		AmountCents     int64  `json:"amount_cents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.CashOutDetected || resp.CashOutDate != "2026-03-04" || resp.AmountCents != 80000 {
		t.Fatalf("response mismatch: %+v", resp)
	}
}

func TestCashOutHandler_RequiresAccountID(t *testing.T) {
	detector, err := application.NewCashOutDetector(memory.NewSettlementRepository(), memory.NewDrawRepository(), nil, fixedClock{now: day(2026, time.March, 8)}, nil, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	handler := interfaces.NewCashOutHandler(detector, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cashout/detect", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing account_id should 400, got %d", rec.Code)
	}
}

func newTestReconciler(t *testing.T, settlements *memory.SettlementRepository, now time.Time) *application.Reconciler {
	t.Helper()
	clock := fixedClock{now: now}
	tracker, err := application.NewAccuracyTracker(settlements, memory.NewAccuracyRepository(), nil, clock, 7, nil, nil)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	reconciler, err := application.NewReconciler(settlements, memory.NewDrawRepository(), tracker, nil, memory.NewLocker(), nil, clock, testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	return reconciler
}

func TestIngestHandler_UpsertsAndRegenerates(t *testing.T) {
	ctx := context.Background()
	settlements := memory.NewSettlementRepository()
	reconciler := newTestReconciler(t, settlements, day(2026, time.March, 1))
	handler := interfaces.NewIngestHandler(settlements, reconciler)

	body := `{"records":[
		{"account_id":"acct-1","settlement_id":"stl-1","period_start":"2026-03-01","period_end":"2026-03-07","total_amount_cents":140000,"currency_code":"USD","status":"estimated"},
		{"account_id":"acct-1","settlement_id":"stl-0","period_start":"2026-02-20","period_end":"2026-02-26","total_amount_cents":100000,"currency_code":"USD","status":"confirmed"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/settlements", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status mismatch: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["ingested"] != 2 {
		t.Fatalf("ingested count mismatch: %+v", resp)
	}

	rows, err := settlements.ListForecastsBetween(ctx, "acct-1", day(2026, time.March, 1), day(2026, time.March, 7))
	if err != nil {
		t.Fatalf("list forecasts: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("regeneration missing: got %d rows", len(rows))
	}
	for _, row := range rows {
		if row.TotalAmount != 20000 {
			t.Fatalf("regenerated amount mismatch: %d", row.TotalAmount)
		}
	}
}

func TestIngestHandler_RejectsBadRecords(t *testing.T) {
	handler := interfaces.NewIngestHandler(memory.NewSettlementRepository(), nil)

	cases := []struct {
		name string
		body string
	}{
		{"empty records", `{"records":[]}`},
		{"bad status", `{"records":[{"account_id":"a","settlement_id":"s","period_start":"2026-03-01","period_end":"2026-03-07","total_amount_cents":1,"status":"forecasted"}]}`},
		{"missing period end", `{"records":[{"account_id":"a","settlement_id":"s","period_start":"2026-03-01","total_amount_cents":1,"status":"estimated"}]}`},
		{"inverted bounds", `{"records":[{"account_id":"a","settlement_id":"s","period_start":"2026-03-07","period_end":"2026-03-01","total_amount_cents":1,"status":"estimated"}]}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/ingest/settlements", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d body=%s", tc.name, rec.Code, rec.Body.String())
		}
	}
}
