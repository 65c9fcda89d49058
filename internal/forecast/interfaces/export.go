package interfaces

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"payoutflow/internal/auth"
	forecast "payoutflow/internal/forecast/domain"
)

// BuildScheduleXLSX renders the daily unlock schedule as a workbook.
func BuildScheduleXLSX(accountID string, rows []*forecast.SettlementPeriod) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	scheduleSheet := "schedule"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(scheduleSheet)

	var total forecast.Money
	for _, row := range rows {
		total += row.TotalAmount
	}

	_ = f.SetCellValue(summarySheet, "A1", "Draw Distribution Schedule")
	_ = f.SetCellValue(summarySheet, "A3", "Account")
	_ = f.SetCellValue(summarySheet, "B3", accountID)
	_ = f.SetCellValue(summarySheet, "A4", "Days")
	_ = f.SetCellValue(summarySheet, "B4", len(rows))
	_ = f.SetCellValue(summarySheet, "A5", "Total Unlock")
	_ = f.SetCellValue(summarySheet, "B5", total.Decimal())
	_ = f.SetCellValue(summarySheet, "A6", "Generated")
	_ = f.SetCellValue(summarySheet, "B6", time.Now().UTC().Format(time.RFC3339))

	_ = f.SetCellValue(scheduleSheet, "A1", "Date")
	_ = f.SetCellValue(scheduleSheet, "B1", "Settlement")
	_ = f.SetCellValue(scheduleSheet, "C1", "Status")
	_ = f.SetCellValue(scheduleSheet, "D1", "Daily Unlock")
	_ = f.SetCellValue(scheduleSheet, "E1", "Cumulative Available")
	var cumulative forecast.Money
	for i, row := range rows {
		cumulative += row.TotalAmount
		line := i + 2
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("A%d", line), row.PeriodStart.Format(dayLayout))
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("B%d", line), row.SettlementID)
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("C%d", line), string(row.Status))
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("D%d", line), row.TotalAmount.Decimal())
		_ = f.SetCellValue(scheduleSheet, fmt.Sprintf("E%d", line), cumulative.Decimal())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAccuracyPDF renders accuracy history for an account.
func BuildAccuracyPDF(accountID string, records []*forecast.ForecastAccuracyRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Forecast Accuracy Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Account: %s", accountID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Settlement", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Period End", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Forecasted", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Actual", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Diff", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Pct", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, record := range records {
		pdf.CellFormat(45, 6, record.SettlementID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, record.PeriodEnd.Format(dayLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, record.ForecastedAmount.Decimal(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, record.ActualAmount.Decimal(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, record.DifferenceAmount.Decimal(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%.1f%%", record.DifferencePercentage), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportScheduleXLSXHandler serves GET /api/v1/exports/schedule.xlsx.
type ExportScheduleXLSXHandler struct {
	settlements forecast.SettlementRepository
	checker     auth.AccountAccessChecker
	location    *time.Location
}

// NewExportScheduleXLSXHandler constructs the handler.
func NewExportScheduleXLSXHandler(settlements forecast.SettlementRepository, checker auth.AccountAccessChecker, location *time.Location) *ExportScheduleXLSXHandler {
	if location == nil {
		location = time.UTC
	}
	return &ExportScheduleXLSXHandler{settlements: settlements, checker: checker, location: location}
}

// ServeHTTP renders the schedule workbook for an account.
func (h *ExportScheduleXLSXHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.settlements == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}
	if h.checker != nil {
		caller := auth.AccountIDFromContext(r.Context())
		if err := h.checker.EnsureAccountAccess(r.Context(), caller, accountID); err != nil {
			respondAccessError(w, err)
			return
		}
	}

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

	payload, err := BuildScheduleXLSX(accountID, rows)
	if err != nil {
		http.Error(w, "render xlsx error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.xlsx"`)
	_, _ = w.Write(payload)
}

// ExportAccuracyPDFHandler serves GET /api/v1/exports/accuracy.pdf.
type ExportAccuracyPDFHandler struct {
	accuracy forecast.AccuracyRepository
	checker  auth.AccountAccessChecker
}

// NewExportAccuracyPDFHandler constructs the handler.
func NewExportAccuracyPDFHandler(accuracy forecast.AccuracyRepository, checker auth.AccountAccessChecker) *ExportAccuracyPDFHandler {
	return &ExportAccuracyPDFHandler{accuracy: accuracy, checker: checker}
}

// ServeHTTP renders the accuracy report for an account.
func (h *ExportAccuracyPDFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.accuracy == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}
	if h.checker != nil {
		caller := auth.AccountIDFromContext(r.Context())
		if err := h.checker.EnsureAccountAccess(r.Context(), caller, accountID); err != nil {
			respondAccessError(w, err)
			return
		}
	}

	records, err := h.accuracy.ListByAccount(r.Context(), accountID)
	if err != nil {
		http.Error(w, "query accuracy error", http.StatusInternalServerError)
		return
	}

	payload, err := BuildAccuracyPDF(accountID, records)
	if err != nil {
		http.Error(w, "render pdf error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="accuracy.pdf"`)
	_, _ = w.Write(payload)
}
