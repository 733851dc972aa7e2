package analytichttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashledger/internal/analytics"
	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
	"github.com/odyssey-erp/cashledger/internal/platform/httpx"
)

type stubService struct {
	report    analytics.CashFlowReport
	stats     analytics.DashboardStats
	err       error
	lastScope cashflow.OwnerScope
	lastStart calendar.Date
	lastEnd   calendar.Date
	lastF     analytics.Filters
}

func (s *stubService) BuildCashFlowReport(ctx context.Context, scope cashflow.OwnerScope, start, end calendar.Date, filters analytics.Filters) (analytics.CashFlowReport, error) {
	s.lastScope, s.lastStart, s.lastEnd, s.lastF = scope, start, end, filters
	return s.report, s.err
}

func (s *stubService) BuildDashboardStats(ctx context.Context, scope cashflow.OwnerScope) (analytics.DashboardStats, error) {
	s.lastScope = scope
	return s.stats, s.err
}

const testUser = "7d0c5f8e-6a4b-4f4e-9f0e-3a1b2c3d4e5f"

func newTestHandler(t *testing.T) (*Handler, *stubService) {
	t.Helper()
	window, err := calendar.NewRange(calendar.MustParse("2025-02-01"), calendar.MustParse("2025-02-28"))
	require.NoError(t, err)
	service := &stubService{
		report: analytics.CashFlowReport{
			Window: window,
			Items: []analytics.ReportItem{{
				Entry: cashflow.Entry{
					CashEvent: cashflow.CashEvent{
						ID: "sale:x", Type: cashflow.TypeIncome, Description: "Sale - ACME",
						Amount: decimal.RequireFromString("1000"), DueDate: calendar.MustParse("2025-02-10"),
						Status: cashflow.StatusPaid, Counterparty: "ACME",
					},
					Balance: decimal.RequireFromString("1000"),
				},
				DisplayStatus: cashflow.StatusPaid,
			}},
			Summary: cashflow.Summary{TotalIncome: decimal.RequireFromString("1000"), NetFlow: decimal.RequireFromString("1000")},
		},
		stats: analytics.DashboardStats{Month: "2025-02", OverduePayments: 3},
	}
	handler := NewHandler(nil, service)
	handler.WithNow(func() time.Time { return time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC) })
	return handler, service
}

func newRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set(headerUserID, testUser)
	return req
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	return problem
}

func TestReportDefaultsToCurrentMonth(t *testing.T) {
	handler, service := newTestHandler(t)
	rr := httptest.NewRecorder()
	handler.handleReport(rr, newRequest(http.MethodGet, "/finance/cashflow", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "2025-02-01", service.lastStart.String())
	require.Equal(t, "2025-02-28", service.lastEnd.String())
	require.Equal(t, analytics.TypeAll, service.lastF.Type)
	require.Equal(t, testUser, service.lastScope.UserID.String())
	require.Nil(t, service.lastScope.OrganizationID)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Contains(t, body, "items")
	require.Contains(t, body, "monthlyProjection")
	require.Contains(t, string(body["items"]), `"runningBalance":"1000"`)
}

func TestReportParsesFiltersAndOrganization(t *testing.T) {
	handler, service := newTestHandler(t)
	org := uuid.New()
	category := uuid.New()
	req := newRequest(http.MethodGet, "/finance/cashflow?start=2025-01-01&end=2025-03-31&type=expense&status=PENDING&categoryId="+category.String(), "")
	req.Header.Set(headerOrganizationID, org.String())
	rr := httptest.NewRecorder()
	handler.handleReport(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "2025-01-01", service.lastStart.String())
	require.Equal(t, "2025-03-31", service.lastEnd.String())
	require.Equal(t, analytics.TypeExpense, service.lastF.Type)
	require.Equal(t, analytics.StatusPending, service.lastF.Status)
	require.Equal(t, category, *service.lastF.CategoryID)
	require.Equal(t, org, *service.lastScope.OrganizationID)
}

func TestReportRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"malformed date":  "/finance/cashflow?start=2025-13-01",
		"inverted window": "/finance/cashflow?start=2025-03-01&end=2025-02-01",
		"unknown type":    "/finance/cashflow?type=TRANSFER",
		"bad category":    "/finance/cashflow?categoryId=abc",
	}
	for name, target := range cases {
		handler, _ := newTestHandler(t)
		rr := httptest.NewRecorder()
		handler.handleReport(rr, newRequest(http.MethodGet, target, ""))
		require.Equal(t, http.StatusBadRequest, rr.Code, name)
		require.Equal(t, "Validation Failed", decodeProblem(t, rr).Title, name)
	}
}

func TestReportRequiresUser(t *testing.T) {
	handler, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/finance/cashflow", nil)
	rr := httptest.NewRecorder()
	handler.handleReport(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestServiceErrorsAreMapped(t *testing.T) {
	handler, service := newTestHandler(t)
	service.err = analytics.ErrValidation
	rr := httptest.NewRecorder()
	handler.handleReport(rr, newRequest(http.MethodGet, "/finance/cashflow", ""))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	service.err = context.DeadlineExceeded
	rr = httptest.NewRecorder()
	handler.handleDashboard(rr, newRequest(http.MethodGet, "/finance/cashflow/dashboard", ""))
	require.Equal(t, http.StatusGatewayTimeout, rr.Code)

	service.err = assertErr("database down")
	rr = httptest.NewRecorder()
	handler.handleDashboard(rr, newRequest(http.MethodGet, "/finance/cashflow/dashboard", ""))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Empty(t, decodeProblem(t, rr).Detail)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestDashboardThroughRouter(t *testing.T) {
	handler, _ := newTestHandler(t)
	r := chi.NewRouter()
	handler.MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, newRequest(http.MethodGet, "/finance/cashflow/dashboard", ""))
	require.Equal(t, http.StatusOK, rr.Code)

	var stats analytics.DashboardStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Equal(t, 3, stats.OverduePayments)
}

func TestCSVExport(t *testing.T) {
	handler, _ := newTestHandler(t)
	rr := httptest.NewRecorder()
	handler.handleCSV(rr, newRequest(http.MethodGet, "/finance/cashflow/export.csv", ""))

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "cashflow-2025-02-01-2025-02-28.csv")
	body := rr.Body.String()
	require.Contains(t, body, "Metric,Value")
	require.Contains(t, body, "Sale - ACME")
}

func TestCSVExportRateLimited(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.WithExportLimit(2)
	r := chi.NewRouter()
	handler.MountRoutes(r)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, newRequest(http.MethodGet, "/finance/cashflow/export.csv", ""))
		codes = append(codes, rr.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestInstallmentPreview(t *testing.T) {
	handler, _ := newTestHandler(t)
	body := `{"total":"1000","advance":"100","advanceDate":"2025-01-10","installments":3,"firstDueDate":"2025-01-31"}`
	rr := httptest.NewRecorder()
	handler.handleInstallmentPreview(rr, newRequest(http.MethodPost, "/finance/cashflow/installments/preview", body))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Payments []cashflow.PlannedPayment `json:"payments"`
		Total    string                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Payments, 4)
	require.Equal(t, "1000.00", resp.Total)
	require.Equal(t, "300.00", resp.Payments[1].Amount.StringFixed(2))
	require.Equal(t, "2025-02-28", resp.Payments[2].DueDate.String())
}

func TestInstallmentPreviewValidation(t *testing.T) {
	cases := map[string]string{
		"missing due date": `{"total":"1000","installments":3}`,
		"negative total":   `{"total":"-5","installments":3,"firstDueDate":"2025-01-31"}`,
		"advance too big":  `{"total":"10","advance":"20","installments":1,"firstDueDate":"2025-01-31"}`,
		"not json":         `total=10`,
		"too many":         `{"total":"10","installments":361,"firstDueDate":"2025-01-31"}`,
	}
	for name, body := range cases {
		handler, _ := newTestHandler(t)
		rr := httptest.NewRecorder()
		handler.handleInstallmentPreview(rr, newRequest(http.MethodPost, "/finance/cashflow/installments/preview", body))
		require.Equal(t, http.StatusBadRequest, rr.Code, name)
	}
}
