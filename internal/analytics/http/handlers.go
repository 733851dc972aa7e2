// Package analytichttp exposes the cash-flow reports over HTTP.
package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/cashledger/internal/analytics"
	"github.com/odyssey-erp/cashledger/internal/analytics/export"
	"github.com/odyssey-erp/cashledger/internal/calendar"
	"github.com/odyssey-erp/cashledger/internal/cashflow"
	"github.com/odyssey-erp/cashledger/internal/money"
	"github.com/odyssey-erp/cashledger/internal/platform/httpx"
)

const (
	headerUserID         = "X-User-ID"
	headerOrganizationID = "X-Organization-ID"
	defaultTimeout       = 5 * time.Second
)

// ReportService defines the report contract used by the handler.
type ReportService interface {
	BuildCashFlowReport(ctx context.Context, scope cashflow.OwnerScope, start, end calendar.Date, filters analytics.Filters) (analytics.CashFlowReport, error)
	BuildDashboardStats(ctx context.Context, scope cashflow.OwnerScope) (analytics.DashboardStats, error)
}

// Handler serves the cash-flow endpoints.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	validate  *validator.Validate
	csvPool   sync.Pool
	now       func() time.Time
	timeout   time.Duration
	rateLimit int
}

// NewHandler constructs the cash-flow HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		validate:  validator.New(),
		now:       time.Now,
		timeout:   defaultTimeout,
		rateLimit: 10,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// WithExportLimit sets the per-minute CSV export allowance.
func (h *Handler) WithExportLimit(perMinute int) {
	if perMinute > 0 {
		h.rateLimit = perMinute
	}
}

// WithTimeout bounds each report computation.
func (h *Handler) WithTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

type reportQuery struct {
	Start      string `validate:"omitempty,datetime=2006-01-02"`
	End        string `validate:"omitempty,datetime=2006-01-02"`
	Type       string `validate:"omitempty,oneof=ALL INCOME EXPENSE all income expense"`
	Status     string `validate:"omitempty,oneof=ALL PENDING PAID all pending paid"`
	CategoryID string `validate:"omitempty,uuid"`
}

type reportRequest struct {
	start   calendar.Date
	end     calendar.Date
	filters analytics.Filters
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.respondError(w, r, "resolve scope", err)
		return
	}
	req, err := h.parseReportQuery(r)
	if err != nil {
		h.respondError(w, r, "parse filters", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.service.BuildCashFlowReport(ctx, scope, req.start, req.end, req.filters)
	if err != nil {
		h.respondError(w, r, "build report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.respondError(w, r, "resolve scope", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.service.BuildDashboardStats(ctx, scope)
	if err != nil {
		h.respondError(w, r, "build dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		h.respondError(w, r, "resolve scope", err)
		return
	}
	req, err := h.parseReportQuery(r)
	if err != nil {
		h.respondError(w, r, "parse filters", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.service.BuildCashFlowReport(ctx, scope, req.start, req.end, req.filters)
	if err != nil {
		h.respondError(w, r, "build report", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteReportCSV(buf, report); err != nil {
		h.respondError(w, r, "write csv", err)
		return
	}

	filename := fmt.Sprintf("cashflow-%s-%s.csv", req.start, req.end)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError(r, "stream csv", err)
	}
}

type installmentPreviewRequest struct {
	Total        string `json:"total" validate:"required"`
	Advance      string `json:"advance"`
	AdvanceDate  string `json:"advanceDate" validate:"omitempty,datetime=2006-01-02"`
	Installments int    `json:"installments" validate:"gte=0,lte=360"`
	FirstDueDate string `json:"firstDueDate" validate:"required,datetime=2006-01-02"`
}

type installmentPreviewResponse struct {
	Payments []cashflow.PlannedPayment `json:"payments"`
	Total    string                    `json:"total"`
}

func (h *Handler) handleInstallmentPreview(w http.ResponseWriter, r *http.Request) {
	if _, err := scopeFromRequest(r); err != nil {
		h.respondError(w, r, "resolve scope", err)
		return
	}
	var body installmentPreviewRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		h.respondError(w, r, "decode body", validationError{field: "body"})
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.respondError(w, r, "validate body", fieldError(err))
		return
	}

	in := cashflow.InstallmentPlanInput{Installments: body.Installments}
	var err error
	if in.Total, err = money.Parse(body.Total); err != nil {
		h.respondError(w, r, "parse total", validationError{field: "total"})
		return
	}
	if strings.TrimSpace(body.Advance) != "" {
		if in.Advance, err = money.Parse(body.Advance); err != nil {
			h.respondError(w, r, "parse advance", validationError{field: "advance"})
			return
		}
	}
	if body.AdvanceDate != "" {
		in.AdvanceDate = calendar.MustParse(body.AdvanceDate)
	}
	in.FirstDueDate = calendar.MustParse(body.FirstDueDate)

	plan, err := cashflow.PlanInstallments(in)
	if err != nil {
		h.respondError(w, r, "plan installments", fmt.Errorf("%w: %w", httpx.ErrValidation, err))
		return
	}
	total := money.Zero
	for _, p := range plan {
		total = total.Add(p.Amount)
	}
	httpx.JSON(w, http.StatusOK, installmentPreviewResponse{Payments: plan, Total: money.Format(total)})
}

func (h *Handler) parseReportQuery(r *http.Request) (reportRequest, error) {
	q := r.URL.Query()
	raw := reportQuery{
		Start:      strings.TrimSpace(q.Get("start")),
		End:        strings.TrimSpace(q.Get("end")),
		Type:       strings.TrimSpace(q.Get("type")),
		Status:     strings.TrimSpace(q.Get("status")),
		CategoryID: strings.TrimSpace(q.Get("categoryId")),
	}
	if err := h.validate.Struct(raw); err != nil {
		return reportRequest{}, fieldError(err)
	}

	month := calendar.MonthOf(calendar.FromTime(h.now()))
	req := reportRequest{start: month.Start, end: month.End}
	if raw.Start != "" {
		req.start = calendar.MustParse(raw.Start)
	}
	if raw.End != "" {
		req.end = calendar.MustParse(raw.End)
	}
	if req.end.Before(req.start) {
		return reportRequest{}, validationError{field: "end"}
	}
	filters, err := analytics.ParseFilters(raw.Type, raw.Status, raw.CategoryID)
	if err != nil {
		return reportRequest{}, err
	}
	req.filters = filters
	return req, nil
}

func scopeFromRequest(r *http.Request) (cashflow.OwnerScope, error) {
	rawUser := strings.TrimSpace(r.Header.Get(headerUserID))
	if rawUser == "" {
		return cashflow.OwnerScope{}, fmt.Errorf("%w: missing %s", httpx.ErrUnauthorized, headerUserID)
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return cashflow.OwnerScope{}, fmt.Errorf("%w: malformed %s", httpx.ErrUnauthorized, headerUserID)
	}
	scope := cashflow.OwnerScope{UserID: userID}
	if rawOrg := strings.TrimSpace(r.Header.Get(headerOrganizationID)); rawOrg != "" {
		orgID, err := uuid.Parse(rawOrg)
		if err != nil {
			return cashflow.OwnerScope{}, validationError{field: "organization"}
		}
		scope.OrganizationID = &orgID
	}
	return scope, nil
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.logError(r, op, err)
		httpx.Problem(w, http.StatusGatewayTimeout, "Timeout", "report computation timed out")
		return
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrUnauthorized):
		h.logger.DebugContext(r.Context(), op, slog.Any("error", err))
	default:
		h.logError(r, op, err)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), op, slog.Any("error", err), slog.String("path", r.URL.Path))
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}

func (v validationError) Unwrap() error { return httpx.ErrValidation }

func fieldError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return validationError{field: lowerFirst(fieldErrs[0].Field())}
	}
	return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
