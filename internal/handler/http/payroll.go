package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/pos-payroll/internal/domain/payroll"
	"github.com/cmlabs-hris/pos-payroll/internal/handler/http/response"
	"github.com/cmlabs-hris/pos-payroll/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	GenerateReport(w http.ResponseWriter, r *http.Request)
	GetReport(w http.ResponseWriter, r *http.Request)
	ListReports(w http.ResponseWriter, r *http.Request)
	UpdateLineItem(w http.ResponseWriter, r *http.Request)
	ExportReport(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// ========== REPORTS ==========

func (h *payrollHandlerImpl) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req payroll.GenerateSalaryReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.GenerateReport(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Salary report generated", result)
}

func (h *payrollHandlerImpl) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Report ID is required", nil)
		return
	}

	result, err := h.payrollService.GetReport(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListReports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter payroll.SalaryReportFilter

	if from := query.Get("from"); from != "" {
		t, ok := validator.ParseDateOrDateTime(from, time.UTC)
		if !ok {
			response.BadRequest(w, "Invalid from date", nil)
			return
		}
		filter.From = &t
	}
	if to := query.Get("to"); to != "" {
		t, ok := validator.ParseDateOrDateTime(to, time.UTC)
		if !ok {
			response.BadRequest(w, "Invalid to date", nil)
			return
		}
		filter.To = &t
	}
	if page, err := strconv.Atoi(query.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}
	filter.SortOrder = query.Get("sort_order")

	result, err := h.payrollService.ListReports(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.TotalCount + int64(result.Limit) - 1) / int64(result.Limit))
	}
	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages,
	})
}

// ========== LINE ITEMS ==========

func (h *payrollHandlerImpl) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	var req payroll.UpdateSalaryLineItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.ReportID = chi.URLParam(r, "id")
	req.ID = chi.URLParam(r, "itemId")

	result, err := h.payrollService.UpdateLineItem(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salary line item updated", result)
}

// ========== EXPORT ==========

func (h *payrollHandlerImpl) ExportReport(w http.ResponseWriter, r *http.Request) {
	format := payroll.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = payroll.ExportFormatXLSX
	}

	file, err := h.payrollService.ExportReport(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, file.FileName, file.ContentType, file.Content)
}
