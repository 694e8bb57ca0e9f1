package reports

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes the reports over JSON.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a report handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /reports endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/balance-sheet", h.balanceSheet)
	r.Get("/income-statement", h.incomeStatement)
	r.Get("/general-ledger/{accountID}", h.generalLedger)
	r.Get("/cash-book", h.cashBook)
	r.Get("/day-book", h.dayBook)
	r.Get("/journal", h.journal)
}

// Chart serves the chart of accounts with balances.
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.GenerateChartOfAccounts(r.Context(), httpx.QueryBool(r, "include_inactive"))
	if err != nil {
		h.fail(w, "chart of accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	date, err := httpx.QueryDate(r, "date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var tb TrialBalance
	if yearID := int64(httpx.QueryInt(r, "year_id", 0)); yearID > 0 {
		tb, err = h.service.TrialBalanceForYear(r.Context(), yearID, &date)
	} else {
		tb, err = h.service.GenerateTrialBalance(r.Context(), date)
	}
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	date, err := httpx.QueryDate(r, "date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var bs BalanceSheet
	if yearID := int64(httpx.QueryInt(r, "year_id", 0)); yearID > 0 {
		bs, err = h.service.BalanceSheetForYear(r.Context(), yearID, &date)
	} else {
		bs, err = h.service.GenerateBalanceSheet(r.Context(), date)
	}
	if err != nil {
		h.fail(w, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dates(w, r)
	if !ok {
		return
	}
	var (
		is  IncomeStatement
		err error
	)
	if yearID := int64(httpx.QueryInt(r, "year_id", 0)); yearID > 0 {
		is, err = h.service.IncomeStatementForYear(r.Context(), yearID)
	} else {
		is, err = h.service.GenerateIncomeStatement(r.Context(), start, end)
	}
	if err != nil {
		h.fail(w, "income statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, is)
}

func (h *Handler) generalLedger(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.ParamID(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, end, ok := h.dates(w, r)
	if !ok {
		return
	}
	gl, err := h.service.GenerateGeneralLedger(r.Context(), accountID, start, end)
	if err != nil {
		h.fail(w, "general ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, gl)
}

func (h *Handler) cashBook(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dates(w, r)
	if !ok {
		return
	}
	ref := AccountRef{
		ID:   int64(httpx.QueryInt(r, "account_id", 0)),
		Code: r.URL.Query().Get("account_code"),
	}
	book, err := h.service.GenerateCashBook(r.Context(), start, end, ref)
	if err != nil {
		h.fail(w, "cash book", err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) dayBook(w http.ResponseWriter, r *http.Request) {
	date, err := httpx.QueryDate(r, "date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	book, err := h.service.GenerateDayBook(r.Context(), date)
	if err != nil {
		h.fail(w, "day book", err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) journal(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dates(w, r)
	if !ok {
		return
	}
	status := journals.StatusPosted
	switch raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); raw {
	case "":
	case "ALL":
		status = ""
	default:
		status = journals.Status(raw)
	}
	report, err := h.service.GenerateJournalReport(r.Context(), start, end, status)
	if err != nil {
		h.fail(w, "journal report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) dates(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	start, err := httpx.QueryDate(r, "start_date")
	if err != nil {
		httpx.RespondError(w, err)
		return time.Time{}, time.Time{}, false
	}
	end, err := httpx.QueryDate(r, "end_date")
	if err != nil {
		httpx.RespondError(w, err)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
