package accounts

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// BalanceReader reads an account balance as of a date.
type BalanceReader interface {
	GetAccountBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error)
}

// Handler exposes the chart of accounts over JSON.
type Handler struct {
	service   *Service
	balances  BalanceReader
	chart     http.HandlerFunc
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler constructs a Handler. chart serves /accounts/chart when set.
func NewHandler(logger *slog.Logger, service *Service, balances BalanceReader, chart http.HandlerFunc) *Handler {
	return &Handler{logger: logger, service: service, balances: balances, chart: chart, validator: validator.New(), now: time.Now}
}

// MountTypeRoutes registers /account-types endpoints.
func (h *Handler) MountTypeRoutes(r chi.Router) {
	r.Get("/", h.listTypes)
	r.Post("/", h.createType)
	r.Get("/{id}", h.getType)
	r.Put("/{id}", h.updateType)
	r.Delete("/{id}", h.deleteType)
}

// MountRoutes registers /accounts endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/tree", h.tree)
	if h.chart != nil {
		r.Get("/chart", h.chart)
	}
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/balance", h.balance)
}

type accountTypeRequest struct {
	Code          string `json:"code" validate:"required,max=20"`
	Name          string `json:"name" validate:"required,max=100"`
	Description   string `json:"description"`
	NormalBalance string `json:"normal_balance" validate:"required,oneof=DEBIT CREDIT"`
	IsActive      *bool  `json:"is_active"`
	SortOrder     int    `json:"sort_order"`
}

func (req accountTypeRequest) input() AccountTypeInput {
	return AccountTypeInput{
		Code:          req.Code,
		Name:          req.Name,
		Description:   req.Description,
		NormalBalance: NormalBalance(req.NormalBalance),
		IsActive:      req.IsActive == nil || *req.IsActive,
		SortOrder:     req.SortOrder,
	}
}

type accountRequest struct {
	AccountTypeID      int64           `json:"account_type_id" validate:"required,gt=0"`
	ParentID           *int64          `json:"parent_id" validate:"omitempty,gt=0"`
	Code               string          `json:"code" validate:"required,max=20"`
	Name               string          `json:"name" validate:"required,max=100"`
	Description        string          `json:"description"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceDate string          `json:"opening_balance_date" validate:"omitempty,datetime=2006-01-02"`
	IsActive           *bool           `json:"is_active"`
	SortOrder          int             `json:"sort_order"`
}

func (req accountRequest) input() (AccountInput, error) {
	in := AccountInput{
		AccountTypeID:  req.AccountTypeID,
		ParentID:       req.ParentID,
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		OpeningBalance: req.OpeningBalance,
		IsActive:       req.IsActive == nil || *req.IsActive,
		SortOrder:      req.SortOrder,
	}
	if req.OpeningBalanceDate != "" {
		d, err := time.Parse(shared.DateLayout, req.OpeningBalanceDate)
		if err != nil {
			return AccountInput{}, shared.Invalid("opening_balance_date", "must be formatted as %s", shared.DateLayout)
		}
		in.OpeningBalanceDate = &d
	}
	return in, nil
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListTypes(r.Context(), httpx.QueryBool(r, "active"))
	if err != nil {
		h.fail(w, "list account types", err)
		return
	}
	httpx.JSON(w, http.StatusOK, types)
}

func (h *Handler) getType(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.GetType(r.Context(), id)
	if err != nil {
		h.fail(w, "get account type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) createType(w http.ResponseWriter, r *http.Request) {
	var req accountTypeRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.CreateType(r.Context(), req.input())
	if err != nil {
		h.fail(w, "create account type", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) updateType(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req accountTypeRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.UpdateType(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, "update account type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) deleteType(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteType(r.Context(), id); err != nil {
		h.fail(w, "delete account type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		ActiveOnly: httpx.QueryBool(r, "active"),
		TypeCode:   r.URL.Query().Get("type"),
	}
	if r.URL.Query().Get("parent_id") != "" {
		parentID := int64(httpx.QueryInt(r, "parent_id", 0))
		filter.ParentID = &parentID
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.service.Tree(r.Context(), httpx.QueryBool(r, "active"))
	if err != nil {
		h.fail(w, "account tree", err)
		return
	}
	httpx.JSON(w, http.StatusOK, nodes)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get account", err)
		return
	}
	path, err := h.service.FullPath(r.Context(), id)
	if err != nil {
		h.fail(w, "account path", err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct {
		Account
		FullPath string `json:"full_path"`
	}{a, path})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req accountRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "date")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if asOf.IsZero() {
		asOf = shared.DateOnly(h.now())
	}
	bal, err := h.balances.GetAccountBalance(r.Context(), id, asOf)
	if err != nil {
		h.fail(w, "account balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"account_id": id,
		"date":       asOf.Format(shared.DateLayout),
		"balance":    bal.StringFixed(2),
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
