package mappings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes account mappings over JSON.
type Handler struct {
	repo      Repository
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{repo: repo, logger: logger, validator: validator.New()}
}

// MountRoutes registers /mappings endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/", h.upsert)
	r.Get("/{module}/{key}", h.get)
}

type mappingRequest struct {
	Module    string `json:"module" validate:"required,max=50"`
	Key       string `json:"key" validate:"required,max=100"`
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context(), r.URL.Query().Get("module"))
	if err != nil {
		h.logger.Error("list mappings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	m, err := h.repo.Get(r.Context(), chi.URLParam(r, "module"), chi.URLParam(r, "key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.repo.Upsert(r.Context(), AccountMapping{Module: req.Module, Key: req.Key, AccountID: req.AccountID})
	if err != nil {
		h.logger.Error("upsert mapping", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}
