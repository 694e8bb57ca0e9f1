package fiscalyears

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes financial years over JSON.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validator: validator.New()}
}

// MountRoutes registers /financial-years endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/calendar", h.createCalendar)
	r.Post("/custom", h.createCustom)
	r.Get("/active", h.active)
	r.Get("/current", h.current)
	r.Get("/{id}", h.get)
	r.Post("/{id}/activate", h.activate)
	r.Post("/{id}/close", h.close)
}

type createRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"max=100"`
	Code      string `json:"code" validate:"max=20"`
	Activate  bool   `json:"activate"`
}

type calendarRequest struct {
	Year     int  `json:"year" validate:"required,gte=1900,lte=9999"`
	Activate bool `json:"activate"`
}

type customRequest struct {
	StartYear  int  `json:"start_year" validate:"required,gte=1900,lte=9999"`
	StartMonth int  `json:"start_month" validate:"omitempty,gte=1,lte=12"`
	Activate   bool `json:"activate"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list financial years", err)
		return
	}
	httpx.JSON(w, http.StatusOK, years)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fy, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get financial year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, _ := time.Parse(shared.DateLayout, req.StartDate)
	end, _ := time.Parse(shared.DateLayout, req.EndDate)
	fy, err := h.service.Create(r.Context(), start, end, req.Name, req.Code, req.Activate)
	if err != nil {
		h.fail(w, "create financial year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fy)
}

func (h *Handler) createCalendar(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	fy, err := h.service.CreateCalendarYear(r.Context(), req.Year, req.Activate)
	if err != nil {
		h.fail(w, "create calendar year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fy)
}

func (h *Handler) createCustom(w http.ResponseWriter, r *http.Request) {
	var req customRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	fy, err := h.service.CreateCustomYear(r.Context(), req.StartYear, req.StartMonth, req.Activate)
	if err != nil {
		h.fail(w, "create custom year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fy)
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	fy, err := h.service.Active(r.Context())
	h.respondOptional(w, "active financial year", fy, err)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	fy, err := h.service.Current(r.Context())
	h.respondOptional(w, "current financial year", fy, err)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fy, err := h.service.Activate(r.Context(), id)
	if err != nil {
		h.fail(w, "activate financial year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	closed, err := h.service.Close(r.Context(), id)
	if err != nil {
		h.fail(w, "close financial year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"closed": closed})
}

func (h *Handler) respondOptional(w http.ResponseWriter, op string, fy *FinancialYear, err error) {
	if err != nil {
		h.fail(w, op, err)
		return
	}
	if fy == nil {
		httpx.RespondError(w, shared.NotFound("financial year", op))
		return
	}
	httpx.JSON(w, http.StatusOK, fy)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
