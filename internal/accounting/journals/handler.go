package journals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const conflictAttempts = 3

// Handler exposes the ledger engine over JSON.
type Handler struct {
	service     *Service
	idempotency *core.IdempotencyStore
	logger      *slog.Logger
	validator   *validator.Validate
}

// NewHandler constructs a Handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, idempotency *core.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency, validator: validator.New()}
}

// List returns a page of entries.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{
		Status:    Status(r.URL.Query().Get("status")),
		From:      from,
		To:        to,
		AccountID: int64(httpx.QueryInt(r, "account_id", 0)),
		Page:      httpx.QueryInt(r, "page", 1),
		PerPage:   httpx.QueryInt(r, "per_page", 20),
	}
	if domain := r.URL.Query().Get("ref_domain"); domain != "" {
		filter.Reference = &Reference{Domain: domain, ID: r.URL.Query().Get("ref_id")}
	}
	entries, page, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries, "pagination": page})
}

// Get returns one entry.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.fail(w, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Create stores a multi-line entry.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	header, err := req.header()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.idempotent(w, r, func(ctx context.Context) (JournalEntry, error) {
		return h.service.CreateJournalEntry(ctx, header, req.lines(), req.AutoPost)
	})
}

// CreateTransaction stores a two-line entry.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := parseDate("entry_date", req.EntryDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	autoPost := req.AutoPost == nil || *req.AutoPost
	extra := EntryHeader{
		EntryDate: date,
		Reference: Reference{Domain: req.Reference.Domain, ID: req.Reference.ID},
		Notes:     req.Notes,
	}
	h.idempotent(w, r, func(ctx context.Context) (JournalEntry, error) {
		return h.service.CreateTransaction(ctx, req.DebitAccountID, req.CreditAccountID, req.Amount, req.Description, extra, autoPost)
	})
}

// Post posts a draft entry.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID, _ := core.ActorFromContext(r.Context())
	var (
		entry  JournalEntry
		posted bool
	)
	err = shared.RetryOnConflict(r.Context(), conflictAttempts, func(ctx context.Context) error {
		var err error
		entry, posted, err = h.service.PostEntry(ctx, id, actorID)
		return err
	})
	if err != nil {
		h.fail(w, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entry": entry, "posted": posted})
}

// Reverse posts a mirror entry for a posted entry.
func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, h.validator, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	var reversal JournalEntry
	err = shared.RetryOnConflict(r.Context(), conflictAttempts, func(ctx context.Context) error {
		var err error
		reversal, err = h.service.ReverseEntry(ctx, id, req.Reason)
		return err
	})
	if err != nil {
		h.fail(w, "reverse journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

// idempotent runs create with conflict retries, guarded by the
// Idempotency-Key header when present.
func (h *Handler) idempotent(w http.ResponseWriter, r *http.Request, create func(context.Context) (JournalEntry, error)) {
	ctx := r.Context()
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(ctx, key, "journals"); err != nil {
			if errors.Is(err, core.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
				return
			}
			h.fail(w, "idempotency check", err)
			return
		}
	}
	var entry JournalEntry
	err := shared.RetryOnConflict(ctx, conflictAttempts, func(ctx context.Context) error {
		var err error
		entry, err = create(ctx)
		return err
	})
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(ctx, key); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.fail(w, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
