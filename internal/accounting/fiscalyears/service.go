package fiscalyears

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// DefaultStartMonth starts custom financial years in April.
const DefaultStartMonth = 4

// Service resolves and manages financial years.
type Service struct {
	repo      Repository
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	listeners []shared.ChangeListener
}

// NewService constructs the resolver.
func NewService(repo Repository, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StartMonth < 1 || cfg.StartMonth > 12 {
		cfg.StartMonth = DefaultStartMonth
	}
	return &Service{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OnChange registers a listener for committed create, activate and close
// operations.
func (s *Service) OnChange(fn shared.ChangeListener) {
	if fn != nil {
		s.listeners = append(s.listeners, fn)
	}
}

func (s *Service) notify(ctx context.Context, id int64) {
	for _, fn := range s.listeners {
		fn(ctx, "financial_year", id)
	}
}

// Enabled reports whether financial year management is on.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// ForDate returns the year containing date, or nil when none matches or
// the feature is disabled.
func (s *Service) ForDate(ctx context.Context, date time.Time) (*FinancialYear, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}
	return s.repo.ForDate(ctx, shared.DateOnly(date))
}

// Active returns the active year, or nil.
func (s *Service) Active(ctx context.Context) (*FinancialYear, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}
	return s.repo.Active(ctx)
}

// Current returns the active year, falling back to the year containing today.
func (s *Service) Current(ctx context.Context) (*FinancialYear, error) {
	active, err := s.Active(ctx)
	if err != nil || active != nil {
		return active, err
	}
	return s.ForDate(ctx, s.now())
}

// Get loads a year by id.
func (s *Service) Get(ctx context.Context, id int64) (FinancialYear, error) {
	if !s.cfg.Enabled {
		return FinancialYear{}, shared.ErrFinancialYearDisabled
	}
	return s.repo.Get(ctx, id)
}

// List returns all years, newest first.
func (s *Service) List(ctx context.Context) ([]FinancialYear, error) {
	if !s.cfg.Enabled {
		return nil, shared.ErrFinancialYearDisabled
	}
	return s.repo.List(ctx)
}

// Create stores a new year. Empty name and code get defaults such as
// "FY 2024-2025" and "FY2024-25".
func (s *Service) Create(ctx context.Context, start, end time.Time, name, code string, activate bool) (FinancialYear, error) {
	if !s.cfg.Enabled {
		return FinancialYear{}, shared.ErrFinancialYearDisabled
	}
	start, end = shared.DateOnly(start), shared.DateOnly(end)
	if start.IsZero() || end.IsZero() {
		return FinancialYear{}, shared.Invalid("start_date", "start and end dates are required")
	}
	if !end.After(start) {
		return FinancialYear{}, shared.Invalid("end_date", "must be after start_date")
	}
	n, err := s.repo.CountOverlapping(ctx, start, end)
	if err != nil {
		return FinancialYear{}, err
	}
	if n > 0 {
		return FinancialYear{}, shared.Invalid("start_date", "range overlaps an existing financial year")
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultName(start, end)
	}
	if strings.TrimSpace(code) == "" {
		code = DefaultCode(start, end)
	}
	fy, err := s.repo.Insert(ctx, FinancialYear{Code: code, Name: name, StartDate: start, EndDate: end})
	if err != nil {
		return FinancialYear{}, err
	}
	s.logger.Info("financial year created", slog.String("code", fy.Code), slog.Int64("id", fy.ID))
	s.notify(ctx, fy.ID)
	if activate {
		return s.Activate(ctx, fy.ID)
	}
	return fy, nil
}

// CreateCalendarYear creates January 1 through December 31 of year.
func (s *Service) CreateCalendarYear(ctx context.Context, year int, activate bool) (FinancialYear, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return s.Create(ctx, start, end, "", "", activate)
}

// CreateCustomYear creates a twelve month year starting on the first of
// startMonth. A zero month uses the configured start month.
func (s *Service) CreateCustomYear(ctx context.Context, startYear, startMonth int, activate bool) (FinancialYear, error) {
	if startMonth == 0 {
		startMonth = s.cfg.StartMonth
	}
	if startMonth < 1 || startMonth > 12 {
		return FinancialYear{}, shared.Invalid("start_month", "must be between 1 and 12")
	}
	start := time.Date(startYear, time.Month(startMonth), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, -1)
	return s.Create(ctx, start, end, "", "", activate)
}

// Dates returns the range of the year containing date, or nil.
func (s *Service) Dates(ctx context.Context, date time.Time) (*Dates, error) {
	fy, err := s.ForDate(ctx, date)
	if err != nil || fy == nil {
		return nil, err
	}
	return &Dates{StartDate: fy.StartDate, EndDate: fy.EndDate, FinancialYear: *fy}, nil
}

// IsDateInActive reports whether date falls inside the active year.
func (s *Service) IsDateInActive(ctx context.Context, date time.Time) (bool, error) {
	active, err := s.Active(ctx)
	if err != nil || active == nil {
		return false, err
	}
	return active.Contains(shared.DateOnly(date)), nil
}

// Activate makes id the single active year.
func (s *Service) Activate(ctx context.Context, id int64) (FinancialYear, error) {
	if !s.cfg.Enabled {
		return FinancialYear{}, shared.ErrFinancialYearDisabled
	}
	var fy FinancialYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsClosed {
			return &shared.InvalidStateError{Entity: "financial year", ID: id, Status: "CLOSED", Action: "activate"}
		}
		if err := tx.DeactivateOthers(ctx, id); err != nil {
			return err
		}
		if err := tx.SetActive(ctx, id); err != nil {
			return err
		}
		current.IsActive = true
		fy = current
		return nil
	})
	if err != nil {
		return FinancialYear{}, err
	}
	s.logger.Info("financial year activated", slog.String("code", fy.Code))
	s.notify(ctx, fy.ID)
	return fy, nil
}

// Close closes id permanently. It returns false when the year was already
// closed.
func (s *Service) Close(ctx context.Context, id int64) (bool, error) {
	if !s.cfg.Enabled {
		return false, shared.ErrFinancialYearDisabled
	}
	var closed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsClosed {
			return nil
		}
		closed = true
		return tx.MarkClosed(ctx, id, s.now().UTC())
	})
	if err != nil {
		return false, err
	}
	if closed {
		s.logger.Info("financial year closed", slog.Int64("id", id))
		s.notify(ctx, id)
	}
	return closed, nil
}

// EnsureDateOpen rejects dates inside a closed year and returns the id of
// the containing year when auto-assignment is on.
func (s *Service) EnsureDateOpen(ctx context.Context, date time.Time) (*int64, error) {
	fy, err := s.ForDate(ctx, date)
	if err != nil || fy == nil {
		return nil, err
	}
	if fy.IsClosed {
		return nil, &shared.InvalidStateError{Entity: "financial year", ID: fy.ID, Status: "CLOSED", Action: "post into"}
	}
	if !s.cfg.AutoAssign {
		return nil, nil
	}
	id := fy.ID
	return &id, nil
}
