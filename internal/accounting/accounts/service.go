package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service manages the chart of accounts.
type Service struct {
	repo      Repository
	audit     core.AuditRecorder
	logger    *slog.Logger
	now       func() time.Time
	listeners []shared.ChangeListener
}

// NewService constructs the chart of accounts service. audit may be nil.
func NewService(repo Repository, audit core.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// OnChange registers a listener for committed account and type changes.
func (s *Service) OnChange(fn shared.ChangeListener) {
	if fn != nil {
		s.listeners = append(s.listeners, fn)
	}
}

// ListTypes returns account types in report order.
func (s *Service) ListTypes(ctx context.Context, activeOnly bool) ([]AccountType, error) {
	return s.repo.ListTypes(ctx, activeOnly)
}

// GetType loads one account type.
func (s *Service) GetType(ctx context.Context, id int64) (AccountType, error) {
	return s.repo.GetType(ctx, id)
}

// CreateType registers a new non-system account type.
func (s *Service) CreateType(ctx context.Context, in AccountTypeInput) (AccountType, error) {
	if err := in.Validate(); err != nil {
		return AccountType{}, err
	}
	t, err := s.repo.CreateType(ctx, AccountType{
		Code:          strings.ToUpper(strings.TrimSpace(in.Code)),
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		NormalBalance: in.NormalBalance,
		IsActive:      in.IsActive,
		SortOrder:     in.SortOrder,
	})
	if err != nil {
		return AccountType{}, err
	}
	s.record(ctx, "account_type.create", "account_type", t.ID, map[string]any{"code": t.Code})
	return t, nil
}

// UpdateType changes an account type. System types keep code, name and
// normal balance.
func (s *Service) UpdateType(ctx context.Context, id int64, in AccountTypeInput) (AccountType, error) {
	if err := in.Validate(); err != nil {
		return AccountType{}, err
	}
	current, err := s.repo.GetType(ctx, id)
	if err != nil {
		return AccountType{}, err
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if current.IsSystem && (code != current.Code || name != current.Name || in.NormalBalance != current.NormalBalance) {
		return AccountType{}, &InvalidSystemChange{Entity: "account type", ID: id}
	}
	current.Code = code
	current.Name = name
	current.Description = in.Description
	current.NormalBalance = in.NormalBalance
	current.IsActive = in.IsActive
	current.SortOrder = in.SortOrder
	updated, err := s.repo.UpdateType(ctx, current)
	if err != nil {
		return AccountType{}, err
	}
	s.record(ctx, "account_type.update", "account_type", id, map[string]any{"code": updated.Code})
	return updated, nil
}

// DeleteType removes a non-system type that no account references.
func (s *Service) DeleteType(ctx context.Context, id int64) error {
	t, err := s.repo.GetType(ctx, id)
	if err != nil {
		return err
	}
	if t.IsSystem {
		return &shared.InvalidStateError{Entity: "account type", ID: id, Status: "SYSTEM", Action: "delete"}
	}
	n, err := s.repo.CountAccountsByType(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return &shared.InvalidStateError{Entity: "account type", ID: id, Status: "IN_USE", Action: "delete"}
	}
	if err := s.repo.DeleteType(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "account_type.delete", "account_type", id, map[string]any{"code": t.Code})
	return nil
}

// List returns accounts matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	return s.repo.List(ctx, filter)
}

// Get loads an account with its type.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode loads an account by code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, strings.TrimSpace(code))
}

// Create adds an account to the chart.
func (s *Service) Create(ctx context.Context, in AccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	if _, err := s.repo.GetType(ctx, in.AccountTypeID); err != nil {
		return Account{}, asField("account_type_id", err)
	}
	if in.ParentID != nil {
		if _, err := s.repo.Get(ctx, *in.ParentID); err != nil {
			return Account{}, asField("parent_id", err)
		}
	}
	a, err := s.repo.Create(ctx, Account{
		AccountTypeID:      in.AccountTypeID,
		ParentID:           in.ParentID,
		Code:               strings.TrimSpace(in.Code),
		Name:               strings.TrimSpace(in.Name),
		Description:        in.Description,
		OpeningBalance:     in.OpeningBalance,
		OpeningBalanceDate: dateOnlyPtr(in.OpeningBalanceDate),
		IsActive:           in.IsActive,
		IsSystem:           in.IsSystem,
		SortOrder:          in.SortOrder,
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "account.create", "account", a.ID, map[string]any{"code": a.Code})
	return a, nil
}

// Update changes an account. For system accounts only name, description,
// sort order and active flag may change. Changing the opening balance drops
// the account's balance snapshots.
func (s *Service) Update(ctx context.Context, id int64, in AccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	openingDate := dateOnlyPtr(in.OpeningBalanceDate)
	code := strings.TrimSpace(in.Code)
	openingChanged := !current.OpeningBalance.Equal(in.OpeningBalance) || !sameDate(current.OpeningBalanceDate, openingDate)
	if current.IsSystem {
		if code != current.Code || in.AccountTypeID != current.AccountTypeID || !sameID(current.ParentID, in.ParentID) || openingChanged {
			return Account{}, &InvalidSystemChange{Entity: "account", ID: id}
		}
	}
	if in.AccountTypeID != current.AccountTypeID {
		if _, err := s.repo.GetType(ctx, in.AccountTypeID); err != nil {
			return Account{}, asField("account_type_id", err)
		}
	}
	if in.ParentID != nil && !sameID(current.ParentID, in.ParentID) {
		if err := s.checkParent(ctx, id, *in.ParentID); err != nil {
			return Account{}, err
		}
	}
	current.AccountTypeID = in.AccountTypeID
	current.ParentID = in.ParentID
	current.Code = code
	current.Name = strings.TrimSpace(in.Name)
	current.Description = in.Description
	current.OpeningBalance = in.OpeningBalance
	current.OpeningBalanceDate = openingDate
	current.IsActive = in.IsActive
	current.SortOrder = in.SortOrder
	updated, err := s.repo.Update(ctx, current, openingChanged)
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "account.update", "account", id, map[string]any{"code": updated.Code, "opening_changed": openingChanged})
	return updated, nil
}

// Delete soft-deletes a leaf account that has never been posted to.
func (s *Service) Delete(ctx context.Context, id int64) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.IsSystem {
		return &shared.InvalidStateError{Entity: "account", ID: id, Status: "SYSTEM", Action: "delete"}
	}
	children, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return &shared.InvalidStateError{Entity: "account", ID: id, Status: "HAS_CHILDREN", Action: "delete"}
	}
	lines, err := s.repo.CountLines(ctx, id)
	if err != nil {
		return err
	}
	if lines > 0 {
		return &shared.InvalidStateError{Entity: "account", ID: id, Status: "HAS_TRANSACTIONS", Action: "delete"}
	}
	if err := s.repo.SoftDelete(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	s.record(ctx, "account.delete", "account", id, map[string]any{"code": a.Code})
	return nil
}

// FullPath returns the ancestor codes of the account joined by " > ".
func (s *Service) FullPath(ctx context.Context, id int64) (string, error) {
	var codes []string
	seen := map[int64]bool{}
	next := &id
	for next != nil {
		if seen[*next] {
			return "", fmt.Errorf("accounts: parent cycle at %d", *next)
		}
		seen[*next] = true
		a, err := s.repo.Get(ctx, *next)
		if err != nil {
			return "", err
		}
		codes = append(codes, a.Code)
		next = a.ParentID
	}
	for i, j := 0, len(codes)-1; i < j; i, j = i+1, j-1 {
		codes[i], codes[j] = codes[j], codes[i]
	}
	return strings.Join(codes, " > "), nil
}

// Node is an account with its children.
type Node struct {
	Account
	Children []*Node `json:"children,omitempty"`
}

// Tree returns the chart as a forest ordered by sort order and code.
func (s *Service) Tree(ctx context.Context, activeOnly bool) ([]*Node, error) {
	list, err := s.repo.List(ctx, ListFilter{ActiveOnly: activeOnly})
	if err != nil {
		return nil, err
	}
	return BuildTree(list), nil
}

// BuildTree links accounts into a forest. Accounts whose parent is absent
// from list become roots.
func BuildTree(list []Account) []*Node {
	nodes := make(map[int64]*Node, len(list))
	for _, a := range list {
		nodes[a.ID] = &Node{Account: a}
	}
	var roots []*Node
	for _, a := range list {
		n := nodes[a.ID]
		if a.ParentID != nil {
			if parent, ok := nodes[*a.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].SortOrder != nodes[j].SortOrder {
			return nodes[i].SortOrder < nodes[j].SortOrder
		}
		return nodes[i].Code < nodes[j].Code
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// SeedDefaults installs the default account types and chart. Existing
// records are left untouched, so seeding is repeatable.
func (s *Service) SeedDefaults(ctx context.Context) error {
	typeIDs := make(map[string]int64)
	for _, t := range DefaultTypes() {
		existing, err := s.repo.GetTypeByCode(ctx, t.Code)
		if err == nil {
			typeIDs[t.Code] = existing.ID
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		created, err := s.repo.CreateType(ctx, t)
		if err != nil {
			return fmt.Errorf("accounts: seed type %s: %w", t.Code, err)
		}
		typeIDs[t.Code] = created.ID
	}
	accountIDs := make(map[string]int64)
	for _, entry := range DefaultChart {
		existing, err := s.repo.GetByCode(ctx, entry.Code)
		if err == nil {
			accountIDs[entry.Code] = existing.ID
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		a := Account{
			AccountTypeID: typeIDs[entry.TypeCode],
			Code:          entry.Code,
			Name:          entry.Name,
			Description:   entry.Description,
			IsActive:      true,
			IsSystem:      true,
			SortOrder:     entry.SortOrder,
		}
		if entry.ParentCode != "" {
			parentID, ok := accountIDs[entry.ParentCode]
			if !ok {
				return fmt.Errorf("accounts: seed %s: parent %s not seeded", entry.Code, entry.ParentCode)
			}
			a.ParentID = &parentID
		}
		created, err := s.repo.Create(ctx, a)
		if err != nil {
			return fmt.Errorf("accounts: seed account %s: %w", entry.Code, err)
		}
		accountIDs[entry.Code] = created.ID
	}
	s.logger.Info("chart of accounts seeded", slog.Int("types", len(typeIDs)), slog.Int("accounts", len(accountIDs)))
	s.notify(ctx, "account", 0)
	return nil
}

func (s *Service) checkParent(ctx context.Context, id, parentID int64) error {
	if parentID == id {
		return shared.Invalid("parent_id", "cannot be the account itself")
	}
	next := &parentID
	for depth := 0; next != nil; depth++ {
		if *next == id {
			return shared.Invalid("parent_id", "would create a cycle")
		}
		if depth > 64 {
			return shared.Invalid("parent_id", "hierarchy too deep")
		}
		parent, err := s.repo.Get(ctx, *next)
		if err != nil {
			return asField("parent_id", err)
		}
		next = parent.ParentID
	}
	return nil
}

func (s *Service) notify(ctx context.Context, entity string, id int64) {
	for _, fn := range s.listeners {
		fn(ctx, entity, id)
	}
}

// record writes the audit log and notifies change listeners.
func (s *Service) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	s.notify(ctx, entity, id)
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, core.AuditLog{
		ActorID:  core.ActorPtr(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// InvalidSystemChange reports an attempt to alter protected fields of a
// system record.
type InvalidSystemChange struct {
	Entity string
	ID     int64
}

func (e *InvalidSystemChange) Error() string {
	return fmt.Sprintf("accounting: protected fields of system %s %d cannot change", e.Entity, e.ID)
}

// Is matches shared.ErrInvalidState.
func (e *InvalidSystemChange) Is(target error) bool { return target == shared.ErrInvalidState }

func asField(field string, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.Invalid(field, "references a missing record")
	}
	return err
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := shared.DateOnly(*t)
	return &d
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
