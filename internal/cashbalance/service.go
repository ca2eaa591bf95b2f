package cashbalance

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/identity"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/money"
	"github.com/angelmondragon/ptm-finance-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TxRunner opens the unit of work an UpdateBalance call runs in.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UserLookup resolves acting users for history entries.
type UserLookup interface {
	GetUsersByIDs(ctx context.Context, token string, ids []int64) (map[int64]identity.User, error)
}

// Recorder receives balance metrics. Nil is allowed.
type Recorder interface {
	ObserveBalanceChange(source string, status bool)
}

// Service defines balance reads, manual adjustments and the enriched history.
type Service interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	UpdateBalance(ctx context.Context, actorID int64, input UpdateBalanceInput) (decimal.Decimal, error)
	GetHistory(ctx context.Context, token string, params pagination.Params) (HistoryResult, error)
}

// UpdateBalanceInput is a manual credit or debit.
type UpdateBalanceInput struct {
	Status      bool            `json:"status"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

// HistoryItem is a ledger entry with the acting user's profile, if known.
type HistoryItem struct {
	ID            int64           `json:"id"`
	Status        bool            `json:"status"`
	Value         decimal.Decimal `json:"value"`
	Description   string          `json:"description"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	CreatedByUser *identity.User  `json:"created_by_user"`
}

// HistoryResult is one enriched page.
type HistoryResult struct {
	Items      []HistoryItem `json:"items"`
	NextCursor *int64        `json:"next_cursor"`
	HasMore    bool          `json:"has_more"`
	Limit      int           `json:"limit"`
}

type service struct {
	repo    Repository
	tx      TxRunner
	users   UserLookup
	metrics Recorder
	logg    *logger.Logger
}

// ServiceParams groups the collaborators of NewService.
type ServiceParams struct {
	Repo    Repository
	Tx      TxRunner
	Users   UserLookup
	Metrics Recorder
	Logger  *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("cash balance repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &service{repo: p.Repo, tx: p.Tx, users: p.Users, metrics: p.Metrics, logg: p.Logger}, nil
}

func (s *service) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	balance, err := s.repo.GetCurrentBalance(ctx)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to get cash balance")
	}
	return balance, nil
}

func (s *service) UpdateBalance(ctx context.Context, actorID int64, input UpdateBalanceInput) (decimal.Decimal, error) {
	if actorID <= 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized")
	}
	if err := money.Validate("Value", input.Value); err != nil {
		return decimal.Zero, err
	}
	desc := strings.TrimSpace(input.Description)
	if desc == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "Description is required").
			WithDetails(map[string]string{"description": "is required"})
	}

	var balance decimal.Decimal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		balance, err = s.repo.ApplyDelta(ctx, tx, DeltaInput{
			Status:      input.Status,
			Value:       input.Value,
			Description: desc,
			CreatedBy:   actorID,
		})
		return err
	})
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update cash balance")
	}
	if s.metrics != nil {
		s.metrics.ObserveBalanceChange("manual", input.Status)
	}
	return balance, nil
}

func (s *service) GetHistory(ctx context.Context, token string, params pagination.Params) (HistoryResult, error) {
	page, err := s.repo.ListHistory(ctx, params)
	if err != nil {
		return HistoryResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to get cash balance history")
	}

	users := s.lookupUsers(ctx, token, page)

	items := make([]HistoryItem, 0, len(page.Items))
	for _, h := range page.Items {
		item := HistoryItem{
			ID:          h.ID,
			Status:      h.Status,
			Value:       h.Value,
			Description: h.Description,
			CreatedBy:   h.CreatedBy,
			CreatedAt:   h.CreatedAt,
		}
		if u, ok := users[h.CreatedBy]; ok {
			item.CreatedByUser = &u
		}
		items = append(items, item)
	}

	return HistoryResult{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		Limit:      page.Limit,
	}, nil
}

// lookupUsers degrades to an empty map when identity is unavailable.
func (s *service) lookupUsers(ctx context.Context, token string, page HistoryPage) map[int64]identity.User {
	if s.users == nil || len(page.Items) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(page.Items))
	for _, h := range page.Items {
		ids = append(ids, h.CreatedBy)
	}
	users, err := s.users.GetUsersByIDs(ctx, token, ids)
	if err != nil {
		s.logg.WarnErr(ctx, "history enrichment unavailable", err)
		return nil
	}
	return users
}
