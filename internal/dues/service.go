package dues

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/ptm-finance-backend/internal/cashbalance"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db/models"
	"github.com/angelmondragon/ptm-finance-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/money"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const uniquePeriodIndex = "uq_membership_dues_period"

const (
	msgMarkedPaid     = "Membership dues marked as paid"
	msgMarkedUnpaid   = "Membership dues marked as unpaid"
	msgAlreadyPaid    = "Membership dues for this period is already paid"
	msgDuesNotFound   = "Membership dues record not found"
	msgNoFileChanges  = "No file changes"
	msgProofUpdated   = "Proof file updated"
	msgProofDeleted   = "Proof file deleted"
	msgInvalidStatus  = "Invalid status"
	msgInvalidProofFS = "Invalid status_file"
)

// TxRunner opens a unit of work whose side effects run after commit.
type TxRunner interface {
	WithTxHooks(ctx context.Context, fn func(tx *gorm.DB, hooks *db.Hooks) error) error
}

// BalanceApplier moves the cash balance inside the caller's transaction.
type BalanceApplier interface {
	ApplyDelta(ctx context.Context, tx *gorm.DB, input cashbalance.DeltaInput) (decimal.Decimal, error)
}

// FileRemover deletes stored proof files. Failures are not fatal.
type FileRemover interface {
	Delete(ctx context.Context, path string) error
}

// Recorder receives dues metrics. Nil is allowed.
type Recorder interface {
	ObserveDuesTransition(action string)
	ObserveBalanceChange(source string, status bool)
}

// Service transitions dues periods and keeps the cash balance in step.
type Service interface {
	MarkPaid(ctx context.Context, actorID int64, key PeriodKey, amount *decimal.Decimal) (TransitionResult, error)
	MarkUnpaid(ctx context.Context, actorID int64, key PeriodKey) (TransitionResult, error)
	UpdateStatus(ctx context.Context, actorID int64, input UpdateStatusInput) (TransitionResult, error)
	SetProof(ctx context.Context, actorID int64, id int64, statusFile int, newPath *string) (ProofResult, error)
}

// ServiceParams groups the collaborators of NewService.
type ServiceParams struct {
	Repo          Repository
	Balance       BalanceApplier
	Tx            TxRunner
	Files         FileRemover
	Metrics       Recorder
	Logger        *logger.Logger
	DefaultAmount decimal.Decimal
	Now           func() time.Time
}

type service struct {
	repo          Repository
	balance       BalanceApplier
	tx            TxRunner
	files         FileRemover
	metrics       Recorder
	logg          *logger.Logger
	defaultAmount decimal.Decimal
	now           func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("dues repository required")
	}
	if p.Balance == nil {
		return nil, fmt.Errorf("balance applier required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if err := money.Check(p.DefaultAmount); err != nil {
		return nil, fmt.Errorf("default dues amount %s: %w", p.DefaultAmount, err)
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		repo:          p.Repo,
		balance:       p.Balance,
		tx:            p.Tx,
		files:         p.Files,
		metrics:       p.Metrics,
		logg:          p.Logger,
		defaultAmount: p.DefaultAmount,
		now:           p.Now,
	}, nil
}

func (s *service) MarkPaid(ctx context.Context, actorID int64, key PeriodKey, amount *decimal.Decimal) (TransitionResult, error) {
	if actorID <= 0 {
		return TransitionResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized")
	}
	if err := key.Validate(); err != nil {
		return TransitionResult{}, err
	}
	value := s.defaultAmount
	if amount != nil {
		if err := money.Validate("Amount", *amount); err != nil {
			return TransitionResult{}, err
		}
		value = *amount
	}

	var created models.MembershipDues
	err := s.tx.WithTxHooks(ctx, func(tx *gorm.DB, _ *db.Hooks) error {
		existing, err := s.repo.Find(ctx, tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, msgAlreadyPaid)
		}

		note := key.paymentNote()
		created = models.MembershipDues{
			MemberID:    key.MemberID,
			PeriodYear:  key.Year,
			PeriodMonth: key.Month,
			Amount:      value,
			PaidAt:      s.now(),
			Note:        &note,
			CreatedBy:   actorID,
		}
		if err := s.repo.Create(ctx, tx, &created); err != nil {
			if db.IsUniqueViolation(err, uniquePeriodIndex) {
				return pkgerrors.New(pkgerrors.CodeConflict, msgAlreadyPaid)
			}
			return err
		}

		_, err = s.balance.ApplyDelta(ctx, tx, cashbalance.DeltaInput{
			Status:      true,
			Value:       value,
			Description: note,
			CreatedBy:   actorID,
		})
		return err
	})
	if err != nil {
		return TransitionResult{}, serviceError(err, "failed to mark membership dues as paid")
	}

	s.observe(string(enums.DuesStatusPaid), true)
	return TransitionResult{Message: msgMarkedPaid, Amount: value, DuesID: created.ID}, nil
}

func (s *service) MarkUnpaid(ctx context.Context, actorID int64, key PeriodKey) (TransitionResult, error) {
	if actorID <= 0 {
		return TransitionResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized")
	}
	if err := key.Validate(); err != nil {
		return TransitionResult{}, err
	}

	var reversed models.MembershipDues
	err := s.tx.WithTxHooks(ctx, func(tx *gorm.DB, hooks *db.Hooks) error {
		existing, err := s.repo.Find(ctx, tx, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, msgDuesNotFound)
		}
		reversed = *existing

		s.scheduleRemoval(hooks, existing.ProofFilePath)

		if err := s.repo.Delete(ctx, tx, existing.ID); err != nil {
			return err
		}

		// the stored amount is reversed so custom import amounts net to zero
		_, err = s.balance.ApplyDelta(ctx, tx, cashbalance.DeltaInput{
			Status:      false,
			Value:       existing.Amount,
			Description: key.reversalNote(),
			CreatedBy:   actorID,
		})
		return err
	})
	if err != nil {
		return TransitionResult{}, serviceError(err, "failed to mark membership dues as unpaid")
	}

	s.observe(string(enums.DuesStatusUnpaid), false)
	return TransitionResult{Message: msgMarkedUnpaid, Amount: reversed.Amount.Neg(), DuesID: reversed.ID}, nil
}

func (s *service) UpdateStatus(ctx context.Context, actorID int64, input UpdateStatusInput) (TransitionResult, error) {
	switch input.Status {
	case enums.DuesStatusPaid:
		return s.MarkPaid(ctx, actorID, input.PeriodKey, nil)
	case enums.DuesStatusUnpaid:
		return s.MarkUnpaid(ctx, actorID, input.PeriodKey)
	default:
		return TransitionResult{}, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidStatus).
			WithDetails(map[string]string{"status": "must be one of paid, unpaid"})
	}
}

func (s *service) SetProof(ctx context.Context, actorID int64, id int64, statusFile int, newPath *string) (ProofResult, error) {
	if actorID <= 0 {
		return ProofResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized")
	}
	flag, err := enums.ParseProofFileStatus(statusFile)
	if err != nil {
		return ProofResult{}, pkgerrors.New(pkgerrors.CodeValidation, msgInvalidProofFS)
	}

	var result ProofResult
	err = s.tx.WithTxHooks(ctx, func(tx *gorm.DB, hooks *db.Hooks) error {
		existing, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, msgDuesNotFound)
		}

		if flag == enums.ProofFileUnchanged {
			result = ProofResult{Message: msgNoFileChanges, Path: existing.ProofFilePath}
			return nil
		}

		if existing.ProofFilePath != nil && (newPath == nil || *existing.ProofFilePath != *newPath) {
			s.scheduleRemoval(hooks, existing.ProofFilePath)
		}
		if err := s.repo.UpdateProof(ctx, tx, existing.ID, newPath, actorID); err != nil {
			return err
		}

		result = ProofResult{Message: msgProofUpdated, Path: newPath}
		if newPath == nil {
			result.Message = msgProofDeleted
		}
		return nil
	})
	if err != nil {
		return ProofResult{}, serviceError(err, "failed to update proof file")
	}
	if flag == enums.ProofFileReplace && s.metrics != nil {
		s.metrics.ObserveDuesTransition("proof")
	}
	return result, nil
}

func (s *service) scheduleRemoval(hooks *db.Hooks, path *string) {
	if s.files == nil || path == nil || *path == "" {
		return
	}
	target := *path
	hooks.AfterCommit(func(ctx context.Context) error {
		if err := s.files.Delete(ctx, target); err != nil {
			return fmt.Errorf("delete proof file %s: %w", target, err)
		}
		return nil
	})
}

func (s *service) observe(action string, credit bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuesTransition(action)
	s.metrics.ObserveBalanceChange("dues", credit)
}

// serviceError keeps typed errors, reports a row that vanished mid
// transaction as not found and wraps everything else as a persistence
// failure.
func serviceError(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msgDuesNotFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
}
