package duesimport

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/ptm-finance-backend/internal/dues"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db/models"
	"github.com/angelmondragon/ptm-finance-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/members"
	"github.com/shopspring/decimal"
)

const reasonAmountDiffers = "Amount differs from the recorded payment; edit is not supported"

// Transitions is the subset of the dues orchestrator an import drives.
type Transitions interface {
	MarkPaid(ctx context.Context, actorID int64, key dues.PeriodKey, amount *decimal.Decimal) (dues.TransitionResult, error)
	MarkUnpaid(ctx context.Context, actorID int64, key dues.PeriodKey) (dues.TransitionResult, error)
}

// DuesReader loads the current state of the sheet's members.
type DuesReader interface {
	FindByMembersAndYear(ctx context.Context, memberIDs []int64, year int) ([]models.MembershipDues, error)
}

// MemberResolver resolves member ids in bulk.
type MemberResolver interface {
	GetByIDs(ctx context.Context, token string, ids []int64) (map[int64]members.Member, error)
}

// Recorder receives import metrics. Nil is allowed.
type Recorder interface {
	ObserveImport(outcome string, elapsed time.Duration)
	ObserveImportCell(action enums.ImportAction, ok bool)
}

// Change is one cell the import acted on or refused to act on.
type Change struct {
	MemberID    int64              `json:"member_id"`
	PeriodYear  int                `json:"period_year"`
	PeriodMonth int                `json:"period_month"`
	Action      enums.ImportAction `json:"action"`
	Amount      decimal.Decimal    `json:"amount"`
	Reason      *string            `json:"reason,omitempty"`
}

// ReportItem is the outcome for one sheet row.
type ReportItem struct {
	MemberID   int64    `json:"member_id"`
	MemberName string   `json:"member_name"`
	Processed  int      `json:"processed"`
	Success    int      `json:"success"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
	Changes    []Change `json:"changes"`
}

// Summary counts rows. A row succeeds when none of its cells failed.
type Summary struct {
	TotalRows     int `json:"total_rows"`
	ProcessedRows int `json:"processed_rows"`
	SuccessRows   int `json:"success_rows"`
	FailedRows    int `json:"failed_rows"`
}

// Result is the full import report.
type Result struct {
	Summary Summary      `json:"summary"`
	Items   []ReportItem `json:"items"`
}

// Service applies a parsed sheet against the dues store.
type Service interface {
	Import(ctx context.Context, actorID int64, token string, year int, rows []Row) (Result, error)
}

// ServiceParams groups the collaborators of NewService.
type ServiceParams struct {
	Dues    Transitions
	Reader  DuesReader
	Members MemberResolver
	Metrics Recorder
	Logger  *logger.Logger
}

type service struct {
	dues    Transitions
	reader  DuesReader
	members MemberResolver
	metrics Recorder
	logg    *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	if p.Dues == nil {
		return nil, fmt.Errorf("dues transitions required")
	}
	if p.Reader == nil {
		return nil, fmt.Errorf("dues reader required")
	}
	if p.Members == nil {
		return nil, fmt.Errorf("member resolver required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &service{dues: p.Dues, reader: p.Reader, members: p.Members, metrics: p.Metrics, logg: p.Logger}, nil
}

func (s *service) Import(ctx context.Context, actorID int64, token string, year int, rows []Row) (result Result, err error) {
	started := time.Now()
	defer func() {
		if s.metrics == nil {
			return
		}
		outcome := "completed"
		switch {
		case err != nil:
			outcome = "error"
		case result.Summary.FailedRows > 0:
			outcome = "partial"
		}
		s.metrics.ObserveImport(outcome, time.Since(started))
	}()

	if actorID <= 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized")
	}
	if year < dues.MinPeriodYear || year > dues.MaxPeriodYear {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("Period year must be between %d and %d!", dues.MinPeriodYear, dues.MaxPeriodYear))
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MemberID)
	}
	resolved, lookupErr := s.members.GetByIDs(ctx, token, ids)
	if lookupErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, ctxErr, "import cancelled")
		}
		s.logg.WarnErr(ctx, "some import members could not be resolved", lookupErr)
	}

	known := make([]int64, 0, len(resolved))
	for id := range resolved {
		known = append(known, id)
	}
	current, err := s.reader.FindByMembersAndYear(ctx, known, year)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load membership dues")
	}
	state := make(map[dues.PeriodKey]models.MembershipDues, len(current))
	for _, row := range current {
		state[dues.PeriodKey{MemberID: row.MemberID, Year: row.PeriodYear, Month: row.PeriodMonth}] = row
	}

	result = Result{Summary: Summary{TotalRows: len(rows)}, Items: make([]ReportItem, 0, len(rows))}
	for _, row := range rows {
		item := ReportItem{
			MemberID:   row.MemberID,
			MemberName: row.MemberName,
			Errors:     []string{},
			Changes:    []Change{},
		}

		if _, ok := resolved[row.MemberID]; !ok {
			item.Failed = len(row.Months)
			item.Errors = append(item.Errors, fmt.Sprintf("Member %d not found", row.MemberID))
			result.Summary.FailedRows++
			result.Items = append(result.Items, item)
			continue
		}

		result.Summary.ProcessedRows++
		for _, cell := range row.Months {
			key := dues.PeriodKey{MemberID: row.MemberID, Year: year, Month: cell.Month}
			existing, paid := state[key]
			s.applyCell(ctx, actorID, key, cell, existing, paid, &item)
		}

		if item.Failed == 0 {
			result.Summary.SuccessRows++
		} else {
			result.Summary.FailedRows++
		}
		result.Items = append(result.Items, item)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"period_year":    year,
		"total_rows":     result.Summary.TotalRows,
		"processed_rows": result.Summary.ProcessedRows,
		"failed_rows":    result.Summary.FailedRows,
	}), "membership dues import finished")
	return result, nil
}

// applyCell diffs one cell against the stored row and runs at most one
// orchestrator transaction for it.
func (s *service) applyCell(ctx context.Context, actorID int64, key dues.PeriodKey, cell Cell, existing models.MembershipDues, paid bool, item *ReportItem) {
	change := Change{MemberID: key.MemberID, PeriodYear: key.Year, PeriodMonth: key.Month}

	switch {
	case cell.Paid && !paid:
		change.Action = enums.ImportActionCreate
		res, err := s.dues.MarkPaid(ctx, actorID, key, cell.Amount)
		change.Amount = res.Amount
		if cell.Amount != nil && err != nil {
			change.Amount = *cell.Amount
		}
		s.record(item, &change, err)

	case !cell.Paid && paid:
		change.Action = enums.ImportActionDelete
		change.Amount = existing.Amount
		_, err := s.dues.MarkUnpaid(ctx, actorID, key)
		s.record(item, &change, err)

	case cell.Paid && cell.Amount != nil && !cell.Amount.Equal(existing.Amount):
		reason := reasonAmountDiffers
		change.Action = enums.ImportActionSkip
		change.Amount = existing.Amount
		change.Reason = &reason
		item.Changes = append(item.Changes, change)
		if s.metrics != nil {
			s.metrics.ObserveImportCell(enums.ImportActionSkip, true)
		}
	}
}

func (s *service) record(item *ReportItem, change *Change, err error) {
	item.Processed++
	if err != nil {
		item.Failed++
		msg := err.Error()
		if typed := pkgerrors.As(err); typed != nil {
			msg = typed.Message()
		}
		item.Errors = append(item.Errors, fmt.Sprintf("Month %d: %s", change.PeriodMonth, msg))
		change.Reason = &msg
	} else {
		item.Success++
	}
	item.Changes = append(item.Changes, *change)
	if s.metrics != nil {
		s.metrics.ObserveImportCell(change.Action, err == nil)
	}
}
