package dues

import (
	"fmt"
	"time"

	"github.com/angelmondragon/ptm-finance-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	MinPeriodYear = 2000
	MaxPeriodYear = 2100
)

// PeriodKey identifies one member's dues period.
type PeriodKey struct {
	MemberID int64 `json:"member_id"`
	Year     int   `json:"period_year"`
	Month    int   `json:"period_month"`
}

// Validate checks the ranges the storage constraints would otherwise reject.
func (k PeriodKey) Validate() error {
	details := map[string]string{}
	if k.MemberID <= 0 {
		details["member_id"] = "Member ID must be a positive number!"
	}
	if k.Year < MinPeriodYear || k.Year > MaxPeriodYear {
		details["period_year"] = fmt.Sprintf("Period year must be between %d and %d!", MinPeriodYear, MaxPeriodYear)
	}
	if k.Month < 1 || k.Month > 12 {
		details["period_month"] = "Period month must be between 1 and 12!"
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func (k PeriodKey) paymentNote() string {
	return fmt.Sprintf("Membership Dues Payment - Member %d - %d/%d", k.MemberID, k.Month, k.Year)
}

func (k PeriodKey) reversalNote() string {
	return fmt.Sprintf("Membership Dues Reversal - Member %d - %d/%d", k.MemberID, k.Month, k.Year)
}

// UpdateStatusInput is the body of a mark paid / unpaid request.
type UpdateStatusInput struct {
	PeriodKey
	Status enums.DuesStatus `json:"status"`
}

// TransitionResult reports the signed balance effect of a transition.
type TransitionResult struct {
	Message string          `json:"-"`
	Amount  decimal.Decimal `json:"amount"`
	DuesID  int64           `json:"-"`
}

// ProofResult echoes the stored proof path after a proof update.
type ProofResult struct {
	Message string  `json:"-"`
	Path    *string `json:"path"`
}

// ListQuery drives the member grid listing.
type ListQuery struct {
	PeriodYear int
	Page       int
	Cursor     *int64
	Limit      int
	Search     string
}

// MemberSummary is the member block of a grid row.
type MemberSummary struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Photo *string `json:"photo"`
}

// MonthCell is one month of a member's grid. ID is nil when unpaid.
type MonthCell struct {
	Month  int              `json:"month"`
	Status enums.DuesStatus `json:"status"`
	Amount decimal.Decimal  `json:"amount"`
	ID     *int64           `json:"id"`
}

// GridRow is one member with its twelve months.
type GridRow struct {
	Member MemberSummary `json:"member"`
	Months []MonthCell   `json:"months"`
}

// ListMeta is passed through from whichever member listing was used.
type ListMeta struct {
	NextCursor  *int64 `json:"next_cursor"`
	HasMore     bool   `json:"has_more"`
	Limit       int    `json:"limit"`
	TotalItems  *int   `json:"total_items,omitempty"`
	TotalPages  *int   `json:"total_pages,omitempty"`
	CurrentPage *int   `json:"current_page,omitempty"`
}

// LegacyPagination is the page-numbered metadata of the directory.
type LegacyPagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
}

// ListResult is the grid listing.
type ListResult struct {
	Items      []GridRow         `json:"items"`
	Meta       ListMeta          `json:"meta"`
	Pagination *LegacyPagination `json:"pagination,omitempty"`
}

// DuesDetail is the dues half of a detail view.
type DuesDetail struct {
	ID            int64            `json:"id"`
	MemberID      int64            `json:"member_id"`
	PeriodYear    int              `json:"period_year"`
	PeriodMonth   int              `json:"period_month"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        enums.DuesStatus `json:"status"`
	DueDate       time.Time        `json:"due_date"`
	Note          *string          `json:"note"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	ProofFilePath *string          `json:"proof_file_path,omitempty"`
}

// MemberDetail is the member half of a detail view.
type MemberDetail struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Username  string  `json:"username"`
	Gender    string  `json:"gender"`
	Birthdate string  `json:"birthdate"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
	Photo     *string `json:"photo"`
	Active    bool    `json:"active"`
}

// DetailResult combines one dues row with its member.
type DetailResult struct {
	MembershipDues DuesDetail   `json:"membership_dues"`
	Member         MemberDetail `json:"member"`
}
