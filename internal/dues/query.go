package dues

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/ptm-finance-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/members"
	"github.com/angelmondragon/ptm-finance-backend/pkg/pagination"
	"github.com/angelmondragon/ptm-finance-backend/pkg/storage"
	"github.com/shopspring/decimal"
)

const (
	msgMemberNotFound = "Member not found for this membership dues"
	monthsPerYear     = 12
)

// MemberDirectory is the subset of the member directory the read paths use.
type MemberDirectory interface {
	List(ctx context.Context, token string, params members.ListParams) (members.ListResult, error)
	LoadMore(ctx context.Context, token string, params members.LoadMoreParams) (members.LoadMoreResult, error)
	GetByID(ctx context.Context, token string, id int64) (*members.Member, error)
}

// QueryService serves the dues grid and detail views.
type QueryService interface {
	GetList(ctx context.Context, token string, q ListQuery) (ListResult, error)
	GetDetail(ctx context.Context, token string, id int64) (DetailResult, error)
}

// QueryParams groups the collaborators of NewQueryService.
type QueryParams struct {
	Repo          Repository
	Members       MemberDirectory
	Logger        *logger.Logger
	PublicBaseURL string
	Location      *time.Location
	Now           func() time.Time
}

type queryService struct {
	repo    Repository
	members MemberDirectory
	logg    *logger.Logger
	baseURL string
	loc     *time.Location
	now     func() time.Time
}

func NewQueryService(p QueryParams) (QueryService, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("dues repository required")
	}
	if p.Members == nil {
		return nil, fmt.Errorf("member directory required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &queryService{
		repo:    p.Repo,
		members: p.Members,
		logg:    p.Logger,
		baseURL: p.PublicBaseURL,
		loc:     p.Location,
		now:     p.Now,
	}, nil
}

func (s *queryService) GetList(ctx context.Context, token string, q ListQuery) (ListResult, error) {
	limit := pagination.NormalizeLimit(q.Limit)
	year := q.PeriodYear
	if year == 0 {
		year = s.now().In(s.loc).Year()
	}

	page, meta, legacy := s.listMembers(ctx, token, q, limit)

	ids := make([]int64, 0, len(page))
	for _, m := range page {
		ids = append(ids, m.ID)
	}
	rows, err := s.repo.FindByMembersAndYear(ctx, ids, year)
	if err != nil {
		return ListResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to get membership dues")
	}

	paid := make(map[int64]map[int]MonthCell, len(page))
	for _, row := range rows {
		byMonth, ok := paid[row.MemberID]
		if !ok {
			byMonth = make(map[int]MonthCell, monthsPerYear)
			paid[row.MemberID] = byMonth
		}
		id := row.ID
		byMonth[row.PeriodMonth] = MonthCell{
			Month:  row.PeriodMonth,
			Status: enums.DuesStatusPaid,
			Amount: row.Amount,
			ID:     &id,
		}
	}

	items := make([]GridRow, 0, len(page))
	for _, m := range page {
		months := make([]MonthCell, 0, monthsPerYear)
		for month := 1; month <= monthsPerYear; month++ {
			cell, ok := paid[m.ID][month]
			if !ok {
				cell = MonthCell{Month: month, Status: enums.DuesStatusUnpaid, Amount: decimal.Zero}
			}
			months = append(months, cell)
		}
		items = append(items, GridRow{
			Member: MemberSummary{ID: m.ID, Name: m.Name, Photo: m.Photo},
			Months: months,
		})
	}

	return ListResult{Items: items, Meta: meta, Pagination: legacy}, nil
}

// listMembers picks the cursor listing unless a page beyond the first was
// asked for without a cursor. Directory failures degrade to an empty page.
func (s *queryService) listMembers(ctx context.Context, token string, q ListQuery, limit int) ([]members.Member, ListMeta, *LegacyPagination) {
	if q.Cursor != nil || q.Page <= 1 {
		res, err := s.members.LoadMore(ctx, token, members.LoadMoreParams{
			Search: q.Search,
			Limit:  limit,
			Cursor: q.Cursor,
		})
		if err != nil {
			s.logg.WarnErr(ctx, "member directory load-more unavailable", err)
			return nil, ListMeta{Limit: limit}, nil
		}
		return res.Data, ListMeta{
			NextCursor: res.Meta.NextCursor,
			HasMore:    res.Meta.HasMore,
			Limit:      limit,
		}, nil
	}

	res, err := s.members.List(ctx, token, members.ListParams{
		Search:     q.Search,
		OrderField: "id",
		OrderDir:   "desc",
		Page:       q.Page,
		PerPage:    limit,
	})
	if err != nil {
		s.logg.WarnErr(ctx, "member directory list unavailable", err)
		return nil, ListMeta{Limit: limit}, nil
	}
	meta := ListMeta{Limit: limit}
	if res.Pagination == nil {
		return res.Data, meta, nil
	}
	p := *res.Pagination
	meta.HasMore = p.CurrentPage < p.TotalPages
	meta.TotalItems = &p.TotalItems
	meta.TotalPages = &p.TotalPages
	meta.CurrentPage = &p.CurrentPage
	return res.Data, meta, &LegacyPagination{
		CurrentPage:  p.CurrentPage,
		TotalPages:   p.TotalPages,
		TotalItems:   p.TotalItems,
		ItemsPerPage: p.ItemsPerPage,
	}
}

func (s *queryService) GetDetail(ctx context.Context, token string, id int64) (DetailResult, error) {
	row, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return DetailResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to get membership dues")
	}
	if row == nil {
		return DetailResult{}, pkgerrors.New(pkgerrors.CodeNotFound, msgDuesNotFound)
	}

	member, err := s.members.GetByID(ctx, token, row.MemberID)
	if err != nil {
		s.logg.WarnErr(ctx, "member directory lookup failed", err)
		member = nil
	}
	if member == nil {
		return DetailResult{}, pkgerrors.New(pkgerrors.CodeNotFound, msgMemberNotFound)
	}

	return DetailResult{
		MembershipDues: DuesDetail{
			ID:            row.ID,
			MemberID:      row.MemberID,
			PeriodYear:    row.PeriodYear,
			PeriodMonth:   row.PeriodMonth,
			Amount:        row.Amount,
			Status:        enums.DuesStatusPaid,
			DueDate:       time.Date(row.PeriodYear, time.Month(row.PeriodMonth), 1, 0, 0, 0, 0, s.loc),
			Note:          row.Note,
			CreatedAt:     row.CreatedAt,
			UpdatedAt:     row.UpdatedAt,
			ProofFilePath: s.publicProofURL(row.ProofFilePath),
		},
		Member: MemberDetail{
			ID:        member.ID,
			Name:      member.Name,
			Username:  member.Username,
			Gender:    member.Gender,
			Birthdate: member.Birthdate,
			Address:   member.Address,
			Phone:     member.Phone,
			Photo:     member.Photo,
			Active:    member.Active,
		},
	}, nil
}

// publicProofURL returns nil for paths that are neither URLs nor under storage.
func (s *queryService) publicProofURL(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	out := storage.NormalizePublicURL(s.baseURL, *p)
	if !strings.HasPrefix(out, "http://") && !strings.HasPrefix(out, "https://") {
		return nil
	}
	return &out
}
