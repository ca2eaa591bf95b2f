// Package members reads the external member directory.
package members

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	pkgerrors "github.com/angelmondragon/ptm-finance-backend/pkg/errors"
	"github.com/angelmondragon/ptm-finance-backend/pkg/upstream"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	listPath     = "/setting/members"
	loadMorePath = "/setting/members/load-more"

	defaultBulkConcurrency = 8
)

// Member mirrors the directory's member record. This service never writes it.
type Member struct {
	ID        int64   `json:"id"`
	UserID    *int64  `json:"user_id"`
	Name      string  `json:"name"`
	Username  string  `json:"username"`
	Gender    string  `json:"gender"`
	Birthdate string  `json:"birthdate"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
	Photo     *string `json:"photo"`
	Active    bool    `json:"active"`
	Email     *string `json:"email"`
	CreatedBy int64   `json:"created_by"`
	UpdatedBy *int64  `json:"updated_by"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// ListParams drives the page-numbered listing.
type ListParams struct {
	Search     string
	OrderField string
	OrderDir   string
	Page       int
	PerPage    int
}

// Pagination is the page-numbered listing metadata.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// ListResult is one page of active members.
type ListResult struct {
	Data       []Member
	Pagination *Pagination
}

// LoadMoreParams drives the cursor listing. Cursor is the last member id seen.
type LoadMoreParams struct {
	Search string
	Limit  int
	Cursor *int64
}

// LoadMoreMeta is the cursor listing metadata.
type LoadMoreMeta struct {
	NextCursor *int64 `json:"nextCursor"`
	HasMore    bool   `json:"hasMore"`
	Limit      int    `json:"limit"`
}

// LoadMoreResult is one cursor page of members.
type LoadMoreResult struct {
	Data []Member
	Meta LoadMoreMeta
}

// Client talks to the member directory.
type Client struct {
	http        *upstream.Client
	concurrency int
}

// ClientOption tunes the directory client.
type ClientOption func(*Client)

// WithBulkConcurrency caps parallel lookups in GetByIDs.
func WithBulkConcurrency(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func NewClient(baseURL string, opts []upstream.Option, clientOpts ...ClientOption) (*Client, error) {
	h, err := upstream.New(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	c := &Client{http: h, concurrency: defaultBulkConcurrency}
	for _, opt := range clientOpts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// List returns a page of active members.
func (c *Client) List(ctx context.Context, token string, params ListParams) (ListResult, error) {
	query := url.Values{}
	query.Set("search", params.Search)
	query.Set("order_field", orDefault(params.OrderField, "name"))
	query.Set("order_dir", orDefault(params.OrderDir, "asc"))
	query.Set("page", strconv.Itoa(atLeast(params.Page, 1)))
	query.Set("per_page", strconv.Itoa(atLeast(params.PerPage, 10)))
	query.Set("active", "active")

	body, err := c.http.Get(ctx, token, listPath, query)
	if err != nil {
		return ListResult{}, err
	}

	var arr []Member
	if err := json.Unmarshal(body, &arr); err == nil {
		return ListResult{Data: arr}, nil
	}

	var resp struct {
		Data       []Member    `json:"data"`
		Pagination *Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ListResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode member list")
	}
	return ListResult{Data: resp.Data, Pagination: resp.Pagination}, nil
}

// LoadMore returns the members after params.Cursor.
func (c *Client) LoadMore(ctx context.Context, token string, params LoadMoreParams) (LoadMoreResult, error) {
	limit := atLeast(params.Limit, 10)
	query := url.Values{}
	if params.Search != "" {
		query.Set("search", params.Search)
	}
	query.Set("limit", strconv.Itoa(limit))
	if params.Cursor != nil {
		query.Set("cursor", strconv.FormatInt(*params.Cursor, 10))
	}

	body, err := c.http.Get(ctx, token, loadMorePath, query)
	if err != nil {
		return LoadMoreResult{}, err
	}

	var resp struct {
		Data []Member     `json:"data"`
		Meta LoadMoreMeta `json:"meta"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return LoadMoreResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode member load-more")
	}
	if resp.Meta.Limit == 0 {
		resp.Meta.Limit = limit
	}
	return LoadMoreResult{Data: resp.Data, Meta: resp.Meta}, nil
}

// GetByID returns nil without error when the directory has no such member.
func (c *Client) GetByID(ctx context.Context, token string, id int64) (*Member, error) {
	body, err := c.http.Get(ctx, token, fmt.Sprintf("%s/%d", listPath, id), nil)
	if err != nil {
		if upstream.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var m Member
	if err := json.Unmarshal(upstream.Unwrap(body), &m); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode member")
	}
	if m.ID == 0 {
		return nil, nil
	}
	return &m, nil
}

// GetByIDs resolves many ids with bounded concurrency. Ids that are unknown
// or whose lookup failed are absent from the map; lookup failures are also
// returned, combined, so callers can log them.
func (c *Client) GetByIDs(ctx context.Context, token string, ids []int64) (map[int64]Member, error) {
	unique := dedupe(ids)
	out := make(map[int64]Member, len(unique))
	if len(unique) == 0 {
		return out, nil
	}

	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, id := range unique {
		g.Go(func() error {
			m, err := c.GetByID(gctx, token, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("member %d: %w", id, err))
				return nil
			}
			if m != nil {
				out[id] = *m
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, errs
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func atLeast(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
