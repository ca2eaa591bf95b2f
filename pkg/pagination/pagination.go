package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

// Params holds keyset pagination inputs from controllers or services.
// Cursor is the id of the last row of the previous page.
type Params struct {
	Limit  int
	Cursor *int64
}

// Meta is returned next to a page of rows.
type Meta struct {
	NextCursor *int64 `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
	Limit      int    `json:"limit"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Trim cuts a LimitWithBuffer result back to limit rows. When the probe row
// was present, the id of the last kept row becomes the next cursor.
func Trim[T any](rows []T, limit int, idOf func(T) int64) ([]T, Meta) {
	limit = NormalizeLimit(limit)
	meta := Meta{Limit: limit}
	if len(rows) <= limit {
		return rows, meta
	}
	rows = rows[:limit]
	next := idOf(rows[len(rows)-1])
	meta.HasMore = true
	meta.NextCursor = &next
	return rows, meta
}
