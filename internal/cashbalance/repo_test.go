package cashbalance

import (
	"context"
	"sync"
	"testing"

	"github.com/angelmondragon/ptm-finance-backend/pkg/db"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db/models"
	"github.com/angelmondragon/ptm-finance-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func apply(t *testing.T, client *db.Client, r Repository, in DeltaInput) decimal.Decimal {
	t.Helper()
	var out decimal.Decimal
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		out, err = r.ApplyDelta(context.Background(), tx, in)
		return err
	}))
	return out
}

func TestGetCurrentBalanceIsZeroWithoutCreatingRow(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())

	balance, err := r.GetCurrentBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	var rows int64
	require.NoError(t, client.DB().Model(&models.CashBalance{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestApplyDeltaSumsSignedDeltasAndAppendsHistory(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())

	got := apply(t, client, r, DeltaInput{Status: true, Value: decimal.NewFromInt(100), Description: "seed", CreatedBy: 1})
	assert.True(t, got.Equal(decimal.NewFromInt(100)))

	got = apply(t, client, r, DeltaInput{Status: false, Value: decimal.NewFromInt(30), Description: "snacks", CreatedBy: 2})
	assert.True(t, got.Equal(decimal.NewFromInt(70)))

	got = apply(t, client, r, DeltaInput{Status: true, Value: decimal.RequireFromString("12.5"), Description: "donation", CreatedBy: 1})
	assert.True(t, got.Equal(decimal.RequireFromString("82.5")), "got %s", got)

	current, err := r.GetCurrentBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, current.Equal(got))

	var history []models.HistoryBalance
	require.NoError(t, client.DB().Order("id ASC").Find(&history).Error)
	require.Len(t, history, 3)
	assert.False(t, history[1].Status)
	assert.True(t, history[1].Value.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "snacks", history[1].Description)
	assert.Equal(t, int64(2), history[1].CreatedBy)
}

func TestApplyDeltaRequiresTransaction(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())

	_, err := r.ApplyDelta(context.Background(), nil, DeltaInput{Status: true, Value: decimal.NewFromInt(1), Description: "x", CreatedBy: 1})
	assert.Error(t, err)
}

func TestApplyDeltaRejectsUnstorableValue(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())

	for _, raw := range []string{"0", "0.001", "10000000000000"} {
		err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
			_, err := r.ApplyDelta(context.Background(), tx, DeltaInput{Status: true, Value: decimal.RequireFromString(raw), Description: "x", CreatedBy: 1})
			return err
		})
		assert.Error(t, err, raw)
	}

	var rows int64
	require.NoError(t, client.DB().Model(&models.CashBalance{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestApplyDeltaFirstInsertReturnsStoredBalance(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())

	got := apply(t, client, r, DeltaInput{Status: false, Value: decimal.RequireFromString("40.25"), Description: "first", CreatedBy: 1})
	assert.True(t, got.Equal(decimal.RequireFromString("-40.25")), "got %s", got)

	var row models.CashBalance
	require.NoError(t, client.DB().Order("id ASC").Take(&row).Error)
	assert.True(t, got.Equal(row.Balance), "returned %s stored %s", got, row.Balance)
}

func TestApplyDeltaRollsBackWithCallerTransaction(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())
	apply(t, client, r, DeltaInput{Status: true, Value: decimal.NewFromInt(50), Description: "seed", CreatedBy: 1})

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if _, err := r.ApplyDelta(context.Background(), tx, DeltaInput{Status: true, Value: decimal.NewFromInt(10), Description: "lost", CreatedBy: 1}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	balance, err := r.GetCurrentBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))

	var entries int64
	require.NoError(t, client.DB().Model(&models.HistoryBalance{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
}

func TestConcurrentFirstDeltasCreateSingleRow(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.WithTx(context.Background(), func(tx *gorm.DB) error {
				_, err := r.ApplyDelta(context.Background(), tx, DeltaInput{
					Status:      i%4 != 0,
					Value:       decimal.NewFromInt(int64(i + 1)),
					Description: "race",
					CreatedBy:   1,
				})
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	want := decimal.Zero
	for i := 0; i < n; i++ {
		v := decimal.NewFromInt(int64(i + 1))
		if i%4 == 0 {
			v = v.Neg()
		}
		want = want.Add(v)
	}

	var rows int64
	require.NoError(t, client.DB().Model(&models.CashBalance{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	balance, err := r.GetCurrentBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Equal(want), "want %s got %s", want, balance)

	var entries int64
	require.NoError(t, client.DB().Model(&models.HistoryBalance{}).Count(&entries).Error)
	assert.Equal(t, int64(n), entries)
}

func TestListHistoryKeysetTraversal(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())

	const total = 23
	for i := 0; i < total; i++ {
		apply(t, client, r, DeltaInput{Status: true, Value: decimal.NewFromInt(1), Description: "tick", CreatedBy: 1})
	}

	seen := map[int64]bool{}
	var order []int64
	params := pagination.Params{Limit: 7}
	pages := 0
	for {
		page, err := r.ListHistory(context.Background(), params)
		require.NoError(t, err)
		pages++
		for _, item := range page.Items {
			require.False(t, seen[item.ID], "duplicate id %d", item.ID)
			seen[item.ID] = true
			order = append(order, item.ID)
		}
		if !page.HasMore {
			assert.Nil(t, page.NextCursor)
			break
		}
		require.NotNil(t, page.NextCursor)
		assert.Equal(t, page.Items[len(page.Items)-1].ID, *page.NextCursor)
		params.Cursor = page.NextCursor
	}

	assert.Equal(t, 4, pages)
	require.Len(t, order, total)
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i-1], order[i])
	}
}
