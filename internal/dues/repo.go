package dues

import (
	"context"
	"errors"

	"github.com/angelmondragon/ptm-finance-backend/internal/repo"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists membership dues rows. Reads take an optional tx so they
// observe the caller's unit of work; mutations require one.
type Repository interface {
	Find(ctx context.Context, tx *gorm.DB, key PeriodKey) (*models.MembershipDues, error)
	FindByID(ctx context.Context, tx *gorm.DB, id int64) (*models.MembershipDues, error)
	FindByMembersAndYear(ctx context.Context, memberIDs []int64, year int) ([]models.MembershipDues, error)
	Create(ctx context.Context, tx *gorm.DB, row *models.MembershipDues) error
	UpdateProof(ctx context.Context, tx *gorm.DB, id int64, path *string, updatedBy int64) error
	Delete(ctx context.Context, tx *gorm.DB, id int64) error
}

type repository struct {
	repo.Base
}

// NewRepository returns a dues repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) Find(ctx context.Context, tx *gorm.DB, key PeriodKey) (*models.MembershipDues, error) {
	var row models.MembershipDues
	err := r.Reader(ctx, tx).
		Where("member_id = ? AND period_year = ? AND period_month = ?", key.MemberID, key.Year, key.Month).
		Take(&row).Error
	return found(&row, err)
}

func (r *repository) FindByID(ctx context.Context, tx *gorm.DB, id int64) (*models.MembershipDues, error) {
	var row models.MembershipDues
	err := r.Reader(ctx, tx).Where("id = ?", id).Take(&row).Error
	return found(&row, err)
}

func (r *repository) FindByMembersAndYear(ctx context.Context, memberIDs []int64, year int) ([]models.MembershipDues, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	var rows []models.MembershipDues
	if err := r.DB(ctx).
		Where("member_id IN ? AND period_year = ?", memberIDs, year).
		Order("member_id ASC").
		Order("period_month ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Create(ctx context.Context, tx *gorm.DB, row *models.MembershipDues) error {
	conn, err := r.Tx(ctx, tx)
	if err != nil {
		return err
	}
	return conn.Create(row).Error
}

func (r *repository) UpdateProof(ctx context.Context, tx *gorm.DB, id int64, path *string, updatedBy int64) error {
	conn, err := r.Tx(ctx, tx)
	if err != nil {
		return err
	}
	res := conn.Model(&models.MembershipDues{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"proof_file_path": path,
			"updated_by":      updatedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	conn, err := r.Tx(ctx, tx)
	if err != nil {
		return err
	}
	res := conn.Where("id = ?", id).Delete(&models.MembershipDues{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func found(row *models.MembershipDues, err error) (*models.MembershipDues, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
