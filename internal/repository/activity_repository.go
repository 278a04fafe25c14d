package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nexhr/sales-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.LeadActivity) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(activity).Error
}

func (r *ActivityRepository) ListByLead(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.LeadActivity, error) {
	var activities []domain.LeadActivity
	query := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("occurred_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&activities).Error
	return activities, err
}
