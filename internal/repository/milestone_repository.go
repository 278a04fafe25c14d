package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nexhr/sales-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MilestoneRepository struct {
	db *gorm.DB
}

func NewMilestoneRepository(db *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

func (r *MilestoneRepository) Create(ctx context.Context, milestone *domain.PaymentMilestone) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(milestone).Error
}

func (r *MilestoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMilestone, error) {
	var milestone domain.PaymentMilestone
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&milestone).Error
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *MilestoneRepository) Update(ctx context.Context, milestone *domain.PaymentMilestone) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(milestone).Error
}

func (r *MilestoneRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.PaymentMilestone, error) {
	var milestones []domain.PaymentMilestone
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("due_date ASC").
		Find(&milestones).Error
	return milestones, err
}

// MarkOverdue flips pending milestones with a due date before the cutoff to
// overdue. Returns the number of rows updated.
func (r *MilestoneRepository) MarkOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.PaymentMilestone{}).
		Where("status = ? AND due_date < ?", domain.MilestoneStatusPending, cutoff).
		Update("status", domain.MilestoneStatusOverdue)
	return result.RowsAffected, result.Error
}

// CountOverdue returns the number of overdue milestones across all leads
func (r *MilestoneRepository) CountOverdue(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PaymentMilestone{}).
		Where("status = ?", domain.MilestoneStatusOverdue).
		Count(&count).Error
	return count, err
}
