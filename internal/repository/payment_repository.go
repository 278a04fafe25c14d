package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nexhr/sales-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.PaymentRecord) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(payment).Error
}

func (r *PaymentRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.PaymentRecord, error) {
	var payments []domain.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("payment_date ASC, created_at ASC").
		Find(&payments).Error
	return payments, err
}

// SumByLead returns the total amount received for a lead
func (r *PaymentRepository) SumByLead(ctx context.Context, leadID uuid.UUID) (float64, error) {
	var sum float64
	err := r.db.WithContext(ctx).Model(&domain.PaymentRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("lead_id = ?", leadID).
		Scan(&sum).Error
	return sum, err
}
