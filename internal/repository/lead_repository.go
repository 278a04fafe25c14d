package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexhr/sales-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeadFilters contains all filter options for listing leads
type LeadFilters struct {
	Status        *domain.LeadStatus
	Priority      *domain.LeadPriority
	AssignedTo    *string
	CreatedBy     *string
	Source        *string
	MinValue      *float64
	MaxValue      *float64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Converted     *bool
	SearchQuery   *string
	// OwnedBy limits results to leads assigned to or created by the given
	// username. Applied for non-manager actors.
	OwnedBy *string
}

// LeadSortOption represents available sort options
type LeadSortOption string

const (
	LeadSortByCreatedDesc LeadSortOption = "created_desc"
	LeadSortByCreatedAsc  LeadSortOption = "created_asc"
	LeadSortByValueDesc   LeadSortOption = "value_desc"
	LeadSortByValueAsc    LeadSortOption = "value_asc"
	LeadSortByUpdatedDesc LeadSortOption = "updated_desc"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	// Omit associations to avoid GORM trying to validate related records
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(lead).Error
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetByIDWithLedger loads a lead with its milestones and payment records
func (r *LeadRepository) GetByIDWithLedger(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("due_date ASC")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_date ASC, created_at ASC")
		}).
		Where("id = ?", id).
		First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(lead).Error
}

func (r *LeadRepository) List(ctx context.Context, page, pageSize int, filters *LeadFilters, sortBy LeadSortOption) ([]domain.Lead, int64, error) {
	var leads []domain.Lead
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Lead{})
	query = r.applyFilters(query, filters)

	// Count total matching records
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply sorting
	query = r.applySorting(query, sortBy)

	// Apply pagination
	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&leads).Error

	return leads, total, err
}

func (r *LeadRepository) applyFilters(query *gorm.DB, filters *LeadFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Priority != nil {
		query = query.Where("priority = ?", *filters.Priority)
	}
	if filters.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filters.AssignedTo)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Source != nil {
		query = query.Where("source = ?", *filters.Source)
	}
	if filters.MinValue != nil {
		query = query.Where("deal_value >= ?", *filters.MinValue)
	}
	if filters.MaxValue != nil {
		query = query.Where("deal_value <= ?", *filters.MaxValue)
	}
	if filters.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filters.CreatedAfter)
	}
	if filters.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filters.CreatedBefore)
	}
	if filters.Converted != nil {
		if *filters.Converted {
			query = query.Where("linked_project_id IS NOT NULL")
		} else {
			query = query.Where("linked_project_id IS NULL")
		}
	}
	if filters.OwnedBy != nil {
		query = query.Where("assigned_to = ? OR created_by = ?", *filters.OwnedBy, *filters.OwnedBy)
	}
	if filters.SearchQuery != nil && *filters.SearchQuery != "" {
		search := "%" + strings.ToLower(*filters.SearchQuery) + "%"
		query = query.Where(
			"LOWER(contact_person) LIKE ? OR LOWER(company_name) LIKE ? OR phone LIKE ?",
			search, search, "%"+*filters.SearchQuery+"%",
		)
	}

	return query
}

func (r *LeadRepository) applySorting(query *gorm.DB, sortBy LeadSortOption) *gorm.DB {
	switch sortBy {
	case LeadSortByCreatedAsc:
		return query.Order("created_at ASC")
	case LeadSortByValueDesc:
		return query.Order("deal_value DESC")
	case LeadSortByValueAsc:
		return query.Order("deal_value ASC")
	case LeadSortByUpdatedDesc:
		return query.Order("updated_at DESC")
	default:
		return query.Order("created_at DESC")
	}
}

// ReserveConversion atomically claims a lead for conversion by setting its
// project back-link, but only when no conversion has happened yet. Returns
// false when another writer already converted the lead.
func (r *LeadRepository) ReserveConversion(ctx context.Context, tx *gorm.DB, leadID, projectID uuid.UUID) (bool, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.WithContext(ctx).Model(&domain.Lead{}).
		Where("id = ? AND linked_project_id IS NULL", leadID).
		Update("linked_project_id", projectID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountConverted returns the number of leads holding a project back-link,
// which is the number of projects materialized from the pipeline
func (r *LeadRepository) CountConverted(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Where("linked_project_id IS NOT NULL").
		Count(&count).Error
	return count, err
}

// CountByStatus returns lead counts grouped by status
func (r *LeadRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

// LedgerTotals holds pipeline-wide ledger sums
type LedgerTotals struct {
	TotalDealValue   float64
	TotalCollected   float64
	TotalOutstanding float64
}

// SumLedgerTotals aggregates deal value, collected and outstanding amounts
// across all leads
func (r *LeadRepository) SumLedgerTotals(ctx context.Context) (*LedgerTotals, error) {
	var totals LedgerTotals
	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select(
			"COALESCE(SUM(deal_value), 0) as total_deal_value, " +
				"COALESCE(SUM(paid_amount), 0) as total_collected, " +
				"COALESCE(SUM(remaining_amount), 0) as total_outstanding",
		).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// SumDealValueWhere sums deal_value over leads matching the given condition
func (r *LeadRepository) SumDealValueWhere(ctx context.Context, cond string, args ...interface{}) (float64, error) {
	var sum float64
	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select("COALESCE(SUM(deal_value), 0)").
		Where(cond, args...).
		Scan(&sum).Error
	return sum, err
}

// MonthlyConversion holds converted lead counts and value per month
type MonthlyConversion struct {
	Month     string
	Converted int64
	Value     float64
}

// MonthlyConversions returns conversion counts and value grouped by month of
// conversion, most recent first, limited to the given number of months
func (r *LeadRepository) MonthlyConversions(ctx context.Context, months int) ([]MonthlyConversion, error) {
	// sqlite (used in tests) has no to_char
	monthExpr := "to_char(conversion_date, 'YYYY-MM')"
	if r.db.Dialector.Name() == "sqlite" {
		monthExpr = "strftime('%Y-%m', conversion_date)"
	}

	var rows []MonthlyConversion
	err := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select(monthExpr + " as month, COUNT(*) as converted, COALESCE(SUM(deal_value), 0) as value").
		Where("conversion_date IS NOT NULL").
		Group("month").
		Order("month DESC").
		Limit(months).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
