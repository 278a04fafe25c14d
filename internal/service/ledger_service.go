package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nexhr/sales-api/internal/auth"
	"github.com/nexhr/sales-api/internal/domain"
	"github.com/nexhr/sales-api/internal/mapper"
	"github.com/nexhr/sales-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerService is the only writer of a lead's payment tracking fields.
// After every operation the lead satisfies: paid equals the sum of its
// payment records, and remaining equals total minus paid clamped at zero.
type LedgerService struct {
	leadRepo      *repository.LeadRepository
	milestoneRepo *repository.MilestoneRepository
	paymentRepo   *repository.PaymentRepository
	activityRepo  *repository.ActivityRepository
	conversion    *ConversionService
	locks         *LeadLocker
	logger        *zap.Logger
	db            *gorm.DB
}

func NewLedgerService(
	leadRepo *repository.LeadRepository,
	milestoneRepo *repository.MilestoneRepository,
	paymentRepo *repository.PaymentRepository,
	activityRepo *repository.ActivityRepository,
	conversion *ConversionService,
	locks *LeadLocker,
	logger *zap.Logger,
	db *gorm.DB,
) *LedgerService {
	return &LedgerService{
		leadRepo:      leadRepo,
		milestoneRepo: milestoneRepo,
		paymentRepo:   paymentRepo,
		activityRepo:  activityRepo,
		conversion:    conversion,
		locks:         locks,
		logger:        logger,
		db:            db,
	}
}

// AddMilestone appends a pending milestone to a lead's payment plan
func (s *LedgerService) AddMilestone(ctx context.Context, leadID uuid.UUID, req *domain.AddMilestoneRequest, actor *auth.UserContext) (*domain.PaymentMilestoneDTO, error) {
	unlock := s.locks.Lock(leadID)
	defer unlock()

	lead, err := s.leadRepo.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	if !actor.CanManageLead(lead) {
		return nil, ErrPermissionDenied
	}

	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: milestone amount must be positive", ErrInvalidInput)
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: due date must be YYYY-MM-DD", ErrInvalidInput)
	}

	milestone := &domain.PaymentMilestone{
		LeadID:      lead.ID,
		Description: req.Description,
		Amount:      req.Amount,
		DueDate:     dueDate,
		Status:      domain.MilestoneStatusPending,
		CreatedBy:   actor.Username,
	}
	if err := s.milestoneRepo.Create(ctx, milestone); err != nil {
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}

	s.logger.Info("milestone added",
		zap.String("lead_id", lead.ID.String()),
		zap.String("milestone_id", milestone.ID.String()),
		zap.Float64("amount", milestone.Amount),
	)

	dto := mapper.ToMilestoneDTO(milestone)
	return &dto, nil
}

// RecordPayment appends a payment to the lead's ledger and reconciles the
// totals. An unknown milestone id fails the whole operation before any
// write. Reaching a zero remaining amount closes the lead as won, which
// triggers the conversion under the same guard as a status update.
func (s *LedgerService) RecordPayment(ctx context.Context, leadID uuid.UUID, req *domain.RecordPaymentRequest, actor *auth.UserContext) (*domain.PaymentSummaryDTO, error) {
	unlock := s.locks.Lock(leadID)
	defer unlock()

	lead, err := s.leadRepo.GetByIDWithLedger(ctx, leadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	if !actor.CanManageLead(lead) {
		return nil, ErrPermissionDenied
	}

	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}

	if req.PaymentDate == "" {
		return nil, fmt.Errorf("%w: payment date is required", ErrInvalidInput)
	}
	paymentDate, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		return nil, fmt.Errorf("%w: payment date must be YYYY-MM-DD", ErrInvalidInput)
	}

	// Resolve the milestone before writing anything
	var milestone *domain.PaymentMilestone
	if req.MilestoneID != nil {
		for i := range lead.Milestones {
			if lead.Milestones[i].ID == *req.MilestoneID {
				milestone = &lead.Milestones[i]
				break
			}
		}
		if milestone == nil {
			return nil, ErrMilestoneNotFound
		}
	}

	payment := &domain.PaymentRecord{
		LeadID:        lead.ID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		PaymentDate:   paymentDate,
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
		RecordedBy:    actor.Username,
	}

	oldStatus := lead.Status

	converted := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		if milestone != nil {
			milestone.Status = domain.MilestoneStatusPaid
			milestone.PaidDate = &paymentDate
			if err := tx.Save(milestone).Error; err != nil {
				return fmt.Errorf("failed to mark milestone paid: %w", err)
			}
		}

		// Paid is derived from the payment log inside the transaction, not
		// incremented from the earlier read, so a writer in another process
		// cannot be lost between load and commit
		var paidTotal float64
		if err := tx.WithContext(ctx).Model(&domain.PaymentRecord{}).
			Where("lead_id = ?", lead.ID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&paidTotal).Error; err != nil {
			return fmt.Errorf("failed to sum payments: %w", err)
		}
		lead.PaidAmount = paidTotal
		lead.RemainingAmount = lead.TotalAmount - lead.PaidAmount
		if lead.RemainingAmount < 0 {
			// Overpayment is recorded but remaining never goes negative
			lead.RemainingAmount = 0
		}

		if lead.RemainingAmount == 0 && lead.Status != domain.LeadStatusClosedWon {
			lead.Status = domain.LeadStatusClosedWon
			if lead.LinkedProjectID == nil {
				if _, _, err := s.conversion.convertInTx(ctx, tx, lead, nil, actor); err != nil {
					if !errors.Is(err, ErrAlreadyConverted) {
						return err
					}
				} else {
					converted = true
				}
			}
		}

		lead.UpdatedBy = actor.Username
		return tx.Omit(leadSaveOmissions(converted)...).Save(lead).Error
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, lead.ID, "Payment recorded",
		fmt.Sprintf("Payment of %.2f via %s, remaining %.2f", req.Amount, req.PaymentMethod, lead.RemainingAmount),
		actor.Username)

	if oldStatus != lead.Status {
		s.recordActivity(ctx, lead.ID, "Status changed",
			fmt.Sprintf("Status changed from %s to %s after full payment", oldStatus, lead.Status),
			actor.Username)
	}

	s.logger.Info("payment recorded",
		zap.String("lead_id", lead.ID.String()),
		zap.Float64("amount", req.Amount),
		zap.Float64("paid_total", lead.PaidAmount),
		zap.Float64("remaining", lead.RemainingAmount),
	)

	// Reload with ledger so the summary reflects all milestones/payments
	lead, err = s.leadRepo.GetByIDWithLedger(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload lead: %w", err)
	}

	summary := mapper.ToPaymentSummaryDTO(lead)
	return &summary, nil
}

// GetSummary returns the reconciled ledger for a lead. Authorization mirrors
// lead read access.
func (s *LedgerService) GetSummary(ctx context.Context, leadID uuid.UUID, actor *auth.UserContext) (*domain.PaymentSummaryDTO, error) {
	lead, err := s.leadRepo.GetByIDWithLedger(ctx, leadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	if !actor.CanManageLead(lead) {
		return nil, ErrPermissionDenied
	}

	summary := mapper.ToPaymentSummaryDTO(lead)
	return &summary, nil
}

// MarkOverdueMilestones flips pending milestones past their due date to
// overdue. Called from the scheduler; returns the number of rows updated.
func (s *LedgerService) MarkOverdueMilestones(ctx context.Context) (int64, error) {
	today := nowUTC().Truncate(24 * time.Hour)
	updated, err := s.milestoneRepo.MarkOverdue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue milestones: %w", err)
	}
	if updated > 0 {
		s.logger.Info("milestones marked overdue", zap.Int64("count", updated))
	}
	return updated, nil
}

func (s *LedgerService) recordActivity(ctx context.Context, leadID uuid.UUID, subject, description, actor string) {
	activity := &domain.LeadActivity{
		LeadID:       leadID,
		ActivityType: domain.ActivityTypeSystem,
		Subject:      subject,
		Description:  description,
		ActorName:    actor,
		OccurredAt:   nowUTC(),
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Warn("failed to record lead activity",
			zap.String("lead_id", leadID.String()),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
