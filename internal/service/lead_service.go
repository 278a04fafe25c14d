package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/nexhr/sales-api/internal/auth"
	"github.com/nexhr/sales-api/internal/domain"
	"github.com/nexhr/sales-api/internal/mapper"
	"github.com/nexhr/sales-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LeadService struct {
	leadRepo      *repository.LeadRepository
	customerRepo  *repository.CustomerRepository
	activityRepo  *repository.ActivityRepository
	milestoneRepo *repository.MilestoneRepository
	conversion    *ConversionService
	locks         *LeadLocker
	logger        *zap.Logger
	db            *gorm.DB
}

func NewLeadService(
	leadRepo *repository.LeadRepository,
	customerRepo *repository.CustomerRepository,
	activityRepo *repository.ActivityRepository,
	milestoneRepo *repository.MilestoneRepository,
	conversion *ConversionService,
	locks *LeadLocker,
	logger *zap.Logger,
	db *gorm.DB,
) *LeadService {
	return &LeadService{
		leadRepo:      leadRepo,
		customerRepo:  customerRepo,
		activityRepo:  activityRepo,
		milestoneRepo: milestoneRepo,
		conversion:    conversion,
		locks:         locks,
		logger:        logger,
		db:            db,
	}
}

// Create registers a new lead in the pipeline. A customer already known by
// the lead's phone is pre-linked immediately; the conversion itself still
// only happens when the lead closes as won.
func (s *LeadService) Create(ctx context.Context, req *domain.CreateLeadRequest, actor *auth.UserContext) (*domain.LeadDTO, error) {
	contactPerson := strings.TrimSpace(req.ContactPerson)
	phone := strings.TrimSpace(req.Phone)
	if contactPerson == "" || phone == "" {
		return nil, fmt.Errorf("%w: contact person and phone are required", ErrInvalidInput)
	}

	status := req.Status
	if status == "" {
		status = domain.LeadStatusNew
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.LeadPriorityMedium
	}

	assignedTo := req.AssignedTo
	if assignedTo == "" {
		assignedTo = actor.Username
	}

	if req.DealValue < 0 {
		return nil, fmt.Errorf("%w: deal value must not be negative", ErrInvalidInput)
	}

	lead := &domain.Lead{
		ContactPerson: contactPerson,
		Phone:         phone,
		CompanyName:   strings.TrimSpace(req.CompanyName),
		Email:         req.Email,
		Status:        status,
		Priority:      priority,
		Source:        req.Source,
		DealValue:     req.DealValue,
		AssignedTo:    assignedTo,
		CreatedBy:     actor.Username,
		Notes:         req.Notes,

		TotalAmount:     req.DealValue,
		PaidAmount:      0,
		RemainingAmount: req.DealValue,
	}

	// Pre-link a known customer by phone; duplicate phone merges, never
	// conflicts
	customer, err := s.customerRepo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up customer by phone: %w", err)
	}
	if customer != nil {
		lead.LinkedCustomerID = &customer.ID
		if lead.CompanyName == "" {
			lead.CompanyName = customer.CompanyName
		}
	}
	if lead.CompanyName == "" {
		lead.CompanyName = fmt.Sprintf("%s's Company", contactPerson)
	}

	if err := s.leadRepo.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	s.recordActivity(ctx, lead.ID, domain.ActivityTypeSystem, "Lead created",
		fmt.Sprintf("Lead created with status %s", lead.Status), actor.Username)

	s.logger.Info("lead created",
		zap.String("lead_id", lead.ID.String()),
		zap.String("assigned_to", lead.AssignedTo),
		zap.Float64("deal_value", lead.DealValue),
	)

	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

// Update applies a partial update to a lead. A transition into closed_won
// from any other status triggers the conversion synchronously; the status
// write and the conversion side effects commit together.
func (s *LeadService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateLeadRequest, actor *auth.UserContext) (*domain.LeadDTO, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	if !actor.CanManageLead(lead) {
		return nil, ErrPermissionDenied
	}

	oldStatus := lead.Status

	if req.ContactPerson != nil {
		if strings.TrimSpace(*req.ContactPerson) == "" {
			return nil, fmt.Errorf("%w: contact person must not be empty", ErrInvalidInput)
		}
		lead.ContactPerson = strings.TrimSpace(*req.ContactPerson)
	}
	if req.Phone != nil {
		if strings.TrimSpace(*req.Phone) == "" {
			return nil, fmt.Errorf("%w: phone must not be empty", ErrInvalidInput)
		}
		lead.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.CompanyName != nil {
		lead.CompanyName = *req.CompanyName
	}
	if req.Email != nil {
		lead.Email = *req.Email
	}
	if req.Priority != nil {
		lead.Priority = *req.Priority
	}
	if req.Source != nil {
		lead.Source = *req.Source
	}
	if req.AssignedTo != nil {
		lead.AssignedTo = *req.AssignedTo
	}
	if req.Notes != nil {
		lead.Notes = *req.Notes
	}
	if req.DealValue != nil {
		if *req.DealValue < 0 {
			return nil, fmt.Errorf("%w: deal value must not be negative", ErrInvalidInput)
		}
		lead.DealValue = *req.DealValue
		lead.TotalAmount = *req.DealValue
		lead.RemainingAmount = lead.TotalAmount - lead.PaidAmount
		if lead.RemainingAmount < 0 {
			lead.RemainingAmount = 0
		}
	}

	becomingWon := false
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *req.Status)
		}
		becomingWon = *req.Status == domain.LeadStatusClosedWon && oldStatus != domain.LeadStatusClosedWon
		lead.Status = *req.Status
	}

	lead.UpdatedBy = actor.Username

	converted := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if becomingWon && lead.LinkedProjectID == nil {
			if _, _, err := s.conversion.convertInTx(ctx, tx, lead, nil, actor); err != nil {
				// A concurrent writer that already converted is fine;
				// everything else aborts the update
				if !errors.Is(err, ErrAlreadyConverted) {
					return err
				}
			} else {
				converted = true
			}
		}
		return tx.Omit(leadSaveOmissions(converted)...).Save(lead).Error
	})
	if err != nil {
		return nil, err
	}

	if req.Status != nil && oldStatus != lead.Status {
		s.recordActivity(ctx, lead.ID, domain.ActivityTypeSystem, "Status changed",
			fmt.Sprintf("Status changed from %s to %s", oldStatus, lead.Status), actor.Username)
	}

	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

// GetByID returns a lead with its full ledger. Non-managers can only read
// their own leads.
func (s *LeadService) GetByID(ctx context.Context, id uuid.UUID, actor *auth.UserContext) (*domain.LeadWithLedgerDTO, error) {
	lead, err := s.leadRepo.GetByIDWithLedger(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	if !actor.CanManageLead(lead) {
		return nil, ErrPermissionDenied
	}

	dto := mapper.ToLeadWithLedgerDTO(lead)
	return &dto, nil
}

// List returns leads matching the filters. Non-managers only see leads they
// own, regardless of the requested filters.
func (s *LeadService) List(ctx context.Context, page, pageSize int, filters *repository.LeadFilters, sortBy repository.LeadSortOption, actor *auth.UserContext) ([]domain.LeadDTO, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	if filters == nil {
		filters = &repository.LeadFilters{}
	}
	if !actor.IsSalesManager() {
		owned := actor.Username
		filters.OwnedBy = &owned
	}

	leads, total, err := s.leadRepo.List(ctx, page, pageSize, filters, sortBy)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}

	dtos := make([]domain.LeadDTO, 0, len(leads))
	for i := range leads {
		dtos = append(dtos, mapper.ToLeadDTO(&leads[i]))
	}
	return dtos, total, nil
}

// AddActivity appends a manual activity entry to a lead
func (s *LeadService) AddActivity(ctx context.Context, leadID uuid.UUID, req *domain.AddLeadActivityRequest, actor *auth.UserContext) (*domain.LeadActivityDTO, error) {
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

	if !req.ActivityType.IsValid() {
		return nil, fmt.Errorf("%w: unknown activity type %s", ErrInvalidInput, req.ActivityType)
	}

	activity := &domain.LeadActivity{
		LeadID:       lead.ID,
		ActivityType: req.ActivityType,
		Subject:      req.Subject,
		Description:  req.Description,
		ActorName:    actor.Username,
		OccurredAt:   nowUTC(),
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	dto := mapper.ToActivityDTO(activity)
	return &dto, nil
}

// ListActivities returns the newest activities on a lead
func (s *LeadService) ListActivities(ctx context.Context, leadID uuid.UUID, limit int, actor *auth.UserContext) ([]domain.LeadActivityDTO, error) {
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

	activities, err := s.activityRepo.ListByLead(ctx, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	dtos := make([]domain.LeadActivityDTO, 0, len(activities))
	for i := range activities {
		dtos = append(dtos, mapper.ToActivityDTO(&activities[i]))
	}
	return dtos, nil
}

// ConversionStats aggregates pipeline-wide conversion figures
func (s *LeadService) ConversionStats(ctx context.Context) (*domain.ConversionStatsDTO, error) {
	byStatus, err := s.leadRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by status: %w", err)
	}

	stats := &domain.ConversionStatsDTO{ByStatus: byStatus}
	for status, count := range byStatus {
		stats.TotalLeads += count
		switch domain.LeadStatus(status) {
		case domain.LeadStatusClosedWon:
			stats.ConvertedLeads += count
		case domain.LeadStatusClosedLost:
			stats.LostLeads += count
		default:
			stats.OpenLeads += count
		}
	}

	if stats.TotalLeads > 0 {
		rate := float64(stats.ConvertedLeads) / float64(stats.TotalLeads) * 100
		stats.ConversionRate = math.Round(rate*100) / 100
	}

	projects, err := s.leadRepo.CountConverted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count converted leads: %w", err)
	}
	stats.ProjectsCreated = projects

	converted, err := s.leadRepo.SumDealValueWhere(ctx, "status = ?", domain.LeadStatusClosedWon)
	if err != nil {
		return nil, fmt.Errorf("failed to sum converted value: %w", err)
	}
	stats.ConvertedValue = converted

	pipeline, err := s.leadRepo.SumDealValueWhere(ctx, "status NOT IN ?",
		[]domain.LeadStatus{domain.LeadStatusClosedWon, domain.LeadStatusClosedLost})
	if err != nil {
		return nil, fmt.Errorf("failed to sum pipeline value: %w", err)
	}
	stats.PipelineValue = pipeline

	monthly, err := s.leadRepo.MonthlyConversions(ctx, 12)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly conversions: %w", err)
	}
	for _, m := range monthly {
		stats.ByMonth = append(stats.ByMonth, domain.MonthlyStatsDTO{
			Month:     m.Month,
			Converted: m.Converted,
			Value:     m.Value,
		})
	}

	return stats, nil
}

// Stats aggregates the dashboard figures for the sales overview
func (s *LeadService) Stats(ctx context.Context) (*domain.SalesStatsDTO, error) {
	byStatus, err := s.leadRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by status: %w", err)
	}

	stats := &domain.SalesStatsDTO{}
	for status, count := range byStatus {
		stats.TotalLeads += count
		switch domain.LeadStatus(status) {
		case domain.LeadStatusClosedWon:
			stats.WonLeads += count
		case domain.LeadStatusClosedLost:
			stats.LostLeads += count
		default:
			stats.ActiveLeads += count
		}
	}

	totals, err := s.leadRepo.SumLedgerTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger totals: %w", err)
	}
	stats.TotalDealValue = totals.TotalDealValue
	stats.TotalCollected = totals.TotalCollected
	stats.TotalOutstanding = totals.TotalOutstanding

	overdue, err := s.milestoneRepo.CountOverdue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue milestones: %w", err)
	}
	stats.OverdueMilestones = overdue

	return stats, nil
}

func (s *LeadService) recordActivity(ctx context.Context, leadID uuid.UUID, activityType domain.ActivityType, subject, description, actor string) {
	activity := &domain.LeadActivity{
		LeadID:       leadID,
		ActivityType: activityType,
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
