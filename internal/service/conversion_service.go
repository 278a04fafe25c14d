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

// Default project schedule applied when conversion has no explicit dates:
// kickoff a week out, delivery roughly a quarter out.
const (
	defaultProjectStartOffset = 7 * 24 * time.Hour
	defaultProjectEndOffset   = 90 * 24 * time.Hour
)

// ConvertOverrides carries optional fields for a manual conversion
type ConvertOverrides struct {
	ProjectName string  `json:"projectName,omitempty" validate:"omitempty,max=200"`
	ManagerID   *string `json:"managerId,omitempty" validate:"omitempty,max=100"`
}

// ConversionService materializes a Customer and a Project from a won lead,
// exactly once per lead. The linked project id on the lead is both the
// back-reference and the idempotency guard.
type ConversionService struct {
	leadRepo     *repository.LeadRepository
	customerRepo *repository.CustomerRepository
	projectRepo  *repository.ProjectRepository
	activityRepo *repository.ActivityRepository
	locks        *LeadLocker
	logger       *zap.Logger
	db           *gorm.DB
}

func NewConversionService(
	leadRepo *repository.LeadRepository,
	customerRepo *repository.CustomerRepository,
	projectRepo *repository.ProjectRepository,
	activityRepo *repository.ActivityRepository,
	locks *LeadLocker,
	logger *zap.Logger,
	db *gorm.DB,
) *ConversionService {
	return &ConversionService{
		leadRepo:     leadRepo,
		customerRepo: customerRepo,
		projectRepo:  projectRepo,
		activityRepo: activityRepo,
		locks:        locks,
		logger:       logger,
		db:           db,
	}
}

// Convert handles a manual conversion request. When the lead was already
// converted the existing customer and project are returned unchanged.
func (s *ConversionService) Convert(ctx context.Context, leadID uuid.UUID, overrides *ConvertOverrides, actor *auth.UserContext) (*domain.ConversionResultDTO, error) {
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

	if lead.LinkedProjectID != nil {
		return s.existingResult(ctx, lead)
	}

	var customer *domain.Customer
	var project *domain.Project

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		customer, project, txErr = s.convertInTx(ctx, tx, lead, overrides, actor)
		if txErr != nil {
			return txErr
		}

		// Manual conversion also closes the lead as won
		if lead.Status != domain.LeadStatusClosedWon {
			lead.Status = domain.LeadStatusClosedWon
		}
		lead.UpdatedBy = actor.Username

		return tx.Save(lead).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyConverted) {
			return s.existingResult(ctx, lead)
		}
		return nil, err
	}

	result := &domain.ConversionResultDTO{
		Lead:     mapper.ToLeadDTO(lead),
		Customer: mapper.ToCustomerDTO(customer),
		Project:  mapper.ToProjectDTO(project),
	}
	return result, nil
}

// convertInTx performs the conversion inside the caller's transaction. The
// caller must hold the lead's lock and must persist the lead afterwards.
//
// The conversion right is reserved first with an atomic conditional update
// on linked_project_id; if another writer already claimed it this returns
// ErrAlreadyConverted with no side effects. A failure in any later write
// rolls back the whole transaction including the reservation, so a retry
// starts clean instead of leaving a half-converted lead behind.
func (s *ConversionService) convertInTx(ctx context.Context, tx *gorm.DB, lead *domain.Lead, overrides *ConvertOverrides, actor *auth.UserContext) (*domain.Customer, *domain.Project, error) {
	projectID := uuid.New()

	reserved, err := s.leadRepo.ReserveConversion(ctx, tx, lead.ID, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reserve conversion: %w", err)
	}
	if !reserved {
		return nil, nil, ErrAlreadyConverted
	}

	now := time.Now().UTC()

	// Merge into an existing customer by phone instead of duplicating
	var customer domain.Customer
	err = tx.WithContext(ctx).Where("phone = ?", lead.Phone).First(&customer).Error
	switch {
	case err == nil:
		customer.CustomerValue += lead.DealValue
		if err := tx.Save(&customer).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to update customer value: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		customer = domain.Customer{
			CompanyName:   lead.CompanyName,
			ContactPerson: lead.ContactPerson,
			Phone:         lead.Phone,
			Email:         lead.Email,
			Status:        domain.CustomerStatusActive,
			CustomerValue: lead.DealValue,
			AssignedTo:    lead.AssignedTo,
			CreatedBy:     actor.Username,
		}
		if err := tx.Create(&customer).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to create customer: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("failed to look up customer by phone: %w", err)
	}

	projectName := ""
	if overrides != nil {
		projectName = overrides.ProjectName
	}
	if projectName == "" {
		projectName = fmt.Sprintf("%s - %s", lead.CompanyName, lead.ContactPerson)
	}

	var managerID *string
	if overrides != nil && overrides.ManagerID != nil {
		managerID = overrides.ManagerID
	}

	endDate := now.Add(defaultProjectEndOffset)
	project := domain.Project{
		BaseModel:   domain.BaseModel{ID: projectID},
		Name:        projectName,
		Description: fmt.Sprintf("Project created from won lead %s", lead.ID),
		Client:      lead.CompanyName,
		Status:      domain.ProjectStatusActive,
		Budget:      lead.DealValue,
		StartDate:   now.Add(defaultProjectStartOffset),
		EndDate:     &endDate,
		ManagerID:   managerID,
		CustomerID:  customer.ID,
		LeadID:      lead.ID,
		CreatedBy:   actor.Username,
	}
	if err := tx.Create(&project).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create project: %w", err)
	}

	// Back-link onto the in-memory lead; the caller persists it together
	// with whatever status change triggered the conversion
	lead.LinkedCustomerID = &customer.ID
	lead.LinkedProjectID = &projectID
	lead.ConversionDate = &now

	activity := domain.LeadActivity{
		LeadID:       lead.ID,
		ActivityType: domain.ActivityTypeSystem,
		Subject:      "Lead converted",
		Description:  fmt.Sprintf("Customer %s and project %s created", customer.ID, projectID),
		ActorName:    actor.Username,
		OccurredAt:   now,
	}
	if err := tx.Create(&activity).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to record conversion activity: %w", err)
	}

	s.logger.Info("lead converted",
		zap.String("lead_id", lead.ID.String()),
		zap.String("customer_id", customer.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.Float64("deal_value", lead.DealValue),
		zap.String("actor", actor.Username),
	)

	return &customer, &project, nil
}

// leadSaveOmissions returns the columns a lead save must skip. Only a save
// in the transaction that performed the conversion may write the back-link
// columns; every other save must leave them alone so a stale in-memory copy
// cannot null out a conversion committed by another process.
func leadSaveOmissions(converted bool) []string {
	omit := []string{"Milestones", "Payments"}
	if !converted {
		omit = append(omit, "linked_customer_id", "linked_project_id", "conversion_date")
	}
	return omit
}

// existingResult builds the conversion result for an already converted lead
func (s *ConversionService) existingResult(ctx context.Context, lead *domain.Lead) (*domain.ConversionResultDTO, error) {
	// Reload to pick up back-links written by the concurrent winner
	lead, err := s.leadRepo.GetByID(ctx, lead.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload lead: %w", err)
	}

	result := &domain.ConversionResultDTO{Lead: mapper.ToLeadDTO(lead)}

	if lead.LinkedCustomerID != nil {
		customer, err := s.customerRepo.GetByID(ctx, *lead.LinkedCustomerID)
		if err == nil {
			result.Customer = mapper.ToCustomerDTO(customer)
		}
	}
	if lead.LinkedProjectID != nil {
		project, err := s.projectRepo.GetByID(ctx, *lead.LinkedProjectID)
		if err == nil {
			result.Project = mapper.ToProjectDTO(project)
		}
	}

	return result, nil
}
