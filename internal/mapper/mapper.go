package mapper

import (
	"math"

	"github.com/nexhr/sales-api/internal/domain"
)

const timestampFormat = "2006-01-02T15:04:05Z"
const dateFormat = "2006-01-02"

// PaymentPercentage computes how much of the ledger total has been paid,
// rounded to two decimals. A zero total is treated as 1 to avoid division
// by zero.
func PaymentPercentage(paid, total float64) float64 {
	if total < 1 {
		total = 1
	}
	return math.Round(paid/total*100*100) / 100
}

// ToLeadDTO converts Lead to LeadDTO
func ToLeadDTO(lead *domain.Lead) domain.LeadDTO {
	dto := domain.LeadDTO{
		ID:                lead.ID,
		ContactPerson:     lead.ContactPerson,
		Phone:             lead.Phone,
		CompanyName:       lead.CompanyName,
		Email:             lead.Email,
		Status:            lead.Status,
		Priority:          lead.Priority,
		Source:            lead.Source,
		DealValue:         lead.DealValue,
		AssignedTo:        lead.AssignedTo,
		CreatedBy:         lead.CreatedBy,
		UpdatedBy:         lead.UpdatedBy,
		Notes:             lead.Notes,
		TotalAmount:       lead.TotalAmount,
		PaidAmount:        lead.PaidAmount,
		RemainingAmount:   lead.RemainingAmount,
		PaymentPercentage: PaymentPercentage(lead.PaidAmount, lead.TotalAmount),
		LinkedCustomerID:  lead.LinkedCustomerID,
		LinkedProjectID:   lead.LinkedProjectID,
		CreatedAt:         lead.CreatedAt.Format(timestampFormat),
		UpdatedAt:         lead.UpdatedAt.Format(timestampFormat),
	}

	if lead.ConversionDate != nil {
		conv := lead.ConversionDate.Format(timestampFormat)
		dto.ConversionDate = &conv
	}

	return dto
}

// ToLeadWithLedgerDTO converts Lead with preloaded milestones and payments
func ToLeadWithLedgerDTO(lead *domain.Lead) domain.LeadWithLedgerDTO {
	dto := domain.LeadWithLedgerDTO{LeadDTO: ToLeadDTO(lead)}

	for i := range lead.Milestones {
		dto.Milestones = append(dto.Milestones, ToMilestoneDTO(&lead.Milestones[i]))
	}
	for i := range lead.Payments {
		dto.Payments = append(dto.Payments, ToPaymentDTO(&lead.Payments[i]))
	}

	return dto
}

// ToMilestoneDTO converts PaymentMilestone to PaymentMilestoneDTO
func ToMilestoneDTO(milestone *domain.PaymentMilestone) domain.PaymentMilestoneDTO {
	dto := domain.PaymentMilestoneDTO{
		ID:          milestone.ID,
		LeadID:      milestone.LeadID,
		Description: milestone.Description,
		Amount:      milestone.Amount,
		DueDate:     milestone.DueDate.Format(dateFormat),
		Status:      milestone.Status,
		CreatedBy:   milestone.CreatedBy,
		CreatedAt:   milestone.CreatedAt.Format(timestampFormat),
	}

	if milestone.PaidDate != nil {
		paid := milestone.PaidDate.Format(dateFormat)
		dto.PaidDate = &paid
	}

	return dto
}

// ToPaymentDTO converts PaymentRecord to PaymentRecordDTO
func ToPaymentDTO(payment *domain.PaymentRecord) domain.PaymentRecordDTO {
	return domain.PaymentRecordDTO{
		ID:            payment.ID,
		LeadID:        payment.LeadID,
		Amount:        payment.Amount,
		PaymentMethod: payment.PaymentMethod,
		PaymentDate:   payment.PaymentDate.Format(dateFormat),
		TransactionID: payment.TransactionID,
		Notes:         payment.Notes,
		RecordedBy:    payment.RecordedBy,
		CreatedAt:     payment.CreatedAt.Format(timestampFormat),
	}
}

// ToPaymentSummaryDTO builds the reconciled ledger view of a lead
func ToPaymentSummaryDTO(lead *domain.Lead) domain.PaymentSummaryDTO {
	summary := domain.PaymentSummaryDTO{
		LeadID:            lead.ID,
		Status:            lead.Status,
		TotalAmount:       lead.TotalAmount,
		PaidAmount:        lead.PaidAmount,
		RemainingAmount:   lead.RemainingAmount,
		PaymentPercentage: PaymentPercentage(lead.PaidAmount, lead.TotalAmount),
		Milestones:        []domain.PaymentMilestoneDTO{},
		Payments:          []domain.PaymentRecordDTO{},
	}

	for i := range lead.Milestones {
		summary.Milestones = append(summary.Milestones, ToMilestoneDTO(&lead.Milestones[i]))
	}
	for i := range lead.Payments {
		summary.Payments = append(summary.Payments, ToPaymentDTO(&lead.Payments[i]))
	}

	return summary
}

// ToCustomerDTO converts Customer to CustomerDTO
func ToCustomerDTO(customer *domain.Customer) domain.CustomerDTO {
	return domain.CustomerDTO{
		ID:            customer.ID,
		CompanyName:   customer.CompanyName,
		ContactPerson: customer.ContactPerson,
		Phone:         customer.Phone,
		Email:         customer.Email,
		Status:        customer.Status,
		CustomerValue: customer.CustomerValue,
		AssignedTo:    customer.AssignedTo,
		CreatedBy:     customer.CreatedBy,
		Notes:         customer.Notes,
		CreatedAt:     customer.CreatedAt.Format(timestampFormat),
		UpdatedAt:     customer.UpdatedAt.Format(timestampFormat),
	}
}

// ToProjectDTO converts Project to ProjectDTO
func ToProjectDTO(project *domain.Project) domain.ProjectDTO {
	dto := domain.ProjectDTO{
		ID:           project.ID,
		Name:         project.Name,
		Description:  project.Description,
		Client:       project.Client,
		Status:       project.Status,
		Budget:       project.Budget,
		StartDate:    project.StartDate.Format(dateFormat),
		ManagerID:    project.ManagerID,
		TeamMembers:  project.TeamMembers,
		Technologies: project.Technologies,
		CustomerID:   project.CustomerID,
		LeadID:       project.LeadID,
		CreatedBy:    project.CreatedBy,
		CreatedAt:    project.CreatedAt.Format(timestampFormat),
		UpdatedAt:    project.UpdatedAt.Format(timestampFormat),
	}

	if project.EndDate != nil {
		end := project.EndDate.Format(dateFormat)
		dto.EndDate = &end
	}

	return dto
}

// ToActivityDTO converts LeadActivity to LeadActivityDTO
func ToActivityDTO(activity *domain.LeadActivity) domain.LeadActivityDTO {
	return domain.LeadActivityDTO{
		ID:           activity.ID,
		LeadID:       activity.LeadID,
		ActivityType: activity.ActivityType,
		Subject:      activity.Subject,
		Description:  activity.Description,
		ActorName:    activity.ActorName,
		OccurredAt:   activity.OccurredAt.Format(timestampFormat),
	}
}
