package domain

import (
	"github.com/google/uuid"
)

// DTOs for API responses

type LeadDTO struct {
	ID                uuid.UUID    `json:"id"`
	ContactPerson     string       `json:"contactPerson"`
	Phone             string       `json:"phone"`
	CompanyName       string       `json:"companyName"`
	Email             string       `json:"email,omitempty"`
	Status            LeadStatus   `json:"status"`
	Priority          LeadPriority `json:"priority"`
	Source            string       `json:"source,omitempty"`
	DealValue         float64      `json:"dealValue"`
	AssignedTo        string       `json:"assignedTo"`
	CreatedBy         string       `json:"createdBy"`
	UpdatedBy         string       `json:"updatedBy,omitempty"`
	Notes             string       `json:"notes,omitempty"`
	TotalAmount       float64      `json:"totalAmount"`
	PaidAmount        float64      `json:"paidAmount"`
	RemainingAmount   float64      `json:"remainingAmount"`
	PaymentPercentage float64      `json:"paymentPercentage"`
	LinkedCustomerID  *uuid.UUID   `json:"linkedCustomerId,omitempty"`
	LinkedProjectID   *uuid.UUID   `json:"linkedProjectId,omitempty"`
	ConversionDate    *string      `json:"conversionDate,omitempty"` // ISO 8601
	CreatedAt         string       `json:"createdAt"`                // ISO 8601
	UpdatedAt         string       `json:"updatedAt"`                // ISO 8601
}

// LeadWithLedgerDTO includes the lead with its milestones and payments
type LeadWithLedgerDTO struct {
	LeadDTO
	Milestones []PaymentMilestoneDTO `json:"milestones,omitempty"`
	Payments   []PaymentRecordDTO    `json:"payments,omitempty"`
}

type PaymentMilestoneDTO struct {
	ID          uuid.UUID       `json:"id"`
	LeadID      uuid.UUID       `json:"leadId"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	DueDate     string          `json:"dueDate"` // ISO 8601 date
	Status      MilestoneStatus `json:"status"`
	PaidDate    *string         `json:"paidDate,omitempty"` // ISO 8601 date
	CreatedBy   string          `json:"createdBy,omitempty"`
	CreatedAt   string          `json:"createdAt"`
}

type PaymentRecordDTO struct {
	ID            uuid.UUID `json:"id"`
	LeadID        uuid.UUID `json:"leadId"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"paymentMethod"`
	PaymentDate   string    `json:"paymentDate"` // ISO 8601 date
	TransactionID string    `json:"transactionId,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	RecordedBy    string    `json:"recordedBy,omitempty"`
	CreatedAt     string    `json:"createdAt"`
}

// PaymentSummaryDTO holds the reconciled ledger totals for a single lead.
// Status is included so a caller can observe the automatic close to
// closed_won that a full settlement triggers.
type PaymentSummaryDTO struct {
	LeadID            uuid.UUID             `json:"leadId"`
	Status            LeadStatus            `json:"status"`
	TotalAmount       float64               `json:"totalAmount"`
	PaidAmount        float64               `json:"paidAmount"`
	RemainingAmount   float64               `json:"remainingAmount"`
	PaymentPercentage float64               `json:"paymentPercentage"`
	Milestones        []PaymentMilestoneDTO `json:"milestones"`
	Payments          []PaymentRecordDTO    `json:"payments"`
}

type CustomerDTO struct {
	ID            uuid.UUID      `json:"id"`
	CompanyName   string         `json:"companyName"`
	ContactPerson string         `json:"contactPerson"`
	Phone         string         `json:"phone"`
	Email         string         `json:"email,omitempty"`
	Status        CustomerStatus `json:"status"`
	CustomerValue float64        `json:"customerValue"`
	AssignedTo    string         `json:"assignedTo,omitempty"`
	CreatedBy     string         `json:"createdBy,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	CreatedAt     string         `json:"createdAt"`
	UpdatedAt     string         `json:"updatedAt"`
}

type ProjectDTO struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Client       string        `json:"client"`
	Status       ProjectStatus `json:"status"`
	Budget       float64       `json:"budget"`
	StartDate    string        `json:"startDate"`         // ISO 8601 date
	EndDate      *string       `json:"endDate,omitempty"` // ISO 8601 date
	ManagerID    *string       `json:"managerId,omitempty"`
	TeamMembers  []string      `json:"teamMembers,omitempty"`
	Technologies []string      `json:"technologies,omitempty"`
	CustomerID   uuid.UUID     `json:"customerId"`
	LeadID       uuid.UUID     `json:"leadId"`
	CreatedBy    string        `json:"createdBy,omitempty"`
	CreatedAt    string        `json:"createdAt"`
	UpdatedAt    string        `json:"updatedAt"`
}

// ConversionResultDTO is returned when a lead transition triggers conversion
type ConversionResultDTO struct {
	Lead     LeadDTO     `json:"lead"`
	Customer CustomerDTO `json:"customer"`
	Project  ProjectDTO  `json:"project"`
}

type LeadActivityDTO struct {
	ID           uuid.UUID    `json:"id"`
	LeadID       uuid.UUID    `json:"leadId"`
	ActivityType ActivityType `json:"activityType"`
	Subject      string       `json:"subject"`
	Description  string       `json:"description,omitempty"`
	ActorName    string       `json:"actorName,omitempty"`
	OccurredAt   string       `json:"occurredAt"` // ISO 8601
}

// ConversionStatsDTO holds pipeline-wide conversion aggregates
type ConversionStatsDTO struct {
	TotalLeads      int64             `json:"totalLeads"`
	ConvertedLeads  int64             `json:"convertedLeads"`
	ProjectsCreated int64             `json:"projectsCreated"`
	LostLeads       int64             `json:"lostLeads"`
	OpenLeads       int64             `json:"openLeads"`
	ConversionRate  float64           `json:"conversionRate"`
	ConvertedValue  float64           `json:"convertedValue"`
	PipelineValue   float64           `json:"pipelineValue"`
	ByStatus        map[string]int64  `json:"byStatus"`
	ByMonth         []MonthlyStatsDTO `json:"byMonth,omitempty"`
}

type MonthlyStatsDTO struct {
	Month     string  `json:"month"` // YYYY-MM
	Converted int64   `json:"converted"`
	Value     float64 `json:"value"`
}

// SalesStatsDTO holds the aggregate figures for the sales dashboard
type SalesStatsDTO struct {
	TotalLeads        int64   `json:"totalLeads"`
	ActiveLeads       int64   `json:"activeLeads"`
	WonLeads          int64   `json:"wonLeads"`
	LostLeads         int64   `json:"lostLeads"`
	TotalDealValue    float64 `json:"totalDealValue"`
	TotalCollected    float64 `json:"totalCollected"`
	TotalOutstanding  float64 `json:"totalOutstanding"`
	OverdueMilestones int64   `json:"overdueMilestones"`
}

// Pagination response wrapper
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// API Response wrapper
type APIResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
}

// Request DTOs

type CreateLeadRequest struct {
	ContactPerson string       `json:"contactPerson" validate:"required,max=200"`
	Phone         string       `json:"phone" validate:"required,max=50"`
	CompanyName   string       `json:"companyName,omitempty" validate:"max=200"`
	Email         string       `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Status        LeadStatus   `json:"status,omitempty"`
	Priority      LeadPriority `json:"priority,omitempty"`
	Source        string       `json:"source,omitempty" validate:"max=100"`
	DealValue     float64      `json:"dealValue,omitempty" validate:"gte=0"`
	AssignedTo    string       `json:"assignedTo,omitempty" validate:"max=100"`
	Notes         string       `json:"notes,omitempty"`
}

// UpdateLeadRequest carries a partial update; nil fields are left untouched
type UpdateLeadRequest struct {
	ContactPerson *string       `json:"contactPerson,omitempty" validate:"omitempty,max=200"`
	Phone         *string       `json:"phone,omitempty" validate:"omitempty,max=50"`
	CompanyName   *string       `json:"companyName,omitempty" validate:"omitempty,max=200"`
	Email         *string       `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Status        *LeadStatus   `json:"status,omitempty"`
	Priority      *LeadPriority `json:"priority,omitempty"`
	Source        *string       `json:"source,omitempty" validate:"omitempty,max=100"`
	DealValue     *float64      `json:"dealValue,omitempty" validate:"omitempty,gte=0"`
	AssignedTo    *string       `json:"assignedTo,omitempty" validate:"omitempty,max=100"`
	Notes         *string       `json:"notes,omitempty"`
}

type AddMilestoneRequest struct {
	Description string  `json:"description" validate:"required,max=500"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	DueDate     string  `json:"dueDate" validate:"required"` // ISO 8601 date
}

type RecordPaymentRequest struct {
	Amount        float64    `json:"amount" validate:"required,gt=0"`
	PaymentMethod string     `json:"paymentMethod" validate:"required,max=100"`
	PaymentDate   string     `json:"paymentDate" validate:"required"` // ISO 8601 date
	MilestoneID   *uuid.UUID `json:"milestoneId,omitempty"`
	TransactionID string     `json:"transactionId,omitempty" validate:"max=200"`
	Notes         string     `json:"notes,omitempty"`
}

type AddLeadActivityRequest struct {
	ActivityType ActivityType `json:"activityType" validate:"required"`
	Subject      string       `json:"subject" validate:"required,max=200"`
	Description  string       `json:"description,omitempty"`
}
