package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Base model with common fields. IDs are generated application-side so the
// models work against both the postgres schema and the sqlite test databases.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns a UUID when none was set by the caller
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// LeadStatus represents the position of a lead in the sales pipeline
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusContacted   LeadStatus = "contacted"
	LeadStatusQualified   LeadStatus = "qualified"
	LeadStatusProposal    LeadStatus = "proposal"
	LeadStatusNegotiation LeadStatus = "negotiation"
	LeadStatusClosedWon   LeadStatus = "closed_won"
	LeadStatusClosedLost  LeadStatus = "closed_lost"
)

// IsValid checks if the LeadStatus is a valid enum value
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusProposal,
		LeadStatusNegotiation, LeadStatusClosedWon, LeadStatusClosedLost:
		return true
	}
	return false
}

// IsClosed reports whether the status is terminal (won or lost)
func (s LeadStatus) IsClosed() bool {
	return s == LeadStatusClosedWon || s == LeadStatusClosedLost
}

// LeadPriority represents the urgency of following up a lead
type LeadPriority string

const (
	LeadPriorityLow    LeadPriority = "low"
	LeadPriorityMedium LeadPriority = "medium"
	LeadPriorityHigh   LeadPriority = "high"
	LeadPriorityUrgent LeadPriority = "urgent"
)

// Lead represents a prospective sale tracked through the status pipeline.
// The ledger fields (TotalAmount, PaidAmount, RemainingAmount) are owned by
// the ledger service and must not be written by any other component.
type Lead struct {
	BaseModel
	ContactPerson string       `gorm:"type:varchar(200);not null;column:contact_person"`
	Phone         string       `gorm:"type:varchar(50);not null;index"`
	CompanyName   string       `gorm:"type:varchar(200);column:company_name"`
	Email         string       `gorm:"type:varchar(255)"`
	Status        LeadStatus   `gorm:"type:varchar(50);not null;default:'new';index"`
	Priority      LeadPriority `gorm:"type:varchar(20);not null;default:'medium'"`
	Source        string       `gorm:"type:varchar(100)"`
	DealValue     float64      `gorm:"type:decimal(15,2);not null;default:0;column:deal_value"`
	AssignedTo    string       `gorm:"type:varchar(100);not null;index;column:assigned_to"`
	CreatedBy     string       `gorm:"type:varchar(100);not null;column:created_by"`
	UpdatedBy     string       `gorm:"type:varchar(100);column:updated_by"`
	Notes         string       `gorm:"type:text"`

	// Ledger state, reconciled on every payment write
	TotalAmount     float64 `gorm:"type:decimal(15,2);not null;default:0;column:total_amount"`
	PaidAmount      float64 `gorm:"type:decimal(15,2);not null;default:0;column:paid_amount"`
	RemainingAmount float64 `gorm:"type:decimal(15,2);not null;default:0;column:remaining_amount"`

	// Conversion back-links, set exactly once; a non-null LinkedProjectID is
	// the idempotency guard against re-conversion
	LinkedCustomerID *uuid.UUID `gorm:"type:uuid;column:linked_customer_id"`
	LinkedProjectID  *uuid.UUID `gorm:"type:uuid;column:linked_project_id"`
	ConversionDate   *time.Time `gorm:"column:conversion_date"`

	Milestones []PaymentMilestone `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE"`
	Payments   []PaymentRecord    `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE"`
}

// MilestoneStatus represents the payment state of a milestone
type MilestoneStatus string

const (
	MilestoneStatusPending MilestoneStatus = "pending"
	MilestoneStatusPaid    MilestoneStatus = "paid"
	MilestoneStatusOverdue MilestoneStatus = "overdue"
)

// PaymentMilestone represents a planned partial payment on a lead
type PaymentMilestone struct {
	BaseModel
	LeadID      uuid.UUID       `gorm:"type:uuid;not null;index;column:lead_id"`
	Description string          `gorm:"type:varchar(500);not null"`
	Amount      float64         `gorm:"type:decimal(15,2);not null"`
	DueDate     time.Time       `gorm:"type:date;not null;column:due_date"`
	Status      MilestoneStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	PaidDate    *time.Time      `gorm:"type:date;column:paid_date"`
	CreatedBy   string          `gorm:"type:varchar(100);column:created_by"`
}

// PaymentRecord represents a received payment appended to a lead's ledger
type PaymentRecord struct {
	BaseModel
	LeadID        uuid.UUID `gorm:"type:uuid;not null;index;column:lead_id"`
	Amount        float64   `gorm:"type:decimal(15,2);not null"`
	PaymentMethod string    `gorm:"type:varchar(100);not null;column:payment_method"`
	PaymentDate   time.Time `gorm:"type:date;not null;column:payment_date"`
	TransactionID string    `gorm:"type:varchar(200);column:transaction_id"`
	Notes         string    `gorm:"type:text"`
	RecordedBy    string    `gorm:"type:varchar(100);column:recorded_by"`
}

// CustomerStatus represents the status of a customer
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
)

// Customer represents an organization billed through the CRM. Phone is the
// natural dedup key: converting a second lead with the same phone adds to
// CustomerValue instead of creating a duplicate.
type Customer struct {
	BaseModel
	CompanyName   string         `gorm:"type:varchar(200);not null;column:company_name"`
	ContactPerson string         `gorm:"type:varchar(200);not null;column:contact_person"`
	Phone         string         `gorm:"type:varchar(50);not null;uniqueIndex"`
	Email         string         `gorm:"type:varchar(255)"`
	Status        CustomerStatus `gorm:"type:varchar(50);not null;default:'active';index"`
	CustomerValue float64        `gorm:"type:decimal(15,2);not null;default:0;column:customer_value"`
	AssignedTo    string         `gorm:"type:varchar(100);column:assigned_to"`
	CreatedBy     string         `gorm:"type:varchar(100);column:created_by"`
	Notes         string         `gorm:"type:text"`
}

// ProjectStatus represents the status of a project
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// Project represents delivery work materialized from a won lead
type Project struct {
	BaseModel
	Name         string         `gorm:"type:varchar(200);not null;index"`
	Description  string         `gorm:"type:text"`
	Client       string         `gorm:"type:varchar(200);not null"`
	Status       ProjectStatus  `gorm:"type:varchar(50);not null;default:'active';index"`
	Budget       float64        `gorm:"type:decimal(15,2);not null;default:0"`
	StartDate    time.Time      `gorm:"type:date;not null;column:start_date"`
	EndDate      *time.Time     `gorm:"type:date;column:end_date"`
	ManagerID    *string        `gorm:"type:varchar(100);column:manager_id"`
	TeamMembers  pq.StringArray `gorm:"type:text[];column:team_members"`
	Technologies pq.StringArray `gorm:"type:text[]"`
	CustomerID   uuid.UUID      `gorm:"type:uuid;not null;index;column:customer_id"`
	LeadID       uuid.UUID      `gorm:"type:uuid;not null;index;column:lead_id"`
	CreatedBy    string         `gorm:"type:varchar(100);column:created_by"`
	Notes        string         `gorm:"type:text"`
}

// UserRole represents the coarse role assigned to a user
type UserRole string

const (
	RoleAdmin          UserRole = "admin"
	RoleDirector       UserRole = "director"
	RoleManager        UserRole = "manager"
	RoleSalesManager   UserRole = "sales_manager"
	RoleSalesExecutive UserRole = "sales_executive"
	RoleEmployee       UserRole = "employee"
)

// User represents a user account resolved by the auth middleware.
// Token issuance lives in a separate identity service; this table only
// backs actor resolution and role lookups.
type User struct {
	Username    string    `gorm:"type:varchar(100);primaryKey"`
	DisplayName string    `gorm:"type:varchar(200);not null;column:display_name"`
	Email       string    `gorm:"type:varchar(255);not null;unique"`
	Role        UserRole  `gorm:"type:varchar(50);not null;default:'employee'"`
	Position    string    `gorm:"type:varchar(100)"`
	Department  string    `gorm:"type:varchar(100)"`
	IsActive    bool      `gorm:"not null;default:true;column:is_active"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// ActivityType represents the type of lead activity
type ActivityType string

const (
	ActivityTypeCall     ActivityType = "call"
	ActivityTypeEmail    ActivityType = "email"
	ActivityTypeMeeting  ActivityType = "meeting"
	ActivityTypeProposal ActivityType = "proposal"
	ActivityTypeFollowUp ActivityType = "follow_up"
	ActivityTypeNote     ActivityType = "note"
	ActivityTypeSystem   ActivityType = "system"
)

// IsValid checks if the ActivityType is a valid enum value
func (at ActivityType) IsValid() bool {
	switch at {
	case ActivityTypeCall, ActivityTypeEmail, ActivityTypeMeeting, ActivityTypeProposal,
		ActivityTypeFollowUp, ActivityTypeNote, ActivityTypeSystem:
		return true
	}
	return false
}

// LeadActivity represents an event log entry on a lead. System entries are
// appended by the services on status changes, payments and conversions.
type LeadActivity struct {
	BaseModel
	LeadID       uuid.UUID    `gorm:"type:uuid;not null;index;column:lead_id"`
	ActivityType ActivityType `gorm:"type:varchar(50);not null;default:'note';column:activity_type"`
	Subject      string       `gorm:"type:varchar(200);not null"`
	Description  string       `gorm:"type:text"`
	ActorName    string       `gorm:"type:varchar(100);column:actor_name"`
	OccurredAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP;index;column:occurred_at"`
}
