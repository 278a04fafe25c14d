package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/nexhr/sales-api/internal/domain"
	"github.com/nexhr/sales-api/internal/repository"
	"github.com/nexhr/sales-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := employeeActor("anna")

	t.Run("create with minimal fields", func(t *testing.T) {
		lead, err := env.leads.Create(ctx, &domain.CreateLeadRequest{
			ContactPerson: "Ola Nordmann",
			Phone:         "+4791000001",
			DealValue:     50000,
		}, actor)
		require.NoError(t, err)

		assert.Equal(t, domain.LeadStatusNew, lead.Status)
		assert.Equal(t, domain.LeadPriorityMedium, lead.Priority)
		assert.Equal(t, "anna", lead.AssignedTo)
		assert.Equal(t, "anna", lead.CreatedBy)
		assert.Equal(t, "Ola Nordmann's Company", lead.CompanyName)
		assert.Equal(t, 50000.0, lead.TotalAmount)
		assert.Equal(t, 0.0, lead.PaidAmount)
		assert.Equal(t, 50000.0, lead.RemainingAmount)
		assert.Equal(t, 0.0, lead.PaymentPercentage)
	})

	t.Run("missing contact person", func(t *testing.T) {
		_, err := env.leads.Create(ctx, &domain.CreateLeadRequest{
			ContactPerson: "   ",
			Phone:         "+4791000002",
		}, actor)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("missing phone", func(t *testing.T) {
		_, err := env.leads.Create(ctx, &domain.CreateLeadRequest{
			ContactPerson: "Kari Nordmann",
		}, actor)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := env.leads.Create(ctx, &domain.CreateLeadRequest{
			ContactPerson: "Kari Nordmann",
			Phone:         "+4791000003",
			Status:        "in_limbo",
		}, actor)
		assert.ErrorIs(t, err, service.ErrInvalidStatus)
	})

	t.Run("negative deal value", func(t *testing.T) {
		_, err := env.leads.Create(ctx, &domain.CreateLeadRequest{
			ContactPerson: "Kari Nordmann",
			Phone:         "+4791000004",
			DealValue:     -100,
		}, actor)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("pre-links existing customer by phone", func(t *testing.T) {
		customer := &domain.Customer{
			CompanyName:   "Bergen Bygg AS",
			ContactPerson: "Nils Berg",
			Phone:         "+4791000005",
			Status:        domain.CustomerStatusActive,
		}
		require.NoError(t, env.customerRepo.Create(ctx, customer))

		lead, err := env.leads.Create(ctx, &domain.CreateLeadRequest{
			ContactPerson: "Nils Berg",
			Phone:         "+4791000005",
			DealValue:     20000,
		}, actor)
		require.NoError(t, err)

		require.NotNil(t, lead.LinkedCustomerID)
		assert.Equal(t, customer.ID, *lead.LinkedCustomerID)
		// Company name inherited from the known customer
		assert.Equal(t, "Bergen Bygg AS", lead.CompanyName)
		// Pre-linking does not convert
		assert.Nil(t, lead.LinkedProjectID)
	})
}

func TestLeadService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := employeeActor("anna")

	t.Run("partial update leaves other fields intact", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4792000001", 10000)

		notes := "Follow up next week"
		priority := domain.LeadPriorityHigh
		updated, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{
			Notes:    &notes,
			Priority: &priority,
		}, owner)
		require.NoError(t, err)

		assert.Equal(t, "Follow up next week", updated.Notes)
		assert.Equal(t, domain.LeadPriorityHigh, updated.Priority)
		assert.Equal(t, lead.ContactPerson, updated.ContactPerson)
		assert.Equal(t, lead.Status, updated.Status)
		assert.Equal(t, "anna", updated.UpdatedBy)
	})

	t.Run("not found", func(t *testing.T) {
		notes := "x"
		_, err := env.leads.Update(ctx, uuid.New(), &domain.UpdateLeadRequest{Notes: &notes}, owner)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("forbidden for unrelated employee", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4792000002", 10000)

		notes := "x"
		_, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Notes: &notes}, employeeActor("bob"))
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("manager can update any lead", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4792000003", 10000)

		notes := "reviewed"
		updated, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Notes: &notes}, managerActor())
		require.NoError(t, err)
		assert.Equal(t, "reviewed", updated.Notes)
	})

	t.Run("deal value change reconciles the ledger", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4792000004", 10000)

		newValue := 25000.0
		updated, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{DealValue: &newValue}, owner)
		require.NoError(t, err)

		assert.Equal(t, 25000.0, updated.TotalAmount)
		assert.Equal(t, 25000.0, updated.RemainingAmount)
	})

	t.Run("transition to closed_won converts the lead", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4792000005", 75000)

		won := domain.LeadStatusClosedWon
		updated, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &won}, owner)
		require.NoError(t, err)

		assert.Equal(t, domain.LeadStatusClosedWon, updated.Status)
		require.NotNil(t, updated.LinkedCustomerID)
		require.NotNil(t, updated.LinkedProjectID)
		require.NotNil(t, updated.ConversionDate)

		customer, err := env.customerRepo.GetByID(ctx, *updated.LinkedCustomerID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", customer.CompanyName)
		assert.Equal(t, 75000.0, customer.CustomerValue)

		project, err := env.projectRepo.GetByID(ctx, *updated.LinkedProjectID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp - Ravi Kumar", project.Name)
		assert.Equal(t, 75000.0, project.Budget)
		assert.Equal(t, domain.ProjectStatusActive, project.Status)
		assert.Equal(t, customer.ID, project.CustomerID)
		assert.Equal(t, lead.ID, project.LeadID)
		assert.Nil(t, project.ManagerID)
	})

	t.Run("re-closing a won lead does not convert twice", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4792000006", 30000)

		won := domain.LeadStatusClosedWon
		first, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &won}, owner)
		require.NoError(t, err)

		second, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &won}, owner)
		require.NoError(t, err)

		assert.Equal(t, *first.LinkedProjectID, *second.LinkedProjectID)

		var count int64
		require.NoError(t, env.db.Model(&domain.Project{}).Where("lead_id = ?", lead.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("closed_lost does not convert", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4792000007", 30000)

		lost := domain.LeadStatusClosedLost
		updated, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &lost}, owner)
		require.NoError(t, err)

		assert.Equal(t, domain.LeadStatusClosedLost, updated.Status)
		assert.Nil(t, updated.LinkedProjectID)
	})
}

func TestLeadService_Update_ConcurrentClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := managerActor()
	lead := createTestLead(t, env, manager, "+4795000009", 120000)

	const writers = 8
	won := domain.LeadStatusClosedWon
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &won}, manager)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// All racers succeed but exactly one conversion happens
	var projects int64
	require.NoError(t, env.db.Model(&domain.Project{}).Where("lead_id = ?", lead.ID).Count(&projects).Error)
	assert.Equal(t, int64(1), projects)

	var customers int64
	require.NoError(t, env.db.Model(&domain.Customer{}).Where("phone = ?", "+4795000009").Count(&customers).Error)
	assert.Equal(t, int64(1), customers)

	got, err := env.leads.GetByID(ctx, lead.ID, manager)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusClosedWon, got.Status)
	require.NotNil(t, got.LinkedProjectID)
	require.NotNil(t, got.LinkedCustomerID)
}

func TestLeadService_GetByID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := employeeActor("anna")
	lead := createTestLead(t, env, owner, "+4793000001", 40000)

	t.Run("owner reads own lead with ledger", func(t *testing.T) {
		got, err := env.leads.GetByID(ctx, lead.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, lead.ID, got.ID)
		assert.Empty(t, got.Milestones)
		assert.Empty(t, got.Payments)
	})

	t.Run("unrelated employee is denied", func(t *testing.T) {
		_, err := env.leads.GetByID(ctx, lead.ID, employeeActor("bob"))
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := env.leads.GetByID(ctx, uuid.New(), owner)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestLeadService_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	anna := employeeActor("anna")
	bob := employeeActor("bob")

	createTestLead(t, env, anna, "+4794000001", 10000)
	createTestLead(t, env, anna, "+4794000002", 20000)
	createTestLead(t, env, bob, "+4794000003", 30000)

	t.Run("employee only sees own leads", func(t *testing.T) {
		leads, total, err := env.leads.List(ctx, 1, 20, nil, repository.LeadSortByCreatedDesc, anna)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, l := range leads {
			assert.Equal(t, "anna", l.AssignedTo)
		}
	})

	t.Run("manager sees everything", func(t *testing.T) {
		_, total, err := env.leads.List(ctx, 1, 20, nil, repository.LeadSortByCreatedDesc, managerActor())
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("filter by minimum value", func(t *testing.T) {
		minValue := 25000.0
		leads, total, err := env.leads.List(ctx, 1, 20, &repository.LeadFilters{MinValue: &minValue}, repository.LeadSortByValueDesc, managerActor())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, leads, 1)
		assert.Equal(t, 30000.0, leads[0].DealValue)
	})

	t.Run("pagination clamps out of range input", func(t *testing.T) {
		leads, total, err := env.leads.List(ctx, -1, 0, nil, repository.LeadSortByCreatedDesc, managerActor())
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, leads, 3)
	})
}

func TestLeadService_Activities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := employeeActor("anna")
	lead := createTestLead(t, env, owner, "+4795000001", 10000)

	t.Run("add and list", func(t *testing.T) {
		added, err := env.leads.AddActivity(ctx, lead.ID, &domain.AddLeadActivityRequest{
			ActivityType: domain.ActivityTypeCall,
			Subject:      "Intro call",
			Description:  "Discussed scope",
		}, owner)
		require.NoError(t, err)
		assert.Equal(t, domain.ActivityTypeCall, added.ActivityType)
		assert.Equal(t, "anna", added.ActorName)

		activities, err := env.leads.ListActivities(ctx, lead.ID, 50, owner)
		require.NoError(t, err)
		// Creation already logged a system entry
		require.GreaterOrEqual(t, len(activities), 2)

		subjects := make([]string, 0, len(activities))
		for _, a := range activities {
			subjects = append(subjects, a.Subject)
		}
		assert.Contains(t, subjects, "Intro call")
		assert.Contains(t, subjects, "Lead created")
	})

	t.Run("unknown activity type", func(t *testing.T) {
		_, err := env.leads.AddActivity(ctx, lead.ID, &domain.AddLeadActivityRequest{
			ActivityType: "telepathy",
			Subject:      "x",
		}, owner)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("unrelated employee is denied", func(t *testing.T) {
		_, err := env.leads.ListActivities(ctx, lead.ID, 50, employeeActor("bob"))
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})
}

func TestLeadService_ConversionStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := managerActor()

	wonLead := createTestLead(t, env, manager, "+4796000001", 100000)
	lostLead := createTestLead(t, env, manager, "+4796000002", 50000)
	createTestLead(t, env, manager, "+4796000003", 20000)
	createTestLead(t, env, manager, "+4796000004", 30000)

	won := domain.LeadStatusClosedWon
	_, err := env.leads.Update(ctx, wonLead.ID, &domain.UpdateLeadRequest{Status: &won}, manager)
	require.NoError(t, err)

	lost := domain.LeadStatusClosedLost
	_, err = env.leads.Update(ctx, lostLead.ID, &domain.UpdateLeadRequest{Status: &lost}, manager)
	require.NoError(t, err)

	stats, err := env.leads.ConversionStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalLeads)
	assert.Equal(t, int64(1), stats.ConvertedLeads)
	assert.Equal(t, int64(1), stats.ProjectsCreated)
	assert.Equal(t, int64(1), stats.LostLeads)
	assert.Equal(t, int64(2), stats.OpenLeads)
	assert.Equal(t, 25.0, stats.ConversionRate)
	assert.Equal(t, 100000.0, stats.ConvertedValue)
	assert.Equal(t, 50000.0, stats.PipelineValue)
	assert.Equal(t, int64(1), stats.ByStatus[string(domain.LeadStatusClosedWon)])
	require.Len(t, stats.ByMonth, 1)
	assert.Equal(t, int64(1), stats.ByMonth[0].Converted)
	assert.Equal(t, 100000.0, stats.ByMonth[0].Value)
}

func TestLeadService_Stats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := managerActor()

	lead := createTestLead(t, env, manager, "+4797000001", 60000)
	createTestLead(t, env, manager, "+4797000002", 40000)

	_, err := env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
		Amount:        15000,
		PaymentMethod: "bank_transfer",
		PaymentDate:   "2026-08-15",
	}, manager)
	require.NoError(t, err)

	stats, err := env.leads.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalLeads)
	assert.Equal(t, int64(2), stats.ActiveLeads)
	assert.Equal(t, 100000.0, stats.TotalDealValue)
	assert.Equal(t, 15000.0, stats.TotalCollected)
	assert.Equal(t, 85000.0, stats.TotalOutstanding)
	assert.Equal(t, int64(0), stats.OverdueMilestones)
}
