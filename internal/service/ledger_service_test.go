package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nexhr/sales-api/internal/domain"
	"github.com/nexhr/sales-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_AddMilestone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := employeeActor("anna")
	lead := createTestLead(t, env, owner, "+4781000001", 80000)

	t.Run("valid milestone", func(t *testing.T) {
		milestone, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
			Description: "Advance payment",
			Amount:      40000,
			DueDate:     "2026-10-01",
		}, owner)
		require.NoError(t, err)

		assert.Equal(t, domain.MilestoneStatusPending, milestone.Status)
		assert.Equal(t, 40000.0, milestone.Amount)
		assert.Equal(t, "2026-10-01", milestone.DueDate)
		assert.Nil(t, milestone.PaidDate)
		assert.Equal(t, "anna", milestone.CreatedBy)
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
			Description: "Bad",
			Amount:      0,
			DueDate:     "2026-10-01",
		}, owner)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("malformed due date", func(t *testing.T) {
		_, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
			Description: "Bad",
			Amount:      100,
			DueDate:     "01.10.2026",
		}, owner)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("unknown lead", func(t *testing.T) {
		_, err := env.ledger.AddMilestone(ctx, uuid.New(), &domain.AddMilestoneRequest{
			Description: "Nope",
			Amount:      100,
			DueDate:     "2026-10-01",
		}, owner)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("unrelated employee is denied", func(t *testing.T) {
		_, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
			Description: "Nope",
			Amount:      100,
			DueDate:     "2026-10-01",
		}, employeeActor("bob"))
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})
}

func TestLedgerService_RecordPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := employeeActor("anna")

	t.Run("partial payment reconciles the ledger", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4782000001", 80000)

		summary, err := env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
			Amount:        20000,
			PaymentMethod: "bank_transfer",
			PaymentDate:   "2026-08-01",
		}, owner)
		require.NoError(t, err)

		assert.Equal(t, 80000.0, summary.TotalAmount)
		assert.Equal(t, 20000.0, summary.PaidAmount)
		assert.Equal(t, 60000.0, summary.RemainingAmount)
		assert.Equal(t, 25.0, summary.PaymentPercentage)
		assert.Equal(t, domain.LeadStatusNew, summary.Status)
		require.Len(t, summary.Payments, 1)
		assert.Equal(t, "2026-08-01", summary.Payments[0].PaymentDate)
		assert.Equal(t, "anna", summary.Payments[0].RecordedBy)

		// A partial payment does not close the lead
		got, err := env.leads.GetByID(ctx, lead.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, domain.LeadStatusNew, got.Status)
		assert.Nil(t, got.LinkedProjectID)
	})

	t.Run("full payment closes the lead and converts once", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4782000002", 80000)

		m1, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
			Description: "Advance", Amount: 40000, DueDate: "2026-09-01",
		}, owner)
		require.NoError(t, err)
		m2, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
			Description: "Final", Amount: 40000, DueDate: "2026-12-01",
		}, owner)
		require.NoError(t, err)

		_, err = env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
			Amount: 40000, PaymentMethod: "bank_transfer", PaymentDate: "2026-08-15", MilestoneID: &m1.ID,
		}, owner)
		require.NoError(t, err)

		summary, err := env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
			Amount: 40000, PaymentMethod: "bank_transfer", PaymentDate: "2026-08-20", MilestoneID: &m2.ID,
		}, owner)
		require.NoError(t, err)

		assert.Equal(t, 80000.0, summary.PaidAmount)
		assert.Equal(t, 0.0, summary.RemainingAmount)
		assert.Equal(t, 100.0, summary.PaymentPercentage)
		// The automatic close is visible in the summary itself
		assert.Equal(t, domain.LeadStatusClosedWon, summary.Status)
		require.Len(t, summary.Milestones, 2)
		for _, m := range summary.Milestones {
			assert.Equal(t, domain.MilestoneStatusPaid, m.Status)
			assert.NotNil(t, m.PaidDate)
		}

		got, err := env.leads.GetByID(ctx, lead.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, domain.LeadStatusClosedWon, got.Status)
		require.NotNil(t, got.LinkedCustomerID)
		require.NotNil(t, got.LinkedProjectID)

		var projects int64
		require.NoError(t, env.db.Model(&domain.Project{}).Where("lead_id = ?", lead.ID).Count(&projects).Error)
		assert.Equal(t, int64(1), projects)

		var customers int64
		require.NoError(t, env.db.Model(&domain.Customer{}).Where("phone = ?", "+4782000002").Count(&customers).Error)
		assert.Equal(t, int64(1), customers)
	})

	t.Run("unknown milestone fails before any write", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4782000003", 80000)

		bogus := uuid.New()
		_, err := env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
			Amount: 40000, PaymentMethod: "bank_transfer", PaymentDate: "2026-08-15", MilestoneID: &bogus,
		}, owner)
		assert.ErrorIs(t, err, service.ErrMilestoneNotFound)

		var payments int64
		require.NoError(t, env.db.Model(&domain.PaymentRecord{}).Where("lead_id = ?", lead.ID).Count(&payments).Error)
		assert.Equal(t, int64(0), payments)

		got, err := env.leads.GetByID(ctx, lead.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got.PaidAmount)
		assert.Equal(t, 80000.0, got.RemainingAmount)
	})

	t.Run("milestone belonging to another lead is rejected", func(t *testing.T) {
		leadA := createTestLead(t, env, owner, "+4782000004", 50000)
		leadB := createTestLead(t, env, owner, "+4782000005", 50000)

		foreign, err := env.ledger.AddMilestone(ctx, leadA.ID, &domain.AddMilestoneRequest{
			Description: "On A", Amount: 1000, DueDate: "2026-09-01",
		}, owner)
		require.NoError(t, err)

		_, err = env.ledger.RecordPayment(ctx, leadB.ID, &domain.RecordPaymentRequest{
			Amount: 1000, PaymentMethod: "cash", PaymentDate: "2026-08-15", MilestoneID: &foreign.ID,
		}, owner)
		assert.ErrorIs(t, err, service.ErrMilestoneNotFound)
	})

	t.Run("overpayment clamps remaining at zero", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4782000006", 1000)

		summary, err := env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
			Amount: 1500, PaymentMethod: "cash", PaymentDate: "2026-08-15",
		}, owner)
		require.NoError(t, err)

		assert.Equal(t, 1500.0, summary.PaidAmount)
		assert.Equal(t, 0.0, summary.RemainingAmount)

		// Zero remaining closes the lead as won
		got, err := env.leads.GetByID(ctx, lead.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, domain.LeadStatusClosedWon, got.Status)
	})

	t.Run("payment after conversion does not convert again", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4782000007", 10000)

		won := domain.LeadStatusClosedWon
		updated, err := env.leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &won}, owner)
		require.NoError(t, err)
		require.NotNil(t, updated.LinkedProjectID)

		_, err = env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
			Amount: 10000, PaymentMethod: "bank_transfer", PaymentDate: "2026-08-15",
		}, owner)
		require.NoError(t, err)

		var projects int64
		require.NoError(t, env.db.Model(&domain.Project{}).Where("lead_id = ?", lead.ID).Count(&projects).Error)
		assert.Equal(t, int64(1), projects)

		// The ledger write must not disturb the conversion back-links
		got, err := env.leads.GetByID(ctx, lead.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, updated.LinkedProjectID, got.LinkedProjectID)
		assert.Equal(t, updated.LinkedCustomerID, got.LinkedCustomerID)
		assert.NotNil(t, got.ConversionDate)
	})

	t.Run("missing payment date", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4782000010", 10000)

		_, err := env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
			Amount: 100, PaymentMethod: "cash",
		}, owner)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("invalid amount", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4782000008", 10000)

		_, err := env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
			Amount: -5, PaymentMethod: "cash",
		}, owner)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("unrelated employee is denied", func(t *testing.T) {
		lead := createTestLead(t, env, owner, "+4782000009", 10000)

		_, err := env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
			Amount: 100, PaymentMethod: "cash",
		}, employeeActor("bob"))
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})
}

func TestLedgerService_RecordPayment_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := employeeActor("anna")
	lead := createTestLead(t, env, owner, "+4782000011", 100000)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
				Amount: 1000, PaymentMethod: "bank_transfer", PaymentDate: "2026-08-15",
			}, owner)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Every write lands in the log and the totals reflect all of them
	got, err := env.leads.GetByID(ctx, lead.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, float64(writers)*1000, got.PaidAmount)
	assert.Equal(t, 100000.0-float64(writers)*1000, got.RemainingAmount)
	assert.Len(t, got.Payments, writers)
	assert.Equal(t, domain.LeadStatusNew, got.Status)
}

func TestLedgerService_GetSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := employeeActor("anna")
	lead := createTestLead(t, env, owner, "+4783000001", 60000)

	_, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
		Description: "Kickoff", Amount: 30000, DueDate: "2026-09-15",
	}, owner)
	require.NoError(t, err)

	_, err = env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
		Amount: 15000, PaymentMethod: "card", PaymentDate: "2026-08-15",
	}, owner)
	require.NoError(t, err)

	t.Run("summary reflects the ledger", func(t *testing.T) {
		summary, err := env.ledger.GetSummary(ctx, lead.ID, owner)
		require.NoError(t, err)

		assert.Equal(t, lead.ID, summary.LeadID)
		assert.Equal(t, domain.LeadStatusNew, summary.Status)
		assert.Equal(t, 60000.0, summary.TotalAmount)
		assert.Equal(t, 15000.0, summary.PaidAmount)
		assert.Equal(t, 45000.0, summary.RemainingAmount)
		assert.Equal(t, 25.0, summary.PaymentPercentage)
		assert.Len(t, summary.Milestones, 1)
		assert.Len(t, summary.Payments, 1)
	})

	t.Run("unrelated employee is denied", func(t *testing.T) {
		_, err := env.ledger.GetSummary(ctx, lead.ID, employeeActor("bob"))
		assert.ErrorIs(t, err, service.ErrPermissionDenied)
	})
}

func TestLedgerService_MarkOverdueMilestones(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := employeeActor("anna")
	lead := createTestLead(t, env, owner, "+4784000001", 50000)

	past := time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")
	future := time.Now().UTC().AddDate(0, 0, 10).Format("2006-01-02")

	overdue, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
		Description: "Was due", Amount: 10000, DueDate: past,
	}, owner)
	require.NoError(t, err)

	upcoming, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
		Description: "Not yet due", Amount: 10000, DueDate: future,
	}, owner)
	require.NoError(t, err)

	// A paid milestone in the past must not be touched
	paid, err := env.ledger.AddMilestone(ctx, lead.ID, &domain.AddMilestoneRequest{
		Description: "Settled", Amount: 10000, DueDate: past,
	}, owner)
	require.NoError(t, err)
	_, err = env.ledger.RecordPayment(ctx, lead.ID, &domain.RecordPaymentRequest{
		Amount: 10000, PaymentMethod: "cash", PaymentDate: past, MilestoneID: &paid.ID,
	}, owner)
	require.NoError(t, err)

	updated, err := env.ledger.MarkOverdueMilestones(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	check := func(id uuid.UUID) domain.MilestoneStatus {
		m, err := env.milestoneRepo.GetByID(ctx, id)
		require.NoError(t, err)
		return m.Status
	}
	assert.Equal(t, domain.MilestoneStatusOverdue, check(overdue.ID))
	assert.Equal(t, domain.MilestoneStatusPending, check(upcoming.ID))
	assert.Equal(t, domain.MilestoneStatusPaid, check(paid.ID))

	// The sweep is idempotent
	again, err := env.ledger.MarkOverdueMilestones(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again)
}
