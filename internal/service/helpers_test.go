package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/nexhr/sales-api/internal/auth"
	"github.com/nexhr/sales-api/internal/database"
	"github.com/nexhr/sales-api/internal/domain"
	"github.com/nexhr/sales-api/internal/repository"
	"github.com/nexhr/sales-api/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db            *gorm.DB
	leadRepo      *repository.LeadRepository
	customerRepo  *repository.CustomerRepository
	projectRepo   *repository.ProjectRepository
	milestoneRepo *repository.MilestoneRepository
	paymentRepo   *repository.PaymentRepository
	leads         *service.LeadService
	ledger        *service.LedgerService
	conversion    *service.ConversionService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared in-memory database pinned to a single connection, so
	// the schema survives across the pooled connections gorm opens
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	log := zap.NewNop()

	leadRepo := repository.NewLeadRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	locks := service.NewLeadLocker()
	conversion := service.NewConversionService(leadRepo, customerRepo, projectRepo, activityRepo, locks, log, db)
	leads := service.NewLeadService(leadRepo, customerRepo, activityRepo, milestoneRepo, conversion, locks, log, db)
	ledger := service.NewLedgerService(leadRepo, milestoneRepo, paymentRepo, activityRepo, conversion, locks, log, db)

	return &testEnv{
		db:            db,
		leadRepo:      leadRepo,
		customerRepo:  customerRepo,
		projectRepo:   projectRepo,
		milestoneRepo: milestoneRepo,
		paymentRepo:   paymentRepo,
		leads:         leads,
		ledger:        ledger,
		conversion:    conversion,
	}
}

func managerActor() *auth.UserContext {
	return &auth.UserContext{
		Username:    "sales.manager",
		DisplayName: "Sales Manager",
		Role:        domain.RoleSalesManager,
	}
}

func employeeActor(username string) *auth.UserContext {
	return &auth.UserContext{
		Username:    username,
		DisplayName: username,
		Role:        domain.RoleEmployee,
	}
}

func createTestLead(t *testing.T, env *testEnv, actor *auth.UserContext, phone string, dealValue float64) *domain.LeadDTO {
	t.Helper()

	lead, err := env.leads.Create(context.Background(), &domain.CreateLeadRequest{
		ContactPerson: "Ravi Kumar",
		Phone:         phone,
		CompanyName:   "Acme Corp",
		DealValue:     dealValue,
	}, actor)
	require.NoError(t, err)
	return lead
}
