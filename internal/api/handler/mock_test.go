package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lettermill/platform/internal/model"
)

// ---------- Deployer mock ----------

type mockDeployer struct {
	mock.Mock
}

func (m *mockDeployer) Deploy(ctx context.Context, cfg model.DeploymentConfig) (*model.DeploymentResult, error) {
	args := m.Called(ctx, cfg)
	if res := args.Get(0); res != nil {
		return res.(*model.DeploymentResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeployer) CurrentStatus(ctx context.Context) (*model.DeploymentStatus, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.(*model.DeploymentStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

// ---------- history mock ----------

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) History(ctx context.Context, limit int) ([]model.DeploymentRecord, error) {
	args := m.Called(ctx, limit)
	if res := args.Get(0); res != nil {
		return res.([]model.DeploymentRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// ---------- migrator mock ----------

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) RunPending(ctx context.Context) (*model.MigrationResult, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.(*model.MigrationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMigrator) Status(ctx context.Context) (*model.MigrationStatus, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.(*model.MigrationStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMigrator) RollbackLast(ctx context.Context) (*model.RollbackResult, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.(*model.RollbackResult), args.Error(1)
	}
	return nil, args.Error(1)
}
