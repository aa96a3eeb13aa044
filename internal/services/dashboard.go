package services

import (
	"context"

	"github.com/icard-hq/apiserver/types"
)

// DashboardService aggregates the indicators shown on the landing screen.
type DashboardService struct {
	employees EmployeeRepository
}

func NewDashboardService(employees EmployeeRepository) *DashboardService {
	return &DashboardService{employees: employees}
}

func (s *DashboardService) Counts(ctx context.Context) (types.DashboardCounts, error) {
	return s.employees.Counts(ctx)
}

// EmployeesByIndicator lists employees behind a dashboard tile:
// total, active, inactive, printed, or mailed.
func (s *DashboardService) EmployeesByIndicator(ctx context.Context, indicator string) ([]types.Employee, error) {
	return s.employees.ListByIndicator(ctx, indicator)
}
