package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/icard-hq/apiserver/types"
	"github.com/xuri/excelize/v2"
)

// EmployeeRepository defines persistence operations for employees.
type EmployeeRepository interface {
	List(ctx context.Context, filter types.EmployeeFilter, offset, limit int) ([]types.Employee, int, error)
	ListByIndicator(ctx context.Context, indicator string) ([]types.Employee, error)
	Get(ctx context.Context, id int) (types.Employee, error)
	Create(ctx context.Context, emp types.Employee) (types.Employee, error)
	Update(ctx context.Context, emp types.Employee) (types.Employee, error)
	Delete(ctx context.Context, id int) error
	SetPrinted(ctx context.Context, id int) error
	SetMailed(ctx context.Context, id int) error
	DistinctDepartments(ctx context.Context) ([]string, error)
	DistinctDesignations(ctx context.Context) ([]string, error)
	Counts(ctx context.Context) (types.DashboardCounts, error)
}

// EmployeeService encapsulates employee use-cases.
type EmployeeService struct {
	repo      EmployeeRepository
	addresses AddressRepository
}

func NewEmployeeService(repo EmployeeRepository, addresses AddressRepository) *EmployeeService {
	return &EmployeeService{repo: repo, addresses: addresses}
}

func (s *EmployeeService) List(ctx context.Context, filter types.EmployeeFilter, offset, limit int) ([]types.Employee, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *EmployeeService) Get(ctx context.Context, id int) (types.Employee, error) {
	return s.repo.Get(ctx, id)
}

func (s *EmployeeService) Create(ctx context.Context, emp types.Employee, addr *types.Address) (types.Employee, error) {
	if strings.TrimSpace(emp.Name) == "" {
		return types.Employee{}, validationErr("employee name is required")
	}
	if addr != nil {
		created, err := s.addresses.Create(ctx, *addr)
		if err != nil {
			return types.Employee{}, err
		}
		emp.AddressID = &created.ID
	}
	emp.Active = true
	return s.repo.Create(ctx, emp)
}

func (s *EmployeeService) Update(ctx context.Context, emp types.Employee, addr *types.Address) (types.Employee, error) {
	if strings.TrimSpace(emp.Name) == "" {
		return types.Employee{}, validationErr("employee name is required")
	}
	current, err := s.repo.Get(ctx, emp.ID)
	if err != nil {
		return types.Employee{}, err
	}
	if addr != nil {
		if current.AddressID != nil {
			addr.ID = *current.AddressID
			if _, err := s.addresses.Update(ctx, *addr); err != nil {
				return types.Employee{}, err
			}
			emp.AddressID = current.AddressID
		} else {
			created, err := s.addresses.Create(ctx, *addr)
			if err != nil {
				return types.Employee{}, err
			}
			emp.AddressID = &created.ID
		}
	} else {
		emp.AddressID = current.AddressID
	}
	if emp.ImageKey == "" {
		emp.ImageKey = current.ImageKey
	}
	if emp.CardIssueDate == nil {
		emp.CardIssueDate = current.CardIssueDate
	}
	// Status and bookkeeping fields are not part of the edit form and
	// survive the update unchanged.
	emp.Active = current.Active
	emp.Printed = current.Printed
	emp.Mailed = current.Mailed
	emp.CreatedBy = current.CreatedBy
	emp.CardCreateDate = current.CardCreateDate
	return s.repo.Update(ctx, emp)
}

func (s *EmployeeService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// FilterOptions lists the distinct departments and designations in use,
// for the list screen's dropdowns.
func (s *EmployeeService) FilterOptions(ctx context.Context) (departments, designations []string, err error) {
	departments, err = s.repo.DistinctDepartments(ctx)
	if err != nil {
		return nil, nil, err
	}
	designations, err = s.repo.DistinctDesignations(ctx)
	if err != nil {
		return nil, nil, err
	}
	return departments, designations, nil
}

// BulkImportResult summarizes a workbook import.
type BulkImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Expected workbook column order, one employee per row, header in row 1.
const bulkImportColumns = 12

// BulkImport reads employees from the first sheet of an xlsx workbook.
// Rows that fail to parse are skipped and reported; valid rows are
// inserted one by one, so a bad row never aborts the whole import.
func (s *EmployeeService) BulkImport(ctx context.Context, data []byte, createdBy int) (BulkImportResult, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return BulkImportResult{}, validationErr("invalid Excel file")
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return BulkImportResult{}, validationErr("workbook has no sheets")
	}
	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return BulkImportResult{}, err
	}
	if len(rows) <= 1 {
		return BulkImportResult{}, validationErr("workbook has no data rows")
	}

	var result BulkImportResult
	for i, row := range rows[1:] {
		emp, err := parseEmployeeRow(row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		emp.CreatedBy = &createdBy
		emp.Active = true
		if _, err := s.repo.Create(ctx, emp); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

func parseEmployeeRow(row []string) (types.Employee, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	name := cell(0)
	if name == "" {
		return types.Employee{}, errors.New("name is required")
	}

	dob, err := parseOptionalDate(cell(3))
	if err != nil {
		return types.Employee{}, fmt.Errorf("invalid date of birth %q", cell(3))
	}
	joined, err := parseOptionalDate(cell(6))
	if err != nil {
		return types.Employee{}, fmt.Errorf("invalid date of joining %q", cell(6))
	}

	emp := types.Employee{
		Name:                 name,
		FatherName:           cell(1),
		MotherName:           cell(2),
		DOB:                  dob,
		Department:           cell(4),
		Designation:          cell(5),
		DateOfJoining:        joined,
		BloodGroup:           cell(7),
		MobileNo:             cell(8),
		Email:                cell(9),
		EmergencyContactName: cell(10),
		EmergencyContactNo:   cell(11),
	}
	// Optional image key in column 13.
	if key := cell(bulkImportColumns); key != "" {
		emp.ImageKey = key
	}
	return emp, nil
}

func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", "01-02-06", "1/2/06", "01/02/2006", "2006/01/02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", value)
}
