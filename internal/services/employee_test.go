package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/icard-hq/apiserver/internal/store"
	"github.com/icard-hq/apiserver/types"
)

type fakeEmployeeRepo struct {
	mu        sync.Mutex
	nextID    int
	employees map[int]types.Employee

	lastLimit  int
	lastOffset int
}

func newFakeEmployeeRepo() *fakeEmployeeRepo {
	return &fakeEmployeeRepo{nextID: 1, employees: map[int]types.Employee{}}
}

func (r *fakeEmployeeRepo) List(_ context.Context, _ types.EmployeeFilter, offset, limit int) ([]types.Employee, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastOffset, r.lastLimit = offset, limit
	var out []types.Employee
	for _, e := range r.employees {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (r *fakeEmployeeRepo) ListByIndicator(_ context.Context, indicator string) ([]types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Employee
	for _, e := range r.employees {
		switch indicator {
		case "active":
			if !e.Active {
				continue
			}
		case "inactive":
			if e.Active {
				continue
			}
		case "printed":
			if !e.Printed {
				continue
			}
		case "mailed":
			if !e.Mailed {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeEmployeeRepo) Get(_ context.Context, id int) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employees[id]
	if !ok {
		return types.Employee{}, store.ErrNotFound
	}
	return e, nil
}

func (r *fakeEmployeeRepo) Create(_ context.Context, emp types.Employee) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	emp.ID = r.nextID
	r.nextID++
	emp.CardCreateDate = time.Now()
	r.employees[emp.ID] = emp
	return emp, nil
}

func (r *fakeEmployeeRepo) Update(_ context.Context, emp types.Employee) (types.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.employees[emp.ID]; !ok {
		return types.Employee{}, store.ErrNotFound
	}
	r.employees[emp.ID] = emp
	return emp, nil
}

func (r *fakeEmployeeRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.employees[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.employees, id)
	return nil
}

func (r *fakeEmployeeRepo) SetPrinted(_ context.Context, id int) error {
	return r.setFlag(id, func(e *types.Employee) { e.Printed = true })
}

func (r *fakeEmployeeRepo) SetMailed(_ context.Context, id int) error {
	return r.setFlag(id, func(e *types.Employee) { e.Mailed = true })
}

func (r *fakeEmployeeRepo) setFlag(id int, set func(*types.Employee)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employees[id]
	if !ok {
		return store.ErrNotFound
	}
	set(&e)
	r.employees[id] = e
	return nil
}

func (r *fakeEmployeeRepo) DistinctDepartments(context.Context) ([]string, error) {
	return []string{"Engineering", "HR"}, nil
}

func (r *fakeEmployeeRepo) DistinctDesignations(context.Context) ([]string, error) {
	return []string{"Engineer", "Manager"}, nil
}

func (r *fakeEmployeeRepo) Counts(_ context.Context) (types.DashboardCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c types.DashboardCounts
	for _, e := range r.employees {
		c.TotalEmployees++
		if e.Active {
			c.ActiveEmployees++
		} else {
			c.InactiveEmployees++
		}
		if e.Printed {
			c.CardsGenerated++
		}
		if e.Mailed {
			c.EmailsSent++
		}
	}
	return c, nil
}

func TestListClampsLimit(t *testing.T) {
	repo := newFakeEmployeeRepo()
	svc := NewEmployeeService(repo, newFakeAddressRepo())

	_, _, err := svc.List(context.Background(), types.EmployeeFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, repo.lastLimit, "zero limit falls back to the default page size")

	_, _, err = svc.List(context.Background(), types.EmployeeFilter{}, 40, 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, repo.lastLimit)
	assert.Equal(t, 40, repo.lastOffset)
}

func TestCreateAndUpdateEmployeeWithAddress(t *testing.T) {
	repo := newFakeEmployeeRepo()
	addresses := newFakeAddressRepo()
	svc := NewEmployeeService(repo, addresses)

	created, err := svc.Create(context.Background(),
		types.Employee{Name: "Ravi Kumar", Department: "Engineering", ImageKey: "photos/a.png"},
		&types.Address{City: "Pune"})
	require.NoError(t, err)
	assert.True(t, created.Active)
	require.NotNil(t, created.AddressID)

	// Update without a new photo keeps the stored image key and reuses the
	// existing address row.
	updated, err := svc.Update(context.Background(),
		types.Employee{ID: created.ID, Name: "Ravi Kumar", Department: "Engineering"},
		&types.Address{City: "Mumbai"})
	require.NoError(t, err)
	assert.Equal(t, "photos/a.png", updated.ImageKey)
	assert.Equal(t, *created.AddressID, *updated.AddressID)
	assert.True(t, updated.Active, "an edit must not change the active flag")

	addr, err := addresses.Get(context.Background(), *updated.AddressID)
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", addr.City)
}

func TestUpdateEmployeeKeepsStatusFields(t *testing.T) {
	repo := newFakeEmployeeRepo()
	svc := NewEmployeeService(repo, newFakeAddressRepo())

	created, err := svc.Create(context.Background(), types.Employee{Name: "Ravi Kumar"}, nil)
	require.NoError(t, err)
	require.NoError(t, repo.SetPrinted(context.Background(), created.ID))
	require.NoError(t, repo.SetMailed(context.Background(), created.ID))

	// A rename carries none of the status fields in the form; all of them
	// must survive on the returned and on the stored record.
	updated, err := svc.Update(context.Background(),
		types.Employee{ID: created.ID, Name: "Ravi K Kumar"}, nil)
	require.NoError(t, err)
	assert.True(t, updated.Active, "editing an employee must not deactivate them")
	assert.True(t, updated.Printed)
	assert.True(t, updated.Mailed)

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.True(t, stored.Printed)
	assert.True(t, stored.Mailed)
	assert.Equal(t, created.CardCreateDate, stored.CardCreateDate)
}

func TestCreateEmployeeRequiresName(t *testing.T) {
	svc := NewEmployeeService(newFakeEmployeeRepo(), newFakeAddressRepo())
	_, err := svc.Create(context.Background(), types.Employee{Name: "   "}, nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	header := []string{
		"Name", "Father Name", "Mother Name", "DOB", "Department", "Designation",
		"Date of Joining", "Blood Group", "Mobile No", "Email",
		"Emergency Contact Name", "Emergency Contact No",
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestBulkImport(t *testing.T) {
	repo := newFakeEmployeeRepo()
	svc := NewEmployeeService(repo, newFakeAddressRepo())

	data := buildWorkbook(t, [][]string{
		{"Ravi Kumar", "S Kumar", "L Kumar", "1990-04-12", "Engineering", "Engineer",
			"2020-01-15", "B+", "9876543210", "ravi@example.com", "S Kumar", "9876500000"},
		{"", "", "", "", "HR", "Manager", "", "", "", "", "", ""},
		{"Meena Shah", "", "", "not-a-date", "HR", "Manager", "", "", "", "", "", ""},
		{"Asha Verma", "", "", "", "HR", "Manager", "2021-06-01", "O+", "", "asha@example.com", "", ""},
	})

	result, err := svc.BulkImport(context.Background(), data, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "row 3")
	assert.Contains(t, result.Errors[1], "row 4")

	emps, total, err := svc.List(context.Background(), types.EmployeeFilter{}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, e := range emps {
		require.NotNil(t, e.CreatedBy)
		assert.Equal(t, 7, *e.CreatedBy)
		assert.True(t, e.Active)
	}
}

func TestBulkImportRejectsGarbage(t *testing.T) {
	svc := NewEmployeeService(newFakeEmployeeRepo(), newFakeAddressRepo())
	_, err := svc.BulkImport(context.Background(), []byte("not an xlsx"), 1)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBulkImportNoDataRows(t *testing.T) {
	svc := NewEmployeeService(newFakeEmployeeRepo(), newFakeAddressRepo())
	data := buildWorkbook(t, nil)
	_, err := svc.BulkImport(context.Background(), data, 1)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseOptionalDateLayouts(t *testing.T) {
	for _, value := range []string{"2006-01-02", "01/02/2006", "2006/01/02"} {
		got, err := parseOptionalDate(value)
		require.NoError(t, err, value)
		require.NotNil(t, got)
	}
	got, err := parseOptionalDate("")
	require.NoError(t, err)
	assert.Nil(t, got)
}
