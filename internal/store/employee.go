package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/icard-hq/apiserver/types"
)

// EmployeeRepository handles persistence for employees.
type EmployeeRepository struct {
	db *sql.DB
}

func NewEmployeeRepository(db *sql.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `
	e.id, e.name, e.father_name, e.mother_name, e.dob, e.department, e.designation,
	e.date_of_joining, e.card_issue_date, e.valid_till, e.blood_group, e.image_key,
	e.mobile_no, e.email, e.address_id, e.emergency_contact_name, e.emergency_contact_no,
	e.card_create_date, e.printed, e.mailed, e.active, e.created_by, e.updated_at,
	a.id, a.house_no, a.street, a.city, a.state, a.country, a.pincode, a.created_at, a.updated_at`

const employeeFrom = `
	FROM employees e
	LEFT JOIN addresses a ON a.id = e.address_id`

func scanEmployee(row interface{ Scan(...any) error }) (types.Employee, error) {
	var emp types.Employee
	var (
		addrID      sql.NullInt64
		houseNo     sql.NullString
		street      sql.NullString
		city        sql.NullString
		state       sql.NullString
		country     sql.NullString
		pincode     sql.NullString
		addrCreated sql.NullTime
		addrUpdated sql.NullTime
	)
	err := row.Scan(
		&emp.ID,
		&emp.Name,
		&emp.FatherName,
		&emp.MotherName,
		&emp.DOB,
		&emp.Department,
		&emp.Designation,
		&emp.DateOfJoining,
		&emp.CardIssueDate,
		&emp.ValidTill,
		&emp.BloodGroup,
		&emp.ImageKey,
		&emp.MobileNo,
		&emp.Email,
		&emp.AddressID,
		&emp.EmergencyContactName,
		&emp.EmergencyContactNo,
		&emp.CardCreateDate,
		&emp.Printed,
		&emp.Mailed,
		&emp.Active,
		&emp.CreatedBy,
		&emp.UpdatedAt,
		&addrID,
		&houseNo,
		&street,
		&city,
		&state,
		&country,
		&pincode,
		&addrCreated,
		&addrUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Employee{}, ErrNotFound
		}
		return types.Employee{}, err
	}
	if addrID.Valid {
		addr := &types.Address{
			ID:      int(addrID.Int64),
			HouseNo: houseNo.String,
			Street:  street.String,
			City:    city.String,
			State:   state.String,
			Country: country.String,
			Pincode: pincode.String,
		}
		if addrCreated.Valid {
			addr.CreatedAt = addrCreated.Time
		}
		if addrUpdated.Valid {
			t := addrUpdated.Time
			addr.UpdatedAt = &t
		}
		emp.Address = addr
	}
	return emp, nil
}

// buildFilter renders the WHERE clause for an employee filter. Search matches
// name, mobile number, or the numeric id rendered as text.
func buildFilter(filter types.EmployeeFilter) (string, []any) {
	var clauses []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(filter.Search); s != "" {
		p := arg("%" + s + "%")
		clauses = append(clauses, fmt.Sprintf("(e.name ILIKE %s OR e.mobile_no ILIKE %s OR e.id::text ILIKE %s)", p, p, p))
	}
	if filter.Department != "" {
		clauses = append(clauses, "e.department = "+arg(filter.Department))
	}
	if filter.Designation != "" {
		clauses = append(clauses, "e.designation = "+arg(filter.Designation))
	}
	if filter.JoinedFrom != nil {
		clauses = append(clauses, "e.date_of_joining >= "+arg(*filter.JoinedFrom))
	}
	if filter.JoinedTo != nil {
		clauses = append(clauses, "e.date_of_joining <= "+arg(*filter.JoinedTo))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *EmployeeRepository) List(ctx context.Context, filter types.EmployeeFilter, offset, limit int) ([]types.Employee, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where, args := buildFilter(filter)

	countQuery := `SELECT COUNT(1) FROM employees e` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + employeeColumns + employeeFrom + where +
		fmt.Sprintf(" ORDER BY e.id DESC OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	args = append(args, offset, limit)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	employees := make([]types.Employee, 0, limit)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

// ListByIndicator returns employees matching a dashboard indicator:
// total, active, inactive, printed, mailed.
func (r *EmployeeRepository) ListByIndicator(ctx context.Context, indicator string) ([]types.Employee, error) {
	where := ""
	switch strings.ToLower(indicator) {
	case "", "total":
	case "active":
		where = " WHERE e.active"
	case "inactive":
		where = " WHERE NOT e.active"
	case "printed":
		where = " WHERE e.printed"
	case "mailed":
		where = " WHERE e.mailed"
	default:
		return nil, fmt.Errorf("unknown indicator %q", indicator)
	}

	query := `SELECT ` + employeeColumns + employeeFrom + where + ` ORDER BY e.id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []types.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func (r *EmployeeRepository) Get(ctx context.Context, id int) (types.Employee, error) {
	query := `SELECT ` + employeeColumns + employeeFrom + ` WHERE e.id = $1`
	return scanEmployee(r.db.QueryRowContext(ctx, query, id))
}

func (r *EmployeeRepository) Create(ctx context.Context, emp types.Employee) (types.Employee, error) {
	emp.UpdatedAt = time.Now()
	if emp.CardCreateDate.IsZero() {
		emp.CardCreateDate = emp.UpdatedAt
	}

	const query = `
		INSERT INTO employees (
			name, father_name, mother_name, dob, department, designation,
			date_of_joining, card_issue_date, valid_till, blood_group, image_key,
			mobile_no, email, address_id, emergency_contact_name, emergency_contact_no,
			card_create_date, printed, mailed, active, created_by, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		emp.Name,
		emp.FatherName,
		emp.MotherName,
		emp.DOB,
		emp.Department,
		emp.Designation,
		emp.DateOfJoining,
		emp.CardIssueDate,
		emp.ValidTill,
		emp.BloodGroup,
		emp.ImageKey,
		emp.MobileNo,
		emp.Email,
		emp.AddressID,
		emp.EmergencyContactName,
		emp.EmergencyContactNo,
		emp.CardCreateDate,
		emp.Printed,
		emp.Mailed,
		emp.Active,
		emp.CreatedBy,
		emp.UpdatedAt,
	).Scan(&emp.ID); err != nil {
		return types.Employee{}, err
	}
	return emp, nil
}

func (r *EmployeeRepository) Update(ctx context.Context, emp types.Employee) (types.Employee, error) {
	emp.UpdatedAt = time.Now()

	const query = `
		UPDATE employees
		SET name = $1,
			father_name = $2,
			mother_name = $3,
			dob = $4,
			department = $5,
			designation = $6,
			date_of_joining = $7,
			card_issue_date = $8,
			valid_till = $9,
			blood_group = $10,
			image_key = $11,
			mobile_no = $12,
			email = $13,
			address_id = $14,
			emergency_contact_name = $15,
			emergency_contact_no = $16,
			active = $17,
			updated_at = $18
		WHERE id = $19`
	result, err := r.db.ExecContext(
		ctx,
		query,
		emp.Name,
		emp.FatherName,
		emp.MotherName,
		emp.DOB,
		emp.Department,
		emp.Designation,
		emp.DateOfJoining,
		emp.CardIssueDate,
		emp.ValidTill,
		emp.BloodGroup,
		emp.ImageKey,
		emp.MobileNo,
		emp.Email,
		emp.AddressID,
		emp.EmergencyContactName,
		emp.EmergencyContactNo,
		emp.Active,
		emp.UpdatedAt,
		emp.ID,
	)
	if err != nil {
		return types.Employee{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Employee{}, err
	}
	if affected == 0 {
		return types.Employee{}, ErrNotFound
	}
	return emp, nil
}

func (r *EmployeeRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM employees WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPrinted marks an employee's card as generated for print.
func (r *EmployeeRepository) SetPrinted(ctx context.Context, id int) error {
	return r.setFlag(ctx, id, "printed")
}

// SetMailed marks an employee's card as delivered by email.
func (r *EmployeeRepository) SetMailed(ctx context.Context, id int) error {
	return r.setFlag(ctx, id, "mailed")
}

func (r *EmployeeRepository) setFlag(ctx context.Context, id int, column string) error {
	query := fmt.Sprintf(`UPDATE employees SET %s = TRUE, updated_at = now() WHERE id = $1`, column)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DistinctDepartments lists the department values in use, for filter dropdowns.
func (r *EmployeeRepository) DistinctDepartments(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "department")
}

// DistinctDesignations lists the designation values in use.
func (r *EmployeeRepository) DistinctDesignations(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "designation")
}

func (r *EmployeeRepository) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM employees WHERE %s <> '' ORDER BY %s`, column, column, column)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Counts aggregates the dashboard indicators in a single query.
func (r *EmployeeRepository) Counts(ctx context.Context) (types.DashboardCounts, error) {
	const query = `
		SELECT
			COUNT(1),
			COUNT(1) FILTER (WHERE active),
			COUNT(1) FILTER (WHERE NOT active),
			COUNT(1) FILTER (WHERE printed),
			COUNT(1) FILTER (WHERE mailed)
		FROM employees`
	var counts types.DashboardCounts
	err := r.db.QueryRowContext(ctx, query).Scan(
		&counts.TotalEmployees,
		&counts.ActiveEmployees,
		&counts.InactiveEmployees,
		&counts.CardsGenerated,
		&counts.EmailsSent,
	)
	return counts, err
}
