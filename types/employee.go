package types

import (
	"strings"
	"time"
)

// Employee is a staff record for which an identity card can be issued.
type Employee struct {
	ID                   int        `json:"id" db:"id"`
	Name                 string     `json:"name" db:"name"`
	FatherName           string     `json:"father_name,omitempty" db:"father_name"`
	MotherName           string     `json:"mother_name,omitempty" db:"mother_name"`
	DOB                  *time.Time `json:"dob,omitempty" db:"dob"`
	Department           string     `json:"department" db:"department"`
	Designation          string     `json:"designation" db:"designation"`
	DateOfJoining        *time.Time `json:"date_of_joining,omitempty" db:"date_of_joining"`
	CardIssueDate        *time.Time `json:"card_issue_date,omitempty" db:"card_issue_date"`
	ValidTill            *time.Time `json:"valid_till,omitempty" db:"valid_till"`
	BloodGroup           string     `json:"blood_group,omitempty" db:"blood_group"`
	ImageKey             string     `json:"image_key,omitempty" db:"image_key"`
	MobileNo             string     `json:"mobile_no,omitempty" db:"mobile_no"`
	Email                string     `json:"email,omitempty" db:"email"`
	Address              *Address   `json:"address,omitempty" db:"-"`
	AddressID            *int       `json:"-" db:"address_id"`
	EmergencyContactName string     `json:"emergency_contact_name,omitempty" db:"emergency_contact_name"`
	EmergencyContactNo   string     `json:"emergency_contact_no,omitempty" db:"emergency_contact_no"`
	CardCreateDate       time.Time  `json:"card_create_date" db:"card_create_date"`

	// Printed and Mailed track per-employee card delivery status.
	Printed bool `json:"printed" db:"printed"`
	Mailed  bool `json:"mailed" db:"mailed"`

	Active    bool      `json:"active" db:"active"`
	CreatedBy *int      `json:"created_by,omitempty" db:"created_by"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AddressLine renders the employee's address as a single display line.
func (e Employee) AddressLine() string {
	if e.Address == nil {
		return ""
	}
	parts := []string{
		strings.TrimSpace(e.Address.HouseNo + " " + e.Address.Street),
		e.Address.City,
		e.Address.State,
		strings.TrimSpace(e.Address.Country + " " + e.Address.Pincode),
	}
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, ", ")
}

// EmployeeFilter narrows employee listings.
type EmployeeFilter struct {
	Search      string
	Department  string
	Designation string
	JoinedFrom  *time.Time
	JoinedTo    *time.Time
}

// DashboardCounts aggregates the indicators shown on the dashboard.
type DashboardCounts struct {
	TotalEmployees    int `json:"total_employees"`
	ActiveEmployees   int `json:"active_employees"`
	InactiveEmployees int `json:"inactive_employees"`
	CardsGenerated    int `json:"cards_generated"`
	EmailsSent        int `json:"emails_sent"`
}
