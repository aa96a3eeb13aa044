package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/icard-hq/apiserver/internal/services"
	"github.com/icard-hq/apiserver/internal/storage"
	"github.com/icard-hq/apiserver/internal/store"
	"github.com/icard-hq/apiserver/types"
)

const (
	formFieldPhoto    = "photo"
	formFieldWorkbook = "file"
)

// EmployeeHandler provides HTTP handlers for employee records.
type EmployeeHandler struct {
	employees *services.EmployeeService
	storage   *storage.Storage
}

func NewEmployeeHandler(employees *services.EmployeeService, store *storage.Storage) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, storage: store}
}

// EmployeeRouter registers employee routes on the given router. All routes
// require a signed-in session.
func EmployeeRouter(r chi.Router, employees *services.EmployeeService, store *storage.Storage) {
	handler := NewEmployeeHandler(employees, store)

	r.Get("/", handler.ListEmployees)
	r.Post("/", handler.CreateEmployee)
	r.Get("/filter-options", handler.FilterOptions)
	r.Post("/bulk-upload", handler.BulkUpload)
	r.Route("/{employeeID}", func(r chi.Router) {
		r.Get("/", handler.GetEmployee)
		r.Put("/", handler.UpdateEmployee)
		r.Delete("/", handler.DeleteEmployee)
		r.Get("/photo", handler.Photo)
	})
}

// EmployeeListResponse is the paginated list response payload.
type EmployeeListResponse struct {
	Items []types.Employee `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int              `json:"total"`
}

func (h *EmployeeHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parseEmployeeFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.employees.List(r.Context(), filter, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list employees")
		return
	}

	writeJSON(w, http.StatusOK, EmployeeListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *EmployeeHandler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "employeeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	emp, err := h.employees.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch employee")
		return
	}

	writeJSON(w, http.StatusOK, emp)
}

func (h *EmployeeHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	emp, addr, err := h.parseEmployeeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := sessionFromContext(r.Context())
	emp.CreatedBy = &sess.UserID

	created, err := h.employees.Create(r.Context(), emp, addr)
	if err != nil {
		writeEmployeeError(w, err, "failed to create employee")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *EmployeeHandler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "employeeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	emp, addr, err := h.parseEmployeeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	emp.ID = id

	updated, err := h.employees.Update(r.Context(), emp, addr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		writeEmployeeError(w, err, "failed to update employee")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *EmployeeHandler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "employeeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.employees.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete employee")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FilterOptions returns the distinct departments and designations for the
// list screen's dropdowns.
func (h *EmployeeHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	departments, designations, err := h.employees.FilterOptions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load filter options")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"departments":  departments,
		"designations": designations,
	})
}

// BulkUpload imports employees from an uploaded Excel workbook.
func (h *EmployeeHandler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	data, _, err := formFile(r.MultipartForm, formFieldWorkbook)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := sessionFromContext(r.Context())
	result, err := h.employees.BulkImport(r.Context(), data, sess.UserID)
	if err != nil {
		writeEmployeeError(w, err, "failed to import employees")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Photo streams the employee's stored photo.
func (h *EmployeeHandler) Photo(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "employeeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	emp, err := h.employees.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch employee")
		return
	}
	if emp.ImageKey == "" || h.storage == nil {
		writeError(w, http.StatusNotFound, "no photo on record")
		return
	}

	reader, err := h.storage.Get(r.Context(), emp.ImageKey)
	if err != nil {
		writeError(w, http.StatusNotFound, "photo not available")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, reader)
}

// parseEmployeeForm reads an employee multipart form: the record fields, an
// optional address block, and an optional photo upload. The photo is stored
// immediately and its object key attached to the record.
func (h *EmployeeHandler) parseEmployeeForm(r *http.Request) (types.Employee, *types.Address, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return types.Employee{}, nil, errors.New("invalid multipart form")
	}

	field := func(name string) string {
		return strings.TrimSpace(r.FormValue(name))
	}

	name := field("name")
	if name == "" {
		return types.Employee{}, nil, errors.New("name is required")
	}

	dob, err := parseDateField(field("dob"))
	if err != nil {
		return types.Employee{}, nil, errors.New("invalid dob")
	}
	joined, err := parseDateField(field("date_of_joining"))
	if err != nil {
		return types.Employee{}, nil, errors.New("invalid date of joining")
	}
	validTill, err := parseDateField(field("valid_till"))
	if err != nil {
		return types.Employee{}, nil, errors.New("invalid valid till date")
	}

	emp := types.Employee{
		Name:                 name,
		FatherName:           field("father_name"),
		MotherName:           field("mother_name"),
		DOB:                  dob,
		Department:           field("department"),
		Designation:          field("designation"),
		DateOfJoining:        joined,
		ValidTill:            validTill,
		BloodGroup:           field("blood_group"),
		MobileNo:             field("mobile_no"),
		Email:                field("email"),
		EmergencyContactName: field("emergency_contact_name"),
		EmergencyContactNo:   field("emergency_contact_no"),
	}

	if data, filename, err := formFile(r.MultipartForm, formFieldPhoto); err == nil {
		key := storage.PhotoKey(filename)
		if h.storage != nil {
			if err := h.storage.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), photoContentType(filename)); err != nil {
				return types.Employee{}, nil, errors.New("failed to store photo")
			}
		}
		emp.ImageKey = key
	}

	var addr *types.Address
	if field("city") != "" || field("street") != "" || field("state") != "" || field("pincode") != "" {
		addr = &types.Address{
			HouseNo: field("house_no"),
			Street:  field("street"),
			City:    field("city"),
			State:   field("state"),
			Country: field("country"),
			Pincode: field("pincode"),
		}
	}

	return emp, addr, nil
}

func formFile(form *multipart.Form, name string) ([]byte, string, error) {
	if form == nil {
		return nil, "", errors.New("missing form data")
	}
	files := form.File[name]
	if len(files) == 0 {
		return nil, "", fmt.Errorf("%s file is required", name)
	}
	if len(files) > 1 {
		return nil, "", fmt.Errorf("only one %s file is allowed", name)
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s file: %w", name, err)
	}

	data, err := readFileLimited(file, maxUploadBytes)
	_ = file.Close()
	if err != nil {
		return nil, "", err
	}
	return data, fileHeader.Filename, nil
}

func parseEmployeeFilter(r *http.Request) (types.EmployeeFilter, error) {
	q := r.URL.Query()
	filter := types.EmployeeFilter{
		Search:      strings.TrimSpace(q.Get("q")),
		Department:  strings.TrimSpace(q.Get("department")),
		Designation: strings.TrimSpace(q.Get("designation")),
	}

	from, err := parseDateField(strings.TrimSpace(q.Get("joined_from")))
	if err != nil {
		return types.EmployeeFilter{}, errors.New("invalid joined_from")
	}
	to, err := parseDateField(strings.TrimSpace(q.Get("joined_to")))
	if err != nil {
		return types.EmployeeFilter{}, errors.New("invalid joined_to")
	}
	filter.JoinedFrom = from
	filter.JoinedTo = to
	return filter, nil
}

func parseDateField(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func photoContentType(filename string) string {
	switch strings.ToLower(filename[strings.LastIndex(filename, ".")+1:]) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func writeEmployeeError(w http.ResponseWriter, err error, fallback string) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, fallback)
}
