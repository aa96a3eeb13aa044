package idcard

import (
	"strings"
	"testing"
	"time"

	"github.com/icard-hq/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEmployee() types.Employee {
	valid := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	return types.Employee{
		ID:          12,
		Name:        "Asha Verma",
		Department:  "Engineering",
		Designation: "Developer",
		BloodGroup:  "O+",
		MobileNo:    "9876543210",
		Email:       "asha@x.com",
		ValidTill:   &valid,
		Address: &types.Address{
			HouseNo: "14", Street: "MG Road", City: "Pune", State: "MH", Country: "India", Pincode: "411001",
		},
	}
}

func TestQRPayload(t *testing.T) {
	r := NewRenderer("Acme Corp")
	payload := r.QRPayload(sampleEmployee())

	assert.Contains(t, payload, "Employee ID: 12")
	assert.Contains(t, payload, "Name: Asha Verma")
	assert.Contains(t, payload, "Department: Engineering")
	assert.Contains(t, payload, "Email: asha@x.com")
}

func TestQRCodeIsPNG(t *testing.T) {
	r := NewRenderer("Acme Corp")
	png, err := r.QRCode(sampleEmployee())
	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.Equal(t, "\x89PNG", string(png[:4]))
}

func TestRenderHTML(t *testing.T) {
	r := NewRenderer("Acme Corp")
	emp := sampleEmployee()

	png, err := r.QRCode(emp)
	require.NoError(t, err)
	html, err := r.RenderHTML(emp, png)
	require.NoError(t, err)

	assert.Contains(t, html, "Acme Corp")
	assert.Contains(t, html, "Asha Verma")
	assert.Contains(t, html, "Engineering")
	assert.Contains(t, html, "data:image/png;base64,")
	assert.Contains(t, html, "Valid Till: Mar 2027")
	assert.Contains(t, html, "MG Road")
}

func TestRenderHTMLEscapesFields(t *testing.T) {
	r := NewRenderer("Acme Corp")
	emp := sampleEmployee()
	emp.Name = `<script>alert("x")</script>`

	png, err := r.QRCode(emp)
	require.NoError(t, err)
	html, err := r.RenderHTML(emp, png)
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>alert")
}

func TestRenderPDF(t *testing.T) {
	r := NewRenderer("Acme Corp")
	emp := sampleEmployee()

	png, err := r.QRCode(emp)
	require.NoError(t, err)
	pdf, err := r.RenderPDF(emp, png)
	require.NoError(t, err)

	require.NotEmpty(t, pdf)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"), "output should be a PDF document")
}
