// Package idcard renders employee identity cards as HTML (for preview and
// email bodies) and PDF (for print and attachments), with an embedded QR
// code carrying the employee's key fields.
package idcard

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/icard-hq/apiserver/types"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// ID-1 card geometry in millimetres.
const (
	cardWidth  = 85.6
	cardHeight = 54.0
)

// Renderer builds card artifacts for employees.
type Renderer struct {
	companyName string
}

func NewRenderer(companyName string) *Renderer {
	if companyName == "" {
		companyName = "iCard System"
	}
	return &Renderer{companyName: companyName}
}

// QRPayload is the plain-text content encoded into the card's QR code.
func (r *Renderer) QRPayload(emp types.Employee) string {
	return fmt.Sprintf(
		"Employee ID: %d\nName: %s\nDepartment: %s\nDesignation: %s\nEmail: %s",
		emp.ID, emp.Name, emp.Department, emp.Designation, emp.Email,
	)
}

// QRCode renders the employee QR payload as a PNG.
func (r *Renderer) QRCode(emp types.Employee) ([]byte, error) {
	return qrcode.Encode(r.QRPayload(emp), qrcode.Medium, qrSize)
}

var cardTemplate = template.Must(template.New("card").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>ID Card - {{.Name}}</title>
<style>
	body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background: #f4f6f8; }
	.id-card { width: 420px; border-radius: 10px; background: #fff; border: 1px solid #ddd;
		box-shadow: 0 6px 18px rgba(0,0,0,0.1); margin: 0 auto; padding: 18px; }
	.header { text-align: center; border-bottom: 1px solid #eee; padding-bottom: 8px; margin-bottom: 12px; }
	.company { font-size: 17px; font-weight: bold; }
	.title { font-size: 12px; color: #666; }
	.row { display: flex; justify-content: space-between; }
	.field { margin-bottom: 6px; font-size: 12px; }
	.label { font-weight: bold; }
	.qr { width: 90px; height: 90px; }
	.footer { margin-top: 10px; text-align: center; font-size: 10px; color: #888; }
</style>
</head>
<body>
<div class="id-card">
	<div class="header">
		<div class="company">{{.Company}}</div>
		<div class="title">Employee Identity Card</div>
	</div>
	<div class="row">
		<div>
			<div class="field"><span class="label">ID:</span> {{.ID}}</div>
			<div class="field"><span class="label">Name:</span> {{.Name}}</div>
			<div class="field"><span class="label">Department:</span> {{.Department}}</div>
			<div class="field"><span class="label">Designation:</span> {{.Designation}}</div>
			<div class="field"><span class="label">Blood Group:</span> {{.BloodGroup}}</div>
			<div class="field"><span class="label">Mobile:</span> {{.MobileNo}}</div>
			<div class="field"><span class="label">Email:</span> {{.Email}}</div>
			{{if .AddressLine}}<div class="field"><span class="label">Address:</span> {{.AddressLine}}</div>{{end}}
		</div>
		<div>
			<img class="qr" src="{{.QRDataURI}}" alt="QR Code">
		</div>
	</div>
	<div class="footer">Issued: {{.Issued}} | Valid Till: {{.ValidTill}}</div>
</div>
</body>
</html>
`))

type cardData struct {
	Company     string
	ID          int
	Name        string
	Department  string
	Designation string
	BloodGroup  string
	MobileNo    string
	Email       string
	AddressLine string
	QRDataURI   template.URL
	Issued      string
	ValidTill   string
}

// RenderHTML renders the card as a standalone HTML document with the QR
// image inlined as a data URI, suitable for preview pages and email bodies.
func (r *Renderer) RenderHTML(emp types.Employee, qrPNG []byte) (string, error) {
	data := cardData{
		Company:     r.companyName,
		ID:          emp.ID,
		Name:        emp.Name,
		Department:  emp.Department,
		Designation: emp.Designation,
		BloodGroup:  emp.BloodGroup,
		MobileNo:    emp.MobileNo,
		Email:       emp.Email,
		AddressLine: emp.AddressLine(),
		QRDataURI:   template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG)),
		Issued:      monthYear(emp.CardIssueDate, time.Now()),
		ValidTill:   monthYear(emp.ValidTill, time.Time{}),
	}

	var buf bytes.Buffer
	if err := cardTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPDF renders a single ID-1 sized card page.
func (r *Renderer) RenderPDF(emp types.Employee, qrPNG []byte) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: cardWidth, Ht: cardHeight},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(cardWidth-8, 5, r.companyName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 6)
	pdf.CellFormat(cardWidth-8, 3, "Employee Identity Card", "", 1, "C", false, 0, "")
	pdf.Ln(1)

	qrName := fmt.Sprintf("qr-%d", emp.ID)
	pdf.RegisterImageOptionsReader(qrName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))
	pdf.ImageOptions(qrName, cardWidth-26, 12, 20, 20, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	field := func(label, value string) {
		if value == "" {
			return
		}
		pdf.SetFont("Helvetica", "B", 7)
		pdf.CellFormat(18, 4, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 7)
		pdf.CellFormat(cardWidth-8-18-22, 4, value, "", 1, "L", false, 0, "")
	}
	field("ID:", fmt.Sprintf("%d", emp.ID))
	field("Name:", emp.Name)
	field("Department:", emp.Department)
	field("Designation:", emp.Designation)
	field("Blood Group:", emp.BloodGroup)
	field("Mobile:", emp.MobileNo)

	pdf.SetY(cardHeight - 8)
	pdf.SetFont("Helvetica", "I", 5)
	footer := fmt.Sprintf("Issued: %s | Valid Till: %s",
		monthYear(emp.CardIssueDate, time.Now()), monthYear(emp.ValidTill, time.Time{}))
	pdf.CellFormat(cardWidth-8, 3, footer, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func monthYear(t *time.Time, fallback time.Time) string {
	if t != nil {
		return t.Format("Jan 2006")
	}
	if fallback.IsZero() {
		return "N/A"
	}
	return fallback.Format("Jan 2006")
}
