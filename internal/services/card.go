package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/icard-hq/apiserver/internal/idcard"
	"github.com/icard-hq/apiserver/internal/mailer"
	"github.com/icard-hq/apiserver/internal/mq"
	"github.com/icard-hq/apiserver/internal/storage"
	"github.com/icard-hq/apiserver/types"
)

// ErrNoEmail is returned when a card delivery is requested for an employee
// without an email address.
var ErrNoEmail = errors.New("employee has no email address")

// CardService renders, stores, and delivers employee identity cards, and
// tracks per-employee printed/mailed status.
type CardService struct {
	employees   EmployeeRepository
	renderer    *idcard.Renderer
	storage     *storage.Storage
	sender      mailer.Sender
	events      *mq.Publisher
	baseURL     string
	tokenSecret []byte
	tokenTTL    time.Duration
}

func NewCardService(
	employees EmployeeRepository,
	renderer *idcard.Renderer,
	store *storage.Storage,
	sender mailer.Sender,
	events *mq.Publisher,
	baseURL string,
	tokenSecret string,
	tokenTTL time.Duration,
) *CardService {
	return &CardService{
		employees:   employees,
		renderer:    renderer,
		storage:     store,
		sender:      sender,
		events:      events,
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokenSecret: []byte(tokenSecret),
		tokenTTL:    tokenTTL,
	}
}

// PreviewHTML renders the employee's card as a standalone HTML document.
func (s *CardService) PreviewHTML(ctx context.Context, employeeID int) (string, error) {
	emp, err := s.employees.Get(ctx, employeeID)
	if err != nil {
		return "", err
	}
	qr, err := s.renderer.QRCode(emp)
	if err != nil {
		return "", err
	}
	return s.renderer.RenderHTML(emp, qr)
}

// GeneratePDF renders the employee's card as a PDF, uploads it to object
// storage, marks the card printed, and emits a card.generated event.
func (s *CardService) GeneratePDF(ctx context.Context, employeeID, actorID int) ([]byte, error) {
	emp, err := s.employees.Get(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderPDF(emp)
	if err != nil {
		return nil, err
	}

	if s.storage != nil {
		key := storage.CardKey(emp.ID)
		if err := s.storage.Put(ctx, key, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf"); err != nil {
			return nil, err
		}
	}

	if err := s.employees.SetPrinted(ctx, emp.ID); err != nil {
		return nil, err
	}
	s.publish(ctx, mq.Event{Type: mq.EventCardGenerated, EmployeeID: emp.ID, ActorID: actorID})

	return pdf, nil
}

// EmailCard sends the employee their card: HTML body plus PDF attachment
// and a signed download link. The mailed flag is only set when delivery
// succeeds.
func (s *CardService) EmailCard(ctx context.Context, employeeID, actorID int) error {
	emp, err := s.employees.Get(ctx, employeeID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(emp.Email) == "" {
		return ErrNoEmail
	}

	qr, err := s.renderer.QRCode(emp)
	if err != nil {
		return err
	}
	html, err := s.renderer.RenderHTML(emp, qr)
	if err != nil {
		return err
	}
	pdf, err := s.renderer.RenderPDF(emp, qr)
	if err != nil {
		return err
	}

	if link, err := s.DownloadLink(emp.ID); err == nil && link != "" {
		html += fmt.Sprintf(`<p><a href="%s">Download your ID card</a></p>`, link)
	}

	attachment := mailer.Attachment{
		Filename: fmt.Sprintf("IDCard_%d.pdf", emp.ID),
		Data:     pdf,
	}
	if err := s.sender.Send(ctx, emp.Email, "Your ID Card", html, attachment); err != nil {
		return err
	}

	if err := s.employees.SetMailed(ctx, emp.ID); err != nil {
		return err
	}
	s.publish(ctx, mq.Event{Type: mq.EventCardMailed, EmployeeID: emp.ID, Email: emp.Email, ActorID: actorID})
	return nil
}

// BulkResult summarizes a bulk card run.
type BulkResult struct {
	Generated int      `json:"generated"`
	Emailed   int      `json:"emailed"`
	Errors    []string `json:"errors,omitempty"`
}

// BulkGenerate renders cards for the given employees and optionally emails
// each one. A failure for one employee is recorded and the run continues,
// matching the behavior of the bulk screen this backs.
func (s *CardService) BulkGenerate(ctx context.Context, employeeIDs []int, sendEmails bool, actorID int) BulkResult {
	var result BulkResult
	for _, id := range employeeIDs {
		if _, err := s.GeneratePDF(ctx, id, actorID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("employee %d: %v", id, err))
			continue
		}
		result.Generated++

		if !sendEmails {
			continue
		}
		if err := s.EmailCard(ctx, id, actorID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("employee %d: %v", id, err))
			continue
		}
		result.Emailed++
	}
	return result
}

const downloadTokenSubjectPrefix = "card:"

// DownloadLink builds a signed URL from which the employee can fetch their
// card PDF without a session, valid for the configured TTL.
func (s *CardService) DownloadLink(employeeID int) (string, error) {
	if len(s.tokenSecret) == 0 {
		return "", nil
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   downloadTokenSubjectPrefix + strconv.Itoa(employeeID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokenSecret)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/cards/download?token=%s", s.baseURL, token), nil
}

// VerifyDownloadToken validates a signed download token and returns the
// employee id it grants access to.
func (s *CardService) VerifyDownloadToken(tokenString string) (int, error) {
	if len(s.tokenSecret) == 0 {
		return 0, errors.New("card downloads are not enabled")
	}
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.tokenSecret, nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	idStr, ok := strings.CutPrefix(claims.Subject, downloadTokenSubjectPrefix)
	if !ok {
		return 0, errors.New("invalid token subject")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id < 1 {
		return 0, errors.New("invalid token subject")
	}
	return id, nil
}

// FetchStoredPDF streams a previously generated card PDF from storage,
// rendering it on the fly if no stored copy exists yet.
func (s *CardService) FetchStoredPDF(ctx context.Context, employeeID int) ([]byte, error) {
	if s.storage != nil {
		if reader, err := s.storage.Get(ctx, storage.CardKey(employeeID)); err == nil {
			defer reader.Close()
			var buf bytes.Buffer
			if _, err := buf.ReadFrom(reader); err == nil && buf.Len() > 0 {
				return buf.Bytes(), nil
			}
		}
	}

	emp, err := s.employees.Get(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return s.renderPDF(emp)
}

func (s *CardService) renderPDF(emp types.Employee) ([]byte, error) {
	qr, err := s.renderer.QRCode(emp)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderPDF(emp, qr)
}

func (s *CardService) publish(ctx context.Context, event mq.Event) {
	if s.events == nil {
		return
	}
	// Event delivery is best-effort; a broker outage must not fail the
	// card operation itself.
	_ = s.events.PublishEvent(ctx, event)
}
