package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/icard-hq/apiserver/internal/mailer"
	"github.com/icard-hq/apiserver/internal/services"
	"github.com/icard-hq/apiserver/internal/store"
)

// CardHandler provides HTTP handlers for identity card issuance.
type CardHandler struct {
	cards *services.CardService
}

func NewCardHandler(cards *services.CardService) *CardHandler {
	return &CardHandler{cards: cards}
}

// CardRouter registers card routes on the given router. The download route
// carries its own authentication (the signed token) and stays outside the
// session gate; everything else requires a signed-in session.
func CardRouter(r chi.Router, cards *services.CardService, requireAuth func(http.Handler) http.Handler) {
	handler := NewCardHandler(cards)

	r.Get("/download", handler.Download)
	r.Group(func(r chi.Router) {
		if requireAuth != nil {
			r.Use(requireAuth)
		}
		r.Post("/bulk", handler.BulkGenerate)
		r.Route("/{employeeID}", func(r chi.Router) {
			r.Get("/preview", handler.Preview)
			r.Get("/pdf", handler.PDF)
			r.Post("/email", handler.Email)
		})
	})
}

// Preview renders the employee's card as an HTML page.
func (h *CardHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "employeeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	html, err := h.cards.PreviewHTML(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to render card")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

// PDF generates the employee's card PDF, stores it, and returns it inline.
func (h *CardHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "employeeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := sessionFromContext(r.Context())
	pdf, err := h.cards.GeneratePDF(r.Context(), id, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to generate card")
		return
	}

	writePDF(w, fmt.Sprintf("IDCard_%d.pdf", id), pdf)
}

// Email sends the employee their card by email.
func (h *CardHandler) Email(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "employeeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := sessionFromContext(r.Context())
	if err := h.cards.EmailCard(r.Context(), id, sess.UserID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "employee not found")
		case errors.Is(err, services.ErrNoEmail):
			writeError(w, http.StatusBadRequest, "employee has no email address")
		default:
			var deliveryErr *mailer.DeliveryError
			if errors.As(err, &deliveryErr) {
				writeError(w, http.StatusBadGateway, "failed to send the card email")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to email card")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "card emailed"})
}

type BulkCardRequest struct {
	EmployeeIDs []int `json:"employee_ids"`
	SendEmails  bool  `json:"send_emails"`
}

// BulkGenerate renders cards for many employees in one run.
func (h *CardHandler) BulkGenerate(w http.ResponseWriter, r *http.Request) {
	var req BulkCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if len(req.EmployeeIDs) == 0 {
		writeError(w, http.StatusBadRequest, "employee_ids is required")
		return
	}

	sess := sessionFromContext(r.Context())
	result := h.cards.BulkGenerate(r.Context(), req.EmployeeIDs, req.SendEmails, sess.UserID)
	writeJSON(w, http.StatusOK, result)
}

// Download serves a card PDF against a signed link, without a session.
func (h *CardHandler) Download(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	id, err := h.cards.VerifyDownloadToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	pdf, err := h.cards.FetchStoredPDF(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch card")
		return
	}

	writePDF(w, fmt.Sprintf("IDCard_%d.pdf", id), pdf)
}

func writePDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	_, _ = w.Write(data)
}
