package web

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"efakture/internal/app"
	"efakture/internal/core"
)

// ── Auth ──────────────────────────────────────────────────────────────────────

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     core.Role `json:"role"`
	PIB      string    `json:"pib"`
}

type userResponse struct {
	User core.User `json:"user"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// apiLogin handles POST /api/auth/login.
func (h *Handler) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, "email and password are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.issueSessionCookie(w, sess); err != nil {
		log.Printf("login: %v", err)
		writeError(w, r, "could not issue session", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, userResponse{User: sess.User})
}

// apiRegister handles POST /api/auth/register. Role defaults to company.
func (h *Handler) apiRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, "name, email and password are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if req.Role != "" {
		role, err := core.ParseRole(string(req.Role))
		if err != nil {
			writeError(w, r, "role must be company or admin", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.Role = role
	}
	sess, err := h.svc.Register(r.Context(), app.RegisterRequest(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.issueSessionCookie(w, sess); err != nil {
		log.Printf("register: %v", err)
		writeError(w, r, "could not issue session", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeStatusJSON(w, http.StatusCreated, userResponse{User: sess.User})
}

// apiLogout handles POST /api/auth/logout. It succeeds without a session.
func (h *Handler) apiLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := h.loadSession(r); err == nil {
		if err := h.svc.Logout(r.Context(), sess); err != nil {
			log.Printf("logout [%s]: %v", requestIDFromContext(r.Context()), err)
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, successResponse{Success: true})
}

// apiMe handles GET /api/auth/me.
func (h *Handler) apiMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Profile(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, userResponse{User: *user})
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

type dashboardResponse struct {
	User      core.User      `json:"user"`
	Dashboard core.Dashboard `json:"dashboard"`
}

// apiDashboard handles GET /api/dashboard.
func (h *Handler) apiDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Dashboard(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, dashboardResponse{User: res.User, Dashboard: res.Dashboard})
}

// ── Invoices ──────────────────────────────────────────────────────────────────

type invoiceListResponse struct {
	Admin bool `json:"admin"`
	core.InvoiceList
}

type invoiceResponse struct {
	Invoice *core.Invoice `json:"invoice"`
}

// previewErrorResponse is the 422 body of /api/invoices/preview: the usual
// error envelope plus the computed preview.
type previewErrorResponse struct {
	errorResponse
	Preview *app.DraftPreview `json:"preview"`
}

// apiListInvoices handles GET /api/invoices.
func (h *Handler) apiListInvoices(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListInvoices(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, invoiceListResponse{Admin: res.Admin, InvoiceList: res.List})
}

// apiGetInvoice handles GET /api/invoices/{id}.
func (h *Handler) apiGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), sessionFromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, invoiceResponse{Invoice: inv})
}

// apiCreateInvoice handles POST /api/invoices. The draft is validated before
// it is forwarded; an invalid draft gets 422 with the field map.
func (h *Handler) apiCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var draft core.InvoiceDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), sessionFromContext(r.Context()), draft)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeStatusJSON(w, http.StatusCreated, invoiceResponse{Invoice: inv})
}

// apiPreviewInvoice handles POST /api/invoices/preview. It never calls the backend.
func (h *Handler) apiPreviewInvoice(w http.ResponseWriter, r *http.Request) {
	var draft core.InvoiceDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	writePreview(w, r, h.svc.PreviewDraft(sessionFromContext(r.Context()), draft))
}

type suggestRequest struct {
	Description string             `json:"description"`
	Draft       *core.InvoiceDraft `json:"draft"`
}

// apiSuggestInvoice handles POST /api/invoices/suggest.
func (h *Handler) apiSuggestInvoice(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, r, "description is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	draft := core.NewDraft()
	if req.Draft != nil {
		draft = *req.Draft
	}
	preview, err := h.svc.SuggestDraft(r.Context(), sessionFromContext(r.Context()), app.SuggestDraftRequest{
		Description: req.Description,
		Draft:       draft,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writePreview(w, r, preview)
}

func writePreview(w http.ResponseWriter, r *http.Request, preview *app.DraftPreview) {
	if preview.Valid() {
		writeJSON(w, preview)
		return
	}
	writeStatusJSON(w, http.StatusUnprocessableEntity, previewErrorResponse{
		errorResponse: errorResponse{
			Error:     "validation failed",
			Code:      "VALIDATION_FAILED",
			RequestID: requestIDFromContext(r.Context()),
			Fields:    preview.Errors.Fields(),
		},
		Preview: preview,
	})
}

// apiNextInvoiceNumber handles GET /api/invoices/next-number?recipient_pib=.
func (h *Handler) apiNextInvoiceNumber(w http.ResponseWriter, r *http.Request) {
	pib := strings.TrimSpace(r.URL.Query().Get("recipient_pib"))
	n, err := h.svc.NextInvoiceNumber(r.Context(), sessionFromContext(r.Context()), pib)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	type response struct {
		Number string `json:"number"`
	}
	writeJSON(w, response{Number: n})
}

// apiDeleteInvoice handles DELETE /api/invoices/{id}.
func (h *Handler) apiDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), sessionFromContext(r.Context()), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, successResponse{Success: true})
}

// apiSendInvoiceEmail handles POST /api/invoices/{id}/send-email. The body
// {"email": "..."} is optional.
func (h *Handler) apiSendInvoiceEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	if err := h.svc.SendInvoiceEmail(r.Context(), sessionFromContext(r.Context()), id, req.Email); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, successResponse{Success: true})
}

// ── Products ──────────────────────────────────────────────────────────────────

type productRequest struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	MaterialType string `json:"material_type"`
	OwnerUserID  int    `json:"owner_user_id"`
}

// apiListProducts handles GET /api/products.
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if products == nil {
		products = []core.Product{}
	}
	type response struct {
		Items []core.Product `json:"items"`
	}
	writeJSON(w, response{Items: products})
}

// apiCreateProduct handles POST /api/products.
func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), sessionFromContext(r.Context()), app.CreateProductRequest(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	type response struct {
		Product *core.Product `json:"product"`
	}
	writeStatusJSON(w, http.StatusCreated, response{Product: p})
}

// apiDeleteProduct handles DELETE /api/products/{id}.
func (h *Handler) apiDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid product id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), sessionFromContext(r.Context()), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, successResponse{Success: true})
}

// ── Users (admin) ─────────────────────────────────────────────────────────────

// apiListUsers handles GET /api/users.
func (h *Handler) apiListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []core.User{}
	}
	type response struct {
		Items []core.User `json:"items"`
	}
	writeJSON(w, response{Items: users})
}

// apiVerifyUser handles PATCH /api/users/{id}/verify with body {"verified": bool}.
func (h *Handler) apiVerifyUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, "invalid user id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		Verified *bool `json:"verified"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Verified == nil {
		writeError(w, r, "verified is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	u, err := h.svc.VerifyUser(r.Context(), sessionFromContext(r.Context()), id, *req.Verified)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, userResponse{User: *u})
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "could not read body", "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	if strings.TrimSpace(string(body)) == "" {
		return true
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	return decodeJSON(w, r, v)
}
