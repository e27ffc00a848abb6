package web

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"efakture/internal/app"
	"efakture/internal/core"
	"efakture/internal/export"
	"efakture/internal/session"
	"efakture/web/templates/layouts"
)

// ── Login / register ─────────────────────────────────────────────────────────

type loginPage struct {
	Email string
	Error string
}

type registerPage struct {
	Name   string
	Email  string
	PIB    string
	Error  string
	Errors core.ValidationErrors
}

// loginPage handles GET /login. Redirects to / if already signed in.
func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.loadSession(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login", h.buildAppLayoutData(r, "Sign in", ""), loginPage{})
}

// loginFormSubmit handles POST /login.
func (h *Handler) loginFormSubmit(w http.ResponseWriter, r *http.Request) {
	layout := h.buildAppLayoutData(r, "Sign in", "")
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login", layout, loginPage{Error: "Invalid form submission."})
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	sess, err := h.svc.Login(r.Context(), email, r.FormValue("password"))
	if err != nil {
		h.render(w, r, app.StatusOf(err), "login", layout, loginPage{Email: email, Error: app.Message(err)})
		return
	}
	if err := h.issueSessionCookie(w, sess); err != nil {
		log.Printf("login: %v", err)
		h.render(w, r, http.StatusInternalServerError, "login", layout, loginPage{Email: email, Error: "Server error. Please try again."})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// registerPage handles GET /register.
func (h *Handler) registerPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", h.buildAppLayoutData(r, "Register", ""), registerPage{})
}

// registerFormSubmit handles POST /register. Self-registration always creates
// a company account.
func (h *Handler) registerFormSubmit(w http.ResponseWriter, r *http.Request) {
	layout := h.buildAppLayoutData(r, "Register", "")
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "register", layout, registerPage{Error: "Invalid form submission."})
		return
	}
	req := app.RegisterRequest{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Role:     core.RoleCompany,
		PIB:      strings.TrimSpace(r.FormValue("pib")),
	}
	form := registerPage{Name: req.Name, Email: req.Email, PIB: req.PIB}

	sess, err := h.svc.Register(r.Context(), req)
	if err != nil {
		var verrs core.ValidationErrors
		if errors.As(err, &verrs) {
			form.Errors = verrs
		} else {
			form.Error = app.Message(err)
		}
		h.render(w, r, app.StatusOf(err), "register", layout, form)
		return
	}
	if err := h.issueSessionCookie(w, sess); err != nil {
		log.Printf("register: %v", err)
		form.Error = "Server error. Please try again."
		h.render(w, r, http.StatusInternalServerError, "register", layout, form)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// logoutPage handles POST /logout: ends the session, clears the cookie and
// redirects to /login. A missing session is not an error.
func (h *Handler) logoutPage(w http.ResponseWriter, r *http.Request) {
	if sess, err := h.loadSession(r); err == nil {
		if err := h.svc.Logout(r.Context(), sess); err != nil {
			log.Printf("logout [%s]: %v", requestIDFromContext(r.Context()), err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

// dashboardPage handles GET /.
func (h *Handler) dashboardPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	res, err := h.svc.Dashboard(r.Context(), sess)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	// Dashboard refreshes the cached profile; show the fresh one.
	sess.User = res.User
	h.render(w, r, http.StatusOK, "dashboard", h.buildAppLayoutData(r, "Dashboard", "dashboard"), res.Dashboard)
}

// ── Invoices ──────────────────────────────────────────────────────────────────

type invoicesPage struct {
	Admin bool
	List  core.InvoiceList
	Tab   string
}

// invoicesListPage handles GET /invoices. Companies pick a tab with ?tab=inbound.
func (h *Handler) invoicesListPage(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListInvoices(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	tab := string(core.Outbound)
	if r.URL.Query().Get("tab") == string(core.Inbound) {
		tab = string(core.Inbound)
	}
	page := invoicesPage{Admin: res.Admin, List: res.List, Tab: tab}
	h.render(w, r, http.StatusOK, "invoices", h.buildAppLayoutData(r, "Invoices", "invoices"), page)
}

// invoiceDetailPage handles GET /invoices/{id}.
func (h *Handler) invoiceDetailPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), sessionFromContext(r.Context()), id)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "invoice", h.buildAppLayoutData(r, "Invoice "+inv.Number, "invoices"), inv)
}

// invoicePDF handles GET /invoices/{id}/pdf by streaming the backend PDF.
func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	pdf, err := h.svc.InvoicePDF(r.Context(), sessionFromContext(r.Context()), id)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	defer pdf.Body.Close()
	w.Header().Set("Content-Type", pdf.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pdf.Filename))
	if _, err := io.Copy(w, pdf.Body); err != nil {
		log.Printf("pdf %d [%s]: %v", id, requestIDFromContext(r.Context()), err)
	}
}

// invoiceDeleteAction handles POST /invoices/{id}/delete.
func (h *Handler) invoiceDeleteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), sessionFromContext(r.Context()), id); err != nil {
		h.redirectFlash(w, r, fmt.Sprintf("/invoices/%d", id), "", app.Message(err))
		return
	}
	h.redirectFlash(w, r, "/invoices", "Invoice deleted.", "")
}

// invoiceEmailAction handles POST /invoices/{id}/email.
func (h *Handler) invoiceEmailAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	target := fmt.Sprintf("/invoices/%d", id)
	if err := r.ParseForm(); err != nil {
		h.redirectFlash(w, r, target, "", "Invalid form submission.")
		return
	}
	address := strings.TrimSpace(r.FormValue("email"))
	if err := h.svc.SendInvoiceEmail(r.Context(), sessionFromContext(r.Context()), id, address); err != nil {
		h.redirectFlash(w, r, target, "", app.Message(err))
		return
	}
	h.redirectFlash(w, r, target, "Invoice sent.", "")
}

// invoicesExport handles GET /invoices/export.xlsx.
func (h *Handler) invoicesExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(time.Now())))
	// Headers are only committed once the workbook starts streaming; a failed
	// fetch still gets a proper error page.
	buf := &lazyWriter{w: w}
	if err := h.svc.ExportInvoices(r.Context(), sessionFromContext(r.Context()), buf); err != nil {
		if buf.started {
			log.Printf("export [%s]: %v", requestIDFromContext(r.Context()), err)
			return
		}
		w.Header().Del("Content-Disposition")
		h.pageError(w, r, err)
	}
}

// lazyWriter records whether anything was written through it.
type lazyWriter struct {
	w       io.Writer
	started bool
}

func (l *lazyWriter) Write(p []byte) (int, error) {
	l.started = true
	return l.w.Write(p)
}

// ── Products ──────────────────────────────────────────────────────────────────

type productForm struct {
	Code         string
	Name         string
	MaterialType string
	OwnerUserID  int
}

type productsPage struct {
	Products  []core.Product
	Form      productForm
	Errors    core.ValidationErrors
	Companies []core.User
}

// productsPage handles GET /products.
func (h *Handler) productsPage(w http.ResponseWriter, r *http.Request) {
	h.renderProducts(w, r, http.StatusOK, productForm{}, nil)
}

// productCreateAction handles POST /products.
func (h *Handler) productCreateAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectFlash(w, r, "/products", "", "Invalid form submission.")
		return
	}
	form := productForm{
		Code:         strings.TrimSpace(r.FormValue("code")),
		Name:         strings.TrimSpace(r.FormValue("name")),
		MaterialType: strings.TrimSpace(r.FormValue("material_type")),
	}
	form.OwnerUserID, _ = strconv.Atoi(r.FormValue("owner_user_id"))

	_, err := h.svc.CreateProduct(r.Context(), sessionFromContext(r.Context()), app.CreateProductRequest{
		Name:         form.Name,
		Code:         form.Code,
		MaterialType: form.MaterialType,
		OwnerUserID:  form.OwnerUserID,
	})
	if err != nil {
		var verrs core.ValidationErrors
		if errors.As(err, &verrs) {
			h.renderProducts(w, r, http.StatusUnprocessableEntity, form, verrs)
			return
		}
		h.redirectFlash(w, r, "/products", "", app.Message(err))
		return
	}
	h.redirectFlash(w, r, "/products", "Product added.", "")
}

// productDeleteAction handles POST /products/{id}/delete.
func (h *Handler) productDeleteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), sessionFromContext(r.Context()), id); err != nil {
		h.redirectFlash(w, r, "/products", "", app.Message(err))
		return
	}
	h.redirectFlash(w, r, "/products", "Product deleted.", "")
}

func (h *Handler) renderProducts(w http.ResponseWriter, r *http.Request, status int, form productForm, errs core.ValidationErrors) {
	sess := sessionFromContext(r.Context())
	products, err := h.svc.ListProducts(r.Context(), sess)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	page := productsPage{Products: products, Form: form, Errors: errs}
	if core.IsAdmin(sess.Actor()) {
		users, err := h.svc.ListUsers(r.Context(), sess)
		if err != nil {
			h.pageError(w, r, err)
			return
		}
		for _, u := range users {
			if u.IsCompany() {
				page.Companies = append(page.Companies, u)
			}
		}
	}
	h.render(w, r, status, "products", h.buildAppLayoutData(r, "Products", "products"), page)
}

// ── Users (admin) ─────────────────────────────────────────────────────────────

// usersPage handles GET /admin/users.
func (h *Handler) usersPage(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "users", h.buildAppLayoutData(r, "Users", "users"), users)
}

// userVerifyAction handles POST /admin/users/{id}/verify.
func (h *Handler) userVerifyAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirectFlash(w, r, "/admin/users", "", "Invalid form submission.")
		return
	}
	verified := r.FormValue("verified") == "true"
	u, err := h.svc.VerifyUser(r.Context(), sessionFromContext(r.Context()), id, verified)
	if err != nil {
		h.redirectFlash(w, r, "/admin/users", "", app.Message(err))
		return
	}
	msg := u.Name + " verified."
	if !u.Verified {
		msg = u.Name + " is no longer verified."
	}
	h.redirectFlash(w, r, "/admin/users", msg, "")
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// buildAppLayoutData constructs AppLayoutData from the session in the request
// context and the flash / flash_error query parameters.
func (h *Handler) buildAppLayoutData(r *http.Request, title, activeNav string) layouts.AppLayoutData {
	d := layouts.AppLayoutData{Title: title, ActiveNav: activeNav}
	if sess := sessionFromContext(r.Context()); sess != nil {
		fillUser(&d, sess)
	}

	q := r.URL.Query()
	if msg := q.Get("flash_error"); msg != "" {
		d.FlashMsg, d.FlashKind = msg, "error"
	} else if msg := q.Get("flash"); msg != "" {
		d.FlashMsg, d.FlashKind = msg, "success"
	}
	return d
}

func fillUser(d *layouts.AppLayoutData, sess *session.Session) {
	d.UserName = sess.User.Name
	d.UserEmail = sess.User.Email
	d.SignedIn = true
	d.Admin = core.IsAdmin(sess.Actor())
	d.Verified = sess.User.Verified
	if sess.User.PIB != nil {
		d.PIB = *sess.User.PIB
	}
}

// redirectFlash redirects to target with a success or error flash message.
func (h *Handler) redirectFlash(w http.ResponseWriter, r *http.Request, target, msg, errMsg string) {
	q := url.Values{}
	if errMsg != "" {
		q.Set("flash_error", errMsg)
	} else if msg != "" {
		q.Set("flash", msg)
	}
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// pageError renders a service error for a browser route. An expired backend
// session sends the user back to /login.
func (h *Handler) pageError(w http.ResponseWriter, r *http.Request, err error) {
	status := app.StatusOf(err)
	if status == http.StatusUnauthorized {
		h.clearSessionCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if status == http.StatusBadGateway {
		log.Printf("backend error [%s]: %v", requestIDFromContext(r.Context()), err)
	}
	http.Error(w, app.Message(err), status)
}
