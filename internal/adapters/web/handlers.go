package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"

	"efakture/internal/app"
	webui "efakture/web"

	"github.com/go-chi/chi/v5"
)

// Options configures the HTTP adapter.
type Options struct {
	AllowedOrigins string // comma-separated CORS origins; empty disables CORS
	JWTSecret      string // HMAC key of the session cookie
	CookieSecure   bool   // set the Secure flag on the session cookie
}

// Handler holds the ApplicationService, the chi router, and the page templates.
type Handler struct {
	svc          app.ApplicationService
	router       chi.Router
	pages        *renderer
	jwtSecret    string
	cookieSecure bool
	fileServer   http.Handler
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) (http.Handler, error) {
	staticFS, err := fs.Sub(webui.Static, "static")
	if err != nil {
		return nil, fmt.Errorf("web/static embed sub-FS failed: %w", err)
	}
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		svc:          svc,
		pages:        pages,
		jwtSecret:    opts.JWTSecret,
		cookieSecure: opts.CookieSecure,
		fileServer:   http.FileServer(http.FS(staticFS)),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Static files served at /static/* ─────────────────────────────────────
	r.Get("/static/*", func(w http.ResponseWriter, req *http.Request) {
		http.StripPrefix("/static", h.fileServer).ServeHTTP(w, req)
	})

	// ── Auth (public API) ─────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20))
		r.Post("/api/auth/login", h.apiLogin)
		r.Post("/api/auth/register", h.apiRegister)
		r.Post("/api/auth/logout", h.apiLogout)
	})

	// ── Browser login/register/logout (public HTML) ──────────────────────────
	r.Get("/login", h.loginPage)
	r.Post("/login", h.loginFormSubmit)
	r.Get("/register", h.registerPage)
	r.Post("/register", h.registerFormSubmit)
	r.Post("/logout", h.logoutPage)

	// ── Protected browser routes (redirect to /login if unauthenticated) ─────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuthBrowser)
		r.Get("/", h.dashboardPage)
		r.Get("/invoices", h.invoicesListPage)
		r.Get("/invoices/export.xlsx", h.invoicesExport)
		r.Get("/invoices/new", h.invoiceNewPage)
		r.Post("/invoices/new", h.invoiceNewAction)
		r.Get("/invoices/{id}", h.invoiceDetailPage)
		r.Get("/invoices/{id}/pdf", h.invoicePDF)
		r.Post("/invoices/{id}/delete", h.invoiceDeleteAction)
		r.Post("/invoices/{id}/email", h.invoiceEmailAction)
		r.Get("/products", h.productsPage)
		r.Post("/products", h.productCreateAction)
		r.Post("/products/{id}/delete", h.productDeleteAction)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdminBrowser)
			r.Get("/admin/users", h.usersPage)
			r.Post("/admin/users/{id}/verify", h.userVerifyAction)
		})
	})

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.apiMe)
		r.Get("/api/dashboard", h.apiDashboard)

		r.Get("/api/invoices", h.apiListInvoices)
		r.Post("/api/invoices", h.apiCreateInvoice)
		r.Post("/api/invoices/preview", h.apiPreviewInvoice)
		r.Post("/api/invoices/suggest", h.apiSuggestInvoice)
		r.Get("/api/invoices/next-number", h.apiNextInvoiceNumber)
		r.Get("/api/invoices/{id}", h.apiGetInvoice)
		r.Delete("/api/invoices/{id}", h.apiDeleteInvoice)
		r.Post("/api/invoices/{id}/send-email", h.apiSendInvoiceEmail)

		r.Get("/api/products", h.apiListProducts)
		r.Post("/api/products", h.apiCreateProduct)
		r.Delete("/api/products/{id}", h.apiDeleteProduct)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/api/users", h.apiListUsers)
			r.Patch("/api/users/{id}/verify", h.apiVerifyUser)
		})
	})

	h.router = r
	return r, nil
}

// health reports that the server is up. It does not call the backend.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
