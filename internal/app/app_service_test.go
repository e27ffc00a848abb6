package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"efakture/internal/ai"
	"efakture/internal/app"
	"efakture/internal/backend"
	"efakture/internal/core"
	"efakture/internal/session"

	"github.com/shopspring/decimal"
)

type fakeBackend struct {
	*httptest.Server
	verified   atomic.Bool
	expired    atomic.Bool
	created    atomic.Int32
	lastCreate atomic.Pointer[core.CreateInvoicePayload]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newFakeBackend serves a company account "acme" (PIB 123456789) and an
// admin account "admin". Tokens are the account names.
func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	fb.verified.Store(true)

	users := map[string]map[string]any{
		"acme":  {"id": 7, "name": "Acme", "role": "company", "pib": "123456789"},
		"admin": {"id": 1, "name": "Admin", "role": "admin", "verified": true},
	}
	userFor := func(r *http.Request) (map[string]any, bool) {
		ck, err := r.Cookie(backend.DefaultCookieName)
		if err != nil || fb.expired.Load() {
			return nil, false
		}
		u, ok := users[ck.Value]
		if !ok {
			return nil, false
		}
		out := map[string]any{}
		for k, v := range u {
			out[k] = v
		}
		if out["role"] == "company" {
			out["verified"] = fb.verified.Load()
		}
		return out, true
	}
	authed := func(h func(http.ResponseWriter, *http.Request, map[string]any)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			u, ok := userFor(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
				return
			}
			h(w, r, u)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: backend.DefaultCookieName, Value: body["email"]})
		r.AddCookie(&http.Cookie{Name: backend.DefaultCookieName, Value: body["email"]})
		u, _ := userFor(r)
		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	})
	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "taken" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Email already registered"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: backend.DefaultCookieName, Value: "acme"})
		writeJSON(w, http.StatusCreated, map[string]any{"user": map[string]any{
			"id": 8, "name": body["name"], "role": body["role"], "pib": body["pib"], "verified": false,
		}})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	mux.HandleFunc("GET /api/auth/me", authed(func(w http.ResponseWriter, r *http.Request, u map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	}))
	mux.HandleFunc("GET /api/products", authed(func(w http.ResponseWriter, r *http.Request, u map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
			{"id": 1, "name": "Cement", "code": "C-1"},
			{"id": 2, "name": "Sand", "code": "S-1"},
		}})
	}))
	mux.HandleFunc("POST /api/products", authed(func(w http.ResponseWriter, r *http.Request, u map[string]any) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, map[string]any{"product": body})
	}))
	mux.HandleFunc("GET /api/invoices", authed(func(w http.ResponseWriter, r *http.Request, u map[string]any) {
		if u["role"] == "admin" {
			writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
				{"id": 1, "total_amount": 100, "status": "sent", "currency": "RSD"},
			}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"outbound": []map[string]any{
				{"id": 1, "total_amount": 100, "status": "sent", "currency": "RSD"},
				{"id": 2, "total_amount": "40", "status": "paid", "currency": "RSD"},
			},
			"inbound": []map[string]any{
				{"id": 3, "total_amount": 30, "status": "draft", "currency": "EUR"},
			},
		})
	}))
	mux.HandleFunc("POST /api/invoices", authed(func(w http.ResponseWriter, r *http.Request, u map[string]any) {
		var p core.CreateInvoicePayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		fb.lastCreate.Store(&p)
		fb.created.Add(1)
		writeJSON(w, http.StatusCreated, map[string]any{"invoice": map[string]any{"id": 9, "number": p.Number}})
	}))
	mux.HandleFunc("GET /api/invoices/{id}", authed(func(w http.ResponseWriter, r *http.Request, u map[string]any) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
	}))
	mux.HandleFunc("GET /api/users", authed(func(w http.ResponseWriter, r *http.Request, u map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{u}})
	}))

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func newService(t *testing.T, drafts ai.DraftSuggester) (app.ApplicationService, *fakeBackend, session.Store) {
	fb := newFakeBackend(t)
	store := session.NewMemoryStore(time.Hour)
	return app.NewAppService(backend.New(fb.URL), store, drafts), fb, store
}

func login(t *testing.T, svc app.ApplicationService, who string) *session.Session {
	t.Helper()
	sess, err := svc.Login(context.Background(), who, "secret")
	if err != nil {
		t.Fatalf("Login(%s): %v", who, err)
	}
	return sess
}

func validDraft() core.InvoiceDraft {
	d := core.NewDraft()
	d.Number = "F-1"
	d.IssueDate = "2025-02-01"
	d.RecipientPIB = "987654321"
	d.Items = []core.LineItem{
		{ProductID: 1, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100), TaxRate: 20},
		{ProductID: 2, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50), TaxRate: 0},
	}
	return d
}

func TestLoginAndSession(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "acme", "wrong"); !backend.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401, got %v", err)
	}

	sess := login(t, svc, "acme")
	if sess.BackendToken != "acme" || sess.User.ID != 7 {
		t.Errorf("unexpected session %+v", sess)
	}
	got, err := svc.Session(ctx, sess.ID)
	if err != nil || got.ID != sess.ID {
		t.Errorf("Session: %+v %v", got, err)
	}

	if err := svc.Logout(ctx, sess); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Session(ctx, sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected session gone, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, app.RegisterRequest{Name: "Beta", Email: "beta", Password: "x", PIB: "123"})
	var verrs core.ValidationErrors
	if !errors.As(err, &verrs) || verrs[0].Field != "pib" {
		t.Fatalf("expected pib validation error, got %v", err)
	}

	_, err = svc.Register(ctx, app.RegisterRequest{Name: "Beta", Email: "taken", Password: "x", PIB: "123456789"})
	if app.StatusOf(err) != http.StatusConflict || app.Message(err) != "Email already registered" {
		t.Errorf("expected 409 passthrough, got %v", err)
	}

	sess, err := svc.Register(ctx, app.RegisterRequest{Name: "Beta", Email: "beta", Password: "x", PIB: "123456789"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.User.Role != core.RoleCompany || sess.User.Verified {
		t.Errorf("new company must be unverified: %+v", sess.User)
	}
}

func TestDashboard_Company(t *testing.T) {
	svc, fb, store := newService(t, nil)
	ctx := context.Background()

	fb.verified.Store(false)
	sess := login(t, svc, "acme")

	res, err := svc.Dashboard(ctx, sess)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if !res.Dashboard.PendingVerification {
		t.Fatal("expected pending verification")
	}

	// Admin verifies the company; the next load picks it up.
	fb.verified.Store(true)
	res, err = svc.Dashboard(ctx, sess)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	d := res.Dashboard
	if d.PendingVerification || d.ProductCount != 2 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if got := d.Outbound.Open.Label(); got != "100.00 RSD" {
		t.Errorf("outbound open: %q", got)
	}
	if got := d.Inbound.Open.Label(); got != "30.00 EUR" {
		t.Errorf("inbound open: %q", got)
	}
	stored, _ := store.Get(ctx, sess.ID)
	if !stored.User.Verified {
		t.Error("session profile should be refreshed")
	}
}

func TestDashboard_Admin(t *testing.T) {
	svc, _, _ := newService(t, nil)
	res, err := svc.Dashboard(context.Background(), login(t, svc, "admin"))
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if !res.Dashboard.Admin || res.Dashboard.All.Count != 1 {
		t.Errorf("unexpected dashboard %+v", res.Dashboard)
	}
}

func TestExpiredBackendSession(t *testing.T) {
	svc, fb, _ := newService(t, nil)
	ctx := context.Background()
	sess := login(t, svc, "acme")

	fb.expired.Store(true)
	_, err := svc.ListInvoices(ctx, sess)
	if !errors.Is(err, app.ErrUnauthorized) || app.StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Session(ctx, sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("local session should be dropped, got %v", err)
	}
}

func TestPreviewDraft(t *testing.T) {
	svc, _, _ := newService(t, nil)
	sess := login(t, svc, "acme")

	p := svc.PreviewDraft(sess, validDraft())
	if !p.Valid() {
		t.Fatalf("unexpected errors %v", p.Errors)
	}
	if p.Exclusive != "250.00" || p.Tax != "40.00" || p.Inclusive != "290.00" {
		t.Errorf("totals: %s / %s / %s", p.Exclusive, p.Tax, p.Inclusive)
	}
	if p.Lines[0].UnitPriceWithTax != "120.00" || p.Lines[0].Inclusive != "240.00" {
		t.Errorf("line 0: %+v", p.Lines[0])
	}
	if len(p.Statuses) != 2 {
		t.Errorf("company statuses: %v", p.Statuses)
	}

	d := validDraft()
	d.Status = core.StatusPaid
	p = svc.PreviewDraft(sess, d)
	if _, ok := p.Errors.Get("status"); !ok {
		t.Errorf("company must not set paid: %v", p.Errors)
	}
}

func TestCreateInvoice(t *testing.T) {
	svc, fb, _ := newService(t, nil)
	ctx := context.Background()
	sess := login(t, svc, "acme")

	bad := validDraft()
	bad.RecipientPIB = "12345"
	_, err := svc.CreateInvoice(ctx, sess, bad)
	if app.StatusOf(err) != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
	if fb.created.Load() != 0 {
		t.Fatal("invalid draft must not reach the backend")
	}

	inv, err := svc.CreateInvoice(ctx, sess, validDraft())
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	sent := fb.lastCreate.Load()
	if inv.ID != 9 || sent.Number != "F-1" || len(sent.Items) != 2 {
		t.Errorf("unexpected result %+v / %+v", inv, sent)
	}
}

func TestForbiddenPassthrough(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()
	sess := login(t, svc, "acme")

	_, err := svc.GetInvoice(ctx, sess, 5)
	if app.StatusOf(err) != http.StatusForbidden {
		t.Errorf("expected 403 passthrough, got %v", err)
	}
	if _, err := svc.ListUsers(ctx, sess); !errors.Is(err, app.ErrForbidden) {
		t.Errorf("company must not list users, got %v", err)
	}
	if users, err := svc.ListUsers(ctx, login(t, svc, "admin")); err != nil || len(users) != 1 {
		t.Errorf("admin ListUsers: %v %v", users, err)
	}
}

func TestCreateProduct(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, login(t, svc, "admin"), app.CreateProductRequest{Name: "Cement", Code: "C-1"})
	var verrs core.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("admin without owner: expected validation error, got %v", err)
	}
	if _, ok := verrs.Get("owner_user_id"); !ok {
		t.Errorf("expected owner_user_id error, got %v", verrs)
	}

	p, err := svc.CreateProduct(ctx, login(t, svc, "acme"), app.CreateProductRequest{Name: " Lime ", Code: "L-1", MaterialType: "bulk"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if p.Name != "Lime" || p.MaterialType == nil || *p.MaterialType != "bulk" {
		t.Errorf("unexpected product %+v", p)
	}
}

type stubSuggester struct{ s *ai.DraftSuggestion }

func (f stubSuggester) SuggestDraft(context.Context, string, []core.Product) (*ai.DraftSuggestion, error) {
	return f.s, nil
}

func TestSuggestDraft(t *testing.T) {
	ctx := context.Background()

	svc, _, _ := newService(t, nil)
	if _, err := svc.SuggestDraft(ctx, login(t, svc, "acme"), app.SuggestDraftRequest{Description: "x"}); !errors.Is(err, app.ErrAIUnavailable) {
		t.Errorf("expected ErrAIUnavailable, got %v", err)
	}

	svc, _, _ = newService(t, stubSuggester{&ai.DraftSuggestion{
		Currency:  "RSD",
		Items:     []ai.SuggestedItem{{ProductID: 1, Qty: "3", UnitPrice: "10", TaxRate: 10}},
		Reasoning: "three bags",
	}})
	base := validDraft()
	p, err := svc.SuggestDraft(ctx, login(t, svc, "acme"), app.SuggestDraftRequest{Description: "3 bags of cement", Draft: base})
	if err != nil {
		t.Fatalf("SuggestDraft: %v", err)
	}
	if p.Inclusive != "33.00" || p.Reasoning != "three bags" || p.Draft.Items[0].Name != "Cement" {
		t.Errorf("unexpected preview %+v", p)
	}
}

func TestExportInvoices(t *testing.T) {
	svc, _, _ := newService(t, nil)
	var buf bytes.Buffer
	if err := svc.ExportInvoices(context.Background(), login(t, svc, "acme"), &buf); err != nil {
		t.Fatalf("ExportInvoices: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty workbook")
	}
}
