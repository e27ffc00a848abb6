package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"efakture/internal/ai"
	"efakture/internal/backend"
	"efakture/internal/core"
	"efakture/internal/export"
	"efakture/internal/session"

	"golang.org/x/sync/errgroup"
)

type appService struct {
	backend  *backend.Client
	sessions session.Store
	drafts   ai.DraftSuggester
}

// NewAppService constructs an appService that satisfies ApplicationService.
// drafts may be nil, in which case SuggestDraft returns ErrAIUnavailable.
func NewAppService(client *backend.Client, sessions session.Store, drafts ai.DraftSuggester) ApplicationService {
	return &appService{
		backend:  client,
		sessions: sessions,
		drafts:   drafts,
	}
}

// client returns a backend client authenticated as sess.
func (s *appService) client(sess *session.Session) *backend.Client {
	return s.backend.WithToken(sess.BackendToken)
}

// check turns a backend 401 into ErrUnauthorized and drops the local session.
func (s *appService) check(ctx context.Context, sess *session.Session, err error) error {
	if err == nil {
		return nil
	}
	if backend.IsStatus(err, http.StatusUnauthorized) {
		if delErr := s.sessions.Delete(ctx, sess.ID); delErr != nil {
			return fmt.Errorf("%w (drop session: %v)", ErrUnauthorized, delErr)
		}
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return err
}

func requireAdmin(sess *session.Session) error {
	if !core.IsAdmin(sess.Actor()) {
		return ErrForbidden
	}
	return nil
}

// ── Auth ──────────────────────────────────────────────────────────────────────

func (s *appService) Login(ctx context.Context, email, password string) (*session.Session, error) {
	user, authed, err := s.backend.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, authed.Token(), *user)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return sess, nil
}

func (s *appService) Register(ctx context.Context, req RegisterRequest) (*session.Session, error) {
	role := req.Role
	if role == "" {
		role = core.RoleCompany
	}
	company := core.User{Role: role}.IsCompany()
	pib := strings.TrimSpace(req.PIB)
	if company && !core.ValidPIB(pib) {
		return nil, core.ValidationErrors{{Field: "pib", Message: "PIB must be exactly 9 digits"}}
	}
	if !company {
		pib = ""
	}

	user, authed, err := s.backend.Register(ctx, backend.RegisterRequest{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Role:     role,
		PIB:      pib,
	})
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, authed.Token(), *user)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return sess, nil
}

func (s *appService) Logout(ctx context.Context, sess *session.Session) error {
	// The backend session may already be gone; the local one is removed regardless.
	backendErr := s.client(sess).Logout(ctx)
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return err
	}
	if backendErr != nil && !backend.IsStatus(backendErr, http.StatusUnauthorized) {
		return backendErr
	}
	return nil
}

func (s *appService) Session(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Get(ctx, id)
}

func (s *appService) Profile(ctx context.Context, sess *session.Session) (*core.User, error) {
	user, err := s.client(sess).Me(ctx)
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	if err := s.sessions.UpdateUser(ctx, sess.ID, *user); err != nil && !errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("update session: %w", err)
	}
	sess.User = *user
	return user, nil
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

func (s *appService) Dashboard(ctx context.Context, sess *session.Session) (*DashboardResult, error) {
	c := s.client(sess)

	var (
		user     *core.User
		products []core.Product
		list     *core.InvoiceList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = c.Me(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = c.ListProducts(gctx)
		if err != nil {
			return fmt.Errorf("products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		list, err = c.ListInvoices(gctx)
		if err != nil {
			return fmt.Errorf("invoices: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.check(ctx, sess, err)
	}

	// The verified flag may have changed since sign-in.
	if user.Verified != sess.User.Verified {
		if err := s.sessions.UpdateUser(ctx, sess.ID, *user); err != nil && !errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("update session: %w", err)
		}
	}
	sess.User = *user

	return &DashboardResult{
		User:      *user,
		Dashboard: core.BuildDashboard(core.ActorFor(user), products, *list),
	}, nil
}

// ── Invoices ──────────────────────────────────────────────────────────────────

func (s *appService) ListInvoices(ctx context.Context, sess *session.Session) (*InvoiceListResult, error) {
	list, err := s.client(sess).ListInvoices(ctx)
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return &InvoiceListResult{Admin: core.IsAdmin(sess.Actor()), List: *list}, nil
}

func (s *appService) GetInvoice(ctx context.Context, sess *session.Session, id int) (*core.Invoice, error) {
	inv, err := s.client(sess).GetInvoice(ctx, id)
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return inv, nil
}

func (s *appService) PreviewDraft(sess *session.Session, draft core.InvoiceDraft) *DraftPreview {
	return Preview(sess.Actor(), draft)
}

// Preview computes the totals of draft and validates it for actor. It is pure
// and needs no backend.
func Preview(actor core.Actor, draft core.InvoiceDraft) *DraftPreview {
	permitted := core.PermittedStatuses(actor)

	lines := make([]LineTotals, len(draft.Items))
	for i, it := range draft.Items {
		t := core.ComputeLineTotals(it).Rounded()
		lines[i] = LineTotals{
			Item:             it,
			UnitPriceWithTax: core.UnitPriceWithTax(it).StringFixed(2),
			Exclusive:        t.Exclusive.StringFixed(2),
			Inclusive:        t.Inclusive.StringFixed(2),
		}
	}
	totals := core.ComputeInvoiceTotals(draft.Items).Rounded()

	return &DraftPreview{
		Draft:     draft,
		Lines:     lines,
		Exclusive: totals.Exclusive.StringFixed(2),
		Tax:       totals.Tax().StringFixed(2),
		Inclusive: totals.Inclusive.StringFixed(2),
		Errors:    core.ValidateDraft(draft, permitted),
		Statuses:  permitted.Strings(),
	}
}

func (s *appService) CreateInvoice(ctx context.Context, sess *session.Session, draft core.InvoiceDraft) (*core.Invoice, error) {
	if errs := core.ValidateDraft(draft, core.PermittedStatuses(sess.Actor())); errs != nil {
		return nil, errs
	}
	inv, err := s.client(sess).CreateInvoice(ctx, draft.Payload())
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return inv, nil
}

func (s *appService) NextInvoiceNumber(ctx context.Context, sess *session.Session, recipientPIB string) (string, error) {
	if !core.ValidPIB(recipientPIB) {
		return "", core.ValidationErrors{{Field: "recipient_pib", Message: "recipient PIB must be exactly 9 digits"}}
	}
	n, err := s.client(sess).GenerateInvoiceNumber(ctx, strings.TrimSpace(recipientPIB))
	if err != nil {
		return "", s.check(ctx, sess, err)
	}
	return n, nil
}

func (s *appService) DeleteInvoice(ctx context.Context, sess *session.Session, id int) error {
	return s.check(ctx, sess, s.client(sess).DeleteInvoice(ctx, id))
}

func (s *appService) SendInvoiceEmail(ctx context.Context, sess *session.Session, id int, address string) error {
	return s.check(ctx, sess, s.client(sess).SendInvoiceEmail(ctx, id, strings.TrimSpace(address)))
}

func (s *appService) InvoicePDF(ctx context.Context, sess *session.Session, id int) (*PDFResult, error) {
	body, contentType, err := s.client(sess).InvoicePDF(ctx, id)
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return &PDFResult{
		Body:        body,
		ContentType: contentType,
		Filename:    fmt.Sprintf("invoice-%d.pdf", id),
	}, nil
}

func (s *appService) ExportInvoices(ctx context.Context, sess *session.Session, w io.Writer) error {
	list, err := s.client(sess).ListInvoices(ctx)
	if err != nil {
		return s.check(ctx, sess, err)
	}
	return export.Write(w, sess.Actor(), *list)
}

// ── Products ──────────────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context, sess *session.Session) ([]core.Product, error) {
	products, err := s.client(sess).ListProducts(ctx)
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return products, nil
}

func (s *appService) CreateProduct(ctx context.Context, sess *session.Session, req CreateProductRequest) (*core.Product, error) {
	var errs core.ValidationErrors
	name, code := strings.TrimSpace(req.Name), strings.TrimSpace(req.Code)
	if name == "" {
		errs = append(errs, core.FieldError{Field: "name", Message: "name is required"})
	}
	if code == "" {
		errs = append(errs, core.FieldError{Field: "code", Message: "code is required"})
	}
	if core.IsAdmin(sess.Actor()) && req.OwnerUserID <= 0 {
		errs = append(errs, core.FieldError{Field: "owner_user_id", Message: "select the company that owns the product"})
	}
	if errs != nil {
		return nil, errs
	}

	in := backend.ProductInput{Name: name, Code: code}
	if mt := strings.TrimSpace(req.MaterialType); mt != "" {
		in.MaterialType = &mt
	}
	if req.OwnerUserID > 0 {
		owner := req.OwnerUserID
		in.OwnerUserID = &owner
	}
	p, err := s.client(sess).CreateProduct(ctx, in)
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return p, nil
}

func (s *appService) DeleteProduct(ctx context.Context, sess *session.Session, id int) error {
	return s.check(ctx, sess, s.client(sess).DeleteProduct(ctx, id))
}

// ── Users (admin) ─────────────────────────────────────────────────────────────

func (s *appService) ListUsers(ctx context.Context, sess *session.Session) ([]core.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	users, err := s.client(sess).ListUsers(ctx)
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return users, nil
}

func (s *appService) VerifyUser(ctx context.Context, sess *session.Session, id int, verified bool) (*core.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	u, err := s.client(sess).VerifyUser(ctx, id, verified)
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	return u, nil
}

// ── Draft assistant ───────────────────────────────────────────────────────────

func (s *appService) SuggestDraft(ctx context.Context, sess *session.Session, req SuggestDraftRequest) (*DraftPreview, error) {
	if s.drafts == nil {
		return nil, ErrAIUnavailable
	}
	catalog, err := s.client(sess).ListProducts(ctx)
	if err != nil {
		return nil, s.check(ctx, sess, err)
	}
	suggestion, err := s.drafts.SuggestDraft(ctx, req.Description, catalog)
	if err != nil {
		return nil, fmt.Errorf("draft assistant: %w", err)
	}
	preview := s.PreviewDraft(sess, suggestion.Apply(req.Draft, catalog))
	preview.Reasoning = suggestion.Reasoning
	return preview, nil
}
