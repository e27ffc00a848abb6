package app

import (
	"context"
	"io"

	"efakture/internal/core"
	"efakture/internal/session"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from the backend client and the calculation core.
// Implementations must contain no display logic of any kind.
//
// Every call except Login, Register and Session acts on behalf of a signed-in
// session. When the backend reports the session as expired, the session is
// removed and ErrUnauthorized is returned.
type ApplicationService interface {
	// Login authenticates against the backend and opens a session.
	Login(ctx context.Context, email, password string) (*session.Session, error)

	// Register creates an account and opens a session for it.
	Register(ctx context.Context, req RegisterRequest) (*session.Session, error)

	// Logout ends the backend session and removes the local one.
	Logout(ctx context.Context, sess *session.Session) error

	// Session loads an open session by ID.
	Session(ctx context.Context, id string) (*session.Session, error)

	// Profile returns the current user as the backend sees it and refreshes the
	// cached profile in the session.
	Profile(ctx context.Context, sess *session.Session) (*core.User, error)

	// Dashboard fetches products and invoices concurrently and aggregates them.
	Dashboard(ctx context.Context, sess *session.Session) (*DashboardResult, error)

	// ListInvoices returns the invoices visible to the user.
	ListInvoices(ctx context.Context, sess *session.Session) (*InvoiceListResult, error)

	// GetInvoice returns one invoice with its backend-computed line figures.
	GetInvoice(ctx context.Context, sess *session.Session, id int) (*core.Invoice, error)

	// PreviewDraft computes totals and validation errors without calling the backend.
	PreviewDraft(sess *session.Session, draft core.InvoiceDraft) *DraftPreview

	// CreateInvoice validates the draft and submits it. A draft that fails
	// validation is returned as core.ValidationErrors and never reaches the backend.
	CreateInvoice(ctx context.Context, sess *session.Session, draft core.InvoiceDraft) (*core.Invoice, error)

	// NextInvoiceNumber asks the backend for the next free invoice number
	// towards recipientPIB.
	NextInvoiceNumber(ctx context.Context, sess *session.Session, recipientPIB string) (string, error)

	DeleteInvoice(ctx context.Context, sess *session.Session, id int) error

	// SendInvoiceEmail asks the backend to email the invoice PDF.
	SendInvoiceEmail(ctx context.Context, sess *session.Session, id int, address string) error

	// InvoicePDF opens the backend-rendered PDF. The caller must close the result.
	InvoicePDF(ctx context.Context, sess *session.Session, id int) (*PDFResult, error)

	// ExportInvoices writes the visible invoices and dashboard figures as XLSX.
	ExportInvoices(ctx context.Context, sess *session.Session, w io.Writer) error

	ListProducts(ctx context.Context, sess *session.Session) ([]core.Product, error)
	CreateProduct(ctx context.Context, sess *session.Session, req CreateProductRequest) (*core.Product, error)
	DeleteProduct(ctx context.Context, sess *session.Session, id int) error

	// ListUsers returns all accounts. Admin only.
	ListUsers(ctx context.Context, sess *session.Session) ([]core.User, error)

	// VerifyUser sets the verified flag of a company account. Admin only.
	VerifyUser(ctx context.Context, sess *session.Session, id int, verified bool) (*core.User, error)

	// SuggestDraft asks the draft assistant for line items and returns the
	// preview of the resulting draft. Returns ErrAIUnavailable when no assistant
	// is configured.
	SuggestDraft(ctx context.Context, sess *session.Session, req SuggestDraftRequest) (*DraftPreview, error)
}
