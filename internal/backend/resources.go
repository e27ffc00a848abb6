package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"efakture/internal/core"
)

// ── Invoices ──────────────────────────────────────────────────────────────────

type invoiceEnvelope struct {
	Invoice core.Invoice `json:"invoice"`
}

// ListInvoices returns the invoices visible to the signed-in user. Admins get
// Items; companies get Outbound and Inbound.
func (c *Client) ListInvoices(ctx context.Context) (*core.InvoiceList, error) {
	var list core.InvoiceList
	if _, err := c.do(ctx, http.MethodGet, "/api/invoices", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) GetInvoice(ctx context.Context, id int) (*core.Invoice, error) {
	var env invoiceEnvelope
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/invoices/%d", id), nil, &env); err != nil {
		return nil, err
	}
	return &env.Invoice, nil
}

// CreateInvoice submits a normalized draft and returns the stored invoice.
func (c *Client) CreateInvoice(ctx context.Context, payload core.CreateInvoicePayload) (*core.Invoice, error) {
	var env invoiceEnvelope
	if _, err := c.do(ctx, http.MethodPost, "/api/invoices", payload, &env); err != nil {
		return nil, err
	}
	return &env.Invoice, nil
}

func (c *Client) DeleteInvoice(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/invoices/%d", id), nil, nil)
	return err
}

// SendInvoiceEmail asks the backend to email the invoice PDF. An empty
// address lets the backend pick the recipient's address on file.
func (c *Client) SendInvoiceEmail(ctx context.Context, id int, address string) error {
	body := map[string]string{}
	if address != "" {
		body["email"] = address
	}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/invoices/%d/send-email", id), body, nil)
	return err
}

// GenerateInvoiceNumber asks the backend for the next free invoice number
// towards recipientPIB.
func (c *Client) GenerateInvoiceNumber(ctx context.Context, recipientPIB string) (string, error) {
	var out struct {
		Number string `json:"number"`
	}
	path := "/api/invoices/generate-number/" + url.PathEscape(recipientPIB)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Number, nil
}

// InvoicePDF opens the backend-rendered PDF. The caller must close the reader.
func (c *Client) InvoicePDF(ctx context.Context, id int) (io.ReadCloser, string, error) {
	path := fmt.Sprintf("/api/invoices/%d/pdf", id)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/pdf")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, "", errorFromBody(resp.StatusCode, data, isJSONResponse(resp))
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/pdf"
	}
	return resp.Body, ct, nil
}

func isJSONResponse(resp *http.Response) bool {
	return strings.Contains(resp.Header.Get("Content-Type"), "application/json")
}

// ── Products ──────────────────────────────────────────────────────────────────

// ProductInput is the body of POST /api/products. Admins must set OwnerUserID.
type ProductInput struct {
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	MaterialType *string `json:"material_type,omitempty"`
	OwnerUserID  *int    `json:"owner_user_id,omitempty"`
}

type productList struct {
	Items []core.Product `json:"items"`
}

func (c *Client) ListProducts(ctx context.Context) ([]core.Product, error) {
	var list productList
	if _, err := c.do(ctx, http.MethodGet, "/api/products", nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*core.Product, error) {
	var env struct {
		Product core.Product `json:"product"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/products", in, &env); err != nil {
		return nil, err
	}
	return &env.Product, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/products/%d", id), nil, nil)
	return err
}

// ── Users (admin) ─────────────────────────────────────────────────────────────

func (c *Client) ListUsers(ctx context.Context) ([]core.User, error) {
	var list struct {
		Items []core.User `json:"items"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/users", nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// VerifyUser sets the verified flag of a company account.
func (c *Client) VerifyUser(ctx context.Context, id int, verified bool) (*core.User, error) {
	var env userEnvelope
	body := map[string]bool{"verified": verified}
	if _, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/users/%d/verify", id), body, &env); err != nil {
		return nil, err
	}
	return &env.User, nil
}
