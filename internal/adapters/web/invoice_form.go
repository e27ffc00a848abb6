package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"efakture/internal/app"
	"efakture/internal/core"
	"efakture/web/templates/layouts"

	"github.com/shopspring/decimal"
)

type invoiceNewPage struct {
	Preview     *app.DraftPreview
	Products    []core.Product
	Errors      core.ValidationErrors
	Description string
	Typed       typedValues
}

// typedValues keeps the text of number fields that could not be parsed, keyed
// by core.ItemField, so the form shows what the user typed next to the error.
type typedValues map[string]string

func (t typedValues) Value(i int, field string, parsed any) string {
	if s, ok := t[core.ItemField(i, field)]; ok {
		return s
	}
	return fmt.Sprint(parsed)
}

// invoiceNewPage handles GET /invoices/new with an empty draft dated today.
func (h *Handler) invoiceNewPage(w http.ResponseWriter, r *http.Request) {
	draft := core.NewDraft()
	draft.IssueDate = time.Now().Format(core.DateLayout)
	h.renderInvoiceForm(w, r, http.StatusOK, draft, nil, nil, "", "")
}

// invoiceNewAction handles POST /invoices/new. The submit button's "action"
// value selects what happens to the posted draft:
//
//	preview          recompute totals and show field errors
//	add-item         append an empty row
//	remove-item-N    drop row N (the last row is reset instead)
//	generate-number  ask the backend for the next number towards recipient_pib
//	suggest          let the draft assistant fill the rows from "description"
//	submit           validate and create the invoice
func (h *Handler) invoiceNewAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectFlash(w, r, "/invoices/new", "", "Invalid form submission.")
		return
	}
	sess := sessionFromContext(r.Context())
	draft, parseErrs, typed := parseDraftForm(r)
	description := strings.TrimSpace(r.FormValue("description"))
	action := r.FormValue("action")

	switch {
	case action == "add-item":
		draft.Items = append(draft.Items, core.NewLineItem())
		h.renderInvoiceForm(w, r, http.StatusOK, draft, parseErrs, typed, description, "")

	case strings.HasPrefix(action, "remove-item-"):
		i, err := strconv.Atoi(strings.TrimPrefix(action, "remove-item-"))
		if err == nil && i >= 0 && i < len(draft.Items) {
			draft.Items = append(draft.Items[:i], draft.Items[i+1:]...)
		}
		if len(draft.Items) == 0 {
			draft.Items = []core.LineItem{core.NewLineItem()}
		}
		// Row indexes shifted; stale parse errors would point at the wrong rows.
		h.renderInvoiceForm(w, r, http.StatusOK, draft, nil, nil, description, "")

	case action == "generate-number":
		n, err := h.svc.NextInvoiceNumber(r.Context(), sess, strings.TrimSpace(draft.RecipientPIB))
		if err != nil {
			h.renderInvoiceFormError(w, r, draft, parseErrs, typed, description, err)
			return
		}
		draft.Number = n
		h.renderInvoiceForm(w, r, http.StatusOK, draft, parseErrs, typed, description, "")

	case action == "suggest":
		preview, err := h.svc.SuggestDraft(r.Context(), sess, app.SuggestDraftRequest{Description: description, Draft: draft})
		if err != nil {
			h.renderInvoiceFormError(w, r, draft, parseErrs, typed, description, err)
			return
		}
		h.renderInvoiceForm(w, r, http.StatusOK, preview.Draft, nil, nil, description, preview.Reasoning)

	case action == "submit":
		if len(parseErrs) > 0 {
			errs := mergeErrors(parseErrs, core.ValidateDraft(draft, core.PermittedStatuses(sess.Actor())))
			h.renderInvoiceForm(w, r, http.StatusUnprocessableEntity, draft, errs, typed, description, "")
			return
		}
		inv, err := h.svc.CreateInvoice(r.Context(), sess, draft)
		if err != nil {
			h.renderInvoiceFormError(w, r, draft, nil, nil, description, err)
			return
		}
		h.redirectFlash(w, r, fmt.Sprintf("/invoices/%d", inv.ID), "Invoice "+inv.Number+" created.", "")

	default: // preview
		errs := mergeErrors(parseErrs, core.ValidateDraft(draft, core.PermittedStatuses(sess.Actor())))
		h.renderInvoiceForm(w, r, http.StatusOK, draft, errs, typed, description, "")
	}
}

// renderInvoiceFormError re-renders the form unchanged with err shown either
// inline (validation) or as a flash message.
func (h *Handler) renderInvoiceFormError(w http.ResponseWriter, r *http.Request, draft core.InvoiceDraft, errs core.ValidationErrors, typed typedValues, description string, err error) {
	status := app.StatusOf(err)
	if status == http.StatusUnauthorized {
		h.pageError(w, r, err)
		return
	}
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		h.renderInvoiceForm(w, r, status, draft, mergeErrors(errs, verrs), typed, description, "")
		return
	}
	h.renderInvoiceFormWith(w, r, status, draft, errs, typed, description, func(d *layouts.AppLayoutData) {
		d.FlashMsg, d.FlashKind = app.Message(err), "error"
	})
}

func (h *Handler) renderInvoiceForm(w http.ResponseWriter, r *http.Request, status int, draft core.InvoiceDraft, errs core.ValidationErrors, typed typedValues, description, reasoning string) {
	h.renderInvoiceFormWith(w, r, status, draft, errs, typed, description, func(d *layouts.AppLayoutData) {
		if reasoning != "" {
			d.FlashMsg, d.FlashKind = reasoning, "info"
		}
	})
}

func (h *Handler) renderInvoiceFormWith(w http.ResponseWriter, r *http.Request, status int, draft core.InvoiceDraft, errs core.ValidationErrors, typed typedValues, description string, decorate func(*layouts.AppLayoutData)) {
	sess := sessionFromContext(r.Context())
	products, err := h.svc.ListProducts(r.Context(), sess)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	describeItems(draft.Items, products)

	layout := h.buildAppLayoutData(r, "New invoice", "new-invoice")
	decorate(&layout)
	page := invoiceNewPage{
		Preview:     h.svc.PreviewDraft(sess, draft),
		Products:    products,
		Errors:      errs,
		Description: description,
		Typed:       typed,
	}
	h.render(w, r, status, "invoice_new", layout, page)
}

// parseDraftForm reads the invoice form. Line items arrive as parallel
// product_id, qty, unit_price and tax_rate values. Values that cannot be parsed
// are left at zero, reported as field errors and kept as typed text.
func parseDraftForm(r *http.Request) (core.InvoiceDraft, core.ValidationErrors, typedValues) {
	var errs core.ValidationErrors
	typed := typedValues{}
	d := core.InvoiceDraft{
		Number:       strings.TrimSpace(r.FormValue("number")),
		IssueDate:    strings.TrimSpace(r.FormValue("issue_date")),
		DueDate:      strings.TrimSpace(r.FormValue("due_date")),
		Currency:     core.Currency(strings.ToUpper(strings.TrimSpace(r.FormValue("currency")))),
		Status:       core.InvoiceStatus(strings.ToLower(strings.TrimSpace(r.FormValue("status")))),
		RecipientPIB: strings.TrimSpace(r.FormValue("recipient_pib")),
		Note:         r.FormValue("note"),
	}
	if d.Currency == "" {
		d.Currency = core.DefaultCurrency
	}

	ids, qtys := r.Form["product_id"], r.Form["qty"]
	prices, rates := r.Form["unit_price"], r.Form["tax_rate"]
	n := max(len(ids), len(qtys), len(prices), len(rates))

	at := func(vals []string, i int) string {
		if i < len(vals) {
			return strings.TrimSpace(vals[i])
		}
		return ""
	}
	number := func(i int, field, label, s string) decimal.Decimal {
		v, err := core.ParseNumber(normalizeNumber(s))
		if err == nil {
			return v
		}
		msg := label + " must be a number"
		if errors.Is(err, core.ErrOutOfRange) {
			msg = label + " is out of range"
		}
		key := core.ItemField(i, field)
		errs = append(errs, core.FieldError{Field: key, Message: msg})
		typed[key] = s
		return decimal.Zero
	}
	for i := range n {
		var it core.LineItem
		if s := at(ids, i); s != "" {
			id, err := strconv.Atoi(s)
			if err != nil {
				errs = append(errs, core.FieldError{Field: core.ItemField(i, "product_id"), Message: "select a product"})
			}
			it.ProductID = id
		}
		if s := at(qtys, i); s != "" {
			it.Quantity = number(i, "qty", "quantity", s)
		}
		if s := at(prices, i); s != "" {
			it.UnitPrice = number(i, "unit_price", "unit price", s)
		}
		if s := at(rates, i); s != "" {
			t, err := strconv.Atoi(s)
			if err != nil {
				errs = append(errs, core.FieldError{Field: core.ItemField(i, "tax_rate"), Message: "VAT rate must be 0, 10 or 20"})
			}
			it.TaxRate = core.TaxRate(t)
		}
		d.Items = append(d.Items, it)
	}
	if len(d.Items) == 0 {
		d.Items = []core.LineItem{core.NewLineItem()}
	}
	return d, errs, typed
}

// normalizeNumber accepts a decimal comma as typed in Serbian locales.
func normalizeNumber(s string) string {
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}

// mergeErrors appends the entries of b whose field is not already reported in a.
func mergeErrors(a, b core.ValidationErrors) core.ValidationErrors {
	out := append(core.ValidationErrors(nil), a...)
	for _, fe := range b {
		if _, dup := out.Get(fe.Field); !dup {
			out = append(out, fe)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// describeItems copies catalog names onto the rows for display.
func describeItems(items []core.LineItem, catalog []core.Product) {
	byID := make(map[int]core.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}
	for i := range items {
		p, ok := byID[items[i].ProductID]
		if !ok {
			continue
		}
		items[i].Name = p.Name
		items[i].Code = p.Code
		items[i].MaterialType = ""
		if p.MaterialType != nil {
			items[i].MaterialType = *p.MaterialType
		}
	}
}
