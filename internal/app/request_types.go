package app

import "efakture/internal/core"

// RegisterRequest is the input for creating an account.
// PIB is required for company accounts and ignored for admins.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     core.Role
	PIB      string
}

// CreateProductRequest is the input for adding a catalog product.
// OwnerUserID is required when an admin creates a product for a company.
type CreateProductRequest struct {
	Name         string
	Code         string
	MaterialType string
	OwnerUserID  int
}

// SuggestDraftRequest asks the assistant to fill Draft from a free-text Description.
type SuggestDraftRequest struct {
	Description string
	Draft       core.InvoiceDraft
}
