package layouts

// AppLayoutData is passed to the layout template to configure the page shell.
type AppLayoutData struct {
	Title     string
	SignedIn  bool
	Admin     bool // show the administrator navigation
	UserName  string
	UserEmail string
	PIB       string
	Verified  bool
	ActiveNav string // e.g. "dashboard", "invoices", "new-invoice", "products", "users"
	FlashMsg  string
	FlashKind string // "success", "error", "warning", "info"
}
