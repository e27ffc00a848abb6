package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"

	"efakture/internal/core"
	webui "efakture/web"
	"efakture/web/templates/layouts"
)

// pageData is the root value every page template is executed with.
type pageData struct {
	Layout layouts.AppLayoutData
	Page   any
}

// renderer holds one parsed template set per page, each combining the shared
// layout with the page's "content" block.
type renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"amount": func(a core.Amount) string {
		if !a.Valid {
			return "-"
		}
		return a.Decimal().StringFixed(2)
	},
	"fieldError": func(errs core.ValidationErrors, field string) string {
		msg, _ := errs.Get(field)
		return msg
	},
	"itemField":  core.ItemField,
	"currencies": func() []core.Currency { return core.AllowedCurrencies },
	"taxRates":   func() []core.TaxRate { return core.AllowedTaxRates },
}

func newRenderer() (*renderer, error) {
	base, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(webui.Templates, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(webui.Templates, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("list page templates: %w", err)
	}

	rd := &renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout: %w", err)
		}
		if _, err := t.ParseFS(webui.Templates, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		rd.pages[strings.TrimSuffix(path.Base(file), ".html")] = t
	}
	return rd, nil
}

// render executes the named page into a buffer so a template error never
// leaves a half-written response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, layout layouts.AppLayoutData, page any) {
	t, ok := h.pages.pages[name]
	if !ok {
		http.Error(w, "Unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pageData{Layout: layout, Page: page}); err != nil {
		log.Printf("render %s [%s]: %v", name, requestIDFromContext(r.Context()), err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
