package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"maps"
	"net/http"
	"net/url"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

var pageFiles = []string{
	"dashboard.html",
	"login.html",
	"signup.html",
	"transaction_form.html",
	"subscription_form.html",
	"category_form.html",
}

var templateFuncs = template.FuncMap{
	"money": func(m core.Money, c core.Currency) string { return m.Format(c) },
	"date": func(d core.Date) string {
		if d.IsZero() {
			return ""
		}
		return d.Format("02/01/2006")
	},
	"kindLabel":     func(k core.Kind) string { return k.Label() },
	"methodLabel":   func(p core.PaymentMethod) string { return p.Label() },
	"cycleLabel":    func(b core.BillingCycle) string { return b.Label() },
	"kinds":         core.Kinds,
	"currencies":    core.Currencies,
	"methods":       core.PaymentMethods,
	"cycles":        core.BillingCycles,
	"uncategorized": func() string { return core.UncategorizedName },
}

// parsePages parses each page together with the shared layout, so every page
// can define its own "content" block.
func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		t, err := template.New("layout.html").Funcs(templateFuncs).
			ParseFS(fsys, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// form carries submitted values and their field errors back into a page.
type form struct {
	Values url.Values
	Errors core.FieldErrors
}

// newForm copies values, so a re-render can drop secrets without touching
// the request.
func newForm(values url.Values) form {
	if values == nil {
		return form{Values: url.Values{}, Errors: core.FieldErrors{}}
	}
	return form{Values: maps.Clone(values), Errors: core.FieldErrors{}}
}

func (f form) Get(field string) string { return f.Values.Get(field) }

func (f form) Error(field string) string { return f.Errors[field] }

func (f form) Checked(field string) bool {
	v := f.Values.Get(field)
	return v == "on" || v == "true" || v == "1"
}

// page is the data every template receives.
type page struct {
	Title  string
	User   *core.User
	Flash  string
	Form   form
	Action string
	Data   any
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := s.pages[name]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown template", "template", name)
		http.Error(w, "Error interno", http.StatusInternalServerError)
		return
	}
	if p.Form.Values == nil {
		p.Form = newForm(nil)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", name, log.FieldError, err, log.FieldOperation, log.OpRender)
		http.Error(w, "Error interno", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
