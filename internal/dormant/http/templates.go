package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/aussiebroadwan/dormant/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// messagePage is the data for the generic outcome page.
type messagePage struct {
	Title  string
	Detail string
}

// resetFormPage is the data for the password-reset form.
type resetFormPage struct {
	User  string
	Token string
	Error string
}

func renderPage(w http.ResponseWriter, r *http.Request, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		slogx.FromContext(r.Context()).Error("failed to render page", "template", name, "err", err)
	}
}
