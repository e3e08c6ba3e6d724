package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/session"
	appweb "fintrack/web"
)

const (
	layoutFile   = "templates/layout.html"
	partialsFile = "templates/partials.html"
)

// views holds one template set per page, each with the layout and the
// partials, plus a set with the partials alone for fragment responses.
type views struct {
	pages    map[string]*template.Template
	partials *template.Template
}

func templateFuncs(symbol string) template.FuncMap {
	return template.FuncMap{
		"money":  func(m core.Money) string { return m.Format(symbol) },
		"signed": func(t core.Transaction) string { return core.SignedAmount(t, symbol) },
		"date":   core.DisplayDate,
		"income": func(t core.TxType) bool { return t.Is(core.Income) },
		"rowKey": core.RowKey,
		"hasID":  core.HasID,
	}
}

func parseViews(symbol string) (*views, error) {
	funcs := templateFuncs(symbol)
	files, err := fs.Glob(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	v := &views{pages: make(map[string]*template.Template)}
	for _, file := range files {
		if file == layoutFile || file == partialsFile {
			continue
		}
		name := path.Base(file)
		t, err := template.New(name).Funcs(funcs).ParseFS(appweb.TemplatesFS, layoutFile, partialsFile, file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v.pages[name] = t
	}
	v.partials, err = template.New(path.Base(partialsFile)).Funcs(funcs).ParseFS(appweb.TemplatesFS, partialsFile)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// pageData is what the layout renders around every screen.
type pageData struct {
	Title         string
	Nav           string
	User          core.User
	Authenticated bool
	Flash         string
	Error         string
	Year          int
	Data          any
}

// render executes page into a buffer so a template failure still yields a
// clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, p pageData) {
	t, ok := s.views.pages[page]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown template",
			"template", page,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sess := session.FromContext(r.Context())
	p.Authenticated = sess.Authenticated()
	p.User = sess.CurrentUser()
	p.Year = time.Now().Year()

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", page,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial executes a fragment defined in the partials file.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.views.partials.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Partial execution failed",
			"template", name,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		InternalServerError("Failed to render").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
