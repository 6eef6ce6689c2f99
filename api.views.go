package main

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/sessions"
)

//go:embed templates/books/*.html
var pagesFS embed.FS

const (
	flashSessionName = "library.flash"
	FlashSuccess     = "success"
	FlashError       = "error"
)

// Page templates names.
const (
	PageList          = "list.html"
	PageForm          = "form.html"
	PageConfirmDelete = "confirm_delete.html"
)

// Flash is a one-time message displayed on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

// PageData is the data passed to every page template.
type PageData struct {
	Title      string
	Flashes    []Flash
	Books      []Book
	Book       Book
	Query      string
	Searching  bool
	Editing    bool
	FormAction string
}

// Views renders the html pages and manages flash messages stored
// into a signed cookie session.
type Views struct {
	pages map[string]*template.Template
	store sessions.Store
}

// NewViews parses the embedded pages and sets up the flash cookie store.
func NewViews(secretKey string) (*Views, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{PageList, PageForm, PageConfirmDelete} {
		tmpl, err := template.ParseFS(pagesFS, "templates/books/layout.html", "templates/books/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	store := sessions.NewCookieStore([]byte(secretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Views{pages: pages, store: store}, nil
}

// Render writes the named page. Pending flashes are consumed and displayed.
func (v *Views) Render(w http.ResponseWriter, r *http.Request, name string, data PageData) error {
	tmpl, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	data.Flashes = v.PopFlashes(w, r)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}

// AddFlash stores a message to be displayed on the next page.
func (v *Views) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) error {
	// an invalid cookie still yields a new usable session.
	session, _ := v.store.Get(r, flashSessionName)
	session.AddFlash(message, category)
	return session.Save(r, w)
}

// PopFlashes returns and clears the pending messages.
func (v *Views) PopFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	session, err := v.store.Get(r, flashSessionName)
	if err != nil || session.IsNew {
		return nil
	}

	var flashes []Flash
	for _, category := range []string{FlashSuccess, FlashError} {
		for _, msg := range session.Flashes(category) {
			if s, ok := msg.(string); ok {
				flashes = append(flashes, Flash{Category: category, Message: s})
			}
		}
	}
	if len(flashes) > 0 {
		_ = session.Save(r, w)
	}
	return flashes
}
