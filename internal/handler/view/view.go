// Package view renders the client's HTML pages.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/render"
	"github.com/zhouzirui/taporibrain/internal/service/theme"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// PartialHeader asks for the page content without the surrounding layout.
const PartialHeader = "X-Partial"

// Pages rendered by the Renderer.
const (
	PageChat     = "chat"
	PageAdmin    = "admin"
	PageRoadmap  = "roadmap"
	PageNotFound = "notfound"
)

// NavItem is one navbar link.
type NavItem struct {
	Label  string
	Href   string
	Active bool
}

// Page is the data every layout render receives.
type Page struct {
	Title   string
	Nav     []NavItem
	Theme   theme.State
	Content any
}

// Renderer executes the embedded templates.
type Renderer struct {
	pages  map[string]*template.Template
	themes *theme.Store
	logger *zap.Logger
}

// NewRenderer parses every page against the shared layout. themes may be
// nil, in which case pages render light.
func NewRenderer(themes *theme.Store, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	base, err := template.New("layout.html").Funcs(render.Funcs()).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{PageChat, PageAdmin, PageRoadmap, PageNotFound} {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		tmpl, err := clone.ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages, themes: themes, logger: logger}, nil
}

// Render writes page with status. Requests carrying PartialHeader get only
// the "content" block.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, page Page) {
	tmpl, ok := r.pages[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	page.Nav = navFor(name)
	page.Theme = theme.State{Preference: theme.System, Effective: theme.Light}
	if r.themes != nil {
		page.Theme = r.themes.State()
	}

	block := "layout"
	if req.Header.Get(PartialHeader) != "" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, block, page); err != nil {
		r.logger.Error("failed to render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// Static serves the embedded assets; mount it under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func navFor(active string) []NavItem {
	return []NavItem{
		{Label: "Chat", Href: "/", Active: active == PageChat},
		{Label: "Admin", Href: "/admin", Active: active == PageAdmin},
		{Label: "Roadmap", Href: "/roadmap", Active: active == PageRoadmap},
	}
}
