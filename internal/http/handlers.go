package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"expenses/internal/core"
	"expenses/internal/export"
	"expenses/internal/log"
	"expenses/internal/session"
	"expenses/internal/tracker"
)

type pageData struct {
	View   tracker.View
	Symbol string
	Chart  template.HTML
}

func controller(r *http.Request) *tracker.Controller {
	ctl, _ := session.FromContext(r.Context())
	return ctl
}

// requireLogin sends logged-out visitors back to the login page.
func requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctl := controller(r)
		if ctl == nil || !ctl.LoggedIn() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func backToIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctl := controller(r)
	if ctl.LoggedIn() && r.URL.Query().Has("category") {
		_ = ctl.SetFilter(r.URL.Query().Get("category"))
	}

	v := ctl.View()
	name := "login.html"
	data := pageData{View: v, Symbol: s.currency.Symbol()}
	if v.LoggedIn() {
		name = "index.html"
		data.Chart = template.HTML(v.Chart.SVG())
	}
	s.render(w, r, name, data)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.LogError(r.Context(), "Template execution failed", err, log.ComponentHTTP, log.OpRender,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", ""))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// Credentials are compared verbatim.
	controller(r).Login(r.Context(), p.Raw("username"), p.Raw("password"))
	backToIndex(w, r)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	controller(r).Logout()
	backToIndex(w, r)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// Failures surface as toasts on the next page.
	_ = controller(r).Submit(r.Context(), parseDraft(p))
	backToIndex(w, r)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	_ = controller(r).CancelEdit()
	backToIndex(w, r)
}

func expenseID(r *http.Request) (core.ExpenseID, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || raw == "" {
		return "", false
	}
	return core.ExpenseID(raw), true
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := controller(r).BeginEdit(id); errors.Is(err, tracker.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	backToIndex(w, r)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	_ = controller(r).Delete(r.Context(), id)
	backToIndex(w, r)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := controller(r).Chart().Render(w); err != nil {
		log.LogError(r.Context(), "Chart render failed", err, log.ComponentHTTP, log.OpRender, nil)
	}
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, controller(r).Records()); err != nil {
		log.LogError(r.Context(), "Spreadsheet export failed", err, log.ComponentExport, log.OpExport, nil)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.xlsx"`)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExportText(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteTable(&buf, controller(r).Records(), s.currency); err != nil {
		log.LogError(r.Context(), "Text export failed", err, log.ComponentExport, log.OpExport, nil)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
