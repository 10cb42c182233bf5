package session

import (
	"context"
	"net/http"
	"time"

	"expenses/internal/log"
	"expenses/internal/tracker"
)

const CookieName = "expenses_session"

type contextKey struct{}

// Manager resolves the controller of the current request, creating a fresh
// logged-out one when the cookie is missing, invalid or expired.
type Manager struct {
	store   *Store
	signer  *Signer
	factory func() *tracker.Controller
	ttl     time.Duration
	logger  *log.Logger
}

func NewManager(store *Store, signer *Signer, ttl time.Duration, factory func() *tracker.Controller, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{
		store:   store,
		signer:  signer,
		factory: factory,
		ttl:     ttl,
		logger:  logger.WithComponent(log.ComponentSession),
	}
}

func (m *Manager) Store() *Store {
	return m.store
}

// Middleware puts the session controller into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctl, err := m.resolve(w, r)
		if err != nil {
			log.LogError(r.Context(), "Session setup failed", err, log.ComponentSession, "resolve", nil)
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, ctl)))
	})
}

// FromContext returns the controller set by Middleware.
func FromContext(ctx context.Context) (*tracker.Controller, bool) {
	ctl, ok := ctx.Value(contextKey{}).(*tracker.Controller)
	return ctl, ok
}

func (m *Manager) resolve(w http.ResponseWriter, r *http.Request) (*tracker.Controller, error) {
	if c, err := r.Cookie(CookieName); err == nil {
		if id, err := m.signer.Parse(c.Value); err == nil {
			if ctl, ok := m.store.Get(id); ok {
				return ctl, nil
			}
		}
	}

	id := NewID()
	token, err := m.signer.Issue(id)
	if err != nil {
		return nil, err
	}
	ctl := m.factory()
	m.store.Put(id, ctl)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	m.logger.DebugContext(r.Context(), "Session started", log.FieldSessionID, id)
	return ctl, nil
}
