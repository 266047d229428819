package web

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/mvoronin/promptstash/internal/server/policy"
	"github.com/mvoronin/promptstash/internal/server/session"
)

type ctxKey int

const stateKey ctxKey = iota

// StateFromContext returns the resolved session state a guarded handler runs
// under. Handlers only execute after the guard, so the value is always set;
// the anonymous fallback covers direct test invocations.
func StateFromContext(ctx context.Context) *session.State {
	if state, ok := ctx.Value(stateKey).(*session.State); ok {
		return state
	}
	return session.Anonymous
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.sessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// guard resolves the session and the settings snapshot, asks the policy
// engine for a decision, and only then dispatches to the handler. A failure
// to resolve either input is treated as an unavailable settings store, which
// the engine fails closed on.
func (s *Server) guard(route policy.Route, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		snapshot := s.loadSettings(ctx)

		state, err := s.resolver.Resolve(ctx, sessionToken(r))
		if err != nil {
			s.logger.Error(ctx, "session resolution failed", "route", route.String(), "error", err)
			state = session.Anonymous
			snapshot.Unavailable = true
		}

		decision := s.engine.Evaluate(route, state, snapshot)

		switch decision.Kind {
		case policy.Redirect:
			target := decision.Target.Path()
			if decision.Reason != "" {
				target += "?reason=" + url.QueryEscape(decision.Reason)
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
		case policy.Deny:
			http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
		default:
			next(w, r.WithContext(context.WithValue(ctx, stateKey, state)))
		}
	}
}

func (s *Server) loadSettings(ctx context.Context) policy.Settings {
	row, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Error(ctx, "settings store unavailable", "error", err)
		return policy.Settings{Unavailable: true}
	}
	return policy.Settings{
		MaintenanceMode:     row.MaintenanceMode,
		RegistrationAllowed: row.RegistrationAllowed,
	}
}
