package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mvoronin/promptstash/internal/common"
	"github.com/mvoronin/promptstash/internal/server/models"
	"github.com/mvoronin/promptstash/internal/server/policy"
)

// tierValidity maps purchasable tiers to the membership extension they grant.
// Zero means the membership never lapses again.
var tierValidity = map[string]time.Duration{
	"pro":      365 * 24 * time.Hour,
	"lifetime": 0,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto HTTP statuses for the JSON surfaces.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, common.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already exists"})
	case errors.Is(err, common.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, common.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	// "/" is the mux catch-all; anything else under it is not a page.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"app": "promptstash"})
}

const loginForm = `<!DOCTYPE html>
<form method="post" action="/login">
  <input name="email" type="email" placeholder="email">
  <input name="password" type="password" placeholder="password">
  <button type="submit">Sign in</button>
</form>`

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(loginForm))
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	token, err := s.sessions.Login(r.Context(), r.PostFormValue("email"), []byte(r.PostFormValue("password")))
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			http.Redirect(w, r, policy.RouteLogin.Path()+"?error=invalid_credentials", http.StatusSeeOther)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, token)
	http.Redirect(w, r, policy.RouteDashboard.Path(), http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), sessionToken(r)); err != nil {
		s.logger.Warn(r.Context(), "logout failed", "error", err)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, policy.RouteLogin.Path(), http.StatusSeeOther)
}

const registerForm = `<!DOCTYPE html>
<form method="post" action="/register">
  <input name="email" type="email" placeholder="email">
  <input name="password" type="password" placeholder="password">
  <button type="submit">Create account</button>
</form>`

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(registerForm))
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	_, err := s.users.Register(r.Context(), r.PostFormValue("email"), []byte(r.PostFormValue("password")))
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			http.Redirect(w, r, policy.RouteRegister.Path()+"?error=email_taken", http.StatusSeeOther)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, policy.RouteLogin.Path(), http.StatusSeeOther)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	// Payment provider callback endpoint; public so a lapsed or logged-out
	// customer can complete a purchase.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLoginAs starts impersonation from a single-use login token. Any
// failure lands on the login page with no detail; the session manager has
// already recorded the denial.
func (s *Server) handleLoginAs(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		_ = r.ParseForm()
		token = r.PostFormValue("token")
	}

	if err := s.sessions.LoginAs(r.Context(), sessionToken(r), token); err != nil {
		http.Redirect(w, r, policy.RouteLogin.Path(), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, policy.RouteDashboard.Path(), http.StatusSeeOther)
}

func (s *Server) handleRevertLoginAs(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.RevertLoginAs(r.Context(), sessionToken(r)); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, policy.RouteDashboard.Path(), http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	state := StateFromContext(r.Context())
	effective := state.Effective()
	writeJSON(w, http.StatusOK, map[string]any{
		"email":         effective.Email,
		"role":          effective.Role,
		"tier":          effective.TierID,
		"impersonating": state.Impersonating(),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	effective := StateFromContext(r.Context()).Effective()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                    effective.ID,
		"email":                 effective.Email,
		"tier":                  effective.TierID,
		"membership_expires_at": effective.MembershipExpiresAt,
	})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusOK, map[string]any{"tiers": []string{"pro", "lifetime"}})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	tier := r.PostFormValue("tier")
	validity, ok := tierValidity[tier]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown tier"})
		return
	}

	effective := StateFromContext(r.Context()).Effective()
	if err := s.users.Upgrade(r.Context(), effective.ID, tier, validity); err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, policy.RouteDashboard.Path(), http.StatusSeeOther)
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	ownerID := StateFromContext(r.Context()).Effective().ID

	switch r.Method {
	case http.MethodPost:
		var in struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt, err := s.content.CreatePrompt(r.Context(), ownerID, in.Title, in.Body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, prompt)
	case http.MethodDelete:
		if err := s.content.DeletePrompt(r.Context(), ownerID, r.URL.Query().Get("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		prompts, err := s.content.ListPrompts(r.Context(), ownerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prompts)
	}
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	ownerID := StateFromContext(r.Context()).Effective().ID

	switch r.Method {
	case http.MethodPost:
		var in struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		bookmark, err := s.content.CreateBookmark(r.Context(), ownerID, in.Title, in.URL)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, bookmark)
	case http.MethodDelete:
		if err := s.content.DeleteBookmark(r.Context(), ownerID, r.URL.Query().Get("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		bookmarks, err := s.content.ListBookmarks(r.Context(), ownerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bookmarks)
	}
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	ownerID := StateFromContext(r.Context()).Effective().ID

	switch r.Method {
	case http.MethodPost:
		var in struct {
			Title       string `json:"title"`
			ContentType string `json:"content_type"`
			SizeBytes   int64  `json:"size_bytes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		document, uploadURL, err := s.documents.Create(r.Context(), ownerID, in.Title, in.ContentType, in.SizeBytes)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"document": document, "upload_url": uploadURL})
	default:
		if id := r.URL.Query().Get("download"); id != "" {
			url, err := s.documents.DownloadURL(r.Context(), ownerID, id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"url": url})
			return
		}
		documents, err := s.documents.List(r.Context(), ownerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, documents)
	}
}

// handleAdmin reads and updates the application settings row. Toggling is
// recorded in the security event log.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	repo := s.repos.Settings(s.db)

	if r.Method != http.MethodPost {
		settings, err := repo.Get(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{
			"maintenance_mode":     settings.MaintenanceMode,
			"registration_allowed": settings.RegistrationAllowed,
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	updated := &models.Settings{
		MaintenanceMode:     r.PostFormValue("maintenance_mode") == "on",
		RegistrationAllowed: r.PostFormValue("registration_allowed") == "on",
	}
	if err := repo.Update(ctx, updated); err != nil {
		writeError(w, err)
		return
	}

	actorID := StateFromContext(ctx).Authenticated.ID
	event := &models.SecurityEvent{Kind: models.EventMaintenanceToggle, ActorUserID: &actorID}
	if err := s.repos.SecurityEvents(s.db).Record(ctx, event); err != nil {
		s.logger.Warn(ctx, "failed to record security event", "kind", event.Kind, "error", err)
	}

	http.Redirect(w, r, policy.RouteAdmin.Path(), http.StatusSeeOther)
}

// handleUsers lists principals and mints single-use login-as tokens.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		token, err := s.sessions.MintLoginToken(ctx, StateFromContext(ctx), r.PostFormValue("user_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"login_token": token,
			"url":         policy.RouteLoginAs.Path() + "?token=" + token,
		})
		return
	}

	users, err := s.users.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userRows(users))
}

// userRow is the admin-facing user projection. Password hashes never leave
// the identity store, not even in backups.
type userRow struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Role                string     `json:"role"`
	TierID              string     `json:"tier_id"`
	MembershipExpiresAt *time.Time `json:"membership_expires_at"`
	CreatedAt           time.Time  `json:"created_at"`
}

func userRows(users []*models.User) []userRow {
	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			ID: u.ID, Email: u.Email, Role: string(u.Role),
			TierID: u.TierID, MembershipExpiresAt: u.MembershipExpiresAt,
			CreatedAt: u.CreatedAt,
		})
	}
	return rows
}

// handleBackup exports users and settings as one JSON document.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := s.users.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	settings, err := s.repos.Settings(s.db).Get(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="backup.json"`)
	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at": time.Now().UTC(),
		"users":        userRows(users),
		"settings":     settings,
	})
}

func (s *Server) handleSecurityLogs(w http.ResponseWriter, r *http.Request) {
	events, err := s.repos.SecurityEvents(s.db).List(r.Context(), 100)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
