package web

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/skladnost/internal/model"
	"github.com/erazemk/skladnost/internal/store"
)

// requireAdmin writes 403 and returns false unless the signed-in user is an
// admin.
func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims := GetWebClaims(r.Context())
	if claims == nil || !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// UsersPage handles GET /users (admin only).
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	s.renderUsers(w, r, "", "")
}

func (s *Server) renderUsers(w http.ResponseWriter, r *http.Request, errMsg, success string) {
	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
	}

	pd := s.pageData(r, "Uporabniki")
	pd.Error = errMsg
	pd.Success = success
	s.Templates.Render(w, "users.html", &struct {
		PageData
		Users []model.User
		Roles []string
	}{
		PageData: pd,
		Users:    users,
		Roles:    []string{model.RoleViewer, model.RoleInspector, model.RoleAdmin},
	})
}

// UserCreateSubmit handles POST /users (admin only).
func (s *Server) UserCreateSubmit(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	claims := GetWebClaims(r.Context())

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	role := r.FormValue("role")

	if username == "" || password == "" || !model.ValidRole(role) {
		s.renderUsers(w, r, "Vnesite uporabniško ime, geslo in vlogo.", "")
		return
	}
	if err := model.ValidatePassword(password); err != nil {
		s.renderUsers(w, r, "Geslo mora imeti vsaj 8 znakov.", "")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	if _, err := store.CreateUser(r.Context(), s.DB, username, string(hash), role); err != nil {
		s.renderUsers(w, r, "Uporabniško ime že obstaja.", "")
		return
	}
	slog.Info("user created", "user", claims.Username, "new_user", username, "role", role)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// UserResetPasswordSubmit handles POST /users/{id}/password (admin only).
func (s *Server) UserResetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	id, ok := urlID(r, "id")
	if !ok {
		http.Redirect(w, r, "/users", http.StatusSeeOther)
		return
	}

	newPassword := r.FormValue("new_password")
	if err := model.ValidatePassword(newPassword); err != nil {
		s.renderUsers(w, r, "Geslo mora imeti vsaj 8 znakov.", "")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), s.DB, id, string(hash)); err != nil {
		slog.Error("failed to reset password", "error", err)
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// UserUpdateRoleSubmit handles POST /users/{id}/role (admin only).
func (s *Server) UserUpdateRoleSubmit(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	claims := GetWebClaims(r.Context())

	id, ok := urlID(r, "id")
	role := r.FormValue("role")
	if !ok || !model.ValidRole(role) {
		http.Redirect(w, r, "/users", http.StatusSeeOther)
		return
	}
	if id == claims.UserID {
		s.renderUsers(w, r, "Svoje vloge ne morete spremeniti.", "")
		return
	}

	if err := store.UpdateUserRole(r.Context(), s.DB, id, role); err != nil {
		slog.Error("failed to update role", "error", err)
	} else {
		slog.Info("user role updated", "user", claims.Username, "target_user", id, "new_role", role)
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// UserDeleteSubmit handles POST /users/{id}/delete (admin only).
func (s *Server) UserDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	claims := GetWebClaims(r.Context())

	id, ok := urlID(r, "id")
	if !ok {
		http.Redirect(w, r, "/users", http.StatusSeeOther)
		return
	}
	if id == claims.UserID {
		s.renderUsers(w, r, "Samega sebe ne morete izbrisati.", "")
		return
	}

	if err := store.DeleteUser(r.Context(), s.DB, id); err != nil {
		slog.Error("failed to delete user", "error", err)
	} else {
		slog.Info("user deleted", "user", claims.Username, "deleted_user", id)
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	pd := s.pageData(r, "Nastavitve")
	s.Templates.Render(w, "settings.html", &pd)
}

// SettingsSubmit handles POST /settings (change own password).
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	pd := s.pageData(r, "Nastavitve")

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")

	if currentPassword == "" || newPassword == "" {
		pd.Error = "Vnesite trenutno in novo geslo."
		s.Templates.Render(w, "settings.html", &pd)
		return
	}
	if err := model.ValidatePassword(newPassword); err != nil {
		pd.Error = "Novo geslo mora imeti vsaj 8 znakov."
		s.Templates.Render(w, "settings.html", &pd)
		return
	}

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil || user == nil {
		pd.Error = "Napaka pri pridobivanju uporabnika."
		s.Templates.Render(w, "settings.html", &pd)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		pd.Error = "Trenutno geslo ni pravilno."
		s.Templates.Render(w, "settings.html", &pd)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		pd.Error = "Napaka pri shranjevanju gesla."
		s.Templates.Render(w, "settings.html", &pd)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), s.DB, claims.UserID, string(hash)); err != nil {
		pd.Error = "Napaka pri posodabljanju gesla."
		s.Templates.Render(w, "settings.html", &pd)
		return
	}

	slog.Info("user changed own password", "user", claims.Username)
	pd.Success = "Geslo uspešno spremenjeno."
	s.Templates.Render(w, "settings.html", &pd)
}
