package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/middleware"
	"github.com/xelth-com/esealgo/internal/models"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest represents a registration request
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userView is the public part of an account
type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func viewOf(u *models.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email}
}

// setSession stores the token in an HttpOnly cookie that lives as long as the token
func (r *Router) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.cfg.CookieSecure,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   int(r.cfg.TokenTTL.Seconds()),
	})
}

// signup handles user registration
func (r *Router) signup(w http.ResponseWriter, req *http.Request) {
	var body SignupRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondAppError(w, apperr.Validation("invalid request payload"))
		return
	}

	session, err := r.accounts.Register(req.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.setSession(w, session.Token)
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created",
		"user":    viewOf(session.User),
	})
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondAppError(w, apperr.Validation("invalid request payload"))
		return
	}

	session, err := r.accounts.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.setSession(w, session.Token)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logged in",
		"user":    viewOf(session.User),
	})
}

// logout clears the session cookie
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.cfg.CookieSecure,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   -1,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// me returns the authenticated user
func (r *Router) me(w http.ResponseWriter, req *http.Request) {
	user, ok := middleware.UserFromContext(req.Context())
	if !ok {
		respondAppError(w, apperr.Auth("user authentication required"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": viewOf(user)})
}
