package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/config"
	"github.com/xelth-com/esealgo/internal/models"
	"github.com/xelth-com/esealgo/internal/utils"
)

type users map[string]*models.User

func (u users) Get(ctx context.Context, id string) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, apperr.NotFound("user %s not found", id)
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	w.Write([]byte(user.ID))
}

func TestAuth(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret", TokenTTL: time.Minute}
	handler := Auth(cfg, users{"u1": {ID: "u1"}})(http.HandlerFunc(echoUser))

	token, err := utils.GenerateToken("u1", cfg)
	if err != nil {
		t.Fatal(err)
	}
	ghost, err := utils.GenerateToken("ghost", cfg)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) }, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", token) }, http.StatusUnauthorized},
		{"wrong secret", func(r *http.Request) {
			bad, _ := utils.GenerateToken("u1", &config.Config{JWTSecret: "other"})
			r.Header.Set("Authorization", "Bearer "+bad)
		}, http.StatusUnauthorized},
		{"unknown user", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghost) }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/user/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK && rec.Body.String() != "u1" {
				t.Errorf("user = %q, want u1", rec.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := CORS([]string{"http://localhost:3000"})(next)

	req := httptest.NewRequest("OPTIONS", "/api/docs/list", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials not allowed")
	}

	req = httptest.NewRequest("GET", "/api/docs/list", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestCaseInsensitivePrefix(t *testing.T) {
	var seen string
	handler := CaseInsensitivePrefix("/api/docs/verify/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Path
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/API/DOCS/VERIFY/AbC", nil))
	if seen != "/api/docs/verify/AbC" {
		t.Errorf("path = %q, want prefix lowered and id kept", seen)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/Files/X", nil))
	if seen != "/Files/X" {
		t.Errorf("path outside prefix changed to %q", seen)
	}
}
