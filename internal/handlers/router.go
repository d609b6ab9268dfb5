package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime"

	"github.com/gorilla/mux"
	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/buildinfo"
	"github.com/xelth-com/esealgo/internal/config"
	"github.com/xelth-com/esealgo/internal/middleware"
	"github.com/xelth-com/esealgo/internal/services/account"
	"github.com/xelth-com/esealgo/internal/services/signing"
	"github.com/xelth-com/esealgo/internal/websocket"
)

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	cfg      *config.Config
	accounts *account.Service
	signing  *signing.Service
	hub      *websocket.Hub
}

// NewRouter creates a new HTTP router with all routes.
// files serves the local object store under /files/ and may be nil.
func NewRouter(cfg *config.Config, accounts *account.Service, svc *signing.Service, hub *websocket.Hub, files http.Handler) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		cfg:      cfg,
		accounts: accounts,
		signing:  svc,
		hub:      hub,
	}
	requireAuth := middleware.Auth(cfg, accounts)

	// Health check endpoints
	r.HandleFunc("/", r.root).Methods("GET")
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", r.getStatus).Methods("GET")

	// Public auth routes
	api.HandleFunc("/auth/signup", r.signup).Methods("POST")
	api.HandleFunc("/auth/login", r.login).Methods("POST")
	api.HandleFunc("/auth/logout", r.logout).Methods("POST")

	// Target of the verification QR; no session needed
	api.HandleFunc("/docs/verify/{id}", r.verifyDocument).Methods("GET")

	protected := api.NewRoute().Subrouter()
	protected.Use(requireAuth)

	protected.HandleFunc("/user/me", r.me).Methods("GET")

	// Document routes
	protected.HandleFunc("/docs/upload", r.uploadDocument).Methods("POST")
	protected.HandleFunc("/docs/list", r.listDocuments).Methods("GET")
	protected.HandleFunc("/docs/file/{id}", r.documentFile).Methods("GET")
	protected.HandleFunc("/docs/soft-delete/{id}", r.softDeleteDocument).Methods("PUT")
	protected.HandleFunc("/docs/restore/{id}", r.restoreDocument).Methods("PUT")
	protected.HandleFunc("/docs/permanent-delete/{id}", r.deleteDocument).Methods("DELETE")
	protected.HandleFunc("/docs/{id}", r.getDocument).Methods("GET")

	// Signature routes
	protected.HandleFunc("/signatures", r.createSignature).Methods("POST")
	protected.HandleFunc("/signatures/upload-image", r.uploadSignatureImage).Methods("POST")
	protected.HandleFunc("/signatures/{docId}", r.listSignatures).Methods("GET")
	protected.HandleFunc("/signatures/{id}", r.updateSignature).Methods("PUT")
	protected.HandleFunc("/signatures/{id}", r.deleteSignature).Methods("DELETE")

	// Finalize
	protected.HandleFunc("/pdf/finalize", r.finalize).Methods("POST")

	// Live events
	r.Handle("/ws", requireAuth(http.HandlerFunc(r.serveWs))).Methods("GET")

	if files != nil {
		r.PathPrefix("/files/").Handler(http.StripPrefix("/files/", files))
	}

	return r
}

// root answers plain-text liveness checks
func (r *Router) root(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("E-signature API is running"))
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns build and runtime details
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "running",
		"env":         r.cfg.NodeEnv,
		"storage":     r.cfg.Storage.Driver,
		"build_time":  buildinfo.BuildTime,
		"commit_time": buildinfo.CommitTime,
		"commit":      buildinfo.CommitHash,
		"started_at":  buildinfo.StartTime,
		"go":          runtime.Version(),
	})
}

// serveWs subscribes the caller to their live events
func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	user, ok := middleware.UserFromContext(req.Context())
	if !ok {
		respondAppError(w, apperr.Auth("user authentication required"))
		return
	}
	websocket.ServeWs(r.hub, user.ID, func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		return origin == "" || middleware.OriginAllowed(r.cfg.AllowedOrigins, origin)
	}, w, req)
}

// currentUser returns the caller's id or "" when the request is anonymous
func currentUser(req *http.Request) string {
	if user, ok := middleware.UserFromContext(req.Context()); ok {
		return user.ID
	}
	return ""
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondAppError maps a service error to its status and client-safe body
func respondAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ %v", err)
	}
	respondJSON(w, status, map[string]string{
		"error":   string(kind),
		"details": apperr.Detail(err),
	})
}
