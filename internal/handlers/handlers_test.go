package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/compositor"
	"github.com/xelth-com/esealgo/internal/config"
	"github.com/xelth-com/esealgo/internal/models"
	"github.com/xelth-com/esealgo/internal/services/account"
	"github.com/xelth-com/esealgo/internal/services/signing"
	"github.com/xelth-com/esealgo/internal/storage"
	"github.com/xelth-com/esealgo/internal/websocket"
)

// memDB backs both services in memory
type memDB struct {
	mu    sync.Mutex
	users map[string]models.User
	docs  map[string]models.Document
	sigs  []models.Signature
}

func newMemDB() *memDB {
	return &memDB{users: map[string]models.User{}, docs: map[string]models.Document{}}
}

func (m *memDB) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Validation("user already exists with this email")
		}
	}
	u.ID = uuid.NewString()
	m.users[u.ID] = *u
	return nil
}

func (m *memDB) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, apperr.NotFound("user %s not found", id)
}

func (m *memDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user %s not found", email)
}

func (m *memDB) CreateDocument(ctx context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.NewString()
	m.docs[d.ID] = *d
	return nil
}

func (m *memDB) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[id]; ok {
		return &d, nil
	}
	return nil, apperr.NotFound("document %s not found", id)
}

func (m *memDB) ListDocuments(ctx context.Context, userID string, includeDeleted bool) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Document{}
	for _, d := range m.docs {
		if d.UserID == userID && (includeDeleted || !d.IsDeleted()) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDB) SaveDocument(ctx context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.ID] = *d
	return nil
}

func (m *memDB) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	kept := m.sigs[:0]
	for _, s := range m.sigs {
		if s.DocumentID != id {
			kept = append(kept, s)
		}
	}
	m.sigs = kept
	return nil
}

func (m *memDB) CreateSignature(ctx context.Context, s *models.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.NewString()
	m.sigs = append(m.sigs, *s)
	return nil
}

func (m *memDB) GetSignature(ctx context.Context, id string) (*models.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sigs {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, apperr.NotFound("signature %s not found", id)
}

func (m *memDB) ListSignatures(ctx context.Context, documentID string) ([]models.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Signature
	for _, s := range m.sigs {
		if s.DocumentID == documentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memDB) SaveSignature(ctx context.Context, s *models.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sigs {
		if m.sigs[i].ID == s.ID {
			m.sigs[i] = *s
		}
	}
	return nil
}

func (m *memDB) DeleteSignature(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sigs {
		if m.sigs[i].ID == id {
			m.sigs = append(m.sigs[:i], m.sigs[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("signature %s not found", id)
}

func (m *memDB) LockSignatures(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sigs {
		if m.sigs[i].DocumentID == documentID {
			m.sigs[i].Locked = true
		}
	}
	return nil
}

func (m *memDB) CountSignaturesByURL(ctx context.Context, url string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sigs {
		if s.SignatureURL != nil && *s.SignatureURL == url {
			n++
		}
	}
	return n, nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	cfg := &config.Config{
		NodeEnv:        "test",
		BaseURL:        "http://api.test",
		JWTSecret:      "test-secret",
		TokenTTL:       10 * time.Minute,
		AllowedOrigins: []string{"http://localhost:3000"},
		Storage: config.StorageConfig{
			Driver:           "local",
			DocumentsBucket:  "documents",
			SignaturesBucket: "signatures",
		},
		Finalize: config.FinalizeConfig{MaxUploadBytes: 1 << 20},
	}
	local, err := storage.NewLocal(t.TempDir(), "http://api.test/files")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	db := newMemDB()
	comp := compositor.New(signing.NewImageFetcher(local, "signatures", compositor.NewHTTPFetcher(time.Second)), compositor.Config{})
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	return NewRouter(cfg, account.NewService(db, cfg), signing.NewService(db, local, comp, hub, cfg), hub, local.Handler())
}

func do(t *testing.T, r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON (%d): %s", rec.Code, rec.Body.String())
	}
	return body
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// signup registers a user and returns the session cookie
func signup(t *testing.T, r http.Handler, email string) *http.Cookie {
	t.Helper()
	rec := do(t, r, jsonRequest("POST", "/api/auth/signup", map[string]string{
		"username": "ada", "email": email, "password": "hunter22",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatal("signup did not set a token cookie")
	return nil
}

func pdfBytes(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	for i := 0; i < pages; i++ {
		pdf.AddPage()
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// multipartRequest builds a form with one file part and plain fields
func multipartRequest(t *testing.T, target, field, fileName, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest("POST", target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func uploadPDF(t *testing.T, r http.Handler, cookie *http.Cookie, data []byte) string {
	t.Helper()
	req := multipartRequest(t, "/api/docs/upload", "file", "contract.pdf", "application/pdf", data, nil)
	req.AddCookie(cookie)
	rec := do(t, r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	return decode(t, rec)["documentId"].(string)
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t)

	if rec := do(t, r, httptest.NewRequest("GET", "/", nil)); rec.Code != http.StatusOK {
		t.Errorf("GET / = %d", rec.Code)
	}
	rec := do(t, r, httptest.NewRequest("GET", "/api/status", nil))
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "running" {
		t.Errorf("GET /api/status = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSignupLoginAndMe(t *testing.T) {
	r := newTestRouter(t)
	cookie := signup(t, r, "ada@example.com")
	if !cookie.HttpOnly || cookie.MaxAge != 600 {
		t.Errorf("cookie HttpOnly=%v MaxAge=%d, want true and 600", cookie.HttpOnly, cookie.MaxAge)
	}

	req := httptest.NewRequest("GET", "/api/user/me", nil)
	req.AddCookie(cookie)
	rec := do(t, r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	user := decode(t, rec)["user"].(map[string]interface{})
	if user["email"] != "ada@example.com" {
		t.Errorf("me = %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Error("password hash leaked")
	}

	rec = do(t, r, jsonRequest("POST", "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "nope"}))
	if rec.Code != http.StatusUnauthorized || decode(t, rec)["error"] != "auth_error" {
		t.Errorf("bad login = %d %s", rec.Code, rec.Body.String())
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, httptest.NewRequest("GET", "/api/docs/list", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("GET", "/api/docs/list", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	if rec := do(t, r, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	cookie := signup(t, r, "ada@example.com")
	req = httptest.NewRequest("GET", "/api/docs/list", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	if rec := do(t, r, req); rec.Code != http.StatusOK {
		t.Errorf("bearer token: status = %d, want 200", rec.Code)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	r := newTestRouter(t)
	cookie := signup(t, r, "ada@example.com")

	req := multipartRequest(t, "/api/docs/upload", "file", "notes.txt", "text/plain", []byte("hello"), nil)
	req.AddCookie(cookie)
	rec := do(t, r, req)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "validation_error" {
		t.Errorf("status = %d %s, want 400 validation_error", rec.Code, rec.Body.String())
	}

	req = multipartRequest(t, "/api/docs/upload", "file", "", "", nil, nil)
	req.AddCookie(cookie)
	if rec := do(t, r, req); rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d, want 400", rec.Code)
	}
}

func TestSignAndFinalizeFlow(t *testing.T) {
	r := newTestRouter(t)
	cookie := signup(t, r, "ada@example.com")
	original := pdfBytes(t, 2)
	docID := uploadPDF(t, r, cookie, original)

	req := jsonRequest("POST", "/api/signatures", map[string]interface{}{
		"documentId": docID, "page_number": 2, "x": 0.6, "y": 0.1, "name": "Ada Lovelace",
	})
	req.AddCookie(cookie)
	rec := do(t, r, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create signature = %d %s", rec.Code, rec.Body.String())
	}
	sigID := decode(t, rec)["signature"].(map[string]interface{})["id"].(string)

	req = jsonRequest("PUT", "/api/signatures/"+sigID, map[string]interface{}{"color": "#1a801a"})
	req.AddCookie(cookie)
	rec = do(t, r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update signature = %d %s", rec.Code, rec.Body.String())
	}
	updated := decode(t, rec)["signature"].(map[string]interface{})
	if updated["color"] != "#1a801a" || updated["x"] != 0.6 || updated["name"] != "Ada Lovelace" {
		t.Errorf("patch changed more than the colour: %v", updated)
	}

	req = httptest.NewRequest("GET", "/api/signatures/"+docID, nil)
	req.AddCookie(cookie)
	rec = do(t, r, req)
	if sigs := decode(t, rec)["signatures"].([]interface{}); len(sigs) != 1 {
		t.Fatalf("listed %d signatures, want 1", len(sigs))
	}

	req = multipartRequest(t, "/api/pdf/finalize", "pdf", "contract.pdf", "application/pdf", original, map[string]string{"docId": docID})
	req.AddCookie(cookie)
	rec = do(t, r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize = %d %s", rec.Code, rec.Body.String())
	}
	finalURL := decode(t, rec)["finalUrl"].(string)
	if !strings.HasPrefix(finalURL, "http://api.test/files/documents/signed/signed_") {
		t.Errorf("finalUrl = %q", finalURL)
	}

	rec = do(t, r, httptest.NewRequest("GET", strings.TrimPrefix(finalURL, "http://api.test"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("fetching signed copy = %d", rec.Code)
	}
	info, err := compositor.Inspect(rec.Body.Bytes())
	if err != nil || info.PageCount != 2 {
		t.Errorf("signed copy: info=%+v err=%v", info, err)
	}

	rec = do(t, r, httptest.NewRequest("GET", "/api/docs/verify/"+docID, nil))
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "signed" {
		t.Errorf("verify = %d %s", rec.Code, rec.Body.String())
	}

	req = jsonRequest("PUT", "/api/signatures/"+sigID, map[string]interface{}{"x": 0.1})
	req.AddCookie(cookie)
	if rec := do(t, r, req); rec.Code != http.StatusBadRequest {
		t.Errorf("moving a locked signature = %d, want 400", rec.Code)
	}
}

func TestFinalizeErrors(t *testing.T) {
	r := newTestRouter(t)
	cookie := signup(t, r, "ada@example.com")
	original := pdfBytes(t, 1)
	docID := uploadPDF(t, r, cookie, original)

	req := multipartRequest(t, "/api/pdf/finalize", "pdf", "contract.pdf", "application/pdf", original, map[string]string{"docId": docID})
	req.AddCookie(cookie)
	rec := do(t, r, req)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "validation_error" {
		t.Errorf("no signatures: %d %s, want 400 validation_error", rec.Code, rec.Body.String())
	}

	req = multipartRequest(t, "/api/pdf/finalize", "pdf", "", "", nil, map[string]string{"docId": docID})
	req.AddCookie(cookie)
	if rec := do(t, r, req); rec.Code != http.StatusBadRequest {
		t.Errorf("no file: status = %d, want 400", rec.Code)
	}

	req = multipartRequest(t, "/api/pdf/finalize", "pdf", "contract.pdf", "application/pdf", original, map[string]string{"docId": uuid.NewString()})
	req.AddCookie(cookie)
	if rec := do(t, r, req); rec.Code != http.StatusNotFound {
		t.Errorf("unknown document: status = %d, want 404", rec.Code)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	r := newTestRouter(t)
	cookie := signup(t, r, "ada@example.com")
	docID := uploadPDF(t, r, cookie, pdfBytes(t, 1))

	call := func(method, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		req.AddCookie(cookie)
		return do(t, r, req)
	}
	count := func(target string) int {
		return len(decode(t, call("GET", target))["documents"].([]interface{}))
	}

	if rec := call("PUT", "/api/docs/soft-delete/"+docID); rec.Code != http.StatusOK {
		t.Fatalf("soft delete = %d", rec.Code)
	}
	if n := count("/api/docs/list"); n != 0 {
		t.Errorf("listed %d documents after soft delete, want 0", n)
	}
	if n := count("/api/docs/list?deleted=true"); n != 1 {
		t.Errorf("listed %d documents including deleted, want 1", n)
	}
	if rec := call("PUT", "/api/docs/restore/"+docID); rec.Code != http.StatusOK {
		t.Fatalf("restore = %d", rec.Code)
	}
	if rec := call("GET", "/api/docs/file/"+docID); rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("file = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := call("DELETE", "/api/docs/permanent-delete/"+docID); rec.Code != http.StatusOK {
		t.Fatalf("permanent delete = %d", rec.Code)
	}
	if rec := call("GET", "/api/docs/"+docID); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestUploadSignatureImage(t *testing.T) {
	r := newTestRouter(t)
	cookie := signup(t, r, "ada@example.com")
	docID := uploadPDF(t, r, cookie, pdfBytes(t, 1))

	req := multipartRequest(t, "/api/signatures/upload-image", "file", "sig.png", "image/png", []byte("\x89PNG\r\n\x1a\n"),
		map[string]string{"documentId": docID, "page_number": "1", "x": "0.2", "y": "0.3"})
	req.AddCookie(cookie)
	rec := do(t, r, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload image = %d %s", rec.Code, rec.Body.String())
	}
	sig := decode(t, rec)["signature"].(map[string]interface{})
	if sig["type"] != "upload" || !strings.Contains(sig["signature_url"].(string), "/files/signatures/") {
		t.Errorf("signature = %v", sig)
	}

	req = multipartRequest(t, "/api/signatures/upload-image", "file", "sig.png", "image/png", []byte("x"),
		map[string]string{"documentId": docID, "page_number": "1"})
	req.AddCookie(cookie)
	if rec := do(t, r, req); rec.Code != http.StatusBadRequest {
		t.Errorf("missing x/y: status = %d, want 400", rec.Code)
	}
}

func TestOtherUsersDocumentsAreHidden(t *testing.T) {
	r := newTestRouter(t)
	alice := signup(t, r, "alice@example.com")
	bob := signup(t, r, "bob@example.com")
	docID := uploadPDF(t, r, alice, pdfBytes(t, 1))

	req := httptest.NewRequest("GET", "/api/docs/"+docID, nil)
	req.AddCookie(bob)
	if rec := do(t, r, req); rec.Code != http.StatusNotFound {
		t.Errorf("bob reading alice's document = %d, want 404", rec.Code)
	}
}
