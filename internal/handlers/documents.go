package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/xelth-com/esealgo/internal/apperr"
)

// multipartOverhead leaves room for form fields next to the file part
const multipartOverhead = 1 << 20

// readUpload parses a multipart form and returns the named file part.
// A missing part returns nil data and no error.
func (r *Router) readUpload(w http.ResponseWriter, req *http.Request, field string) (*multipart.FileHeader, []byte, error) {
	max := r.cfg.Finalize.MaxUploadBytes
	req.Body = http.MaxBytesReader(w, req.Body, max+multipartOverhead)
	if err := req.ParseMultipartForm(max); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, nil, apperr.Validation("upload exceeds %d bytes", max)
		}
		return nil, nil, apperr.Validation("invalid multipart form")
	}

	file, header, err := req.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Validation("invalid %q part", field)
	}
	defer file.Close()

	if header.Size > max {
		return nil, nil, apperr.Validation("file exceeds %d bytes", max)
	}
	data, err := io.ReadAll(io.LimitReader(file, max+1))
	if err != nil {
		return nil, nil, apperr.Validation("failed to read %q part", field)
	}
	if int64(len(data)) > max {
		return nil, nil, apperr.Validation("file exceeds %d bytes", max)
	}
	return header, data, nil
}

// isPDF accepts the declared content type or, when absent, the %PDF- magic
func isPDF(header *multipart.FileHeader, data []byte) bool {
	switch strings.ToLower(header.Header.Get("Content-Type")) {
	case "application/pdf":
		return true
	case "", "application/octet-stream":
		return strings.HasPrefix(string(data), "%PDF-")
	}
	return false
}

// uploadDocument stores a new PDF for the caller
func (r *Router) uploadDocument(w http.ResponseWriter, req *http.Request) {
	header, data, err := r.readUpload(w, req, "file")
	if err != nil {
		respondAppError(w, err)
		return
	}
	if header == nil || len(data) == 0 {
		respondAppError(w, apperr.Validation("no file uploaded"))
		return
	}
	if !isPDF(header, data) {
		respondAppError(w, apperr.Validation("only PDF files are allowed"))
		return
	}

	doc, err := r.signing.UploadDocument(req.Context(), currentUser(req), header.Filename, data)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "PDF uploaded successfully",
		"fileUrl":    doc.FileURL,
		"documentId": doc.ID,
		"document":   doc,
	})
}

// listDocuments returns the caller's documents, newest first
func (r *Router) listDocuments(w http.ResponseWriter, req *http.Request) {
	includeDeleted, _ := strconv.ParseBool(req.URL.Query().Get("deleted"))
	docs, err := r.signing.ListDocuments(req.Context(), currentUser(req), includeDeleted)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

// getDocument returns one document
func (r *Router) getDocument(w http.ResponseWriter, req *http.Request) {
	doc, err := r.signing.GetDocument(req.Context(), currentUser(req), mux.Vars(req)["id"])
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"document": doc})
}

// documentFile streams the original PDF
func (r *Router) documentFile(w http.ResponseWriter, req *http.Request) {
	data, err := r.signing.DocumentFile(req.Context(), currentUser(req), mux.Vars(req)["id"])
	if err != nil {
		respondAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (r *Router) softDeleteDocument(w http.ResponseWriter, req *http.Request) {
	if _, err := r.signing.SoftDeleteDocument(req.Context(), currentUser(req), mux.Vars(req)["id"]); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Document soft deleted successfully"})
}

func (r *Router) restoreDocument(w http.ResponseWriter, req *http.Request) {
	if _, err := r.signing.RestoreDocument(req.Context(), currentUser(req), mux.Vars(req)["id"]); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Document restored successfully"})
}

func (r *Router) deleteDocument(w http.ResponseWriter, req *http.Request) {
	if err := r.signing.DeleteDocument(req.Context(), currentUser(req), mux.Vars(req)["id"]); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Document permanently deleted"})
}

// verifyDocument exposes only the signing state of a document
func (r *Router) verifyDocument(w http.ResponseWriter, req *http.Request) {
	doc, err := r.signing.VerifyDocument(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":        doc.ID,
		"file_name": doc.FileName,
		"status":    doc.Status,
		"signed_at": doc.SignedAt,
	})
}
