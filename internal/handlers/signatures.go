package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/models"
)

// SignatureRequest is the body of POST /api/signatures.
// documentId is accepted next to document_id for older clients.
type SignatureRequest struct {
	DocumentID    string               `json:"document_id"`
	DocumentIDAlt string               `json:"documentId"`
	PageNumber    int                  `json:"page_number"`
	X             float64              `json:"x"`
	Y             float64              `json:"y"`
	Width         float64              `json:"width"`
	Height        float64              `json:"height"`
	Type          models.SignatureType `json:"type"`
	SignatureURL  *string              `json:"signature_url"`
	Name          *string              `json:"name"`
	Font          *string              `json:"font"`
	Color         *string              `json:"color"`
}

func (b SignatureRequest) signature() models.Signature {
	docID := b.DocumentID
	if docID == "" {
		docID = b.DocumentIDAlt
	}
	return models.Signature{
		DocumentID:   docID,
		PageNumber:   b.PageNumber,
		X:            b.X,
		Y:            b.Y,
		Width:        b.Width,
		Height:       b.Height,
		Type:         b.Type,
		SignatureURL: b.SignatureURL,
		Name:         b.Name,
		Font:         b.Font,
		Color:        b.Color,
	}
}

// createSignature places a new annotation
func (r *Router) createSignature(w http.ResponseWriter, req *http.Request) {
	var body SignatureRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondAppError(w, apperr.Validation("invalid request payload"))
		return
	}

	sig, err := r.signing.SaveSignature(req.Context(), currentUser(req), body.signature())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Signature saved",
		"signature": sig,
	})
}

// listSignatures returns a document's annotations
func (r *Router) listSignatures(w http.ResponseWriter, req *http.Request) {
	sigs, err := r.signing.ListSignatures(req.Context(), currentUser(req), mux.Vars(req)["docId"])
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"signatures": sigs})
}

// updateSignature merges a partial update into an annotation
func (r *Router) updateSignature(w http.ResponseWriter, req *http.Request) {
	var patch models.SignaturePatch
	if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
		respondAppError(w, apperr.Validation("invalid request payload"))
		return
	}

	sig, err := r.signing.UpdateSignature(req.Context(), currentUser(req), mux.Vars(req)["id"], patch)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Signature updated",
		"signature": sig,
	})
}

func (r *Router) deleteSignature(w http.ResponseWriter, req *http.Request) {
	if err := r.signing.DeleteSignature(req.Context(), currentUser(req), mux.Vars(req)["id"]); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Signature deleted"})
}

// uploadSignatureImage stores an image and places it in one step
func (r *Router) uploadSignatureImage(w http.ResponseWriter, req *http.Request) {
	header, data, err := r.readUpload(w, req, "file")
	if err != nil {
		respondAppError(w, err)
		return
	}
	if header == nil || len(data) == 0 {
		respondAppError(w, apperr.Validation("no file uploaded"))
		return
	}

	sig, err := signatureFromForm(req)
	if err != nil {
		respondAppError(w, err)
		return
	}

	saved, err := r.signing.UploadSignatureImage(req.Context(), currentUser(req), header.Filename, data, sig)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Signature image uploaded",
		"signature": saved,
	})
}

// signatureFromForm reads annotation metadata sent next to an image upload
func signatureFromForm(req *http.Request) (models.Signature, error) {
	sig := models.Signature{
		DocumentID: firstValue(req, "documentId", "document_id"),
		Type:       models.SignatureType(req.FormValue("type")),
	}

	page, err := strconv.Atoi(firstValue(req, "page_number"))
	if err != nil {
		return sig, apperr.Validation("page_number must be an integer")
	}
	sig.PageNumber = page

	fields := []struct {
		name     string
		dst      *float64
		required bool
	}{
		{"x", &sig.X, true},
		{"y", &sig.Y, true},
		{"width", &sig.Width, false},
		{"height", &sig.Height, false},
	}
	for _, f := range fields {
		raw := firstValue(req, f.name)
		if raw == "" {
			if f.required {
				return sig, apperr.Validation("%s is required", f.name)
			}
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return sig, apperr.Validation("%s must be a number", f.name)
		}
		*f.dst = v
	}

	for name, dst := range map[string]**string{"name": &sig.Name, "font": &sig.Font, "color": &sig.Color} {
		if v := firstValue(req, name); v != "" {
			*dst = &v
		}
	}
	return sig, nil
}

func firstValue(req *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(req.FormValue(k)); v != "" {
			return v
		}
	}
	return ""
}
