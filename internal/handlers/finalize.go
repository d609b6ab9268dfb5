package handlers

import (
	"net/http"
	"strconv"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/services/signing"
)

// finalize embeds all annotations and returns the signed copy's URL,
// or the PDF itself with ?download=true
func (r *Router) finalize(w http.ResponseWriter, req *http.Request) {
	header, data, err := r.readUpload(w, req, "pdf")
	if err != nil {
		respondAppError(w, err)
		return
	}
	docID := firstValue(req, "docId", "document_id")

	var res *signing.FinalizeResult
	switch {
	case header != nil:
		if !isPDF(header, data) {
			respondAppError(w, apperr.Validation("only PDF files are allowed"))
			return
		}
		res, err = r.signing.Finalize(req.Context(), currentUser(req), docID, data)
	case req.FormValue("source") == "stored":
		res, err = r.signing.FinalizeStored(req.Context(), currentUser(req), docID)
	default:
		res, err = r.signing.Finalize(req.Context(), currentUser(req), docID, nil)
	}
	if err != nil {
		respondAppError(w, err)
		return
	}

	if download, _ := strconv.ParseBool(req.URL.Query().Get("download")); download {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+*res.Document.SignedFileName+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
		w.WriteHeader(http.StatusOK)
		w.Write(res.PDF)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "PDF finalized",
		"finalUrl": res.URL,
		"document": res.Document,
	})
}
