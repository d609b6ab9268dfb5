package database

import (
	"context"
	"errors"
	"testing"

	"github.com/xelth-com/esealgo/internal/apperr"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	if err := translate(nil, "document", "1"); err != nil {
		t.Errorf("nil should stay nil, got %v", err)
	}

	err := translate(gorm.ErrRecordNotFound, "document", "doc-1")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("record not found should map to not_found, got %v", err)
	}
	if apperr.Detail(err) != "document doc-1 not found" {
		t.Errorf("detail = %q", apperr.Detail(err))
	}

	cause := errors.New("connection refused")
	err = translate(cause, "signature", "sig-1")
	if !apperr.Is(err, apperr.KindPersistence) {
		t.Errorf("driver errors should map to persistence, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("persistence error should wrap the driver error")
	}
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	// Rejected before any query runs, so no connection is needed
	db := &DB{}
	ctx := context.Background()

	for _, id := range []string{"doc-1", "", "1' OR 1=1", "00000000-0000-0000-0000-00000000000g"} {
		if _, err := db.GetDocument(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("GetDocument(%q) = %v, want not_found", id, err)
		}
		if err := db.DeleteDocument(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("DeleteDocument(%q) = %v, want not_found", id, err)
		}
		if _, err := db.GetSignature(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("GetSignature(%q) = %v, want not_found", id, err)
		}
		if err := db.DeleteSignature(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("DeleteSignature(%q) = %v, want not_found", id, err)
		}
		if _, err := db.GetUser(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("GetUser(%q) = %v, want not_found", id, err)
		}

		sigs, err := db.ListSignatures(ctx, id)
		if err != nil || len(sigs) != 0 {
			t.Errorf("ListSignatures(%q) = %v, %v; want empty", id, sigs, err)
		}
		docs, err := db.ListDocuments(ctx, id, true)
		if err != nil || len(docs) != 0 {
			t.Errorf("ListDocuments(%q) = %v, %v; want empty", id, docs, err)
		}
		if err := db.LockSignatures(ctx, id); err != nil {
			t.Errorf("LockSignatures(%q) = %v", id, err)
		}
	}

	_, err := db.GetDocument(ctx, "doc-1")
	if apperr.Detail(err) != "document doc-1 not found" {
		t.Errorf("detail = %q", apperr.Detail(err))
	}
}
