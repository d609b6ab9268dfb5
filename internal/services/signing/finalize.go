package signing

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/models"
)

// FinalizeResult is the outcome of a successful finalize run
type FinalizeResult struct {
	PDF      []byte
	URL      string
	Document *models.Document
}

// Finalize embeds every annotation of a document into original, stores the
// signed copy and marks the document signed. Once the copy is stored, a
// failed metadata update deletes it again before the error is returned.
func (s *Service) Finalize(ctx context.Context, userID, docID string, original []byte) (*FinalizeResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if docID == "" || len(original) == 0 {
		return nil, apperr.Validation("missing file or document id")
	}
	doc, err := s.placeable(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, userID, doc, original)
}

// FinalizeStored is Finalize using the stored original of the document
func (s *Service) FinalizeStored(ctx context.Context, userID, docID string) (*FinalizeResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	doc, err := s.placeable(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	original, err := s.objects.Get(ctx, s.cfg.Storage.DocumentsBucket, doc.StoragePath)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, userID, doc, original)
}

func (s *Service) finalize(ctx context.Context, userID string, doc *models.Document, original []byte) (*FinalizeResult, error) {
	sigs, err := s.store.ListSignatures(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, apperr.Validation("document %s has no signatures to embed", doc.ID)
	}

	var signed []byte
	if s.cfg.Finalize.VerificationQR {
		signed, err = s.compositor.ComposeStamped(ctx, original, sigs, s.verifyURL(doc.ID))
	} else {
		signed, err = s.compositor.Compose(ctx, original, sigs)
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	bucket := s.cfg.Storage.DocumentsBucket
	fileName := fmt.Sprintf("signed_%d_%s.pdf", now.UnixMilli(), uuid.NewString()[:8])
	key := "signed/" + fileName
	url, err := s.objects.Put(ctx, bucket, key, signed, "application/pdf")
	if err != nil {
		return nil, err
	}

	doc.Status = models.DocumentSigned
	doc.SignedFileName = &fileName
	doc.SignedPath = &key
	doc.SignedURL = &url
	doc.SignedAt = &now
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		s.compensate(ctx, bucket, key, "finalize metadata update")
		return nil, err
	}

	if err := s.store.LockSignatures(ctx, doc.ID); err != nil {
		log.Printf("⚠️  Document %s signed but its signatures could not be locked: %v", doc.ID, err)
	}

	log.Printf("✅ Document %s finalized with %d signatures -> %s", doc.ID, len(sigs), key)
	s.notifier.Publish(userID, EventDocumentFinalized, doc)
	return &FinalizeResult{PDF: signed, URL: url, Document: doc}, nil
}

func (s *Service) verifyURL(docID string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/api/docs/verify/" + docID
}
