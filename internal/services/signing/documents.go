package signing

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/compositor"
	"github.com/xelth-com/esealgo/internal/models"
)

// UploadDocument stores a new PDF and records its page geometry
func (s *Service) UploadDocument(ctx context.Context, userID, fileName string, data []byte) (*models.Document, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperr.Validation("no file uploaded")
	}
	fileName = safeName(fileName)
	if fileName == "" {
		return nil, apperr.Validation("file name is required")
	}

	info, err := compositor.Inspect(data)
	if err != nil {
		return nil, err
	}

	bucket := s.cfg.Storage.DocumentsBucket
	key := fmt.Sprintf("%d_%s", s.now().UnixMilli(), fileName)
	url, err := s.objects.Put(ctx, bucket, key, data, "application/pdf")
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		UserID:      userID,
		FileName:    fileName,
		StoragePath: key,
		FileURL:     url,
		Status:      models.DocumentUploaded,
		PageCount:   info.PageCount,
	}
	if err := doc.SetPageSizes(info.Pages); err != nil {
		s.compensate(ctx, bucket, key, "document upload")
		return nil, apperr.Internal(err, "failed to encode page sizes")
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		s.compensate(ctx, bucket, key, "document upload")
		return nil, err
	}

	log.Printf("📄 Document %s uploaded by %s (%d pages)", doc.ID, userID, doc.PageCount)
	s.notifier.Publish(userID, EventDocumentUploaded, doc)
	return doc, nil
}

// ListDocuments returns the caller's documents, newest first
func (s *Service) ListDocuments(ctx context.Context, userID string, includeDeleted bool) ([]models.Document, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, userID, includeDeleted)
}

// GetDocument returns one document owned by the caller
func (s *Service) GetDocument(ctx context.Context, userID, docID string) (*models.Document, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.ownedDocument(ctx, userID, docID)
}

// DocumentFile returns the original PDF bytes of a document
func (s *Service) DocumentFile(ctx context.Context, userID, docID string) ([]byte, error) {
	doc, err := s.GetDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	return s.objects.Get(ctx, s.cfg.Storage.DocumentsBucket, doc.StoragePath)
}

// SoftDeleteDocument hides a document from the default listing
func (s *Service) SoftDeleteDocument(ctx context.Context, userID, docID string) (*models.Document, error) {
	doc, err := s.GetDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	doc.DeletedAt = &now
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RestoreDocument undoes a soft delete
func (s *Service) RestoreDocument(ctx context.Context, userID, docID string) (*models.Document, error) {
	doc, err := s.GetDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	doc.DeletedAt = nil
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes the stored original, then the record and its
// annotations. Signed copies and signature images are cleaned up best-effort.
func (s *Service) DeleteDocument(ctx context.Context, userID, docID string) error {
	doc, err := s.GetDocument(ctx, userID, docID)
	if err != nil {
		return err
	}

	sigs, err := s.store.ListSignatures(ctx, doc.ID)
	if err != nil {
		return err
	}

	bucket := s.cfg.Storage.DocumentsBucket
	if err := s.objects.Remove(ctx, bucket, doc.StoragePath); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}

	if doc.SignedPath != nil && *doc.SignedPath != "" {
		if err := s.objects.Remove(ctx, bucket, *doc.SignedPath); err != nil {
			log.Printf("⚠️  Storage delete failed for signed copy %s: %v", *doc.SignedPath, err)
		}
	}
	for i := range sigs {
		if sigs[i].HasImage() {
			s.releaseImage(ctx, *sigs[i].SignatureURL)
		}
	}

	log.Printf("🗑️  Document %s deleted by %s", doc.ID, userID)
	s.notifier.Publish(userID, EventDocumentDeleted, map[string]string{"id": doc.ID})
	return nil
}

// VerifyDocument reports the public signing state of a document.
// It needs no session: the verification QR points here.
func (s *Service) VerifyDocument(ctx context.Context, docID string) (*models.Document, error) {
	if docID == "" {
		return nil, apperr.Validation("document id is required")
	}
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted() {
		return nil, apperr.NotFound("document %s not found", docID)
	}
	return doc, nil
}

// safeName keeps the base name of an uploaded file and drops separators
func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.ReplaceAll(name, " ", "_")
}
