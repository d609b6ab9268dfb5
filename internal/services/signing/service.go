package signing

import (
	"context"
	"log"
	"time"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/compositor"
	"github.com/xelth-com/esealgo/internal/config"
	"github.com/xelth-com/esealgo/internal/models"
	"github.com/xelth-com/esealgo/internal/storage"
)

// Store is the metadata store the service needs; *database.DB implements it
type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, userID string, includeDeleted bool) ([]models.Document, error)
	SaveDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, id string) error

	CreateSignature(ctx context.Context, sig *models.Signature) error
	GetSignature(ctx context.Context, id string) (*models.Signature, error)
	ListSignatures(ctx context.Context, documentID string) ([]models.Signature, error)
	SaveSignature(ctx context.Context, sig *models.Signature) error
	DeleteSignature(ctx context.Context, id string) error
	LockSignatures(ctx context.Context, documentID string) error
	CountSignaturesByURL(ctx context.Context, url string) (int64, error)
}

// Notifier receives document and signature events for live clients
type Notifier interface {
	Publish(userID, eventType string, payload interface{})
}

// Event types published by the service
const (
	EventDocumentUploaded  = "document.uploaded"
	EventDocumentDeleted   = "document.deleted"
	EventDocumentFinalized = "document.finalized"
	EventSignatureCreated  = "signature.created"
	EventSignatureUpdated  = "signature.updated"
	EventSignatureDeleted  = "signature.deleted"
)

type nopNotifier struct{}

func (nopNotifier) Publish(string, string, interface{}) {}

// Service orchestrates documents, signature placement and finalization
type Service struct {
	store      Store
	objects    storage.Storage
	compositor *compositor.Compositor
	notifier   Notifier
	cfg        *config.Config
	now        func() time.Time
}

// NewService wires the service; notifier may be nil
func NewService(store Store, objects storage.Storage, comp *compositor.Compositor, notifier Notifier, cfg *config.Config) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		store:      store,
		objects:    objects,
		compositor: comp,
		notifier:   notifier,
		cfg:        cfg,
		now:        time.Now,
	}
}

func requireUser(userID string) error {
	if userID == "" {
		return apperr.Auth("user authentication required")
	}
	return nil
}

// ownedDocument loads a document and hides it from anyone but its owner
func (s *Service) ownedDocument(ctx context.Context, userID, docID string) (*models.Document, error) {
	if docID == "" {
		return nil, apperr.Validation("document id is required")
	}
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, apperr.NotFound("document %s not found", docID)
	}
	return doc, nil
}

// compensate removes an object whose metadata write failed. Its own failure
// is logged and never replaces the primary error.
func (s *Service) compensate(ctx context.Context, bucket, key, step string) {
	if err := s.objects.Remove(context.WithoutCancel(ctx), bucket, key); err != nil {
		log.Printf("❌ Compensation failed after %s: orphaned object %s/%s: %v", step, bucket, key, err)
		return
	}
	log.Printf("↩️  Compensation: removed %s/%s after failed %s", bucket, key, step)
}

// releaseImage deletes a stored signature image nobody references any more
func (s *Service) releaseImage(ctx context.Context, url string) {
	bucket := s.cfg.Storage.SignaturesBucket
	key, ok := s.objects.PathFromURL(bucket, url)
	if !ok {
		return
	}
	refs, err := s.store.CountSignaturesByURL(ctx, url)
	if err != nil {
		log.Printf("⚠️  Skipping image cleanup for %s: %v", url, err)
		return
	}
	if refs > 0 {
		return
	}
	if err := s.objects.Remove(ctx, bucket, key); err != nil {
		log.Printf("⚠️  Storage delete failed for %s/%s: %v", bucket, key, err)
	}
}
