package signing

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/models"
)

// imageTypes maps accepted signature image extensions to content types
var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// placeable loads a document the caller may place annotations on
func (s *Service) placeable(ctx context.Context, userID, docID string) (*models.Document, error) {
	doc, err := s.ownedDocument(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted() {
		return nil, apperr.Validation("document %s is deleted", docID)
	}
	return doc, nil
}

// SaveSignature validates and stores a new annotation for the caller
func (s *Service) SaveSignature(ctx context.Context, userID string, sig models.Signature) (*models.Signature, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	doc, err := s.placeable(ctx, userID, sig.DocumentID)
	if err != nil {
		return nil, err
	}

	sig.ID = ""
	sig.SignerID = userID
	sig.Locked = false
	sig.ApplyDefaults()
	if err := sig.Validate(doc.PageCount); err != nil {
		return nil, err
	}
	if err := s.store.CreateSignature(ctx, &sig); err != nil {
		return nil, err
	}

	s.notifier.Publish(userID, EventSignatureCreated, &sig)
	return &sig, nil
}

// ListSignatures returns a document's annotations in placement order
func (s *Service) ListSignatures(ctx context.Context, userID, docID string) ([]models.Signature, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if _, err := s.ownedDocument(ctx, userID, docID); err != nil {
		return nil, err
	}
	sigs, err := s.store.ListSignatures(ctx, docID)
	if err != nil {
		return nil, err
	}
	if sigs == nil {
		sigs = []models.Signature{}
	}
	return sigs, nil
}

// ownedSignature loads an annotation together with its document
func (s *Service) ownedSignature(ctx context.Context, userID, sigID string) (*models.Signature, *models.Document, error) {
	if err := requireUser(userID); err != nil {
		return nil, nil, err
	}
	if sigID == "" {
		return nil, nil, apperr.Validation("signature id is required")
	}
	sig, err := s.store.GetSignature(ctx, sigID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.ownedDocument(ctx, userID, sig.DocumentID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil, apperr.NotFound("signature %s not found", sigID)
		}
		return nil, nil, err
	}
	return sig, doc, nil
}

// UpdateSignature merges the present fields of patch into an annotation.
// A locked annotation only accepts a change of its locked flag.
func (s *Service) UpdateSignature(ctx context.Context, userID, sigID string, patch models.SignaturePatch) (*models.Signature, error) {
	sig, doc, err := s.ownedSignature(ctx, userID, sigID)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return sig, nil
	}
	if sig.Locked && !patch.OnlyLock() {
		return nil, apperr.Validation("signature %s is locked", sigID)
	}

	previousURL := sig.SignatureURL
	patch.Apply(sig)
	if err := sig.Validate(doc.PageCount); err != nil {
		return nil, err
	}
	if err := s.store.SaveSignature(ctx, sig); err != nil {
		return nil, err
	}

	if previousURL != nil && (sig.SignatureURL == nil || *sig.SignatureURL != *previousURL) {
		s.releaseImage(ctx, *previousURL)
	}
	s.notifier.Publish(userID, EventSignatureUpdated, sig)
	return sig, nil
}

// DeleteSignature removes an annotation and, best-effort, its stored image
func (s *Service) DeleteSignature(ctx context.Context, userID, sigID string) error {
	sig, _, err := s.ownedSignature(ctx, userID, sigID)
	if err != nil {
		return err
	}
	if sig.Locked {
		return apperr.Validation("signature %s is locked", sigID)
	}
	if err := s.store.DeleteSignature(ctx, sig.ID); err != nil {
		return err
	}
	if sig.HasImage() {
		s.releaseImage(ctx, *sig.SignatureURL)
	}

	s.notifier.Publish(userID, EventSignatureDeleted, map[string]string{"id": sig.ID, "document_id": sig.DocumentID})
	return nil
}

// UploadSignatureImage stores a drawn or uploaded image and creates the
// annotation that uses it. The image is removed again if the record cannot
// be written.
func (s *Service) UploadSignatureImage(ctx context.Context, userID, fileName string, data []byte, sig models.Signature) (*models.Signature, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperr.Validation("no file uploaded")
	}
	ext := strings.ToLower(path.Ext(fileName))
	contentType, ok := imageTypes[ext]
	if !ok {
		return nil, apperr.Validation("unsupported signature image %q: use PNG or JPEG", fileName)
	}

	doc, err := s.placeable(ctx, userID, sig.DocumentID)
	if err != nil {
		return nil, err
	}

	sig.ID = ""
	sig.SignerID = userID
	sig.Locked = false
	if sig.Type == "" || !sig.Type.NeedsImage() {
		sig.Type = models.SignatureUpload
	}
	// Validate geometry before anything is stored
	placeholder := "pending" + ext
	sig.SignatureURL = &placeholder
	sig.ApplyDefaults()
	if err := sig.Validate(doc.PageCount); err != nil {
		return nil, err
	}

	bucket := s.cfg.Storage.SignaturesBucket
	key := fmt.Sprintf("signatures/%s-%s%s", userID, uuid.NewString(), ext)
	url, err := s.objects.Put(ctx, bucket, key, data, contentType)
	if err != nil {
		return nil, err
	}
	sig.SignatureURL = &url

	if err := s.store.CreateSignature(ctx, &sig); err != nil {
		s.compensate(ctx, bucket, key, "signature image upload")
		return nil, err
	}

	log.Printf("✍️  Signature image %s stored for document %s", key, sig.DocumentID)
	s.notifier.Publish(userID, EventSignatureCreated, &sig)
	return &sig, nil
}
