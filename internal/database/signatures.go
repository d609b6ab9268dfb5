package database

import (
	"context"

	"github.com/xelth-com/esealgo/internal/models"
	"gorm.io/gorm"
)

// CreateSignature inserts one annotation
func (db *DB) CreateSignature(ctx context.Context, sig *models.Signature) error {
	return translate(db.WithContext(ctx).Create(sig).Error, "signature", sig.DocumentID)
}

// GetSignature loads one annotation
func (db *DB) GetSignature(ctx context.Context, id string) (*models.Signature, error) {
	if err := checkID("signature", id); err != nil {
		return nil, err
	}
	var sig models.Signature
	if err := db.WithContext(ctx).Where("id = ?", id).First(&sig).Error; err != nil {
		return nil, translate(err, "signature", id)
	}
	return &sig, nil
}

// ListSignatures returns every annotation of a document in placement order
func (db *DB) ListSignatures(ctx context.Context, documentID string) ([]models.Signature, error) {
	sigs := []models.Signature{}
	if checkID("document", documentID) != nil {
		return sigs, nil
	}
	err := db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&sigs).Error
	if err != nil {
		return nil, translate(err, "signature", documentID)
	}
	return sigs, nil
}

// SaveSignature writes every column of an existing annotation
func (db *DB) SaveSignature(ctx context.Context, sig *models.Signature) error {
	return translate(db.WithContext(ctx).Save(sig).Error, "signature", sig.ID)
}

// DeleteSignature removes one annotation
func (db *DB) DeleteSignature(ctx context.Context, id string) error {
	if err := checkID("signature", id); err != nil {
		return err
	}
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&models.Signature{})
	if res.Error == nil && res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "signature", id)
	}
	return translate(res.Error, "signature", id)
}

// LockSignatures marks every annotation of a document as locked
func (db *DB) LockSignatures(ctx context.Context, documentID string) error {
	if checkID("document", documentID) != nil {
		return nil
	}
	err := db.WithContext(ctx).
		Model(&models.Signature{}).
		Where("document_id = ?", documentID).
		Update("locked", true).Error
	return translate(err, "signature", documentID)
}

// CountSignaturesByURL reports how many annotations still reference an image
func (db *DB) CountSignaturesByURL(ctx context.Context, url string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&models.Signature{}).
		Where("signature_url = ?", url).
		Count(&n).Error
	return n, translate(err, "signature", url)
}
