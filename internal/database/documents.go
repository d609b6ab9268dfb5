package database

import (
	"context"

	"github.com/xelth-com/esealgo/internal/models"
	"gorm.io/gorm"
)

// CreateDocument inserts document metadata
func (db *DB) CreateDocument(ctx context.Context, doc *models.Document) error {
	return translate(db.WithContext(ctx).Create(doc).Error, "document", doc.FileName)
}

// GetDocument loads a document by id, soft-deleted ones included
func (db *DB) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	if err := checkID("document", id); err != nil {
		return nil, err
	}
	var doc models.Document
	if err := db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, translate(err, "document", id)
	}
	return &doc, nil
}

// ListDocuments returns a user's documents, newest first
func (db *DB) ListDocuments(ctx context.Context, userID string, includeDeleted bool) ([]models.Document, error) {
	docs := []models.Document{}
	if checkID("user", userID) != nil {
		return docs, nil
	}
	query := db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if err := query.Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, translate(err, "document", userID)
	}
	return docs, nil
}

// SaveDocument writes every column of an existing document
func (db *DB) SaveDocument(ctx context.Context, doc *models.Document) error {
	res := db.WithContext(ctx).Save(doc)
	if res.Error != nil {
		return translate(res.Error, "document", doc.ID)
	}
	return nil
}

// DeleteDocument removes a document and its annotations in one transaction
func (db *DB) DeleteDocument(ctx context.Context, id string) error {
	if err := checkID("document", id); err != nil {
		return err
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.Signature{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate(err, "document", id)
}
