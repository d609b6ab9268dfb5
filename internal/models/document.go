package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// DocumentStatus tracks where an uploaded PDF is in its lifecycle
type DocumentStatus string

const (
	DocumentUploaded DocumentStatus = "uploaded"
	DocumentSigned   DocumentStatus = "signed"
)

// PageSize is the intrinsic size of one page in points
type PageSize struct {
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// Document is an uploaded PDF and, once finalized, its signed derivative
type Document struct {
	ID          string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID      string         `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	FileName    string         `gorm:"column:file_name;not null" json:"file_name"`
	StoragePath string         `gorm:"column:storage_path;not null" json:"-"`
	FileURL     string         `gorm:"column:file_url;not null" json:"file_url"`
	Status      DocumentStatus `gorm:"column:status;default:'uploaded';index" json:"status"`
	PageCount   int            `gorm:"column:page_count" json:"page_count"`
	PageSizes   datatypes.JSON `gorm:"column:page_sizes;type:jsonb" json:"page_sizes,omitempty"`

	SignedFileName *string    `gorm:"column:signed_file_name" json:"signed_file_name,omitempty"`
	SignedPath     *string    `gorm:"column:signed_path" json:"-"`
	SignedURL      *string    `gorm:"column:signed_url" json:"signed_url,omitempty"`
	SignedAt       *time.Time `gorm:"column:signed_at" json:"signed_at,omitempty"`

	// Soft delete is explicit so restore and "include deleted" listings stay simple
	DeletedAt *time.Time `gorm:"column:deleted_at;index" json:"deleted_at"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name
func (Document) TableName() string {
	return "documents"
}

// SetPageSizes stores the per-page dimensions and page count
func (d *Document) SetPageSizes(sizes []PageSize) error {
	raw, err := json.Marshal(sizes)
	if err != nil {
		return err
	}
	d.PageSizes = datatypes.JSON(raw)
	d.PageCount = len(sizes)
	return nil
}

// Pages decodes the stored per-page dimensions
func (d *Document) Pages() ([]PageSize, error) {
	if len(d.PageSizes) == 0 {
		return nil, nil
	}
	var sizes []PageSize
	if err := json.Unmarshal(d.PageSizes, &sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}

// IsDeleted reports whether the document was soft-deleted
func (d *Document) IsDeleted() bool {
	return d.DeletedAt != nil
}
