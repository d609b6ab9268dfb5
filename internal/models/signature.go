package models

import (
	"math"
	"strings"
	"time"

	"github.com/xelth-com/esealgo/internal/apperr"
)

// SignatureType decides how an annotation is rendered
type SignatureType string

const (
	SignatureTyped  SignatureType = "typed"
	SignatureDrawn  SignatureType = "drawn"
	SignatureUpload SignatureType = "upload"
)

// Default normalized size of a mark when none is given
const (
	DefaultWidth  = 0.2
	DefaultHeight = 0.1
)

// Valid reports whether t is a known signature type
func (t SignatureType) Valid() bool {
	switch t {
	case SignatureTyped, SignatureDrawn, SignatureUpload:
		return true
	}
	return false
}

// NeedsImage reports whether the type is rendered from a stored image
func (t SignatureType) NeedsImage() bool {
	return t == SignatureDrawn || t == SignatureUpload
}

// Signature is one placed mark on one page of a document.
// X, Y, Width and Height are fractions of the page size with a bottom-left origin.
type Signature struct {
	ID           string        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	DocumentID   string        `gorm:"column:document_id;type:uuid;not null;index" json:"document_id"`
	SignerID     string        `gorm:"column:signer_id;type:uuid;not null;index" json:"signer_id"`
	PageNumber   int           `gorm:"column:page_number;not null" json:"page_number"`
	X            float64       `gorm:"column:x;not null" json:"x"`
	Y            float64       `gorm:"column:y;not null" json:"y"`
	Width        float64       `gorm:"column:width" json:"width"`
	Height       float64       `gorm:"column:height" json:"height"`
	Type         SignatureType `gorm:"column:type;default:'upload'" json:"type"`
	SignatureURL *string       `gorm:"column:signature_url" json:"signature_url"`
	Name         *string       `gorm:"column:name" json:"name"`
	Font         *string       `gorm:"column:font" json:"font"`
	Color        *string       `gorm:"column:color" json:"color"`
	Locked       bool          `gorm:"column:locked;default:false" json:"locked"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name
func (Signature) TableName() string {
	return "signatures"
}

// HasImage reports whether the annotation carries a usable image address
func (s *Signature) HasImage() bool {
	return s.SignatureURL != nil && strings.TrimSpace(*s.SignatureURL) != ""
}

// ApplyDefaults fills the size and type when they were left empty
func (s *Signature) ApplyDefaults() {
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.Height == 0 {
		s.Height = DefaultHeight
	}
	if s.Type == "" {
		if s.HasImage() {
			s.Type = SignatureUpload
		} else {
			s.Type = SignatureTyped
		}
	}
}

// Validate checks the annotation against a document with pageCount pages.
// A pageCount of zero skips the upper page bound.
func (s *Signature) Validate(pageCount int) error {
	if strings.TrimSpace(s.DocumentID) == "" {
		return apperr.Validation("document id is required")
	}
	if strings.TrimSpace(s.SignerID) == "" {
		return apperr.Validation("signer id is required")
	}
	if s.PageNumber < 1 {
		return apperr.Validation("page_number must be 1 or greater, got %d", s.PageNumber)
	}
	if pageCount > 0 && s.PageNumber > pageCount {
		return apperr.Validation("page_number %d exceeds document page count %d", s.PageNumber, pageCount)
	}
	for _, v := range []float64{s.X, s.Y, s.Width, s.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.Validation("x, y, width and height must be finite numbers")
		}
	}
	if s.X < 0 || s.X > 1 || s.Y < 0 || s.Y > 1 {
		return apperr.Validation("x and y must be normalized to [0,1], got (%g, %g)", s.X, s.Y)
	}
	if s.Width <= 0 || s.Width > 1 || s.Height <= 0 || s.Height > 1 {
		return apperr.Validation("width and height must be normalized to (0,1], got (%g, %g)", s.Width, s.Height)
	}
	// Small tolerance for client-side float rounding
	const eps = 1e-9
	if s.X+s.Width > 1+eps || s.Y+s.Height > 1+eps {
		return apperr.Validation("signature at (%g, %g) sized (%g, %g) extends past the page", s.X, s.Y, s.Width, s.Height)
	}
	if !s.Type.Valid() {
		return apperr.Validation("unknown signature type %q", s.Type)
	}
	if s.Type.NeedsImage() && !s.HasImage() {
		return apperr.Validation("%s signatures require a signature_url", s.Type)
	}
	return nil
}

// SignaturePatch is a partial update: only non-nil fields are applied
type SignaturePatch struct {
	X            *float64       `json:"x,omitempty"`
	Y            *float64       `json:"y,omitempty"`
	Width        *float64       `json:"width,omitempty"`
	Height       *float64       `json:"height,omitempty"`
	Name         *string        `json:"name,omitempty"`
	Font         *string        `json:"font,omitempty"`
	Color        *string        `json:"color,omitempty"`
	SignatureURL *string        `json:"signature_url,omitempty"`
	Type         *SignatureType `json:"type,omitempty"`
	Locked       *bool          `json:"locked,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p SignaturePatch) IsEmpty() bool {
	return p == SignaturePatch{}
}

// OnlyLock reports whether the patch touches nothing but the locked flag
func (p SignaturePatch) OnlyLock() bool {
	p.Locked = nil
	return p.IsEmpty()
}

// Apply copies the present fields onto s
func (p SignaturePatch) Apply(s *Signature) {
	if p.X != nil {
		s.X = *p.X
	}
	if p.Y != nil {
		s.Y = *p.Y
	}
	if p.Width != nil {
		s.Width = *p.Width
	}
	if p.Height != nil {
		s.Height = *p.Height
	}
	// Empty strings count as absent for the appearance fields
	if p.Name != nil && *p.Name != "" {
		s.Name = p.Name
	}
	if p.Font != nil && *p.Font != "" {
		s.Font = p.Font
	}
	if p.Color != nil && *p.Color != "" {
		s.Color = p.Color
	}
	if p.SignatureURL != nil && *p.SignatureURL != "" {
		s.SignatureURL = p.SignatureURL
	}
	if p.Type != nil && *p.Type != "" {
		s.Type = *p.Type
	}
	if p.Locked != nil {
		s.Locked = *p.Locked
	}
}
