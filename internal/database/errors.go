package database

import (
	"errors"

	"github.com/google/uuid"
	"github.com/xelth-com/esealgo/internal/apperr"
	"gorm.io/gorm"
)

// translate maps gorm failures onto the service error kinds
func translate(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %s not found", entity, id)
	}
	return apperr.Persistence(err, "%s store failure", entity)
}

// checkID rejects ids the uuid columns cannot hold; no such row can exist
func checkID(entity, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("%s %s not found", entity, id)
	}
	return nil
}
