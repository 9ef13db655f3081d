package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// on picks the caller's transaction when there is one.
func on(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

// EsDuplicado reports whether err is a unique-index violation.
func EsDuplicado(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
