package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a conditional update matched no row because state moved underneath it.
	ErrConflict = errors.New("record changed concurrently")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// IsUniqueViolation reports whether err came from a unique index, across the supported drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate) {
		return true
	}
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "unique constraint failed"):
		return true
	case strings.Contains(message, "duplicate entry"):
		return true
	case strings.Contains(message, "duplicate key value"):
		return true
	default:
		return false
	}
}

func normalizePage(limit, offset, defaultLimit int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
