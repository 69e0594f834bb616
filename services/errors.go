package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvitationInactive  = errors.New("invitation is no longer active")
	ErrInvitationExhausted = errors.New("invitation has reached its maximum uses")
	ErrInvitationExpired   = errors.New("invitation has expired")
	ErrUploadsDisabled     = errors.New("uploads are not configured")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func fmtNotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// notFound maps gorm.ErrRecordNotFound to ErrNotFound and leaves other errors alone.
func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return err
}
