package repositories

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxContentLength is the largest message body accepted, in characters.
const MaxContentLength = 10000

var (
	// ErrValidation marks rejected input. Nothing is persisted when it is returned.
	ErrValidation     = errors.New("validation error")
	ErrEmptyContent   = fmt.Errorf("%w: message content is empty", ErrValidation)
	ErrContentTooLong = fmt.Errorf("%w: message content exceeds %d characters", ErrValidation, MaxContentLength)

	// ErrStoreUnavailable wraps every failure of the underlying database.
	ErrStoreUnavailable = errors.New("message store unavailable")
)

// ValidateContent checks a message body before it is persisted.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
