package errors

import (
	"errors"
	"fmt"
)

// Kind sentinels. Every specific error below wraps exactly one of them so the
// transport layer can classify with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrStorage       = errors.New("storage error")
)

var (
	ErrInvalidSessionInput     = fmt.Errorf("%w: invalid session input", ErrValidation)
	ErrInvalidActor            = fmt.Errorf("%w: authenticated user is required", ErrValidation)
	ErrInvalidItemID           = fmt.Errorf("%w: item id is required", ErrValidation)
	ErrEmptyBallot             = fmt.Errorf("%w: at least one vote entry is required", ErrValidation)
	ErrMalformedVoteEntry      = fmt.Errorf("%w: vote entry requires item id and grade", ErrValidation)
	ErrInvalidGradeLevel       = fmt.Errorf("%w: unknown grade level", ErrValidation)
	ErrDuplicateVoteEntry      = fmt.Errorf("%w: item graded more than once", ErrValidation)
	ErrUnknownSessionItem      = fmt.Errorf("%w: item is not part of the session", ErrValidation)
	ErrInvalidSearchQuery      = fmt.Errorf("%w: invalid catalog search query", ErrValidation)
	ErrIdempotencyKeyRequired  = fmt.Errorf("%w: idempotency key is required", ErrValidation)
	ErrSessionNotFound         = fmt.Errorf("%w: voting session not found", ErrNotFound)
	ErrVoteNotFound            = fmt.Errorf("%w: vote not found", ErrNotFound)
	ErrSessionAlreadyExists    = fmt.Errorf("%w: voting session already exists", ErrConflict)
	ErrItemAlreadyPresent      = fmt.Errorf("%w: item already present in session", ErrConflict)
	ErrVoteConflict            = fmt.Errorf("%w: concurrent vote conflict", ErrConflict)
	ErrIdempotencyConflict     = fmt.Errorf("%w: idempotency key conflict", ErrConflict)
	ErrIdempotencyInProgress   = fmt.Errorf("%w: idempotent request still in progress", ErrConflict)
	ErrOutboxConflict          = fmt.Errorf("%w: outbox record conflict", ErrConflict)
	ErrForbiddenAction         = fmt.Errorf("%w: actor may not modify this session", ErrForbidden)
	ErrSessionNotPublic        = fmt.Errorf("%w: voting session is not public", ErrForbidden)
	ErrAdminRequired           = fmt.Errorf("%w: admin role required", ErrForbidden)
	ErrMultipleVotesNotAllowed = fmt.Errorf("%w: session accepts a single vote entry", ErrLimitExceeded)
	ErrVoteLimitExceeded       = fmt.Errorf("%w: too many vote entries", ErrLimitExceeded)
	ErrCatalogUnavailable      = errors.New("catalog search unavailable")
)

// StorageFailure marks a backend error as a storage failure while keeping the
// cause matchable.
func StorageFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
