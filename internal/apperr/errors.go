package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport covers channel subscribe/authorize failures. Recovered
	// automatically by the connector's retry loop.
	ErrTransport = errors.New("transport failure")
	// ErrValidation covers malformed input and oversized files. Surfaced
	// immediately, nothing partial is created.
	ErrValidation = errors.New("validation failed")
	// ErrTransfer covers upload failures mid-batch. The associated
	// optimistic send is rolled back entirely.
	ErrTransfer = errors.New("transfer failed")
)

// BatchSizeError rejects a whole upload batch because at least one file
// exceeds the per-file limit.
type BatchSizeError struct {
	Oversized []string
	Limit     int64
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("files exceed %d byte limit: %s", e.Limit, strings.Join(e.Oversized, ", "))
}

func (e *BatchSizeError) Is(target error) bool { return target == ErrValidation }
