package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable marks any failure to read from or write to the database.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStaleSnapshot is returned when a batch no longer matches the rows it was planned on.
	ErrStaleSnapshot = errors.New("assignment snapshot is stale")
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("already exists")
	ErrNotAssigned   = errors.New("person is not assigned")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
