package collection

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("collection: records not found")
	// ErrDuplicateID is returned when an inserted id already exists or repeats within a batch.
	ErrDuplicateID = errors.New("collection: duplicate id")
	// ErrInvalidRecord is returned for a nil record in an insert batch.
	ErrInvalidRecord = errors.New("collection: invalid record")
	// ErrClosed is returned by operations on a dropped or closed collection.
	ErrClosed = errors.New("collection: closed")
)

// NotFoundError lists every requested id with no record.
type NotFoundError struct {
	IDs []int64
}

func (e *NotFoundError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = fmt.Sprint(id)
	}
	return "records not found: " + strings.Join(ids, ", ")
}

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
