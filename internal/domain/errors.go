package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidID              = errors.New("invalid id")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientInventory  = errors.New("insufficient inventory")
	ErrReservationContention  = errors.New("reservation lost to concurrent allocator")
	ErrGenerationNotFound     = errors.New("generation request not found")
	ErrReservationBatchTooBig = errors.New("reservation batch too big")
)

// InsufficientInventoryError reports how far short the candidate query fell.
// errors.Is(err, ErrInsufficientInventory) matches it.
type InsufficientInventoryError struct {
	Requested int
	Found     int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory: requested %d, found %d", e.Requested, e.Found)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}
