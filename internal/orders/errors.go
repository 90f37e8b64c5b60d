package orders

import "errors"

var (
	// ErrOrderNotFound signals a legitimate miss on lookup.
	ErrOrderNotFound = errors.New("orders: order not found")
	// ErrClientNameRequired rejects orders without a client.
	ErrClientNameRequired = errors.New("orders: client name required")
	// ErrInvalidStatus rejects unknown status values.
	ErrInvalidStatus = errors.New("orders: invalid status")
	// ErrInvalidPriority rejects unknown priority values.
	ErrInvalidPriority = errors.New("orders: invalid priority")
	// ErrNegativeAmount rejects negative monetary values.
	ErrNegativeAmount = errors.New("orders: amount must be non-negative")
	// ErrEmptyUpdate rejects partial updates with no fields set.
	ErrEmptyUpdate = errors.New("orders: nothing to update")
	// ErrInvalidPeriod rejects balance periods other than day/month.
	ErrInvalidPeriod = errors.New("orders: period must be day or month")
)
