package domain

import "errors"

// RetriableError is implemented by errors that a caller may retry.
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable.
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable.
type NetworkError struct {
	Op        string // operation that failed, e.g. "write", "upgrade"
	Err       error
	Retriable bool
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a retriable network error.
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

var (
	// ErrUnknownOrder is returned when an operation references an order id
	// with no cache entry and no exchange-id fallback.
	ErrUnknownOrder = errors.New("unknown order")

	// ErrGatewayDisconnected is returned when an order-entry call is made
	// while the gateway has no session with the exchange.
	ErrGatewayDisconnected = errors.New("order gateway disconnected")
)
