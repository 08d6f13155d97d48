package client

import (
	"errors"
	"fmt"

	"wcf-rpc-sdk/message"
)

// ErrNotFound is returned by the contact lookups when the id is unknown even
// after a refresh.
var ErrNotFound = errors.New("contact not found")

// OperationError reports a call the service answered with a failure status.
type OperationError struct {
	Op     message.Function
	Status int32
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("wcf: %s failed with status %d", e.Op, e.Status)
}
