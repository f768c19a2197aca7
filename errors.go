package databus

import (
	"fmt"

	"github.com/casualjim/databus/bus"
)

// CreationError reports that a bus resource could not be brought into
// existence. It is always fatal to the operation that raised it; nothing in
// this library retries creation.
type CreationError struct {
	Code    bus.Status
	Context string
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("%s: bus error %d (%s)", e.Context, e.Code, e.Code)
}

// OperationError reports a failed write, wait or retrieval call. The native
// status code and the operation name are carried unchanged for diagnostics.
type OperationError struct {
	Code bus.Status
	Op   string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: bus error %d (%s)", e.Op, e.Code, e.Code)
}

func creationFailed(st bus.Status, context string) error {
	return &CreationError{Code: st, Context: context}
}

func operationFailed(st bus.Status, op string) error {
	return &OperationError{Code: st, Op: op}
}
