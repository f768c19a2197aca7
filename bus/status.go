package bus

import "strconv"

// Handle identifies a runtime-owned resource. Values greater than zero are
// valid; zero and below mean invalid or uncreated. HandleNil is the reserved
// sentinel a released or moved-from owner carries.
type Handle int64

// HandleNil marks a handle slot whose ownership has been given away.
const HandleNil Handle = -1

// Valid reports whether h refers to a live runtime resource.
func (h Handle) Valid() bool { return h > 0 }

// Status is the native return code of a bus runtime call. Zero is success,
// positive values carry a count (triggered conditions, retrieved samples),
// and negative values are errors.
type Status int32

const (
	StatusOK                 Status = 0
	StatusError              Status = -1
	StatusUnsupported        Status = -2
	StatusBadParameter       Status = -3
	StatusPreconditionNotMet Status = -4
	StatusOutOfResources     Status = -5
	StatusAlreadyDeleted     Status = -6
	StatusTimeout            Status = -7
	StatusNoData             Status = -8
)

// String returns the symbolic name for the status code.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "Success"
	case StatusError:
		return "Error"
	case StatusUnsupported:
		return "Unsupported"
	case StatusBadParameter:
		return "Bad Parameter"
	case StatusPreconditionNotMet:
		return "Precondition Not Met"
	case StatusOutOfResources:
		return "Out Of Resources"
	case StatusAlreadyDeleted:
		return "Already Deleted"
	case StatusTimeout:
		return "Timeout"
	case StatusNoData:
		return "No Data"
	default:
		if s > 0 {
			return "Success"
		}
		return "Unknown (" + strconv.Itoa(int(s)) + ")"
	}
}
