package neurons

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGraph is matched by every *InvalidGraphError.
	ErrInvalidGraph = errors.New("neurons: invalid graph")
	// ErrInvalidArgument reports a malformed call or descriptor, such as a
	// Forward with other than one input.
	ErrInvalidArgument = errors.New("neurons: invalid argument")
	// ErrRuntimeInconsistency signals a container whose internal state
	// contradicts its validation. It is a bug, not a user error.
	ErrRuntimeInconsistency = errors.New("neurons: runtime inconsistency")
	ErrShapeMismatch        = errors.New("neurons: shape mismatch")

	ErrSelfLink      = errors.New("neurons: node cannot link to itself")
	ErrLinkRejected  = errors.New("neurons: link rejected by policy")
	ErrDuplicateLoss = errors.New("neurons: network already has a loss node")
	ErrSourceKind    = errors.New("neurons: source nodes are added with AddSource")
	ErrUnknownKind   = errors.New("neurons: unknown node kind")
	ErrUnknownRef    = errors.New("neurons: unknown node ref")
)

// Reason says which structural check a graph failed.
type Reason int

const (
	ReasonInconsistent Reason = iota + 1
	ReasonMultipleComponents
	ReasonCycle
	ReasonUnsatisfiedInputs
	ReasonUnsatisfiedOutputs
	// ReasonEndpoints: the sorted graph does not start with the only source
	// node and end with the only loss node.
	ReasonEndpoints
)

func (r Reason) String() string {
	switch r {
	case ReasonInconsistent:
		return "inconsistent"
	case ReasonMultipleComponents:
		return "multiple components"
	case ReasonCycle:
		return "cycle"
	case ReasonUnsatisfiedInputs:
		return "unsatisfied inputs"
	case ReasonUnsatisfiedOutputs:
		return "unsatisfied outputs"
	case ReasonEndpoints:
		return "endpoints"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// InvalidGraphError is returned by NewContainer when a snapshot fails
// validation.
type InvalidGraphError struct {
	Reason Reason
}

func (e *InvalidGraphError) Error() string {
	return "neurons: invalid graph: " + e.Reason.String()
}

func (e *InvalidGraphError) Unwrap() error { return ErrInvalidGraph }

func invalidGraph(r Reason) error { return &InvalidGraphError{Reason: r} }

// ReasonOf extracts the failed check from err, or 0 if err is not an
// InvalidGraphError.
func ReasonOf(err error) Reason {
	var ig *InvalidGraphError
	if errors.As(err, &ig) {
		return ig.Reason
	}
	return 0
}
