package domain

import "errors"

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	// KindInputNotFound marks a user-correctable failure: the postcode could
	// not be resolved. Surfaced verbatim, never retried.
	KindInputNotFound Kind = "input_not_found"
	// KindTransport marks a network or remote-server failure. Retried at the
	// fetch layer; surfaced after the retry budget is exhausted.
	KindTransport Kind = "transport"
	// KindLayerProcessing marks a failure filtering, clipping, or writing one
	// output layer. Contained to that layer's result, never job-fatal.
	KindLayerProcessing Kind = "layer_processing"
	// KindPackaging marks a failure writing files or the archive. Job-fatal:
	// no partial archive is exposed.
	KindPackaging Kind = "packaging"
)

// Error is an application error carrying a Kind for propagation decisions.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an error of the given kind wrapping a cause.
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// IsKind reports whether the outermost Error in err's chain has the given
// kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
