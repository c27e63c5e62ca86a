package errkind

import "errors"

// Kind classifies an error so outer layers can pick a response without
// matching every sentinel.
type Kind string

const (
	Internal    Kind = "internal"
	Validation  Kind = "validation"
	Forbidden   Kind = "forbidden"
	NotFound    Kind = "not_found"
	Unavailable Kind = "unavailable"
)

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// New returns a sentinel error tagged with kind.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Of reports the kind of the first classified error in err's chain.
func Of(err error) Kind {
	if err == nil {
		return ""
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Internal
}

// IsCallerError is true for validation and authorization failures.
func IsCallerError(err error) bool {
	switch Of(err) {
	case Validation, Forbidden:
		return true
	}
	return false
}
