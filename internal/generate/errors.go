package generate

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindTransport
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindTransport:
		return "TransportError"
	case KindApplication:
		return "ApplicationError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failure shown to the user. Error returns Message alone so it can
// be rendered verbatim; Status is the HTTP status when one was received.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind and message, so wrapped copies of the
// sentinels below compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

var (
	ErrEmptyPrompt      = &Error{Kind: KindValidation, Message: "empty prompt"}
	ErrMissingImage     = &Error{Kind: KindValidation, Message: "missing image"}
	ErrInvalidImageType = &Error{Kind: KindValidation, Message: "invalid image type"}
	ErrInvalidMode      = &Error{Kind: KindValidation, Message: "invalid mode"}
	ErrReadImage        = &Error{Kind: KindValidation, Message: "error reading file"}
	ErrConnect          = &Error{Kind: KindTransport, Message: "failed to connect to the server"}
	ErrNoImages         = &Error{Kind: KindApplication, Message: "no images were returned from the server"}

	ErrInFlight = errors.New("generation already in progress")
)

func wrap(sentinel *Error, status int, err error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Status: status, Err: err}
}

// KindOf reports the kind of err, or zero when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
