package errprocess

import (
	"errors"
	"fmt"

	"task_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// Kind classify the failure
type Kind string

const (
	// KindValidation malformed input or a broken domain rule
	KindValidation Kind = "validation"
	// KindNotFound referenced record does not exist
	KindNotFound Kind = "not_found"
	// KindAuthentication missing or invalid credential
	KindAuthentication Kind = "authentication"
	// KindAuthorization caller is not allowed to touch the resource
	KindAuthorization Kind = "authorization"
	// KindConflict unique constraint hit
	KindConflict Kind = "conflict"
	// KindExternal collaborator (profile, context, push) failed
	KindExternal Kind = "external"
	// KindInternal anything unclassified
	KindInternal Kind = "internal"
)

// Error error with kind
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New create error by kind
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wrap cause with kind
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation shortcut
func Validation(format string, args ...interface{}) error {
	return New(KindValidation, format, args...)
}

// NotFound shortcut
func NotFound(format string, args ...interface{}) error {
	return New(KindNotFound, format, args...)
}

// Authorization shortcut
func Authorization(format string, args ...interface{}) error {
	return New(KindAuthorization, format, args...)
}

// Conflict shortcut
func Conflict(format string, args ...interface{}) error {
	return New(KindConflict, format, args...)
}

// External shortcut
func External(err error, format string, args ...interface{}) error {
	return Wrap(KindExternal, err, format, args...)
}

// KindOf return the kind of the first classified error in the chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is check err kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus map kind to http status
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindAuthentication:
		return fiber.StatusUnauthorized
	case KindAuthorization:
		return fiber.StatusForbidden
	case KindConflict:
		return fiber.StatusConflict
	case KindExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Respond write {"error":{"kind","message"}} with mapped status
func Respond(c *fiber.Ctx, err error) error {
	return c.Status(HTTPStatus(err)).JSON(fiber.Map{
		"error": fiber.Map{
			"kind":    KindOf(err),
			"message": err.Error(),
		},
	})
}
