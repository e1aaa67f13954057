package services

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/motorlot/apiserver/types"
)

var (
	// ErrForbidden is returned when the caller may not perform an action
	// on a resource it can see.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the listing's current status.
	ErrInvalidTransition = types.ErrInvalidTransition

	// ErrUsernameTaken is returned when another account holds a username.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrEmailTaken is returned when registering an email that is in use.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrInvalidCredentials is returned when sign-in fails.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnauthenticated is returned for missing, expired or revoked tokens.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidResetToken is returned for unknown or expired reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	// ErrRateLimited is returned when too many attempts were made.
	ErrRateLimited = errors.New("too many attempts, please try again later")
)

// ValidationError reports input that was rejected before anything was
// written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// fromValidator turns the first validator failure into a ValidationError.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return invalid(field, "is required")
	case "min", "gte":
		switch fe.Kind() {
		case reflect.String:
			return invalid(field, "must be at least %s characters", fe.Param())
		case reflect.Slice:
			return invalid(field, "must have at least %s entries", fe.Param())
		}
		return invalid(field, "must be at least %s", fe.Param())
	case "max", "lte":
		switch fe.Kind() {
		case reflect.String:
			return invalid(field, "must be at most %s characters", fe.Param())
		case reflect.Slice:
			return invalid(field, "must have at most %s entries", fe.Param())
		}
		return invalid(field, "must be at most %s", fe.Param())
	case "email":
		return invalid(field, "must be a valid email address")
	case "oneof":
		return invalid(field, "must be one of %s", fe.Param())
	default:
		return invalid(field, "is invalid")
	}
}
