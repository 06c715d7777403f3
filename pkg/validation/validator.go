// Package validation wraps a singleton go-playground validator and turns its
// field errors into validation kind errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	errprocess "task_chat_service/pkg/err"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get return the shared validator
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// objectid: 24 hex mongo id
		_ = validate.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			_, err := primitive.ObjectIDFromHex(fl.Field().String())
			return err == nil
		})
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct validate and convert to errprocess validation error
func ValidateStruct(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return errprocess.Wrap(errprocess.KindValidation, err, "invalid request")
	}

	messages := make([]string, 0, len(ve))
	for _, fe := range ve {
		messages = append(messages, message(fe))
	}
	return errprocess.Validation("%s", strings.Join(messages, "; "))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "excludes":
		return fmt.Sprintf("%s must not contain %q", fe.Field(), fe.Param())
	case "objectid":
		return fmt.Sprintf("%s must be a valid id", fe.Field())
	default:
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
}
