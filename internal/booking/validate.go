package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/codr1/courtside/internal/apperr"
)

var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput reports the first failing field of a request as a
// validation error named after its JSON key.
func validateInput(in any) error {
	err := inputValidator.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Wrap(apperr.Validation, "invalid request", err)
	}
	fe := fieldErrs[0]
	return apperr.Invalid(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		switch fe.Param() {
		case dateLayout:
			return "must be a date in YYYY-MM-DD format"
		case clockLayout:
			return "must be a time in HH:MM format"
		}
		return fmt.Sprintf("must match %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
