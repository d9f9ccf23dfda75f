package main

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"moviecollection/apperrors"
)

// firstFilmYear is the year of the oldest surviving motion picture.
const firstFilmYear = 1888

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("releaseyear", func(fl validator.FieldLevel) bool {
		year := fl.Field().Int()
		return year == 0 || (year >= firstFilmYear && year <= int64(time.Now().Year()+5))
	})
	return v
}

// validateInput checks the validate tags on a decoded request body and
// reports the first failing field as a Validation error.
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return apperrors.Wrap(apperrors.Internal, err, "failed to validate request")
	}
	return apperrors.New(apperrors.Validation, "%s", fieldMessage(ve[0]))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "releaseyear":
		return field + " is out of range"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "gte":
		return field + " must be at least " + fe.Param()
	case "lte":
		return field + " must be at most " + fe.Param()
	case "max":
		return field + " is too long"
	case "startswith":
		return field + " must start with " + fe.Param()
	default:
		return field + " is invalid"
	}
}
