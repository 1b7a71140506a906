package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func validateRequest(obj any) []ValidationError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Message: err.Error(), Type: "invalid"}}
	}

	validationErrors := make([]ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Namespace(),
			Message: errorMessage(fe),
			Type:    fe.Tag(),
		})
	}
	return validationErrors
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "len":
		return "Value must be exactly " + fe.Param() + " characters long"
	case "numeric":
		return "Value must contain digits only"
	case "oneof":
		return "Value must be one of: " + fe.Param()
	case "max":
		return "Value is too long"
	default:
		return "Invalid value"
	}
}
