package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// FormatValidationError formats validation errors into a readable string.
func FormatValidationError(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s must satisfy %s=%s", e.Field(), e.Tag(), e.Param()))
			continue
		}
		messages = append(messages, fmt.Sprintf("%s must satisfy %s", e.Field(), e.Tag()))
	}
	return strings.Join(messages, ", ")
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it sends a BadRequest response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			BadRequest(c, "Validation failed: "+FormatValidationError(err))
			return false
		}
		BadRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	if err := Validate(obj); err != nil {
		BadRequest(c, "Validation failed: "+FormatValidationError(err))
		return false
	}
	return true
}
