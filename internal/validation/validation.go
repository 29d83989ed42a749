// Package validation checks request payloads before they reach services.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"guildhall/internal/models"

	"github.com/go-playground/validator/v10"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9 ().-]{7,20}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("referral_status", func(fl validator.FieldLevel) bool {
		_, err := models.ParseReferralStatus(fl.Field().String())
		return err == nil
	})
	return v
}

// Struct validates req and returns a VALIDATION_ERROR describing the first bad field.
func Struct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewValidationError("Invalid request")
	}
	return models.NewValidationError(describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "referral_status":
		return fmt.Sprintf("%s must be one of SUBMITTED, REVIEWED, MATCHED, ENGAGED, COMPLETED", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
