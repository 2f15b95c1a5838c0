package validator

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

// Validator validates the given struct.
type Validator interface {
	Validate(s any) error
}

type DefaultValidator struct {
	v *validator.Validate
}

// NewDefaultValidator creates a validator with the catalog's custom rules
// registered: "notblank" for text, "decimalgte", "decimallt" and
// "decimalscale" for shopspring decimals, and "category" for any type
// exposing Validate() error.
func NewDefaultValidator() (*DefaultValidator, error) {
	v := validator.New()

	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, fmt.Errorf("register notblank validator: %w", err)
	}

	if err := v.RegisterValidation("decimalgte", validateDecimalGTE); err != nil {
		return nil, fmt.Errorf("register decimalgte validator: %w", err)
	}

	if err := v.RegisterValidation("decimallt", validateDecimalLT); err != nil {
		return nil, fmt.Errorf("register decimallt validator: %w", err)
	}

	if err := v.RegisterValidation("decimalscale", validateDecimalScale); err != nil {
		return nil, fmt.Errorf("register decimalscale validator: %w", err)
	}

	if err := v.RegisterValidation("category", validateEnum); err != nil {
		return nil, fmt.Errorf("register category validator: %w", err)
	}

	return &DefaultValidator{v: v}, nil
}

func (v DefaultValidator) Validate(s any) error {
	return v.v.Struct(s)
}

// ValidateExcept validates s, skipping the named struct fields.
func (v DefaultValidator) ValidateExcept(s any, fields ...string) error {
	return v.v.StructExcept(s, fields...)
}

// IsValidationError checks if the given error is a validation error
func IsValidationError(err error) bool {
	_, ok := err.(validator.ValidationErrors)
	return ok
}

// FieldErrors flattens validation errors into field -> message pairs.
// It returns nil when err is not a validation error.
func FieldErrors(err error) map[string]string {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	fields := make(map[string]string, len(validationErrs))
	for _, fe := range validationErrs {
		fields[fe.Field()] = ValidationErrorMessage(fe)
	}
	return fields
}

func ValidationErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte", "decimalgte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "decimallt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "decimalscale":
		return fmt.Sprintf("must have at most %s decimal places", fe.Param())
	case "category":
		return fmt.Sprintf("unknown category: %v", fe.Value())
	default:
		return "is invalid"
	}
}

func validateDecimalGTE(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(decimal.Decimal)
	if !ok {
		return false
	}
	bound, err := decimal.NewFromString(fl.Param())
	if err != nil {
		return false
	}
	return value.GreaterThanOrEqual(bound)
}

func validateDecimalLT(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(decimal.Decimal)
	if !ok {
		return false
	}
	bound, err := decimal.NewFromString(fl.Param())
	if err != nil {
		return false
	}
	return value.LessThan(bound)
}

// validateDecimalScale rejects values that would be rounded by a column of
// the given scale.
func validateDecimalScale(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(decimal.Decimal)
	if !ok {
		return false
	}
	places, err := strconv.ParseInt(fl.Param(), 10, 32)
	if err != nil {
		return false
	}
	return value.Equal(value.Round(int32(places)))
}

func validateEnum(fl validator.FieldLevel) bool {
	type Enum interface {
		Validate() error
	}

	value, ok := fl.Field().Interface().(Enum)
	if !ok {
		return false
	}

	return value.Validate() == nil
}
