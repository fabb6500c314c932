package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"harvestwatch/internal/types"
)

// fieldIDPattern restricts field identifiers to URL- and log-safe text.
var fieldIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// Validator wraps go-playground/validator with the domain tags:
//
//	fraction  float in [0,1], finite
//	percent   integer in [0,100]
//	field_id  1-64 chars of [A-Za-z0-9._:-]
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// IsValid reports whether no blocking errors were found.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// warner is implemented by request types that can flag suspicious but
// acceptable input.
type warner interface {
	ValidationWarnings() []string
}

// NewValidator builds a Validator that reports fields by their JSON names.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("fraction", validateFraction)
	_ = v.RegisterValidation("percent", validatePercent)
	_ = v.RegisterValidation("field_id", validateFieldID)

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct returns nil or an *types.AppError whose code is the first
// failure's code and whose details list every failure under
// "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}

	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings runs the tag rules and, when s implements
// ValidationWarnings, collects its warnings too.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	var result ValidationResult

	if err := v.validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			// InvalidValidationError: a programming error, not bad input.
			v.logger.Error("validator misuse", "error", err, "type", fmt.Sprintf("%T", s))
			result.Errors = append(result.Errors, ValidationError{
				Field:   "",
				Code:    string(types.ErrCodeValidationInvalidInput),
				Message: "request could not be validated",
			})
			return result
		}
		for _, fe := range verrs {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fieldPath(fe),
				Code:    string(tagToErrorCode(fe.Tag())),
				Message: messageFor(fe),
			})
		}
	}

	if w, ok := s.(warner); ok {
		result.Warnings = w.ValidationWarnings()
	}
	return result
}

// ValidateFieldID checks a path parameter against the field_id rule.
func (v *Validator) ValidateFieldID(id string) error {
	if err := v.validate.Var(id, "required,field_id"); err != nil {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidFieldID,
			"field id must be 1-64 characters of letters, digits, '.', '_', ':' or '-'",
			err,
			map[string]any{"field": "field_id"},
		)
	}
	return nil
}

// fieldPath drops the top-level struct name from the namespace so nested
// fields read as "fusion_metrics.continuity_score".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func messageFor(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "fraction":
		return field + " must be a number between 0 and 1"
	case "percent":
		return field + " must be an integer between 0 and 100"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "field_id":
		return field + " contains unsupported characters"
	default:
		return fmt.Sprintf("%s failed the %q rule", field, fe.Tag())
	}
}

// tagToErrorCode maps a validator tag to the API error code.
func tagToErrorCode(tag string) types.ErrorCode {
	switch tag {
	case "required", "required_with", "required_without":
		return types.ErrCodeValidationMissingField
	case "min", "max", "gte", "lte", "gt", "lt", "fraction", "percent":
		return types.ErrCodeValidationOutOfRange
	case "oneof":
		return types.ErrCodeValidationInvalidEnum
	case "field_id":
		return types.ErrCodeValidationInvalidFieldID
	default:
		return types.ErrCodeValidationInvalidInput
	}
}

func validateFraction(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		x := f.Float()
		return !math.IsNaN(x) && x >= 0 && x <= 1
	default:
		return false
	}
}

func validatePercent(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		x := f.Int()
		return x >= 0 && x <= 100
	default:
		return false
	}
}

func validateFieldID(fl validator.FieldLevel) bool {
	return fieldIDPattern.MatchString(fl.Field().String())
}
