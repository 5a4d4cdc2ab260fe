package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"triggerd/internal/common/errors"
	"triggerd/internal/pathquery"
)

// CentralizedValidator provides unified validation using go-playground/validator
type CentralizedValidator struct {
	validator *validator.Validate
}

// ValidationResult contains validation results with structured errors
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError represents a single validation error with context
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// CronParser accepts an optional leading seconds field.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewCentralizedValidator creates a new centralized validator instance
func NewCentralizedValidator() *CentralizedValidator {
	v := validator.New()

	registerEngineValidators(v)

	// Report json names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &CentralizedValidator{
		validator: v,
	}
}

// ValidateStruct validates a struct using struct tags
func (cv *CentralizedValidator) ValidateStruct(s interface{}) error {
	if err := cv.validator.Struct(s); err != nil {
		return cv.formatValidationErrors(err)
	}
	return nil
}

// ValidateVar validates a single variable with validation rules
func (cv *CentralizedValidator) ValidateVar(field interface{}, tag string) error {
	if err := cv.validator.Var(field, tag); err != nil {
		return cv.formatValidationErrors(err)
	}
	return nil
}

// ValidateStructResult validates a struct and returns detailed results
func (cv *CentralizedValidator) ValidateStructResult(s interface{}) *ValidationResult {
	err := cv.validator.Struct(s)
	if err == nil {
		return &ValidationResult{Valid: true, Errors: []ValidationError{}}
	}

	return &ValidationResult{
		Valid:  false,
		Errors: cv.extractValidationErrors(err),
	}
}

func (cv *CentralizedValidator) formatValidationErrors(err error) error {
	validationErrors := cv.extractValidationErrors(err)
	if len(validationErrors) == 1 {
		return errors.ValidationError(validationErrors[0].Message)
	}

	messages := make([]string, len(validationErrors))
	for i, e := range validationErrors {
		messages[i] = e.Message
	}

	return errors.ValidationError(fmt.Sprintf("validation failed: %s", strings.Join(messages, "; ")))
}

func (cv *CentralizedValidator) extractValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fieldError.Namespace(),
				Tag:     fieldError.Tag(),
				Value:   fmt.Sprintf("%v", fieldError.Value()),
				Message: cv.formatFieldError(fieldError),
				Param:   fieldError.Param(),
			})
		}
	} else {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "unknown",
			Tag:     "error",
			Message: err.Error(),
		})
	}

	return validationErrors
}

// formatFieldError formats go-playground/validator field errors into readable messages
func (cv *CentralizedValidator) formatFieldError(err validator.FieldError) string {
	field := err.Namespace()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, err.Param())
	case "gte":
		return fmt.Sprintf("field '%s' must be greater than or equal to %s", field, err.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, err.Param())
	case "data_path":
		return fmt.Sprintf("field '%s' must be a valid data path", field)
	case "cron_expression":
		return fmt.Sprintf("field '%s' must be a valid cron expression", field)
	case "platform":
		return fmt.Sprintf("field '%s' must be one of: twitch youtube tiktok", field)
	case "duration":
		return fmt.Sprintf("field '%s' must be a valid duration", field)
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", field, err.Tag())
	}
}

func registerEngineValidators(v *validator.Validate) {
	// Condition data paths
	v.RegisterValidation("data_path", func(fl validator.FieldLevel) bool {
		_, err := pathquery.Compile(fl.Field().String())
		return err == nil
	})

	v.RegisterValidation("cron_expression", func(fl validator.FieldLevel) bool {
		_, err := CronParser.Parse(fl.Field().String())
		return err == nil
	})

	v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "twitch", "youtube", "tiktok":
			return true
		}
		return false
	})

	v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
}

// Global validator instance for convenience
var globalValidator = NewCentralizedValidator()

// ValidateStruct validates a struct using the global validator instance
func ValidateStruct(s interface{}) error {
	return globalValidator.ValidateStruct(s)
}

// ValidateVar validates a variable using the global validator instance
func ValidateVar(field interface{}, tag string) error {
	return globalValidator.ValidateVar(field, tag)
}

// ValidateStructResult validates a struct and returns detailed results using the global validator
func ValidateStructResult(s interface{}) *ValidationResult {
	return globalValidator.ValidateStructResult(s)
}
