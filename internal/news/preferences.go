package news

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidatePreferences checks stored preferences: known categories, at most
// twenty non-empty sources and keywords, lower-case two-letter codes.
func ValidatePreferences(p UserPreferences) error {
	err := getValidator().Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return newValidationError([]Violation{{Field: "preferences", Reason: err.Error()}})
	}
	violations := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, Violation{Field: fe.Field(), Reason: preferenceReason(fe)})
	}
	return newValidationError(violations)
}

func preferenceReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "max":
		if strings.HasSuffix(fe.Field(), "]") {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must have at most %s entries", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "len", "lowercase":
		return "must be a lower-case 2-character code"
	default:
		return "is invalid"
	}
}
