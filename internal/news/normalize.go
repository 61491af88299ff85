package news

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// RawParams carries caller-supplied query parameters before validation.
// Empty strings mean "not supplied".
type RawParams struct {
	Q        string `param:"q" validate:"omitempty,min=1,max=100"`
	Category string `param:"category" validate:"omitempty,oneof=business entertainment general health science sports technology"`
	Country  string `param:"country" validate:"omitempty,len=2"`
	Language string `param:"language" validate:"omitempty,len=2"`
	Page     string `param:"page" validate:"omitempty,intrange=1:100"`
	PageSize string `param:"pageSize" validate:"omitempty,intrange=1:100"`
}

// RawParamsFromValues reads the news query parameters from a URL query.
func RawParamsFromValues(v url.Values) RawParams {
	pageSize := v.Get("pageSize")
	if pageSize == "" {
		pageSize = v.Get("page_size")
	}
	return RawParams{
		Q:        v.Get("q"),
		Category: v.Get("category"),
		Country:  v.Get("country"),
		Language: v.Get("language"),
		Page:     v.Get("page"),
		PageSize: pageSize,
	}
}

type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports malformed caller input. Field and Reason describe
// the first violation; Violations holds all of them in field order.
type ValidationError struct {
	Field      string
	Reason     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) <= 1 {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Reason)
	}
	return "invalid query: " + strings.Join(parts, "; ")
}

// NewValidationError reports a single violation.
func NewValidationError(field, reason string) *ValidationError {
	return newValidationError([]Violation{{Field: field, Reason: reason}})
}

func newValidationError(violations []Violation) *ValidationError {
	return &ValidationError{
		Field:      violations[0].Field,
		Reason:     violations[0].Reason,
		Violations: violations,
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := fld.Tag.Get("param"); name != "" {
				return name
			}
			return fld.Name
		})
		_ = validate.RegisterValidation("intrange", validateIntRange)
	})
	return validate
}

// validateIntRange accepts decimal integers within "min:max".
func validateIntRange(fl validator.FieldLevel) bool {
	lo, hi, ok := parseRange(fl.Param())
	if !ok {
		return false
	}
	n, err := strconv.Atoi(fl.Field().String())
	if err != nil {
		return false
	}
	return n >= lo && n <= hi
}

func parseRange(param string) (int, int, bool) {
	loStr, hiStr, found := strings.Cut(param, ":")
	if !found {
		return 0, 0, false
	}
	lo, err := strconv.Atoi(loStr)
	if err != nil {
		return 0, 0, false
	}
	hi, err := strconv.Atoi(hiStr)
	if err != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// Normalize validates raw parameters and returns a query with every field
// populated. It has no side effects.
func Normalize(raw RawParams) (NewsQuery, error) {
	raw = trimParams(raw)

	if err := getValidator().Struct(raw); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return NewsQuery{}, newValidationError([]Violation{{Field: "query", Reason: err.Error()}})
		}
		violations := make([]Violation, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			violations = append(violations, Violation{Field: fe.Field(), Reason: reason(fe)})
		}
		return NewsQuery{}, newValidationError(violations)
	}

	q := NewsQuery{
		Q:        raw.Q,
		Category: Category(raw.Category),
		Country:  strings.ToLower(raw.Country),
		Language: strings.ToLower(raw.Language),
	}
	// Both already passed intrange.
	if raw.Page != "" {
		q.Page, _ = strconv.Atoi(raw.Page)
	}
	if raw.PageSize != "" {
		q.PageSize, _ = strconv.Atoi(raw.PageSize)
	}
	return q.WithDefaults(), nil
}

func trimParams(raw RawParams) RawParams {
	raw.Q = strings.TrimSpace(raw.Q)
	raw.Category = strings.TrimSpace(raw.Category)
	raw.Country = strings.TrimSpace(raw.Country)
	raw.Language = strings.TrimSpace(raw.Language)
	raw.Page = strings.TrimSpace(raw.Page)
	raw.PageSize = strings.TrimSpace(raw.PageSize)
	return raw
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		return fmt.Sprintf("must be between 1 and %d characters", MaxQueryLen)
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "len":
		return "must be a 2-character code"
	case "intrange":
		lo, hi, _ := parseRange(fe.Param())
		return fmt.Sprintf("must be an integer between %d and %d", lo, hi)
	default:
		return "is invalid"
	}
}
