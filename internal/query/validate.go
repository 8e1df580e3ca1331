package query

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports caller input that was rejected before any query ran.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// minTextLen is the shortest substring filter accepted. Shorter ones match too
// much of the table to be useful.
const minTextLen = 3

var stateRe = regexp.MustCompile(`^[A-Z]{2}$`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// normaliseState upper-cases and checks a two-letter state code.
func normaliseState(state string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(state))
	if !stateRe.MatchString(s) {
		return "", invalid("state", "state must be a two-letter code")
	}
	return s, nil
}

// checkText rejects 1 or 2 rune filters. Empty means "no filter".
func checkText(field, v string) error {
	if n := utf8.RuneCountInString(v); n > 0 && n < minTextLen {
		return invalid(field, "%s must be at least %d characters", field, minTextLen)
	}
	return nil
}

// fromValidator turns the first validator failure into a ValidationError using
// the field's JSON name.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "len":
		return invalid(field, "%s must be %s characters", field, fe.Param())
	case "alpha":
		return invalid(field, "%s must contain letters only", field)
	case "max":
		return invalid(field, "%s must be at most %s characters", field, fe.Param())
	case "gte":
		return invalid(field, "%s must be at least %s", field, fe.Param())
	case "lte":
		return invalid(field, "%s must be at most %s", field, fe.Param())
	default:
		return invalid(field, "%s is invalid", field)
	}
}

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}
