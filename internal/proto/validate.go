package proto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/carmarket/marketauth/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator adds trimmed_email: an email address once surrounding
// whitespace is removed, the form the service normalizes to.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("trimmed_email", func(fl validator.FieldLevel) bool {
		return v.Var(strings.TrimSpace(fl.Field().String()), "required,email") == nil
	})
	return v
}

// Validate checks msg against its validate tags. Failures wrap
// common.ErrInvalidInput and name every offending field.
func Validate(msg any) error {
	err := validate.Struct(msg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", common.ErrInvalidInput, strings.Join(problems, "; "))
}
