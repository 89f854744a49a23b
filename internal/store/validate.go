package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/buonappetort/rex/internal/model"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// getValidator returns the shared validator. Field errors are reported by
// their JSON names so messages match what callers sent.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the required fields of a creation request and returns a
// *model.ValidationError naming the first one that is missing.
func Validate(c model.Candidate) error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &model.ValidationError{Field: verrs[0].Field()}
	}
	return fmt.Errorf("validating candidate: %w", err)
}
