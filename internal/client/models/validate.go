package models

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/agita-app/agita/internal/common"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON column names rather than Go field names.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks v against its `validate` tags. Failures are returned as a
// *common.ValidationError keyed by column name; resource names the record kind.
func Validate(resource string, v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &common.ValidationError{Resource: resource, Fields: map[string]string{"": err.Error()}}
	}

	ve := &common.ValidationError{Resource: resource, Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		ve.Fields[fe.Field()] = reason
	}
	return ve
}
