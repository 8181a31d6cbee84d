// Package validation checks request payloads with struct tags and turns
// failures into InvalidInput errors.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// report JSON field names instead of Go field names
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			_, err := rbac.ParseRole(fl.Field().String())
			return err == nil
		})

		instance = v
	})
	return instance
}

// Struct validates s against its `validate` tags. A failure is returned as
// an apperrors InvalidInput error naming the first offending field.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.InvalidInput("invalid request")
	}
	return apperrors.InvalidInput("%s", describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "role":
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(roleNames(), ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "dive", "gt":
		return fmt.Sprintf("%s must not be empty", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func roleNames() []string {
	names := make([]string, 0, len(rbac.Roles))
	for _, r := range rbac.Roles {
		names = append(names, string(r))
	}
	return names
}

// DecodeJSON reads a JSON request body into dst and validates it
func DecodeJSON(r *http.Request, dst any) error {
	if err := Decode(r, dst); err != nil {
		return err
	}
	return Struct(dst)
}

// Decode reads a JSON request body into dst without validating it, for
// handlers whose service authorizes before checking the payload
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is required")
		}
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			return ae
		}
		return apperrors.InvalidInput("invalid request body")
	}
	return nil
}
