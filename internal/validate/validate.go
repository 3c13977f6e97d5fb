// Package validate decodes request bodies and checks them against struct tags,
// reporting failures as apperror validation details keyed by JSON field name.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/AlessandraU03/stylepin-api/internal/apperror"
	"github.com/AlessandraU03/stylepin-api/internal/auth"
	"github.com/AlessandraU03/stylepin-api/pkg/patch"
)

// MaxBodyBytes caps request bodies read by Bind.
const MaxBodyBytes = 1 << 20

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._]+$`)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Absent and null patch fields validate as empty so omitempty skips them.
	v.RegisterCustomTypeFunc(patchValue[string], patch.Field[string]{})
	v.RegisterCustomTypeFunc(patchValue[[]string], patch.Field[[]string]{})
	v.RegisterCustomTypeFunc(patchValue[bool], patch.Field[bool]{})

	mustRegister(v, "password", func(fl validator.FieldLevel) bool {
		return auth.CheckPasswordPolicy(fl.Field().String()) == nil
	})
	mustRegister(v, "username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func patchValue[T any](field reflect.Value) any {
	f, ok := field.Interface().(patch.Field[T])
	if !ok {
		return nil
	}
	if v, ok := f.Get(); ok {
		return v
	}
	return nil
}

// ValidUsername reports whether s is 3-30 characters of letters, digits, dots
// and underscores.
func ValidUsername(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= 3 && n <= 30 && usernamePattern.MatchString(s)
}

// Struct validates i and returns an *apperror.Error of kind validation_error
// listing every failing field.
func (v *Validator) Struct(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	details := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apperror.FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return apperror.Validation(details...)
}

// Bind decodes the JSON body of r into dst and validates it.
func (v *Validator) Bind(r *http.Request, dst any) error {
	if err := Decode(r, dst); err != nil {
		return err
	}
	return v.Struct(dst)
}

// Decode reads a single JSON object from the body. Unknown fields are ignored.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperror.Field("body", "request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.Field("body", "request body is required")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return apperror.Field(typeErr.Field, fmt.Sprintf("must be of type %s", typeErr.Type))
		default:
			return apperror.Field("body", "malformed JSON")
		}
	}
	return nil
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url", "http_url":
		return "must be a valid URL"
	case "password":
		return auth.PasswordPolicyString
	case "username":
		return "must be 3-30 characters of letters, numbers, dots and underscores"
	default:
		return fmt.Sprintf("failed on %q", fe.Tag())
	}
}
