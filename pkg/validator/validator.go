package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks structs against their `validate` tags
type Validator interface {
	Validate(interface{}) error
}

// FieldError is one failed rule on one field, named by its json tag.
type FieldError struct {
	Field string
	Rule  string
	Param string
	Value interface{}
}

func (e FieldError) String() string {
	switch e.Rule {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", e.Field, e.Param, e.Value)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", e.Field, e.Param, e.Value)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", e.Field, e.Param, e.Value)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", e.Field, e.Param, e.Value)
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field, e.Rule)
	}
}

// Errors is returned by Validate when one or more rules fail.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.String()
	}
	return strings.Join(msgs, "; ")
}

type structValidator struct {
	validate *validator.Validate
}

func New() Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonTagName)
	return &structValidator{validate: v}
}

func (v *structValidator) Validate(obj interface{}) error {
	err := v.validate.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}

// Messages flattens validator/v10 errors, including those produced by gin
// binding, into readable messages. Other errors yield their own text.
func Messages(err error) []string {
	var ours Errors
	if errors.As(err, &ours) {
		msgs := make([]string, len(ours))
		for i, fe := range ours {
			msgs[i] = fe.String()
		}
		return msgs
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = FieldError{
				Field: fe.Field(),
				Rule:  fe.Tag(),
				Param: fe.Param(),
				Value: fe.Value(),
			}.String()
		}
		return msgs
	}
	return []string{err.Error()}
}

// RegisterJSONTagNames makes an existing validator report json field names,
// so binding errors read like the request body.
func RegisterJSONTagNames(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonTagName)
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
