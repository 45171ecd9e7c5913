package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MinRating = 1
	MaxRating = 5
)

var ErrValidation = errors.New("validation failed")

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is a local rejection, raised before any collaborator call.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return e.Fields[0].Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// FieldMap keeps the first message per field.
func (e *ValidationError) FieldMap() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AsValidation unwraps a *ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

var fieldLabels = map[string]string{
	"full_name":   "Full name",
	"adypu_email": "Email",
	"game_title":  "Game title",
	"hosted_link": "Hosted link",
	"github_link": "Source repository link",
	"name":        "Name",
	"rating":      "Rating",
	"comment":     "Comment",
}

// Rules are the organisation specific patterns submissions must match.
type Rules struct {
	EmailDomain string
	RepoPrefix  string
}

type formValidator struct {
	validate *validator.Validate
	rules    Rules
}

func newFormValidator(rules Rules) *formValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("form")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	domain := "@" + strings.ToLower(rules.EmailDomain)
	_ = v.RegisterValidation("org_email", func(fl validator.FieldLevel) bool {
		return strings.HasSuffix(strings.ToLower(fl.Field().String()), domain)
	})

	_ = v.RegisterValidation("repo_url", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.HasPrefix(s, rules.RepoPrefix) && len(s) > len(rules.RepoPrefix)
	})

	return &formValidator{validate: v, rules: rules}
}

func (v *formValidator) check(form any) *ValidationError {
	verr := &ValidationError{}

	err := v.validate.Struct(form)
	if err == nil {
		return verr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("", err.Error())
		return verr
	}

	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), v.message(fe))
	}
	return verr
}

func (v *formValidator) message(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email", "org_email":
		org := strings.ToUpper(strings.SplitN(v.rules.EmailDomain, ".", 2)[0])
		return fmt.Sprintf("Please enter a valid %s email address (ending with @%s)", org, v.rules.EmailDomain)
	case "http_url":
		return "Please enter a valid URL (starting with http:// or https://)"
	case "repo_url":
		return fmt.Sprintf("Please enter a valid GitHub URL (starting with %s)", v.rules.RepoPrefix)
	case "min", "max":
		return fmt.Sprintf("%s must be between %d and %d", label, MinRating, MaxRating)
	default:
		return label + " is invalid"
	}
}

